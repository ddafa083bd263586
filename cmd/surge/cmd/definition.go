package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
)

// definitionFlags are shared by create and run
type definitionFlags struct {
	name       string
	collection string
	method     string
	url        string
	headers    []string
	body       string
	rate       int64
	duration   time.Duration
	pacing     string
	timeout    time.Duration
}

func (f *definitionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "name of the load test")
	fl.StringVar(&f.collection, "collection", "", "collection the load test belongs to")
	fl.StringVarP(&f.method, "method", "X", "GET", "http method of every request")
	fl.StringVarP(&f.url, "url", "u", "", "target url. may contain {{seq}}, {{uuid}}, {{ksuid}}, {{unix}}, {{timestamp}} and {{regex:PATTERN}}")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, "header to add to every request, e.g. -H 'Authorization: Bearer x'. can be repeated")
	fl.StringVarP(&f.body, "body", "d", "", "request body")
	fl.Int64VarP(&f.rate, "rate", "r", 10, "requests per second")
	fl.DurationVar(&f.duration, "duration", 10*time.Second, "how long to fire requests for, in whole seconds")
	fl.StringVar(&f.pacing, "pacing", string(loadtest.DefaultPacing), "pacing discipline. can be batched,token_bucket")
	fl.DurationVarP(&f.timeout, "timeout", "t", 0, "per request timeout. defaults to the configured http.timeout")
}

// definition builds the definition described by the flags. Validation is left to the receiver so every
// error is reported at once
func (f *definitionFlags) definition() (*loadtest.Definition, error) {
	pacing, err := loadtest.ParsePacing(f.pacing)
	if err != nil {
		return nil, err
	}
	if f.duration%time.Second != 0 {
		return nil, fmt.Errorf("duration must be a whole number of seconds, got %s", f.duration)
	}

	def := &loadtest.Definition{
		Name:            f.name,
		CollectionID:    f.collection,
		Request:         http.Request{Method: f.method, URL: f.url, Body: f.body},
		DurationSeconds: int64(f.duration / time.Second),
		Rate:            f.rate,
		Pacing:          pacing,
		TimeoutMs:       f.timeout.Milliseconds(),
	}
	for _, raw := range f.headers {
		h, ok := http.ParseHeader(raw)
		if !ok {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", raw)
		}
		def.Request.Headers.Set(h.Key, h.Value)
	}
	return def, nil
}
