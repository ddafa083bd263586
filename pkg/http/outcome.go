package http

import (
	"time"

	"github.com/rs/zerolog"
	errors2 "github.com/surgehq/surge/pkg/errors"
)

// Outcome is the result of a single invocation. A response with a failing status is still a
// completed invocation: StatusCode is set and Err is nil. Transport failures have StatusCode 0 and Err set
type Outcome struct {
	Seq        int64
	StatusCode int
	Latency    time.Duration
	Succeeded  bool
	Err        *errors2.InvocationError
}

// StatusSucceeded is the success rule for a received status code
func StatusSucceeded(code int) bool {
	return code > 0 && code < 400
}

// LatencyMs returns the latency in fractional milliseconds
func (o Outcome) LatencyMs() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

// HasResponse reports whether the target answered at all
func (o Outcome) HasResponse() bool {
	return o.StatusCode != 0
}

func (o Outcome) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("seq", o.Seq).
		Int("sc", o.StatusCode).
		Dur("latency", o.Latency).
		Bool("ok", o.Succeeded)
	if o.Err != nil {
		e.Str("kind", string(o.Err.Kind)).Str("error", o.Err.Error())
	}
}
