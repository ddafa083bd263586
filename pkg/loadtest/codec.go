package loadtest

import (
	"strconv"
	"time"

	"github.com/francoispqt/gojay"
	errors2 "github.com/surgehq/surge/pkg/errors"
)

// JSON codecs for the types that cross the worker boundary, the API and the store. Times are encoded as
// RFC3339 with nanoseconds and omitted when zero

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(dec *gojay.Decoder, t *time.Time) error {
	var s string
	if err := dec.String(&s); err != nil {
		return err
	}
	if s == "" {
		*t = time.Time{}
		return nil
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (d *Definition) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("id", d.ID)
	enc.StringKey("name", d.Name)
	enc.StringKeyOmitEmpty("collection_id", d.CollectionID)
	enc.ObjectKey("request", &d.Request)
	enc.Int64Key("duration_seconds", d.DurationSeconds)
	enc.Int64Key("rate", d.Rate)
	enc.StringKey("pacing", string(d.Pacing))
	enc.Int64KeyOmitEmpty("timeout_ms", d.TimeoutMs)
	enc.StringKeyOmitEmpty("created_at", encodeTime(d.CreatedAt))
}

func (d *Definition) IsNil() bool {
	return d == nil
}

func (d *Definition) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "id":
		return dec.String(&d.ID)
	case "name":
		return dec.String(&d.Name)
	case "collection_id":
		return dec.String(&d.CollectionID)
	case "request":
		return dec.Object(&d.Request)
	case "duration_seconds":
		return dec.Int64(&d.DurationSeconds)
	case "rate":
		return dec.Int64(&d.Rate)
	case "pacing":
		var s string
		if err := dec.String(&s); err != nil {
			return err
		}
		d.Pacing = Pacing(s)
		return nil
	case "timeout_ms":
		return dec.Int64(&d.TimeoutMs)
	case "created_at":
		return decodeTime(dec, &d.CreatedAt)
	}
	return nil
}

func (d *Definition) NKeys() int {
	return 0
}

func (p *Progress) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("total", p.Total)
	enc.Int64Key("succeeded", p.Succeeded)
	enc.Int64Key("failed", p.Failed)
	enc.Float64Key("elapsed_ms", p.ElapsedMs)
	enc.Int64Key("windows", p.Windows)
}

func (p *Progress) IsNil() bool {
	return p == nil
}

func (p *Progress) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "total":
		return dec.Int64(&p.Total)
	case "succeeded":
		return dec.Int64(&p.Succeeded)
	case "failed":
		return dec.Int64(&p.Failed)
	case "elapsed_ms":
		return dec.Float64(&p.ElapsedMs)
	case "windows":
		return dec.Int64(&p.Windows)
	}
	return nil
}

func (p *Progress) NKeys() int {
	return 0
}

func (l Latencies) MarshalJSONArray(enc *gojay.Encoder) {
	for _, v := range l {
		enc.Float64(v)
	}
}

func (l Latencies) IsNil() bool {
	return len(l) == 0
}

func (l *Latencies) UnmarshalJSONArray(dec *gojay.Decoder) error {
	var v float64
	if err := dec.Float64(&v); err != nil {
		return err
	}
	*l = append(*l, v)
	return nil
}

func (s StatusCounts) MarshalJSONObject(enc *gojay.Encoder) {
	for _, code := range s.SortedCodes() {
		enc.Int64Key(strconv.Itoa(code), s[code])
	}
}

func (s StatusCounts) IsNil() bool {
	return len(s) == 0
}

func (s *StatusCounts) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	code, err := strconv.Atoi(k)
	if err != nil {
		return err
	}
	var v int64
	if err := dec.Int64(&v); err != nil {
		return err
	}
	if *s == nil {
		*s = make(StatusCounts)
	}
	(*s)[code] = v
	return nil
}

func (s *StatusCounts) NKeys() int {
	return 0
}

func (e ErrorCounts) MarshalJSONObject(enc *gojay.Encoder) {
	for _, kind := range e.SortedKinds() {
		enc.Int64Key(string(kind), e[kind])
	}
}

func (e ErrorCounts) IsNil() bool {
	return len(e) == 0
}

func (e *ErrorCounts) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	var v int64
	if err := dec.Int64(&v); err != nil {
		return err
	}
	if *e == nil {
		*e = make(ErrorCounts)
	}
	(*e)[errors2.ErrorKind(k)] = v
	return nil
}

func (e *ErrorCounts) NKeys() int {
	return 0
}

func (r *RunResult) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("total", r.Total)
	enc.Int64Key("succeeded", r.Succeeded)
	enc.Int64Key("failed", r.Failed)
	enc.ArrayKey("latencies_ms", r.LatenciesMs)
	enc.Float64Key("average_latency_ms", r.AverageLatencyMs)
	enc.Float64Key("min_latency_ms", r.MinLatencyMs)
	enc.Float64Key("max_latency_ms", r.MaxLatencyMs)
	enc.Float64Key("p50_latency_ms", r.P50LatencyMs)
	enc.Float64Key("p90_latency_ms", r.P90LatencyMs)
	enc.Float64Key("p95_latency_ms", r.P95LatencyMs)
	enc.Float64Key("p99_latency_ms", r.P99LatencyMs)
	enc.ObjectKey("status_codes", r.StatusCodes)
	enc.ObjectKey("errors", r.Errors)
	enc.StringKeyOmitEmpty("started_at", encodeTime(r.StartedAt))
	enc.StringKeyOmitEmpty("finished_at", encodeTime(r.FinishedAt))
	enc.Float64Key("elapsed_ms", r.ElapsedMs)
	enc.Float64Key("requests_per_second", r.RequestsPerSecond)
	enc.StringKeyOmitEmpty("pacing", string(r.Pacing))
	enc.BoolKey("cancelled", r.Cancelled)
}

func (r *RunResult) IsNil() bool {
	return r == nil
}

func (r *RunResult) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "total":
		return dec.Int64(&r.Total)
	case "succeeded":
		return dec.Int64(&r.Succeeded)
	case "failed":
		return dec.Int64(&r.Failed)
	case "latencies_ms":
		return dec.Array(&r.LatenciesMs)
	case "average_latency_ms":
		return dec.Float64(&r.AverageLatencyMs)
	case "min_latency_ms":
		return dec.Float64(&r.MinLatencyMs)
	case "max_latency_ms":
		return dec.Float64(&r.MaxLatencyMs)
	case "p50_latency_ms":
		return dec.Float64(&r.P50LatencyMs)
	case "p90_latency_ms":
		return dec.Float64(&r.P90LatencyMs)
	case "p95_latency_ms":
		return dec.Float64(&r.P95LatencyMs)
	case "p99_latency_ms":
		return dec.Float64(&r.P99LatencyMs)
	case "status_codes":
		return dec.Object(&r.StatusCodes)
	case "errors":
		return dec.Object(&r.Errors)
	case "started_at":
		return decodeTime(dec, &r.StartedAt)
	case "finished_at":
		return decodeTime(dec, &r.FinishedAt)
	case "elapsed_ms":
		return dec.Float64(&r.ElapsedMs)
	case "requests_per_second":
		return dec.Float64(&r.RequestsPerSecond)
	case "pacing":
		var s string
		if err := dec.String(&s); err != nil {
			return err
		}
		r.Pacing = Pacing(s)
		return nil
	case "cancelled":
		return dec.Bool(&r.Cancelled)
	}
	return nil
}

func (r *RunResult) NKeys() int {
	return 0
}

// MarshalDefinition encodes a definition as JSON
func MarshalDefinition(d *Definition) ([]byte, error) {
	return gojay.MarshalJSONObject(d)
}

func UnmarshalDefinition(data []byte) (*Definition, error) {
	d := &Definition{}
	if err := gojay.UnmarshalJSONObject(data, d); err != nil {
		return nil, err
	}
	return d, nil
}

// MarshalResult encodes a result as JSON
func MarshalResult(r *RunResult) ([]byte, error) {
	return gojay.MarshalJSONObject(r)
}

func UnmarshalResult(data []byte) (*RunResult, error) {
	r := &RunResult{}
	if err := gojay.UnmarshalJSONObject(data, r); err != nil {
		return nil, err
	}
	if r.StatusCodes == nil {
		r.StatusCodes = make(StatusCounts)
	}
	if r.Errors == nil {
		r.Errors = make(ErrorCounts)
	}
	return r, nil
}
