package api

import (
	"time"

	"github.com/francoispqt/gojay"
	"github.com/surgehq/surge/internal/coordinator"
	"github.com/surgehq/surge/internal/store"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
)

// Wire types of the status API. Each has a gojay codec so the server and the client share one encoding

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
		return nil
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// LoadTest is a definition together with its run state
type LoadTest struct {
	Definition *loadtest.Definition
	State      loadtest.RunState
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewLoadTest(r *store.Record) *LoadTest {
	return &LoadTest{
		Definition: r.Definition,
		State:      r.State,
		LastError:  r.LastError,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func (l *LoadTest) MarshalJSONObject(enc *gojay.Encoder) {
	// the definition keys are inlined
	l.Definition.MarshalJSONObject(enc)
	enc.StringKey("state", string(l.State))
	enc.StringKeyOmitEmpty("last_error", l.LastError)
	enc.StringKeyOmitEmpty("started_at", encodeTime(l.StartedAt))
	enc.StringKeyOmitEmpty("finished_at", encodeTime(l.FinishedAt))
}

func (l *LoadTest) IsNil() bool {
	return l == nil || l.Definition == nil
}

func (l *LoadTest) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	if l.Definition == nil {
		l.Definition = &loadtest.Definition{}
	}
	switch k {
	case "state":
		var s string
		if err := dec.String(&s); err != nil {
			return err
		}
		l.State = loadtest.RunState(s)
		return nil
	case "last_error":
		return dec.String(&l.LastError)
	case "started_at":
		return decodeTime(dec, &l.StartedAt)
	case "finished_at":
		return decodeTime(dec, &l.FinishedAt)
	}
	return l.Definition.UnmarshalJSONObject(dec, k)
}

func (l *LoadTest) NKeys() int {
	return 0
}

type LoadTests []*LoadTest

func (ls LoadTests) MarshalJSONArray(enc *gojay.Encoder) {
	for _, l := range ls {
		enc.Object(l)
	}
}

func (ls LoadTests) IsNil() bool {
	return len(ls) == 0
}

func (ls *LoadTests) UnmarshalJSONArray(dec *gojay.Decoder) error {
	l := &LoadTest{}
	if err := dec.Object(l); err != nil {
		return err
	}
	*ls = append(*ls, l)
	return nil
}

// ListResponse is the body of the list endpoint
type ListResponse struct {
	LoadTests LoadTests
}

func (l *ListResponse) MarshalJSONObject(enc *gojay.Encoder) {
	enc.ArrayKey("loadtests", l.LoadTests)
}

func (l *ListResponse) IsNil() bool {
	return l == nil
}

func (l *ListResponse) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	if k == "loadtests" {
		return dec.Array(&l.LoadTests)
	}
	return nil
}

func (l *ListResponse) NKeys() int {
	return 0
}

// Status is the body of the status endpoint. Result and Progress are encoded as null when absent
type Status struct {
	ID       string
	State    loadtest.RunState
	Result   *loadtest.RunResult
	Progress *loadtest.Progress
	Error    string
}

func NewStatus(s *coordinator.Status) *Status {
	return &Status{ID: s.ID, State: s.State, Result: s.Result, Progress: s.Progress, Error: s.Error}
}

func (s *Status) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("id", s.ID)
	enc.StringKey("state", string(s.State))
	enc.ObjectKeyNullEmpty("result", s.Result)
	enc.ObjectKeyNullEmpty("progress", s.Progress)
	enc.StringKey("error", s.Error)
}

func (s *Status) IsNil() bool {
	return s == nil
}

func (s *Status) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "id":
		return dec.String(&s.ID)
	case "state":
		var v string
		if err := dec.String(&v); err != nil {
			return err
		}
		s.State = loadtest.RunState(v)
	case "result":
		var r *loadtest.RunResult
		if err := dec.ObjectNull(&r); err != nil {
			return err
		}
		s.Result = r
	case "progress":
		var p *loadtest.Progress
		if err := dec.ObjectNull(&p); err != nil {
			return err
		}
		s.Progress = p
	case "error":
		return dec.String(&s.Error)
	}
	return nil
}

func (s *Status) NKeys() int {
	return 0
}

// Ack is the body returned by start, stop and delete
type Ack struct {
	ID      string
	State   string
	Deleted bool
}

func (a *Ack) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("id", a.ID)
	enc.StringKeyOmitEmpty("state", a.State)
	enc.BoolKeyOmitEmpty("deleted", a.Deleted)
}

func (a *Ack) IsNil() bool {
	return a == nil
}

func (a *Ack) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "id":
		return dec.String(&a.ID)
	case "state":
		return dec.String(&a.State)
	case "deleted":
		return dec.Bool(&a.Deleted)
	}
	return nil
}

func (a *Ack) NKeys() int {
	return 0
}

// Error kinds reported in error bodies
const (
	KindValidation     = "validation"
	KindNotFound       = "not_found"
	KindAlreadyRunning = "already_running"
	KindNotRunning     = "not_running"
	KindConflict       = "conflict"
	KindInternal       = "internal"
)

type fieldErrors []errors2.FieldError

func (f fieldErrors) MarshalJSONArray(enc *gojay.Encoder) {
	for i := range f {
		enc.Object(&fieldError{f[i]})
	}
}

func (f fieldErrors) IsNil() bool {
	return len(f) == 0
}

func (f *fieldErrors) UnmarshalJSONArray(dec *gojay.Decoder) error {
	v := &fieldError{}
	if err := dec.Object(v); err != nil {
		return err
	}
	*f = append(*f, v.FieldError)
	return nil
}

type fieldError struct {
	errors2.FieldError
}

func (f *fieldError) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("field", f.Field)
	enc.StringKey("reason", f.Reason)
}

func (f *fieldError) IsNil() bool {
	return f == nil
}

func (f *fieldError) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "field":
		return dec.String(&f.Field)
	case "reason":
		return dec.String(&f.Reason)
	}
	return nil
}

func (f *fieldError) NKeys() int {
	return 0
}

// Error is the payload of every error response, wrapped as {"error": {...}}
type Error struct {
	Kind    string
	Message string
	Fields  []errors2.FieldError
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("kind", e.Kind)
	enc.StringKey("message", e.Message)
	enc.ArrayKeyOmitEmpty("fields", fieldErrors(e.Fields))
}

func (e *Error) IsNil() bool {
	return e == nil
}

func (e *Error) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "kind":
		return dec.String(&e.Kind)
	case "message":
		return dec.String(&e.Message)
	case "fields":
		f := fieldErrors{}
		if err := dec.Array(&f); err != nil {
			return err
		}
		e.Fields = f
	}
	return nil
}

func (e *Error) NKeys() int {
	return 0
}

// ErrorResponse wraps Error in the error envelope
type ErrorResponse struct {
	Error *Error
}

func (e *ErrorResponse) MarshalJSONObject(enc *gojay.Encoder) {
	enc.ObjectKey("error", e.Error)
}

func (e *ErrorResponse) IsNil() bool {
	return e == nil
}

func (e *ErrorResponse) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	if k == "error" {
		e.Error = &Error{}
		return dec.Object(e.Error)
	}
	return nil
}

func (e *ErrorResponse) NKeys() int {
	return 0
}
