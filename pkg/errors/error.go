package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/surgehq/surge/pkg/log"
)

// Sentinel kinds. Every typed error in this package reports true for errors.Is against its kind
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
	ErrInvocation     = errors.New("invocation failed")
	ErrWorkerFault    = errors.New("worker fault")
)

// Is and As are re-exported so callers need a single errors import
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// prefixfromDepth will create the indent prefix for a certain depth
// of string, e.g. 2 will yield "  " * 2 -> "    "
func prefixFromDepth(depth int) string {
	return strings.Repeat("  ", depth)
}

// PrintError will attempt to traverse the nested error and
// recursively log any nested multierrors and validation fields found
func PrintError(err error, depth int) {
	var (
		merr *multierror.Error
		verr *ValidationError
	)

	if errors.As(err, &verr) {
		for _, f := range verr.Fields() {
			log.Debug().Str("field", f.Field).Str("reason", f.Reason).Msg(prefixFromDepth(depth) + "invalid field")
		}
	} else if errors.As(err, &merr) {
		for _, v := range merr.Errors {
			PrintError(v, depth+1)
		}
	} else {
		log.Debug().Err(err).Msg(prefixFromDepth(depth) + "error")
	}
}

// FieldError describes a single invalid attribute of a definition
type FieldError struct {
	Field  string
	Reason string
}

func (f *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Reason)
}

// ValidationError collects every invalid field of a definition so the caller can fix them all at once.
// Build one with Add and return ErrorOrNil
type ValidationError struct {
	merr *multierror.Error
}

func (v *ValidationError) Add(field, reason string) {
	v.merr = multierror.Append(v.merr, &FieldError{Field: field, Reason: reason})
}

func (v *ValidationError) Addf(field, format string, args ...interface{}) {
	v.Add(field, fmt.Sprintf(format, args...))
}

// ErrorOrNil returns nil when no fields were added. Always return the result of this
// rather than the *ValidationError itself to avoid typed nil errors
func (v *ValidationError) ErrorOrNil() error {
	if v == nil || v.merr == nil || len(v.merr.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Fields() []FieldError {
	if v == nil || v.merr == nil {
		return nil
	}
	ret := make([]FieldError, 0, len(v.merr.Errors))
	for _, e := range v.merr.Errors {
		var f *FieldError
		if errors.As(e, &f) {
			ret = append(ret, *f)
		}
	}
	return ret
}

func (v *ValidationError) Error() string {
	fields := v.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("invalid definition: %s", strings.Join(parts, "; "))
}

func (v *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError is a shortcut for a single invalid field
func NewValidationError(field, reason string) error {
	v := &ValidationError{}
	v.Add(field, reason)
	return v.ErrorOrNil()
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("load test %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type AlreadyRunningError struct {
	ID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("load test %q is already running", e.ID)
}

func (e *AlreadyRunningError) Is(target error) bool { return target == ErrAlreadyRunning }

type NotRunningError struct {
	ID string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("load test %q is not running", e.ID)
}

func (e *NotRunningError) Is(target error) bool { return target == ErrNotRunning }

// ErrorKind is the coarse classification of a transport failure
type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindConnRefused    ErrorKind = "connection_refused"
	KindConnReset      ErrorKind = "connection_reset"
	KindDNS            ErrorKind = "dns"
	KindTLS            ErrorKind = "tls"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindPanic          ErrorKind = "panic"
	KindOther          ErrorKind = "other"
)

// InvocationError is a per-request transport failure. It is recorded in an Outcome and counted,
// never returned up the call stack
type InvocationError struct {
	Kind ErrorKind
	Err  error
}

func (e *InvocationError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) Is(target error) bool { return target == ErrInvocation }

// WorkerFault reports that the isolated execution context terminated without a result.
// ExitCode is -1 when the worker was not a process or never exited normally
type WorkerFault struct {
	ID       string
	ExitCode int
	Reason   string
	Err      error
}

func (e *WorkerFault) Error() string {
	msg := fmt.Sprintf("worker for %q failed", e.ID)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Reason != "" {
		msg = msg + ": " + e.Reason
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *WorkerFault) Unwrap() error { return e.Err }

func (e *WorkerFault) Is(target error) bool { return target == ErrWorkerFault }
