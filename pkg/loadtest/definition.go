package loadtest

import (
	"fmt"
	"strings"
	"time"

	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
)

// Pacing selects how the dispatcher spreads invocations over time
type Pacing string

const (
	// PacingBatched fires rate concurrent invocations at the start of every window and waits for all of
	// them before the next window may begin
	PacingBatched Pacing = "batched"
	// PacingTokenBucket fires one invocation per token of a rate/s bucket with burst 1. There is no barrier
	PacingTokenBucket Pacing = "token_bucket"
)

// DefaultPacing is used when a definition does not name one
const DefaultPacing = PacingBatched

var Pacings = []Pacing{PacingBatched, PacingTokenBucket}

// ParsePacing resolves a user supplied pacing name. The empty string resolves to DefaultPacing
func ParsePacing(in string) (Pacing, error) {
	in = strings.ToLower(strings.TrimSpace(in))
	if in == "" {
		return DefaultPacing, nil
	}
	for _, v := range Pacings {
		if string(v) == in {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown pacing %q", in)
}

func (p Pacing) Valid() bool {
	_, err := ParsePacing(string(p))
	return err == nil
}

const (
	MaxDurationSeconds = 3600
	MaxRate            = 10000
	MaxTimeout         = 60 * time.Second
)

// Definition is an immutable description of a load test. ID and CreatedAt are assigned when the
// definition is stored
type Definition struct {
	ID              string
	Name            string
	CollectionID    string
	Request         http.Request
	DurationSeconds int64
	Rate            int64
	Pacing          Pacing
	// TimeoutMs overrides the per request timeout. 0 uses the configured default
	TimeoutMs int64
	CreatedAt time.Time
}

func (d *Definition) String() string {
	return fmt.Sprintf("{ loadtest %s %q %d rps for %ds %s }", d.ID, d.Name, d.Rate, d.DurationSeconds, d.Request.String())
}

// Normalize trims user input and fills in the default pacing
func (d *Definition) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.CollectionID = strings.TrimSpace(d.CollectionID)
	d.Request.Normalize()
	if d.Pacing == "" {
		d.Pacing = DefaultPacing
	}
}

// Validate reports every invalid field at once as a *errors.ValidationError
func (d *Definition) Validate() error {
	verr := &errors2.ValidationError{}
	if d.Name == "" {
		verr.Add("name", "is required")
	}
	if d.DurationSeconds <= 0 {
		verr.Add("duration_seconds", "must be greater than 0")
	} else if d.DurationSeconds > MaxDurationSeconds {
		verr.Addf("duration_seconds", "must be at most %d", MaxDurationSeconds)
	}
	if d.Rate <= 0 {
		verr.Add("rate", "must be greater than 0")
	} else if d.Rate > MaxRate {
		verr.Addf("rate", "must be at most %d", MaxRate)
	}
	if !d.Pacing.Valid() {
		verr.Addf("pacing", "unknown pacing %q", d.Pacing)
	}
	if d.TimeoutMs < 0 {
		verr.Add("timeout_ms", "must not be negative")
	} else if d.TimeoutMs > MaxTimeout.Milliseconds() {
		verr.Addf("timeout_ms", "must be at most %d", MaxTimeout.Milliseconds())
	}
	d.Request.Validate(verr, "request.")
	return verr.ErrorOrNil()
}

func (d *Definition) Duration() time.Duration {
	return time.Duration(d.DurationSeconds) * time.Second
}

// Timeout returns the per request timeout, falling back to def when the definition has no override
func (d *Definition) Timeout(def time.Duration) time.Duration {
	if d.TimeoutMs > 0 {
		return time.Duration(d.TimeoutMs) * time.Millisecond
	}
	return def
}

// Clone returns a deep copy
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	ret := *d
	ret.Request.Headers = append(http.Headers(nil), d.Request.Headers...)
	return &ret
}
