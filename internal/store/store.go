package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surgehq/surge/pkg/loadtest"
)

// Record is a stored definition with the state and result of its latest run
type Record struct {
	Definition *loadtest.Definition
	State      loadtest.RunState
	// Result of the latest successful run. A failed run keeps the previous result
	Result     *loadtest.RunResult
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	ret := *r
	ret.Definition = r.Definition.Clone()
	ret.Result = r.Result.Clone()
	return &ret
}

// Filter narrows List. The zero value matches everything
type Filter struct {
	CollectionID string
}

func (f Filter) match(r *Record) bool {
	return f.CollectionID == "" || r.Definition.CollectionID == f.CollectionID
}

// Store persists definitions and results. Implementations are safe for concurrent use.
// Operations on an unknown id return an *errors.NotFoundError
type Store interface {
	// Put inserts a new definition in the not_started state. The id must not exist yet
	Put(ctx context.Context, def *loadtest.Definition) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns the matching records, newest first
	List(ctx context.Context, f Filter) ([]*Record, error)
	// Delete removes a definition together with its result
	Delete(ctx context.Context, id string) error

	MarkRunning(ctx context.Context, id string, at time.Time) error
	// AttachResult stores res as the result of the latest run, replacing any previous one, and moves the
	// record to the terminal state matching the result
	AttachResult(ctx context.Context, id string, res *loadtest.RunResult) error
	// MarkFailed moves the record to failed. The previous result, if any, is kept
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
	// Reconcile fails every record left in the running state, returning their ids. It is called on startup,
	// when no run can be live
	Reconcile(ctx context.Context, reason string) ([]string, error)

	Close() error
}

// Driver names a Store backend
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
)

func ParseDriver(in string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(in))); d {
	case DriverMemory, "":
		return DriverMemory, nil
	case DriverSQLite:
		return d, nil
	}
	return "", fmt.Errorf("unknown store driver %q", in)
}

// Open creates the store for driver. dsn is ignored by the memory driver
func Open(driver, dsn string) (Store, error) {
	d, err := ParseDriver(driver)
	if err != nil {
		return nil, err
	}
	if d == DriverSQLite {
		return OpenSQLite(dsn)
	}
	return NewMemory(), nil
}

// ErrDuplicateID is returned by Put when the id is taken
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("load test %q already exists", e.ID)
}
