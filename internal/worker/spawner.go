package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/surgehq/surge/pkg/loadtest"
)

// Isolation names the execution context a run is hosted in
type Isolation string

const (
	// IsolationProcess re-executes the surge binary as a child process per run
	IsolationProcess Isolation = "process"
	// IsolationInProcess runs on a supervised goroutine. Messages are still serialized across the boundary
	IsolationInProcess Isolation = "inprocess"
)

func ParseIsolation(in string) (Isolation, error) {
	switch Isolation(strings.ToLower(strings.TrimSpace(in))) {
	case "", IsolationProcess:
		return IsolationProcess, nil
	case IsolationInProcess:
		return IsolationInProcess, nil
	}
	return "", fmt.Errorf("unknown worker isolation %q", in)
}

// Spawner starts an isolated worker for a job and blocks until it finished.
//
// Cancelling ctx asks the worker to stop. A worker that stops gracefully still returns a partial result.
// Any failure of the worker itself is reported as an *errors.WorkerFault
type Spawner interface {
	Spawn(ctx context.Context, job *Job, onProgress loadtest.ProgressFunc) (*loadtest.RunResult, error)
	Isolation() Isolation
}
