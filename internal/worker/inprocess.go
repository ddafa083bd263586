package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"

	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/surgehq/surge/pkg/log"
)

// InProcessSpawner hosts runs on a supervised goroutine of the current process. The job and every message
// still cross the boundary serialized, the worker shares no memory with its caller
type InProcessSpawner struct{}

var _ Spawner = &InProcessSpawner{}

func NewInProcessSpawner() *InProcessSpawner {
	return &InProcessSpawner{}
}

func (s *InProcessSpawner) Isolation() Isolation {
	return IsolationInProcess
}

func (s *InProcessSpawner) Spawn(ctx context.Context, job *Job, onProgress loadtest.ProgressFunc) (*loadtest.RunResult, error) {
	id := job.Definition.ID
	data, err := encodeJob(job)
	if err != nil {
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "failed to encode job", Err: err}
	}

	pr, pw := io.Pipe()
	served := make(chan error, 1)
	go func() {
		var serveErr error
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("id", id).Interface("panic", r).Msg("in process worker panicked")
				serveErr = fmt.Errorf("worker panic: %v", r)
			}
			pw.CloseWithError(io.EOF)
			served <- serveErr
		}()
		serveErr = Serve(ctx, bytes.NewReader(data), pw)
	}()

	out, readErr := readMessages(pr, id, onProgress)
	serveErr := <-served

	switch {
	case out.fault != "":
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: out.fault, Err: serveErr}
	case serveErr != nil:
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "worker failed", Err: serveErr}
	case readErr != nil:
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "failed to read worker output", Err: readErr}
	case out.result == nil:
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "worker exited without a result"}
	}
	return out.result, nil
}
