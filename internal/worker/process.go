package worker

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/surgehq/surge/pkg/log"
)

const DefaultStopGrace = 10 * time.Second

// ProcessConfig describes how a worker process is launched
type ProcessConfig struct {
	// Executable defaults to the running binary
	Executable string
	// Args are passed to the executable. Defaults to the hidden worker command
	Args []string
	// Env is appended to the environment inherited from the parent
	Env []string
	// StopGrace is how long a stopped worker may take to report its partial result before it is killed
	StopGrace time.Duration
}

// ProcessSpawner hosts every run in its own OS process
type ProcessSpawner struct {
	config ProcessConfig
}

var _ Spawner = &ProcessSpawner{}

func NewProcessSpawner(c ProcessConfig) (*ProcessSpawner, error) {
	if c.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve worker executable")
		}
		c.Executable = exe
	}
	if c.Args == nil {
		c.Args = []string{"worker"}
	}
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
	return &ProcessSpawner{config: c}, nil
}

func (p *ProcessSpawner) Isolation() Isolation {
	return IsolationProcess
}

// Spawn runs the job in a child process. Cancelling ctx sends SIGINT and, if the child has not exited after
// StopGrace, kills it
func (p *ProcessSpawner) Spawn(ctx context.Context, job *Job, onProgress loadtest.ProgressFunc) (*loadtest.RunResult, error) {
	id := job.Definition.ID
	data, err := encodeJob(job)
	if err != nil {
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "failed to encode job", Err: err}
	}

	cmd := exec.CommandContext(ctx, p.config.Executable, p.config.Args...)
	cmd.Env = append(os.Environ(), p.config.Env...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Cancel = func() error {
		log.Debug().Str("id", id).Int("pid", cmd.Process.Pid).Msg("interrupting worker")
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = p.config.StopGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "failed to open stdout", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "failed to open stderr", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &errors2.WorkerFault{ID: id, ExitCode: -1, Reason: "failed to start worker", Err: err}
	}
	log.Debug().Str("id", id).Int("pid", cmd.Process.Pid).Str("exe", p.config.Executable).Msg("worker started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relayLogs(stderr, id)
	}()

	out, readErr := readMessages(stdout, id, onProgress)
	// both pipes must be drained before Wait closes them
	wg.Wait()
	waitErr := cmd.Wait()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	log.Debug().Str("id", id).Int("exit", exitCode).AnErr("wait", waitErr).Msg("worker exited")

	switch {
	case out.fault != "":
		return nil, &errors2.WorkerFault{ID: id, ExitCode: exitCode, Reason: out.fault, Err: waitErr}
	case exitCode != 0:
		return nil, &errors2.WorkerFault{ID: id, ExitCode: exitCode, Reason: "worker exited abnormally", Err: waitErr}
	case readErr != nil:
		return nil, &errors2.WorkerFault{ID: id, ExitCode: exitCode, Reason: "failed to read worker output", Err: readErr}
	case out.result == nil:
		return nil, &errors2.WorkerFault{ID: id, ExitCode: exitCode, Reason: "worker exited without a result", Err: waitErr}
	}
	// a child that exits cleanly after SIGINT still makes Wait report the context error
	return out.result, nil
}

// relayLogs forwards every line the worker logs into our own log at debug level
func relayLogs(r io.Reader, id string) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		log.Debug().Str("id", id).Str("worker", sc.Text()).Msg("worker log")
	}
	if err := sc.Err(); err != nil {
		log.Debug().Err(err).Str("id", id).Msg("worker log relay stopped")
		// keep draining so the child never blocks on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}
