package worker

import (
	"context"
	"fmt"
	"io"

	"github.com/francoispqt/gojay"
	"github.com/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/surgehq/surge/pkg/log"
)

// Serve is the worker side of the protocol. It reads one Job from in, executes it and writes progress
// messages followed by exactly one result or fault message to out.
//
// Cancelling ctx stops the run early, the partial result is still written and Serve returns nil.
// A bad job or a panic produce a fault message and an error
func Serve(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	w := &messageWriter{w: out}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("worker panicked")
			w.fault(fmt.Sprintf("panic: %v", r))
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	job := &Job{}
	if err := gojay.NewDecoder(in).DecodeObject(job); err != nil {
		w.fault("invalid job: " + err.Error())
		return errors.Wrap(err, "failed to decode job")
	}
	if job.Definition == nil {
		w.fault("invalid job: missing definition")
		return fmt.Errorf("job has no definition")
	}

	logger := log.Logger().With().Str("id", job.Definition.ID).Logger()
	logger.Debug().Str("definition", job.Definition.String()).Msg("worker received job")

	res, err := loadtest.Execute(ctx, job.Definition,
		loadtest.HTTPConfig(job.HTTP),
		loadtest.ProgressInterval(job.ProgressInterval),
		loadtest.OnProgress(func(p loadtest.Progress) {
			if err := w.write(&Message{Type: MessageProgress, Progress: &p}); err != nil {
				logger.Debug().Err(err).Msg("failed to send progress")
			}
		}),
	)
	if err != nil {
		w.fault(err.Error())
		return err
	}

	if err := w.write(&Message{Type: MessageResult, Result: res}); err != nil {
		return err
	}
	logger.Debug().Int64("total", res.Total).Bool("cancelled", res.Cancelled).Msg("worker sent result")
	return nil
}
