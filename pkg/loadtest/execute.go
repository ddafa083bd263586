package loadtest

import (
	"context"
	"errors"
	"time"

	"github.com/surgehq/surge/pkg/log"
)

// Execute runs def to completion and returns its result. It composes a Dispatcher and an Aggregator and
// streams progress to the configured ProgressFunc.
//
// The only error returned is a *errors.ValidationError for a bad definition. A cancelled ctx ends the run
// early with a partial result flagged Cancelled. Invocation failures are counted in the result
func Execute(ctx context.Context, def *Definition, opts ...ConfigOption) (*RunResult, error) {
	def = def.Clone()
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}

	config := NewDefaultConfig()
	for _, o := range opts {
		o(config)
	}
	config.Pacing = def.Pacing
	config.HTTP.Timeout = def.Timeout(config.HTTP.Timeout)

	d := NewDispatcher(func(c *Config) { *c = *config })
	agg := NewAggregator(def.Rate * def.DurationSeconds)

	start := time.Now()
	done := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		if config.ProgressFunc == nil || config.ProgressInterval <= 0 {
			return
		}
		t := time.NewTicker(config.ProgressInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				config.ProgressFunc(agg.Progress(time.Since(start), d.Windows()))
			}
		}
	}()

	log.Info().Str("id", def.ID).Int64("rate", def.Rate).Int64("duration", def.DurationSeconds).
		Str("pacing", string(def.Pacing)).Str("url", def.Request.URL).Msg("load test starting")

	err := d.Run(ctx, &def.Request, def.Rate, def.Duration(), agg.Add)
	end := time.Now()
	close(done)
	<-progressDone

	cancelled := false
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		cancelled = true
	}

	res := agg.Finalize(start, end, cancelled)
	res.Pacing = def.Pacing
	if config.ProgressFunc != nil {
		config.ProgressFunc(agg.Progress(end.Sub(start), d.Windows()))
	}

	log.Info().Str("id", def.ID).
		Int64("total", res.Total).
		Int64("succeeded", res.Succeeded).
		Int64("failed", res.Failed).
		Float64("avg_ms", res.AverageLatencyMs).
		Bool("cancelled", res.Cancelled).
		Msg("load test finished")
	return res, nil
}
