package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/log"
	"golang.org/x/time/rate"
)

// EmitFunc receives every outcome as soon as it is known. It is called concurrently
type EmitFunc func(http.Outcome)

// Dispatcher drives the invoker at a fixed rate for a fixed duration. A dispatcher owns its connection
// pool and may run several times, though not concurrently
type Dispatcher struct {
	config  *Config
	invoker *http.Invoker

	seq     int64
	windows int64
}

// NewDispatcher creates a dispatcher with the default config modified by opts
func NewDispatcher(opts ...ConfigOption) *Dispatcher {
	d := &Dispatcher{config: NewDefaultConfig()}
	for _, o := range opts {
		o(d.config)
	}
	if d.config.Window <= 0 {
		d.config.Window = DefaultWindow
	}
	if d.config.Pacing == "" {
		d.config.Pacing = DefaultPacing
	}
	d.invoker = http.NewInvoker(d.config.HTTP)
	return d
}

func (d *Dispatcher) Config() *Config {
	return d.config
}

// Windows returns the number of completed batches of the current run
func (d *Dispatcher) Windows() int64 {
	return atomic.LoadInt64(&d.windows)
}

// Invocations returns the number of invocations launched by the current run
func (d *Dispatcher) Invocations() int64 {
	return atomic.LoadInt64(&d.seq)
}

// Run issues req at rps requests per second for duration, passing every outcome to emit.
// Invocations that are in flight when the duration elapses or ctx is cancelled are always awaited,
// so every launched invocation reaches emit before Run returns.
// Run returns ctx.Err() when the run was cut short by ctx, nil otherwise
func (d *Dispatcher) Run(ctx context.Context, req *http.Request, rps int64, duration time.Duration, emit EmitFunc) error {
	verr := &errors2.ValidationError{}
	if rps <= 0 {
		verr.Add("rate", "must be greater than 0")
	}
	if duration <= 0 {
		verr.Add("duration", "must be greater than 0")
	}
	if !d.config.Pacing.Valid() {
		verr.Addf("pacing", "unknown pacing %q", d.config.Pacing)
	}
	creq, err := http.Compile(req)
	if err != nil {
		verr.Add("request", err.Error())
	}
	if err := verr.ErrorOrNil(); err != nil {
		return err
	}

	atomic.StoreInt64(&d.seq, 0)
	atomic.StoreInt64(&d.windows, 0)

	log.Debug().
		Str("url", creq.URL()).
		Int64("rate", rps).
		Dur("duration", duration).
		Str("pacing", string(d.config.Pacing)).
		Msg("dispatch starting")

	switch d.config.Pacing {
	case PacingTokenBucket:
		d.runTokenBucket(ctx, creq, rps, duration, emit)
	default:
		d.runBatched(ctx, creq, rps, duration, emit)
	}

	log.Debug().
		Int64("invocations", d.Invocations()).
		Int64("windows", d.Windows()).
		Bool("cancelled", ctx.Err() != nil).
		Msg("dispatch finished")
	return ctx.Err()
}

// runBatched launches rps invocations per window behind a barrier. The next window starts at the
// later of window start + Window and the barrier clearing. Windows start while elapsed < duration
func (d *Dispatcher) runBatched(ctx context.Context, req *http.CompiledRequest, rps int64, duration time.Duration, emit EmitFunc) {
	var (
		start       = time.Now()
		windowStart = start
		wg          sync.WaitGroup
		timer       = time.NewTimer(0)
	)
	<-timer.C
	defer timer.Stop()

	for windowStart.Sub(start) < duration {
		if ctx.Err() != nil {
			return
		}

		for i := int64(0); i < rps; i++ {
			seq := atomic.AddInt64(&d.seq, 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				emit(d.invoker.Invoke(req, seq))
			}()
		}
		wg.Wait()
		atomic.AddInt64(&d.windows, 1)

		next := windowStart.Add(d.config.Window)
		if wait := time.Until(next); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			windowStart = next
		} else {
			// the batch overran its window, the next one starts immediately
			windowStart = time.Now()
		}
	}
}

// runTokenBucket launches one invocation per token until the duration elapses, then awaits
// everything still in flight. The bucket holds up to one second of tokens so a late wakeup catches
// up instead of dropping what it owes. It starts empty so t=0 does not fire a full second at once
func (d *Dispatcher) runTokenBucket(ctx context.Context, req *http.CompiledRequest, rps int64, duration time.Duration, emit EmitFunc) {
	var (
		start   = time.Now()
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
		wg      sync.WaitGroup
	)
	defer wg.Wait()
	limiter.AllowN(start, int(rps))

	// Wait fails as soon as the next token would arrive past the deadline
	wctx, cancel := context.WithDeadline(ctx, start.Add(duration))
	defer cancel()

	for time.Since(start) < duration {
		if err := limiter.Wait(wctx); err != nil {
			return
		}
		seq := atomic.AddInt64(&d.seq, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			emit(d.invoker.Invoke(req, seq))
		}()
	}
}
