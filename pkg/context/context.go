package context

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/surgehq/surge/pkg/log"
)

var (
	ctx            context.Context
	cancel         context.CancelFunc
	ctxInitialized sync.Once
)

// AddInterruptCancellation will add an interrupt handler that will catch the first SIGINT/SIGTERM and cancel the context
// upon the second signal, the program will exit immediately
// This wrapping allows for graceful shutdown of the service and lets a worker process flush a partial result
func AddInterruptCancellation(ctx context.Context, cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		interrupts := 0
		for {
			select {
			case <-c:
				interrupts++
				if interrupts > 1 {
					log.Info().Msg("Received multiple interrupt signals. Exiting")
					os.Exit(1)
				}
				log.Info().Msg("Received interrupt signal")
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// WithInterruptCancellation derives a context from parent that is cancelled on the first interrupt signal.
// The returned cancel func must be called to release the signal handler
func WithInterruptCancellation(parent context.Context) (context.Context, context.CancelFunc) {
	c, cncl := context.WithCancel(parent)
	AddInterruptCancellation(c, cncl)
	return c, cncl
}

// InitContext will initialize the global context used to catch interrupts. This is automatically called
// by Context and Cancel
func InitContext() {
	ctxInitialized.Do(func() {
		ctx, cancel = context.WithCancel(context.Background())
		AddInterruptCancellation(ctx, cancel)
	})
}

// Context will initialize the global context and attach the interrupt handler that will cancel the context
// upon SIGTERM. This is safe to call from multiple goroutines and will always return the same context
func Context() context.Context {
	InitContext()
	return ctx
}

// Cancel will cancel the global context. Calling this multiple times is the equivalent of cancelling
// the same context multiple times
func Cancel() {
	InitContext()
	cancel()
}
