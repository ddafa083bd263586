package loadtest

import (
	"sort"
	"sync"
	"time"

	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
)

const maxPrealloc = 1 << 20

// Aggregator folds outcomes into running statistics. Add may be called from any number of goroutines
type Aggregator struct {
	mu sync.Mutex

	total     int64
	succeeded int64
	failed    int64
	sumMs     float64
	latencies []float64
	codes     StatusCounts
	errs      ErrorCounts
}

// NewAggregator creates an aggregator. expected is a capacity hint for the latency slice
func NewAggregator(expected int64) *Aggregator {
	if expected < 0 {
		expected = 0
	} else if expected > maxPrealloc {
		expected = maxPrealloc
	}
	return &Aggregator{
		latencies: make([]float64, 0, expected),
		codes:     make(StatusCounts),
		errs:      make(ErrorCounts),
	}
}

// Add records a single outcome
func (a *Aggregator) Add(o http.Outcome) {
	ms := o.LatencyMs()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if o.Succeeded {
		a.succeeded++
	} else {
		a.failed++
	}
	a.sumMs += ms
	a.latencies = append(a.latencies, ms)
	if o.StatusCode != 0 {
		a.codes[o.StatusCode]++
	}
	if o.Err != nil {
		kind := o.Err.Kind
		if kind == "" {
			kind = errors2.KindOther
		}
		a.errs[kind]++
	}
}

// Progress returns the live counters. elapsed is supplied by the caller who owns the run clock
func (a *Aggregator) Progress(elapsed time.Duration, windows int64) Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Progress{
		Total:     a.total,
		Succeeded: a.succeeded,
		Failed:    a.failed,
		ElapsedMs: durationMs(elapsed),
		Windows:   windows,
	}
}

// Finalize computes the RunResult for the outcomes recorded so far. The aggregator may still be
// used afterwards, the result does not share memory with it
func (a *Aggregator) Finalize(start, end time.Time, cancelled bool) *RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := &RunResult{
		Total:       a.total,
		Succeeded:   a.succeeded,
		Failed:      a.failed,
		LatenciesMs: append(Latencies(nil), a.latencies...),
		StatusCodes: make(StatusCounts, len(a.codes)),
		Errors:      make(ErrorCounts, len(a.errs)),
		StartedAt:   start,
		FinishedAt:  end,
		ElapsedMs:   durationMs(end.Sub(start)),
		Cancelled:   cancelled,
	}
	for k, v := range a.codes {
		r.StatusCodes[k] = v
	}
	for k, v := range a.errs {
		r.Errors[k] = v
	}

	if a.total == 0 {
		return r
	}
	r.AverageLatencyMs = a.sumMs / float64(a.total)

	sorted := append([]float64(nil), a.latencies...)
	sort.Float64s(sorted)
	r.MinLatencyMs = sorted[0]
	r.MaxLatencyMs = sorted[len(sorted)-1]
	r.P50LatencyMs = Percentile(sorted, 50)
	r.P90LatencyMs = Percentile(sorted, 90)
	r.P95LatencyMs = Percentile(sorted, 95)
	r.P99LatencyMs = Percentile(sorted, 99)

	if r.ElapsedMs > 0 {
		r.RequestsPerSecond = float64(a.total) / (r.ElapsedMs / 1000)
	}
	return r
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
