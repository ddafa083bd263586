package loadtest

import (
	"fmt"
	"sort"
	"time"

	errors2 "github.com/surgehq/surge/pkg/errors"
)

// StatusCounts maps a response status code to the number of responses carrying it
type StatusCounts map[int]int64

// ErrorCounts maps a transport failure kind to the number of invocations that failed with it
type ErrorCounts map[errors2.ErrorKind]int64

// Latencies holds one latency in milliseconds per invocation, in completion order
type Latencies []float64

// RunResult is the aggregate of one execution of a definition. Every invocation is accounted for
// exactly once: Succeeded + Failed == Total and len(LatenciesMs) == Total
type RunResult struct {
	Total     int64
	Succeeded int64
	Failed    int64

	LatenciesMs      Latencies
	AverageLatencyMs float64
	MinLatencyMs     float64
	MaxLatencyMs     float64
	P50LatencyMs     float64
	P90LatencyMs     float64
	P95LatencyMs     float64
	P99LatencyMs     float64

	StatusCodes StatusCounts
	Errors      ErrorCounts

	StartedAt         time.Time
	FinishedAt        time.Time
	ElapsedMs         float64
	RequestsPerSecond float64
	Pacing            Pacing
	// Cancelled is set when the run was stopped before its duration elapsed
	Cancelled bool
}

// Check verifies the counts of the result add up
func (r *RunResult) Check() error {
	if r.Succeeded+r.Failed != r.Total {
		return fmt.Errorf("succeeded (%d) + failed (%d) != total (%d)", r.Succeeded, r.Failed, r.Total)
	}
	if int64(len(r.LatenciesMs)) != r.Total {
		return fmt.Errorf("%d latencies recorded for %d invocations", len(r.LatenciesMs), r.Total)
	}
	return nil
}

// SuccessRate is the percentage of succeeded invocations, 0 for an empty run
func (r *RunResult) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Total) * 100
}

// State is the terminal state a run with this result ends in
func (r *RunResult) State() RunState {
	if r.Cancelled {
		return StateCancelled
	}
	return StateCompleted
}

// Clone returns a deep copy
func (r *RunResult) Clone() *RunResult {
	if r == nil {
		return nil
	}
	ret := *r
	ret.LatenciesMs = append(Latencies(nil), r.LatenciesMs...)
	ret.StatusCodes = make(StatusCounts, len(r.StatusCodes))
	for k, v := range r.StatusCodes {
		ret.StatusCodes[k] = v
	}
	ret.Errors = make(ErrorCounts, len(r.Errors))
	for k, v := range r.Errors {
		ret.Errors[k] = v
	}
	return &ret
}

// SortedCodes returns the status codes present in ascending order
func (s StatusCounts) SortedCodes() []int {
	ret := make([]int, 0, len(s))
	for k := range s {
		ret = append(ret, k)
	}
	sort.Ints(ret)
	return ret
}

// SortedKinds returns the error kinds present in lexical order
func (e ErrorCounts) SortedKinds() []errors2.ErrorKind {
	ret := make([]errors2.ErrorKind, 0, len(e))
	for k := range e {
		ret = append(ret, k)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Percentile returns the p-th percentile (0-100) of sorted using linear interpolation between the
// closest ranks. sorted must be in ascending order
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
