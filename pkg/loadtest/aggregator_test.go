package loadtest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
)

func outcome(code int, ms int) http.Outcome {
	return http.Outcome{
		StatusCode: code,
		Latency:    time.Duration(ms) * time.Millisecond,
		Succeeded:  http.StatusSucceeded(code),
	}
}

func failure(kind errors2.ErrorKind, ms int) http.Outcome {
	return http.Outcome{
		Latency: time.Duration(ms) * time.Millisecond,
		Err:     &errors2.InvocationError{Kind: kind},
	}
}

func TestAggregator_Empty(t *testing.T) {
	a := NewAggregator(0)
	now := time.Now()
	r := a.Finalize(now, now, false)

	assert.NoError(t, r.Check())
	assert.Equal(t, int64(0), r.Total)
	assert.Equal(t, float64(0), r.AverageLatencyMs)
	assert.Equal(t, float64(0), r.P99LatencyMs)
	assert.Equal(t, float64(0), r.RequestsPerSecond)
	assert.Empty(t, r.LatenciesMs)
}

func TestAggregator_Finalize(t *testing.T) {
	a := NewAggregator(10)
	a.Add(outcome(200, 10))
	a.Add(outcome(201, 20))
	a.Add(outcome(302, 30))
	a.Add(outcome(404, 40))
	a.Add(outcome(500, 50))
	a.Add(failure(errors2.KindTimeout, 100))
	a.Add(failure(errors2.KindConnRefused, 1))
	a.Add(failure("", 2))

	start := time.Now()
	r := a.Finalize(start, start.Add(2*time.Second), false)

	require.NoError(t, r.Check())
	assert.Equal(t, int64(8), r.Total)
	assert.Equal(t, int64(3), r.Succeeded)
	assert.Equal(t, int64(5), r.Failed)
	assert.Equal(t, StatusCounts{200: 1, 201: 1, 302: 1, 404: 1, 500: 1}, r.StatusCodes)
	assert.Equal(t, ErrorCounts{errors2.KindTimeout: 1, errors2.KindConnRefused: 1, errors2.KindOther: 1}, r.Errors)
	assert.Equal(t, float64(1), r.MinLatencyMs)
	assert.Equal(t, float64(100), r.MaxLatencyMs)
	assert.InDelta(t, 4.0, r.RequestsPerSecond, 0.0001)
	assert.Equal(t, float64(2000), r.ElapsedMs)
	assert.False(t, r.Cancelled)
	assert.Equal(t, StateCompleted, r.State())

	// the average is re-derivable from the recorded latencies
	var sum float64
	for _, v := range r.LatenciesMs {
		sum += v
	}
	assert.InDelta(t, sum/float64(len(r.LatenciesMs)), r.AverageLatencyMs, 1e-9)
}

func TestAggregator_FinalizeDoesNotShareMemory(t *testing.T) {
	a := NewAggregator(0)
	a.Add(outcome(200, 1))
	r := a.Finalize(time.Now(), time.Now(), true)
	a.Add(outcome(500, 1))

	assert.Equal(t, int64(1), r.Total)
	assert.Len(t, r.LatenciesMs, 1)
	assert.Equal(t, StateCancelled, r.State())
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	a := NewAggregator(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					a.Add(outcome(200, j))
				} else {
					a.Add(outcome(503, j))
				}
			}
		}(i)
	}
	wg.Wait()

	r := a.Finalize(time.Now(), time.Now(), false)
	require.NoError(t, r.Check())
	assert.Equal(t, int64(5000), r.Total)
	assert.Equal(t, int64(2500), r.Succeeded)
	assert.Equal(t, int64(2500), r.Failed)

	p := a.Progress(time.Second, 3)
	assert.Equal(t, Progress{Total: 5000, Succeeded: 2500, Failed: 2500, ElapsedMs: 1000, Windows: 3}, p)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p        float64
		expected float64
	}{
		{0, 1},
		{50, 5.5},
		{90, 9.1},
		{100, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, Percentile(sorted, tt.p), 1e-9, "p%v", tt.p)
	}
	assert.Equal(t, float64(0), Percentile(nil, 50))
	assert.Equal(t, float64(7), Percentile([]float64{7}, 99))
}
