package benchmark

import (
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
)

func outcome(i int) http.Outcome {
	o := http.Outcome{Seq: int64(i), Latency: time.Duration(i%250) * time.Millisecond}
	switch {
	case i%10 == 9:
		o.Err = &errors2.InvocationError{Kind: errors2.KindTimeout}
	case i%10 == 8:
		o.StatusCode = 503
	default:
		o.StatusCode = 200
		o.Succeeded = true
	}
	return o
}

// channelAggregator funnels outcomes through a channel to a single goroutine owning the aggregator
type channelAggregator struct {
	in   chan http.Outcome
	done chan struct{}
	agg  *loadtest.Aggregator
}

func newChannelAggregator(expected int64) *channelAggregator {
	c := &channelAggregator{
		in:   make(chan http.Outcome, 1024),
		done: make(chan struct{}),
		agg:  loadtest.NewAggregator(expected),
	}
	go func() {
		defer close(c.done)
		for o := range c.in {
			c.agg.Add(o)
		}
	}()
	return c
}

func (c *channelAggregator) Add(o http.Outcome) {
	c.in <- o
}

func (c *channelAggregator) Close() {
	close(c.in)
	<-c.done
}

func fanIn(workers, per int, add func(http.Outcome)) {
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				add(outcome(w*per + i))
			}
		}(w)
	}
	wg.Wait()
}

func BenchmarkAggregatorMutex(b *testing.B) {
	for _, workers := range []int{1, 16, 256} {
		b.Run(spew.Sprintf("%d", workers), func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				agg := loadtest.NewAggregator(10000)
				fanIn(workers, 10000/workers, agg.Add)
			}
		})
	}
}

func BenchmarkAggregatorChannel(b *testing.B) {
	for _, workers := range []int{1, 16, 256} {
		b.Run(spew.Sprintf("%d", workers), func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				agg := newChannelAggregator(10000)
				fanIn(workers, 10000/workers, agg.Add)
				agg.Close()
			}
		})
	}
}

func BenchmarkFinalize(b *testing.B) {
	agg := loadtest.NewAggregator(100000)
	fanIn(16, 100000/16, agg.Add)
	start := time.Now()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		agg.Finalize(start, start.Add(10*time.Second), false)
	}
}

// TestAggregatorsAgree checks both fan in models count the same outcomes
func TestAggregatorsAgree(t *testing.T) {
	mutex := loadtest.NewAggregator(1000)
	fanIn(8, 125, mutex.Add)

	ch := newChannelAggregator(1000)
	fanIn(8, 125, ch.Add)
	ch.Close()

	start := time.Now()
	a := mutex.Finalize(start, start.Add(time.Second), false)
	c := ch.agg.Finalize(start, start.Add(time.Second), false)

	if !assert.Equal(t, a.Total, c.Total) || !assert.Equal(t, a.StatusCodes, c.StatusCodes) {
		spew.Dump(a, c)
	}
	assert.Equal(t, int64(1000), a.Total)
	assert.Equal(t, int64(800), a.Succeeded)
	assert.Equal(t, int64(100), a.StatusCodes[503])
	assert.Equal(t, int64(100), a.Errors[errors2.KindTimeout])
	assert.Equal(t, a.P99LatencyMs, c.P99LatencyMs)
}
