package loadtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
)

func TestExecute(t *testing.T) {
	srv, _ := stubTarget(t, 200, 0)

	var (
		mu       sync.Mutex
		progress []Progress
	)
	def := &Definition{
		ID:              "run-1",
		Name:            "execute",
		Request:         http.Request{Method: "get", URL: srv.URL + "/items/{{seq}}"},
		DurationSeconds: 2,
		Rate:            5,
	}
	res, err := Execute(context.Background(), def,
		ProgressInterval(300*time.Millisecond),
		OnProgress(func(p Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		}))
	require.NoError(t, err)
	require.NoError(t, res.Check())

	assert.Equal(t, int64(10), res.Total)
	assert.Equal(t, int64(10), res.Succeeded)
	assert.Equal(t, PacingBatched, res.Pacing)
	assert.False(t, res.Cancelled)
	assert.True(t, res.FinishedAt.After(res.StartedAt))
	assert.True(t, res.RequestsPerSecond > 0)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, res.Total, last.Total)
	assert.Equal(t, int64(2), last.Windows)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Total, progress[i-1].Total, "progress never goes backwards")
	}

	// the caller's definition is not modified
	assert.Equal(t, "get", def.Request.Method)
}

func TestExecute_InvalidDefinition(t *testing.T) {
	res, err := Execute(context.Background(), &Definition{Name: "bad"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors2.Is(err, errors2.ErrValidation))
}

func TestExecute_Cancelled(t *testing.T) {
	srv, _ := stubTarget(t, 200, 0)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	res, err := Execute(ctx, &Definition{
		Name:            "cancelled",
		Request:         http.Request{Method: "GET", URL: srv.URL},
		DurationSeconds: 30,
		Rate:            3,
		Pacing:          PacingTokenBucket,
	})
	require.NoError(t, err)
	require.NoError(t, res.Check())
	assert.True(t, res.Cancelled)
	assert.Equal(t, StateCancelled, res.State())
	assert.True(t, res.Total > 0)
	assert.Less(t, res.ElapsedMs, float64(5000))
}

func TestExecute_DefinitionTimeoutOverride(t *testing.T) {
	hang, _ := stubTarget(t, 200, 2*time.Second)

	res, err := Execute(context.Background(), &Definition{
		Name:            "timeout",
		Request:         http.Request{Method: "GET", URL: hang.URL},
		DurationSeconds: 1,
		Rate:            1,
		TimeoutMs:       200,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, int64(1), res.Errors[errors2.KindTimeout])
	assert.Less(t, res.LatenciesMs[0], float64(1000))
}
