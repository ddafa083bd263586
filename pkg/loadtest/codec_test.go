package loadtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
)

func TestDefinitionCodec(t *testing.T) {
	d := &Definition{
		ID:           "1sVaHxT7zCkvW2ImHqxWEd0CpZX",
		Name:         "orders",
		CollectionID: "col-1",
		Request: http.Request{
			Method:  "POST",
			URL:     "http://localhost:14000/orders/{{seq}}",
			Headers: http.Headers{{Key: "Content-Type", Value: "application/json"}},
			Body:    `{"id":"{{uuid}}"}`,
		},
		DurationSeconds: 30,
		Rate:            100,
		Pacing:          PacingTokenBucket,
		TimeoutMs:       2500,
		CreatedAt:       time.Date(2021, 4, 1, 10, 0, 0, 123, time.UTC),
	}
	data, err := MarshalDefinition(d)
	require.NoError(t, err)

	got, err := UnmarshalDefinition(data)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestResultCodec(t *testing.T) {
	start := time.Date(2021, 4, 1, 10, 0, 0, 0, time.UTC)
	r := &RunResult{
		Total:             3,
		Succeeded:         1,
		Failed:            2,
		LatenciesMs:       Latencies{1.5, 2, 10.25},
		AverageLatencyMs:  4.583,
		MinLatencyMs:      1.5,
		MaxLatencyMs:      10.25,
		P50LatencyMs:      2,
		P90LatencyMs:      8.6,
		P95LatencyMs:      9.425,
		P99LatencyMs:      10.085,
		StatusCodes:       StatusCounts{200: 1, 500: 1},
		Errors:            ErrorCounts{errors2.KindTimeout: 1},
		StartedAt:         start,
		FinishedAt:        start.Add(3 * time.Second),
		ElapsedMs:         3000,
		RequestsPerSecond: 1,
		Pacing:            PacingBatched,
		Cancelled:         true,
	}
	data, err := MarshalResult(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status_codes":{"200":1,"500":1}`)

	got, err := UnmarshalResult(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestResultCodec_Empty(t *testing.T) {
	data, err := MarshalResult(&RunResult{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"latencies_ms":[]`)

	got, err := UnmarshalResult(data)
	require.NoError(t, err)
	assert.NoError(t, got.Check())
	assert.NotNil(t, got.StatusCodes)
}
