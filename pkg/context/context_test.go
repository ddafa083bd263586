package context

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithInterruptCancellation(t *testing.T) {
	ctx, cancel := WithInterruptCancellation(context.Background())
	assert.NoError(t, ctx.Err())
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestContext(t *testing.T) {
	ctx := Context()
	assert.Equal(t, ctx, Context(), "the global context is created once")
	assert.NoError(t, ctx.Err())
	Cancel()
	assert.Error(t, Context().Err())
}
