package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:                "test",
		MaxFailures:         2,
		OpenTimeout:         time.Minute,
		HalfOpenMaxRequests: 1,
	}, nil)

	boom := errors.New("boom")
	fail := func(context.Context) (any, error) { return nil, boom }

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), fail)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", cb.State())

	called := false
	_, err := cb.Execute(context.Background(), func(context.Context) (any, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	stats := cb.Stats()
	assert.Equal(t, uint64(3), stats.TotalRequests)
	assert.Equal(t, uint64(2), stats.TotalFailures)
	assert.Equal(t, uint64(1), stats.Rejected)
}

func TestCircuitBreakerPassesResult(t *testing.T) {
	cb := NewCircuitBreaker(DefaultBreakerConfig("pass"), nil)

	got, err := cb.Execute(context.Background(), func(context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(DefaultBreakerConfig("ctx"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func(context.Context) (any, error) {
		t.Fatal("should not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
