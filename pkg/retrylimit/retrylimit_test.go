package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAndWrapsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return boom
	}, nil, fastConfig(2))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestPermanentStopsImmediately(t *testing.T) {
	boom := errors.New("unsupported")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return Permanent(boom)
	}, nil, fastConfig(5))

	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetryConfig(ctx, func() error { return nil }, nil, fastConfig(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiterBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 2, 0.5)
	lim.cooldown = 0

	lim.Failure()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.Failure()
	lim.Failure()
	assert.Equal(t, 1.0, lim.CurrentLimit())

	lim.lastError = time.Time{}
	for i := 0; i < 10; i++ {
		lim.Success()
	}
	assert.Equal(t, 8.0, lim.CurrentLimit())
}
