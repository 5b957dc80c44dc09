package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustionMakesMaxRetriesPlusOneAttempts(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	sentinel := errors.New("provider unreachable")
	calls := 0

	err := Do(context.Background(), cfg, func() error {
		calls++
		return sentinel
	})

	assert.Equal(t, 4, calls)
	// the original error propagates unchanged
	assert.Same(t, sentinel, err)
}

func TestDoTotalDelayIsLinearBackoffSum(t *testing.T) {
	base := 20 * time.Millisecond
	cfg := Config{MaxRetries: 3, BaseDelay: base}
	sentinel := errors.New("transient")

	start := time.Now()
	err := Do(context.Background(), cfg, func() error { return sentinel })
	elapsed := time.Since(start)

	require.Error(t, err)
	// delays are base, 2*base, 3*base -> base * 6 in total
	assert.GreaterOrEqual(t, elapsed, 6*base)
	assert.Less(t, elapsed, 12*base)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	cfg := Config{MaxRetries: 5, BaseDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
