package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOutcome_SuccessReturnsImmediately(t *testing.T) {
	budget := Budget{MaxRetries: 3, RetryDelay: time.Millisecond}

	calls := 0
	out := RetryOutcome(context.Background(), budget, func(context.Context) Outcome[string] {
		calls++
		return Outcome[string]{UnitID: "x", Value: "ok"}
	})

	assert.Equal(t, 1, calls)
	assert.NoError(t, out.Err)
	assert.Equal(t, "ok", out.Value)
}

func TestRetryOutcome_ExactAttemptCountAndLastErrorWins(t *testing.T) {
	budget := Budget{MaxRetries: 2, RetryDelay: time.Millisecond}

	calls := 0
	out := RetryOutcome(context.Background(), budget, func(context.Context) Outcome[string] {
		calls++
		return Outcome[string]{UnitID: "x", Err: fmt.Errorf("attempt %d failed", calls)}
	})

	// max_retries + 1 invocations.
	assert.Equal(t, 3, calls)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "attempt 3")
}

func TestRetryOutcome_SucceedsMidway(t *testing.T) {
	budget := Budget{MaxRetries: 3, RetryDelay: time.Millisecond}

	calls := 0
	out := RetryOutcome(context.Background(), budget, func(context.Context) Outcome[int] {
		calls++
		if calls < 3 {
			return Outcome[int]{Err: fmt.Errorf("transient")}
		}
		return Outcome[int]{Value: 5}
	})

	assert.Equal(t, 3, calls)
	assert.NoError(t, out.Err)
	assert.Equal(t, 5, out.Value)
}

func TestRetryOutcome_ZeroRetriesSingleAttempt(t *testing.T) {
	calls := 0
	out := RetryOutcome(context.Background(), Budget{}, func(context.Context) Outcome[int] {
		calls++
		return Outcome[int]{Err: fmt.Errorf("nope")}
	})

	assert.Equal(t, 1, calls)
	assert.Error(t, out.Err)
}

func TestRetryOutcome_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	budget := Budget{MaxRetries: 10, RetryDelay: 50 * time.Millisecond}

	calls := 0
	start := time.Now()
	out := RetryOutcome(ctx, budget, func(context.Context) Outcome[int] {
		calls++
		cancel()
		return Outcome[int]{Err: fmt.Errorf("fail %d", calls)}
	})

	assert.Equal(t, 1, calls)
	require.Error(t, out.Err)
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestSleepRetry_ZeroDelay(t *testing.T) {
	assert.True(t, sleepRetry(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepRetry(ctx, 0))
}
