package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBudget() Budget {
	return Budget{
		PerTaskTimeout: 200 * time.Millisecond,
		StageTimeout:   200 * time.Millisecond,
		TotalTimeout:   time.Second,
		Concurrency:    4,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
	}
}

func makeUnits(n int) []Unit[int] {
	units := make([]Unit[int], n)
	for i := range units {
		units[i] = Unit[int]{ID: fmt.Sprintf("u%d", i), Title: fmt.Sprintf("unit %d", i), Payload: i}
	}
	return units
}

func TestFanOut_OneOutcomePerUnit(t *testing.T) {
	for _, n := range []int{0, 1, 3, 17} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			units := makeUnits(n)
			outcomes := FanOut(context.Background(), units, func(_ context.Context, u Unit[int]) (int, error) {
				return u.Payload * 2, nil
			}, testBudget())

			require.Len(t, outcomes, n)
			for i, o := range outcomes {
				assert.Equal(t, units[i].ID, o.UnitID)
				assert.Equal(t, units[i].Title, o.Title)
				assert.NoError(t, o.Err)
				assert.Equal(t, i*2, o.Value)
			}
		})
	}
}

func TestFanOut_ConcurrencyNeverExceedsLimit(t *testing.T) {
	const limit = 3
	budget := testBudget()
	budget.Concurrency = limit

	var inFlight, peak atomic.Int64
	outcomes := FanOut(context.Background(), makeUnits(20), func(_ context.Context, u Unit[int]) (int, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return u.Payload, nil
	}, budget)

	require.Len(t, outcomes, 20)
	assert.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestFanOut_FailureIsolation(t *testing.T) {
	// Unit B always fails; A and C must still succeed.
	units := []Unit[int]{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C"},
	}
	outcomes := FanOut(context.Background(), units, func(_ context.Context, u Unit[int]) (int, error) {
		if u.ID == "b" {
			return 0, fmt.Errorf("service exploded")
		}
		return 42, nil
	}, testBudget())

	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 42, outcomes[0].Value)

	require.Error(t, outcomes[1].Err)
	assert.Equal(t, "b", outcomes[1].UnitID)
	assert.Equal(t, "B", outcomes[1].Title)
	assert.ErrorIs(t, outcomes[1].Err, ErrRemote)

	assert.NoError(t, outcomes[2].Err)
}

func TestFanOut_PanicConvertedToErrorOutcome(t *testing.T) {
	outcomes := FanOut(context.Background(), makeUnits(2), func(_ context.Context, u Unit[int]) (int, error) {
		if u.Payload == 1 {
			panic("boom")
		}
		return 7, nil
	}, testBudget())

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	require.Error(t, outcomes[1].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrRemote)
	assert.Contains(t, outcomes[1].Err.Error(), "panic")
}

func TestFanOut_PerTaskTimeout(t *testing.T) {
	budget := testBudget()
	budget.PerTaskTimeout = 20 * time.Millisecond

	outcomes := FanOut(context.Background(), makeUnits(1), func(ctx context.Context, _ Unit[int]) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, budget)

	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[0].Err, ErrTimeout)
}

func TestFanOut_CancelledRunPreservesCompletedOutcomes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	outcomes := make(chan []Outcome[int], 1)
	go func() {
		defer close(done)
		outcomes <- FanOut(ctx, makeUnits(2), func(ctx context.Context, u Unit[int]) (int, error) {
			if u.Payload == 0 {
				return 99, nil // completes before the cancel
			}
			<-ctx.Done()
			return 0, ctx.Err()
		}, testBudget())
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fan-out did not return after cancellation")
	}

	got := <-outcomes
	require.Len(t, got, 2)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, 99, got[0].Value)
	require.Error(t, got[1].Err)
	assert.ErrorIs(t, got[1].Err, ErrTimeout)
}

func TestFanOut_OrderMatchesInputNotCompletion(t *testing.T) {
	units := makeUnits(6)
	outcomes := FanOut(context.Background(), units, func(_ context.Context, u Unit[int]) (int, error) {
		// Later units finish first.
		time.Sleep(time.Duration(6-u.Payload) * 3 * time.Millisecond)
		return u.Payload, nil
	}, testBudget())

	require.Len(t, outcomes, 6)
	for i, o := range outcomes {
		assert.Equal(t, units[i].ID, o.UnitID)
		assert.Equal(t, i, o.Value)
	}
}
