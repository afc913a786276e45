package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aggIn struct{ ids []string }

type aggOut struct {
	entries  []string
	degraded bool
}

func TestAggregate_SuccessSkipsFallback(t *testing.T) {
	fallbacks := 0
	out, degraded := Aggregate(context.Background(), "test", aggIn{}, func(context.Context, aggIn) (aggOut, error) {
		return aggOut{entries: []string{"a"}}, nil
	}, testBudget(), func(aggIn, error) aggOut {
		fallbacks++
		return aggOut{degraded: true}
	})

	assert.False(t, degraded)
	assert.Equal(t, 0, fallbacks)
	assert.Equal(t, []string{"a"}, out.entries)
}

func TestAggregate_FallbackInvokedExactlyOnceAfterRetries(t *testing.T) {
	budget := testBudget()
	budget.MaxRetries = 2

	calls, fallbacks := 0, 0
	var cause error
	out, degraded := Aggregate(context.Background(), "test", aggIn{ids: []string{"m1", "m2"}},
		func(context.Context, aggIn) (aggOut, error) {
			calls++
			return aggOut{}, fmt.Errorf("llm call %d failed", calls)
		}, budget,
		func(in aggIn, err error) aggOut {
			fallbacks++
			cause = err
			return aggOut{entries: append([]string(nil), in.ids...), degraded: true}
		})

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, fallbacks)
	assert.True(t, degraded)
	assert.True(t, out.degraded)
	// One entry per originally requested id.
	assert.Equal(t, []string{"m1", "m2"}, out.entries)
	require.Error(t, cause)
	assert.ErrorIs(t, cause, ErrRemote)
	assert.Contains(t, cause.Error(), "call 3")
}

func TestAggregate_StageTimeoutCancelsAttempt(t *testing.T) {
	budget := testBudget()
	budget.StageTimeout = 20 * time.Millisecond
	budget.MaxRetries = 0

	_, degraded := Aggregate(context.Background(), "test", aggIn{},
		func(ctx context.Context, _ aggIn) (aggOut, error) {
			<-ctx.Done()
			return aggOut{}, ctx.Err()
		}, budget,
		func(_ aggIn, err error) aggOut {
			assert.ErrorIs(t, err, ErrTimeout)
			return aggOut{degraded: true}
		})

	assert.True(t, degraded)
}

func TestAggregate_PanicDegradesToFallback(t *testing.T) {
	budget := testBudget()
	budget.MaxRetries = 0

	_, degraded := Aggregate(context.Background(), "test", aggIn{},
		func(context.Context, aggIn) (aggOut, error) {
			panic("bad parse")
		}, budget,
		func(aggIn, error) aggOut { return aggOut{degraded: true} })

	assert.True(t, degraded)
}

func TestAggregate_DeadContextGoesStraightToFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	budget := testBudget()
	budget.MaxRetries = 5
	budget.RetryDelay = time.Second

	calls := 0
	start := time.Now()
	_, degraded := Aggregate(ctx, "test", aggIn{},
		func(ctx context.Context, _ aggIn) (aggOut, error) {
			calls++
			return aggOut{}, ctx.Err()
		}, budget,
		func(aggIn, error) aggOut { return aggOut{degraded: true} })

	assert.True(t, degraded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestNormalizeEntries(t *testing.T) {
	type entry struct{ id, text string }
	idOf := func(e entry) string { return e.id }
	placeholder := func(id string) entry { return entry{id: id, text: "unavailable"} }

	t.Run("missing id synthesized", func(t *testing.T) {
		got := NormalizeEntries([]string{"a", "b"}, []entry{{id: "a", text: "hi"}}, idOf, placeholder)
		require.Len(t, got, 2)
		assert.Equal(t, "hi", got[0].text)
		assert.Equal(t, entry{id: "b", text: "unavailable"}, got[1])
	})

	t.Run("unrequested id discarded", func(t *testing.T) {
		got := NormalizeEntries([]string{"a"}, []entry{{id: "zzz", text: "noise"}, {id: "a", text: "hi"}}, idOf, placeholder)
		require.Len(t, got, 1)
		assert.Equal(t, "hi", got[0].text)
	})

	t.Run("duplicate id first wins", func(t *testing.T) {
		got := NormalizeEntries([]string{"a"}, []entry{{id: "a", text: "first"}, {id: "a", text: "second"}}, idOf, placeholder)
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].text)
	})

	t.Run("requested order preserved", func(t *testing.T) {
		got := NormalizeEntries([]string{"c", "a", "b"}, []entry{{id: "a"}, {id: "b"}, {id: "c"}}, idOf, placeholder)
		require.Len(t, got, 3)
		assert.Equal(t, "c", got[0].id)
		assert.Equal(t, "a", got[1].id)
		assert.Equal(t, "b", got[2].id)
	})

	t.Run("empty ids", func(t *testing.T) {
		got := NormalizeEntries(nil, []entry{{id: "a"}}, idOf, placeholder)
		assert.Empty(t, got)
	})
}
