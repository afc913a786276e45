package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Unit is one independent item submitted to a fan-out stage. The ID is the
// join key used at assembly time; it is never derived from completion order.
type Unit[T any] struct {
	ID      string
	Title   string
	Payload T
}

// Outcome is the per-unit result of a fan-out stage. Exactly one Outcome
// exists per submitted Unit, whether the computation succeeded or not.
type Outcome[R any] struct {
	UnitID string
	Title  string
	Value  R
	Err    error
}

// OK reports whether the outcome carries a usable value.
func (o Outcome[R]) OK() bool {
	return o.Err == nil
}

// Compute runs one unit's work. Implementations must honor ctx: the fan-out
// stage relies on context cancellation to enforce the per-task timeout and
// to abandon in-flight work when the total deadline elapses.
type Compute[T, R any] func(ctx context.Context, unit Unit[T]) (R, error)

// FanOut runs every unit through compute concurrently, bounded by
// budget.Concurrency, retrying each unit per the budget's retry policy.
// It always returns exactly len(units) outcomes, positionally aligned with
// the input: a unit that fails after all retries yields an outcome carrying
// the last attempt's error, never a panic, and never aborts its siblings.
func FanOut[T, R any](ctx context.Context, units []Unit[T], compute Compute[T, R], budget Budget) []Outcome[R] {
	budget = budget.WithDefaults()
	outcomes := make([]Outcome[R], len(units))
	if len(units) == 0 {
		return outcomes
	}

	sem := semaphore.NewWeighted(int64(budget.Concurrency))

	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		// The unit is passed by value into its goroutine; nothing below
		// reads the loop variables.
		go func(i int, unit Unit[T]) {
			defer wg.Done()
			outcomes[i] = RetryOutcome(ctx, budget, func(ctx context.Context) Outcome[R] {
				return runBounded(ctx, sem, unit, compute, budget)
			})
		}(i, unit)
	}
	wg.Wait()

	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		zap.L().Warn("fan-out completed with failures",
			zap.Int("units", len(units)),
			zap.Int("failed", failed),
		)
	}
	return outcomes
}

// runBounded executes one attempt for a unit: acquire a concurrency slot,
// run compute under the per-task timeout, release the slot on every exit
// path. Panics inside compute are converted to error outcomes.
func runBounded[T, R any](ctx context.Context, sem *semaphore.Weighted, unit Unit[T], compute Compute[T, R], budget Budget) Outcome[R] {
	out := Outcome[R]{UnitID: unit.ID, Title: unit.Title}

	if err := sem.Acquire(ctx, 1); err != nil {
		// Context died while waiting for a slot.
		out.Err = Timeout(err, fmt.Sprintf("fanout: unit %s: wait for slot", unit.ID))
		return out
	}
	defer sem.Release(1)

	tctx, cancel := context.WithTimeout(ctx, budget.PerTaskTimeout)
	defer cancel()

	value, err := safeCompute(tctx, unit, compute)
	if err != nil {
		out.Err = Classify(err, fmt.Sprintf("fanout: unit %s", unit.ID))
		return out
	}
	out.Value = value
	return out
}

// safeCompute invokes compute and converts a panic into an error so one
// misbehaving unit cannot take down the stage.
func safeCompute[T, R any](ctx context.Context, unit Unit[T], compute Compute[T, R]) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Remote(fmt.Errorf("panic: %v", r), fmt.Sprintf("fanout: unit %s", unit.ID))
			zap.L().Error("fan-out computation panicked",
				zap.String("unit", unit.ID),
				zap.Any("panic", r),
			)
		}
	}()
	return compute(ctx, unit)
}
