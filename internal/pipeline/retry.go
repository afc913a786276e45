package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryOutcome invokes fn until it returns an error-free outcome, up to
// budget.MaxRetries additional attempts beyond the first, sleeping the fixed
// budget.RetryDelay between attempts. When every attempt fails, the LAST
// attempt's outcome is returned: later diagnostics supersede earlier ones.
// Context cancellation stops further attempts immediately.
func RetryOutcome[R any](ctx context.Context, budget Budget, fn func(ctx context.Context) Outcome[R]) Outcome[R] {
	attempts := budget.MaxRetries + 1

	var last Outcome[R]
	for attempt := 0; attempt < attempts; attempt++ {
		last = fn(ctx)
		if last.Err == nil {
			return last
		}

		// No point retrying once the run's deadline is gone.
		if ctx.Err() != nil {
			return last
		}

		if attempt >= attempts-1 {
			break
		}

		zap.L().Debug("retrying unit",
			zap.String("unit", last.UnitID),
			zap.Int("attempt", attempt+1),
			zap.Error(last.Err),
		)

		if !sleepRetry(ctx, budget.RetryDelay) {
			return last
		}
	}
	return last
}

// sleepRetry waits for the fixed retry delay, returning false if ctx dies
// first.
func sleepRetry(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
