package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Aggregate runs one aggregation computation with retry under the budget's
// stage timeout. If every attempt fails, fallback is invoked exactly once
// with the last error to produce a deterministic degraded result; fallback
// must be a pure data transformation that cannot itself fail. The boolean
// return reports whether the fallback was used.
//
// Each attempt gets a fresh StageTimeout context, so a hung aggregation call
// is cancelled rather than left running detached.
func Aggregate[In, Out any](ctx context.Context, stage string, in In, compute func(ctx context.Context, in In) (Out, error), budget Budget, fallback func(in In, cause error) Out) (Out, bool) {
	budget = budget.WithDefaults()
	attempts := budget.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := runAttempt(ctx, in, compute, budget.StageTimeout)
		if err == nil {
			return out, false
		}
		lastErr = Classify(err, stage)

		if ctx.Err() != nil {
			break
		}
		if attempt >= attempts-1 {
			break
		}

		zap.L().Warn("aggregation attempt failed",
			zap.String("stage", stage),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if !sleepRetry(ctx, budget.RetryDelay) {
			break
		}
	}

	zap.L().Warn("aggregation exhausted, using fallback",
		zap.String("stage", stage),
		zap.Error(lastErr),
	)
	return fallback(in, lastErr), true
}

// runAttempt executes one aggregation attempt under its own stage deadline,
// converting panics to errors.
func runAttempt[In, Out any](ctx context.Context, in In, compute func(ctx context.Context, in In) (Out, error), timeout time.Duration) (out Out, err error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = Remote(fmt.Errorf("panic: %v", r), "aggregate")
		}
	}()
	return compute(tctx, in)
}

// NormalizeEntries guarantees exactly one entry per requested id, in
// requested order. Entries whose id was not requested are discarded, the
// first entry wins when an id appears twice, and placeholder synthesizes an
// entry for any id the aggregation omitted or mis-keyed.
func NormalizeEntries[E any](ids []string, entries []E, idOf func(E) string, placeholder func(id string) E) []E {
	byID := make(map[string]E, len(entries))
	for _, e := range entries {
		id := idOf(e)
		if _, dup := byID[id]; !dup {
			byID[id] = e
		}
	}

	normalized := make([]E, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			normalized = append(normalized, e)
			continue
		}
		normalized = append(normalized, placeholder(id))
	}
	return normalized
}
