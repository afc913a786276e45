package pipeline

import "time"

// Budget holds the time and concurrency limits for one pipeline run. It is
// immutable for the lifetime of the run: the orchestrator owns it and passes
// it down to stages by value.
type Budget struct {
	// PerTaskTimeout bounds each individual fan-out computation.
	PerTaskTimeout time.Duration

	// StageTimeout bounds a single-call stage (one aggregation attempt).
	StageTimeout time.Duration

	// TotalTimeout is the hard ceiling for the entire run.
	TotalTimeout time.Duration

	// Concurrency is the maximum number of computations executing
	// simultaneously across one fan-out stage.
	Concurrency int

	// MaxRetries is the number of additional attempts after the first.
	// A value of 0 means no retries.
	MaxRetries int

	// RetryDelay is the fixed sleep between attempts.
	RetryDelay time.Duration
}

// WithDefaults fills zero-valued fields with safe defaults and returns the
// result. Negative values are treated as zero.
func (b Budget) WithDefaults() Budget {
	if b.PerTaskTimeout <= 0 {
		b.PerTaskTimeout = 90 * time.Second
	}
	if b.StageTimeout <= 0 {
		b.StageTimeout = 60 * time.Second
	}
	if b.TotalTimeout <= 0 {
		b.TotalTimeout = 180 * time.Second
	}
	if b.Concurrency <= 0 {
		b.Concurrency = 10
	}
	if b.MaxRetries < 0 {
		b.MaxRetries = 0
	}
	if b.RetryDelay < 0 {
		b.RetryDelay = 0
	}
	return b
}
