package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State identifies where an orchestrated run currently is. Transitions are
// strictly sequential except within StateFanningOut, which is internally
// parallel. StateTimedOut is absorbing: once entered no other state is
// recorded, and the run still produces a (degraded) result.
type State int32

const (
	StateIdle State = iota
	StatePreprocessing
	StateFanningOut
	StateAggregating
	StateAssembling
	StateDone
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreprocessing:
		return "preprocessing"
	case StateFanningOut:
		return "fanning_out"
	case StateAggregating:
		return "aggregating"
	case StateAssembling:
		return "assembling"
	case StateDone:
		return "done"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Tracker records one run's progress through the pipeline states. A zero
// Tracker starts in StateIdle and is safe for concurrent reads.
type Tracker struct {
	name    string
	state   atomic.Int32
	started time.Time
}

// NewTracker creates a tracker for a named pipeline run.
func NewTracker(name string) *Tracker {
	return &Tracker{name: name, started: time.Now()}
}

// Enter moves the run into s. Once the run has timed out or finished, later
// transitions are ignored so the terminal state sticks.
func (t *Tracker) Enter(s State) {
	for {
		cur := t.state.Load()
		if State(cur) == StateTimedOut || State(cur) == StateDone {
			return
		}
		if t.state.CompareAndSwap(cur, int32(s)) {
			zap.L().Debug("pipeline state",
				zap.String("pipeline", t.name),
				zap.String("from", State(cur).String()),
				zap.String("to", s.String()),
				zap.Duration("elapsed", time.Since(t.started)),
			)
			return
		}
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	return State(t.state.Load())
}

// TimedOut reports whether the run's deadline elapsed, and if ctx is already
// dead it records the absorbing StateTimedOut.
func (t *Tracker) TimedOut(ctx context.Context) bool {
	if ctx.Err() != nil {
		t.Enter(StateTimedOut)
	}
	return t.State() == StateTimedOut
}
