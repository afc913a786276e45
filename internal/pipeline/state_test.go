package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerTransitions(t *testing.T) {
	tr := NewTracker("test")
	assert.Equal(t, StateIdle, tr.State())

	tr.Enter(StatePreprocessing)
	tr.Enter(StateFanningOut)
	tr.Enter(StateAggregating)
	tr.Enter(StateAssembling)
	tr.Enter(StateDone)
	assert.Equal(t, StateDone, tr.State())

	// Done is terminal.
	tr.Enter(StateFanningOut)
	assert.Equal(t, StateDone, tr.State())
}

func TestTrackerTimedOutIsAbsorbing(t *testing.T) {
	tr := NewTracker("test")
	tr.Enter(StateFanningOut)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	assert.True(t, tr.TimedOut(ctx))
	assert.Equal(t, StateTimedOut, tr.State())

	// Later transitions stick to timed_out.
	tr.Enter(StateDone)
	assert.Equal(t, StateTimedOut, tr.State())
	assert.True(t, tr.TimedOut(context.Background()))
}

func TestTrackerNotTimedOut(t *testing.T) {
	tr := NewTracker("test")
	tr.Enter(StateAggregating)
	assert.False(t, tr.TimedOut(context.Background()))
	assert.Equal(t, StateAggregating, tr.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "fanning_out", StateFanningOut.String())
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "unknown", State(99).String())
}
