package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	rec := Record{Source: SourceTouch, Start: Point{Y: 300}}

	assert.Equal(t, Next, Decide(rec, PhaseTouching, Delta{DY: -80}, 50).Direction)
	assert.Equal(t, Prev, Decide(rec, PhaseTouching, Delta{DY: 80}, 50).Direction)
	assert.Equal(t, None, Decide(rec, PhaseTouching, Delta{DY: 50}, 50).Direction)

	dec := Decide(rec, PhaseNativeScrollApplied, Delta{DY: -500}, 50)
	assert.False(t, dec.Navigate())
	assert.Equal(t, "native_scroll", dec.Reason)
}

func TestTrackerPhases(t *testing.T) {
	tr := NewTracker(0)
	assert.Equal(t, PhaseIdle, tr.Phase())

	tr.NativeScrolled()
	assert.Equal(t, PhaseIdle, tr.Phase(), "native scroll outside a gesture is not tracked")

	tr.Begin(SourcePointer, Point{Y: 10}, 2)
	assert.Equal(t, PhaseTouching, tr.Phase())
	assert.True(t, tr.Dragging())
	assert.Equal(t, Delta{DX: 5, DY: -90}, tr.DeltaTo(Point{X: 5, Y: -80}))

	dec := tr.Finish(Delta{DY: -90})
	assert.True(t, dec.Navigate())
	assert.Equal(t, PhaseGestureApplied, tr.Phase())
	assert.False(t, tr.Active())

	tr.Reset()
	assert.Equal(t, PhaseIdle, tr.Phase())

	tr.Begin(SourceTouch, Point{}, 0)
	tr.NativeScrolled()
	assert.Equal(t, PhaseNativeScrollApplied, tr.Phase())
	assert.True(t, tr.Active())
	assert.False(t, tr.Dragging())
	assert.False(t, tr.Finish(Delta{DY: -90}).Navigate())
}
