package navigation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	changes []Change
}

func (r *recorder) observe(ch Change) { r.changes = append(r.changes, ch) }

func (r *recorder) indices() []int {
	out := make([]int, 0, len(r.changes))
	for _, ch := range r.changes {
		out = append(out, ch.Index)
	}
	return out
}

func newTestController(total int) (*Controller, *recorder) {
	c := NewController(total, Options{})
	c.SetHeight(800)
	r := &recorder{}
	c.Subscribe(r.observe)
	return c, r
}

// recordingScroller stands in for a host that animates asynchronously.
type recordingScroller struct {
	targets []float64
}

func (s *recordingScroller) ScrollTo(offset float64) { s.targets = append(s.targets, offset) }

func TestScrollDerivedIndex(t *testing.T) {
	c, r := newTestController(5)

	tests := []struct {
		offset float64
		want   int
	}{
		{0, 0},
		{399, 0},
		{400, 1}, // round half away from zero
		{1600, 2},
		{-5000, 0},
		{1e12, 4},
		{math.Inf(1), 4},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IndexFor(tt.offset), "offset %v", tt.offset)
	}

	c.SetScrollPosition(1600)
	c.SetScrollPosition(1600)
	c.SetScrollPosition(1650)
	assert.Equal(t, 2, c.Active())
	assert.Equal(t, []int{2}, r.indices(), "repeated reads without new input must not re-commit")
}

func TestCommitAlwaysClamped(t *testing.T) {
	c, r := newTestController(3)

	for _, i := range []int{-1, -1000, math.MinInt, 2, 3, 99, math.MaxInt} {
		assert.NotPanics(t, func() { c.JumpTo(i) })
		assert.GreaterOrEqual(t, c.Active(), 0)
		assert.LessOrEqual(t, c.Active(), 2)
	}
	assert.Equal(t, []int{2}, r.indices())
}

func TestNextPrevStopAtBoundaries(t *testing.T) {
	c, r := newTestController(3)

	assert.False(t, c.Prev(), "prev on the intro slide is a no-op")
	assert.True(t, c.Next())
	assert.True(t, c.Next())
	assert.False(t, c.Next(), "no wraparound past the last slide")
	assert.True(t, c.Prev())

	assert.Equal(t, []int{1, 2, 1}, r.indices())
	for _, ch := range r.changes {
		assert.Equal(t, CauseProgram, ch.Cause)
	}
}

func TestNextRequestsScrollOffset(t *testing.T) {
	s := &recordingScroller{}
	c := NewController(4, Options{Scroller: s})
	c.SetHeight(500)
	r := &recorder{}
	c.Subscribe(r.observe)

	c.Next()
	require.Equal(t, []float64{500}, s.targets)
	assert.Equal(t, 0, c.Active(), "nothing commits until the host reports the scroll")

	// the host animates through intermediate offsets
	for _, off := range []float64{100, 240, 260, 480, 500} {
		c.SetScrollPosition(off)
	}
	require.Len(t, r.changes, 1)
	assert.Equal(t, Change{Name: "slide-1", Index: 1, Previous: 0, Cause: CauseProgram}, r.changes[0])
}

func TestKeyboard(t *testing.T) {
	c, r := newTestController(4)

	assert.True(t, c.HandleKey(KeyDown))
	assert.True(t, c.HandleKey(KeyPageDown))
	assert.True(t, c.HandleKey(KeyUp))
	assert.True(t, c.HandleKey(KeyPageUp))
	assert.True(t, c.HandleKey(KeyPageUp), "consumed even when at the boundary")
	assert.False(t, c.HandleKey("ArrowLeft"))
	assert.False(t, c.HandleKey("Enter"))

	assert.Equal(t, []int{1, 2, 1, 0}, r.indices())
	assert.Equal(t, CauseKey, r.changes[0].Cause)
}

func TestGestureThreshold(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		want  []int
	}{
		{"exactly threshold up", Delta{DY: -50}, []int{}},
		{"exactly threshold down", Delta{DY: 50}, []int{}},
		{"small", Delta{DY: -12}, []int{}},
		{"horizontal only", Delta{DX: -400}, []int{}},
		{"swipe up moves forward", Delta{DY: -51}, []int{2}},
		{"swipe down moves back", Delta{DX: 300, DY: 120}, []int{0}},
		{"nan", Delta{DY: math.NaN()}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(4, Options{})
			c.SetHeight(800)
			c.JumpTo(1)
			r := &recorder{}
			c.Subscribe(r.observe)

			c.BeginGesture(SourceTouch, Point{Y: 500})
			c.SetGesture(tt.delta)

			assert.Equal(t, tt.want, r.indices())
			assert.Equal(t, PhaseIdle, c.Phase())
		})
	}
}

func TestGestureFromStartAndEndPoints(t *testing.T) {
	c, r := newTestController(4)

	c.BeginGesture(SourcePointer, Point{X: 10, Y: 600})
	assert.True(t, c.MoveGesture(Point{Y: 550}), "pointer drags suppress text selection")
	c.EndGesture(Point{X: 300, Y: 520})

	require.Len(t, r.changes, 1)
	assert.Equal(t, 1, r.changes[0].Index)
	assert.Equal(t, CauseGesture, r.changes[0].Cause)
	assert.False(t, c.MoveGesture(Point{}), "no drag in progress")

	// an end without a begin is ignored
	c.EndGesture(Point{Y: -1000})
	assert.Len(t, r.changes, 1)
}

func TestGestureScrollRaceNavigatesOnce(t *testing.T) {
	c, r := newTestController(5)

	c.BeginGesture(SourceTouch, Point{Y: 700})
	// the scroll container snaps to the next slide before touchend arrives
	c.SetScrollPosition(800)
	assert.Equal(t, PhaseNativeScrollApplied, c.Phase())
	c.EndGesture(Point{Y: 400})

	assert.Equal(t, []int{1}, r.indices(), "exactly one index change per physical gesture")
	assert.Equal(t, CauseGesture, r.changes[0].Cause)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestGestureWithoutRaceStillNavigates(t *testing.T) {
	c, r := newTestController(5)

	c.BeginGesture(SourceTouch, Point{Y: 700})
	c.SetScrollPosition(100) // rounds to the same slide, no commit
	c.EndGesture(Point{Y: 400})

	assert.Equal(t, []int{1}, r.indices())
}

func TestSetTotalClampsActive(t *testing.T) {
	c, r := newTestController(6)
	c.JumpTo(5)

	c.SetTotal(3)
	assert.Equal(t, 2, c.Active())
	assert.Equal(t, CauseReset, r.changes[len(r.changes)-1].Cause)

	c.SetTotal(0)
	assert.Equal(t, 1, c.Total())
	assert.Equal(t, 0, c.Active())
}

func TestNestedCommitsKeepOrder(t *testing.T) {
	c := NewController(4, Options{})
	var seen []int
	// the first observer chains another navigation from inside the notification
	c.Subscribe(func(ch Change) {
		if ch.Index == 1 {
			c.Next()
		}
	})
	c.Subscribe(func(ch Change) { seen = append(seen, ch.Index) })

	c.Next()
	assert.Equal(t, []int{1, 2}, seen)
}

func TestUnsubscribe(t *testing.T) {
	c := NewController(3, Options{})
	n := 0
	release := c.Subscribe(func(Change) { n++ })
	c.Next()
	release()
	c.Next()
	assert.Equal(t, 1, n)
}
