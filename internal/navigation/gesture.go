package navigation

import "math"

// DefaultSwipeThreshold is the vertical displacement a swipe or drag must
// exceed before it navigates.
const DefaultSwipeThreshold = 50.0

// Phase is the state of the gesture tracker:
// Idle -> Touching -> (NativeScrollApplied | GestureApplied) -> Idle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTouching
	PhaseNativeScrollApplied
	PhaseGestureApplied
)

func (p Phase) String() string {
	switch p {
	case PhaseTouching:
		return "touching"
	case PhaseNativeScrollApplied:
		return "native-scroll-applied"
	case PhaseGestureApplied:
		return "gesture-applied"
	default:
		return "idle"
	}
}

// Source is the input channel a gesture came from.
type Source int

const (
	SourceTouch Source = iota
	SourcePointer
)

type Point struct {
	X, Y float64
}

type Delta struct {
	DX, DY float64
}

// Direction of a discrete navigation.
type Direction int

const (
	None Direction = 0
	Next Direction = 1
	Prev Direction = -1
)

// Record is the transient bookkeeping of one physical gesture.
type Record struct {
	Source     Source
	Start      Point
	StartIndex int
}

// Decision is what the tracker wants the controller to do when a gesture ends.
type Decision struct {
	Direction Direction
	Reason    string
}

func (d Decision) Navigate() bool {
	return d.Direction != None
}

// Decide maps a finished gesture to at most one navigation. Horizontal
// displacement is ignored; an upward swipe (negative dy) moves forward.
func Decide(rec Record, phase Phase, d Delta, threshold float64) Decision {
	if phase == PhaseNativeScrollApplied {
		return Decision{Reason: "native_scroll"}
	}
	if math.IsNaN(d.DY) || math.Abs(d.DY) <= threshold {
		return Decision{Reason: "below_threshold"}
	}
	if d.DY < 0 {
		return Decision{Direction: Next, Reason: "swipe"}
	}
	return Decision{Direction: Prev, Reason: "swipe"}
}

// Tracker owns the per-gesture record. It is not shared with anything else;
// the record is handed to Decide by value.
type Tracker struct {
	phase     Phase
	rec       Record
	threshold float64
}

func NewTracker(threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = DefaultSwipeThreshold
	}
	return &Tracker{threshold: threshold}
}

func (t *Tracker) Phase() Phase {
	return t.phase
}

// Active reports whether a gesture is in progress.
func (t *Tracker) Active() bool {
	return t.phase == PhaseTouching || t.phase == PhaseNativeScrollApplied
}

// Dragging reports whether a pointer drag is in progress.
func (t *Tracker) Dragging() bool {
	return t.Active() && t.rec.Source == SourcePointer
}

// Begin starts a gesture. A gesture already in progress is abandoned.
func (t *Tracker) Begin(src Source, p Point, index int) {
	t.rec = Record{Source: src, Start: p, StartIndex: index}
	t.phase = PhaseTouching
}

// NativeScrolled records that the scroll container changed the index on its own
// while the gesture was in progress.
func (t *Tracker) NativeScrolled() {
	if t.phase == PhaseTouching {
		t.phase = PhaseNativeScrollApplied
	}
}

// Finish ends the gesture with a total displacement and returns the decision.
// A gesture that was never begun is treated as starting at the origin.
func (t *Tracker) Finish(d Delta) Decision {
	dec := Decide(t.rec, t.phase, d, t.threshold)
	if dec.Navigate() {
		t.phase = PhaseGestureApplied
	}
	return dec
}

// DeltaTo is the displacement from the gesture start to p.
func (t *Tracker) DeltaTo(p Point) Delta {
	return Delta{DX: p.X - t.rec.Start.X, DY: p.Y - t.rec.Start.Y}
}

// Reset returns the tracker to Idle.
func (t *Tracker) Reset() {
	t.phase = PhaseIdle
	t.rec = Record{}
}
