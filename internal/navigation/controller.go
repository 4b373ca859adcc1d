package navigation

import (
	"fmt"
	"math"

	"github.com/ivlev/slidefeed/internal/logger"
)

const module = "Navigation"

// Cause tells observers what produced a committed index change.
type Cause int

const (
	CauseScroll Cause = iota
	CauseKey
	CauseGesture
	CauseProgram
	CauseReset
)

func (c Cause) String() string {
	switch c {
	case CauseKey:
		return "key"
	case CauseGesture:
		return "gesture"
	case CauseProgram:
		return "program"
	case CauseReset:
		return "reset"
	default:
		return "scroll"
	}
}

// Change is emitted once per committed index change.
type Change struct {
	Name     string
	Index    int
	Previous int
	Cause    Cause
}

type Observer func(Change)

// Scroller is the host scroll container. ScrollTo asks for a smooth scroll;
// the host reports the resulting offsets back through SetScrollPosition.
type Scroller interface {
	ScrollTo(offset float64)
}

// Key is a navigation key as reported by the host.
type Key string

const (
	KeyDown     Key = "ArrowDown"
	KeyPageDown Key = "PageDown"
	KeyUp       Key = "ArrowUp"
	KeyPageUp   Key = "PageUp"
)

type Options struct {
	Threshold float64
	// Scroller may be nil: offsets are then fed straight back (instant snap).
	Scroller Scroller
	// Names maps an index to a display name. Defaults to "slide-N".
	Names  func(index int) string
	Logger logger.ILogger
}

// Controller owns the active slide index. It is not safe for concurrent use;
// the engine drives it from a single event loop.
type Controller struct {
	active int
	total  int
	height float64

	scroller Scroller
	names    func(int) string
	tracker  *Tracker
	logger   logger.ILogger

	pendingTarget int
	pendingCause  Cause

	observers []subscriber
	nextSubID int
	notifying bool
	queue     []Change
}

type subscriber struct {
	id int
	fn Observer
}

func NewController(total int, opts Options) *Controller {
	c := &Controller{
		total:         max(total, 1),
		height:        1,
		names:         opts.Names,
		tracker:       NewTracker(opts.Threshold),
		logger:        opts.Logger,
		scroller:      opts.Scroller,
		pendingTarget: -1,
	}
	if c.names == nil {
		c.names = func(i int) string { return fmt.Sprintf("slide-%d", i) }
	}
	if c.logger == nil {
		c.logger = logger.NewNop()
	}
	if c.scroller == nil {
		c.scroller = instantScroller{c}
	}
	return c
}

func (c *Controller) Active() int { return c.active }

func (c *Controller) Total() int { return c.total }

func (c *Controller) Height() float64 { return c.height }

// Phase exposes the gesture tracker state.
func (c *Controller) Phase() Phase { return c.tracker.Phase() }

// HasNext reports whether a slide exists after the active one.
func (c *Controller) HasNext() bool { return c.active < c.total-1 }

// Subscribe registers an observer and returns its release function.
func (c *Controller) Subscribe(fn Observer) func() {
	c.nextSubID++
	id := c.nextSubID
	c.observers = append(c.observers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range c.observers {
			if s.id == id {
				c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// SetHeight records the rendered slide height. Non-positive heights fall back to 1.
func (c *Controller) SetHeight(h float64) {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		h = 1
	}
	c.height = h
}

// SetTotal changes the number of slides (slide list reloaded). The active
// index is clamped into the new range.
func (c *Controller) SetTotal(total int) {
	c.total = max(total, 1)
	if c.active > c.total-1 {
		c.commit(c.total-1, CauseReset)
	}
}

// IndexFor derives the slide index for a scroll offset without committing it.
func (c *Controller) IndexFor(offset float64) int {
	if math.IsNaN(offset) {
		return c.active
	}
	r := math.Round(offset / c.height)
	return c.clampF(r)
}

// SetScrollPosition is one of the two mutators of the active index.
func (c *Controller) SetScrollPosition(offset float64) {
	idx := c.IndexFor(offset)
	if idx == c.active {
		return
	}
	cause := CauseScroll
	switch {
	case idx == c.pendingTarget:
		cause = c.pendingCause
	case c.tracker.Active():
		c.tracker.NativeScrolled()
		cause = CauseGesture
	}
	c.commit(idx, cause)
}

// BeginGesture starts a touch or pointer gesture at p.
func (c *Controller) BeginGesture(src Source, p Point) {
	c.tracker.Begin(src, p, c.active)
}

// MoveGesture reports whether the host should suppress its default handling
// (text selection while a pointer drag is in progress).
func (c *Controller) MoveGesture(Point) bool {
	return c.tracker.Dragging()
}

// EndGesture finishes the gesture in progress at p.
func (c *Controller) EndGesture(p Point) {
	if !c.tracker.Active() {
		return
	}
	c.SetGesture(c.tracker.DeltaTo(p))
}

// SetGesture is the other mutator of the active index: it finishes the gesture
// in progress (or an instantaneous one) with total displacement d.
func (c *Controller) SetGesture(d Delta) {
	dec := c.tracker.Finish(d)
	c.logger.Debug(module, "Gesture finished", map[string]interface{}{
		"dy": d.DY, "reason": dec.Reason, "direction": int(dec.Direction),
	})
	if dec.Navigate() {
		c.step(int(dec.Direction), CauseGesture)
	}
	c.tracker.Reset()
}

// Next requests a transition to the following slide. No-op on the last slide.
func (c *Controller) Next() bool {
	return c.step(1, CauseProgram)
}

// Prev requests a transition to the previous slide. No-op on the intro slide.
func (c *Controller) Prev() bool {
	return c.step(-1, CauseProgram)
}

// JumpTo requests a transition to index, clamped into range.
func (c *Controller) JumpTo(index int) bool {
	return c.request(c.clamp(index), CauseProgram)
}

// HandleKey maps navigation keys. It returns true when the key was consumed
// and the host must prevent its default scrolling.
func (c *Controller) HandleKey(k Key) bool {
	switch k {
	case KeyDown, KeyPageDown:
		c.step(1, CauseKey)
		return true
	case KeyUp, KeyPageUp:
		c.step(-1, CauseKey)
		return true
	}
	return false
}

// IsNavigationKey reports whether k is one of the four navigation keys.
func IsNavigationKey(k Key) bool {
	switch k {
	case KeyDown, KeyPageDown, KeyUp, KeyPageUp:
		return true
	}
	return false
}

func (c *Controller) step(delta int, cause Cause) bool {
	return c.request(c.clamp(c.active+delta), cause)
}

func (c *Controller) request(target int, cause Cause) bool {
	if target == c.active {
		return false
	}
	c.pendingTarget = target
	c.pendingCause = cause
	c.scroller.ScrollTo(float64(target) * c.height)
	return true
}

func (c *Controller) commit(idx int, cause Cause) {
	if idx == c.active {
		return
	}
	ch := Change{Name: c.names(idx), Index: idx, Previous: c.active, Cause: cause}
	c.active = idx
	c.pendingTarget = -1
	c.logger.Debug(module, "Slide committed", map[string]interface{}{
		"index": idx, "previous": ch.Previous, "name": ch.Name, "cause": cause.String(),
	})
	c.emit(ch)
}

// emit delivers changes in commit order even when an observer causes a
// nested commit.
func (c *Controller) emit(ch Change) {
	c.queue = append(c.queue, ch)
	if c.notifying {
		return
	}
	c.notifying = true
	defer func() { c.notifying = false }()
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		subs := append([]subscriber(nil), c.observers...)
		for _, s := range subs {
			s.fn(next)
		}
	}
}

func (c *Controller) clamp(i int) int {
	return max(0, min(c.total-1, i))
}

func (c *Controller) clampF(r float64) int {
	if r <= 0 {
		return 0
	}
	if r >= float64(c.total-1) {
		return c.total - 1
	}
	return int(r)
}

// instantScroller snaps immediately when no host scroll container is attached.
type instantScroller struct {
	c *Controller
}

func (s instantScroller) ScrollTo(offset float64) {
	s.c.SetScrollPosition(offset)
}
