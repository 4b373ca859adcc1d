package engine

import (
	"github.com/ivlev/slidefeed/internal/caption"
	"github.com/ivlev/slidefeed/internal/navigation"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
)

// Next asks for the following slide.
func (e *Engine) Next() error {
	return e.do(func() { e.nav.Next() })
}

// Prev asks for the previous slide.
func (e *Engine) Prev() error {
	return e.do(func() { e.nav.Prev() })
}

// Key handles a key press. The result reports whether the host must
// suppress its default scrolling for the key.
func (e *Engine) Key(k navigation.Key) (bool, error) {
	if !navigation.IsNavigationKey(k) {
		return false, nil
	}
	return true, e.do(func() { e.nav.HandleKey(k) })
}

// Scroll reports the host scroll offset.
func (e *Engine) Scroll(offset float64) error {
	return e.do(func() { e.nav.SetScrollPosition(offset) })
}

func (e *Engine) BeginGesture(src navigation.Source, p navigation.Point) error {
	return e.do(func() { e.nav.BeginGesture(src, p) })
}

// MoveGesture reports whether the host should suppress its default handling
// of the move (text selection during a pointer drag).
func (e *Engine) MoveGesture(p navigation.Point) (bool, error) {
	var suppress bool
	err := e.call(func() { suppress = e.nav.MoveGesture(p) })
	return suppress, err
}

func (e *Engine) EndGesture(p navigation.Point) error {
	return e.do(func() { e.nav.EndGesture(p) })
}

// Swipe is a complete gesture with vertical displacement dy.
func (e *Engine) Swipe(src navigation.Source, dy float64) error {
	return e.do(func() {
		e.nav.BeginGesture(src, navigation.Point{})
		e.nav.EndGesture(navigation.Point{Y: dy})
	})
}

// Resize reports a new slide height. Fit-to-height captions are repaginated
// for the new viewport.
func (e *Engine) Resize(height float64) error {
	return e.do(func() {
		e.nav.SetHeight(height)
		if fit, ok := e.pager.(caption.FitPager); ok {
			fit.ViewportHeight = e.nav.Height()
			e.pager = fit
			e.captions.SetPager(fit)
			return
		}
		e.captions.Resize()
	})
}

// Tap is a tap or click on the active slide. On the intro slide it runs the
// intro affordance; elsewhere it toggles playback.
func (e *Engine) Tap() error {
	return e.do(func() {
		if !slides.IsIntro(e.nav.Active()) {
			e.seq.Toggle()
			return
		}
		switch e.affordance() {
		case AffordanceRetry:
			e.load()
		case AffordanceStart:
			e.nav.Next()
		}
	})
}

// Retry re-issues the slide fetch.
func (e *Engine) Retry() error {
	return e.do(func() {
		if e.repo.Snapshot().State != source.StateLoading {
			e.load()
		}
	})
}

// Progress reports the audio progress ratio of the current stream.
func (e *Engine) Progress(ratio float64) error {
	return e.do(func() { e.seq.Progress(ratio) })
}

// Ended reports that the current stream reached its end.
func (e *Engine) Ended() error {
	return e.do(func() { e.seq.Ended() })
}

// PlaybackFailed reports an asynchronous play failure.
func (e *Engine) PlaybackFailed(err error) error {
	return e.do(func() { e.seq.PlaybackFailed(err) })
}

// Sync returns once every event queued before it has been handled.
func (e *Engine) Sync() error {
	return e.call(func() {})
}

// StreamProgress is Progress for a named stream; reports for a stream that
// is no longer current are dropped.
func (e *Engine) StreamProgress(url string, ratio float64) error {
	return e.do(func() {
		if e.seq.Status().URL == url {
			e.seq.Progress(ratio)
		}
	})
}

// StreamEnded is Ended for a named stream.
func (e *Engine) StreamEnded(url string) error {
	return e.do(func() {
		if e.seq.Status().URL == url {
			e.seq.Ended()
		}
	})
}
