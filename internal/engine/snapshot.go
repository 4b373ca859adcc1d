package engine

import (
	"fmt"

	"github.com/ivlev/slidefeed/internal/navigation"
	"github.com/ivlev/slidefeed/internal/playback"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
)

// Affordance is what a tap on the intro slide does.
type Affordance int

const (
	AffordanceLoading Affordance = iota
	AffordanceStart
	AffordanceRetry
)

func (a Affordance) String() string {
	switch a {
	case AffordanceStart:
		return "start"
	case AffordanceRetry:
		return "retry"
	}
	return "loading"
}

func (e *Engine) affordance() Affordance {
	switch e.repo.Snapshot().State {
	case source.StateFailed:
		return AffordanceRetry
	case source.StateReady, source.StateEmpty:
		return AffordanceStart
	}
	return AffordanceLoading
}

// Snapshot is the HUD view of the engine.
type Snapshot struct {
	Session    string
	Load       source.State
	LoadErr    string
	Affordance Affordance

	Index    int
	Total    int
	Position string
	Name     string
	Slide    *slides.Slide
	Phase    navigation.Phase

	Section  int
	Action   string
	Caption  string
	Page     int
	Pages    int
	Playback playback.State
	Silent   bool
	AudioURL string

	Ambient string
	Swipes  int
	Cached  int
}

// Snapshot returns the current HUD state.
func (e *Engine) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := e.call(func() { s = e.snapshot() })
	return s, err
}

func (e *Engine) snapshot() Snapshot {
	repo := e.repo.Snapshot()
	status := e.seq.Status()
	stats := e.prefetch.Stats()
	idx := e.nav.Active()

	s := Snapshot{
		Session:    e.session,
		Load:       repo.State,
		Affordance: e.affordance(),
		Index:      idx,
		Total:      e.nav.Total(),
		Position:   fmt.Sprintf("%d / %d", idx+1, e.nav.Total()),
		Name:       e.deck.Name(idx),
		Phase:      e.nav.Phase(),
		Section:    status.Section,
		Playback:   status.State,
		Silent:     status.Silent,
		AudioURL:   status.URL,
		Ambient:    stats.Ambient,
		Swipes:     stats.Swipes,
		Cached:     stats.Cached,
	}
	if repo.Err != nil {
		s.LoadErr = repo.Err.Error()
	}
	if slide, ok := e.deck.At(idx); ok {
		s.Slide = &slide
		if status.Section < len(slide.Sections) {
			s.Action = slide.Sections[status.Section].Action
		}
	}
	if st, ok := e.captions.Snapshot(); ok {
		s.Caption = st.Text()
		s.Page = st.Page
		s.Pages = len(st.Pages)
	}
	return s
}
