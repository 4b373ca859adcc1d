package caption

import (
	"fmt"
	"strings"

	"github.com/ivlev/slidefeed/internal/logger"
)

const module = "Captions"

// EndPolicy decides where the page index goes when playback reaches its end.
type EndPolicy int

const (
	// EndReset returns to the first page, ready for a re-loop.
	EndReset EndPolicy = iota
	// EndPin keeps the last page on screen.
	EndPin
)

func ParseEndPolicy(s string) (EndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reset":
		return EndReset, nil
	case "pin":
		return EndPin, nil
	}
	return EndReset, fmt.Errorf("unknown caption end policy %q", s)
}

func (p EndPolicy) String() string {
	if p == EndPin {
		return "pin"
	}
	return "reset"
}

// WordChange is emitted once per committed page change of the active section.
type WordChange struct {
	Page int
	Text string
}

type Options struct {
	Pager        Pager
	EndPolicy    EndPolicy
	OnWordChange func(WordChange)
	Logger       logger.ILogger
}

// State is the sync state of the active section.
type State struct {
	Pagination
	Page int
}

// Text returns the visible page.
func (s State) Text() string {
	return s.Pages[s.Page]
}

// Engine keeps the visible caption page in step with audio progress for the
// active section only. It is driven from the engine's event loop.
type Engine struct {
	pager     Pager
	endPolicy EndPolicy
	onChange  func(WordChange)
	logger    logger.ILogger

	text   string
	source string
	state  *State

	memoText string
	memo     *Pagination
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		pager:     opts.Pager,
		endPolicy: opts.EndPolicy,
		onChange:  opts.OnWordChange,
		logger:    opts.Logger,
	}
	if e.pager == nil {
		e.pager = WordPager{}
	}
	if e.logger == nil {
		e.logger = logger.NewNop()
	}
	return e
}

// Active reports whether a section is currently active.
func (e *Engine) Active() bool {
	return e.state != nil
}

// Snapshot returns a copy of the active state.
func (e *Engine) Snapshot() (State, bool) {
	if e.state == nil {
		return State{}, false
	}
	return *e.state, true
}

// Activate makes a section active: its pages are built and the page resets to 0.
func (e *Engine) Activate(text, source string) {
	e.text = text
	e.source = source
	e.state = &State{Pagination: e.paginate(text)}
	e.logger.Debug(module, "Section activated", map[string]interface{}{
		"pages": len(e.state.Pages), "words": e.state.WordCount, "source": source,
	})
}

// Deactivate drops the sync state; nothing is emitted until the next Activate.
func (e *Engine) Deactivate() {
	e.state = nil
	e.text = ""
	e.source = ""
}

// SetSource resets to the first page when the audio source changes.
func (e *Engine) SetSource(source string) {
	if e.state == nil || source == e.source {
		return
	}
	e.source = source
	e.setPage(0)
}

// Progress maps an audio progress ratio to the visible page.
func (e *Engine) Progress(ratio float64) {
	if e.state == nil {
		return
	}
	e.setPage(PageFor(e.state.Pagination, ratio))
}

// Ended applies the end-of-playback policy.
func (e *Engine) Ended() {
	if e.state == nil {
		return
	}
	if e.endPolicy == EndPin {
		e.setPage(e.state.Last())
		return
	}
	e.setPage(0)
}

// Resize invalidates cached pages (the fit strategy depends on the viewport)
// and keeps the page that holds the first word currently shown.
func (e *Engine) Resize() {
	e.memo = nil
	if e.state == nil {
		return
	}
	word := e.state.Ranges[e.state.Page].Start
	e.state.Pagination = e.paginate(e.text)
	page := e.state.Last()
	for i, r := range e.state.Ranges {
		if r.Contains(word) {
			page = i
			break
		}
	}
	e.setPage(page)
}

// SetPager swaps the paging strategy and rebuilds pages for the active section.
func (e *Engine) SetPager(p Pager) {
	e.pager = p
	e.Resize()
}

func (e *Engine) setPage(page int) {
	if page == e.state.Page {
		return
	}
	e.state.Page = page
	if e.onChange != nil {
		e.onChange(WordChange{Page: page, Text: e.state.Pages[page]})
	}
}

func (e *Engine) paginate(text string) Pagination {
	if e.memo != nil && e.memoText == text {
		return *e.memo
	}
	p := e.pager.Paginate(Words(text))
	e.memoText = text
	e.memo = &p
	return p
}
