package playback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ivlev/slidefeed/internal/audio"
	"github.com/ivlev/slidefeed/internal/caption"
	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/slides"
)

const module = "Playback"

const (
	// DefaultSilentDwell is how long a section without audio stays on screen
	// before the sequencer moves on.
	DefaultSilentDwell = 4 * time.Second
	// DefaultSilentTick is how often a silent section advances its caption.
	DefaultSilentTick = 250 * time.Millisecond
)

type State int

const (
	// Idle: intro slide, empty slide, or audio not started yet.
	Idle State = iota
	Playing
	Paused
	// Advancing: between two sections of the same slide, or waiting for the
	// navigation that follows the last section.
	Advancing
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Advancing:
		return "advancing"
	}
	return "idle"
}

// Terminal decides what happens when the last section of the last slide ends.
type Terminal int

const (
	TerminalLoop Terminal = iota
	TerminalStop
)

func ParseTerminal(s string) (Terminal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "loop":
		return TerminalLoop, nil
	case "stop":
		return TerminalStop, nil
	}
	return TerminalLoop, fmt.Errorf("unknown terminal policy %q", s)
}

func (t Terminal) String() string {
	if t == TerminalStop {
		return "stop"
	}
	return "loop"
}

// Player is the single audio element. Load replaces the current source.
type Player interface {
	Load(url string) error
	Play() error
	Pause()
	Rewind()
}

// Navigator is the part of the navigation controller the sequencer drives.
type Navigator interface {
	HasNext() bool
	Next() bool
}

type Options struct {
	Player    Player
	Resolver  audio.Resolver
	Captions  *caption.Engine
	Navigator Navigator

	// Post schedules fn on the event loop; async completions come back through it.
	Post func(fn func())

	Terminal Terminal
	// SilentDwell of 0 leaves silent sections on screen until the user moves on.
	SilentDwell time.Duration
	// SilentTick paces caption progress through the dwell of a silent section.
	SilentTick time.Duration

	Clock  clock.Clock
	Logger logger.ILogger
}

// Status is a read-only view for the HUD.
type Status struct {
	State   State
	Index   int
	Section int
	URL     string
	Silent  bool
}

// Sequencer runs per-slide audio: it starts the first section when a slide
// becomes active, walks through sections on audio end and hands over to
// navigation after the last one. All methods run on the event loop.
type Sequencer struct {
	ctx  context.Context
	opts Options
	log  logger.ILogger

	deck    *slides.Deck
	index   int
	section int
	state   State
	url     string
	silent  bool
	loaded  bool

	// request identity; bumped whenever the active section changes
	req     uint64
	dwell   *clock.Timer
	dwellID uint64
	// dwell time spent before the current arming, and when it was armed
	dwellBase  time.Duration
	dwellStart time.Time
}

func NewSequencer(ctx context.Context, opts Options) *Sequencer {
	if opts.Resolver == nil {
		opts.Resolver = audio.Direct{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.SilentTick <= 0 {
		opts.SilentTick = DefaultSilentTick
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Sequencer{ctx: ctx, opts: opts, log: opts.Logger, deck: slides.NewDeck(nil)}
}

func (s *Sequencer) State() State { return s.state }

func (s *Sequencer) Status() Status {
	return Status{State: s.state, Index: s.index, Section: s.section, URL: s.url, Silent: s.silent}
}

// SetDeck swaps the slide list. The caller re-enters the active index afterwards.
func (s *Sequencer) SetDeck(d *slides.Deck) {
	s.deck = d
}

// Enter makes index the active slide: any prior stream is stopped and
// rewound before the first section of the new slide starts.
func (s *Sequencer) Enter(index int) {
	s.stop()
	s.index = index
	s.section = 0

	s.state = Idle
	if len(s.deck.Sections(index)) == 0 {
		return
	}
	s.startSection()
}

// Toggle switches between Playing and Paused without touching section or index.
func (s *Sequencer) Toggle() {
	switch s.state {
	case Playing:
		if s.silent && s.dwell != nil {
			s.dwellBase = s.dwellElapsed()
		}
		s.cancelDwell()
		if s.loaded {
			s.opts.Player.Pause()
		}
		s.state = Paused
		s.log.Debug(module, "Paused", map[string]interface{}{"index": s.index, "section": s.section})
	case Paused:
		s.resume()
	}
}

// Progress forwards the audio progress ratio of the current stream to the captions.
func (s *Sequencer) Progress(ratio float64) {
	if s.state != Playing || s.opts.Captions == nil {
		return
	}
	s.opts.Captions.Progress(ratio)
}

// Ended handles the end of the current section's audio.
func (s *Sequencer) Ended() {
	if s.state != Playing {
		return
	}
	s.cancelDwell()
	if s.opts.Captions != nil {
		s.opts.Captions.Ended()
	}

	sections := s.deck.Sections(s.index)
	switch {
	case s.section+1 < len(sections):
		s.state = Advancing
		s.section++
		s.log.Debug(module, "Advancing section", map[string]interface{}{"index": s.index, "section": s.section})
		s.startSection()
	case s.opts.Navigator != nil && s.opts.Navigator.HasNext():
		s.state = Advancing
		s.opts.Navigator.Next()
	case s.opts.Terminal == TerminalStop:
		s.dwellBase = 0
		if s.loaded {
			s.opts.Player.Pause()
			s.opts.Player.Rewind()
		}
		s.state = Paused
		s.log.Info(module, "Reached the end of the feed", map[string]interface{}{"index": s.index})
	default:
		s.restart()
	}
}

// PlaybackFailed reports an asynchronous play failure from the host.
func (s *Sequencer) PlaybackFailed(err error) {
	if s.state != Playing {
		return
	}
	s.cancelDwell()
	s.state = Paused
	s.log.Warn(module, "Playback failed", map[string]interface{}{"error": err.Error(), "url": s.url})
}

// Stop releases the stream; used when the engine shuts down.
func (s *Sequencer) Stop() {
	s.stop()
	s.state = Idle
}

func (s *Sequencer) startSection() {
	s.req++
	id := s.req
	s.url = ""
	s.silent = false
	s.loaded = false

	sec := s.deck.Sections(s.index)[s.section]
	if s.opts.Captions != nil {
		s.opts.Captions.Activate(sec.Text, "")
	}
	if strings.TrimSpace(sec.AudioRef) == "" {
		s.startSilent()
		return
	}

	ctx := s.ctx
	go func() {
		url, err := s.opts.Resolver.Resolve(ctx, sec.AudioRef)
		s.opts.Post(func() {
			if id != s.req {
				return
			}
			s.onResolved(url, err)
		})
	}()
}

func (s *Sequencer) onResolved(url string, err error) {
	if err != nil {
		s.log.Warn(module, "Audio unresolved, section is silent", map[string]interface{}{
			"index": s.index, "section": s.section, "error": err.Error(),
		})
		url = ""
	}
	if url == "" {
		s.startSilent()
		return
	}

	s.url = url
	if s.opts.Captions != nil {
		s.opts.Captions.SetSource(url)
	}
	if err := s.opts.Player.Load(url); err != nil {
		s.log.Warn(module, "Audio load failed, section is silent", map[string]interface{}{"url": url, "error": err.Error()})
		s.url = ""
		s.startSilent()
		return
	}
	s.loaded = true
	s.play()
}

func (s *Sequencer) startSilent() {
	s.silent = true
	s.state = Playing
	s.armDwell(0)
}

func (s *Sequencer) play() {
	if err := s.opts.Player.Play(); err != nil {
		s.state = Paused
		s.log.Warn(module, "Playback blocked", map[string]interface{}{"url": s.url, "error": err.Error()})
		return
	}
	s.state = Playing
	s.log.Debug(module, "Playing", map[string]interface{}{"index": s.index, "section": s.section, "url": s.url})
}

func (s *Sequencer) resume() {
	if s.silent {
		s.state = Playing
		s.armDwell(s.dwellBase)
		return
	}
	if s.loaded {
		s.play()
	}
}

// restart loops the current section from zero.
func (s *Sequencer) restart() {
	if s.silent {
		s.armDwell(0)
		return
	}
	if s.loaded {
		s.opts.Player.Rewind()
		s.play()
	}
}

func (s *Sequencer) stop() {
	s.req++
	s.cancelDwell()
	if s.loaded {
		s.opts.Player.Pause()
		s.opts.Player.Rewind()
	}
	s.loaded = false
	s.silent = false
	s.url = ""
	if s.opts.Captions != nil {
		s.opts.Captions.Deactivate()
	}
}

// armDwell stands in for the missing audio stream of a silent section: it
// feeds caption progress from the clock and ends the section once elapsed
// reaches the dwell. elapsed is the dwell time already spent.
func (s *Sequencer) armDwell(elapsed time.Duration) {
	s.cancelDwell()
	s.dwellBase = elapsed
	if s.opts.SilentDwell <= 0 {
		return
	}
	s.dwellStart = s.opts.Clock.Now()
	s.scheduleDwell(s.dwellID)
}

func (s *Sequencer) scheduleDwell(id uint64) {
	wait := min(s.opts.SilentTick, s.opts.SilentDwell-s.dwellElapsed())
	if wait <= 0 {
		wait = time.Millisecond
	}
	s.dwell = s.opts.Clock.AfterFunc(wait, func() {
		s.opts.Post(func() {
			if id != s.dwellID || !s.silent || s.state != Playing {
				return
			}
			s.dwellTick(id)
		})
	})
}

func (s *Sequencer) dwellTick(id uint64) {
	elapsed := s.dwellElapsed()
	if elapsed >= s.opts.SilentDwell {
		s.Ended()
		return
	}
	if s.opts.Captions != nil {
		s.opts.Captions.Progress(float64(elapsed) / float64(s.opts.SilentDwell))
	}
	s.scheduleDwell(id)
}

func (s *Sequencer) dwellElapsed() time.Duration {
	return s.dwellBase + s.opts.Clock.Since(s.dwellStart)
}

// cancelDwell invalidates every pending tick of the current dwell.
func (s *Sequencer) cancelDwell() {
	s.dwellID++
	if s.dwell != nil {
		s.dwell.Stop()
		s.dwell = nil
	}
}
