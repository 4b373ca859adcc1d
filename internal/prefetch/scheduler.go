package prefetch

import (
	"context"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ivlev/slidefeed/internal/audio"
	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/slides"
)

const module = "Prefetch"

const (
	DefaultLookahead    = 3
	DefaultVideoPoolCap = 2
	DefaultSwipeBurst   = 5
	DefaultSwipeIdle    = 10 * time.Second
)

type Options struct {
	Loader   Loader
	Resolver audio.Resolver
	// Post schedules fn on the event loop.
	Post func(fn func())

	Lookahead    int
	VideoPoolCap int
	SwipeBurst   int
	SwipeIdle    time.Duration

	// OnAmbient receives the newly selected ambient background video.
	OnAmbient func(url string)
	// Rand returns a number in [0, n); defaults to math/rand.
	Rand   func(n int) int
	Clock  clock.Clock
	Logger logger.ILogger
}

// Stats is a read-only view for the HUD and tests.
type Stats struct {
	Cached   int
	InFlight int
	Swipes   int
	Ambient  string
	Pool     []string
	Swaps    int
	LastPass int
	Window   [2]int
}

// Scheduler preloads the audio of upcoming slides and a small pool of
// background videos, and swaps the ambient video after a burst of swipes.
// It only ever writes into its own cache. All methods run on the event loop.
type Scheduler struct {
	ctx  context.Context
	opts Options
	log  logger.ILogger

	cache *Cache
	deck  *slides.Deck
	gen   uint64

	active    int
	window    [2]int
	wanted    map[string]bool
	resolved  map[string]string
	resolving map[string]bool
	loading   map[string]bool
	lastPass  int

	pool    []string
	ambient string
	swaps   int

	swipes    int
	swipeID   uint64
	swipeTime *clock.Timer
}

func NewScheduler(ctx context.Context, opts Options) *Scheduler {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.VideoPoolCap <= 0 {
		opts.VideoPoolCap = DefaultVideoPoolCap
	}
	if opts.SwipeBurst <= 0 {
		opts.SwipeBurst = DefaultSwipeBurst
	}
	if opts.SwipeIdle <= 0 {
		opts.SwipeIdle = DefaultSwipeIdle
	}
	if opts.Resolver == nil {
		opts.Resolver = audio.Direct{}
	}
	if opts.Loader == nil {
		opts.Loader = HTTPLoader{}
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	if opts.Rand == nil {
		opts.Rand = rand.Intn
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Scheduler{
		ctx:       ctx,
		opts:      opts,
		log:       opts.Logger,
		cache:     NewCache(),
		deck:      slides.NewDeck(nil),
		wanted:    map[string]bool{},
		resolved:  map[string]string{},
		resolving: map[string]bool{},
		loading:   map[string]bool{},
	}
}

func (s *Scheduler) Cache() *Cache { return s.cache }

func (s *Scheduler) Stats() Stats {
	return Stats{
		Cached:   s.cache.Len(),
		InFlight: len(s.resolving) + len(s.loading),
		Swipes:   s.swipes,
		Ambient:  s.ambient,
		Pool:     append([]string(nil), s.pool...),
		Swaps:    s.swaps,
		LastPass: s.lastPass,
		Window:   s.window,
	}
}

// SetDeck replaces the slide list and recomputes the lookahead.
func (s *Scheduler) SetDeck(d *slides.Deck) {
	s.deck = d
	s.gen++
	s.resolved = map[string]string{}
	s.Recompute(s.active)
}

// Window returns the slide index range [lo, hi] eligible for audio preload;
// lo > hi means the window is empty.
func (s *Scheduler) Window(active int) (int, int) {
	return max(1, active), min(s.deck.SlideCount(), active+s.opts.Lookahead)
}

// Recompute schedules audio loads for the window around active. URLs that
// are cached or already loading are skipped.
func (s *Scheduler) Recompute(active int) {
	s.active = active
	lo, hi := s.Window(active)
	s.window = [2]int{lo, hi}
	s.wanted = map[string]bool{}
	s.lastPass = 0

	for i := lo; i <= hi; i++ {
		for _, sec := range s.deck.Sections(i) {
			ref := sec.AudioRef
			if ref == "" || s.wanted[ref] {
				continue
			}
			s.wanted[ref] = true
			if url, ok := s.resolved[ref]; ok {
				s.load(ref, url, KindAudio)
				continue
			}
			s.resolve(ref)
		}
	}
}

func (s *Scheduler) resolve(ref string) {
	if s.resolving[ref] {
		return
	}
	s.resolving[ref] = true
	gen := s.gen
	go func() {
		url, err := s.opts.Resolver.Resolve(s.ctx, ref)
		s.opts.Post(func() {
			delete(s.resolving, ref)
			if gen != s.gen || !s.wanted[ref] {
				return
			}
			if err != nil {
				s.log.Warn(module, "Audio resolution failed", map[string]interface{}{"ref": ref, "error": err.Error()})
				return
			}
			if url == "" {
				return
			}
			s.resolved[ref] = url
			s.load(ref, url, KindAudio)
		})
	}()
}

func (s *Scheduler) load(ref, url string, kind Kind) {
	if s.cache.Has(url) || s.loading[url] {
		return
	}
	s.loading[url] = true
	if kind == KindAudio {
		s.lastPass++
	}
	gen := s.gen
	go func() {
		m, err := s.opts.Loader.Load(s.ctx, url, kind)
		s.opts.Post(func() {
			delete(s.loading, url)
			if err != nil {
				// the slot stays empty; a later pass retries
				s.log.Warn(module, "Prefetch failed", map[string]interface{}{"url": url, "kind": kind.String(), "error": err.Error()})
				return
			}
			if kind == KindAudio && (gen != s.gen || !s.wanted[ref]) {
				s.log.Debug(module, "Discarding stale prefetch", map[string]interface{}{"url": url})
				return
			}
			m.URL, m.Kind = url, kind
			s.cache.Add(m)
		})
	}()
}

// StartPool loads the background video candidates, capped at the pool size.
// The pool does not depend on navigation.
func (s *Scheduler) StartPool(candidates []string) {
	s.pool = nil
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if len(s.pool) == s.opts.VideoPoolCap {
			break
		}
		s.pool = append(s.pool, c)
		s.load("", c, KindVideo)
	}
	if s.ambient == "" && len(s.pool) > 0 {
		s.ambient = s.pool[0]
	}
}

// Swipe counts one completed gesture-driven navigation. Reaching the burst
// threshold swaps the ambient video and resets the counter; the idle window
// resets it otherwise. Each reset invalidates the other's pending action.
func (s *Scheduler) Swipe() {
	s.swipes++
	if s.swipes == 1 {
		s.armIdle()
	}
	if s.swipes < s.opts.SwipeBurst {
		return
	}
	s.resetSwipes()
	s.swapAmbient()
}

func (s *Scheduler) swapAmbient() {
	if len(s.pool) == 0 {
		return
	}
	s.ambient = s.pool[s.opts.Rand(len(s.pool))]
	s.swaps++
	s.log.Info(module, "Ambient video swapped", map[string]interface{}{"url": s.ambient})
	if s.opts.OnAmbient != nil {
		s.opts.OnAmbient(s.ambient)
	}
}

func (s *Scheduler) armIdle() {
	s.swipeID++
	id := s.swipeID
	s.swipeTime = s.opts.Clock.AfterFunc(s.opts.SwipeIdle, func() {
		s.opts.Post(func() {
			if id != s.swipeID {
				return
			}
			s.resetSwipes()
		})
	})
}

func (s *Scheduler) resetSwipes() {
	s.swipes = 0
	s.swipeID++
	if s.swipeTime != nil {
		s.swipeTime.Stop()
		s.swipeTime = nil
	}
}

// Stop cancels the idle timer.
func (s *Scheduler) Stop() {
	s.resetSwipes()
}
