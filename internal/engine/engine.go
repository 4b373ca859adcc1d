package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/ivlev/slidefeed/internal/audio"
	"github.com/ivlev/slidefeed/internal/caption"
	"github.com/ivlev/slidefeed/internal/lifecycle"
	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/navigation"
	"github.com/ivlev/slidefeed/internal/playback"
	"github.com/ivlev/slidefeed/internal/prefetch"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
)

const module = "Engine"

var ErrStopped = errors.New("engine: stopped")

// VisibleFunc is the observability hook: it is called once per committed
// slide change with the slide's display name and index.
type VisibleFunc func(name string, index int)

type Options struct {
	Source   source.Source
	Resolver audio.Resolver
	Player   playback.Player
	Loader   prefetch.Loader
	// Scroller is the host scroll container; nil snaps instantly.
	Scroller navigation.Scroller

	Pager     caption.Pager
	EndPolicy caption.EndPolicy
	Terminal  playback.Terminal

	SwipeThreshold float64
	Lookahead      int
	VideoPoolCap   int
	SwipeBurst     int
	SwipeIdle      time.Duration
	SilentDwell    time.Duration
	SilentTick     time.Duration
	// Videos are the background video candidates.
	Videos []string

	OnVisible    VisibleFunc
	OnWordChange func(caption.WordChange)
	OnAmbient    func(url string)

	// Session identifies the engine in logs and telemetry; a random UUID
	// when empty.
	Session string

	Clock  clock.Clock
	Logger logger.ILogger
}

// Engine wires navigation, playback, captions and prefetch onto one event
// loop. Its exported methods are safe to call from any goroutine; they
// enqueue work for the loop and return ErrStopped once Run has returned.
type Engine struct {
	opts    Options
	log     logger.ILogger
	session string

	events chan func()
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// owned by the loop
	repo     *source.Repository
	deck     *slides.Deck
	nav      *navigation.Controller
	captions *caption.Engine
	seq      *playback.Sequencer
	prefetch *prefetch.Scheduler
	scope    *lifecycle.Scope
	pager    caption.Pager
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Resolver == nil {
		opts.Resolver = audio.Direct{}
	}
	if opts.Source == nil {
		opts.Source = source.Static(nil)
	}
	if opts.Player == nil {
		opts.Player = mutePlayer{}
	}
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:    opts,
		log:     opts.Logger,
		session: opts.Session,
		events:  make(chan func(), 256),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		deck:    slides.NewDeck(nil),
		scope:   lifecycle.NewScope(module),
		pager:   opts.Pager,
	}

	e.repo = source.NewRepository(opts.Source, opts.Logger)
	e.nav = navigation.NewController(e.deck.Total(), navigation.Options{
		Threshold: opts.SwipeThreshold,
		Scroller:  opts.Scroller,
		Names:     func(i int) string { return e.deck.Name(i) },
		Logger:    opts.Logger,
	})
	e.captions = caption.NewEngine(caption.Options{
		Pager:        opts.Pager,
		EndPolicy:    opts.EndPolicy,
		OnWordChange: opts.OnWordChange,
		Logger:       opts.Logger,
	})
	e.seq = playback.NewSequencer(ctx, playback.Options{
		Player:      opts.Player,
		Resolver:    opts.Resolver,
		Captions:    e.captions,
		Navigator:   e.nav,
		Post:        e.post,
		Terminal:    opts.Terminal,
		SilentDwell: opts.SilentDwell,
		SilentTick:  opts.SilentTick,
		Clock:       opts.Clock,
		Logger:      opts.Logger,
	})
	e.prefetch = prefetch.NewScheduler(ctx, prefetch.Options{
		Loader:       opts.Loader,
		Resolver:     opts.Resolver,
		Post:         e.post,
		Lookahead:    opts.Lookahead,
		VideoPoolCap: opts.VideoPoolCap,
		SwipeBurst:   opts.SwipeBurst,
		SwipeIdle:    opts.SwipeIdle,
		OnAmbient:    opts.OnAmbient,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
	})

	e.scope.Acquire(e.nav.Subscribe(e.onChange))
	e.scope.Acquire(e.seq.Stop)
	e.scope.Acquire(e.prefetch.Stop)
	return e
}

// Session identifies this engine instance in logs and telemetry.
func (e *Engine) Session() string { return e.session }

// Run loads the slides and processes events until ctx is done. It can only
// be called once.
func (e *Engine) Run(ctx context.Context) error {
	started := false
	e.once.Do(func() { started = true })
	if !started {
		return errors.New("engine: already running")
	}

	defer close(e.done)
	defer e.cancel()
	defer func() {
		if err := e.scope.Close(); err != nil {
			e.log.Warn(module, "Release failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	e.log.Info(module, "Engine started", map[string]interface{}{"session": e.session})
	e.prefetch.StartPool(e.opts.Videos)
	e.notifyVisible(navigation.Change{Name: e.deck.Name(0), Index: 0, Previous: -1})
	e.load()

	for {
		select {
		case <-ctx.Done():
			e.log.Info(module, "Engine stopped", map[string]interface{}{"session": e.session})
			return nil
		case fn := <-e.events:
			fn()
		}
	}
}

// post is how async completions get back onto the loop.
func (e *Engine) post(fn func()) {
	select {
	case e.events <- fn:
	case <-e.done:
	}
}

func (e *Engine) do(fn func()) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.events <- fn:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// call runs fn on the loop and waits for it.
func (e *Engine) call(fn func()) error {
	finished := make(chan struct{})
	if err := e.do(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) load() {
	e.repo.Fetch(e.ctx, e.post, e.onLoaded)
}

func (e *Engine) onLoaded(snap source.Snapshot) {
	if snap.State == source.StateFailed {
		return
	}
	e.deck = snap.Deck
	e.seq.SetDeck(e.deck)

	before := e.nav.Active()
	e.nav.SetTotal(e.deck.Total())
	if e.nav.Active() == before {
		e.seq.Enter(before)
	}
	e.prefetch.SetDeck(e.deck)
}

func (e *Engine) onChange(ch navigation.Change) {
	e.seq.Enter(ch.Index)
	e.prefetch.Recompute(ch.Index)
	if ch.Cause == navigation.CauseGesture {
		e.prefetch.Swipe()
	}
	e.notifyVisible(ch)
}

// notifyVisible shields the loop from a misbehaving hook.
func (e *Engine) notifyVisible(ch navigation.Change) {
	if e.opts.OnVisible == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(module, "Visibility hook panicked", map[string]interface{}{"panic": r, "index": ch.Index})
		}
	}()
	e.opts.OnVisible(ch.Name, ch.Index)
}

// mutePlayer accepts every stream and plays nothing.
type mutePlayer struct{}

func (mutePlayer) Load(string) error { return nil }
func (mutePlayer) Play() error       { return nil }
func (mutePlayer) Pause()            {}
func (mutePlayer) Rewind()           {}
