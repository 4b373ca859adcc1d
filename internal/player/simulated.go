package player

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/system"
)

const module = "Player"

const (
	DefaultTick     = 250 * time.Millisecond
	DefaultFallback = 5 * time.Second
	probeTimeout    = 5 * time.Second
)

var ErrNoSource = errors.New("player: no source loaded")

// DurationFunc measures a stream. Site-relative URLs arrive as paths under Root.
type DurationFunc func(ctx context.Context, path string) (time.Duration, error)

type Options struct {
	// Durations measures streams; ffprobe when nil.
	Durations DurationFunc
	// Root maps site-relative URLs such as "/audio/a.mp3" to local files.
	Root string
	// Fallback is the duration assumed when a stream cannot be measured.
	// Negative makes Load fail instead.
	Fallback time.Duration
	Tick     time.Duration

	// Both callbacks name the stream they report on, so a consumer can
	// ignore reports that raced with a Load.
	OnProgress func(url string, ratio float64)
	OnEnded    func(url string)

	Clock  clock.Clock
	Logger logger.ILogger
}

// Simulated is a headless audio element. It plays nothing, but advances a
// position on the clock and reports progress and end like a real element.
// Callbacks run on the player's own goroutine, outside its lock.
type Simulated struct {
	opts Options
	log  logger.ILogger

	mu      sync.Mutex
	src     string
	dur     time.Duration
	pos     time.Duration
	playing bool
	stop    chan struct{}
}

func NewSimulated(opts Options) *Simulated {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Fallback == 0 {
		opts.Fallback = DefaultFallback
	}
	if opts.Durations == nil {
		opts.Durations = system.ProbeDuration
	}
	return &Simulated{opts: opts, log: opts.Logger}
}

func localPath(root, url string) string {
	lower := strings.ToLower(url)
	if root == "" || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimLeft(url, "/")))
}

// Load replaces the current source. The previous stream stops.
func (p *Simulated) Load(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	dur, err := p.opts.Durations(ctx, localPath(p.opts.Root, url))
	cancel()
	if err != nil {
		if p.opts.Fallback < 0 {
			return err
		}
		p.log.Warn(module, "Duration unknown, using fallback", map[string]interface{}{
			"url": url, "error": err.Error(), "fallback": p.opts.Fallback.String(),
		})
		dur = p.opts.Fallback
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.halt()
	p.src = url
	p.dur = dur
	p.pos = 0
	p.log.Debug(module, "Stream loaded", map[string]interface{}{"url": url, "duration": dur.String()})
	return nil
}

func (p *Simulated) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.src == "" {
		return ErrNoSource
	}
	if p.playing {
		return nil
	}
	p.playing = true
	p.stop = make(chan struct{})
	go p.run(p.opts.Clock.Ticker(p.opts.Tick), p.stop)
	return nil
}

func (p *Simulated) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halt()
}

func (p *Simulated) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = 0
}

// Position reports the current source, position and duration.
func (p *Simulated) Position() (src string, pos, dur time.Duration, playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src, p.pos, p.dur, p.playing
}

// halt stops the tick goroutine. Caller holds mu.
func (p *Simulated) halt() {
	if !p.playing {
		return
	}
	p.playing = false
	close(p.stop)
}

func (p *Simulated) run(ticker *clock.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		select {
		case <-stop:
			p.mu.Unlock()
			return
		default:
		}
		p.pos += p.opts.Tick
		ended := p.pos >= p.dur
		if ended {
			p.pos = p.dur
		}
		ratio := 1.0
		if p.dur > 0 {
			ratio = float64(p.pos) / float64(p.dur)
		}
		src := p.src
		if ended {
			p.halt()
		}
		p.mu.Unlock()

		if p.opts.OnProgress != nil {
			p.opts.OnProgress(src, ratio)
		}
		if ended {
			if p.opts.OnEnded != nil {
				p.opts.OnEnded(src)
			}
			return
		}
	}
}
