package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/slidefeed/internal/navigation"
	"github.com/ivlev/slidefeed/internal/playback"
	"github.com/ivlev/slidefeed/internal/prefetch"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
)

type recordingPlayer struct {
	mu  sync.Mutex
	src string
	log []string
}

func (p *recordingPlayer) Load(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.src = url
	p.log = append(p.log, "load "+url)
	return nil
}

func (p *recordingPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, "play")
	return nil
}

func (p *recordingPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, "pause")
}

func (p *recordingPlayer) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, "rewind")
}

type visit struct {
	name  string
	index int
}

type harness struct {
	t        *testing.T
	e        *Engine
	player   *recordingPlayer
	clock    *clock.Mock
	cancel   context.CancelFunc
	errc     chan error
	stopOnce sync.Once

	mu      sync.Mutex
	visits  []visit
	ambient []string
}

var feed = []slides.Record{
	{Title: "A", Sections: []slides.SectionRecord{
		{Text: "one two", Audio: "https://cdn/a0.mp3", Action: "wave"},
		{Text: "three", Audio: "https://cdn/a1.mp3"},
	}},
	{Title: "B", Text: "four", Audio: "https://cdn/b.mp3"},
}

func start(t *testing.T, src source.Source, tweak func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, player: &recordingPlayer{}, clock: clock.NewMock(), errc: make(chan error, 1)}
	opts := Options{
		Source: src,
		Player: h.player,
		Loader: prefetch.LoaderFunc(func(ctx context.Context, url string, kind prefetch.Kind) (prefetch.Media, error) {
			return prefetch.Media{Size: 1}, nil
		}),
		Videos: []string{"/videos/rain.mp4", "/videos/city.mp4"},
		OnVisible: func(name string, index int) {
			h.mu.Lock()
			h.visits = append(h.visits, visit{name, index})
			h.mu.Unlock()
		},
		OnAmbient: func(url string) {
			h.mu.Lock()
			h.ambient = append(h.ambient, url)
			h.mu.Unlock()
		},
		Clock: h.clock,
	}
	if tweak != nil {
		tweak(&opts)
	}
	h.e = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errc <- h.e.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		select {
		case err := <-h.errc:
			assert.NoError(h.t, err)
		case <-time.After(2 * time.Second):
			h.t.Error("engine did not stop")
		}
	})
}

func (h *harness) snap() Snapshot {
	h.t.Helper()
	s, err := h.e.Snapshot()
	require.NoError(h.t, err)
	return s
}

func (h *harness) waitFor(msg string, cond func(Snapshot) bool) Snapshot {
	h.t.Helper()
	var last Snapshot
	require.Eventually(h.t, func() bool {
		last = h.snap()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, msg)
	return last
}

func (h *harness) playing(url string) Snapshot {
	h.t.Helper()
	return h.waitFor("playing "+url, func(s Snapshot) bool {
		return s.Playback == playback.Playing && s.AudioURL == url
	})
}

func (h *harness) visited() []visit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]visit(nil), h.visits...)
}

func TestEngineLoadsAndStartsFromIntro(t *testing.T) {
	h := start(t, source.Static(feed), nil)

	s := h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, "1 / 3", s.Position)
	assert.Equal(t, slides.IntroName, s.Name)
	assert.Equal(t, AffordanceStart, s.Affordance)
	assert.Equal(t, playback.Idle, s.Playback)
	assert.Nil(t, s.Slide)
	assert.NotEmpty(t, s.Session)
	assert.Equal(t, "/videos/rain.mp4", s.Ambient)

	require.NoError(t, h.e.Tap())
	s = h.playing("https://cdn/a0.mp3")
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, "2 / 3", s.Position)
	assert.Equal(t, "A", s.Name)
	assert.Equal(t, "wave", s.Action)
	assert.Equal(t, "one", s.Caption)
	assert.Equal(t, 2, s.Pages)

	require.NoError(t, h.e.Progress(0.6))
	s = h.snap()
	assert.Equal(t, "two", s.Caption)

	assert.Equal(t, []visit{{"intro", 0}, {"A", 1}}, h.visited(), "the intro is reported on start")
}

func TestEngineScenario(t *testing.T) {
	h := start(t, source.Static(feed), nil)
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })

	require.NoError(t, h.e.Next())
	h.playing("https://cdn/a0.mp3")

	require.NoError(t, h.e.Ended())
	s := h.playing("https://cdn/a1.mp3")
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, 1, s.Section)

	require.NoError(t, h.e.Ended())
	s = h.playing("https://cdn/b.mp3")
	assert.Equal(t, 2, s.Index)

	require.NoError(t, h.e.Ended())
	require.NoError(t, h.e.Sync())
	s = h.snap()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, playback.Playing, s.Playback)

	h.player.mu.Lock()
	tail := h.player.log[len(h.player.log)-2:]
	h.player.mu.Unlock()
	assert.Equal(t, []string{"rewind", "play"}, tail)

	assert.Equal(t, []visit{{"intro", 0}, {"A", 1}, {"B", 2}}, h.visited())
}

func TestEngineGestures(t *testing.T) {
	h := start(t, source.Static(feed), nil)
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })

	require.NoError(t, h.e.Swipe(navigation.SourceTouch, -30))
	require.NoError(t, h.e.Sync())
	assert.Equal(t, 0, h.snap().Index, "below threshold")

	require.NoError(t, h.e.BeginGesture(navigation.SourcePointer, navigation.Point{Y: 400}))
	suppress, err := h.e.MoveGesture(navigation.Point{Y: 350})
	require.NoError(t, err)
	assert.True(t, suppress)
	require.NoError(t, h.e.EndGesture(navigation.Point{Y: 300}))
	require.NoError(t, h.e.Sync())
	assert.Equal(t, 1, h.snap().Index)

	// a native scroll during the touch already moved the feed
	require.NoError(t, h.e.BeginGesture(navigation.SourceTouch, navigation.Point{Y: 400}))
	require.NoError(t, h.e.Scroll(2))
	require.NoError(t, h.e.EndGesture(navigation.Point{Y: 200}))
	require.NoError(t, h.e.Sync())
	s := h.snap()
	assert.Equal(t, 2, s.Index, "exactly one navigation for the gesture")
	assert.Equal(t, 2, s.Swipes)

	consumed, err := h.e.Key(navigation.KeyPageUp)
	require.NoError(t, err)
	assert.True(t, consumed)
	consumed, err = h.e.Key("Enter")
	require.NoError(t, err)
	assert.False(t, consumed)
	require.NoError(t, h.e.Sync())
	assert.Equal(t, 1, h.snap().Index)
	assert.Equal(t, 2, h.snap().Swipes, "key navigation is not a swipe")
}

func TestEngineFiveSwipesSwapAmbient(t *testing.T) {
	var records []slides.Record
	for i := 0; i < 8; i++ {
		records = append(records, slides.Record{Text: "slide"})
	}
	h := start(t, source.Static(records), nil)
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })

	for i := 0; i < 5; i++ {
		require.NoError(t, h.e.Swipe(navigation.SourceTouch, -120))
	}
	require.NoError(t, h.e.Sync())

	s := h.snap()
	assert.Equal(t, 5, s.Index)
	assert.Equal(t, 0, s.Swipes)
	h.mu.Lock()
	assert.Len(t, h.ambient, 1)
	h.mu.Unlock()
}

func TestEngineRetryAfterLoadError(t *testing.T) {
	var mu sync.Mutex
	fail := true
	src := source.Func(func(context.Context) ([]slides.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, errors.New("502 bad gateway")
		}
		return feed, nil
	})
	h := start(t, src, nil)

	s := h.waitFor("failed", func(s Snapshot) bool { return s.Load == source.StateFailed })
	assert.Equal(t, AffordanceRetry, s.Affordance)
	assert.Equal(t, "502 bad gateway", s.LoadErr)
	assert.Equal(t, 1, s.Total)

	require.NoError(t, h.e.Next())
	require.NoError(t, h.e.Sync())
	assert.Equal(t, 0, h.snap().Index, "only the intro exists")

	mu.Lock()
	fail = false
	mu.Unlock()
	require.NoError(t, h.e.Tap())
	s = h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, AffordanceStart, s.Affordance)
}

func TestEngineTapTogglesPlayback(t *testing.T) {
	h := start(t, source.Static(feed), nil)
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })
	require.NoError(t, h.e.Next())
	h.playing("https://cdn/a0.mp3")

	require.NoError(t, h.e.Tap())
	require.NoError(t, h.e.Sync())
	s := h.snap()
	assert.Equal(t, playback.Paused, s.Playback)
	assert.Equal(t, 1, s.Index)

	require.NoError(t, h.e.Tap())
	require.NoError(t, h.e.Sync())
	assert.Equal(t, playback.Playing, h.snap().Playback)
}

func TestEngineHookPanicIsContained(t *testing.T) {
	h := start(t, source.Static(feed), func(o *Options) {
		o.OnVisible = func(string, int) { panic("hook") }
	})
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })

	require.NoError(t, h.e.Next())
	h.playing("https://cdn/a0.mp3")
}

func TestEngineStopped(t *testing.T) {
	h := start(t, source.Static(feed), nil)
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })
	h.stop()

	assert.ErrorIs(t, h.e.Next(), ErrStopped)
	_, err := h.e.Snapshot()
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, h.e.Run(context.Background()), "Run only once")
}

func TestEngineDropsStaleStreamReports(t *testing.T) {
	h := start(t, source.Static(feed), nil)
	h.waitFor("ready", func(s Snapshot) bool { return s.Load == source.StateReady })
	require.NoError(t, h.e.Next())
	h.playing("https://cdn/a0.mp3")

	require.NoError(t, h.e.StreamEnded("https://cdn/old.mp3"))
	require.NoError(t, h.e.Sync())
	s := h.snap()
	assert.Equal(t, 0, s.Section, "report for another stream is ignored")

	require.NoError(t, h.e.StreamEnded("https://cdn/a0.mp3"))
	s = h.playing("https://cdn/a1.mp3")
	assert.Equal(t, 1, s.Section)
}
