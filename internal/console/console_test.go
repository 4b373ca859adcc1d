package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/slidefeed/internal/engine"
	"github.com/ivlev/slidefeed/internal/prefetch"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
)

func startEngine(t *testing.T) *engine.Engine {
	t.Helper()
	color.NoColor = true

	eng := engine.New(engine.Options{
		Source: source.Static([]slides.Record{
			{Title: "Welcome", Text: "hello world", Audio: "https://cdn/a.mp3"},
			{Title: "Pricing", Text: "cheap"},
			{Title: "Outro", Text: "bye"},
		}),
		Loader: prefetch.LoaderFunc(func(_ context.Context, url string, kind prefetch.Kind) (prefetch.Media, error) {
			return prefetch.Media{URL: url, Kind: kind}, nil
		}),
		Clock: clock.NewMock(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		s, err := eng.Snapshot()
		return err == nil && s.Load == source.StateReady
	}, 2*time.Second, 5*time.Millisecond)
	return eng
}

func TestExecNavigates(t *testing.T) {
	eng := startEngine(t)
	var out bytes.Buffer
	c := New(eng, &out)

	quit, err := c.Exec("down")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "[2 / 4] Welcome")

	_, err = c.Exec("swipe up")
	require.NoError(t, err)
	_, err = c.Exec("drag -200")
	require.NoError(t, err)
	s, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Index)
	assert.Equal(t, "Outro", s.Name)

	_, err = c.Exec("pgup")
	require.NoError(t, err)
	_, err = c.Exec("scroll 0")
	require.NoError(t, err)
	s, err = eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Index)
}

func TestExecRejectsBadInput(t *testing.T) {
	c := New(startEngine(t), &bytes.Buffer{})

	_, err := c.Exec("fly")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	_, err = c.Exec("swipe sideways")
	assert.Error(t, err)
	_, err = c.Exec("progress")
	assert.Error(t, err)

	quit, err := c.Exec("   ")
	assert.NoError(t, err)
	assert.False(t, quit)
}

func TestRunStopsAtQuit(t *testing.T) {
	eng := startEngine(t)
	var out bytes.Buffer
	c := New(eng, &out)

	in := strings.NewReader("down\nbogus\nstate\nquit\ndown\n")
	require.NoError(t, c.Run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "error: unknown command")
	assert.Contains(t, text, "playback:")
	assert.Contains(t, text, "section:   1/1")

	s, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index, "commands after quit are not run")
}

func TestStateOnIntro(t *testing.T) {
	var out bytes.Buffer
	c := New(startEngine(t), &out)
	_, err := c.Exec("state")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "tap to start")
	assert.Contains(t, out.String(), "load:      ready")
}
