package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/ivlev/slidefeed/internal/engine"
	"github.com/ivlev/slidefeed/internal/navigation"
)

// swipeDistance is the displacement used by "swipe up" and "swipe down".
const swipeDistance = 120

var ErrUnknownCommand = errors.New("unknown command")

const help = `commands:
  down | up | pgdn | pgup      keyboard navigation
  swipe up|down|<dy>           touch swipe (negative dy moves forward)
  drag <dy>                    pointer drag
  scroll <offset>              host scroll position
  resize <height>              slide height
  tap                          toggle playback, or the intro affordance
  retry                        reload the slides
  progress <ratio>             report audio progress
  end                          report audio end
  state                        print the HUD
  quit`

// Console drives an engine from line commands, the way a host page would
// from its input events.
type Console struct {
	eng *engine.Engine
	out io.Writer

	title *color.Color
	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	dim   *color.Color
}

func New(eng *engine.Engine, out io.Writer) *Console {
	return &Console{
		eng:   eng,
		out:   out,
		title: color.New(color.FgCyan, color.Bold),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		dim:   color.New(color.Faint),
	}
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.title.Fprintln(c.out, "slidefeed - type 'help' for commands")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.Exec(line)
			switch {
			case errors.Is(err, engine.ErrStopped):
				return err
			case err != nil:
				c.fail.Fprintf(c.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Exec runs one command line and prints the resulting status.
func (c *Console) Exec(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(c.out, help)
		return false, nil
	case "state":
		return false, c.printState()
	}

	if err := c.dispatch(cmd, args); err != nil {
		return false, err
	}
	return false, c.printStatus()
}

func (c *Console) dispatch(cmd string, args []string) error {
	switch cmd {
	case "down", "j":
		return c.key(navigation.KeyDown)
	case "up", "k":
		return c.key(navigation.KeyUp)
	case "pgdn":
		return c.key(navigation.KeyPageDown)
	case "pgup":
		return c.key(navigation.KeyPageUp)
	case "swipe":
		dy, err := swipeArg(args)
		if err != nil {
			return err
		}
		return c.eng.Swipe(navigation.SourceTouch, dy)
	case "drag":
		dy, err := floatArg(args)
		if err != nil {
			return err
		}
		return c.drag(dy)
	case "scroll":
		offset, err := floatArg(args)
		if err != nil {
			return err
		}
		return c.eng.Scroll(offset)
	case "resize":
		h, err := floatArg(args)
		if err != nil {
			return err
		}
		return c.eng.Resize(h)
	case "tap":
		return c.eng.Tap()
	case "retry":
		return c.eng.Retry()
	case "progress":
		r, err := floatArg(args)
		if err != nil {
			return err
		}
		return c.eng.Progress(r)
	case "end":
		return c.eng.Ended()
	}
	return fmt.Errorf("%w %q", ErrUnknownCommand, cmd)
}

func (c *Console) key(k navigation.Key) error {
	_, err := c.eng.Key(k)
	return err
}

func (c *Console) drag(dy float64) error {
	if err := c.eng.BeginGesture(navigation.SourcePointer, navigation.Point{}); err != nil {
		return err
	}
	if _, err := c.eng.MoveGesture(navigation.Point{Y: dy / 2}); err != nil {
		return err
	}
	return c.eng.EndGesture(navigation.Point{Y: dy})
}

func swipeArg(args []string) (float64, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "up":
			return -swipeDistance, nil
		case "down":
			return swipeDistance, nil
		}
	}
	return floatArg(args)
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one numeric argument")
	}
	return strconv.ParseFloat(args[0], 64)
}

func (c *Console) printStatus() error {
	s, err := c.eng.Snapshot()
	if err != nil {
		return err
	}
	c.ok.Fprintf(c.out, "[%s] %s", s.Position, s.Name)
	c.dim.Fprintf(c.out, "  %s", s.Playback)
	if s.Caption != "" {
		fmt.Fprintf(c.out, "  %q", s.Caption)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Console) printState() error {
	s, err := c.eng.Snapshot()
	if err != nil {
		return err
	}
	c.title.Fprintf(c.out, "%s  %s\n", s.Position, s.Name)

	load := c.ok
	if s.LoadErr != "" {
		load = c.fail
	}
	load.Fprintf(c.out, "  load:      %s", s.Load)
	if s.LoadErr != "" {
		load.Fprintf(c.out, " (%s)", s.LoadErr)
	}
	fmt.Fprintln(c.out)
	if s.Slide == nil {
		fmt.Fprintf(c.out, "  intro:     tap to %s\n", s.Affordance)
	} else {
		fmt.Fprintf(c.out, "  section:   %d/%d  action=%s\n", s.Section+1, len(s.Slide.Sections), s.Action)
		fmt.Fprintf(c.out, "  caption:   %q (page %d/%d)\n", s.Caption, s.Page+1, s.Pages)
	}

	playback := c.ok
	if s.Silent {
		playback = c.warn
	}
	playback.Fprintf(c.out, "  playback:  %s", s.Playback)
	if s.AudioURL != "" {
		fmt.Fprintf(c.out, " %s", s.AudioURL)
	}
	if s.Silent {
		playback.Fprint(c.out, " (silent)")
	}
	fmt.Fprintln(c.out)
	c.dim.Fprintf(c.out, "  gesture:   %s  swipes=%d\n", s.Phase, s.Swipes)
	c.dim.Fprintf(c.out, "  prefetch:  cached=%d  ambient=%s\n", s.Cached, s.Ambient)
	c.dim.Fprintf(c.out, "  session:   %s\n", s.Session)
	return nil
}
