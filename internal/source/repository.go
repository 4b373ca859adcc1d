package source

import (
	"context"
	"errors"

	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/slides"
)

const module = "Repository"

// State is the load state of the slide snapshot.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Snapshot is a read-only view of the repository.
type Snapshot struct {
	State      State
	Deck       *slides.Deck
	Err        error
	Generation uint64
}

// Repository wraps a Source with an explicit load state. It is owned by the
// engine loop: Fetch runs the source on its own goroutine and hands the
// result back through post, where results of superseded fetches are dropped.
type Repository struct {
	src    Source
	logger logger.ILogger

	state State
	deck  *slides.Deck
	err   error
	gen   uint64
}

func NewRepository(src Source, log logger.ILogger) *Repository {
	if log == nil {
		log = logger.NewNop()
	}
	return &Repository{src: src, logger: log, deck: slides.NewDeck(nil)}
}

func (r *Repository) Snapshot() Snapshot {
	return Snapshot{State: r.state, Deck: r.deck, Err: r.err, Generation: r.gen}
}

// Fetch starts a load. There is no automatic retry; calling Fetch again is the retry.
func (r *Repository) Fetch(ctx context.Context, post func(func()), done func(Snapshot)) {
	r.gen++
	id := r.gen
	r.state = StateLoading
	r.err = nil
	r.logger.Info(module, "Loading slides", map[string]interface{}{"generation": id})

	go func() {
		records, err := r.src.Load(ctx)
		post(func() {
			if id != r.gen {
				r.logger.Debug(module, "Discarding stale load", map[string]interface{}{"generation": id, "current": r.gen})
				return
			}
			r.apply(records, err)
			if done != nil {
				done(r.Snapshot())
			}
		})
	}()
}

func (r *Repository) apply(records []slides.Record, err error) {
	switch {
	case errors.Is(err, ErrEmpty):
		r.deck = slides.NewDeck(nil)
		r.state = StateEmpty
	case err != nil:
		// the previous deck stays visible behind the error state
		r.err = err
		r.state = StateFailed
		r.logger.Error(module, "Slide load failed", map[string]interface{}{"error": err.Error(), "generation": r.gen})
		return
	case len(records) == 0:
		r.deck = slides.NewDeck(nil)
		r.state = StateEmpty
	default:
		r.deck = slides.NewDeck(slides.Normalize(records))
		r.state = StateReady
	}
	r.logger.Info(module, "Slides loaded", map[string]interface{}{
		"state": r.state.String(), "slides": r.deck.SlideCount(), "generation": r.gen,
	})
}
