package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ivlev/slidefeed/internal/slides"
)

// Source supplies the ordered slide records of a feed.
type Source interface {
	Load(ctx context.Context) ([]slides.Record, error)
}

// ErrEmpty is returned by sources whose location holds nothing to show.
var ErrEmpty = errors.New("source: no slides")

type Kind string

const (
	KindFile   Kind = "file"
	KindHTTP   Kind = "http"
	KindPDF    Kind = "pdf"
	KindImages Kind = "images"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFile, KindHTTP, KindPDF, KindImages:
		return k, nil
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) ([]slides.Record, error)

func (f Func) Load(ctx context.Context) ([]slides.Record, error) {
	return f(ctx)
}

// Static serves a fixed list of records.
type Static []slides.Record

func (s Static) Load(context.Context) ([]slides.Record, error) {
	out := make([]slides.Record, len(s))
	copy(out, s)
	return out, nil
}
