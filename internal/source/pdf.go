package source

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/slides"
)

const DefaultDPI = 96

// PDFSource turns every PDF page into a slide: the page text becomes the
// caption and, when RenderDir is set, the rendered page becomes the backdrop.
type PDFSource struct {
	Path string
	// RenderDir receives page-NNN.png files; empty skips rendering.
	RenderDir string
	// BackgroundPrefix is prepended to rendered file names, e.g. "/images/".
	BackgroundPrefix string
	// AudioPattern is a fmt pattern taking the 1-based page number, e.g. "audio/page-%03d.mp3".
	AudioPattern string
	DPI          int
	Workers      int
	Logger       logger.ILogger
}

func (s PDFSource) Load(ctx context.Context) ([]slides.Record, error) {
	doc, err := fitz.New(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", s.Path, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, ErrEmpty
	}

	records := make([]slides.Record, n)
	for i := 0; i < n; i++ {
		text, err := doc.Text(i)
		if err != nil {
			s.log().Warn(module, "Page text extraction failed", map[string]interface{}{"page": i + 1, "error": err.Error()})
		}
		records[i] = slides.Record{
			ID:    fmt.Sprintf("page-%d", i+1),
			Text:  strings.Join(strings.Fields(text), " "),
			Audio: s.audioFor(i + 1),
		}
	}

	if s.RenderDir != "" {
		if err := s.renderAll(ctx, n, records); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// renderAll renders pages in parallel. A fitz document is not safe for
// concurrent use, so every worker opens its own.
func (s PDFSource) renderAll(ctx context.Context, n int, records []slides.Record) error {
	if err := os.MkdirAll(s.RenderDir, 0755); err != nil {
		return err
	}
	dpi := s.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := fmt.Sprintf("page-%03d.png", i+1)
			if err := renderPage(s.Path, i, dpi, filepath.Join(s.RenderDir, name)); err != nil {
				s.log().Warn(module, "Page render failed", map[string]interface{}{"page": i + 1, "error": err.Error()})
				return nil
			}
			// each goroutine owns its own slot
			records[i].Background = path.Join(s.prefix(), name)
			return nil
		})
	}
	return g.Wait()
}

func renderPage(pdfPath string, index, dpi int, out string) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return err
	}
	defer doc.Close()

	img, err := doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return err
	}
	return writePNG(out, img)
}

func writePNG(out string, img image.Image) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s PDFSource) audioFor(page int) string {
	if s.AudioPattern == "" {
		return ""
	}
	return fmt.Sprintf(s.AudioPattern, page)
}

func (s PDFSource) prefix() string {
	if s.BackgroundPrefix == "" {
		return "/images"
	}
	return s.BackgroundPrefix
}

func (s PDFSource) log() logger.ILogger {
	if s.Logger == nil {
		return logger.NewNop()
	}
	return s.Logger
}
