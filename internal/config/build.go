package config

import (
	"os"
	"strings"

	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/source"
)

// NewSource builds the slide source the config selects.
func (c *Config) NewSource(log logger.ILogger) source.Source {
	s := c.Source
	switch c.Kind() {
	case source.KindHTTP:
		return source.HTTPSource{URL: s.URL, Timeout: s.Timeout, MaxBytes: s.MaxBytes}
	case source.KindPDF:
		return source.PDFSource{
			Path:             s.Path,
			RenderDir:        s.RenderDir,
			BackgroundPrefix: s.ImagePrefix,
			AudioPattern:     s.AudioPattern,
			DPI:              s.DPI,
			Workers:          s.Workers,
			Logger:           log,
		}
	case source.KindImages:
		return source.ImageSource{Dir: s.Path, ImagePrefix: s.ImagePrefix, AudioPrefix: s.AudioPrefix, Logger: log}
	}
	return source.DeckFile{Path: s.Path}
}

// UseInput points the source at input, inferring its kind: an http(s) URL,
// a directory of images, a PDF, or a deck file.
func (c *Config) UseInput(input string) error {
	lower := strings.ToLower(input)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		c.Source.Kind = string(source.KindHTTP)
		c.Source.URL = input
		return nil
	}

	fi, err := os.Stat(input)
	if err != nil {
		return err
	}
	c.Source.Path = input
	switch {
	case fi.IsDir():
		c.Source.Kind = string(source.KindImages)
	case strings.HasSuffix(lower, ".pdf"):
		c.Source.Kind = string(source.KindPDF)
	default:
		c.Source.Kind = string(source.KindFile)
	}
	return nil
}
