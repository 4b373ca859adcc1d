package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ivlev/slidefeed/internal/slides"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultMaxBytes  = 5_000_000
	DefaultUserAgent = "slidefeed/1.0"
)

var (
	ErrStatus   = errors.New("unexpected HTTP status")
	ErrTooLarge = errors.New("response body too large")
)

// HTTPSource reads slide records from a JSON endpoint. The body is either a
// list of records or an object with a "slides" list.
type HTTPSource struct {
	URL      string
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
}

func (s HTTPSource) Load(ctx context.Context) ([]slides.Record, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var records []slides.Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var doc DeckDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fetch slides: decode: %w", err)
	}
	return doc.Slides, nil
}

func (s HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	if _, err := url.ParseRequestURI(s.URL); err != nil {
		return nil, fmt.Errorf("fetch slides: invalid url %q: %w", s.URL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch slides: new request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch slides: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch slides: %w %s", ErrStatus, resp.Status)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("fetch slides: %w: content-length %d exceeds %d", ErrTooLarge, resp.ContentLength, maxBytes)
	}

	// one extra byte detects overflow
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch slides: read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("fetch slides: %w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
