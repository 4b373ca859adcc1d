package prefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Loader fetches one asset.
type Loader interface {
	Load(ctx context.Context, url string, kind Kind) (Media, error)
}

type LoaderFunc func(ctx context.Context, url string, kind Kind) (Media, error)

func (f LoaderFunc) Load(ctx context.Context, url string, kind Kind) (Media, error) {
	return f(ctx, url, kind)
}

// HTTPLoader downloads network assets and stats local ones. Root resolves
// site-relative paths such as "/videos/a.mp4" for local runs.
type HTTPLoader struct {
	Client  *http.Client
	Timeout time.Duration
	Root    string
}

func (l HTTPLoader) Load(ctx context.Context, url string, kind Kind) (Media, error) {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return l.stat(url, kind)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Media{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Media{}, fmt.Errorf("prefetch %s: unexpected status %s", url, resp.Status)
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return Media{}, fmt.Errorf("prefetch %s: %w", url, err)
	}
	return Media{URL: url, Kind: kind, Size: n}, nil
}

func (l HTTPLoader) stat(url string, kind Kind) (Media, error) {
	p := url
	if l.Root != "" {
		p = filepath.Join(l.Root, filepath.FromSlash(strings.TrimLeft(url, "/")))
	}
	fi, err := os.Stat(p)
	if err != nil {
		return Media{}, err
	}
	return Media{URL: url, Kind: kind, Size: fi.Size()}, nil
}
