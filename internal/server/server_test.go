package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
)

var records = []slides.Record{
	{ID: "intro", Title: "Welcome", Text: "hello there", Audio: "/audio/intro.mp3"},
	{Title: "Pricing", Sections: []slides.SectionRecord{{Text: "one"}, {Text: "two", Action: "point"}}},
}

func get(t *testing.T, s *Server, target string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func TestListSlides(t *testing.T) {
	s := New(Options{Source: source.Static(records)})

	resp, body := get(t, s, "/api/slides")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var got []slides.Record
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, records, got)
}

func TestListSlidesEmptyAndFailing(t *testing.T) {
	tests := []struct {
		name     string
		src      source.Source
		status   int
		wantBody string
	}{
		{"nil records", source.Static(nil), http.StatusOK, "[]"},
		{"empty source", source.Func(func(context.Context) ([]slides.Record, error) {
			return nil, source.ErrEmpty
		}), http.StatusOK, "[]"},
		{"failing source", source.Func(func(context.Context) ([]slides.Record, error) {
			return nil, errors.New("bucket offline")
		}), http.StatusBadGateway, `{"error":"bucket offline"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, New(Options{Source: tt.src}), "/api/slides")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestHealthAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.mp3"), []byte("ID3"), 0o644))
	s := New(Options{Source: source.Static(records), AudioDir: dir})

	resp, body := get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = get(t, s, "/audio/intro.mp3")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ID3", string(body))

	resp, _ = get(t, s, "/images/missing.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "unset directories are not served")
}

func TestHTTPSourceReadsServer(t *testing.T) {
	s := New(Options{Source: source.Static(records)})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.GetApp().Listener(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	src := source.HTTPSource{URL: "http://" + ln.Addr().String() + "/api/slides", Timeout: 2 * time.Second}
	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestHealthReportsResources(t *testing.T) {
	s := New(Options{Source: source.Static(records), Resources: true})
	resp, body := get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Status    string `json:"status"`
		Resources struct {
			CPUs int `json:"cpus"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ok", got.Status)
	assert.Positive(t, got.Resources.CPUs)
}

func TestQRCode(t *testing.T) {
	resp, _ := get(t, New(Options{Source: source.Static(records)}), "/api/qr")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no public url, no route")

	s := New(Options{Source: source.Static(records), PublicURL: "http://192.168.1.20:3000/"})
	resp, body := get(t, s, "/api/qr")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "\x89PNG", string(body[:4]))

	text, err := QRText("http://192.168.1.20:3000/")
	require.NoError(t, err)
	assert.Greater(t, strings.Count(text, "\n"), 10)
}
