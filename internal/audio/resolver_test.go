package audio

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDirect(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://cdn.example.com/a.mp3", true},
		{"HTTP://cdn.example.com/a.mp3", true},
		{"blob:https://app/1234", true},
		{"data:audio/mpeg;base64,AAAA", true},
		{"audio/a.mp3", false},
		{"/audio/a.mp3", false},
		{"httpfoo/a.mp3", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDirect(tt.ref))
		})
	}
}

func TestPublicURL(t *testing.T) {
	u, err := PublicURL("https://s3.us-west-004.backblazeb2.com", "feed", "/audio/one.mp3", false)
	require.NoError(t, err)
	assert.Equal(t, "https://feed.s3.us-west-004.backblazeb2.com/audio/one.mp3", u)

	u, err = PublicURL("http://localhost:9000", "feed", "audio/one.mp3", true)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/feed/audio/one.mp3", u)

	_, err = PublicURL("localhost:9000", "feed", "a.mp3", true)
	assert.Error(t, err)
}

func TestDirectResolverLeavesKeysUnresolved(t *testing.T) {
	r, err := New(StorageConfig{}, nil)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "audio/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = r.Resolve(context.Background(), " https://x/a.mp3 ")
	require.NoError(t, err)
	assert.Equal(t, "https://x/a.mp3", got)
}

func TestSiteResolver(t *testing.T) {
	r, err := New(StorageConfig{SitePrefix: "/audio"}, nil)
	require.NoError(t, err)
	require.IsType(t, Site{}, r)

	tests := []struct {
		ref  string
		want string
	}{
		{"narration/welcome-1.mp3", "/audio/narration/welcome-1.mp3"},
		{" /audio/pricing.mp3 ", "/audio/pricing.mp3"},
		{"https://cdn/a.mp3", "https://cdn/a.mp3"},
		{"../secret.mp3", "/secret.mp3"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := r.Resolve(context.Background(), tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.ref)
	}

	r, err = New(StorageConfig{Endpoint: "https://s3.example.com", Bucket: "b", SitePrefix: "/audio"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PublicResolver{}, r, "a configured bucket wins over the site route")
}

func TestPublicResolver(t *testing.T) {
	r, err := New(StorageConfig{Endpoint: "https://s3.example.com", Bucket: "b"}, nil)
	require.NoError(t, err)
	require.IsType(t, &PublicResolver{}, r)

	got, err := r.Resolve(context.Background(), "k/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.example.com/k/a.mp3", got)

	got, err = r.Resolve(context.Background(), "blob:xyz")
	require.NoError(t, err)
	assert.Equal(t, "blob:xyz", got)

	got, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSignedResolverPresignsOffline(t *testing.T) {
	r, err := NewSignedResolver(StorageConfig{
		Endpoint:       "http://127.0.0.1:9000",
		Bucket:         "feed",
		Region:         "us-west-004",
		AccessKey:      "key",
		SecretKey:      "secret",
		ForcePathStyle: true,
	}, nil)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "/audio/one.mp3")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/feed/audio/one.mp3", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestSignedResolverCachesAndCollapses(t *testing.T) {
	r, err := NewSignedResolver(StorageConfig{Endpoint: "https://s3.example.com", Bucket: "b", Expiry: time.Minute}, nil)
	require.NoError(t, err)

	var calls int32
	release := make(chan struct{})
	r.presign = func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "https://signed/" + key, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Resolve(context.Background(), "a.mp3")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	got, err := r.Resolve(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "https://signed/a.mp3", got)
	for _, res := range results {
		assert.Equal(t, "https://signed/a.mp3", res)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSignedResolverError(t *testing.T) {
	r, err := NewSignedResolver(StorageConfig{Endpoint: "https://s3.example.com", Bucket: "b"}, nil)
	require.NoError(t, err)
	boom := errors.New("boom")
	r.presign = func(context.Context, string) (string, error) { return "", boom }

	_, err = r.Resolve(context.Background(), "a.mp3")
	assert.ErrorIs(t, err, boom)
}

func TestNewSignedResolverRequiresStorage(t *testing.T) {
	_, err := NewSignedResolver(StorageConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoStorage)
}
