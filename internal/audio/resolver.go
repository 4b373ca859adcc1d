package audio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ivlev/slidefeed/internal/logger"
)

const module = "Resolver"

// DefaultSignExpiry is the lifetime of presigned URLs.
const DefaultSignExpiry = 900 * time.Second

var ErrNoStorage = errors.New("audio: storage is not configured")

// Resolver maps a section's raw audio reference to a playable URL.
// An empty URL with a nil error means the reference is unresolved and the
// section is silent.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// IsDirect reports whether ref is already a fully-qualified network or
// in-memory reference that needs no resolution.
func IsDirect(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	for _, prefix := range []string{"http://", "https://", "blob:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// StorageConfig describes the S3-compatible bucket audio keys live in.
type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Bucket         string        `yaml:"bucket"`
	Region         string        `yaml:"region"`
	AccessKey      string        `yaml:"-"`
	SecretKey      string        `yaml:"-"`
	ForcePathStyle bool          `yaml:"force_path_style"`
	Signed         bool          `yaml:"signed"`
	Expiry         time.Duration `yaml:"expiry"`
	// SitePrefix is the feed's own audio route, used for keys when no
	// bucket is configured.
	SitePrefix string `yaml:"site_prefix"`
}

// Configured reports whether keys can be turned into URLs at all.
func (c StorageConfig) Configured() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// New picks the resolver for a storage configuration. Without a bucket keys
// are served from SitePrefix, or left unresolved when that is empty. Signed
// selects presigned URLs, otherwise public URLs are built.
func New(cfg StorageConfig, log logger.ILogger) (Resolver, error) {
	switch {
	case !cfg.Configured() && cfg.SitePrefix != "":
		return Site{Prefix: cfg.SitePrefix}, nil
	case !cfg.Configured():
		return Direct{}, nil
	case cfg.Signed:
		return NewSignedResolver(cfg, log)
	default:
		return &PublicResolver{cfg: cfg}, nil
	}
}

// Direct passes direct references through and leaves every storage key unresolved.
type Direct struct{}

func (Direct) Resolve(_ context.Context, ref string) (string, error) {
	if IsDirect(ref) {
		return strings.TrimSpace(ref), nil
	}
	return "", nil
}

// Site resolves keys against the feed's own server: site-relative paths such
// as "/audio/a.mp3" are kept, bare keys are placed under Prefix.
type Site struct {
	Prefix string
}

func (r Site) Resolve(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || IsDirect(ref) || strings.HasPrefix(ref, "/") {
		return ref, nil
	}
	return path.Join("/", r.Prefix, ref), nil
}

// PublicResolver builds public object URLs for publicly readable buckets.
type PublicResolver struct {
	cfg StorageConfig
}

func NewPublicResolver(cfg StorageConfig) (*PublicResolver, error) {
	if !cfg.Configured() {
		return nil, ErrNoStorage
	}
	return &PublicResolver{cfg: cfg}, nil
}

func (r *PublicResolver) Resolve(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if IsDirect(ref) {
		return ref, nil
	}
	return PublicURL(r.cfg.Endpoint, r.cfg.Bucket, ref, r.cfg.ForcePathStyle)
}

// PublicURL returns scheme://bucket.host/key (virtual-hosted style) or
// scheme://host/bucket/key when pathStyle is set.
func PublicURL(endpoint, bucket, key string, pathStyle bool) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse storage endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("storage endpoint %q must be absolute", endpoint)
	}
	key = strings.TrimLeft(key, "/")
	if bucket == "" || key == "" {
		return "", nil
	}
	if pathStyle {
		return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, bucket, key), nil
	}
	return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, bucket, u.Host, key), nil
}
