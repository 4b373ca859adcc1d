package audio

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/slidefeed/internal/logger"
)

// SignedResolver presigns GET URLs for private buckets. Signed URLs are cached
// until shortly before they expire, and concurrent requests for the same key
// share one signing call.
type SignedResolver struct {
	bucket  string
	expiry  time.Duration
	cache   *cache.Cache
	group   singleflight.Group
	logger  logger.ILogger
	presign func(ctx context.Context, key string) (string, error)
}

func NewSignedResolver(cfg StorageConfig, log logger.ILogger) (*SignedResolver, error) {
	if !cfg.Configured() {
		return nil, ErrNoStorage
	}
	if log == nil {
		log = logger.NewNop()
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storage endpoint %q must be absolute", cfg.Endpoint)
	}

	region := cfg.Region
	if region == "" {
		// an empty region makes the client look the bucket location up over the network
		region = "us-east-1"
	}
	lookup := minio.BucketLookupDNS
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       u.Scheme != "http",
		Region:       region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultSignExpiry
	}
	r := &SignedResolver{
		bucket: cfg.Bucket,
		expiry: expiry,
		// reuse a signed URL for 80% of its lifetime
		cache:  cache.New(expiry*4/5, expiry),
		logger: log,
	}
	r.presign = func(ctx context.Context, key string) (string, error) {
		signed, err := client.PresignedGetObject(ctx, r.bucket, key, r.expiry, url.Values{})
		if err != nil {
			return "", err
		}
		return signed.String(), nil
	}
	return r, nil
}

func (r *SignedResolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if IsDirect(ref) {
		return ref, nil
	}
	key := strings.TrimLeft(ref, "/")
	if key == "" {
		return "", nil
	}
	if x, found := r.cache.Get(key); found {
		return x.(string), nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		signed, err := r.presign(ctx, key)
		if err != nil {
			return "", err
		}
		r.cache.Set(key, signed, cache.DefaultExpiration)
		return signed, nil
	})
	if err != nil {
		r.logger.Warn(module, "Presign failed", map[string]interface{}{"key": key, "error": err.Error()})
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return v.(string), nil
}
