// Package images provides the image-caching collaborator. Listing creation
// never blocks on it: when a remote image is not cached the caller keeps the
// original URL.
package images

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	flipErrors "github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/storage"
)

// ErrNotCached signals that no local copy of the image exists
var ErrNotCached = errors.New("image not cached")

// Cache resolves remote image URLs to locally cached refs
type Cache interface {
	// Resolve returns the cached ref for a remote URL, or ErrNotCached
	Resolve(ctx context.Context, remoteURL string) (string, error)
	// Store records a cached ref for a remote URL
	Store(ctx context.Context, remoteURL, localRef string) error
}

// RedisCache maps remote URLs to cached refs in Redis.
type RedisCache struct {
	cache *storage.RedisCache
	ttl   time.Duration
}

// NewRedisCache creates a Redis-backed image ref cache
func NewRedisCache(cache *storage.RedisCache, ttl time.Duration) *RedisCache {
	return &RedisCache{cache: cache, ttl: ttl}
}

// Resolve returns the cached ref for a remote URL, or ErrNotCached
func (c *RedisCache) Resolve(ctx context.Context, remoteURL string) (string, error) {
	ref, err := c.cache.Get(ctx, cacheKey(remoteURL))
	if err != nil {
		return "", ErrNotCached
	}
	return ref, nil
}

// Store records a cached ref for a remote URL
func (c *RedisCache) Store(ctx context.Context, remoteURL, localRef string) error {
	if err := c.cache.Set(ctx, cacheKey(remoteURL), localRef, c.ttl); err != nil {
		return flipErrors.NewCacheError("store image ref", err)
	}
	return nil
}

// cacheKey derives a bounded key from an arbitrarily long image URL
func cacheKey(remoteURL string) string {
	sum := sha1.Sum([]byte(remoteURL))
	return "images:ref:" + hex.EncodeToString(sum[:])
}

// ResolveAll maps each remote URL through the cache, falling back to the
// remote URL itself when no cached copy exists.
func ResolveAll(ctx context.Context, cache Cache, remoteURLs []string) []string {
	if cache == nil {
		return remoteURLs
	}

	refs := make([]string, 0, len(remoteURLs))
	for _, remote := range remoteURLs {
		ref, err := cache.Resolve(ctx, remote)
		if err != nil {
			ref = remote
		}
		refs = append(refs, ref)
	}
	return refs
}

// NopCache never has a cached copy; useful in tests.
type NopCache struct{}

// Resolve always reports a miss
func (NopCache) Resolve(context.Context, string) (string, error) { return "", ErrNotCached }

// Store discards the ref
func (NopCache) Store(context.Context, string, string) error { return nil }
