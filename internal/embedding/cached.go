package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of query embeddings kept when none is configured.
const DefaultCacheSize = 1000

// CachedProvider wraps a Provider with an LRU of recent embeddings.
// Concurrent requests for the same text share one inner Embed call.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

// NewCachedProvider wraps inner with a cache of size entries.
func NewCachedProvider(inner Provider, size int) *CachedProvider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedProvider{inner: inner, cache: cache}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector or computes and caches it.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Dimensions passes through to the inner provider.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// Available passes through to the inner provider.
func (c *CachedProvider) Available(ctx context.Context) error { return c.inner.Available(ctx) }

// Unload releases the inner model. Cached vectors stay valid.
func (c *CachedProvider) Unload() error { return c.inner.Unload() }

// Close purges the cache and closes the inner provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Len returns the number of cached embeddings.
func (c *CachedProvider) Len() int { return c.cache.Len() }
