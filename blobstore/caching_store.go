package blobstore

import (
	"context"
	"sync"
)

// CachingStore wraps a Store and memoizes whole blobs in memory on
// first read. Artifacts are immutable once published, so cached entries
// never go stale; a Put or Delete through the wrapper still drops the
// entry to keep re-publishing a generation name coherent.
//
// Intended for remote stores where the retriever would otherwise fetch
// the same artifact generation repeatedly.
type CachingStore struct {
	inner Store

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewCachingStore wraps a store with a whole-blob read cache.
func NewCachingStore(inner Store) *CachingStore {
	return &CachingStore{
		inner: inner,
		cache: make(map[string][]byte),
	}
}

// Open returns the cached blob, fetching it from the inner store on
// first access.
func (c *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	c.mu.RLock()
	data, ok := c.cache[name]
	c.mu.RUnlock()

	if !ok {
		fetched, err := ReadAll(ctx, c.inner, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[name] = fetched
		c.mu.Unlock()
		data = fetched
	}

	return &memoryBlob{data: data}, nil
}

// Put writes through to the inner store and invalidates the cache
// entry.
func (c *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	c.invalidate(name)
	return c.inner.Put(ctx, name, data)
}

// Create writes through to the inner store and invalidates the cache
// entry.
func (c *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	c.invalidate(name)
	return c.inner.Create(ctx, name)
}

// Delete removes the blob from the inner store and the cache.
func (c *CachingStore) Delete(ctx context.Context, name string) error {
	c.invalidate(name)
	return c.inner.Delete(ctx, name)
}

// List lists from the inner store; listings are never cached.
func (c *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return c.inner.List(ctx, prefix)
}

func (c *CachingStore) invalidate(name string) {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
}
