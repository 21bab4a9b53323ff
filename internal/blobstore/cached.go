package blobstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
)

// DefaultCacheEntryLimit is the largest record the read cache keeps.
// Bigger records, typically panorama videos, are always read from the
// backend.
const DefaultCacheEntryLimit = 8 << 20

// CachedStore keeps recently read records in memory in front of a slow
// backend such as MinIO. Writes go to the backend first and then drop the
// cached copy, so a read never returns a record older than the last
// successful Put.
type CachedStore struct {
	backend    Store
	maxBytes   int64
	entryLimit int64
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	size    int64
	hits    int64
	misses  int64
	// writes counts completed writes per key and clears per namespace; a
	// backend read only fills the cache if neither moved while it ran.
	writes map[cacheKey]uint64
	clears map[models.Namespace]uint64
}

type cacheKey struct {
	ns  models.Namespace
	key string
}

type cacheEntry struct {
	rec        models.BlobRecord
	lastAccess time.Time
}

// CacheStats describes the read cache.
type CacheStats struct {
	Records   int   `json:"records"`
	SizeBytes int64 `json:"sizeBytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// NewCachedStore wraps backend with a read cache of at most maxBytes.
// A non-positive maxBytes returns backend unchanged.
func NewCachedStore(backend Store, maxBytes int64, logger *zap.Logger, m *metrics.Metrics) Store {
	if maxBytes <= 0 {
		return backend
	}
	limit := int64(DefaultCacheEntryLimit)
	if limit > maxBytes {
		limit = maxBytes
	}
	return &CachedStore{
		backend:    backend,
		maxBytes:   maxBytes,
		entryLimit: limit,
		logger:     logging.OrNop(logger),
		metrics:    m,
		entries:    make(map[cacheKey]*cacheEntry),
		writes:     make(map[cacheKey]uint64),
		clears:     make(map[models.Namespace]uint64),
	}
}

func (c *CachedStore) Put(ctx context.Context, ns models.Namespace, key string, data []byte, meta models.BlobMeta) bool {
	ok := c.backend.Put(ctx, ns, key, data, meta)
	c.invalidate(cacheKey{ns, key})
	return ok
}

func (c *CachedStore) Get(ctx context.Context, ns models.Namespace, key string) *models.BlobRecord {
	k := cacheKey{ns, key}
	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		e.lastAccess = time.Now()
		c.hits++
		rec := e.rec
		size := c.size
		c.mu.Unlock()
		rec.Blob = append([]byte(nil), rec.Blob...)
		c.metrics.ObserveCacheLookup("hit", size)
		return &rec
	}
	c.misses++
	gen := c.generation(k)
	c.mu.Unlock()

	rec := c.backend.Get(ctx, ns, key)
	if rec == nil {
		c.metrics.ObserveCacheLookup("miss", c.Stats().SizeBytes)
		return nil
	}
	if int64(len(rec.Blob)) > c.entryLimit {
		c.metrics.ObserveCacheLookup("bypass", c.Stats().SizeBytes)
		return rec
	}

	c.mu.Lock()
	if c.generation(k) == gen {
		c.store(k, rec)
	}
	size := c.size
	c.mu.Unlock()
	c.metrics.ObserveCacheLookup("miss", size)
	return rec
}

func (c *CachedStore) Delete(ctx context.Context, ns models.Namespace, key string) bool {
	ok := c.backend.Delete(ctx, ns, key)
	c.invalidate(cacheKey{ns, key})
	return ok
}

func (c *CachedStore) ClearAll(ctx context.Context, ns models.Namespace) bool {
	ok := c.backend.ClearAll(ctx, ns)
	c.mu.Lock()
	c.clears[ns]++
	for k := range c.writes {
		if k.ns == ns {
			delete(c.writes, k)
		}
	}
	for k := range c.entries {
		if k.ns == ns {
			c.drop(k)
		}
	}
	c.mu.Unlock()
	return ok
}

// Stats returns the current cache usage.
func (c *CachedStore) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Records: len(c.entries), SizeBytes: c.size, Hits: c.hits, Misses: c.misses}
}

// invalidate drops the cached copy of k and marks reads already in flight
// as stale.
func (c *CachedStore) invalidate(k cacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes[k]++
	c.drop(k)
}

// generation changes whenever k is written or its namespace is cleared.
// Callers hold mu.
func (c *CachedStore) generation(k cacheKey) [2]uint64 {
	return [2]uint64{c.clears[k.ns], c.writes[k]}
}

// store keeps a copy of rec, evicting the least recently read records
// until it fits. Callers hold mu.
func (c *CachedStore) store(k cacheKey, rec *models.BlobRecord) {
	c.drop(k)
	need := int64(len(rec.Blob))
	for c.size+need > c.maxBytes {
		if !c.evictLRU() {
			return
		}
	}
	cp := *rec
	cp.Blob = append([]byte(nil), rec.Blob...)
	c.entries[k] = &cacheEntry{rec: cp, lastAccess: time.Now()}
	c.size += need
}

func (c *CachedStore) evictLRU() bool {
	var oldest cacheKey
	var oldestAt time.Time
	found := false
	for k, e := range c.entries {
		if !found || e.lastAccess.Before(oldestAt) {
			oldest, oldestAt, found = k, e.lastAccess, true
		}
	}
	if found {
		c.logger.Debug("evicting cached blob", zap.String("namespace", string(oldest.ns)), zap.String("key", oldest.key))
		c.drop(oldest)
	}
	return found
}

func (c *CachedStore) drop(k cacheKey) {
	if e, ok := c.entries[k]; ok {
		c.size -= int64(len(e.rec.Blob))
		delete(c.entries, k)
	}
}
