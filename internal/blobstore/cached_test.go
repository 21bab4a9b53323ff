package blobstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/models"
)

// countingStore counts backend reads.
type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, ns models.Namespace, key string) *models.BlobRecord {
	c.gets++
	return c.Store.Get(ctx, ns, key)
}

// gatedStore pauses Get after the backend read until release is closed.
type gatedStore struct {
	Store
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, ns models.Namespace, key string) *models.BlobRecord {
	rec := g.Store.Get(ctx, ns, key)
	close(g.read)
	<-g.release
	return rec
}

func TestCachedStore(t *testing.T) {
	testStoreContract(t, NewCachedStore(NewMemoryStore(), 1<<20, nil, nil))
}

func TestNewCachedStore_Disabled(t *testing.T) {
	backend := NewMemoryStore()
	assert.Same(t, backend, NewCachedStore(backend, 0, nil, nil))
}

func TestCachedStore_ServesRepeatReadsFromMemory(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewMemoryStore()}
	s := NewCachedStore(backend, 1<<20, nil, nil).(*CachedStore)
	require.True(t, s.Put(ctx, models.NamespaceImages, "scene-a-image", []byte("png"), models.BlobMeta{Name: "a.png"}))

	for i := 0; i < 3; i++ {
		rec := s.Get(ctx, models.NamespaceImages, "scene-a-image")
		require.NotNil(t, rec)
		assert.Equal(t, []byte("png"), rec.Blob)
	}
	assert.Equal(t, 1, backend.gets)
	assert.Equal(t, CacheStats{Records: 1, SizeBytes: 3, Hits: 2, Misses: 1}, s.Stats())

	// callers own the returned bytes
	rec := s.Get(ctx, models.NamespaceImages, "scene-a-image")
	rec.Blob[0] = 'X'
	assert.Equal(t, []byte("png"), s.Get(ctx, models.NamespaceImages, "scene-a-image").Blob)

	// a replacement is visible immediately
	require.True(t, s.Put(ctx, models.NamespaceImages, "scene-a-image", []byte("jpeg"), models.BlobMeta{Name: "a.jpg"}))
	assert.Equal(t, "a.jpg", s.Get(ctx, models.NamespaceImages, "scene-a-image").Name)
}

func TestCachedStore_EvictsLeastRecentlyRead(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewMemoryStore()}
	s := NewCachedStore(backend, 10, nil, nil).(*CachedStore)
	for _, k := range []string{"a", "b", "c"} {
		require.True(t, s.Put(ctx, models.NamespaceAudio, k, bytes.Repeat([]byte("x"), 4), models.BlobMeta{}))
	}

	s.Get(ctx, models.NamespaceAudio, "a")
	s.Get(ctx, models.NamespaceAudio, "b")
	s.Get(ctx, models.NamespaceAudio, "c")
	stats := s.Stats()
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, int64(8), stats.SizeBytes)

	backend.gets = 0
	s.Get(ctx, models.NamespaceAudio, "c")
	assert.Equal(t, 0, backend.gets, "most recent read stays cached")
}

func TestCachedStore_LargeRecordsBypass(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewMemoryStore()}
	s := NewCachedStore(backend, 4, nil, nil).(*CachedStore)
	require.True(t, s.Put(ctx, models.NamespaceVideo, "scene-a-video", []byte("too-big"), models.BlobMeta{}))

	require.NotNil(t, s.Get(ctx, models.NamespaceVideo, "scene-a-video"))
	require.NotNil(t, s.Get(ctx, models.NamespaceVideo, "scene-a-video"))
	assert.Equal(t, 2, backend.gets)
	assert.Zero(t, s.Stats().Records)
}

func TestCachedStore_ReadRacingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	writes := map[string]func(s Store) bool{
		"put": func(s Store) bool {
			return s.Put(ctx, models.NamespaceImages, "scene-a-image", []byte("new"), models.BlobMeta{})
		},
		"delete": func(s Store) bool { return s.Delete(ctx, models.NamespaceImages, "scene-a-image") },
		"clear":  func(s Store) bool { return s.ClearAll(ctx, models.NamespaceImages) },
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			mem := NewMemoryStore()
			require.True(t, mem.Put(ctx, models.NamespaceImages, "scene-a-image", []byte("old"), models.BlobMeta{}))
			gated := &gatedStore{Store: mem, read: make(chan struct{}), release: make(chan struct{})}
			s := NewCachedStore(gated, 1<<20, nil, nil).(*CachedStore)

			done := make(chan *models.BlobRecord)
			go func() { done <- s.Get(ctx, models.NamespaceImages, "scene-a-image") }()
			<-gated.read
			require.True(t, write(s))
			close(gated.release)

			rec := <-done
			require.NotNil(t, rec)
			assert.Equal(t, []byte("old"), rec.Blob)
			assert.Zero(t, s.Stats().Records, "a read older than the write must not be cached")
		})
	}
}
