package assets

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/blobstore"
	"tour-service/internal/docstore"
	"tour-service/internal/models"
)

func newResolver() (*Resolver, *blobstore.MemoryStore) {
	blobs := blobstore.NewMemoryStore()
	return NewResolver(blobs, NewTransientRegistry(64, nil, nil), nil, nil), blobs
}

func imageHotspotDoc() *models.SceneDocument {
	return &models.SceneDocument{
		CurrentScene: "room1",
		Scenes: map[string]*models.Scene{
			"room1": {Kind: models.MediaImage, Hotspots: []*models.Hotspot{{ID: 1, Type: models.HotspotImage}}},
		},
	}
}

func TestResolver_SaveThenReload(t *testing.T) {
	ctx := context.Background()
	r, blobs := newResolver()
	kv := docstore.NewMemoryKV()
	store := docstore.New(kv, nil, nil)

	// an image hotspot is created from an uploaded file and saved
	doc := imageHotspotDoc()
	slot := models.AssetSlot{SceneID: "room1", HotspotID: 1, Field: models.FieldHotspotImage}
	ref := r.Store(ctx, slot, []byte("\x89PNG..."), models.BlobMeta{Name: "art.png", MimeType: "image/png"})
	doc.Scenes["room1"].Hotspots[0].Image = ref
	require.True(t, store.Save(ctx, doc))

	persisted := store.Load(ctx)
	require.NotNil(t, persisted)
	img := persisted.Scenes["room1"].Hotspots[0].Image
	assert.Equal(t, models.AssetStored, img.Kind())
	assert.Equal(t, "hotspot-1-image", img.Key())
	assert.Empty(t, img.Handle(), "no transient handle is persisted")

	// reload in a fresh process: same blob store, empty registry
	fresh := NewResolver(blobs, NewTransientRegistry(64, nil, nil), nil, nil)
	assert.Equal(t, []models.AssetSlot{slot}, fresh.MissingAssets(persisted))
	assert.True(t, fresh.Rehydrate(ctx, persisted))

	img = persisted.Scenes["room1"].Hotspots[0].Image
	assert.Equal(t, models.AssetTransient, img.Kind())
	assert.NotEmpty(t, img.Handle())
	assert.NotEqual(t, ref.Handle(), img.Handle())
	assert.True(t, fresh.Registry().Valid(img.Handle()))
	assert.Empty(t, fresh.MissingAssets(persisted))
	assert.False(t, fresh.Rehydrate(ctx, persisted), "nothing left to resolve")
}

func TestResolver_RoundTripProperty(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 50; i++ {
		r, blobs := newResolver()
		store := docstore.New(docstore.NewMemoryKV(), nil, nil)
		doc := &models.SceneDocument{Scenes: map[string]*models.Scene{}}
		want := map[string][]byte{}

		put := func(slot models.AssetSlot) *models.AssetRef {
			data := make([]byte, 1+rng.Intn(64))
			rng.Read(data)
			key := slot.StorageKey()
			require.True(t, blobs.Put(ctx, slot.Namespace(), key, data, models.BlobMeta{Name: key}))
			want[slot.String()] = data
			return models.Stored(key, key)
		}

		nextID := 1
		for s := 0; s < 1+rng.Intn(3); s++ {
			id := fmt.Sprintf("s%d", s)
			scene := &models.Scene{Kind: models.MediaImage}
			doc.Scenes[id] = scene
			scene.Image = put(models.AssetSlot{SceneID: id, Field: models.FieldSceneImage})
			if rng.Intn(2) == 0 {
				scene.GlobalSound = &models.GlobalSound{Volume: 0.5}
				scene.GlobalSound.Audio = put(models.AssetSlot{SceneID: id, Field: models.FieldSceneSound})
			}
			for h := 0; h < rng.Intn(4); h++ {
				hs := &models.Hotspot{ID: nextID, Type: models.HotspotAudio}
				nextID++
				hs.Audio = put(models.AssetSlot{SceneID: id, HotspotID: hs.ID, Field: models.FieldHotspotAudio})
				scene.Hotspots = append(scene.Hotspots, hs)
			}
		}

		require.True(t, store.Save(ctx, doc))
		loaded := store.Load(ctx)
		require.NotNil(t, loaded)
		r.Rehydrate(ctx, loaded)

		count := 0
		loaded.WalkAssets(func(slot models.AssetSlot, p **models.AssetRef) {
			if *p == nil {
				return
			}
			count++
			ref := *p
			require.Equal(t, models.AssetTransient, ref.Kind(), slot.String())
			entry, ok := r.Registry().Get(ref.Handle())
			require.True(t, ok)
			assert.True(t, bytes.Equal(want[slot.String()], entry.Data), slot.String())
		})
		assert.Equal(t, len(want), count)
	}
}

func TestResolver_MissLeavesRef(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver()
	doc := imageHotspotDoc()
	doc.Scenes["room1"].Hotspots[0].Image = models.Stored("hotspot-1-image", "art.png")

	assert.False(t, r.Rehydrate(ctx, doc))
	assert.Equal(t, models.AssetStored, doc.Scenes["room1"].Hotspots[0].Image.Kind())
	assert.Len(t, r.MissingAssets(doc), 1)
}

func TestResolver_LeavesRemoteAndEmbedded(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver()
	doc := imageHotspotDoc()
	scene := doc.Scenes["room1"]
	scene.Image = models.Remote("https://example.com/pano.jpg")
	scene.Hotspots[0].Image = models.Embedded([]byte("gif"), "image/gif")

	assert.False(t, r.Rehydrate(ctx, doc))
	assert.Equal(t, models.AssetRemote, scene.Image.Kind())
	assert.Equal(t, models.AssetEmbedded, scene.Hotspots[0].Image.Kind())
	assert.Empty(t, r.MissingAssets(doc))
}

func TestResolver_StaleHandleIsReplaced(t *testing.T) {
	ctx := context.Background()
	r, blobs := newResolver()
	require.True(t, blobs.Put(ctx, models.NamespaceImages, "scene-room1-image", []byte("jpg"), models.BlobMeta{}))
	doc := imageHotspotDoc()
	doc.Scenes["room1"].Image = models.Transient("blob:gone", "scene-room1-image", "p.jpg")

	assert.True(t, r.Rehydrate(ctx, doc))
	assert.True(t, r.Registry().Valid(doc.Scenes["room1"].Image.Handle()))
}

func TestResolver_StoreFailureKeepsSessionHandle(t *testing.T) {
	ctx := context.Background()
	broken := blobstore.NewBoltStore("/dev/null/assets.db")
	r := NewResolver(broken, NewTransientRegistry(4, nil, nil), nil, nil)

	ref := r.Store(ctx, models.AssetSlot{SceneID: "a", Field: models.FieldSceneImage}, []byte("x"), models.BlobMeta{Name: "x.png"})
	assert.Equal(t, models.AssetTransient, ref.Kind())
	assert.False(t, ref.HasStorageKey())
	assert.True(t, r.Registry().Valid(ref.Handle()))
	assert.Nil(t, ref.Sanitized(), "dropped on save")
}

func TestResolver_Bytes(t *testing.T) {
	ctx := context.Background()
	r, blobs := newResolver()
	require.True(t, blobs.Put(ctx, models.NamespaceAudio, "k", []byte("ogg"), models.BlobMeta{Name: "wind.ogg", MimeType: "audio/ogg"}))

	c, ok := r.Bytes(ctx, models.NamespaceAudio, models.Stored("k", ""))
	require.True(t, ok)
	assert.Equal(t, "wind.ogg", c.Name)
	assert.Equal(t, []byte("ogg"), c.Data)

	_, ok = r.Bytes(ctx, models.NamespaceAudio, models.Remote("https://x/y.mp3"))
	assert.False(t, ok)
}
