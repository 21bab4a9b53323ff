package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/models"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errors.New("quota") }
func (failingKV) Set(context.Context, string, string) error         { return errors.New("quota") }
func (failingKV) Delete(context.Context, string) error              { return errors.New("quota") }

func sampleDocument() *models.SceneDocument {
	return &models.SceneDocument{
		CurrentScene: "room1",
		Scenes: map[string]*models.Scene{
			"room1": {
				Name:  "Lobby",
				Kind:  models.MediaImage,
				Image: models.Transient("blob:aaa", "scene-room1-image", "lobby.jpg"),
				GlobalSound: &models.GlobalSound{
					Audio:   models.Transient("blob:bbb", "", "unsaved.mp3"),
					Volume:  0.5,
					Enabled: true,
				},
				Hotspots: []*models.Hotspot{
					{ID: 1, Type: models.HotspotImage, Image: models.Transient("blob:ccc", "hotspot-1-image", "art.png")},
					{ID: 2, Type: models.HotspotWeblink, WeblinkURL: "https://example.com", WeblinkPreview: models.Remote("https://example.com/p.png")},
				},
			},
		},
	}
}

func TestSanitize(t *testing.T) {
	doc := sampleDocument()
	out := Sanitize(doc)

	scene := out.Scenes["room1"]
	assert.Equal(t, models.AssetStored, scene.Image.Kind())
	assert.Equal(t, "scene-room1-image", scene.Image.Key())
	assert.Nil(t, scene.GlobalSound.Audio, "keyless transient ref is dropped")
	assert.Equal(t, models.AssetStored, scene.Hotspots[0].Image.Kind())
	assert.Equal(t, models.AssetRemote, scene.Hotspots[1].WeblinkPreview.Kind())

	// the live document keeps its handles
	assert.Equal(t, "blob:aaa", doc.Scenes["room1"].Image.Handle())
}

func TestSanitize_Idempotent(t *testing.T) {
	once := Sanitize(sampleDocument())
	twice := Sanitize(once)

	a, err := json.Marshal(once)
	require.NoError(t, err)
	b, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, "hotspot-1-image", twice.Scenes["room1"].Hotspots[0].Image.Key())
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := New(kv, nil, nil)

	assert.Nil(t, s.Load(ctx), "nothing stored yet")
	require.True(t, s.Save(ctx, sampleDocument()))

	raw, ok, _ := kv.Get(ctx, ScenesKey)
	require.True(t, ok)
	assert.NotContains(t, raw, "blob:", "no transient handle reaches storage")

	loaded := s.Load(ctx)
	require.NotNil(t, loaded)
	assert.Equal(t, "room1", loaded.CurrentScene)
	img := loaded.Scenes["room1"].Hotspots[0].Image
	assert.Equal(t, models.AssetStored, img.Kind())
	assert.Equal(t, "art.png", img.Name())
}

func TestStore_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	s := New(failingKV{}, nil, nil)
	assert.False(t, s.Save(ctx, sampleDocument()))
	assert.Nil(t, s.Load(ctx))
	assert.False(t, s.SaveStyles(ctx, &models.StyleConfig{}))
	assert.Nil(t, s.LoadStyles(ctx, models.StyleConfig{}))
	assert.False(t, s.Clear(ctx))
}

func TestStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, ScenesKey, "{not json"))
	assert.Nil(t, New(kv, nil, nil).Load(ctx))
}

func TestStore_StylesMergeOverBase(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, StylesKey, `{"hotspot":{"color":"#ff0000"}}`))

	base := models.StyleConfig{Hotspot: models.HotspotStyle{Color: "#ffffff", Size: 0.3}}
	got := New(kv, nil, nil).LoadStyles(ctx, base)
	require.NotNil(t, got)
	assert.Equal(t, "#ff0000", got.Hotspot.Color)
	assert.Equal(t, 0.3, got.Hotspot.Size)
}

func TestStore_LegacyStringAssets(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	legacy := `{"scenes":{"room1":{"name":"Lobby","type":"image","image":"https://cdn.example.com/pano.jpg",
		"hotspots":[{"id":3,"type":"audio","position":"1 2 -3","audio":"blob:http://localhost/dead"}]}},"currentScene":"room1"}`
	require.NoError(t, kv.Set(ctx, ScenesKey, legacy))

	doc := New(kv, nil, nil).Load(ctx)
	require.NotNil(t, doc)
	scene := doc.Scenes["room1"]
	assert.Equal(t, models.AssetRemote, scene.Image.Kind())
	h := scene.Hotspots[0]
	assert.Equal(t, models.Vec3{X: 1, Y: 2, Z: -3}, h.Position)
	assert.Equal(t, models.AssetTransient, h.Audio.Kind())
	assert.False(t, h.Audio.HasStorageKey())
}
