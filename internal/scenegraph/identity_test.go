package scenegraph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/models"
)

func assertUnique(t *testing.T, doc *models.SceneDocument, extra ...*models.Hotspot) {
	t.Helper()
	seen := map[int]bool{}
	for _, h := range collectHotspots(doc, extra) {
		require.Positive(t, h.ID)
		require.False(t, seen[h.ID], "duplicate id %d", h.ID)
		seen[h.ID] = true
		require.GreaterOrEqual(t, doc.NextHotspotID, h.ID)
	}
}

func TestEnsureUniqueIdentifiers_MissingIDs(t *testing.T) {
	// two hotspots created concurrently without ids
	doc := NewDocument("A")
	doc.Scenes["A"].Hotspots = []*models.Hotspot{
		{Type: models.HotspotText, Text: "one"},
		{Type: models.HotspotText, Text: "two"},
	}

	assert.True(t, EnsureUniqueIdentifiers(doc))

	a, b := doc.Scenes["A"].Hotspots[0], doc.Scenes["A"].Hotspots[1]
	assert.Positive(t, a.ID)
	assert.Positive(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.GreaterOrEqual(t, doc.NextHotspotID, max(a.ID, b.ID))
}

func TestEnsureUniqueIdentifiers_FreshIDsDoNotCollide(t *testing.T) {
	// the missing id in scene A must not take 2, which scene B already uses
	doc := &models.SceneDocument{Scenes: map[string]*models.Scene{
		"A": {Hotspots: []*models.Hotspot{{ID: 1}, {ID: 0}}},
		"B": {Hotspots: []*models.Hotspot{{ID: 2}}},
	}}
	EnsureUniqueIdentifiers(doc)

	assert.Equal(t, 1, doc.Scenes["A"].Hotspots[0].ID)
	assert.Equal(t, 3, doc.Scenes["A"].Hotspots[1].ID)
	assert.Equal(t, 2, doc.Scenes["B"].Hotspots[0].ID)
	assert.Equal(t, 3, doc.NextHotspotID)
}

func TestEnsureUniqueIdentifiers_Duplicates(t *testing.T) {
	doc := &models.SceneDocument{Scenes: map[string]*models.Scene{
		"A": {Hotspots: []*models.Hotspot{{ID: 5}, {ID: 5}}},
		"B": {Hotspots: []*models.Hotspot{{ID: 5}, {ID: -1}}},
	}}
	EnsureUniqueIdentifiers(doc)
	assertUnique(t, doc)
	assert.Equal(t, 5, doc.Scenes["A"].Hotspots[0].ID, "first occurrence keeps its id")
}

func TestEnsureUniqueIdentifiers_CounterIsRespected(t *testing.T) {
	doc := &models.SceneDocument{
		NextHotspotID: 40,
		Scenes:        map[string]*models.Scene{"A": {Hotspots: []*models.Hotspot{{ID: 0}}}},
	}
	assert.True(t, EnsureUniqueIdentifiers(doc))
	assert.Equal(t, 41, doc.Scenes["A"].Hotspots[0].ID)
	assert.False(t, EnsureUniqueIdentifiers(doc), "second run changes nothing")
}

func TestEnsureUniqueIdentifiers_WorkingCopy(t *testing.T) {
	doc := &models.SceneDocument{Scenes: map[string]*models.Scene{
		"A": {Hotspots: []*models.Hotspot{{ID: 1}}},
	}}
	inDoc := doc.Scenes["A"].Hotspots[0]
	draft := &models.Hotspot{ID: 1}

	EnsureUniqueIdentifiers(doc, draft, inDoc)
	assert.Equal(t, 1, inDoc.ID, "a working copy that is the same hotspot is not a duplicate")
	assert.Equal(t, 2, draft.ID)
}

func TestEnsureUniqueIdentifiers_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		doc := &models.SceneDocument{Scenes: map[string]*models.Scene{}, NextHotspotID: rng.Intn(5)}
		for s := 0; s < 1+rng.Intn(4); s++ {
			scene := &models.Scene{}
			for h := 0; h < rng.Intn(6); h++ {
				scene.Hotspots = append(scene.Hotspots, &models.Hotspot{ID: rng.Intn(8) - 2})
			}
			doc.Scenes[fmt.Sprintf("s%d", s)] = scene
		}
		extra := []*models.Hotspot{{ID: rng.Intn(4)}}
		EnsureUniqueIdentifiers(doc, extra...)
		assertUnique(t, doc, extra...)
	}
}

func TestNextIdentifier(t *testing.T) {
	doc := &models.SceneDocument{Scenes: map[string]*models.Scene{
		"A": {Hotspots: []*models.Hotspot{{ID: 9}}},
	}}
	assert.Equal(t, 10, NextIdentifier(doc))
	assert.Equal(t, 11, NextIdentifier(doc))
}

func TestValidSceneID(t *testing.T) {
	for _, id := range []string{"room1", "Hall_2", "east-wing"} {
		assert.True(t, ValidSceneID(id), id)
	}
	for _, id := range []string{"", "x/../../../escaped", "../up", "with space", "a.b", `back\slash`} {
		assert.False(t, ValidSceneID(id), id)
	}
}

func TestRenameInvalidSceneIDs(t *testing.T) {
	doc := &models.SceneDocument{
		CurrentScene: "x/../../../escaped",
		Scenes: map[string]*models.Scene{
			"x/../../../escaped": NewScene("Escaped"),
			"x-escaped":          NewScene("Taken"),
			"../..":              NewScene("Dots"),
			"hall": {Name: "Hall", Hotspots: []*models.Hotspot{
				{ID: 1, Type: models.HotspotNavigation, NavigationTarget: "x/../../../escaped"},
				{ID: 2, Type: models.HotspotNavigation, NavigationTarget: "../.."},
			}},
		},
	}

	assert.Equal(t, 2, RenameInvalidSceneIDs(doc))
	assert.ElementsMatch(t, []string{"hall", "x-escaped", "x-escaped-2", "scene"}, doc.SceneIDs())
	assert.Equal(t, "Escaped", doc.Scenes["x-escaped-2"].Name)
	assert.Equal(t, "Dots", doc.Scenes["scene"].Name)
	assert.Equal(t, "x-escaped-2", doc.CurrentScene)
	assert.Equal(t, "x-escaped-2", doc.Scenes["hall"].Hotspots[0].NavigationTarget)
	assert.Equal(t, "scene", doc.Scenes["hall"].Hotspots[1].NavigationTarget)
	for _, id := range doc.SceneIDs() {
		assert.True(t, ValidSceneID(id), id)
	}

	assert.Zero(t, RenameInvalidSceneIDs(doc))
}

func TestNormalize_RenamesUnsafeSceneIDs(t *testing.T) {
	doc := &models.SceneDocument{
		CurrentScene: "a b",
		Scenes:       map[string]*models.Scene{"a b": NewScene("Spaced")},
	}
	report := Normalize(doc, "room1")
	assert.Equal(t, 1, report.ScenesRenamed)
	assert.True(t, report.Changed())
	assert.Equal(t, "a-b", doc.CurrentScene)
	assert.False(t, report.DefaultRestored)
}
