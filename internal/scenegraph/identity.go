package scenegraph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tour-service/internal/models"
)

var (
	sceneIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	sceneIDForbidden = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// ValidSceneID reports whether id may name a scene. Scene ids become part
// of storage keys and bundle file names.
func ValidSceneID(id string) bool {
	return sceneIDPattern.MatchString(id)
}

// RenameInvalidSceneIDs moves every scene whose id is not a ValidSceneID to
// a safe id derived from it, rewriting navigation targets and the current
// scene to match. It returns how many scenes were renamed.
func RenameInvalidSceneIDs(doc *models.SceneDocument) int {
	var bad []string
	for id := range doc.Scenes {
		if !ValidSceneID(id) {
			bad = append(bad, id)
		}
	}
	sort.Strings(bad)

	for _, old := range bad {
		base := strings.Trim(sceneIDForbidden.ReplaceAllString(old, "-"), "-")
		if base == "" {
			base = "scene"
		}
		next := base
		for n := 2; doc.HasScene(next); n++ {
			next = fmt.Sprintf("%s-%d", base, n)
		}

		doc.Scenes[next] = doc.Scenes[old]
		delete(doc.Scenes, old)
		for _, scene := range doc.Scenes {
			for _, h := range scene.Hotspots {
				if h != nil && h.NavigationTarget == old {
					h.NavigationTarget = next
				}
			}
		}
		if doc.CurrentScene == old {
			doc.CurrentScene = next
		}
	}
	return len(bad)
}

// EnsureUniqueIdentifiers gives every hotspot in doc, plus any working
// copies in extra, a positive identifier that no other hotspot shares.
//
// Hotspots are visited in a stable order: scenes by id, hotspots in slice
// order, then extra. Missing or non-positive ids are filled first; only then
// are duplicates reassigned, so a freshly assigned id can never collide with
// an original one visited later. doc.NextHotspotID ends at or above every id.
// It reports whether any id changed.
func EnsureUniqueIdentifiers(doc *models.SceneDocument, extra ...*models.Hotspot) bool {
	all := collectHotspots(doc, extra)

	maxSeen := doc.NextHotspotID
	for _, h := range all {
		if h.ID > maxSeen {
			maxSeen = h.ID
		}
	}

	changed := false
	for _, h := range all {
		if h.ID <= 0 {
			maxSeen++
			h.ID = maxSeen
			changed = true
		}
	}

	seen := make(map[int]struct{}, len(all))
	for _, h := range all {
		if _, dup := seen[h.ID]; dup {
			maxSeen++
			h.ID = maxSeen
			changed = true
		}
		seen[h.ID] = struct{}{}
	}

	doc.NextHotspotID = maxSeen
	return changed
}

// NextIdentifier returns a fresh identifier and advances the counter.
func NextIdentifier(doc *models.SceneDocument) int {
	for _, h := range collectHotspots(doc, nil) {
		if h.ID > doc.NextHotspotID {
			doc.NextHotspotID = h.ID
		}
	}
	doc.NextHotspotID++
	return doc.NextHotspotID
}

// collectHotspots lists each distinct hotspot once; a working copy that is
// already part of the document is not counted twice.
func collectHotspots(doc *models.SceneDocument, extra []*models.Hotspot) []*models.Hotspot {
	visited := make(map[*models.Hotspot]struct{})
	var out []*models.Hotspot
	add := func(h *models.Hotspot) {
		if h == nil {
			return
		}
		if _, ok := visited[h]; ok {
			return
		}
		visited[h] = struct{}{}
		out = append(out, h)
	}
	for _, id := range doc.SceneIDs() {
		for _, h := range doc.Scenes[id].Hotspots {
			add(h)
		}
	}
	for _, h := range extra {
		add(h)
	}
	return out
}
