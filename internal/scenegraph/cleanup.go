package scenegraph

import (
	"github.com/pkg/errors"

	"tour-service/internal/models"
)

var (
	ErrSceneNotFound         = errors.New("scene not found")
	ErrSceneExists           = errors.New("scene already exists")
	ErrDefaultSceneProtected = errors.New("the default scene cannot be deleted")
	ErrHotspotNotFound       = errors.New("hotspot not found")
)

// PruneOrphanedNavigation removes every navigation hotspot whose target is
// not a scene of doc and returns how many were removed.
func PruneOrphanedNavigation(doc *models.SceneDocument) int {
	removed := 0
	for _, scene := range doc.Scenes {
		kept := scene.Hotspots[:0]
		for _, h := range scene.Hotspots {
			if h.Type == models.HotspotNavigation && !doc.HasScene(h.NavigationTarget) {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		// clear the tail so dropped hotspots can be collected
		for i := len(kept); i < len(scene.Hotspots); i++ {
			scene.Hotspots[i] = nil
		}
		scene.Hotspots = kept
	}
	return removed
}

// DeleteScene removes scene id, prunes navigation hotspots that pointed at
// it and moves the current scene to protectedID when needed. The scene named
// protectedID cannot be deleted. It returns the number of pruned hotspots.
func DeleteScene(doc *models.SceneDocument, id, protectedID string) (int, error) {
	if id == protectedID {
		return 0, ErrDefaultSceneProtected
	}
	if !doc.HasScene(id) {
		return 0, errors.Wrapf(ErrSceneNotFound, "scene %q", id)
	}
	delete(doc.Scenes, id)
	pruned := PruneOrphanedNavigation(doc)
	if !doc.HasScene(doc.CurrentScene) {
		doc.CurrentScene = fallbackScene(doc, protectedID)
	}
	return pruned, nil
}

// RemoveHotspot deletes the hotspot with the given id from whichever scene
// holds it.
func RemoveHotspot(doc *models.SceneDocument, id int) (*models.Hotspot, error) {
	for _, scene := range doc.Scenes {
		for i, h := range scene.Hotspots {
			if h.ID == id {
				scene.Hotspots = append(scene.Hotspots[:i], scene.Hotspots[i+1:]...)
				return h, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrHotspotNotFound, "hotspot %d", id)
}

// FindHotspot returns the hotspot with id and the id of its scene.
func FindHotspot(doc *models.SceneDocument, id int) (*models.Hotspot, string, error) {
	for _, sceneID := range doc.SceneIDs() {
		if h := doc.Scenes[sceneID].FindHotspot(id); h != nil {
			return h, sceneID, nil
		}
	}
	return nil, "", errors.Wrapf(ErrHotspotNotFound, "hotspot %d", id)
}

func fallbackScene(doc *models.SceneDocument, preferred string) string {
	if doc.HasScene(preferred) {
		return preferred
	}
	if ids := doc.SceneIDs(); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
