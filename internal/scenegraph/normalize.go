package scenegraph

import "tour-service/internal/models"

// Report summarizes what Normalize changed.
type Report struct {
	MediaFixed      int  `json:"mediaFixed"`
	ScenesRenamed   int  `json:"scenesRenamed"`
	Migrated        int  `json:"migrated"`
	IDsReassigned   bool `json:"idsReassigned"`
	OrphansPruned   int  `json:"orphansPruned"`
	CurrentChanged  bool `json:"currentChanged"`
	DefaultRestored bool `json:"defaultRestored"`
}

// Changed reports whether the document was modified.
func (r Report) Changed() bool {
	return r.MediaFixed > 0 || r.ScenesRenamed > 0 || r.Migrated > 0 || r.IDsReassigned || r.OrphansPruned > 0 ||
		r.CurrentChanged || r.DefaultRestored
}

// Normalize runs the full validation, cleanup and migration pipeline on a
// document that was loaded or imported, before it is first used.
func Normalize(doc *models.SceneDocument, defaultSceneID string, extra ...*models.Hotspot) Report {
	var r Report
	if doc.Scenes == nil {
		doc.Scenes = make(map[string]*models.Scene)
	}
	for id, scene := range doc.Scenes {
		if scene == nil {
			delete(doc.Scenes, id)
			continue
		}
		kept := scene.Hotspots[:0]
		for _, h := range scene.Hotspots {
			if h != nil {
				kept = append(kept, h)
			}
		}
		scene.Hotspots = kept
		if scene.Hotspots == nil {
			scene.Hotspots = []*models.Hotspot{}
		}
		if NormalizeMedia(scene) {
			r.MediaFixed++
		}
	}
	r.ScenesRenamed = RenameInvalidSceneIDs(doc)
	if len(doc.Scenes) == 0 {
		doc.Scenes[defaultSceneID] = NewScene(DefaultSceneName)
		r.DefaultRestored = true
	}

	r.Migrated = MigrateLegacyFields(doc)
	for _, scene := range doc.Scenes {
		ClampScene(scene)
	}
	r.IDsReassigned = EnsureUniqueIdentifiers(doc, extra...)
	r.OrphansPruned = PruneOrphanedNavigation(doc)

	if !doc.HasScene(doc.CurrentScene) {
		doc.CurrentScene = fallbackScene(doc, defaultSceneID)
		r.CurrentChanged = true
	}
	return r
}
