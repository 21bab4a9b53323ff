package scenegraph

import "tour-service/internal/models"

// MigrateLegacyFields folds the separate width/height of old image hotspots
// into the uniform scale. Running it again has no effect. It returns the
// number of hotspots changed.
func MigrateLegacyFields(doc *models.SceneDocument) int {
	changed := 0
	for _, scene := range doc.Scenes {
		for _, h := range scene.Hotspots {
			if h.Type != models.HotspotImage {
				continue
			}
			if h.LegacyImageWidth == nil && h.LegacyImageHeight == nil {
				continue
			}
			if h.ImageScale == nil && h.LegacyImageWidth != nil {
				scale := *h.LegacyImageWidth
				h.ImageScale = &scale
			}
			h.LegacyImageWidth = nil
			h.LegacyImageHeight = nil
			changed++
		}
	}
	return changed
}

// NormalizeMedia makes a scene's media kind agree with its populated ref.
// A scene without a kind takes it from whichever ref is set; the ref that
// does not match the kind is cleared.
func NormalizeMedia(scene *models.Scene) bool {
	changed := false
	if scene.Kind != models.MediaImage && scene.Kind != models.MediaVideo {
		if scene.Video != nil && scene.Image == nil {
			scene.Kind = models.MediaVideo
		} else {
			scene.Kind = models.MediaImage
		}
		changed = true
	}
	switch scene.Kind {
	case models.MediaImage:
		if scene.Video != nil {
			scene.Video = nil
			changed = true
		}
	case models.MediaVideo:
		if scene.Image != nil {
			scene.Image = nil
			changed = true
		}
	}
	return changed
}
