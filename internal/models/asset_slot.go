package models

import "fmt"

// AssetField names a position in the document that can hold an AssetRef.
type AssetField string

const (
	FieldSceneImage     AssetField = "scene-image"
	FieldSceneVideo     AssetField = "scene-video"
	FieldSceneSound     AssetField = "scene-sound"
	FieldHotspotAudio   AssetField = "hotspot-audio"
	FieldHotspotImage   AssetField = "hotspot-image"
	FieldHotspotPreview AssetField = "hotspot-preview"
)

// Valid reports whether f is a known field.
func (f AssetField) Valid() bool {
	switch f {
	case FieldSceneImage, FieldSceneVideo, FieldSceneSound,
		FieldHotspotAudio, FieldHotspotImage, FieldHotspotPreview:
		return true
	}
	return false
}

// OnHotspot reports whether the field belongs to a hotspot rather than a scene.
func (f AssetField) OnHotspot() bool {
	return f == FieldHotspotAudio || f == FieldHotspotImage || f == FieldHotspotPreview
}

// Namespace returns the Blob Store partition for assets of this field.
func (f AssetField) Namespace() Namespace {
	switch f {
	case FieldSceneVideo:
		return NamespaceVideo
	case FieldSceneSound, FieldHotspotAudio:
		return NamespaceAudio
	default:
		return NamespaceImages
	}
}

// AssetSlot identifies one AssetRef position in a document.
type AssetSlot struct {
	SceneID   string     `json:"sceneId"`
	HotspotID int        `json:"hotspotId,omitempty"`
	Field     AssetField `json:"field"`
}

// StorageKey is the Blob Store key for assets attached to this slot.
// Replacing the asset reuses the key.
func (s AssetSlot) StorageKey() string {
	switch s.Field {
	case FieldSceneImage:
		return fmt.Sprintf("scene-%s-image", s.SceneID)
	case FieldSceneVideo:
		return fmt.Sprintf("scene-%s-video", s.SceneID)
	case FieldSceneSound:
		return fmt.Sprintf("scene-%s-sound", s.SceneID)
	case FieldHotspotAudio:
		return fmt.Sprintf("hotspot-%d-audio", s.HotspotID)
	case FieldHotspotImage:
		return fmt.Sprintf("hotspot-%d-image", s.HotspotID)
	case FieldHotspotPreview:
		return fmt.Sprintf("hotspot-%d-preview", s.HotspotID)
	}
	return ""
}

func (s AssetSlot) Namespace() Namespace { return s.Field.Namespace() }

func (s AssetSlot) String() string {
	if s.Field.OnHotspot() {
		return fmt.Sprintf("%s/%d/%s", s.SceneID, s.HotspotID, s.Field)
	}
	return fmt.Sprintf("%s/%s", s.SceneID, s.Field)
}

// AssetVisitor receives a pointer to each AssetRef field so it can replace
// the ref in place.
type AssetVisitor func(slot AssetSlot, ref **AssetRef)

// WalkAssets visits every AssetRef slot in the document in a stable order:
// scenes by id, then scene media, global sound, and each hotspot's fields.
// Slots holding nil are visited too.
func (d *SceneDocument) WalkAssets(visit AssetVisitor) {
	for _, id := range d.SceneIDs() {
		d.Scenes[id].walkAssets(id, visit)
	}
}

func (s *Scene) walkAssets(sceneID string, visit AssetVisitor) {
	visit(AssetSlot{SceneID: sceneID, Field: FieldSceneImage}, &s.Image)
	visit(AssetSlot{SceneID: sceneID, Field: FieldSceneVideo}, &s.Video)
	if s.GlobalSound != nil {
		visit(AssetSlot{SceneID: sceneID, Field: FieldSceneSound}, &s.GlobalSound.Audio)
	}
	for _, h := range s.Hotspots {
		visit(AssetSlot{SceneID: sceneID, HotspotID: h.ID, Field: FieldHotspotAudio}, &h.Audio)
		visit(AssetSlot{SceneID: sceneID, HotspotID: h.ID, Field: FieldHotspotImage}, &h.Image)
		visit(AssetSlot{SceneID: sceneID, HotspotID: h.ID, Field: FieldHotspotPreview}, &h.WeblinkPreview)
	}
}

// AssetAt returns a pointer to the AssetRef field addressed by slot, or nil
// when the scene or hotspot does not exist.
func (d *SceneDocument) AssetAt(slot AssetSlot) **AssetRef {
	scene, ok := d.Scenes[slot.SceneID]
	if !ok {
		return nil
	}
	switch slot.Field {
	case FieldSceneImage:
		return &scene.Image
	case FieldSceneVideo:
		return &scene.Video
	case FieldSceneSound:
		if scene.GlobalSound == nil {
			return nil
		}
		return &scene.GlobalSound.Audio
	}
	h := scene.FindHotspot(slot.HotspotID)
	if h == nil {
		return nil
	}
	switch slot.Field {
	case FieldHotspotAudio:
		return &h.Audio
	case FieldHotspotImage:
		return &h.Image
	case FieldHotspotPreview:
		return &h.WeblinkPreview
	}
	return nil
}
