package services

import (
	"context"

	"github.com/pkg/errors"

	"tour-service/internal/assets"
	"tour-service/internal/models"
	"tour-service/internal/scenegraph"
)

// HotspotInput is a hotspot as submitted by the editor. Asset fields may
// hold a remote URL, a data URL or a handle returned by StageUpload.
type HotspotInput struct {
	Type     models.HotspotType `json:"type"`
	Position *models.Vec3       `json:"position,omitempty"`
	scenegraph.HotspotPayload
}

// PlaceHotspot validates in and adds it to scene sceneID.
func (s *EditorService) PlaceHotspot(ctx context.Context, sceneID string, in HotspotInput) (*models.Hotspot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, ok := s.doc.Scenes[sceneID]
	if !ok {
		return nil, errors.Wrapf(scenegraph.ErrSceneNotFound, "scene %q", sceneID)
	}
	payload := s.dropStaleHandles(in.HotspotPayload)
	if err := s.validate(in.Type, payload); err != nil {
		return nil, err
	}

	h := &models.Hotspot{ID: scenegraph.NextIdentifier(s.doc)}
	if in.Position != nil {
		h.Position = *in.Position
	}
	scenegraph.ApplyPayload(h, in.Type, payload)
	scene.Hotspots = append(scene.Hotspots, h)
	scenegraph.EnsureUniqueIdentifiers(s.doc)

	s.adoptStaged(ctx, sceneID, h)
	s.cacheAspectRatio(ctx, h)
	s.commit(ctx)
	return h.Clone(), nil
}

// EditHotspot overlays in on hotspot id. An empty type keeps the current
// one; changing the type discards the fields of the old type.
func (s *EditorService) EditHotspot(ctx context.Context, id int, in HotspotInput) (*models.Hotspot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, sceneID, err := scenegraph.FindHotspot(s.doc, id)
	if err != nil {
		return nil, err
	}
	typ := in.Type
	if typ == "" {
		typ = h.Type
	}
	payload := scenegraph.PayloadOf(h).Merge(s.dropStaleHandles(in.HotspotPayload))
	if err := s.validate(typ, payload); err != nil {
		return nil, err
	}

	// work on a copy so a failed edit leaves the hotspot untouched
	working := h.Clone()
	if in.Position != nil {
		working.Position = *in.Position
	}
	scenegraph.ApplyPayload(working, typ, payload)

	s.forgetReplaced(ctx, h, working)
	*h = *working
	s.adoptStaged(ctx, sceneID, h)
	s.cacheAspectRatio(ctx, h)
	s.commit(ctx)
	return h.Clone(), nil
}

// MoveHotspot sets the position of hotspot id.
func (s *EditorService) MoveHotspot(ctx context.Context, id int, pos models.Vec3) (*models.Hotspot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, _, err := scenegraph.FindHotspot(s.doc, id)
	if err != nil {
		return nil, err
	}
	h.Position = pos
	s.commit(ctx)
	return h.Clone(), nil
}

// DeleteHotspot removes hotspot id and its stored assets.
func (s *EditorService) DeleteHotspot(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := scenegraph.RemoveHotspot(s.doc, id)
	if err != nil {
		return err
	}
	s.forgetReplaced(ctx, h, &models.Hotspot{ID: h.ID})
	s.commit(ctx)
	return nil
}

// ClearHotspots removes every hotspot of a scene and returns how many there
// were.
func (s *EditorService) ClearHotspots(ctx context.Context, sceneID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, ok := s.doc.Scenes[sceneID]
	if !ok {
		return 0, errors.Wrapf(scenegraph.ErrSceneNotFound, "scene %q", sceneID)
	}
	n := len(scene.Hotspots)
	for _, h := range scene.Hotspots {
		s.forgetReplaced(ctx, h, &models.Hotspot{ID: h.ID})
	}
	scene.Hotspots = []*models.Hotspot{}
	s.commit(ctx)
	return n, nil
}

// ValidatePayload runs the required-field checks without changing anything.
func (s *EditorService) ValidatePayload(in HotspotInput) scenegraph.ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := s.dropStaleHandles(in.HotspotPayload)
	if err := s.validate(in.Type, payload); err != nil {
		return scenegraph.ValidationResult{Message: err.Error()}
	}
	return scenegraph.ValidationResult{Valid: true}
}

// validate applies the payload rules plus the checks that need the
// document. Callers hold s.mu.
func (s *EditorService) validate(typ models.HotspotType, p scenegraph.HotspotPayload) error {
	if err := scenegraph.ValidateHotspotPayload(typ, p).Err(); err != nil {
		return err
	}
	if typ == models.HotspotNavigation && !s.doc.HasScene(p.NavigationTarget) {
		return &scenegraph.ValidationError{Message: scenegraph.MsgTargetMissing}
	}
	return nil
}

// dropStaleHandles clears asset fields naming a handle this process does
// not know, so validation reports them as missing.
func (s *EditorService) dropStaleHandles(p scenegraph.HotspotPayload) scenegraph.HotspotPayload {
	for _, ref := range []**models.AssetRef{&p.Audio, &p.Image, &p.WeblinkPreview} {
		r := *ref
		if r.Kind() == models.AssetTransient && !r.HasStorageKey() && !s.resolver.Registry().Valid(r.Handle()) {
			*ref = nil
		}
	}
	return p
}

// adoptStaged moves staged uploads attached to h into the Blob Store under
// the hotspot's slot keys, now that its identifier is final.
func (s *EditorService) adoptStaged(ctx context.Context, sceneID string, h *models.Hotspot) {
	for field, ref := range hotspotRefs(h) {
		r := *ref
		if r.Kind() != models.AssetTransient || r.HasStorageKey() {
			continue
		}
		entry, ok := s.resolver.Registry().Get(r.Handle())
		if !ok {
			continue
		}
		slot := models.AssetSlot{SceneID: sceneID, HotspotID: h.ID, Field: field}
		*ref = s.resolver.Store(ctx, slot, entry.Data, models.BlobMeta{Name: entry.Name, MimeType: entry.MimeType})
		s.resolver.Registry().Revoke(r.Handle())
	}
}

// forgetReplaced deletes the stored bytes of every asset old holds that
// next no longer uses.
func (s *EditorService) forgetReplaced(ctx context.Context, old, next *models.Hotspot) {
	nextRefs := hotspotRefs(next)
	for field, ref := range hotspotRefs(old) {
		prev := *ref
		if prev.IsZero() {
			continue
		}
		cur := *nextRefs[field]
		if cur.Equal(prev) {
			continue
		}
		if prev.Kind() == models.AssetTransient {
			s.resolver.Registry().Revoke(prev.Handle())
		}
		// a replacement stored under the same slot key keeps the record
		if prev.HasStorageKey() && !(cur.HasStorageKey() && cur.Key() == prev.Key()) {
			s.resolver.Forget(ctx, field.Namespace(), models.Stored(prev.Key(), ""))
		}
	}
}

func hotspotRefs(h *models.Hotspot) map[models.AssetField]**models.AssetRef {
	return map[models.AssetField]**models.AssetRef{
		models.FieldHotspotAudio:   &h.Audio,
		models.FieldHotspotImage:   &h.Image,
		models.FieldHotspotPreview: &h.WeblinkPreview,
	}
}

// cacheAspectRatio records the image's height/width on an image hotspot
// when it is not known yet.
func (s *EditorService) cacheAspectRatio(ctx context.Context, h *models.Hotspot) {
	if h.Type != models.HotspotImage || h.ImageAspectRatio > 0 || h.Image.IsZero() {
		return
	}
	content, ok := s.resolver.Bytes(ctx, models.NamespaceImages, h.Image)
	if !ok {
		return
	}
	h.ImageAspectRatio = assets.AspectRatio(content.Data)
}
