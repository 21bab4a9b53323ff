package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/assets"
	"tour-service/internal/models"
	"tour-service/internal/scenegraph"
)

// Upload is a file supplied by the user.
type Upload struct {
	Data     []byte
	Name     string
	MimeType string
}

// StageUpload keeps an upload under a handle until a hotspot that names the
// handle is placed or edited.
func (s *EditorService) StageUpload(up Upload) *models.AssetRef {
	mimeType := assets.SniffMimeType(up.MimeType, up.Data)
	handle := s.resolver.Registry().Mint(up.Data, mimeType, up.Name)
	return models.Transient(handle, "", up.Name)
}

// slotRef returns the ref pointer of slot, creating the global sound of a
// scene on demand. Callers hold s.mu.
func (s *EditorService) slotRef(slot models.AssetSlot) (**models.AssetRef, error) {
	if !slot.Field.Valid() {
		return nil, errors.Wrapf(ErrSlotNotFound, "unknown field %q", slot.Field)
	}
	if slot.Field == models.FieldSceneSound {
		if scene, ok := s.doc.Scenes[slot.SceneID]; ok {
			ensureGlobalSound(scene)
		}
	}
	p := s.doc.AssetAt(slot)
	if p == nil {
		return nil, errors.Wrapf(ErrSlotNotFound, "slot %s", slot)
	}
	return p, nil
}

// AttachUpload stores an uploaded file under the slot's storage key and
// points the slot at it. Putting a panorama into a scene also switches the
// scene's media type.
func (s *EditorService) AttachUpload(ctx context.Context, slot models.AssetSlot, up Upload) (*models.AssetRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.slotRef(slot)
	if err != nil {
		return nil, err
	}
	meta := models.BlobMeta{Name: up.Name, MimeType: assets.SniffMimeType(up.MimeType, up.Data)}
	ref := s.resolver.Store(ctx, slot, up.Data, meta)
	s.replace(ctx, slot, p, ref)

	if slot.Field == models.FieldHotspotImage {
		if h := s.doc.Scenes[slot.SceneID].FindHotspot(slot.HotspotID); h != nil {
			h.ImageAspectRatio = assets.AspectRatio(up.Data)
		}
	}
	s.commit(ctx)
	return ref.Clone(), nil
}

// AttachRemote points the slot at a remote URL. With download set the
// asset is fetched and stored like an upload instead; if the download fails
// the slot keeps its previous asset.
func (s *EditorService) AttachRemote(ctx context.Context, slot models.AssetSlot, rawURL string, download bool) (*models.AssetRef, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, &scenegraph.ValidationError{Message: scenegraph.MsgURLInvalid}
	}

	s.mu.Lock()
	_, err := s.slotRef(slot)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if download {
		fetched, err := s.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			s.logger.Warn("remote asset download failed; slot unchanged",
				zap.String("slot", slot.String()), zap.Error(err))
			return nil, err
		}
		return s.AttachUpload(ctx, slot, Upload{Data: fetched.Data, Name: fetched.Name, MimeType: fetched.MimeType})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the slot may have gone while the lock was released
	p, err := s.slotRef(slot)
	if err != nil {
		return nil, err
	}
	ref := models.Remote(rawURL)
	s.replace(ctx, slot, p, ref)
	if slot.Field == models.FieldHotspotImage {
		if h := s.doc.Scenes[slot.SceneID].FindHotspot(slot.HotspotID); h != nil {
			h.ImageAspectRatio = 0
		}
	}
	s.commit(ctx)
	return ref.Clone(), nil
}

// DetachAsset empties the slot and deletes its stored bytes.
func (s *EditorService) DetachAsset(ctx context.Context, slot models.AssetSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.slotRef(slot)
	if err != nil {
		return err
	}
	if *p != nil {
		s.resolver.Forget(ctx, slot.Namespace(), *p)
	}
	*p = nil
	s.commit(ctx)
	return nil
}

// replace swaps the ref of a slot. The old handle is revoked and, when the
// new ref no longer uses the slot's storage key, the stored bytes go too.
// Callers hold s.mu.
func (s *EditorService) replace(ctx context.Context, slot models.AssetSlot, p **models.AssetRef, next *models.AssetRef) {
	prev := *p
	if prev.Kind() == models.AssetTransient && prev.Handle() != next.Handle() {
		s.resolver.Registry().Revoke(prev.Handle())
	}
	if prev.HasStorageKey() && !next.HasStorageKey() {
		s.blobs.Delete(ctx, slot.Namespace(), prev.Key())
	}
	*p = next

	scene := s.doc.Scenes[slot.SceneID]
	switch slot.Field {
	case models.FieldSceneImage:
		s.switchMedia(ctx, scene, models.MediaImage)
	case models.FieldSceneVideo:
		s.switchMedia(ctx, scene, models.MediaVideo)
	}
}

func (s *EditorService) switchMedia(ctx context.Context, scene *models.Scene, kind models.MediaKind) {
	image, video := scene.Image, scene.Video
	scene.Kind = kind
	scenegraph.NormalizeMedia(scene)
	if image != nil && scene.Image == nil {
		s.resolver.Forget(ctx, models.NamespaceImages, image)
	}
	if video != nil && scene.Video == nil {
		s.resolver.Forget(ctx, models.NamespaceVideo, video)
	}
}

// Asset returns the bytes behind a live handle.
func (s *EditorService) Asset(handle string) (*assets.TransientEntry, error) {
	entry, ok := s.resolver.Registry().Get(handle)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "%s", handle)
	}
	return entry, nil
}

func (s *EditorService) RegistryStats() assets.RegistryStats {
	return s.resolver.Registry().Stats()
}
