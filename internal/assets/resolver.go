// Package assets turns storage keys into transient handles and back, and
// fetches remote assets.
package assets

import (
	"context"

	"go.uber.org/zap"

	"tour-service/internal/blobstore"
	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
)

// Resolver is the Asset Reference Resolver.
type Resolver struct {
	blobs    blobstore.Store
	registry *TransientRegistry
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewResolver returns a Resolver reading from blobs and minting handles in
// registry.
func NewResolver(blobs blobstore.Store, registry *TransientRegistry, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{blobs: blobs, registry: registry, logger: logging.OrNop(logger), metrics: m}
}

// Registry returns the handle registry the resolver mints into.
func (r *Resolver) Registry() *TransientRegistry { return r.registry }

// usable reports whether ref can be rendered without a lookup.
func (r *Resolver) usable(ref *models.AssetRef) bool {
	switch ref.Kind() {
	case models.AssetEmbedded, models.AssetRemote:
		return true
	case models.AssetTransient:
		return r.registry.Valid(ref.Handle())
	}
	return false
}

// Rehydrate gives every ref that has a storage key but no usable direct
// reference a fresh transient handle minted from the Blob Store record. A
// missing record leaves the ref as it is. It reports whether anything
// changed.
func (r *Resolver) Rehydrate(ctx context.Context, doc *models.SceneDocument) bool {
	mutated := false
	doc.WalkAssets(func(slot models.AssetSlot, p **models.AssetRef) {
		ref := *p
		if ref.IsZero() || !ref.HasStorageKey() || r.usable(ref) {
			return
		}
		rec := r.blobs.Get(ctx, slot.Namespace(), ref.Key())
		r.metrics.ObserveResolution(rec != nil)
		if rec == nil {
			r.logger.Warn("asset missing from blob store",
				zap.String("slot", slot.String()), zap.String("key", ref.Key()))
			return
		}
		name := ref.Name()
		if name == "" {
			name = rec.Name
		}
		*p = models.Transient(r.registry.Mint(rec.Blob, rec.MimeType, name), ref.Key(), name)
		mutated = true
	})
	return mutated
}

// MissingAssets lists the slots whose ref cannot be rendered, so the user
// can be asked to supply those files again.
func (r *Resolver) MissingAssets(doc *models.SceneDocument) []models.AssetSlot {
	missing := []models.AssetSlot{}
	doc.WalkAssets(func(slot models.AssetSlot, p **models.AssetRef) {
		if ref := *p; !ref.IsZero() && !r.usable(ref) {
			missing = append(missing, slot)
		}
	})
	return missing
}

// Store writes data to the Blob Store under the slot's storage key and
// returns a transient ref for immediate use. When the Blob Store rejects the
// write the ref carries no key, so the asset lives for this process only.
func (r *Resolver) Store(ctx context.Context, slot models.AssetSlot, data []byte, meta models.BlobMeta) *models.AssetRef {
	key := slot.StorageKey()
	handle := r.registry.Mint(data, meta.MimeType, meta.Name)
	if !r.blobs.Put(ctx, slot.Namespace(), key, data, meta) {
		r.logger.Warn("asset not persisted; it will need to be supplied again after a restart",
			zap.String("slot", slot.String()))
		return models.Transient(handle, "", meta.Name)
	}
	return models.Transient(handle, key, meta.Name)
}

// Forget deletes the stored bytes of ref and revokes its handle.
func (r *Resolver) Forget(ctx context.Context, ns models.Namespace, ref *models.AssetRef) {
	if ref.Kind() == models.AssetTransient {
		r.registry.Revoke(ref.Handle())
	}
	if ref.HasStorageKey() {
		r.blobs.Delete(ctx, ns, ref.Key())
	}
}

// Content is the bytes behind a ref.
type Content struct {
	Data     []byte
	MimeType string
	Name     string
}

// Bytes returns the content of ref. Remote and bundled refs have no local
// bytes and report false, as does a stored ref with no record.
func (r *Resolver) Bytes(ctx context.Context, ns models.Namespace, ref *models.AssetRef) (*Content, bool) {
	switch ref.Kind() {
	case models.AssetEmbedded:
		return &Content{Data: ref.Data(), MimeType: ref.MimeType(), Name: ref.Name()}, true
	case models.AssetTransient:
		if entry, ok := r.registry.Get(ref.Handle()); ok {
			return &Content{Data: entry.Data, MimeType: entry.MimeType, Name: entry.Name}, true
		}
	}
	if !ref.HasStorageKey() {
		return nil, false
	}
	rec := r.blobs.Get(ctx, ns, ref.Key())
	if rec == nil {
		return nil, false
	}
	name := ref.Name()
	if name == "" {
		name = rec.Name
	}
	return &Content{Data: rec.Blob, MimeType: rec.MimeType, Name: name}, true
}
