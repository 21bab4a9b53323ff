// Package docstore persists the scene document and the style configuration
// as JSON text under two fixed keys of a key-value store.
package docstore

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
)

const (
	ScenesKey = "vr-hotspot-scenes"
	StylesKey = "vr-hotspot-styles"
)

// Store is the Scene Document Store. Storage failures are logged and
// reported through the boolean or nil results.
type Store struct {
	kv      KeyValueStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(kv KeyValueStore, logger *zap.Logger, m *metrics.Metrics) *Store {
	return &Store{kv: kv, logger: logging.OrNop(logger), metrics: m}
}

// Sanitize returns a copy of doc fit for persistence: every transient ref
// with a storage key becomes a stored ref, and transient refs without one
// are dropped. doc itself is left untouched.
func Sanitize(doc *models.SceneDocument) *models.SceneDocument {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	out.WalkAssets(func(_ models.AssetSlot, ref **models.AssetRef) {
		*ref = (*ref).Sanitized()
	})
	return out
}

// Save sanitizes and writes the whole document.
func (s *Store) Save(ctx context.Context, doc *models.SceneDocument) (ok bool) {
	defer func() { s.metrics.ObserveDocumentOp("save", ok) }()
	if doc == nil {
		return false
	}
	data, err := json.Marshal(Sanitize(doc))
	if err != nil {
		s.logger.Warn("encode scene document", zap.Error(err))
		return false
	}
	if err := s.kv.Set(ctx, ScenesKey, string(data)); err != nil {
		s.logger.Warn("save scene document", zap.Error(err))
		return false
	}
	return true
}

// Load returns the stored document without resolving any asset, or nil
// when nothing usable is stored.
func (s *Store) Load(ctx context.Context) (doc *models.SceneDocument) {
	defer func() { s.metrics.ObserveDocumentOp("load", doc != nil) }()
	raw, ok, err := s.kv.Get(ctx, ScenesKey)
	if err != nil {
		s.logger.Warn("load scene document", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var out models.SceneDocument
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("decode scene document", zap.Error(err))
		return nil
	}
	if out.Scenes == nil {
		out.Scenes = make(map[string]*models.Scene)
	}
	return &out
}

func (s *Store) SaveStyles(ctx context.Context, styles *models.StyleConfig) (ok bool) {
	defer func() { s.metrics.ObserveDocumentOp("save_styles", ok) }()
	if styles == nil {
		return false
	}
	data, err := json.Marshal(styles)
	if err != nil {
		s.logger.Warn("encode styles", zap.Error(err))
		return false
	}
	if err := s.kv.Set(ctx, StylesKey, string(data)); err != nil {
		s.logger.Warn("save styles", zap.Error(err))
		return false
	}
	return true
}

// LoadStyles decodes the stored styles over base, so knobs missing from the
// stored record keep their base values. It returns nil when nothing is
// stored or the record is unreadable.
func (s *Store) LoadStyles(ctx context.Context, base models.StyleConfig) *models.StyleConfig {
	raw, ok, err := s.kv.Get(ctx, StylesKey)
	if err != nil {
		s.logger.Warn("load styles", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	out := base
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("decode styles", zap.Error(err))
		return nil
	}
	return &out
}

// Clear removes both records.
func (s *Store) Clear(ctx context.Context) bool {
	ok := true
	for _, key := range []string{ScenesKey, StylesKey} {
		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Warn("clear document key", zap.String("key", key), zap.Error(err))
			ok = false
		}
	}
	return ok
}
