package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/assets"
	"tour-service/internal/blobstore"
	"tour-service/internal/bundle"
	"tour-service/internal/docstore"
	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
	"tour-service/internal/scenegraph"
)

var (
	ErrSlotNotFound  = errors.New("asset slot not found")
	ErrUnknownHandle = errors.New("unknown or expired asset handle")
	ErrInvalidScene  = errors.New("invalid scene")
)

// EditorService owns the tour being edited. Every mutation runs under one
// lock: mutate the document, prune orphaned navigation, then sanitize and
// save the whole document.
type EditorService struct {
	mu     sync.Mutex
	doc    *models.SceneDocument
	styles models.StyleConfig
	saved  bool

	docs     *docstore.Store
	blobs    blobstore.Store
	resolver *assets.Resolver
	fetcher  *assets.Fetcher
	packager *bundle.Packager
	unpacker *bundle.Unpacker

	defaultSceneID string
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewEditorService creates the service. Call Open before use.
func NewEditorService(docs *docstore.Store, blobs blobstore.Store, resolver *assets.Resolver, fetcher *assets.Fetcher,
	defaultSceneID string, logger *zap.Logger, m *metrics.Metrics) *EditorService {
	logger = logging.OrNop(logger)
	return &EditorService{
		docs:           docs,
		blobs:          blobs,
		resolver:       resolver,
		fetcher:        fetcher,
		packager:       bundle.NewPackager(resolver, logger),
		unpacker:       bundle.NewUnpacker(resolver, defaultSceneID, logger),
		defaultSceneID: defaultSceneID,
		logger:         logger,
		metrics:        m,
	}
}

// Open loads the persisted tour, or starts a new one, and runs it through
// normalization and rehydration.
func (s *EditorService) Open(ctx context.Context) scenegraph.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.docs.Load(ctx)
	fresh := doc == nil
	if fresh {
		doc = scenegraph.NewDocument(s.defaultSceneID)
	}
	report := scenegraph.Normalize(doc, s.defaultSceneID)
	s.doc = doc
	s.resolver.Rehydrate(ctx, s.doc)

	s.styles = scenegraph.DefaultStyles()
	if styles := s.docs.LoadStyles(ctx, s.styles); styles != nil {
		s.styles = *styles
	}

	if fresh || report.Changed() {
		s.saved = s.docs.Save(ctx, s.doc)
	} else {
		s.saved = true
	}
	s.logger.Info("tour opened",
		zap.Bool("new", fresh),
		zap.Int("scenes", len(s.doc.Scenes)),
		zap.Int("hotspots", s.doc.HotspotCount()),
		zap.Int("missing_assets", len(s.resolver.MissingAssets(s.doc))))
	return report
}

// commit finishes a mutation. Callers hold s.mu.
func (s *EditorService) commit(ctx context.Context) {
	if n := scenegraph.PruneOrphanedNavigation(s.doc); n > 0 {
		s.logger.Info("pruned orphaned navigation hotspots", zap.Int("count", n))
	}
	s.saved = s.docs.Save(ctx, s.doc)
}

// DocumentView is the editor's view of the tour.
type DocumentView struct {
	Document      *models.SceneDocument `json:"document"`
	MissingAssets []models.AssetSlot    `json:"missingAssets"`
	// Persisted is false when the last save did not reach storage.
	Persisted bool `json:"persisted"`
}

// Document returns a copy of the tour with every resolvable asset carrying
// a live handle, plus the slots whose asset must be supplied again.
func (s *EditorService) Document(ctx context.Context) DocumentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver.Rehydrate(ctx, s.doc)
	return DocumentView{
		Document:      s.doc.Clone(),
		MissingAssets: s.resolver.MissingAssets(s.doc),
		Persisted:     s.saved,
	}
}

// Styles returns a copy of the current style configuration.
func (s *EditorService) Styles() models.StyleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.styles
}

// UpdateStyles decodes patch over the current styles and saves them.
func (s *EditorService) UpdateStyles(ctx context.Context, patch []byte) (models.StyleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.styles
	if err := json.Unmarshal(patch, &next); err != nil {
		return s.styles, &scenegraph.ValidationError{Message: "Invalid style configuration: " + err.Error()}
	}
	s.styles = next
	if !s.docs.SaveStyles(ctx, &s.styles) {
		s.logger.Warn("styles kept in memory only")
	}
	return s.styles, nil
}

// SceneInput describes a new scene.
type SceneInput struct {
	ID   string           `json:"id,omitempty"`
	Name string           `json:"name"`
	Kind models.MediaKind `json:"type,omitempty"`
}

// AddScene creates an empty scene. Without an id the next free "roomN" is
// used; a given id must match [a-zA-Z0-9_-]+.
func (s *EditorService) AddScene(ctx context.Context, in SceneInput) (string, *models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.nextSceneID()
	}
	if !scenegraph.ValidSceneID(id) {
		return "", nil, errors.Wrapf(ErrInvalidScene, "scene id %q may only contain letters, digits, '-' and '_'", id)
	}
	if s.doc.HasScene(id) {
		return "", nil, errors.Wrapf(scenegraph.ErrSceneExists, "scene %q", id)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = id
	}
	scene := scenegraph.NewScene(name)
	switch in.Kind {
	case "", models.MediaImage:
	case models.MediaVideo:
		scene.Kind = models.MediaVideo
	default:
		return "", nil, errors.Wrapf(ErrInvalidScene, "unknown media type %q", in.Kind)
	}
	s.doc.Scenes[id] = scene
	s.commit(ctx)
	return id, scene.Clone(), nil
}

func (s *EditorService) nextSceneID() string {
	for n := len(s.doc.Scenes) + 1; ; n++ {
		id := fmt.Sprintf("room%d", n)
		if !s.doc.HasScene(id) {
			return id
		}
	}
}

// SceneUpdate holds the scene fields to change; nil fields are kept.
type SceneUpdate struct {
	Name          *string             `json:"name,omitempty"`
	Kind          *models.MediaKind   `json:"type,omitempty"`
	VideoVolume   *float64            `json:"videoVolume,omitempty"`
	StartingPoint *models.Orientation `json:"startingPoint,omitempty"`
}

// UpdateScene applies u to scene id. Switching the media type drops the
// media of the other type.
func (s *EditorService) UpdateScene(ctx context.Context, id string, u SceneUpdate) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, ok := s.doc.Scenes[id]
	if !ok {
		return nil, errors.Wrapf(scenegraph.ErrSceneNotFound, "scene %q", id)
	}
	if u.Kind != nil && *u.Kind != models.MediaImage && *u.Kind != models.MediaVideo {
		return nil, errors.Wrapf(ErrInvalidScene, "unknown media type %q", *u.Kind)
	}

	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		scene.Name = strings.TrimSpace(*u.Name)
	}
	if u.Kind != nil && *u.Kind != scene.Kind {
		s.switchMedia(ctx, scene, *u.Kind)
	}
	if u.VideoVolume != nil {
		scene.VideoVolume = scenegraph.ClampVolume(*u.VideoVolume)
	}
	if u.StartingPoint != nil {
		sp := *u.StartingPoint
		scene.StartingPoint = &sp
	}
	s.commit(ctx)
	return scene.Clone(), nil
}

// DeleteScene removes a scene with its assets and every navigation hotspot
// that led to it. It returns the number of pruned hotspots.
func (s *EditorService) DeleteScene(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, ok := s.doc.Scenes[id]
	if ok && id != s.defaultSceneID {
		s.forgetScene(ctx, id, scene)
	}
	pruned, err := scenegraph.DeleteScene(s.doc, id, s.defaultSceneID)
	if err != nil {
		return 0, err
	}
	s.commit(ctx)
	s.logger.Info("scene deleted", zap.String("scene", id), zap.Int("pruned_hotspots", pruned))
	return pruned, nil
}

func (s *EditorService) forgetScene(ctx context.Context, id string, scene *models.Scene) {
	single := &models.SceneDocument{Scenes: map[string]*models.Scene{id: scene}}
	single.WalkAssets(func(slot models.AssetSlot, ref **models.AssetRef) {
		if *ref != nil {
			s.resolver.Forget(ctx, slot.Namespace(), *ref)
		}
	})
}

// SwitchScene makes id the current scene.
func (s *EditorService) SwitchScene(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.HasScene(id) {
		return errors.Wrapf(scenegraph.ErrSceneNotFound, "scene %q", id)
	}
	s.doc.CurrentScene = id
	s.commit(ctx)
	return nil
}

// GlobalSoundUpdate holds the ambient sound settings to change.
type GlobalSoundUpdate struct {
	Volume  *float64 `json:"volume,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
}

// SetGlobalSound changes the volume or enabled flag of a scene's background
// sound.
func (s *EditorService) SetGlobalSound(ctx context.Context, sceneID string, u GlobalSoundUpdate) (*models.GlobalSound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, ok := s.doc.Scenes[sceneID]
	if !ok {
		return nil, errors.Wrapf(scenegraph.ErrSceneNotFound, "scene %q", sceneID)
	}
	gs := ensureGlobalSound(scene)
	if u.Volume != nil {
		gs.Volume = scenegraph.ClampVolume(*u.Volume)
	}
	if u.Enabled != nil {
		gs.Enabled = *u.Enabled
	}
	s.commit(ctx)
	out := *gs
	out.Audio = gs.Audio.Clone()
	return &out, nil
}

func ensureGlobalSound(scene *models.Scene) *models.GlobalSound {
	if scene.GlobalSound == nil {
		scene.GlobalSound = &models.GlobalSound{Volume: scenegraph.DefaultVolume}
	}
	return scene.GlobalSound
}
