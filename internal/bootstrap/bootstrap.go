// Package bootstrap builds the editor and submission services from the
// configured backends. It is shared by the HTTP server and tourctl.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tour-service/internal/assets"
	"tour-service/internal/blobstore"
	"tour-service/internal/config"
	"tour-service/internal/docstore"
	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
	"tour-service/internal/repository"
	"tour-service/internal/services"
	"tour-service/internal/storage"
)

// Runtime holds the services of one process and the resources behind them.
type Runtime struct {
	Editor      *services.EditorService
	Submissions *services.SubmissionService

	closers []func() error
	logger  *zap.Logger
}

// Close releases every opened backend.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("closing backend failed", zap.Error(err))
		}
	}
	r.closers = nil
}

// Build connects the configured backends and creates both services. The
// editor is not opened; callers decide when to load the persisted tour.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Runtime, error) {
	logger = logging.OrNop(logger)
	rt := &Runtime{logger: logger}

	var db *gorm.DB
	if cfg.NeedsDatabase() {
		var err error
		if db, err = ConnectDatabase(cfg); err != nil {
			return nil, err
		}
	}
	var minioClient *minio.Client
	if cfg.NeedsMinio() {
		var err error
		if minioClient, err = storage.NewMinioClient(ctx, cfg, logger); err != nil {
			return nil, errors.Wrap(err, "MinIO client initialization failed")
		}
	}

	blobs := InitBlobStore(rt, cfg, minioClient, logger, m)
	kv, err := InitDocumentBackend(ctx, rt, cfg, db)
	if err != nil {
		rt.Close()
		return nil, err
	}
	archives, err := InitArchiveStore(cfg, minioClient)
	if err != nil {
		rt.Close()
		return nil, err
	}

	registry := assets.NewTransientRegistry(cfg.TransientCapacity, logger, m)
	resolver := assets.NewResolver(blobs, registry, logger, m)
	rt.Editor = services.NewEditorService(docstore.New(kv, logger, m), blobs, resolver, NewFetcher(cfg, logger, m), cfg.DefaultSceneID, logger, m)
	rt.Submissions = services.NewSubmissionService(InitSubmissionRepository(cfg, db, logger), archives, cfg.HostedDir, logger, m)
	return rt, nil
}

// NewFetcher returns the remote asset downloader, capped at the upload
// size limit.
func NewFetcher(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *assets.Fetcher {
	return assets.NewFetcher(time.Duration(cfg.FetchTimeoutSec)*time.Second, cfg.FetchProxyURL,
		int64(cfg.MaxUploadSizeMB)<<20, logger, m)
}

// ConnectDatabase opens postgres and migrates the tables this service owns.
func ConnectDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "database connection failed")
	}
	if err := db.AutoMigrate(&models.KVEntry{}, &models.Submission{}); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

// InitBlobStore selects the Blob Store backend.
func InitBlobStore(rt *Runtime, cfg *config.Config, client *minio.Client, logger *zap.Logger, m *metrics.Metrics) blobstore.Store {
	switch cfg.BlobBackend {
	case "minio":
		remote := blobstore.NewMinioStore(client, cfg.MinioBucket, "assets", logger, m)
		return blobstore.NewCachedStore(remote, int64(cfg.BlobCacheMB)<<20, logger, m)
	case "memory":
		return blobstore.NewMemoryStore()
	default:
		store := blobstore.NewBoltStore(cfg.BoltPath, blobstore.WithBoltLogger(logger), blobstore.WithBoltMetrics(m))
		rt.closers = append(rt.closers, store.Close)
		return store
	}
}

// InitDocumentBackend selects the key-value store the Scene Document Store
// writes to.
func InitDocumentBackend(ctx context.Context, rt *Runtime, cfg *config.Config, db *gorm.DB) (docstore.KeyValueStore, error) {
	switch cfg.DocBackend {
	case "postgres":
		return repository.NewKVRepository(db), nil
	case "redis":
		client, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, errors.Wrap(err, "Redis client initialization failed")
		}
		rt.closers = append(rt.closers, client.Close)
		return client, nil
	case "memory":
		return docstore.NewMemoryKV(), nil
	default:
		kv, err := docstore.NewBoltKV(cfg.DocPath)
		if err != nil {
			return nil, errors.Wrap(err, "document store initialization failed")
		}
		rt.closers = append(rt.closers, kv.Close)
		return kv, nil
	}
}

func InitSubmissionRepository(cfg *config.Config, db *gorm.DB, logger *zap.Logger) repository.SubmissionRepository {
	if cfg.SubmissionBackend == "postgres" {
		return repository.NewGormSubmissionRepository(db)
	}
	return repository.NewFileSubmissionRepository(cfg.SubmissionLog, logger)
}

func InitArchiveStore(cfg *config.Config, client *minio.Client) (services.ArchiveStore, error) {
	if cfg.ArchiveBackend == "minio" {
		return services.NewMinioArchiveStore(client, cfg.MinioBucket, "submissions"), nil
	}
	if err := os.MkdirAll(cfg.SubmissionsDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create submissions directory %s", cfg.SubmissionsDir)
	}
	return services.NewLocalArchiveStore(cfg.SubmissionsDir), nil
}
