package blobstore

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
)

const nameMetaKey = "Asset-Name"

// MinioStore keeps each namespace under its own object prefix in one
// bucket. The display name travels as user metadata.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	prefix  string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewMinioStore(client *minio.Client, bucket, prefix string, logger *zap.Logger, m *metrics.Metrics) *MinioStore {
	return &MinioStore{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

func (s *MinioStore) objectKey(ns models.Namespace, key string) string {
	return path.Join(s.prefix, string(ns), key)
}

func (s *MinioStore) nsPrefix(ns models.Namespace) string {
	return path.Join(s.prefix, string(ns)) + "/"
}

func (s *MinioStore) Put(ctx context.Context, ns models.Namespace, key string, data []byte, meta models.BlobMeta) (ok bool) {
	start := time.Now()
	defer func() { s.metrics.ObserveBlobOp(string(ns), "put", ok, start) }()
	if !ns.Valid() || key == "" {
		return false
	}
	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(ns, key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{nameMetaKey: meta.Name},
		})
	if err != nil {
		s.logger.Warn("put blob", zap.String("namespace", string(ns)), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *MinioStore) Get(ctx context.Context, ns models.Namespace, key string) (rec *models.BlobRecord) {
	start := time.Now()
	defer func() { s.metrics.ObserveBlobOp(string(ns), "get", rec != nil, start) }()
	if !ns.Valid() {
		return nil
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(ns, key), minio.GetObjectOptions{})
	if err != nil {
		s.logger.Warn("get blob", zap.String("key", key), zap.Error(err))
		return nil
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			s.logger.Warn("stat blob", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		s.logger.Warn("read blob", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &models.BlobRecord{
		Key:      key,
		Name:     stat.UserMetadata[nameMetaKey],
		MimeType: stat.ContentType,
		Size:     stat.Size,
		Updated:  stat.LastModified,
		Blob:     data,
	}
}

func (s *MinioStore) Delete(ctx context.Context, ns models.Namespace, key string) (ok bool) {
	start := time.Now()
	defer func() { s.metrics.ObserveBlobOp(string(ns), "delete", ok, start) }()
	if !ns.Valid() {
		return false
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(ns, key), minio.RemoveObjectOptions{}); err != nil {
		s.logger.Warn("delete blob", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *MinioStore) ClearAll(ctx context.Context, ns models.Namespace) (ok bool) {
	start := time.Now()
	defer func() { s.metrics.ObserveBlobOp(string(ns), "clear", ok, start) }()
	if !ns.Valid() {
		return false
	}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.nsPrefix(ns), Recursive: true})
	ok = true
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		s.logger.Warn("clear namespace", zap.String("object", rerr.ObjectName), zap.Error(rerr.Err))
		ok = false
	}
	return ok
}
