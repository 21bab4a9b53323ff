package blobstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
	"tour-service/internal/storage"
)

// BoltStore keeps one bucket per namespace in a single bbolt file. The file
// is opened on first use; opening creates any missing namespace bucket.
type BoltStore struct {
	path    string
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu sync.Mutex
	db *bbolt.DB
}

// BoltOption configures a BoltStore.
type BoltOption func(*BoltStore)

func WithBoltLogger(l *zap.Logger) BoltOption {
	return func(b *BoltStore) { b.logger = l }
}

func WithBoltMetrics(m *metrics.Metrics) BoltOption {
	return func(b *BoltStore) { b.metrics = m }
}

// WithBoltNow sets the clock used for Updated timestamps.
func WithBoltNow(now func() time.Time) BoltOption {
	return func(b *BoltStore) { b.now = now }
}

func NewBoltStore(path string, opts ...BoltOption) *BoltStore {
	b := &BoltStore{path: path, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrNop(b.logger)
	return b
}

// header is the metadata prefix of a stored value; the raw bytes follow it.
type header struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	MimeType string    `json:"type"`
	Size     int64     `json:"size"`
	Updated  time.Time `json:"updated"`
}

func encodeRecord(rec *models.BlobRecord) ([]byte, error) {
	h, err := json.Marshal(header{Key: rec.Key, Name: rec.Name, MimeType: rec.MimeType, Size: rec.Size, Updated: rec.Updated})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4, 4+len(h)+len(rec.Blob))
	binary.BigEndian.PutUint32(out, uint32(len(h)))
	out = append(out, h...)
	return append(out, rec.Blob...), nil
}

func decodeRecord(val []byte) (*models.BlobRecord, error) {
	if len(val) < 4 {
		return nil, errors.New("record too short")
	}
	n := int(binary.BigEndian.Uint32(val))
	if len(val) < 4+n {
		return nil, errors.New("truncated record header")
	}
	var h header
	if err := json.Unmarshal(val[4:4+n], &h); err != nil {
		return nil, errors.Wrap(err, "decode record header")
	}
	return &models.BlobRecord{
		Key:      h.Key,
		Name:     h.Name,
		MimeType: h.MimeType,
		Size:     h.Size,
		Updated:  h.Updated,
		Blob:     append([]byte(nil), val[4+n:]...),
	}, nil
}

func (b *BoltStore) open() (*bbolt.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return b.db, nil
	}
	buckets := make([]string, 0, len(models.Namespaces))
	for _, ns := range models.Namespaces {
		buckets = append(buckets, string(ns))
	}
	db, err := storage.OpenBolt(b.path, buckets...)
	if err != nil {
		// retried on the next call
		return nil, err
	}
	b.db = db
	b.logger.Debug("opened blob store", zap.String("path", b.path))
	return db, nil
}

func (b *BoltStore) Put(_ context.Context, ns models.Namespace, key string, data []byte, meta models.BlobMeta) (ok bool) {
	start := time.Now()
	defer func() { b.metrics.ObserveBlobOp(string(ns), "put", ok, start) }()
	if !ns.Valid() || key == "" {
		return false
	}
	db, err := b.open()
	if err != nil {
		b.logger.Warn("blob store unavailable", zap.Error(err))
		return false
	}
	val, err := encodeRecord(&models.BlobRecord{
		Key: key, Name: meta.Name, MimeType: meta.MimeType,
		Size: int64(len(data)), Updated: b.now(), Blob: data,
	})
	if err != nil {
		b.logger.Warn("encode blob record", zap.String("key", key), zap.Error(err))
		return false
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ns))
		if bucket == nil {
			return errors.Errorf("bucket %s missing", ns)
		}
		return bucket.Put([]byte(key), val)
	})
	if err != nil {
		b.logger.Warn("put blob", zap.String("namespace", string(ns)), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (b *BoltStore) Get(_ context.Context, ns models.Namespace, key string) (rec *models.BlobRecord) {
	start := time.Now()
	defer func() { b.metrics.ObserveBlobOp(string(ns), "get", rec != nil, start) }()
	if !ns.Valid() {
		return nil
	}
	db, err := b.open()
	if err != nil {
		b.logger.Warn("blob store unavailable", zap.Error(err))
		return nil
	}
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ns))
		if bucket == nil {
			return nil
		}
		val := bucket.Get([]byte(key))
		if val == nil {
			return nil
		}
		var derr error
		rec, derr = decodeRecord(val)
		return derr
	})
	if err != nil {
		b.logger.Warn("get blob", zap.String("namespace", string(ns)), zap.String("key", key), zap.Error(err))
		return nil
	}
	return rec
}

func (b *BoltStore) Delete(_ context.Context, ns models.Namespace, key string) (ok bool) {
	start := time.Now()
	defer func() { b.metrics.ObserveBlobOp(string(ns), "delete", ok, start) }()
	if !ns.Valid() {
		return false
	}
	db, err := b.open()
	if err != nil {
		b.logger.Warn("blob store unavailable", zap.Error(err))
		return false
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(ns)); bucket != nil {
			return bucket.Delete([]byte(key))
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("delete blob", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// ClearAll drops and recreates the namespace bucket.
func (b *BoltStore) ClearAll(_ context.Context, ns models.Namespace) (ok bool) {
	start := time.Now()
	defer func() { b.metrics.ObserveBlobOp(string(ns), "clear", ok, start) }()
	if !ns.Valid() {
		return false
	}
	db, err := b.open()
	if err != nil {
		b.logger.Warn("blob store unavailable", zap.Error(err))
		return false
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(ns)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(ns))
		return err
	})
	if err != nil {
		b.logger.Warn("clear namespace", zap.String("namespace", string(ns)), zap.Error(err))
		return false
	}
	return true
}

// Close releases the underlying file if it was opened.
func (b *BoltStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
