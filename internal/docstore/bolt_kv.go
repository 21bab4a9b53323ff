package docstore

import (
	"context"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"tour-service/internal/storage"
)

const documentsBucket = "documents"

// BoltKV is a KeyValueStore kept in a bbolt file, so the tour survives a
// restart without an external database.
type BoltKV struct {
	db *bbolt.DB
}

// NewBoltKV opens (or creates) the bbolt file at path.
func NewBoltKV(path string) (*BoltKV, error) {
	db, err := storage.OpenBolt(path, documentsBucket)
	if err != nil {
		return nil, err
	}
	return &BoltKV{db: db}, nil
}

func (b *BoltKV) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(documentsBucket)).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "read %s", key)
	}
	return value, found, nil
}

func (b *BoltKV) Set(_ context.Context, key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(documentsBucket)).Put([]byte(key), []byte(value))
	})
	return errors.Wrapf(err, "write %s", key)
}

func (b *BoltKV) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(documentsBucket)).Delete([]byte(key))
	})
	return errors.Wrapf(err, "delete %s", key)
}

// Close releases the file lock.
func (b *BoltKV) Close() error {
	return b.db.Close()
}
