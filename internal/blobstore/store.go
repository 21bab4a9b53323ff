// Package blobstore holds binary assets keyed by string, partitioned into
// the images, audio and video namespaces.
//
// Every operation is best effort: failures are logged and reported as
// false or nil, never as errors, so a lost asset degrades to asking the
// user for the file again.
package blobstore

import (
	"context"

	"tour-service/internal/models"
)

// Store is the Blob Store contract shared by every backend.
type Store interface {
	Put(ctx context.Context, ns models.Namespace, key string, data []byte, meta models.BlobMeta) bool
	Get(ctx context.Context, ns models.Namespace, key string) *models.BlobRecord
	Delete(ctx context.Context, ns models.Namespace, key string) bool
	ClearAll(ctx context.Context, ns models.Namespace) bool
}

// ClearEverything empties every namespace and reports whether all succeeded.
func ClearEverything(ctx context.Context, s Store) bool {
	ok := true
	for _, ns := range models.Namespaces {
		if !s.ClearAll(ctx, ns) {
			ok = false
		}
	}
	return ok
}
