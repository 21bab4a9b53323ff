package blobstore

import (
	"context"
	"sync"
	"time"

	"tour-service/internal/models"
)

// MemoryStore keeps records in process memory. It backs tests and the
// "memory" blob backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.Namespace]map[string]*models.BlobRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records: make(map[models.Namespace]map[string]*models.BlobRecord),
		now:     time.Now,
	}
	for _, ns := range models.Namespaces {
		s.records[ns] = make(map[string]*models.BlobRecord)
	}
	return s
}

func (s *MemoryStore) Put(_ context.Context, ns models.Namespace, key string, data []byte, meta models.BlobMeta) bool {
	if !ns.Valid() || key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ns][key] = &models.BlobRecord{
		Key:      key,
		Name:     meta.Name,
		MimeType: meta.MimeType,
		Size:     int64(len(data)),
		Updated:  s.now(),
		Blob:     append([]byte(nil), data...),
	}
	return true
}

func (s *MemoryStore) Get(_ context.Context, ns models.Namespace, key string) *models.BlobRecord {
	if !ns.Valid() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ns][key]
	if !ok {
		return nil
	}
	c := *rec
	c.Blob = append([]byte(nil), rec.Blob...)
	return &c
}

func (s *MemoryStore) Delete(_ context.Context, ns models.Namespace, key string) bool {
	if !ns.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[ns], key)
	return true
}

func (s *MemoryStore) ClearAll(_ context.Context, ns models.Namespace) bool {
	if !ns.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ns] = make(map[string]*models.BlobRecord)
	return true
}

// Len returns the number of records in ns.
func (s *MemoryStore) Len(ns models.Namespace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[ns])
}
