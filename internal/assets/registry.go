package assets

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
)

// TransientEntry is the content behind a transient handle.
type TransientEntry struct {
	Data       []byte
	MimeType   string
	Name       string
	CreatedAt  time.Time
	LastAccess time.Time
}

// RegistryStats describes the registry's current use.
type RegistryStats struct {
	Handles   int   `json:"handles"`
	SizeBytes int64 `json:"sizeBytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// TransientRegistry hands out process-lifetime handles for asset bytes.
// Handles are never valid after a restart. When more than capacity handles
// are live the least recently used one is revoked.
type TransientRegistry struct {
	mu          sync.Mutex
	entries     map[string]*TransientEntry
	capacity    int
	currentSize int64
	logger      *zap.Logger
	metrics     *metrics.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

func NewTransientRegistry(capacity int, logger *zap.Logger, m *metrics.Metrics) *TransientRegistry {
	if capacity <= 0 {
		capacity = 1
	}
	return &TransientRegistry{
		entries:  make(map[string]*TransientEntry),
		capacity: capacity,
		logger:   logging.OrNop(logger),
		metrics:  m,
	}
}

// Mint registers data and returns a fresh handle for it.
func (tr *TransientRegistry) Mint(data []byte, mimeType, name string) string {
	handle := models.TransientPrefix + uuid.NewString()
	now := time.Now()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	for len(tr.entries) >= tr.capacity {
		if !tr.evictLRU() {
			break
		}
	}
	tr.entries[handle] = &TransientEntry{
		Data:       data,
		MimeType:   mimeType,
		Name:       name,
		CreatedAt:  now,
		LastAccess: now,
	}
	tr.currentSize += int64(len(data))
	tr.metrics.SetTransientCount(len(tr.entries))
	return handle
}

// Get returns the entry behind handle.
func (tr *TransientRegistry) Get(handle string) (*TransientEntry, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	entry, ok := tr.entries[handle]
	if !ok {
		tr.misses.Add(1)
		return nil, false
	}
	entry.LastAccess = time.Now()
	tr.hits.Add(1)
	return entry, true
}

// Valid reports whether handle was minted by this registry and is live.
func (tr *TransientRegistry) Valid(handle string) bool {
	if !strings.HasPrefix(handle, models.TransientPrefix) {
		return false
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, ok := tr.entries[handle]
	return ok
}

// Revoke releases handle.
func (tr *TransientRegistry) Revoke(handle string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.revokeLocked(handle)
}

func (tr *TransientRegistry) revokeLocked(handle string) {
	if entry, ok := tr.entries[handle]; ok {
		tr.currentSize -= int64(len(entry.Data))
		delete(tr.entries, handle)
		tr.metrics.SetTransientCount(len(tr.entries))
	}
}

// Clear revokes every handle.
func (tr *TransientRegistry) Clear() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.entries = make(map[string]*TransientEntry)
	tr.currentSize = 0
	tr.metrics.SetTransientCount(0)
}

func (tr *TransientRegistry) Stats() RegistryStats {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return RegistryStats{
		Handles:   len(tr.entries),
		SizeBytes: tr.currentSize,
		Hits:      tr.hits.Load(),
		Misses:    tr.misses.Load(),
	}
}

func (tr *TransientRegistry) evictLRU() bool {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range tr.entries {
		if oldestKey == "" || entry.LastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccess
		}
	}
	if oldestKey == "" {
		return false
	}
	tr.revokeLocked(oldestKey)
	tr.logger.Debug("revoked least recently used handle", zap.String("handle", oldestKey))
	return true
}
