package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, errs := Load("")
	require.Empty(t, errs)

	assert.Equal(t, DefaultPort, cfg.AppPort)
	assert.Equal(t, "bolt", cfg.BlobBackend)
	assert.Equal(t, "bolt", cfg.DocBackend)
	assert.Equal(t, "data/documents.db", cfg.DocPath)
	assert.Equal(t, "file", cfg.SubmissionBackend)
	assert.Equal(t, "local", cfg.ArchiveBackend)
	assert.Equal(t, "data/submissions", cfg.SubmissionsDir)
	assert.Equal(t, DefaultTransientCapacity, cfg.TransientCapacity)
	assert.Equal(t, DefaultBlobCacheMB, cfg.BlobCacheMB)
	assert.False(t, cfg.NeedsDatabase())
	assert.False(t, cfg.NeedsMinio())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tour.yaml")
	yaml := `
port: "9000"
blob:
  backend: memory
doc:
  backend: redis
redis:
  addr: localhost:6379
  db: 2
submissions:
  max_upload_size_mb: 64
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("TOUR_PORT", "9100")

	cfg, errs := Load(path)
	require.Empty(t, errs)
	assert.Equal(t, "9100", cfg.AppPort, "env wins over file")
	assert.Equal(t, "memory", cfg.BlobBackend)
	assert.Equal(t, "redis", cfg.DocBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 64, cfg.MaxUploadSizeMB)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, cfg)
	assert.Len(t, errs, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"unknown blob backend", func(c *Config) { c.BlobBackend = "s3" }, ErrUnknownBlobBackend},
		{"unknown doc backend", func(c *Config) { c.DocBackend = "sqlite" }, ErrUnknownDocBackend},
		{"postgres without host", func(c *Config) { c.DocBackend = "postgres" }, ErrDatabaseIncomplete},
		{"minio without endpoint", func(c *Config) { c.ArchiveBackend = "minio" }, ErrMinioIncomplete},
		{"redis without addr", func(c *Config) { c.DocBackend = "redis" }, ErrRedisIncomplete},
		{"unknown archive backend", func(c *Config) { c.ArchiveBackend = "ftp" }, ErrUnknownArchiveBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{BlobBackend: "memory", DocBackend: "memory", SubmissionBackend: "file", ArchiveBackend: "local"}
			require.Empty(t, c.Validate())
			tt.mutate(c)
			assert.Contains(t, c.Validate(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	_, errs := Load("")
	assert.NotEmpty(t, errs)
}
