package assets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientRegistry(t *testing.T) {
	tr := NewTransientRegistry(10, nil, nil)
	h := tr.Mint([]byte("abc"), "image/png", "a.png")
	assert.True(t, strings.HasPrefix(h, "blob:"))
	assert.True(t, tr.Valid(h))

	entry, ok := tr.Get(h)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), entry.Data)
	assert.Equal(t, "image/png", entry.MimeType)

	tr.Revoke(h)
	assert.False(t, tr.Valid(h))
	_, ok = tr.Get(h)
	assert.False(t, ok)

	stats := tr.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Zero(t, stats.SizeBytes)
}

func TestTransientRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	tr := NewTransientRegistry(2, nil, nil)
	first := tr.Mint([]byte("1"), "", "")
	second := tr.Mint([]byte("2"), "", "")
	_, _ = tr.Get(first)
	third := tr.Mint([]byte("3"), "", "")

	assert.True(t, tr.Valid(first))
	assert.False(t, tr.Valid(second))
	assert.True(t, tr.Valid(third))
	assert.Equal(t, 2, tr.Stats().Handles)
}

func TestTransientRegistry_ForeignHandle(t *testing.T) {
	tr := NewTransientRegistry(2, nil, nil)
	assert.False(t, tr.Valid("blob:http://localhost/0d6f"))
	assert.False(t, tr.Valid("scene-a-image"))
}
