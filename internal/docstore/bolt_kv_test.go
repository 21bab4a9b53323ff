package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "documents.db")

	kv, err := NewBoltKV(path)
	require.NoError(t, err)
	_, ok, err := kv.Get(ctx, "tour")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "tour", `{"scenes":[]}`))
	require.NoError(t, kv.Set(ctx, "styles", "{}"))
	require.NoError(t, kv.Delete(ctx, "styles"))
	require.NoError(t, kv.Delete(ctx, "never-set"))
	require.NoError(t, kv.Close())

	kv, err = NewBoltKV(path)
	require.NoError(t, err)
	defer kv.Close()
	v, ok, err := kv.Get(ctx, "tour")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"scenes":[]}`, v)
	_, ok, err = kv.Get(ctx, "styles")
	require.NoError(t, err)
	assert.False(t, ok)
}
