package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tour-service/internal/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Setenv("TOUR_CONFIG", "")
	c, errs := config.Load("")
	require.Empty(t, errs)
	cfg, logger = c, zap.NewNop()

	ctx := context.Background()
	var zipped bytes.Buffer
	_, err := scratchEditor(ctx).ExportZip(ctx, &zipped)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tour.zip")
	require.NoError(t, os.WriteFile(path, zipped.Bytes(), 0o644))

	out, err := runCLI(t, "validate", path)
	require.NoError(t, err, out)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, float64(1), got["scenes"])
	assert.Equal(t, float64(0), got["missingAssets"])
}

func TestValidateCommand_RejectsJunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tour.zip")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err := runCLI(t, "validate", path)
	assert.Error(t, err)
}

func TestClearCommand_NeedsConfirmation(t *testing.T) {
	_, err := runCLI(t, "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}
