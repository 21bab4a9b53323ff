package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/models"
)

func TestFileSubmissionRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "log", "submissions.json")
	repo := NewFileSubmissionRepository(path, nil)

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &models.Submission{FileName: "ana_1.zip", StudentName: "ana", ProjectName: "Museum", SubmittedAt: at}))
	require.NoError(t, repo.Create(ctx, &models.Submission{FileName: "bo_2.zip", StudentName: "bo", ProjectName: "Campus", SubmittedAt: at.Add(time.Hour)}))

	got, err := repo.Get(ctx, "bo_2.zip")
	require.NoError(t, err)
	assert.Equal(t, "Campus", got.ProjectName)

	got.IsHosted = true
	got.HostedPath = "campus"
	require.NoError(t, repo.Save(ctx, got))

	subs, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "ana_1.zip", subs[0].FileName)
	assert.True(t, subs[1].IsHosted)

	require.NoError(t, repo.Delete(ctx, "ana_1.zip"))
	_, err = repo.Get(ctx, "ana_1.zip")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestReadSubmissionLog_LegacyLines(t *testing.T) {
	log := `{"studentName":"ana","projectName":"Museum","fileName":"ana_1.zip","submittedAt":"2024-03-01T10:00:00.000Z"}
not json

{"studentName":"bo","projectName":"Campus","fileName":"bo_2.zip","submittedAt":"2024-03-01T11:00:00.000Z","hostedUrl":"/hosted/campus/index.html"}
`
	subs, err := ReadSubmissionLog(strings.NewReader(log), nil)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "/hosted/campus/index.html", subs[1].HostedURL)
	assert.Empty(t, subs[1].HostedPath)
}

func TestFileSubmissionRepository_WritesNDJSON(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "submissions.json")
	repo := NewFileSubmissionRepository(path, nil)
	require.NoError(t, repo.Create(ctx, &models.Submission{FileName: "a.zip"}))
	require.NoError(t, repo.Create(ctx, &models.Submission{FileName: "b.zip"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 2)
}
