package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mholt/archives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/repository"
	"tour-service/internal/services"
)

func newSubmissionApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	dir := t.TempDir()
	repo := repository.NewFileSubmissionRepository(filepath.Join(dir, "submissions.log"), nil)
	store := services.NewLocalArchiveStore(filepath.Join(dir, "submissions"))
	hosted := filepath.Join(dir, "hosted")
	svc := services.NewSubmissionService(repo, store, hosted, nil, nil)

	app := fiber.New()
	NewSubmissionHandler(svc, nil).RegisterRoutes(app)
	return app, hosted
}

func projectZip(t *testing.T) []byte {
	t.Helper()
	ctx := context.Background()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte("<html>tour</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "config.json"), []byte(`{"scenes":{}}`), 0o644))
	entries, err := archives.FilesFromDisk(ctx, nil, map[string]string{src + string(os.PathSeparator): ""})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, archives.Zip{}.Archive(ctx, &buf, entries))
	return buf.Bytes()
}

func submitProject(t *testing.T, app *fiber.App, student string) string {
	t.Helper()
	resp, body := do(t, app, multipartRequest(t, http.MethodPost, "/submit-project", "project", "tour.zip", projectZip(t),
		map[string]string{"studentName": student, "projectName": "Museum"}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode(t, body)
	require.Equal(t, true, out["success"])
	return out["fileName"].(string)
}

func TestSubmissionHandler_SubmitAndList(t *testing.T) {
	app, _ := newSubmissionApp(t)

	name := submitProject(t, app, "Ana Lopez")
	assert.True(t, strings.HasPrefix(name, "Ana_Lopez_"))
	assert.True(t, strings.HasSuffix(name, ".zip"))

	resp, body := do(t, app, multipartRequest(t, http.MethodPost, "/submit-project", "project", "tour.zip", projectZip(t),
		map[string]string{"projectName": "Museum"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, decode(t, body)["success"])

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/admin/submissions", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), name)
}

func TestSubmissionHandler_Download(t *testing.T) {
	app, _ := newSubmissionApp(t)
	name := submitProject(t, app, "ana")

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/admin/download/"+name, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, projectZip(t)[:4], body[:4])

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/admin/download/missing.zip", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, FileNotFoundError, decode(t, body)["error"])
}

func TestSubmissionHandler_HostAndUnhost(t *testing.T) {
	app, hosted := newSubmissionApp(t)
	name := submitProject(t, app, "ana")

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/admin/host/"+name, HostRequest{URLPath: "bad path"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.ErrInvalidURLPath.Error(), decode(t, body)["message"])

	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/admin/host/missing.zip", HostRequest{URLPath: "x"}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/admin/host/"+name, HostRequest{URLPath: "ana-tour"}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode(t, body)
	assert.Equal(t, "ana-tour", out["urlPath"])
	assert.True(t, strings.HasSuffix(out["hostedUrl"].(string), "/hosted/ana-tour/index.html"))
	assert.FileExists(t, filepath.Join(hosted, "ana-tour", "index.html"))

	resp, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/admin/unhost/"+name, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoDirExists(t, filepath.Join(hosted, "ana-tour"))

	resp, body = do(t, app, httptest.NewRequest(http.MethodPost, "/admin/unhost/"+name, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, services.ErrNotHosted.Error(), decode(t, body)["message"])
}

func TestSubmissionHandler_Delete(t *testing.T) {
	app, _ := newSubmissionApp(t)
	name := submitProject(t, app, "ana")

	resp, _ := do(t, app, httptest.NewRequest(http.MethodDelete, "/admin/delete/"+name, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, app, httptest.NewRequest(http.MethodDelete, "/admin/delete/"+name, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, FileNotFoundError, decode(t, body)["message"])
}

func TestSubmissionHandler_BackupRestore(t *testing.T) {
	app, _ := newSubmissionApp(t)
	name := submitProject(t, app, "ana")
	resp, _ := do(t, app, jsonRequest(http.MethodPost, "/admin/host/"+name, HostRequest{URLPath: "ana"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, backup := do(t, app, httptest.NewRequest(http.MethodGet, "/admin/backup-all", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "vr-projects-backup-")

	other, hosted := newSubmissionApp(t)
	resp, body := do(t, other, multipartRequest(t, http.MethodPost, "/admin/restore-backup", "backup", "backup.zip", backup, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode(t, body)
	assert.Equal(t, float64(1), out["archives"])
	assert.Equal(t, float64(1), out["submissions"])
	assert.Equal(t, float64(1), out["hostedSites"])
	assert.FileExists(t, filepath.Join(hosted, "ana", "index.html"))

	resp, _ = do(t, other, httptest.NewRequest(http.MethodPost, "/admin/restore-backup", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
