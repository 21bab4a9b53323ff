package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/assets"
	"tour-service/internal/blobstore"
	"tour-service/internal/docstore"
	"tour-service/internal/scenegraph"
	"tour-service/internal/services"
)

func newEditorApp(t *testing.T) *fiber.App {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	resolver := assets.NewResolver(blobs, assets.NewTransientRegistry(64, nil, nil), nil, nil)
	docs := docstore.New(docstore.NewMemoryKV(), nil, nil)
	svc := services.NewEditorService(docs, blobs, resolver, assets.NewFetcher(time.Second, "", 0, nil, nil), "room1", nil, nil)
	svc.Open(context.Background())

	app := fiber.New()
	NewEditorHandler(svc, nil).RegisterRoutes(app.Group("/api/tour"))
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func jsonRequest(method, target string, body any) *http.Request {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, method, target, field, filename string, data []byte, values map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestEditorHandler_Document(t *testing.T) {
	app := newEditorApp(t)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/tour/document", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode(t, body)
	doc := view["document"].(map[string]any)
	assert.Equal(t, "room1", doc["currentScene"])
	assert.Contains(t, doc["scenes"], "room1")
	assert.Equal(t, true, view["persisted"])
}

func TestEditorHandler_Scenes(t *testing.T) {
	app := newEditorApp(t)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes", map[string]string{"name": "Hall"}))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "room2", decode(t, body)["id"])

	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes", map[string]string{"id": "room2"}))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, app, jsonRequest(http.MethodPatch, "/api/tour/scenes/room2", map[string]any{"videoVolume": 0.25}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 0.25, decode(t, body)["videoVolume"])

	resp, body = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/tour/scenes/room1", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, true, decode(t, body)["error"])

	resp, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/api/tour/scenes/attic/switch", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/tour/scenes/room2", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), decode(t, body)["prunedHotspots"])
}

func TestEditorHandler_HotspotValidation(t *testing.T) {
	app := newEditorApp(t)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes/room1/hotspots", map[string]any{"type": "text"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, scenegraph.MsgTextRequired, decode(t, body)["message"])

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/api/tour/hotspots/validate",
		map[string]any{"type": "weblink", "weblinkUrl": "https://example.com"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, body)["valid"])

	resp, _ = do(t, app, jsonRequest(http.MethodPatch, "/api/tour/hotspots/abc", map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/tour/hotspots/42", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditorHandler_UploadAndPlace(t *testing.T) {
	app := newEditorApp(t)
	audio := []byte("ID3-narration")

	resp, body := do(t, app, multipartRequest(t, http.MethodPost, "/api/tour/uploads", "file", "intro.mp3", audio, nil))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var staged map[string]any
	require.NoError(t, json.Unmarshal(body, &staged))
	handle := staged["handle"].(string)
	require.True(t, strings.HasPrefix(handle, "blob:"))

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/tour/assets/"+strings.TrimPrefix(handle, "blob:"), nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, audio, body)

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes/room1/hotspots", map[string]any{
		"type":     "text-audio",
		"text":     "Welcome",
		"audio":    staged,
		"position": map[string]float64{"x": 1, "y": 1.6, "z": -2},
	}))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	placed := decode(t, body)
	assert.Equal(t, "hotspot-1-audio", placed["audio"].(map[string]any)["key"])

	resp, body = do(t, app, jsonRequest(http.MethodPut, "/api/tour/hotspots/1/position", map[string]float64{"x": 3}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), decode(t, body)["position"].(map[string]any)["x"])

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/tour/assets/blob:unknown", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditorHandler_SlotAssets(t *testing.T) {
	app := newEditorApp(t)

	resp, body := do(t, app, multipartRequest(t, http.MethodPut, "/api/tour/scenes/room1/assets/scene-image", "file", "pano.jpg", []byte("jpeg"), nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "scene-room1-image", decode(t, body)["key"])

	resp, _ = do(t, app, multipartRequest(t, http.MethodPut, "/api/tour/scenes/room1/assets/hotspot-image", "file", "a.png", []byte("png"), nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "hotspot fields need the hotspot id")

	resp, _ = do(t, app, multipartRequest(t, http.MethodPut, "/api/tour/scenes/room1/assets/poster", "file", "a.png", []byte("png"), nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes/room1/assets/scene-image/remote", RemoteAssetRequest{URL: "javascript:alert(1)"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, scenegraph.MsgURLInvalid, decode(t, body)["message"])

	resp, _ = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/tour/scenes/room1/assets/scene-image", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEditorHandler_RemoteDownloadFailure(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()
	app := newEditorApp(t)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes/room1/assets/scene-image/remote",
		RemoteAssetRequest{URL: origin.URL + "/pano.jpg", Download: true}))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, assets.ErrFetchFailed.Error(), decode(t, body)["message"])
}

func TestEditorHandler_ExportImport(t *testing.T) {
	app := newEditorApp(t)
	_, _ = do(t, app, jsonRequest(http.MethodPost, "/api/tour/scenes", map[string]string{"name": "Hall"}))

	resp, zipped := do(t, app, httptest.NewRequest(http.MethodGet, "/api/tour/export", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "0", resp.Header.Get("X-Export-Warnings"))

	other := newEditorApp(t)
	resp, body := do(t, other, multipartRequest(t, http.MethodPost, "/api/tour/import", "bundle", "tour.zip", zipped, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	_, body = do(t, other, httptest.NewRequest(http.MethodGet, "/api/tour/document", nil))
	scenes := decode(t, body)["document"].(map[string]any)["scenes"].(map[string]any)
	assert.Len(t, scenes, 2)

	resp, body = do(t, other, multipartRequest(t, http.MethodPost, "/api/tour/import", "bundle", "tour.zip", []byte("junk"), nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestEditorHandler_StylesAndClear(t *testing.T) {
	app := newEditorApp(t)

	req := httptest.NewRequest(http.MethodPut, "/api/tour/styles", strings.NewReader(`{"weblink":{"color":"#123456"}}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, body := do(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	_, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/tour/styles", nil))
	weblink := decode(t, body)["weblink"].(map[string]any)
	assert.Equal(t, "#123456", weblink["color"])

	resp, body = do(t, app, httptest.NewRequest(http.MethodPost, "/api/tour/clear", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, body)["cleared"])

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/tour/stats", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), decode(t, body)["handles"], string(body))
}
