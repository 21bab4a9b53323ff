package handlers

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/assets"
	"tour-service/internal/bundle"
	"tour-service/internal/logging"
	"tour-service/internal/models"
	"tour-service/internal/scenegraph"
	"tour-service/internal/services"
)

const (
	InvalidHotspotIDError = "invalid hotspot id"
	InvalidBodyError      = "invalid request body"
)

// EditorHandler exposes the tour editor over HTTP.
type EditorHandler struct {
	Service *services.EditorService
	logger  *zap.Logger
}

func NewEditorHandler(service *services.EditorService, logger *zap.Logger) *EditorHandler {
	return &EditorHandler{Service: service, logger: logging.OrNop(logger)}
}

// RegisterRoutes mounts the editor endpoints on r.
func (h *EditorHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/document", h.GetDocument)
	r.Get("/styles", h.GetStyles)
	r.Put("/styles", h.UpdateStyles)
	r.Get("/stats", h.Stats)

	r.Post("/scenes", h.AddScene)
	r.Patch("/scenes/:id", h.UpdateScene)
	r.Delete("/scenes/:id", h.DeleteScene)
	r.Post("/scenes/:id/switch", h.SwitchScene)
	r.Put("/scenes/:id/global-sound", h.SetGlobalSound)
	r.Post("/scenes/:id/hotspots", h.PlaceHotspot)
	r.Delete("/scenes/:id/hotspots", h.ClearHotspots)
	r.Put("/scenes/:id/assets/:field", h.AttachUpload)
	r.Post("/scenes/:id/assets/:field/remote", h.AttachRemote)
	r.Delete("/scenes/:id/assets/:field", h.DetachAsset)

	r.Post("/hotspots/validate", h.ValidateHotspot)
	r.Patch("/hotspots/:hid", h.EditHotspot)
	r.Put("/hotspots/:hid/position", h.MoveHotspot)
	r.Delete("/hotspots/:hid", h.DeleteHotspot)

	r.Post("/uploads", h.StageUpload)
	r.Get("/assets/:handle", h.GetAsset)

	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Post("/clear", h.ClearAll)
}

// fail maps service errors to HTTP statuses.
func (h *EditorHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := err.Error()

	var verr *scenegraph.ValidationError
	switch {
	case errors.As(err, &verr):
		status, msg = fiber.StatusBadRequest, verr.Message
	case errors.Is(err, scenegraph.ErrSceneNotFound),
		errors.Is(err, scenegraph.ErrHotspotNotFound),
		errors.Is(err, services.ErrSlotNotFound),
		errors.Is(err, services.ErrUnknownHandle):
		status = fiber.StatusNotFound
	case errors.Is(err, scenegraph.ErrSceneExists):
		status = fiber.StatusConflict
	case errors.Is(err, scenegraph.ErrDefaultSceneProtected),
		errors.Is(err, services.ErrInvalidScene),
		errors.Is(err, bundle.ErrInvalidBundle):
		status = fiber.StatusBadRequest
	case errors.Is(err, assets.ErrFetchFailed):
		status, msg = fiber.StatusBadGateway, assets.ErrFetchFailed.Error()
	}

	fields := []zap.Field{
		zap.String("method", c.Method()), zap.String("path", c.Path()),
		zap.Int("status", status), zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("editor request failed", fields...)
	} else {
		h.logger.Info("editor request rejected", fields...)
	}
	return c.Status(status).JSON(fiber.Map{"error": true, "message": msg})
}

func (h *EditorHandler) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": msg})
}

func hotspotID(c *fiber.Ctx) (int, bool) {
	id, err := strconv.Atoi(c.Params("hid"))
	return id, err == nil && id > 0
}

// slotFrom reads the slot addressed by /scenes/:id/assets/:field. Hotspot
// fields name the hotspot in the "hotspot" query parameter.
func slotFrom(c *fiber.Ctx) (models.AssetSlot, error) {
	slot := models.AssetSlot{SceneID: c.Params("id"), Field: models.AssetField(c.Params("field"))}
	if !slot.Field.Valid() {
		return slot, errors.Wrapf(services.ErrSlotNotFound, "unknown field %q", slot.Field)
	}
	if slot.Field.OnHotspot() {
		id, err := strconv.Atoi(c.Query("hotspot"))
		if err != nil || id <= 0 {
			return slot, &scenegraph.ValidationError{Message: InvalidHotspotIDError}
		}
		slot.HotspotID = id
	}
	return slot, nil
}

func readUpload(fh *multipart.FileHeader) (services.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return services.Upload{}, err
	}
	return services.Upload{Data: data, Name: fh.Filename, MimeType: fh.Header.Get(fiber.HeaderContentType)}, nil
}

// GetDocument handles GET /document.
// @Summary Get the tour document
// @Description Returns the tour with live asset handles and the slots whose file must be supplied again
// @Tags editor
// @Produce json
// @Success 200 {object} services.DocumentView
// @Router /document [get]
func (h *EditorHandler) GetDocument(c *fiber.Ctx) error {
	return c.JSON(h.Service.Document(c.UserContext()))
}

// GetStyles handles GET /styles.
// @Summary Get the style configuration
// @Tags editor
// @Produce json
// @Success 200 {object} models.StyleConfig
// @Router /styles [get]
func (h *EditorHandler) GetStyles(c *fiber.Ctx) error {
	return c.JSON(h.Service.Styles())
}

// UpdateStyles handles PUT /styles. The body is merged over the current
// styles.
// @Summary Update the style configuration
// @Tags editor
// @Accept json
// @Produce json
// @Param styles body models.StyleConfig true "Styles to change"
// @Success 200 {object} models.StyleConfig
// @Failure 400 {object} map[string]interface{} "Invalid style configuration"
// @Router /styles [put]
func (h *EditorHandler) UpdateStyles(c *fiber.Ctx) error {
	styles, err := h.Service.UpdateStyles(c.UserContext(), c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(styles)
}

// Stats handles GET /stats.
// @Summary Transient handle registry usage
// @Tags editor
// @Produce json
// @Success 200 {object} assets.RegistryStats
// @Router /stats [get]
func (h *EditorHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.Service.RegistryStats())
}

// AddScene handles POST /scenes.
// @Summary Add a scene
// @Description Adds an empty scene; without an id the next free "roomN" is used
// @Tags scenes
// @Accept json
// @Produce json
// @Param scene body services.SceneInput true "Scene"
// @Success 201 {object} map[string]interface{} "Scene id and scene"
// @Failure 400 {object} map[string]interface{} "Invalid scene"
// @Failure 409 {object} map[string]interface{} "Scene already exists"
// @Router /scenes [post]
func (h *EditorHandler) AddScene(c *fiber.Ctx) error {
	var in services.SceneInput
	if err := c.BodyParser(&in); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	id, scene, err := h.Service.AddScene(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "scene": scene})
}

// UpdateScene handles PATCH /scenes/:id.
// @Summary Update a scene
// @Tags scenes
// @Accept json
// @Produce json
// @Param id path string true "Scene ID"
// @Param update body services.SceneUpdate true "Fields to change"
// @Success 200 {object} models.Scene
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id} [patch]
func (h *EditorHandler) UpdateScene(c *fiber.Ctx) error {
	var u services.SceneUpdate
	if err := c.BodyParser(&u); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	scene, err := h.Service.UpdateScene(c.UserContext(), c.Params("id"), u)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(scene)
}

// DeleteScene handles DELETE /scenes/:id.
// @Summary Delete a scene
// @Description Deletes a scene and every navigation hotspot leading to it. The default scene cannot be deleted.
// @Tags scenes
// @Produce json
// @Param id path string true "Scene ID"
// @Success 200 {object} map[string]interface{} "Number of pruned hotspots"
// @Failure 400 {object} map[string]interface{} "Default scene"
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id} [delete]
func (h *EditorHandler) DeleteScene(c *fiber.Ctx) error {
	pruned, err := h.Service.DeleteScene(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"prunedHotspots": pruned})
}

// SwitchScene handles POST /scenes/:id/switch.
// @Summary Make a scene current
// @Tags scenes
// @Param id path string true "Scene ID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id}/switch [post]
func (h *EditorHandler) SwitchScene(c *fiber.Ctx) error {
	if err := h.Service.SwitchScene(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetGlobalSound handles PUT /scenes/:id/global-sound.
// @Summary Update the ambient sound of a scene
// @Tags scenes
// @Accept json
// @Produce json
// @Param id path string true "Scene ID"
// @Param update body services.GlobalSoundUpdate true "Volume and enabled flag"
// @Success 200 {object} models.GlobalSound
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id}/global-sound [put]
func (h *EditorHandler) SetGlobalSound(c *fiber.Ctx) error {
	var u services.GlobalSoundUpdate
	if err := c.BodyParser(&u); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	gs, err := h.Service.SetGlobalSound(c.UserContext(), c.Params("id"), u)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(gs)
}

// PlaceHotspot handles POST /scenes/:id/hotspots.
// @Summary Place a hotspot
// @Tags hotspots
// @Accept json
// @Produce json
// @Param id path string true "Scene ID"
// @Param hotspot body services.HotspotInput true "Hotspot"
// @Success 201 {object} models.Hotspot
// @Failure 400 {object} map[string]interface{} "Validation message"
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id}/hotspots [post]
func (h *EditorHandler) PlaceHotspot(c *fiber.Ctx) error {
	var in services.HotspotInput
	if err := c.BodyParser(&in); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	hs, err := h.Service.PlaceHotspot(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(hs)
}

// ClearHotspots handles DELETE /scenes/:id/hotspots.
// @Summary Remove every hotspot of a scene
// @Tags hotspots
// @Produce json
// @Param id path string true "Scene ID"
// @Success 200 {object} map[string]interface{} "Number of removed hotspots"
// @Failure 404 {object} map[string]interface{} "Scene not found"
// @Router /scenes/{id}/hotspots [delete]
func (h *EditorHandler) ClearHotspots(c *fiber.Ctx) error {
	n, err := h.Service.ClearHotspots(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"removed": n})
}

// ValidateHotspot handles POST /hotspots/validate.
// @Summary Check a hotspot payload
// @Description Runs the required-field checks without changing the tour
// @Tags hotspots
// @Accept json
// @Produce json
// @Param hotspot body services.HotspotInput true "Hotspot"
// @Success 200 {object} scenegraph.ValidationResult
// @Router /hotspots/validate [post]
func (h *EditorHandler) ValidateHotspot(c *fiber.Ctx) error {
	var in services.HotspotInput
	if err := c.BodyParser(&in); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	return c.JSON(h.Service.ValidatePayload(in))
}

// EditHotspot handles PATCH /hotspots/:hid.
// @Summary Edit a hotspot
// @Description Overlays the given fields on the hotspot; an empty type keeps the current one
// @Tags hotspots
// @Accept json
// @Produce json
// @Param hid path int true "Hotspot ID"
// @Param hotspot body services.HotspotInput true "Fields to change"
// @Success 200 {object} models.Hotspot
// @Failure 400 {object} map[string]interface{} "Validation message"
// @Failure 404 {object} map[string]interface{} "Hotspot not found"
// @Router /hotspots/{hid} [patch]
func (h *EditorHandler) EditHotspot(c *fiber.Ctx) error {
	id, ok := hotspotID(c)
	if !ok {
		return h.badRequest(c, InvalidHotspotIDError)
	}
	var in services.HotspotInput
	if err := c.BodyParser(&in); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	hs, err := h.Service.EditHotspot(c.UserContext(), id, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hs)
}

// MoveHotspot handles PUT /hotspots/:hid/position.
// @Summary Move a hotspot
// @Tags hotspots
// @Accept json
// @Produce json
// @Param hid path int true "Hotspot ID"
// @Param position body models.Vec3 true "New position"
// @Success 200 {object} models.Hotspot
// @Failure 404 {object} map[string]interface{} "Hotspot not found"
// @Router /hotspots/{hid}/position [put]
func (h *EditorHandler) MoveHotspot(c *fiber.Ctx) error {
	id, ok := hotspotID(c)
	if !ok {
		return h.badRequest(c, InvalidHotspotIDError)
	}
	var pos models.Vec3
	if err := c.BodyParser(&pos); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	hs, err := h.Service.MoveHotspot(c.UserContext(), id, pos)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hs)
}

// DeleteHotspot handles DELETE /hotspots/:hid.
// @Summary Delete a hotspot
// @Tags hotspots
// @Param hid path int true "Hotspot ID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Hotspot not found"
// @Router /hotspots/{hid} [delete]
func (h *EditorHandler) DeleteHotspot(c *fiber.Ctx) error {
	id, ok := hotspotID(c)
	if !ok {
		return h.badRequest(c, InvalidHotspotIDError)
	}
	if err := h.Service.DeleteHotspot(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// StageUpload handles POST /uploads.
// @Summary Stage an uploaded file
// @Description Returns a handle that a hotspot payload can name before the hotspot exists
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Asset file"
// @Success 201 {object} models.AssetRef
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /uploads [post]
func (h *EditorHandler) StageUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return h.badRequest(c, "failed to read file: "+err.Error())
	}
	up, err := readUpload(fh)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.Service.StageUpload(up))
}

// AttachUpload handles PUT /scenes/:id/assets/:field.
// @Summary Attach an uploaded file to a slot
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Scene ID"
// @Param field path string true "scene-image, scene-video, scene-sound, hotspot-audio, hotspot-image or hotspot-preview"
// @Param hotspot query int false "Hotspot ID for hotspot fields"
// @Param file formData file true "Asset file"
// @Success 200 {object} models.AssetRef
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 404 {object} map[string]interface{} "Slot not found"
// @Router /scenes/{id}/assets/{field} [put]
func (h *EditorHandler) AttachUpload(c *fiber.Ctx) error {
	slot, err := slotFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return h.badRequest(c, "failed to read file: "+err.Error())
	}
	up, err := readUpload(fh)
	if err != nil {
		return h.fail(c, err)
	}
	ref, err := h.Service.AttachUpload(c.UserContext(), slot, up)
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("asset attached", zap.String("slot", slot.String()), zap.Int("bytes", len(up.Data)))
	return c.JSON(ref)
}

// RemoteAssetRequest names a remote asset for a slot.
type RemoteAssetRequest struct {
	URL string `json:"url"`
	// Download stores a local copy instead of keeping the URL.
	Download bool `json:"download"`
}

// AttachRemote handles POST /scenes/:id/assets/:field/remote.
// @Summary Attach a remote asset to a slot
// @Description Keeps the URL, or downloads the file (retrying once through the proxy) and stores it. A failed download leaves the slot unchanged.
// @Tags assets
// @Accept json
// @Produce json
// @Param id path string true "Scene ID"
// @Param field path string true "Asset field"
// @Param hotspot query int false "Hotspot ID for hotspot fields"
// @Param request body RemoteAssetRequest true "Remote asset"
// @Success 200 {object} models.AssetRef
// @Failure 400 {object} map[string]interface{} "Invalid URL"
// @Failure 404 {object} map[string]interface{} "Slot not found"
// @Failure 502 {object} map[string]interface{} "Download failed"
// @Router /scenes/{id}/assets/{field}/remote [post]
func (h *EditorHandler) AttachRemote(c *fiber.Ctx) error {
	slot, err := slotFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req RemoteAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, InvalidBodyError)
	}
	ref, err := h.Service.AttachRemote(c.UserContext(), slot, req.URL, req.Download)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ref)
}

// DetachAsset handles DELETE /scenes/:id/assets/:field.
// @Summary Remove the asset of a slot
// @Tags assets
// @Param id path string true "Scene ID"
// @Param field path string true "Asset field"
// @Param hotspot query int false "Hotspot ID for hotspot fields"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Slot not found"
// @Router /scenes/{id}/assets/{field} [delete]
func (h *EditorHandler) DetachAsset(c *fiber.Ctx) error {
	slot, err := slotFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.DetachAsset(c.UserContext(), slot); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAsset handles GET /assets/:handle. The "blob:" prefix of the handle
// may be left out.
// @Summary Get the bytes behind a transient handle
// @Tags assets
// @Produce application/octet-stream
// @Param handle path string true "Transient handle"
// @Success 200 {file} binary "Asset bytes"
// @Failure 404 {object} map[string]interface{} "Unknown or expired handle"
// @Router /assets/{handle} [get]
func (h *EditorHandler) GetAsset(c *fiber.Ctx) error {
	handle := c.Params("handle")
	if unescaped, err := url.PathUnescape(handle); err == nil {
		handle = unescaped
	}
	if !strings.HasPrefix(handle, models.TransientPrefix) {
		handle = models.TransientPrefix + handle
	}
	entry, err := h.Service.Asset(handle)
	if err != nil {
		return h.fail(c, err)
	}
	if entry.MimeType != "" {
		c.Set(fiber.HeaderContentType, entry.MimeType)
	}
	if entry.Name != "" {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", entry.Name))
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(entry.Data)
}

// Export handles GET /export.
// @Summary Export the tour
// @Description Zip with config.json, the player and every locally held asset. Assets that could not be read are listed in X-Export-Warnings.
// @Tags bundle
// @Produce application/zip
// @Success 200 {file} binary "Bundle zip"
// @Router /export [get]
func (h *EditorHandler) Export(c *fiber.Ctx) error {
	var buf bytes.Buffer
	warnings, err := h.Service.ExportZip(c.UserContext(), &buf)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="vr-tour.zip"`)
	c.Set("X-Export-Warnings", strconv.Itoa(len(warnings)))
	return c.Send(buf.Bytes())
}

// Import handles POST /import.
// @Summary Import a tour bundle
// @Description Replaces the current tour with the bundle. A bundle that cannot be read leaves the tour unchanged.
// @Tags bundle
// @Accept multipart/form-data
// @Produce json
// @Param bundle formData file true "Bundle zip"
// @Success 200 {object} bundle.ImportReport
// @Failure 400 {object} map[string]interface{} "Invalid bundle"
// @Router /import [post]
func (h *EditorHandler) Import(c *fiber.Ctx) error {
	fh, err := c.FormFile("bundle")
	if err != nil {
		return h.badRequest(c, "failed to read file: "+err.Error())
	}
	up, err := readUpload(fh)
	if err != nil {
		return h.fail(c, err)
	}
	report, err := h.Service.ImportZip(c.UserContext(), up.Data)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// ClearAll handles POST /clear.
// @Summary Start over
// @Description Deletes every stored asset and resets the tour to one empty scene
// @Tags editor
// @Produce json
// @Success 200 {object} map[string]interface{} "Whether every store was cleared"
// @Router /clear [post]
func (h *EditorHandler) ClearAll(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cleared": h.Service.ClearAll(c.UserContext())})
}
