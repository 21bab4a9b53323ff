package handlers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/repository"
	"tour-service/internal/services"
)

const FileNotFoundError = "File not found"

// SubmissionHandler serves project submission and the admin endpoints for
// hosting submitted tours.
type SubmissionHandler struct {
	Service *services.SubmissionService
	logger  *zap.Logger
}

func NewSubmissionHandler(service *services.SubmissionService, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{Service: service, logger: logging.OrNop(logger)}
}

// RegisterRoutes mounts the submission endpoints on r.
func (h *SubmissionHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/submit-project", h.Submit)

	admin := r.Group("/admin")
	admin.Get("/submissions", h.List)
	admin.Get("/download/:filename", h.Download)
	admin.Delete("/delete/:filename", h.Delete)
	admin.Post("/host/:filename", h.Host)
	admin.Post("/unhost/:filename", h.Unhost)
	admin.Get("/backup-all", h.Backup)
	admin.Post("/restore-backup", h.Restore)
}

func (h *SubmissionHandler) reply(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
}

// Submit handles POST /submit-project.
// @Summary Submit a tour project
// @Tags submissions
// @Accept multipart/form-data
// @Produce json
// @Param project formData file true "Exported tour zip"
// @Param studentName formData string true "Student name"
// @Param projectName formData string false "Project name"
// @Success 200 {object} map[string]interface{} "success, message and fileName"
// @Failure 400 {object} map[string]interface{} "Missing file or name"
// @Router /submit-project [post]
func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	fh, err := c.FormFile("project")
	if err != nil {
		return h.reply(c, fiber.StatusBadRequest, services.ErrInvalidSubmission.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return h.reply(c, fiber.StatusInternalServerError, err.Error())
	}
	defer f.Close()

	sub, err := h.Service.Submit(c.UserContext(), c.FormValue("studentName"), c.FormValue("projectName"), f, fh.Size)
	if errors.Is(err, services.ErrInvalidSubmission) {
		return h.reply(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.logger.Error("submission failed", zap.Error(err))
		return h.reply(c, fiber.StatusInternalServerError, "Error saving project: "+err.Error())
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Project submitted successfully!",
		"fileName": sub.FileName,
	})
}

// List handles GET /admin/submissions.
// @Summary List submissions
// @Tags admin
// @Produce json
// @Success 200 {array} models.Submission
// @Router /admin/submissions [get]
func (h *SubmissionHandler) List(c *fiber.Ctx) error {
	subs, err := h.Service.List(c.UserContext())
	if err != nil {
		h.logger.Error("listing submissions failed", zap.Error(err))
		return h.reply(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(subs)
}

// Download handles GET /admin/download/:filename.
// @Summary Download a submitted zip
// @Tags admin
// @Produce application/zip
// @Param filename path string true "Submission file name"
// @Success 200 {file} binary "Project zip"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /admin/download/{filename} [get]
func (h *SubmissionHandler) Download(c *fiber.Ctx) error {
	name := c.Params("filename")
	rc, err := h.Service.Open(c.UserContext(), name)
	if errors.Is(err, services.ErrArchiveNotFound) || errors.Is(err, services.ErrInvalidFileName) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": FileNotFoundError})
	}
	if err != nil {
		h.logger.Error("download failed", zap.String("file", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Download failed"})
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	// fasthttp closes the reader once the body is sent
	return c.SendStream(rc)
}

// Delete handles DELETE /admin/delete/:filename.
// @Summary Delete a submission
// @Description Removes the zip, the hosted site and the log entry
// @Tags admin
// @Produce json
// @Param filename path string true "Submission file name"
// @Success 200 {object} map[string]interface{} "success and message"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /admin/delete/{filename} [delete]
func (h *SubmissionHandler) Delete(c *fiber.Ctx) error {
	name := c.Params("filename")
	err := h.Service.Delete(c.UserContext(), name)
	if errors.Is(err, repository.ErrSubmissionNotFound) || errors.Is(err, services.ErrInvalidFileName) {
		return h.reply(c, fiber.StatusNotFound, FileNotFoundError)
	}
	if err != nil {
		h.logger.Error("delete failed", zap.String("file", name), zap.Error(err))
		return h.reply(c, fiber.StatusInternalServerError, "Error deleting project: "+err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "message": "Project and hosted files deleted successfully"})
}

// HostRequest names the folder a submission is published under.
type HostRequest struct {
	URLPath string `json:"urlPath" form:"urlPath"`
}

// Host handles POST /admin/host/:filename.
// @Summary Host a submission
// @Description Extracts the zip to /hosted/{urlPath}/ and records the hosted URL
// @Tags admin
// @Accept json
// @Produce json
// @Param filename path string true "Submission file name"
// @Param request body HostRequest true "Folder name"
// @Success 200 {object} map[string]interface{} "success, message, hostedUrl and urlPath"
// @Failure 400 {object} map[string]interface{} "Invalid URL path"
// @Failure 404 {object} map[string]interface{} "Project file not found"
// @Router /admin/host/{filename} [post]
func (h *SubmissionHandler) Host(c *fiber.Ctx) error {
	var req HostRequest
	if err := c.BodyParser(&req); err != nil {
		return h.reply(c, fiber.StatusBadRequest, services.ErrInvalidURLPath.Error())
	}
	name := c.Params("filename")
	sub, err := h.Service.Host(c.UserContext(), name, req.URLPath)
	switch {
	case errors.Is(err, services.ErrInvalidURLPath):
		return h.reply(c, fiber.StatusBadRequest, services.ErrInvalidURLPath.Error())
	case errors.Is(err, services.ErrArchiveNotFound), errors.Is(err, services.ErrInvalidFileName):
		return h.reply(c, fiber.StatusNotFound, "Project file not found")
	case err != nil:
		h.logger.Error("hosting failed", zap.String("file", name), zap.Error(err))
		return h.reply(c, fiber.StatusInternalServerError, "Error hosting project: "+err.Error())
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Project hosted successfully!",
		"hostedUrl": c.BaseURL() + sub.HostedURL,
		"urlPath":   sub.HostedPath,
	})
}

// Unhost handles POST /admin/unhost/:filename.
// @Summary Stop hosting a submission
// @Tags admin
// @Produce json
// @Param filename path string true "Submission file name"
// @Success 200 {object} map[string]interface{} "success and message"
// @Failure 404 {object} map[string]interface{} "Project is not currently hosted"
// @Router /admin/unhost/{filename} [post]
func (h *SubmissionHandler) Unhost(c *fiber.Ctx) error {
	name := c.Params("filename")
	err := h.Service.Unhost(c.UserContext(), name)
	if errors.Is(err, services.ErrNotHosted) || errors.Is(err, services.ErrInvalidFileName) {
		return h.reply(c, fiber.StatusNotFound, services.ErrNotHosted.Error())
	}
	if err != nil {
		h.logger.Error("unhosting failed", zap.String("file", name), zap.Error(err))
		return h.reply(c, fiber.StatusInternalServerError, "Error unhosting project: "+err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "message": "Project unhosted successfully!"})
}

// Backup handles GET /admin/backup-all.
// @Summary Download a backup of every submission
// @Description Zip of all submitted archives, the submission log and every hosted site
// @Tags admin
// @Produce application/zip
// @Success 200 {file} binary "Backup zip"
// @Router /admin/backup-all [get]
func (h *SubmissionHandler) Backup(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.Service.Backup(c.UserContext(), &buf); err != nil {
		h.logger.Error("backup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Backup failed"})
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="vr-projects-backup-%d.zip"`, time.Now().UnixMilli()))
	return c.Send(buf.Bytes())
}

// Restore handles POST /admin/restore-backup.
// @Summary Restore a backup
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param backup formData file true "Backup zip"
// @Success 200 {object} map[string]interface{} "success, message and counts"
// @Failure 400 {object} map[string]interface{} "No backup file provided"
// @Router /admin/restore-backup [post]
func (h *SubmissionHandler) Restore(c *fiber.Ctx) error {
	fh, err := c.FormFile("backup")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No backup file provided"})
	}
	tmpDir, err := os.MkdirTemp("", "restore-upload-*")
	if err != nil {
		return h.reply(c, fiber.StatusInternalServerError, err.Error())
	}
	defer os.RemoveAll(tmpDir)

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = ".zip"
	}
	local := filepath.Join(tmpDir, "backup"+ext)
	if err := c.SaveFile(fh, local); err != nil {
		return h.reply(c, fiber.StatusInternalServerError, err.Error())
	}

	report, err := h.Service.Restore(c.UserContext(), local)
	if err != nil {
		h.logger.Error("restore failed", zap.Error(err))
		return h.reply(c, fiber.StatusInternalServerError, "Failed to restore backup: "+err.Error())
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Backup restored successfully!",
		"archives":    report.Archives,
		"submissions": report.Submissions,
		"hostedSites": report.HostedSites,
	})
}
