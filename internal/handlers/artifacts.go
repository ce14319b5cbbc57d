package handlers

import (
	"strings"
	"time"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/storage"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ArtifactsHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewArtifactsHandler(db *gorm.DB, store *storage.MinIOClient) *ArtifactsHandler {
	return &ArtifactsHandler{DB: db, Storage: store}
}

func (h *ArtifactsHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.Artifact{}).Where("owner_id = ?", user.ID)
	if t := strings.TrimSpace(c.Query("type")); t != "" {
		query = query.Where("type = ?", t)
	}
	if raw := strings.TrimSpace(c.Query("contact_id")); raw != "" {
		contactID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid contact_id")
		}
		query = query.Where("contact_id = ?", contactID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting artifacts")
	}

	var artifacts []models.Artifact
	if err := utils.ApplyPagination(query.Order("occurred_at DESC"), p).Find(&artifacts).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing artifacts")
	}

	return utils.Paginated(c, artifacts, p.Page, p.Limit, total)
}

type artifactContentView struct {
	models.ArtifactContent
	DownloadURL *string `json:"downloadURL,omitempty"`
}

// Get returns an artifact with its contents. Stored media gets a short-lived
// presigned download URL.
func (h *ArtifactsHandler) Get(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	artifactID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid artifact id")
	}

	var artifact models.Artifact
	if err := h.DB.First(&artifact, "id = ? AND owner_id = ?", artifactID, user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "artifact not found")
	}

	var contents []models.ArtifactContent
	if err := h.DB.Where("artifact_id = ?", artifact.ID).Order("created_at ASC").Find(&contents).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading contents")
	}

	views := make([]artifactContentView, 0, len(contents))
	for _, content := range contents {
		view := artifactContentView{ArtifactContent: content}
		if content.StoragePath != nil {
			if url, err := h.Storage.PresignedGetURL(c.Context(), *content.StoragePath, 15*time.Minute); err == nil {
				view.DownloadURL = &url
			}
		}
		views = append(views, view)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"artifact": artifact,
		"contents": views,
	})
}
