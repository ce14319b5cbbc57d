package handlers

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AdminAuditLogHandler struct {
	DB *gorm.DB
}

func NewAdminAuditLogHandler(db *gorm.DB) *AdminAuditLogHandler {
	return &AdminAuditLogHandler{DB: db}
}

func (h *AdminAuditLogHandler) List(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.AdminAuditLog{})
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		query = query.Where("action = ?", action)
	}
	if raw := strings.TrimSpace(c.Query("admin_user_id")); raw != "" {
		adminID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid admin_user_id")
		}
		query = query.Where("admin_user_id = ?", adminID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting audit entries")
	}

	var entries []models.AdminAuditLog
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&entries).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing audit entries")
	}

	return utils.Paginated(c, entries, p.Page, p.Limit, total)
}

func (h *AdminAuditLogHandler) Export(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", "csv")))
	if format != "csv" && format != "json" {
		return utils.Error(c, fiber.StatusBadRequest, "format must be csv or json")
	}

	var entries []models.AdminAuditLog
	if err := h.DB.Order("created_at DESC").Limit(10000).Find(&entries).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading audit entries")
	}

	if format == "json" {
		c.Set("Content-Type", "application/json")
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "admin-audit-log.json"))
		return c.JSON(fiber.Map{"success": true, "data": entries})
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "admin-audit-log.csv"))

	writer := csv.NewWriter(c.Response().BodyWriter())
	_ = writer.Write([]string{"Timestamp", "Admin", "Action", "Resource Type", "Resource ID", "IP Address", "Details"})

	for _, entry := range entries {
		resourceID := ""
		if entry.ResourceID != nil {
			resourceID = entry.ResourceID.String()
		}

		detailStr := ""
		if entry.Details != nil {
			parts := make([]string, 0, len(entry.Details))
			for k, v := range entry.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			detailStr = strings.Join(parts, "; ")
		}

		_ = writer.Write([]string{
			entry.CreatedAt.Format(time.RFC3339),
			entry.AdminUserID.String(),
			entry.Action,
			entry.ResourceType,
			resourceID,
			entry.IPAddress,
			detailStr,
		})
	}

	writer.Flush()
	return nil
}
