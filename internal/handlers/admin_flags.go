package handlers

import (
	"errors"
	"strings"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AdminFlagsHandler struct {
	DB    *gorm.DB
	Flags *services.FlagService
	Audit *services.AdminAuditService
}

func NewAdminFlagsHandler(db *gorm.DB, flags *services.FlagService, audit *services.AdminAuditService) *AdminFlagsHandler {
	return &AdminFlagsHandler{DB: db, Flags: flags, Audit: audit}
}

type flagWithOverrideCount struct {
	models.FeatureFlag
	OverrideCount int64 `json:"overrideCount"`
}

func (h *AdminFlagsHandler) List(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	var flags []models.FeatureFlag
	if err := h.DB.Order("name ASC").Find(&flags).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing feature flags")
	}

	result := make([]flagWithOverrideCount, 0, len(flags))
	for _, flag := range flags {
		var count int64
		if err := h.DB.Model(&models.UserFeatureOverride{}).
			Where("feature_flag_id = ?", flag.ID).
			Count(&count).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed counting overrides")
		}
		result = append(result, flagWithOverrideCount{FeatureFlag: flag, OverrideCount: count})
	}

	return utils.Success(c, fiber.StatusOK, result)
}

type createFlagRequest struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	EnabledGlobally bool    `json:"enabled_globally"`
}

func (h *AdminFlagsHandler) Create(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	var req createFlagRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if !isValidFlagName(name) {
		return utils.Error(c, fiber.StatusBadRequest, "name must match ^[a-z0-9_-]+$")
	}

	var existing models.FeatureFlag
	if err := h.DB.First(&existing, "name = ?", name).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "a flag with this name already exists")
	}

	flag := models.FeatureFlag{
		Name:            name,
		Description:     req.Description,
		EnabledGlobally: req.EnabledGlobally,
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&flag).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.FlagCreatedDetails{
			Name:            flag.Name,
			Description:     flag.Description,
			EnabledGlobally: flag.EnabledGlobally,
		}, &flag.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating feature flag")
	}

	logger.InfoWithUser(admin.ID.String(), "feature_flag_created", map[string]interface{}{
		"flag_name": flag.Name,
	})
	return utils.Success(c, fiber.StatusCreated, flag)
}

func (h *AdminFlagsHandler) Get(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	flagID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid flag id")
	}

	flag, err := h.Flags.GetFlag(flagID)
	if err != nil {
		if errors.Is(err, services.ErrFlagNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "feature flag not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching feature flag")
	}

	return utils.Success(c, fiber.StatusOK, flag)
}

type updateFlagRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	EnabledGlobally *bool   `json:"enabled_globally"`
}

func (h *AdminFlagsHandler) Update(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	flagID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid flag id")
	}

	var req updateFlagRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	flag, err := h.Flags.GetFlag(flagID)
	if err != nil {
		if errors.Is(err, services.ErrFlagNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "feature flag not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching feature flag")
	}

	before := map[string]interface{}{
		"name":             flag.Name,
		"enabled_globally": flag.EnabledGlobally,
	}
	if flag.Description != nil {
		before["description"] = *flag.Description
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if !isValidFlagName(name) {
			return utils.Error(c, fiber.StatusBadRequest, "name must match ^[a-z0-9_-]+$")
		}
		if name != flag.Name {
			var existing models.FeatureFlag
			if err := h.DB.First(&existing, "name = ?", name).Error; err == nil {
				return utils.Error(c, fiber.StatusConflict, "a flag with this name already exists")
			}
			updates["name"] = name
		}
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.EnabledGlobally != nil {
		updates["enabled_globally"] = *req.EnabledGlobally
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FeatureFlag{}).Where("id = ?", flag.ID).Updates(updates).Error; err != nil {
			return err
		}
		after := map[string]interface{}{}
		for k, v := range before {
			after[k] = v
		}
		for k, v := range updates {
			after[k] = v
		}
		return h.Audit.LogTx(tx, admin, services.FlagUpdatedDetails{
			Name:   flag.Name,
			Before: before,
			After:  after,
		}, &flag.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating feature flag")
	}

	fresh, err := h.Flags.GetFlag(flag.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated flag")
	}
	return utils.Success(c, fiber.StatusOK, fresh)
}

func (h *AdminFlagsHandler) Toggle(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	flagID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid flag id")
	}

	flag, err := h.Flags.GetFlag(flagID)
	if err != nil {
		if errors.Is(err, services.ErrFlagNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "feature flag not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching feature flag")
	}

	newValue := !flag.EnabledGlobally
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FeatureFlag{}).Where("id = ?", flag.ID).
			Update("enabled_globally", newValue).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.FlagToggledDetails{
			Name: flag.Name,
			From: flag.EnabledGlobally,
			To:   newValue,
		}, &flag.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed toggling feature flag")
	}

	flag.EnabledGlobally = newValue
	return utils.Success(c, fiber.StatusOK, flag)
}

func (h *AdminFlagsHandler) Delete(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	flagID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid flag id")
	}

	flag, err := h.Flags.GetFlag(flagID)
	if err != nil {
		if errors.Is(err, services.ErrFlagNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "feature flag not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching feature flag")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		// Cascade explicitly so the override rows disappear with the flag on
		// every backend, not just ones honoring the FK constraint.
		removed := tx.Where("feature_flag_id = ?", flag.ID).Delete(&models.UserFeatureOverride{})
		if removed.Error != nil {
			return removed.Error
		}
		if err := tx.Delete(&models.FeatureFlag{}, "id = ?", flag.ID).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.FlagDeletedDetails{
			Name:             flag.Name,
			OverridesRemoved: removed.RowsAffected,
		}, &flag.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting feature flag")
	}

	logger.InfoWithUser(admin.ID.String(), "feature_flag_deleted", map[string]interface{}{
		"flag_name": flag.Name,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "feature flag deleted"})
}
