package handlers

import (
	"errors"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminOverridesHandler struct {
	DB    *gorm.DB
	Audit *services.AdminAuditService
}

func NewAdminOverridesHandler(db *gorm.DB, audit *services.AdminAuditService) *AdminOverridesHandler {
	return &AdminOverridesHandler{DB: db, Audit: audit}
}

type overrideView struct {
	models.UserFeatureOverride
	UserEmail string `json:"userEmail"`
	FlagName  string `json:"flagName"`
}

func (h *AdminOverridesHandler) List(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	query := h.DB.Model(&models.UserFeatureOverride{})
	if raw := c.Query("user_id"); raw != "" {
		userID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid user_id")
		}
		query = query.Where("user_id = ?", userID)
	}
	if raw := c.Query("feature_flag_id"); raw != "" {
		flagID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid feature_flag_id")
		}
		query = query.Where("feature_flag_id = ?", flagID)
	}

	var overrides []models.UserFeatureOverride
	if err := query.Order("created_at DESC").Find(&overrides).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing overrides")
	}

	result := make([]overrideView, 0, len(overrides))
	for _, o := range overrides {
		view := overrideView{UserFeatureOverride: o}
		var user models.User
		if err := h.DB.Select("email").First(&user, "id = ?", o.UserID).Error; err == nil {
			view.UserEmail = user.Email
		}
		var flag models.FeatureFlag
		if err := h.DB.Select("name").First(&flag, "id = ?", o.FeatureFlagID).Error; err == nil {
			view.FlagName = flag.Name
		}
		result = append(result, view)
	}

	return utils.Success(c, fiber.StatusOK, result)
}

type upsertOverrideRequest struct {
	UserID        string `json:"user_id"`
	FeatureFlagID string `json:"feature_flag_id"`
	Enabled       bool   `json:"enabled"`
}

func (h *AdminOverridesHandler) Upsert(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	var req upsertOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	userID, err := parseUUID(req.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user_id")
	}
	flagID, err := parseUUID(req.FeatureFlagID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid feature_flag_id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}
	var flag models.FeatureFlag
	if err := h.DB.First(&flag, "id = ?", flagID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "feature flag not found")
	}

	var override models.UserFeatureOverride
	created := false
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&override, "user_id = ? AND feature_flag_id = ?", userID, flagID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			override = models.UserFeatureOverride{
				UserID:        userID,
				FeatureFlagID: flagID,
				Enabled:       req.Enabled,
			}
			if err := tx.Create(&override).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&override).Update("enabled", req.Enabled).Error; err != nil {
				return err
			}
			override.Enabled = req.Enabled
		}

		return h.Audit.LogTx(tx, admin, services.OverrideUpsertedDetails{
			UserEmail: user.Email,
			FlagName:  flag.Name,
			Enabled:   req.Enabled,
			Created:   created,
		}, &override.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving override")
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return utils.Success(c, status, override)
}

type updateOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminOverridesHandler) Update(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	overrideID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid override id")
	}

	var req updateOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	override, user, flag, ferr := h.loadOverride(c, overrideID)
	if ferr != nil {
		return ferr
	}

	from := override.Enabled
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(override).Update("enabled", req.Enabled).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.OverrideUpdatedDetails{
			UserEmail: user.Email,
			FlagName:  flag.Name,
			From:      from,
			To:        req.Enabled,
		}, &override.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating override")
	}

	override.Enabled = req.Enabled
	return utils.Success(c, fiber.StatusOK, override)
}

func (h *AdminOverridesHandler) Delete(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	overrideID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid override id")
	}

	override, user, flag, ferr := h.loadOverride(c, overrideID)
	if ferr != nil {
		return ferr
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.UserFeatureOverride{}, "id = ?", override.ID).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.OverrideDeletedDetails{
			UserEmail: user.Email,
			FlagName:  flag.Name,
		}, &override.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting override")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "override deleted"})
}

func (h *AdminOverridesHandler) loadOverride(c *fiber.Ctx, id uuid.UUID) (*models.UserFeatureOverride, *models.User, *models.FeatureFlag, error) {
	var override models.UserFeatureOverride
	if err := h.DB.First(&override, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, utils.Error(c, fiber.StatusNotFound, "override not found")
		}
		return nil, nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed fetching override")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", override.UserID).Error; err != nil {
		return nil, nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed fetching override user")
	}
	var flag models.FeatureFlag
	if err := h.DB.First(&flag, "id = ?", override.FeatureFlagID).Error; err != nil {
		return nil, nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed fetching override flag")
	}
	return &override, &user, &flag, nil
}
