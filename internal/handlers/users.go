package handlers

import (
	"strings"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AdminUsersHandler struct {
	DB         *gorm.DB
	Audit      *services.AdminAuditService
	Onboarding *services.OnboardingService
}

func NewAdminUsersHandler(db *gorm.DB, audit *services.AdminAuditService, onboarding *services.OnboardingService) *AdminUsersHandler {
	return &AdminUsersHandler{DB: db, Audit: audit, Onboarding: onboarding}
}

func (h *AdminUsersHandler) List(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

func (h *AdminUsersHandler) Get(c *fiber.Ctx) error {
	if _, failure := middleware.RequireAdmin(c); failure != nil {
		return failure
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type adminUpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsAdmin   *bool   `json:"is_admin"`
}

func (h *AdminUsersHandler) Update(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req adminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	updates := map[string]interface{}{}
	var fields []string
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
		fields = append(fields, "first_name")
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
		fields = append(fields, "last_name")
	}
	if req.IsAdmin != nil {
		if admin.ID == user.ID && !*req.IsAdmin {
			return utils.Error(c, fiber.StatusBadRequest, "cannot revoke your own admin access")
		}
		updates["is_admin"] = *req.IsAdmin
		fields = append(fields, "is_admin")
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no updatable fields provided")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.UserUpdatedDetails{
			UserEmail: user.Email,
			Fields:    fields,
		}, &user.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

func (h *AdminUsersHandler) Delete(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if admin.ID == userID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot delete your own account")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, owned := range []interface{}{
			&models.UserFeatureOverride{},
			&models.OnboardingState{},
			&models.UserIntegration{},
			&models.Subscription{},
		} {
			if err := tx.Where("user_id = ?", user.ID).Delete(owned).Error; err != nil {
				return err
			}
		}
		for _, owned := range []interface{}{
			&models.Contact{},
			&models.Goal{},
			&models.Artifact{},
		} {
			if err := tx.Where("owner_id = ?", user.ID).Delete(owned).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&user).Error; err != nil {
			return err
		}
		return h.Audit.LogTx(tx, admin, services.UserDeletedDetails{
			UserEmail: user.Email,
		}, &user.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to delete user")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

// ResetOnboarding wipes a user's onboarding progress. The cleared screen and
// artifact counts land in the audit row.
func (h *AdminUsersHandler) ResetOnboarding(c *fiber.Ctx) error {
	admin, failure := middleware.RequireAdmin(c)
	if failure != nil {
		return failure
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	before, err := h.Onboarding.Get(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load onboarding state")
	}
	artifacts := 0
	if before.ChallengeVoiceMemoID != nil {
		artifacts++
	}
	if before.GoalVoiceMemoID != nil {
		artifacts++
	}
	if before.ProfileVoiceMemoID != nil {
		artifacts++
	}

	var state *models.OnboardingState
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		fresh, cleared, err := h.Onboarding.ResetTx(tx, user.ID)
		if err != nil {
			return err
		}
		state = fresh
		return h.Audit.LogTx(tx, admin, services.OnboardingResetDetails{
			UserEmail:        user.Email,
			ScreensCleared:   cleared,
			ArtifactsCleared: artifacts,
		}, &user.ID, requestContext(c))
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to reset onboarding")
	}

	return utils.Success(c, fiber.StatusOK, state)
}
