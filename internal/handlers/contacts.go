package handlers

import (
	"strings"
	"time"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ContactsHandler struct {
	DB *gorm.DB
}

func NewContactsHandler(db *gorm.DB) *ContactsHandler {
	return &ContactsHandler{DB: db}
}

// loadOwned fetches a contact scoped to the caller. A contact belonging to
// another user is indistinguishable from a missing one.
func (h *ContactsHandler) loadOwned(c *fiber.Ctx, ownerID interface{}) (*models.Contact, error) {
	contactID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid contact id")
	}

	var contact models.Contact
	if err := h.DB.First(&contact, "id = ? AND owner_id = ?", contactID, ownerID).Error; err != nil {
		return nil, utils.Error(c, fiber.StatusNotFound, "contact not found")
	}
	return &contact, nil
}

func (h *ContactsHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.Contact{}).Where("owner_id = ?", user.ID)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company) LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting contacts")
	}

	var contacts []models.Contact
	if err := utils.ApplyPagination(query.Order("last_touch_at DESC NULLS LAST, created_at DESC"), p).Find(&contacts).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing contacts")
	}

	return utils.Paginated(c, contacts, p.Page, p.Limit, total)
}

func (h *ContactsHandler) Get(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	contact, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}
	return utils.Success(c, fiber.StatusOK, contact)
}

type contactRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       *string `json:"email"`
	Company     *string `json:"company"`
	Title       *string `json:"title"`
	LinkedInURL *string `json:"linkedin_url"`
	Notes       *string `json:"notes"`
}

func (h *ContactsHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req contactRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		return utils.Error(c, fiber.StatusBadRequest, "first_name is required")
	}

	contact := models.Contact{
		OwnerID:     user.ID,
		FirstName:   req.FirstName,
		LastName:    strings.TrimSpace(req.LastName),
		Email:       req.Email,
		Company:     req.Company,
		Title:       req.Title,
		LinkedInURL: req.LinkedInURL,
		Notes:       req.Notes,
	}
	if err := h.DB.Create(&contact).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create contact")
	}

	return utils.Success(c, fiber.StatusCreated, contact)
}

func (h *ContactsHandler) Update(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	contact, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	var req contactRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.FirstName); name != "" {
		updates["first_name"] = name
	}
	if req.LastName != "" {
		updates["last_name"] = strings.TrimSpace(req.LastName)
	}
	if req.Email != nil {
		updates["email"] = req.Email
	}
	if req.Company != nil {
		updates["company"] = req.Company
	}
	if req.Title != nil {
		updates["title"] = req.Title
	}
	if req.LinkedInURL != nil {
		updates["linked_in_url"] = req.LinkedInURL
	}
	if req.Notes != nil {
		updates["notes"] = req.Notes
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no updatable fields provided")
	}

	if err := h.DB.Model(contact).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update contact")
	}
	return utils.Success(c, fiber.StatusOK, contact)
}

func (h *ContactsHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	contact, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact_id = ?", contact.ID).Delete(&models.GoalContact{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Artifact{}).Where("contact_id = ?", contact.ID).
			Update("contact_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(contact).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to delete contact")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

// Touch records an interaction, bumping last_touch_at.
func (h *ContactsHandler) Touch(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	contact, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	now := time.Now().UTC()
	if err := h.DB.Model(contact).Update("last_touch_at", now).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update contact")
	}
	contact.LastTouchAt = &now
	return utils.Success(c, fiber.StatusOK, contact)
}
