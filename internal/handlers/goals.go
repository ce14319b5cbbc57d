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

type GoalsHandler struct {
	DB *gorm.DB
}

func NewGoalsHandler(db *gorm.DB) *GoalsHandler {
	return &GoalsHandler{DB: db}
}

func (h *GoalsHandler) loadOwned(c *fiber.Ctx, ownerID interface{}) (*models.Goal, error) {
	goalID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid goal id")
	}

	var goal models.Goal
	if err := h.DB.First(&goal, "id = ? AND owner_id = ?", goalID, ownerID).Error; err != nil {
		return nil, utils.Error(c, fiber.StatusNotFound, "goal not found")
	}
	return &goal, nil
}

func (h *GoalsHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	query := h.DB.Where("owner_id = ?", user.ID)
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var goals []models.Goal
	if err := query.Order("created_at DESC").Find(&goals).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing goals")
	}
	return utils.Success(c, fiber.StatusOK, goals)
}

func (h *GoalsHandler) Get(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	goal, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	var links []models.GoalContact
	if err := h.DB.Preload("Contact").Where("goal_id = ?", goal.ID).Find(&links).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading goal contacts")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"goal":     goal,
		"contacts": links,
	})
}

type goalRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	TargetDate  *time.Time `json:"target_date"`
}

func validGoalStatus(s string) bool {
	switch models.GoalStatus(s) {
	case models.GoalStatusActive, models.GoalStatusPaused, models.GoalStatusAchieved:
		return true
	}
	return false
}

func (h *GoalsHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req goalRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}

	goal := models.Goal{
		OwnerID:     user.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.GoalStatusActive,
		TargetDate:  req.TargetDate,
	}
	if req.Status != nil {
		if !validGoalStatus(*req.Status) {
			return utils.Error(c, fiber.StatusBadRequest, "status must be active, paused, or achieved")
		}
		goal.Status = models.GoalStatus(*req.Status)
	}

	if err := h.DB.Create(&goal).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create goal")
	}
	return utils.Success(c, fiber.StatusCreated, goal)
}

func (h *GoalsHandler) Update(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	goal, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	var req goalRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(req.Title); title != "" {
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = req.Description
	}
	if req.Status != nil {
		if !validGoalStatus(*req.Status) {
			return utils.Error(c, fiber.StatusBadRequest, "status must be active, paused, or achieved")
		}
		updates["status"] = *req.Status
	}
	if req.TargetDate != nil {
		updates["target_date"] = req.TargetDate
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no updatable fields provided")
	}

	if err := h.DB.Model(goal).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update goal")
	}
	return utils.Success(c, fiber.StatusOK, goal)
}

func (h *GoalsHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	goal, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&models.GoalContact{}).Error; err != nil {
			return err
		}
		return tx.Delete(goal).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to delete goal")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

type linkContactRequest struct {
	ContactID string  `json:"contact_id"`
	Relevance *string `json:"relevance"`
}

// LinkContact attaches one of the caller's contacts to a goal. Linking the
// same pair twice updates the relevance note instead of erroring.
func (h *GoalsHandler) LinkContact(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	goal, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	var req linkContactRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	contactID, err := parseUUID(req.ContactID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid contact_id")
	}

	var contact models.Contact
	if err := h.DB.First(&contact, "id = ? AND owner_id = ?", contactID, user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "contact not found")
	}

	var link models.GoalContact
	err = h.DB.First(&link, "goal_id = ? AND contact_id = ?", goal.ID, contact.ID).Error
	if err == nil {
		if req.Relevance != nil {
			if err := h.DB.Model(&link).Update("relevance", req.Relevance).Error; err != nil {
				return utils.Error(c, fiber.StatusInternalServerError, "failed to update link")
			}
			link.Relevance = req.Relevance
		}
		return utils.Success(c, fiber.StatusOK, link)
	}

	link = models.GoalContact{
		GoalID:    goal.ID,
		ContactID: contact.ID,
		Relevance: req.Relevance,
	}
	if err := h.DB.Create(&link).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to link contact")
	}
	return utils.Success(c, fiber.StatusCreated, link)
}

func (h *GoalsHandler) UnlinkContact(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	goal, failure := h.loadOwned(c, user.ID)
	if failure != nil {
		return failure
	}

	contactID, err := parseUUID(c.Params("contactID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid contact id")
	}

	result := h.DB.Where("goal_id = ? AND contact_id = ?", goal.ID, contactID).
		Delete(&models.GoalContact{})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to unlink contact")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "link not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
