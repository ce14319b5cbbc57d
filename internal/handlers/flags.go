package handlers

import (
	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// FlagsHandler is the end-user side of feature flags: effective values only,
// no knowledge of who set them.
type FlagsHandler struct {
	Flags *services.FlagService
}

func NewFlagsHandler(flags *services.FlagService) *FlagsHandler {
	return &FlagsHandler{Flags: flags}
}

// Resolve returns the effective value of one flag for the caller. Unknown
// flags resolve to false instead of 404 so the client never breaks on a flag
// that was deleted underneath it.
func (h *FlagsHandler) Resolve(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	name := c.Params("name")
	if !isValidFlagName(name) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid flag name")
	}

	enabled := h.Flags.Resolve(name, user.ID)
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"name":    name,
		"enabled": enabled,
	})
}

// ResolveAll returns every flag's effective value for the caller.
func (h *FlagsHandler) ResolveAll(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	resolved, err := h.Flags.ResolveAll(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed resolving flags")
	}

	result := make(map[string]bool, len(resolved))
	for _, r := range resolved {
		result[r.Flag.Name] = r.UserEnabled
	}
	return utils.Success(c, fiber.StatusOK, result)
}
