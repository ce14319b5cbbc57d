package handlers

import (
	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type LinkedInHandler struct {
	OAuth *services.OAuthService
	Cfg   *config.Config
}

func NewLinkedInHandler(oauth *services.OAuthService, cfg *config.Config) *LinkedInHandler {
	return &LinkedInHandler{OAuth: oauth, Cfg: cfg}
}

func (h *LinkedInHandler) Auth(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	url, err := h.OAuth.LinkedInAuthURL(user.ID, oauthSource(c))
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "linkedin integration is not configured")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

func (h *LinkedInHandler) Callback(c *fiber.Ctx) error {
	frontend := h.Cfg.Server.FrontendURL

	if errCode := c.Query("error"); errCode != "" {
		return c.Redirect(callbackRedirect(frontend, "settings", "error=access_denied"))
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Redirect(callbackRedirect(frontend, "settings", "error=invalid_callback"))
	}

	result, err := h.OAuth.HandleLinkedInCallback(c.Context(), code, state)
	if err != nil {
		return c.Redirect(callbackRedirect(frontend, "settings", "error=connection_failed"))
	}

	return c.Redirect(callbackRedirect(frontend, result.Source, "connected=linkedin"))
}
