package handlers

import (
	"strings"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type GoogleHandler struct {
	OAuth *services.OAuthService
	Cfg   *config.Config
}

func NewGoogleHandler(oauth *services.OAuthService, cfg *config.Config) *GoogleHandler {
	return &GoogleHandler{OAuth: oauth, Cfg: cfg}
}

// callbackRedirect builds the frontend URL the browser lands on after a
// provider callback. Source is where the flow started, onboarding or
// settings.
func callbackRedirect(frontendURL, source, query string) string {
	base := strings.TrimRight(frontendURL, "/")
	switch source {
	case "onboarding":
		base += "/onboarding"
	default:
		base += "/settings/integrations"
	}
	if query != "" {
		base += "?" + query
	}
	return base
}

func oauthSource(c *fiber.Ctx) string {
	source := c.Query("source", "settings")
	if source != "onboarding" {
		source = "settings"
	}
	return source
}

func (h *GoogleHandler) authURL(c *fiber.Ctx, providers ...models.IntegrationProvider) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	url, err := h.OAuth.GoogleAuthURL(user.ID, oauthSource(c), providers...)
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "google integration is not configured")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

func (h *GoogleHandler) GmailAuth(c *fiber.Ctx) error {
	return h.authURL(c, models.IntegrationProviderGmail)
}

func (h *GoogleHandler) CalendarAuth(c *fiber.Ctx) error {
	return h.authURL(c, models.IntegrationProviderCalendar)
}

func (h *GoogleHandler) CombinedAuth(c *fiber.Ctx) error {
	return h.authURL(c, models.IntegrationProviderGmail, models.IntegrationProviderCalendar)
}

// CombinedCallback lands here from Google's consent screen, so failures
// redirect back to the frontend instead of returning JSON.
func (h *GoogleHandler) CombinedCallback(c *fiber.Ctx) error {
	frontend := h.Cfg.Server.FrontendURL

	if errCode := c.Query("error"); errCode != "" {
		return c.Redirect(callbackRedirect(frontend, "settings", "error=access_denied"))
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Redirect(callbackRedirect(frontend, "settings", "error=invalid_callback"))
	}

	result, err := h.OAuth.HandleGoogleCombinedCallback(
		c.Context(), code, state,
		models.IntegrationProviderGmail, models.IntegrationProviderCalendar,
	)
	if err != nil {
		source := "settings"
		if result != nil {
			source = result.Source
		}
		return c.Redirect(callbackRedirect(frontend, source, "error=connection_failed"))
	}

	return c.Redirect(callbackRedirect(frontend, result.Source, connectedQuery(result)))
}

// connectedQuery reports which integrations were stored. A half-granted
// combined flow still counts as connected, flagged with a warning.
func connectedQuery(result *services.CombinedCallbackResult) string {
	connected := make([]string, 0, len(result.Connected))
	for _, p := range result.Connected {
		connected = append(connected, string(p))
	}
	query := "connected=" + strings.Join(connected, ",")
	if result.Partial() {
		query += "&warning=partial_connection"
	}
	return query
}
