package handlers

import (
	"regexp"
	"strings"

	"github.com/cultivatehq/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var flagNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func isValidFlagName(name string) bool {
	return flagNamePattern.MatchString(name)
}

func requestContext(c *fiber.Ctx) services.RequestContext {
	return services.RequestContext{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}
