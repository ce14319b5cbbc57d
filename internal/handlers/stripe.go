package handlers

import (
	"errors"
	"strings"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type StripeHandler struct {
	Billing *services.BillingService
}

func NewStripeHandler(billing *services.BillingService) *StripeHandler {
	return &StripeHandler{Billing: billing}
}

type checkoutRequest struct {
	PriceID string `json:"price_id"`
}

func (h *StripeHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.PriceID) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "price_id is required")
	}

	url, err := h.Billing.CheckoutURL(user, req.PriceID)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "checkout_session_failed", err, nil)
		return utils.Error(c, fiber.StatusServiceUnavailable, "billing is temporarily unavailable")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

func (h *StripeHandler) CreatePortalSession(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	url, err := h.Billing.PortalURL(user)
	if err != nil {
		if errors.Is(err, services.ErrNoStripeCustomer) {
			return utils.Error(c, fiber.StatusBadRequest, "no billing account yet")
		}
		logger.ErrorWithUser(user.ID.String(), "portal_session_failed", err, nil)
		return utils.Error(c, fiber.StatusServiceUnavailable, "billing is temporarily unavailable")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

// Webhook receives Stripe events. Signature verification happens inside the
// billing service; an invalid signature must 400 so Stripe stops retrying.
func (h *StripeHandler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return utils.Error(c, fiber.StatusBadRequest, "missing signature")
	}

	if err := h.Billing.HandleWebhook(c.Body(), signature); err != nil {
		if errors.Is(err, services.ErrWebhookSignature) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid signature")
		}
		logger.Error("stripe_webhook_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "webhook processing failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"received": true})
}
