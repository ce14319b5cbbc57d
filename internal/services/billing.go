package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/stripe/stripe-go/v79"
	bpsession "github.com/stripe/stripe-go/v79/billingportal/session"
	csession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoStripeCustomer = errors.New("user has no billing account yet")
	ErrWebhookSignature = errors.New("webhook signature verification failed")
)

// BillingService wraps the Stripe API: checkout and portal session creation
// plus the webhook that keeps the local subscriptions table in sync.
type BillingService struct {
	DB       *gorm.DB
	Cfg      config.StripeConfig
	Notifier *Notifier
}

func NewBillingService(db *gorm.DB, cfg config.StripeConfig, notifier *Notifier) *BillingService {
	stripe.Key = cfg.SecretKey
	return &BillingService{DB: db, Cfg: cfg, Notifier: notifier}
}

// EnsureCustomer returns the user's Stripe customer id, creating the
// customer on first use and persisting the id on the user row.
func (s *BillingService) EnsureCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FirstName + " " + user.LastName),
	}
	params.AddMetadata("user_id", user.ID.String())

	cust, err := customer.New(params)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "stripe_customer_create_failed", err, nil)
		return "", err
	}

	if err := s.DB.Model(user).Update("stripe_customer_id", cust.ID).Error; err != nil {
		return "", err
	}
	user.StripeCustomerID = &cust.ID
	return cust.ID, nil
}

// CheckoutURL creates a subscription checkout session for the given price.
func (s *BillingService) CheckoutURL(user *models.User, priceID string) (string, error) {
	customerID, err := s.EnsureCustomer(user)
	if err != nil {
		return "", err
	}

	sess, err := csession.New(&stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.Cfg.CheckoutOK),
		CancelURL:  stripe.String(s.Cfg.CheckoutBack),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	})
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "stripe_checkout_create_failed", err, map[string]interface{}{
			"price_id": priceID,
		})
		return "", err
	}
	return sess.URL, nil
}

// PortalURL creates a billing-portal session. Unlike checkout this never
// creates a customer: a user without one has nothing to manage.
func (s *BillingService) PortalURL(user *models.User) (string, error) {
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoStripeCustomer
	}

	sess, err := bpsession.New(&stripe.BillingPortalSessionParams{
		Customer:  user.StripeCustomerID,
		ReturnURL: stripe.String(s.Cfg.PortalReturn),
	})
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "stripe_portal_create_failed", err, nil)
		return "", err
	}
	return sess.URL, nil
}

// HandleWebhook verifies the event signature and applies subscription
// lifecycle events to the local table. Unknown event types are ignored.
func (s *BillingService) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.Cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return s.applySubscriptionEvent(event, false)
	case "customer.subscription.deleted":
		return s.applySubscriptionEvent(event, true)
	default:
		logger.Info("stripe_webhook_ignored", map[string]interface{}{
			"event_type": string(event.Type),
		})
		return nil
	}
}

func (s *BillingService) applySubscriptionEvent(event stripe.Event, deleted bool) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed decoding subscription event: %w", err)
	}
	if sub.Customer == nil {
		return errors.New("subscription event without customer")
	}

	var user models.User
	if err := s.DB.First(&user, "stripe_customer_id = ?", sub.Customer.ID).Error; err != nil {
		logger.Warn("stripe_webhook_unknown_customer", map[string]interface{}{
			"customer_id": sub.Customer.ID,
			"event_type":  string(event.Type),
		})
		// Not our customer; acknowledge so Stripe stops retrying.
		return nil
	}

	status := models.SubscriptionStatus(sub.Status)
	if deleted {
		status = models.SubscriptionStatusCanceled
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	row := models.Subscription{
		UserID:               user.ID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.Customer.ID,
		StripePriceID:        priceID,
		Status:               status,
		CurrentPeriodEnd:     periodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_price_id", "status", "current_period_end", "cancel_at_period_end", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	s.Notifier.Publish(user.ID, ResourceSubscription)
	logger.InfoWithUser(user.ID.String(), "subscription_synced", map[string]interface{}{
		"status":     string(status),
		"event_type": string(event.Type),
	})
	return nil
}
