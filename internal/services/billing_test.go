package services

import (
	"testing"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/stretchr/testify/require"
)

func TestPortalURLWithoutCustomer(t *testing.T) {
	db := openTestDB(t)
	svc := NewBillingService(db, config.StripeConfig{}, nil)
	user := seedUser(t, db, "user@example.com")

	_, err := svc.PortalURL(user)
	require.ErrorIs(t, err, ErrNoStripeCustomer)

	empty := ""
	user.StripeCustomerID = &empty
	_, err = svc.PortalURL(user)
	require.ErrorIs(t, err, ErrNoStripeCustomer)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	db := openTestDB(t)
	svc := NewBillingService(db, config.StripeConfig{WebhookSecret: "whsec_test"}, nil)

	err := svc.HandleWebhook([]byte(`{"type":"customer.subscription.updated"}`), "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrWebhookSignature)

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&count).Error)
	require.Zero(t, count)
}
