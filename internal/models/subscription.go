package models

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription mirrors the Stripe subscription for a user. It is written
// only by the Stripe webhook handler; everything else reads it.
type Subscription struct {
	BaseModel
	UserID               uuid.UUID          `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	StripeSubscriptionID string             `json:"-" gorm:"type:varchar(255);uniqueIndex;not null"`
	StripeCustomerID     string             `json:"-" gorm:"type:varchar(255);not null;index"`
	StripePriceID        string             `json:"stripePriceID" gorm:"type:varchar(255);not null"`
	Status               SubscriptionStatus `json:"status" gorm:"type:varchar(20);not null"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool               `json:"cancelAtPeriodEnd" gorm:"not null;default:false"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
