package models

import (
	"time"

	"github.com/google/uuid"
)

type IntegrationProvider string

const (
	IntegrationProviderGmail    IntegrationProvider = "gmail"
	IntegrationProviderCalendar IntegrationProvider = "calendar"
	IntegrationProviderLinkedIn IntegrationProvider = "linkedin"
)

// UserIntegration stores the OAuth grant for one external provider. Tokens
// are AES-GCM encrypted before they reach the row.
type UserIntegration struct {
	BaseModel
	UserID       uuid.UUID           `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_user_provider"`
	Provider     IntegrationProvider `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:idx_user_provider"`
	AccessToken  string              `json:"-" gorm:"type:text;not null"`
	RefreshToken string              `json:"-" gorm:"type:text"`
	TokenExpiry  *time.Time          `json:"tokenExpiry,omitempty"`
	Scopes       string              `json:"scopes" gorm:"type:text"`
	ConnectedAt  time.Time           `json:"connectedAt" gorm:"not null"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (UserIntegration) TableName() string {
	return "user_integrations"
}
