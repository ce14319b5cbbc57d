package models

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingState tracks a user's position in the first-run wizard. One row
// per user, created lazily on the first onboarding read.
type OnboardingState struct {
	BaseModel
	UserID           uuid.UUID `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	CurrentScreen    int       `json:"currentScreen" gorm:"not null;default:1"`
	CompletedScreens []int     `json:"completedScreens" gorm:"type:jsonb;serializer:json"`
	IsComplete       bool      `json:"isComplete" gorm:"not null;default:false"`

	StartedAt      time.Time  `json:"startedAt" gorm:"not null"`
	LastActivityAt time.Time  `json:"lastActivityAt" gorm:"not null"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`

	// Artifacts captured along the way, referenced by id.
	ChallengeVoiceMemoID *uuid.UUID          `json:"challengeVoiceMemoID,omitempty" gorm:"type:uuid"`
	GoalVoiceMemoID      *uuid.UUID          `json:"goalVoiceMemoID,omitempty" gorm:"type:uuid"`
	ProfileVoiceMemoID   *uuid.UUID          `json:"profileVoiceMemoID,omitempty" gorm:"type:uuid"`
	ImportedGoalContacts []GoalContactImport `json:"importedGoalContacts,omitempty" gorm:"type:jsonb;serializer:json"`
	LinkedInConnected    bool                `json:"linkedinConnected" gorm:"not null;default:false"`
	GmailConnected       bool                `json:"gmailConnected" gorm:"not null;default:false"`
	CalendarConnected    bool                `json:"calendarConnected" gorm:"not null;default:false"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// GoalContactImport records one imported goal-contact URL and its outcome.
type GoalContactImport struct {
	URL       string     `json:"url"`
	Status    string     `json:"status"`
	ContactID *uuid.UUID `json:"contactID,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (OnboardingState) TableName() string {
	return "onboarding_state"
}

// CompletionRate is derived, never stored: completed count over total screens.
func (o *OnboardingState) CompletionRate(totalScreens int) float64 {
	if totalScreens <= 0 {
		return 0
	}
	return float64(len(o.CompletedScreens)) / float64(totalScreens)
}

func (o *OnboardingState) HasCompleted(screen int) bool {
	for _, s := range o.CompletedScreens {
		if s == screen {
			return true
		}
	}
	return false
}
