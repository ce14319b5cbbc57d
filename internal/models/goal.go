package models

import (
	"time"

	"github.com/google/uuid"
)

type GoalStatus string

const (
	GoalStatusActive   GoalStatus = "active"
	GoalStatusPaused   GoalStatus = "paused"
	GoalStatusAchieved GoalStatus = "achieved"
)

type Goal struct {
	BaseModel
	OwnerID     uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Description *string    `json:"description,omitempty" gorm:"type:text"`
	Status      GoalStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`

	Owner    User          `json:"-" gorm:"foreignKey:OwnerID"`
	Contacts []GoalContact `json:"-" gorm:"foreignKey:GoalID;constraint:OnDelete:CASCADE"`
}

func (Goal) TableName() string {
	return "goals"
}

// GoalContact links a contact to a goal they can help with.
type GoalContact struct {
	BaseModel
	GoalID    uuid.UUID `json:"goalID" gorm:"type:uuid;not null;uniqueIndex:idx_goal_contact"`
	ContactID uuid.UUID `json:"contactID" gorm:"type:uuid;not null;uniqueIndex:idx_goal_contact"`
	Relevance *string   `json:"relevance,omitempty" gorm:"type:text"`

	Goal    Goal    `json:"-" gorm:"foreignKey:GoalID"`
	Contact Contact `json:"-" gorm:"foreignKey:ContactID"`
}

func (GoalContact) TableName() string {
	return "goal_contacts"
}
