package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is one person in a user's relationship graph.
type Contact struct {
	BaseModel
	OwnerID     uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	FirstName   string     `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName    string     `json:"lastName" gorm:"type:varchar(100)"`
	Email       *string    `json:"email,omitempty" gorm:"type:varchar(255)"`
	Company     *string    `json:"company,omitempty" gorm:"type:varchar(255)"`
	Title       *string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	LinkedInURL *string    `json:"linkedinURL,omitempty" gorm:"type:text"`
	Notes       *string    `json:"notes,omitempty" gorm:"type:text"`
	LastTouchAt *time.Time `json:"lastTouchAt,omitempty"`

	Owner     User       `json:"-" gorm:"foreignKey:OwnerID"`
	Artifacts []Artifact `json:"-" gorm:"foreignKey:ContactID"`
}

func (Contact) TableName() string {
	return "contacts"
}
