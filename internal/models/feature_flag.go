package models

import (
	"github.com/google/uuid"
)

// FeatureFlag is a named boolean toggle with a global default. Per-user
// exceptions live in UserFeatureOverride.
type FeatureFlag struct {
	BaseModel
	Name            string  `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description     *string `json:"description,omitempty" gorm:"type:text"`
	EnabledGlobally bool    `json:"enabledGlobally" gorm:"not null;default:false"`

	Overrides []UserFeatureOverride `json:"-" gorm:"foreignKey:FeatureFlagID;constraint:OnDelete:CASCADE"`
}

func (FeatureFlag) TableName() string {
	return "feature_flags"
}

// UserFeatureOverride pins a flag to a fixed value for one user, regardless
// of the flag's global default.
type UserFeatureOverride struct {
	BaseModel
	UserID        uuid.UUID `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_user_flag"`
	FeatureFlagID uuid.UUID `json:"featureFlagID" gorm:"type:uuid;not null;uniqueIndex:idx_user_flag"`
	Enabled       bool      `json:"enabled" gorm:"not null"`

	User        User        `json:"-" gorm:"foreignKey:UserID"`
	FeatureFlag FeatureFlag `json:"-" gorm:"foreignKey:FeatureFlagID"`
}

func (UserFeatureOverride) TableName() string {
	return "user_feature_overrides"
}
