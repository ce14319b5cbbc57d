package models

type User struct {
	BaseModel
	Email            string  `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash     string  `json:"-" gorm:"type:text;not null"`
	FirstName        string  `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName         string  `json:"lastName" gorm:"type:varchar(100);not null"`
	IsAdmin          bool    `json:"isAdmin" gorm:"not null;default:false"`
	AvatarURL        *string `json:"avatarURL,omitempty" gorm:"type:text"`
	StripeCustomerID *string `json:"-" gorm:"type:varchar(255);index"`

	Contacts     []Contact         `json:"-" gorm:"foreignKey:OwnerID"`
	Goals        []Goal            `json:"-" gorm:"foreignKey:OwnerID"`
	Integrations []UserIntegration `json:"-" gorm:"foreignKey:UserID"`
}
