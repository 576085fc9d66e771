// File: internal/user/model.go
package user

import (
	"github.com/google/uuid"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/shared"
)

// User represents a marketplace member. Every user has a role (VA or
// business); administrators additionally carry the admin flag on top of
// their role.
type User struct {
	common.BaseModel
	Email                *string `gorm:"type:varchar(255);uniqueIndex"`
	FirstName            *string `gorm:"type:varchar(100)"`
	LastName             *string `gorm:"type:varchar(100)"`
	FirebaseUID          *string `gorm:"type:varchar(255);uniqueIndex"`
	Role                 string  `gorm:"type:varchar(50);not null;default:'va';index"`
	IsAdmin              bool    `gorm:"not null;default:false;index"`
	IsSuspended          bool    `gorm:"not null;default:false;index"`
	EmailOnAnnouncements bool    `gorm:"not null;default:true"`

	VAProfile       *VAProfile       `gorm:"foreignKey:UserID"`
	BusinessProfile *BusinessProfile `gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// VAProfile carries the searchable attributes of a virtual assistant.
type VAProfile struct {
	common.BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	SearchStatus string    `gorm:"type:varchar(50);index"` // e.g. actively_looking, open, not_interested
	Status       string    `gorm:"type:varchar(50);index"` // e.g. approved, pending
}

func (VAProfile) TableName() string {
	return "va_profiles"
}

// BusinessProfile carries the searchable attributes of a business account.
type BusinessProfile struct {
	common.BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Industry    string    `gorm:"type:varchar(100);index"`
	CompanySize string    `gorm:"type:varchar(50);index"`
}

func (BusinessProfile) TableName() string {
	return "business_profiles"
}

// ToSharedUser converts a User model to the cross-feature view.
func ToSharedUser(u *User) *shared.User {
	return &shared.User{
		ID:                   u.ID,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		Role:                 u.Role,
		IsAdmin:              u.IsAdmin,
		IsSuspended:          u.IsSuspended,
		EmailOnAnnouncements: u.EmailOnAnnouncements,
		FirebaseUID:          u.FirebaseUID,
		CreatedAt:            u.CreatedAt,
	}
}
