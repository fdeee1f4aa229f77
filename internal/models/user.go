package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User describes an account belonging to at most one company.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Slug     string `gorm:"uniqueIndex;not null" json:"slug"`

	IsAdmin      bool `gorm:"default:false" json:"is_admin"`
	IsSuperAdmin bool `gorm:"default:false" json:"is_super_admin"`
	Active       bool `gorm:"default:true" json:"active"`

	CompanyID *string  `gorm:"type:uuid;index" json:"company_id"`
	Company   *Company `json:"company,omitempty"`

	Teams []Team `gorm:"many2many:user_teams;" json:"teams,omitempty"`

	Settings datatypes.JSON `json:"settings"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
