package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username        string     `gorm:"unique;not null" json:"username"`
	Name            string     `json:"name"`
	Email           string     `gorm:"unique;not null" json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	Password        string     `gorm:"not null" json:"-"` // Don't expose password hash
	Roles           []Role     `gorm:"many2many:user_roles;" json:"-" validate:"-"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BeforeSave normalizes the email so uniqueness is case-insensitive.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// Can reports whether any of the user's loaded roles grants permission.
// Roles.Permissions must be preloaded.
func (u *User) Can(permission string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		for _, perm := range role.Permissions {
			if perm.Name == permission {
				return true
			}
		}
	}
	return false
}
