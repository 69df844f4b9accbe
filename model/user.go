package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is the authorization role assigned to a user. It is immutable per
// request; every policy and entitlement rule switches on it exhaustively so a
// new role forces a review of each rule.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCoach   Role = "coach"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleStudent:
		return true
	}
	return false
}

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Role         Role           `gorm:"type:varchar(20);default:'student'" json:"role"`
	Avatar       string         `gorm:"type:varchar(512)" json:"avatar,omitempty"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Purchases      []Purchase          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Courses        []Course            `gorm:"foreignKey:CoachID" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasRole checks if the user has a specific role. A nil user is a guest and
// has no role.
func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// HasAnyRole checks if the user has any of the given roles
func (u *User) HasAnyRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
