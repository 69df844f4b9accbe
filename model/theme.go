package model

import (
	"time"

	"gorm.io/gorm"
)

// Theme is a named grouping of courses (e.g. "Blues", "Fingerstyle").
// Themes are admin-managed and have no owner of their own.
type Theme struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null;uniqueIndex" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	CoverImage  string         `gorm:"type:varchar(512)" json:"cover_image,omitempty"`

	// Relationships
	Courses []Course `gorm:"foreignKey:ThemeID;constraint:OnDelete:CASCADE" json:"courses,omitempty"`
}
