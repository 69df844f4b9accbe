package model

import (
	"time"

	"gorm.io/gorm"
)

// Attachment is a downloadable file belonging to exactly one module. The
// stored Filename is generated (uuid + original extension) and never derived
// from the user-supplied Name, so renames never touch storage. Attachments
// are cascade-deleted with their module.
type Attachment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	ModuleID  uint           `gorm:"not null;index" json:"module_id"`
	Name      string         `gorm:"not null" json:"name"`
	Filename  string         `gorm:"not null;uniqueIndex" json:"filename"`
	Disk      string         `gorm:"type:varchar(50);not null" json:"disk"`
	Path      string         `gorm:"type:varchar(512);not null" json:"path"`
	Size      int64          `json:"size"`
	MimeType  string         `gorm:"type:varchar(255)" json:"mime_type"`

	// Relationships
	Module Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}
