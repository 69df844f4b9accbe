package model

import (
	"time"

	"gorm.io/gorm"
)

// Course is a coach-owned collection of modules under a theme. Courses start
// unapproved and are only visible to students once an admin approves them.
// Price is stored in minor units (paisa/cents); a nil or non-positive price
// means free regardless of the IsFreeFlag.
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	ThemeID     uint           `gorm:"not null;index" json:"theme_id"`
	CoachID     uint           `gorm:"not null;index" json:"coach_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	CoverImage  string         `gorm:"type:varchar(512)" json:"cover_image,omitempty"`
	IsApproved  bool           `gorm:"default:false;index" json:"is_approved"`
	IsFreeFlag  bool           `gorm:"column:is_free;default:false" json:"is_free"`
	Price       *int64         `json:"price"` // minor units, nil means free

	// Relationships
	Theme         Theme          `gorm:"foreignKey:ThemeID" json:"theme,omitempty"`
	Coach         User           `gorm:"foreignKey:CoachID" json:"coach,omitempty"`
	CourseModules []CourseModule `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course_modules,omitempty"`
}

// CourseModule is the ordered many-to-many association between courses and
// modules. Order is unique per (course, module) pair and drives previous/next
// navigation within a course.
type CourseModule struct {
	CourseID  uint      `gorm:"primaryKey" json:"course_id"`
	ModuleID  uint      `gorm:"primaryKey" json:"module_id"`
	Order     int       `gorm:"column:sort_order;not null" json:"order"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Module Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"module,omitempty"`
}

// TableName specifies the table name for CourseModule
func (CourseModule) TableName() string {
	return "course_module_map"
}

// IsFree reports whether the course needs no purchase: either flagged free or
// priced at nothing.
func (c *Course) IsFree() bool {
	return c.IsFreeFlag || c.Price == nil || *c.Price <= 0
}

// PurchasableID implements Purchasable
func (c *Course) PurchasableID() uint { return c.ID }

// Kind implements Purchasable
func (c *Course) Kind() PurchasableKind { return PurchasableCourse }

// PurchasableTitle implements Purchasable
func (c *Course) PurchasableTitle() string { return c.Title }

// PurchasableDescription implements Purchasable
func (c *Course) PurchasableDescription() string { return c.Description }

// PriceMinor implements Purchasable
func (c *Course) PriceMinor() *int64 { return c.Price }
