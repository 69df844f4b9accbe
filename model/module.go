package model

import (
	"time"

	"gorm.io/gorm"
)

// ModuleDifficulty levels accepted for a module.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Module is an independently purchasable lesson with a video and attachments.
// It can appear in any number of courses. CoachID is nullable: legacy and
// admin-created modules have no owner. Pricing mirrors Course.
type Module struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CoachID     *uint          `gorm:"index" json:"coach_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Difficulty  string         `gorm:"type:varchar(20);default:'easy'" json:"difficulty"`
	VideoURL    string         `gorm:"type:varchar(512)" json:"video_url,omitempty"`
	CoverImage  string         `gorm:"type:varchar(512)" json:"cover_image,omitempty"`
	IsFreeFlag  bool           `gorm:"column:is_free;default:false" json:"is_free"`
	Price       *int64         `json:"price"` // minor units, nil means free

	// Relationships
	Coach         *User          `gorm:"foreignKey:CoachID" json:"coach,omitempty"`
	Attachments   []Attachment   `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
	CourseModules []CourseModule `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsFree reports whether the module needs no purchase.
func (m *Module) IsFree() bool {
	return m.IsFreeFlag || m.Price == nil || *m.Price <= 0
}

// OwnedBy reports whether the module is directly owned by the given coach id.
func (m *Module) OwnedBy(userID uint) bool {
	return m.CoachID != nil && *m.CoachID == userID
}

// PurchasableID implements Purchasable
func (m *Module) PurchasableID() uint { return m.ID }

// Kind implements Purchasable
func (m *Module) Kind() PurchasableKind { return PurchasableModule }

// PurchasableTitle implements Purchasable
func (m *Module) PurchasableTitle() string { return m.Title }

// PurchasableDescription implements Purchasable
func (m *Module) PurchasableDescription() string { return m.Description }

// PriceMinor implements Purchasable
func (m *Module) PriceMinor() *int64 { return m.Price }
