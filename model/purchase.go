package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PurchasableKind tags the polymorphic purchasable reference on a Purchase.
// Lookups must dispatch on this tag explicitly.
type PurchasableKind string

const (
	PurchasableCourse PurchasableKind = "course"
	PurchasableModule PurchasableKind = "module"
)

// Valid reports whether k is a known purchasable kind.
func (k PurchasableKind) Valid() bool {
	return k == PurchasableCourse || k == PurchasableModule
}

// Purchasable is either a Course or a Module, the two entity kinds that can
// be bought.
type Purchasable interface {
	PurchasableID() uint
	Kind() PurchasableKind
	PurchasableTitle() string
	PurchasableDescription() string
	PriceMinor() *int64
	IsFree() bool
}

// PaymentProvider identifies which payment integration a purchase went
// through.
type PaymentProvider string

const (
	ProviderStripe   PaymentProvider = "stripe"
	ProviderRazorpay PaymentProvider = "razorpay"
)

// Valid reports whether p is a known provider.
func (p PaymentProvider) Valid() bool {
	return p == ProviderStripe || p == ProviderRazorpay
}

// PurchaseStatus is the lifecycle state of a purchase record.
// pending -> completed | failed | cancelled; completed is terminal and must
// never be overwritten by webhook handlers.
type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "pending"
	StatusCompleted PurchaseStatus = "completed"
	StatusFailed    PurchaseStatus = "failed"
	StatusCancelled PurchaseStatus = "cancelled"
	StatusRefunded  PurchaseStatus = "refunded"
)

// Purchase records a user's attempt to buy a course or module. Amount is in
// major currency units; the purchasable's price is minor units. Metadata is
// the merged view over the purchase's provider events.
type Purchase struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	PurchasableType   PurchasableKind `gorm:"type:varchar(20);not null;index:idx_purchasable" json:"purchasable_type"`
	PurchasableID     uint            `gorm:"not null;index:idx_purchasable" json:"purchasable_id"`
	Amount            float64         `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(10);default:'USD'" json:"currency"`
	PaymentProvider   PaymentProvider `gorm:"type:varchar(20);not null" json:"payment_provider"`
	PaymentID         *string         `gorm:"type:varchar(255);index" json:"payment_id"`
	CheckoutSessionID *string         `gorm:"type:varchar(255);index" json:"checkout_session_id"`
	Status            PurchaseStatus  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Metadata          datatypes.JSON  `json:"metadata"`

	// Relationships
	User   User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Events []PurchaseEvent `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsPending reports whether the purchase can still transition.
func (p *Purchase) IsPending() bool {
	return p.Status == StatusPending
}

// IsCompleted reports whether the purchase reached its terminal success state.
func (p *Purchase) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// PurchaseEvent is the append-only log of provider artifacts collected for a
// purchase (orders, sessions, webhook payloads). Purchase.Metadata is the
// merged view over these; individual events are never rewritten.
type PurchaseEvent struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	PurchaseID uint            `gorm:"not null;index" json:"purchase_id"`
	Provider   PaymentProvider `gorm:"type:varchar(20);not null" json:"provider"`
	Kind       string          `gorm:"type:varchar(50);not null" json:"kind"` // order_created, session_created, verified, webhook_completed
	Payload    datatypes.JSON  `json:"payload"`
}
