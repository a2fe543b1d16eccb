// internal/models/collaboration.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collaborations, bookings and subscriptions are owned by the marketplace
// services; the ledger only reads them.

type Collaboration struct {
	BaseModel
	BrandID     uuid.UUID           `json:"brand_id" gorm:"type:uuid;not null;index"`
	CreatorID   uuid.UUID           `json:"creator_id" gorm:"type:uuid;not null;index"`
	BookingID   *uuid.UUID          `json:"booking_id,omitempty" gorm:"type:uuid;index"`
	Title       string              `json:"title" gorm:"size:255"`
	Status      CollaborationStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	TotalAmount decimal.Decimal     `json:"total_amount" gorm:"type:decimal(20,4);not null;default:0"`
	CompletedAt *time.Time          `json:"completed_at"`
}

type Booking struct {
	BaseModel
	BrandID     uuid.UUID       `json:"brand_id" gorm:"type:uuid;not null;index"`
	CreatorID   uuid.UUID       `json:"creator_id" gorm:"type:uuid;not null;index"`
	PackageID   *uuid.UUID      `json:"package_id,omitempty" gorm:"type:uuid"`
	Status      string          `json:"status" gorm:"type:varchar(20);not null"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(20,4);not null;default:0"`
}

type SubscriptionPlan struct {
	BaseModel
	Name                  string           `json:"name" gorm:"size:100;not null"`
	Tier                  SubscriptionTier `json:"tier" gorm:"type:varchar(20);not null;uniqueIndex"`
	PlatformFeePercentage *decimal.Decimal `json:"platform_fee_percentage,omitempty" gorm:"type:decimal(7,4)"`
}

type BrandSubscription struct {
	BaseModel
	BrandID   uuid.UUID  `json:"brand_id" gorm:"type:uuid;not null;index"`
	PlanID    uuid.UUID  `json:"plan_id" gorm:"type:uuid;not null"`
	Status    string     `json:"status" gorm:"type:varchar(20);not null;index"`
	ExpiresAt *time.Time `json:"expires_at"`

	// Relationships
	Plan SubscriptionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}
