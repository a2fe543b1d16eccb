// internal/models/payment.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrImmutableRecord = errors.New("record is immutable")

type Payment struct {
	BaseModel
	BrandID          uuid.UUID       `json:"brand_id" gorm:"type:uuid;not null;index"`
	CollaborationID  *uuid.UUID      `json:"collaboration_id,omitempty" gorm:"type:uuid;index"`
	BookingID        *uuid.UUID      `json:"booking_id,omitempty" gorm:"type:uuid;index"`
	PaymentType      PaymentType     `json:"payment_type" gorm:"type:varchar(20);not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(20,4);not null"`
	Currency         string          `json:"currency" gorm:"size:3;not null;default:'USD'"`
	PaymentMethod    string          `json:"payment_method" gorm:"size:50"`
	GatewayReference string          `json:"gateway_reference,omitempty" gorm:"size:255;index"`
	Status           PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	EscrowStatus     EscrowStatus    `json:"escrow_status" gorm:"type:varchar(20);not null;default:'none';index"`
	HeldAmount       decimal.Decimal `json:"held_amount" gorm:"type:decimal(20,4);not null;default:0"`
	RefundedAmount   decimal.Decimal `json:"refunded_amount" gorm:"type:decimal(20,4);not null;default:0"`
	VerifiedAt       *time.Time      `json:"verified_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	RefundedAt       *time.Time      `json:"refunded_at"`
	RefundReason     string          `json:"refund_reason,omitempty" gorm:"type:text"`

	// Relationships
	Verification *PaymentVerification `json:"verification,omitempty" gorm:"foreignKey:PaymentID"`
}

// Escrow transitions only ever move forward.
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusNone:     {EscrowStatusEscrowed, EscrowStatusRefunded},
	EscrowStatusEscrowed: {EscrowStatusReleased, EscrowStatusRefunded},
}

func CanTransitionEscrow(from, to EscrowStatus) bool {
	for _, next := range escrowTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Refundable reports whether the payment may still be refunded: escrowed funds,
// or money that never entered escrow.
func (p *Payment) Refundable() bool {
	if !CanTransitionEscrow(p.EscrowStatus, EscrowStatusRefunded) {
		return false
	}
	if p.EscrowStatus == EscrowStatusNone {
		return p.Status == PaymentStatusPending || p.Status == PaymentStatusVerified
	}
	return true
}

// PaymentVerification is written once when a payment enters escrow.
type PaymentVerification struct {
	BaseModel
	PaymentID  uuid.UUID       `json:"payment_id" gorm:"type:uuid;not null;uniqueIndex"`
	AdminID    uuid.UUID       `json:"admin_id" gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(20,4);not null"`
	Method     string          `json:"method" gorm:"size:50;not null"`
	Notes      string          `json:"notes,omitempty" gorm:"type:text"`
	VerifiedAt time.Time       `json:"verified_at" gorm:"not null"`
}

func (v *PaymentVerification) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

func (v *PaymentVerification) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}
