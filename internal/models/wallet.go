// internal/models/wallet.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	BaseModel
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	OwnerType        UserType        `json:"owner_type" gorm:"type:varchar(20);not null"`
	Currency         string          `json:"currency" gorm:"size:3;not null;default:'USD'"`
	PendingClearance decimal.Decimal `json:"pending_clearance" gorm:"type:decimal(20,4);not null;default:0"`
	AvailableBalance decimal.Decimal `json:"available_balance" gorm:"type:decimal(20,4);not null;default:0"`
	TotalEarned      decimal.Decimal `json:"total_earned" gorm:"type:decimal(20,4);not null;default:0"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn" gorm:"type:decimal(20,4);not null;default:0"`
}

// WalletTransaction records one release of escrowed funds into a wallet.
// At most one non-reversed row exists per collaboration.
type WalletTransaction struct {
	BaseModel
	WalletID              uuid.UUID               `json:"wallet_id" gorm:"type:uuid;not null;index"`
	CollaborationID       uuid.UUID               `json:"collaboration_id" gorm:"type:uuid;not null;index"`
	PaymentID             uuid.UUID               `json:"payment_id" gorm:"type:uuid;not null;index"`
	GrossAmount           decimal.Decimal         `json:"gross_amount" gorm:"type:decimal(20,4);not null"`
	PlatformFeePercentage decimal.Decimal         `json:"platform_fee_percentage" gorm:"type:decimal(7,4);not null"`
	PlatformFee           decimal.Decimal         `json:"platform_fee" gorm:"type:decimal(20,4);not null"`
	StandardNetAmount     decimal.Decimal         `json:"standard_net_amount" gorm:"type:decimal(20,4);not null"`
	NetAmount             decimal.Decimal         `json:"net_amount" gorm:"type:decimal(20,4);not null"`
	WithdrawnAmount       decimal.Decimal         `json:"withdrawn_amount" gorm:"type:decimal(20,4);not null;default:0"`
	ReleasePolicy         ReleasePolicyKind       `json:"release_policy" gorm:"type:varchar(30);not null"`
	PayoutPercentage      decimal.Decimal         `json:"payout_percentage" gorm:"type:decimal(7,4);not null"`
	DisputeID             *uuid.UUID              `json:"dispute_id,omitempty" gorm:"type:uuid"`
	RemainderAmount       decimal.Decimal         `json:"remainder_amount" gorm:"type:decimal(20,4);not null;default:0"`
	RemainderDisposition  RemainderDisposition    `json:"remainder_disposition,omitempty" gorm:"type:varchar(30)"`
	Status                WalletTransactionStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	ClearanceDays         int                     `json:"clearance_days" gorm:"not null"`
	AvailableAt           time.Time               `json:"available_at" gorm:"not null;index"`
	ClearedAt             *time.Time              `json:"cleared_at"`
	ReversedAt            *time.Time              `json:"reversed_at"`
	ReversalReason        string                  `json:"reversal_reason,omitempty" gorm:"type:text"`
}

// Outstanding is the part of the net amount that still counts toward the wallet balance.
func (t *WalletTransaction) Outstanding() decimal.Decimal {
	return t.NetAmount.Sub(t.WithdrawnAmount)
}

type CashoutRequest struct {
	BaseModel
	WalletID        uuid.UUID       `json:"wallet_id" gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(20,4);not null"`
	Method          string          `json:"method" gorm:"size:50;not null"`
	Status          CashoutStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	RequestedAt     time.Time       `json:"requested_at" gorm:"not null"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	ProcessedBy     *uuid.UUID      `json:"processed_by" gorm:"type:uuid"`
	RejectionReason string          `json:"rejection_reason,omitempty" gorm:"type:text"`
}
