// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the primary key in the application so the same models
// work on PostgreSQL and on the SQLite databases used by tests.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeBrand   UserType = "brand"
	UserTypeCreator UserType = "creator"
	UserTypeAdmin   UserType = "admin"
)

type PaymentType string

const (
	PaymentTypeCollaboration PaymentType = "collaboration"
	PaymentTypeBooking       PaymentType = "booking"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusVerified PaymentStatus = "verified"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"
	EscrowStatusEscrowed EscrowStatus = "escrowed"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

type WalletTransactionStatus string

const (
	WalletTxStatusPendingClearance WalletTransactionStatus = "pending_clearance"
	WalletTxStatusAvailable        WalletTransactionStatus = "available"
	WalletTxStatusWithdrawn        WalletTransactionStatus = "withdrawn"
	WalletTxStatusReversed         WalletTransactionStatus = "reversed"
)

type CashoutStatus string

const (
	CashoutStatusPending  CashoutStatus = "pending"
	CashoutStatusPaid     CashoutStatus = "paid"
	CashoutStatusRejected CashoutStatus = "rejected"
)

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusDismissed   DisputeStatus = "dismissed"
)

// Blocking reports whether a dispute in this status must hold funds in escrow.
func (s DisputeStatus) Blocking() bool {
	return s == DisputeStatusOpen || s == DisputeStatusUnderReview
}

type RemainderDisposition string

const (
	RemainderRefundToBrand    RemainderDisposition = "refund_to_brand"
	RemainderRetainByPlatform RemainderDisposition = "retain_by_platform"
)

func (d RemainderDisposition) Valid() bool {
	return d == RemainderRefundToBrand || d == RemainderRetainByPlatform
}

type CollaborationStatus string

const (
	CollaborationStatusActive    CollaborationStatus = "active"
	CollaborationStatusCompleted CollaborationStatus = "completed"
	CollaborationStatusCancelled CollaborationStatus = "cancelled"
)

type SubscriptionTier string

const (
	SubscriptionTierFree    SubscriptionTier = "free"
	SubscriptionTierPro     SubscriptionTier = "pro"
	SubscriptionTierPremium SubscriptionTier = "premium"
)
