// internal/models/dispute.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrActiveDisputeDelete = errors.New("an open dispute cannot be deleted")

type Dispute struct {
	BaseModel
	Reference            string               `json:"reference" gorm:"size:20;not null;uniqueIndex"`
	CollaborationID      uuid.UUID            `json:"collaboration_id" gorm:"type:uuid;not null;index"`
	RaisedBy             uuid.UUID            `json:"raised_by" gorm:"type:uuid;not null;index"`
	RaisedAgainst        uuid.UUID            `json:"raised_against" gorm:"type:uuid;not null"`
	IssueType            string               `json:"issue_type" gorm:"size:50;not null"`
	Description          string               `json:"description" gorm:"type:text;not null"`
	EvidenceURLs         pq.StringArray       `json:"evidence_urls" gorm:"type:text[]"`
	Status               DisputeStatus        `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	Resolution           string               `json:"resolution,omitempty" gorm:"type:text"`
	PayoutPercentage     *decimal.Decimal     `json:"payout_percentage,omitempty" gorm:"type:decimal(7,4)"`
	RemainderDisposition RemainderDisposition `json:"remainder_disposition,omitempty" gorm:"type:varchar(30)"`
	AssignedAdminID      *uuid.UUID           `json:"assigned_admin_id,omitempty" gorm:"type:uuid"`
	ResolvedAt           *time.Time           `json:"resolved_at"`
}

func (d *Dispute) BeforeDelete(tx *gorm.DB) error {
	if d.Status.Blocking() {
		return ErrActiveDisputeDelete
	}
	return nil
}
