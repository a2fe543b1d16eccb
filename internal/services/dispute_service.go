// internal/services/dispute_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/models"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type DisputeService struct {
	db             *gorm.DB
	config         *config.Config
	collaborations CollaborationReader
	publisher      EventPublisher
	now            func() time.Time
}

type OpenDisputeRequest struct {
	CollaborationID uuid.UUID `json:"collaboration_id" validate:"required"`
	IssueType       string    `json:"issue_type" validate:"required,oneof=non_delivery quality payment communication other"`
	Description     string    `json:"description" validate:"required,min=10,max=5000"`
	EvidenceURLs    []string  `json:"evidence_urls,omitempty" validate:"max=10,dive,url"`
}

type ResolveDisputeRequest struct {
	Resolution           string           `json:"resolution" validate:"required,max=5000"`
	PayoutPercentage     *decimal.Decimal `json:"payout_percentage,omitempty"`
	RemainderDisposition string           `json:"remainder_disposition,omitempty" validate:"omitempty,oneof=refund_to_brand retain_by_platform"`
}

type DismissDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,max=5000"`
}

func NewDisputeService(db *gorm.DB, config *config.Config, collaborations CollaborationReader, publisher EventPublisher) *DisputeService {
	return &DisputeService{
		db:             db,
		config:         config,
		collaborations: collaborations,
		publisher:      publisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// OpenDispute lets either party of a collaboration raise a dispute against the other.
func (s *DisputeService) OpenDispute(ctx context.Context, raisedBy uuid.UUID, req *OpenDisputeRequest) (*models.Dispute, error) {
	collaboration, err := s.collaborations.GetCollaboration(ctx, req.CollaborationID)
	if err != nil {
		return nil, err
	}

	var raisedAgainst uuid.UUID
	switch raisedBy {
	case collaboration.BrandID:
		raisedAgainst = collaboration.CreatorID
	case collaboration.CreatorID:
		raisedAgainst = collaboration.BrandID
	default:
		return nil, ErrNotCollaborationParticipant
	}

	reference, err := utils.GenerateReference("DSP", 10)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dispute reference: %w", err)
	}

	dispute := &models.Dispute{
		Reference:       reference,
		CollaborationID: collaboration.ID,
		RaisedBy:        raisedBy,
		RaisedAgainst:   raisedAgainst,
		IssueType:       req.IssueType,
		Description:     strings.TrimSpace(req.Description),
		EvidenceURLs:    pq.StringArray(req.EvidenceURLs),
		Status:          models.DisputeStatusOpen,
	}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		// Serializes with a release of the same collaboration.
		if err := database.ForUpdate(tx).Select("id").First(&models.Collaboration{}, "id = ?", collaboration.ID).Error; err != nil {
			return notFoundOr(err, ErrCollaborationNotFound)
		}

		var active int64
		if err := tx.Model(&models.Dispute{}).
			Where("collaboration_id = ? AND status IN ?", collaboration.ID,
				[]models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrDisputeAlreadyOpen
		}
		return tx.Create(dispute).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"dispute":          dispute.Reference,
		"collaboration_id": dispute.CollaborationID,
		"raised_by":        raisedBy,
	}).Info("Dispute opened")

	publish(ctx, s.publisher, EventDisputeOpened, dispute.CollaborationID.String(), dispute)
	return dispute, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.WithContext(ctx).First(&dispute, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, ErrDisputeNotFound)
	}
	return &dispute, nil
}

func (s *DisputeService) GetByReference(ctx context.Context, reference string) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.WithContext(ctx).Where("reference = ?", strings.ToUpper(reference)).First(&dispute).Error; err != nil {
		return nil, notFoundOr(err, ErrDisputeNotFound)
	}
	return &dispute, nil
}

func (s *DisputeService) ListForCollaboration(ctx context.Context, collaborationID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := s.db.WithContext(ctx).
		Where("collaboration_id = ?", collaborationID).
		Order("created_at DESC").
		Find(&disputes).Error; err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	return disputes, nil
}

func (s *DisputeService) ListDisputes(ctx context.Context, status string, params utils.PaginationParams) ([]models.Dispute, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Dispute{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "status", "resolved_at"})
	query = utils.ApplyPagination(query, params)

	var disputes []models.Dispute
	if err := query.Find(&disputes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch disputes: %w", err)
	}
	return disputes, total, nil
}

// StartReview assigns an admin and moves an open dispute under review.
func (s *DisputeService) StartReview(ctx context.Context, disputeID, adminID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.transition(ctx, disputeID, []models.DisputeStatus{models.DisputeStatusOpen}, map[string]interface{}{
		"status":            models.DisputeStatusUnderReview,
		"assigned_admin_id": adminID,
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, EventDisputeReviewAssigned, dispute.CollaborationID.String(), dispute)
	return dispute, nil
}

// ResolveDispute closes a dispute. A payout percentage below 100 needs an
// explicit disposition for the remainder; there is no default.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID, adminID uuid.UUID, req *ResolveDisputeRequest) (*models.Dispute, error) {
	updates := map[string]interface{}{
		"status":      models.DisputeStatusResolved,
		"resolution":  req.Resolution,
		"resolved_at": s.now(),
	}
	// keep the reviewer when one was assigned
	updates["assigned_admin_id"] = gorm.Expr("COALESCE(assigned_admin_id, ?)", adminID)

	if req.PayoutPercentage != nil {
		pct := *req.PayoutPercentage
		if !validPercentage(pct) {
			return nil, ErrInvalidPayoutPercentage
		}

		disposition := models.RemainderDisposition(req.RemainderDisposition)
		if pct.LessThan(hundred) {
			if !disposition.Valid() {
				return nil, ErrRemainderDispositionNeeded
			}
			updates["remainder_disposition"] = disposition
		}
		updates["payout_percentage"] = pct
	}

	active := []models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}
	dispute, err := s.transition(ctx, disputeID, active, updates)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"dispute":  dispute.Reference,
		"admin_id": adminID,
		"payout":   req.PayoutPercentage,
	}).Info("Dispute resolved")

	publish(ctx, s.publisher, EventDisputeResolved, dispute.CollaborationID.String(), dispute)
	return dispute, nil
}

func (s *DisputeService) DismissDispute(ctx context.Context, disputeID, adminID uuid.UUID, resolution string) (*models.Dispute, error) {
	active := []models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}
	dispute, err := s.transition(ctx, disputeID, active, map[string]interface{}{
		"status":            models.DisputeStatusDismissed,
		"resolution":        resolution,
		"resolved_at":       s.now(),
		"assigned_admin_id": adminID,
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, EventDisputeDismissed, dispute.CollaborationID.String(), dispute)
	return dispute, nil
}

func (s *DisputeService) transition(ctx context.Context, disputeID uuid.UUID, from []models.DisputeStatus, updates map[string]interface{}) (*models.Dispute, error) {
	result := s.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("id = ? AND status IN ?", disputeID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update dispute: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		dispute, err := s.GetDispute(ctx, disputeID)
		if err != nil {
			return nil, err
		}
		if dispute.Status == models.DisputeStatusResolved || dispute.Status == models.DisputeStatusDismissed {
			return nil, ErrDisputeClosed
		}
		return nil, ErrInvalidTransition
	}

	return s.GetDispute(ctx, disputeID)
}
