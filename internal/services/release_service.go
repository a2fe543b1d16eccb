// internal/services/release_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/metrics"
	"github.com/javajoker/escrow-ledger/internal/models"
)

// DisputeLookup lists a collaboration's disputes, newest first.
type DisputeLookup interface {
	ListForCollaboration(ctx context.Context, collaborationID uuid.UUID) ([]models.Dispute, error)
}

type ReleaseService struct {
	db             *gorm.DB
	config         *config.Config
	fees           FeeCalculator
	collaborations CollaborationReader
	disputes       DisputeLookup
	publisher      EventPublisher
	now            func() time.Time
}

type ReleaseRequest struct {
	FeePercentage *decimal.Decimal `json:"fee_percentage,omitempty"`
}

func NewReleaseService(
	db *gorm.DB,
	config *config.Config,
	fees FeeCalculator,
	collaborations CollaborationReader,
	disputes DisputeLookup,
	publisher EventPublisher,
) *ReleaseService {
	return &ReleaseService{
		db:             db,
		config:         config,
		fees:           fees,
		collaborations: collaborations,
		disputes:       disputes,
		publisher:      publisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ReleaseEscrowToWallet credits the creator of a completed collaboration with
// the escrowed payment, net of platform fee. Calling it again for the same
// collaboration returns the original wallet transaction.
func (s *ReleaseService) ReleaseEscrowToWallet(ctx context.Context, collaborationID uuid.UUID, feePercentage *decimal.Decimal) (*models.WalletTransaction, error) {
	existing, err := s.findActiveTransaction(s.db.WithContext(ctx), collaborationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.EscrowReleases.WithLabelValues("idempotent").Inc()
		return existing, nil
	}

	transaction, created, err := s.release(ctx, collaborationID, feePercentage)
	if err != nil {
		if isUniqueViolation(err) || errors.Is(err, ErrLedgerInconsistent) {
			// A concurrent release won; hand back its record.
			if existing, findErr := s.findActiveTransaction(s.db.WithContext(ctx), collaborationID); findErr == nil && existing != nil {
				metrics.EscrowReleases.WithLabelValues("idempotent").Inc()
				return existing, nil
			}
		}
		metrics.EscrowReleases.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if !created {
		metrics.EscrowReleases.WithLabelValues("idempotent").Inc()
		return transaction, nil
	}

	metrics.EscrowReleases.WithLabelValues("created").Inc()
	logrus.WithFields(logrus.Fields{
		"collaboration_id":   collaborationID,
		"wallet_transaction": transaction.ID,
		"gross":              transaction.GrossAmount.String(),
		"net":                transaction.NetAmount.String(),
		"policy":             transaction.ReleasePolicy,
	}).Info("Escrow released to wallet")

	publish(ctx, s.publisher, EventEscrowReleased, collaborationID.String(), transaction)
	if transaction.RemainderAmount.IsPositive() {
		publish(ctx, s.publisher, EventEscrowRemainderDue, collaborationID.String(), map[string]interface{}{
			"collaboration_id": collaborationID,
			"payment_id":       transaction.PaymentID,
			"dispute_id":       transaction.DisputeID,
			"amount":           transaction.RemainderAmount,
			"disposition":      transaction.RemainderDisposition,
		})
	}

	return transaction, nil
}

func (s *ReleaseService) release(ctx context.Context, collaborationID uuid.UUID, feePercentage *decimal.Decimal) (*models.WalletTransaction, bool, error) {
	collaboration, err := s.collaborations.GetCollaboration(ctx, collaborationID)
	if err != nil {
		return nil, false, err
	}
	if collaboration.Status != models.CollaborationStatusCompleted {
		return nil, false, ErrCollaborationNotCompleted
	}

	// Fail fast here; the decisive check runs again under lock below.
	if _, err := s.releasePolicy(ctx, collaborationID); err != nil {
		return nil, false, err
	}

	payment, err := s.resolveEscrowedPayment(ctx, collaboration)
	if err != nil {
		return nil, false, err
	}

	gross, err := s.grossAmount(ctx, payment, collaboration)
	if err != nil {
		return nil, false, err
	}

	pct, err := s.feePercentage(ctx, feePercentage, payment, collaboration)
	if err != nil {
		return nil, false, err
	}

	clearanceDays := s.fees.ClearanceDays(payment.PaymentType)
	now := s.now()

	var transaction *models.WalletTransaction
	created := false

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		// OpenDispute takes the same collaboration lock before inserting.
		if err := database.ForUpdate(tx).Select("id").First(&models.Collaboration{}, "id = ?", collaborationID).Error; err != nil {
			return notFoundOr(err, ErrCollaborationNotFound)
		}

		var locked models.Payment
		if err := database.ForUpdate(tx).First(&locked, "id = ?", payment.ID).Error; err != nil {
			return notFoundOr(err, ErrPaymentNotFound)
		}

		if locked.EscrowStatus == models.EscrowStatusReleased {
			existing, err := s.findActiveTransaction(tx, collaborationID)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrNoEscrowedPayment
			}
			transaction = existing
			return nil
		}
		if !models.CanTransitionEscrow(locked.EscrowStatus, models.EscrowStatusReleased) {
			return ErrNoEscrowedPayment
		}

		var disputes []models.Dispute
		if err := tx.Where("collaboration_id = ?", collaborationID).
			Order("created_at DESC").
			Find(&disputes).Error; err != nil {
			return fmt.Errorf("failed to look up disputes: %w", err)
		}
		policy, err := policyFromDisputes(disputes)
		if err != nil {
			return err
		}

		split, err := ComputeSplit(gross, pct, policy)
		if err != nil {
			return err
		}

		result := tx.Model(&models.Payment{}).
			Where("id = ? AND escrow_status = ?", locked.ID, models.EscrowStatusEscrowed).
			Updates(map[string]interface{}{
				"escrow_status": models.EscrowStatusReleased,
				"completed_at":  now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to release payment: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return ErrLedgerInconsistent
		}

		currency := locked.Currency
		if currency == "" {
			currency = s.config.Payment.Currency
		}
		wallet, err := getOrCreateWallet(tx, collaboration.CreatorID, models.UserTypeCreator, currency)
		if err != nil {
			return err
		}

		transaction = &models.WalletTransaction{
			WalletID:              wallet.ID,
			CollaborationID:       collaborationID,
			PaymentID:             locked.ID,
			GrossAmount:           split.GrossAmount,
			PlatformFeePercentage: split.FeePercentage,
			PlatformFee:           split.PlatformFee,
			StandardNetAmount:     split.StandardNetAmount,
			NetAmount:             split.NetAmount,
			WithdrawnAmount:       decimal.Zero,
			ReleasePolicy:         split.Policy.Kind,
			PayoutPercentage:      split.Policy.PayoutPercentage,
			DisputeID:             split.Policy.DisputeID,
			RemainderAmount:       split.RemainderAmount,
			RemainderDisposition:  split.Policy.RemainderDisposition,
			Status:                models.WalletTxStatusPendingClearance,
			ClearanceDays:         clearanceDays,
			AvailableAt:           now.AddDate(0, 0, clearanceDays),
		}
		if err := tx.Create(transaction).Error; err != nil {
			return err
		}

		if err := tx.Model(wallet).Updates(map[string]interface{}{
			"pending_clearance": wallet.PendingClearance.Add(split.NetAmount),
			"total_earned":      wallet.TotalEarned.Add(split.NetAmount),
		}).Error; err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return transaction, created, nil
}

func (s *ReleaseService) releasePolicy(ctx context.Context, collaborationID uuid.UUID) (models.ReleasePolicy, error) {
	if s.disputes == nil {
		return models.StandardSplit(), nil
	}

	disputes, err := s.disputes.ListForCollaboration(ctx, collaborationID)
	if err != nil {
		return models.ReleasePolicy{}, fmt.Errorf("failed to look up disputes: %w", err)
	}
	return policyFromDisputes(disputes)
}

// policyFromDisputes expects disputes newest first. Any unresolved dispute
// blocks release; otherwise the newest resolved one decides the split, and a
// resolution without a payout percentage means the standard split.
func policyFromDisputes(disputes []models.Dispute) (models.ReleasePolicy, error) {
	for _, dispute := range disputes {
		if dispute.Status.Blocking() {
			return models.ReleasePolicy{}, ErrDisputeBlocksRelease
		}
	}

	for _, dispute := range disputes {
		if dispute.Status != models.DisputeStatusResolved {
			continue
		}
		if dispute.PayoutPercentage == nil {
			return models.StandardSplit(), nil
		}
		return models.DisputeAdjustedSplit(dispute.ID, *dispute.PayoutPercentage, dispute.RemainderDisposition), nil
	}

	return models.StandardSplit(), nil
}

// resolveEscrowedPayment looks for a payment linked to the collaboration
// itself first, then for one linked to the collaboration's booking.
func (s *ReleaseService) resolveEscrowedPayment(ctx context.Context, collaboration *models.Collaboration) (*models.Payment, error) {
	statuses := []models.EscrowStatus{models.EscrowStatusEscrowed, models.EscrowStatusReleased}

	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("collaboration_id = ? AND escrow_status IN ?", collaboration.ID, statuses).
		Order("created_at DESC").
		First(&payment).Error
	if err == nil {
		return &payment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to resolve payment: %w", err)
	}

	if collaboration.BookingID == nil {
		return nil, ErrNoEscrowedPayment
	}

	err = s.db.WithContext(ctx).
		Where("booking_id = ? AND escrow_status IN ?", *collaboration.BookingID, statuses).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, notFoundOr(err, ErrNoEscrowedPayment)
	}
	return &payment, nil
}

func (s *ReleaseService) grossAmount(ctx context.Context, payment *models.Payment, collaboration *models.Collaboration) (decimal.Decimal, error) {
	if payment.HeldAmount.IsPositive() {
		return payment.HeldAmount, nil
	}

	if payment.BookingID != nil {
		booking, err := s.collaborations.GetBooking(ctx, *payment.BookingID)
		if err != nil && !errors.Is(err, ErrBookingNotFound) {
			return decimal.Zero, err
		}
		if err == nil && booking.TotalAmount.IsPositive() {
			return booking.TotalAmount, nil
		}
	}

	if collaboration.TotalAmount.IsPositive() {
		return collaboration.TotalAmount, nil
	}

	return decimal.Zero, ErrMissingGrossAmount
}

func (s *ReleaseService) feePercentage(ctx context.Context, override *decimal.Decimal, payment *models.Payment, collaboration *models.Collaboration) (decimal.Decimal, error) {
	if override != nil {
		if !validPercentage(*override) {
			return decimal.Zero, ErrInvalidFeePercentage
		}
		return *override, nil
	}

	brandID := payment.BrandID
	if brandID == uuid.Nil {
		brandID = collaboration.BrandID
	}
	return s.fees.ResolveFeePercentage(ctx, brandID)
}

func (s *ReleaseService) findActiveTransaction(db *gorm.DB, collaborationID uuid.UUID) (*models.WalletTransaction, error) {
	var transaction models.WalletTransaction
	err := db.Where("collaboration_id = ? AND status <> ?", collaborationID, models.WalletTxStatusReversed).
		First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up wallet transaction: %w", err)
	}
	return &transaction, nil
}

// getOrCreateWallet returns the user's wallet locked for update.
func getOrCreateWallet(tx *gorm.DB, userID uuid.UUID, ownerType models.UserType, currency string) (*models.Wallet, error) {
	candidate := &models.Wallet{
		UserID:           userID,
		OwnerType:        ownerType,
		Currency:         currency,
		PendingClearance: decimal.Zero,
		AvailableBalance: decimal.Zero,
		TotalEarned:      decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(candidate).Error; err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	var wallet models.Wallet
	if err := database.ForUpdate(tx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return &wallet, nil
}
