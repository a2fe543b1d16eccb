// internal/services/cashout_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/metrics"
	"github.com/javajoker/escrow-ledger/internal/models"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type CashoutLimits interface {
	MinimumCashout(ctx context.Context) decimal.Decimal
}

type CashoutService struct {
	db        *gorm.DB
	config    *config.Config
	limits    CashoutLimits
	publisher EventPublisher
	now       func() time.Time
}

type CashoutRequestInput struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method" validate:"required,oneof=bank_transfer paypal stripe"`
}

type RejectCashoutRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func NewCashoutService(db *gorm.DB, config *config.Config, limits CashoutLimits, publisher EventPublisher) *CashoutService {
	return &CashoutService{
		db:        db,
		config:    config,
		limits:    limits,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestCashout records a withdrawal request. Balances move only on approval.
func (s *CashoutService) RequestCashout(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, method string) (*models.CashoutRequest, error) {
	if !validMoney(amount) {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(s.limits.MinimumCashout(ctx)) {
		return nil, ErrBelowMinimumCashout
	}

	var wallet models.Wallet
	if err := s.db.WithContext(ctx).First(&wallet, "id = ?", walletID).Error; err != nil {
		return nil, notFoundOr(err, ErrWalletNotFound)
	}

	if amount.GreaterThan(wallet.AvailableBalance) {
		return nil, ErrInsufficientBalance
	}

	request := &models.CashoutRequest{
		WalletID:    wallet.ID,
		Amount:      amount,
		Method:      method,
		Status:      models.CashoutStatusPending,
		RequestedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, fmt.Errorf("failed to create cashout request: %w", err)
	}

	metrics.Cashouts.WithLabelValues(string(models.CashoutStatusPending)).Inc()
	publish(ctx, s.publisher, EventCashoutRequested, wallet.ID.String(), request)
	return request, nil
}

// ApproveCashout debits the wallet and consumes available transactions oldest
// first. If the balance no longer covers the request nothing changes.
func (s *CashoutService) ApproveCashout(ctx context.Context, requestID, adminID uuid.UUID) (*models.CashoutRequest, error) {
	now := s.now()
	var request models.CashoutRequest

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&request, "id = ?", requestID).Error; err != nil {
			return notFoundOr(err, ErrCashoutNotFound)
		}
		if request.Status != models.CashoutStatusPending {
			return ErrCashoutProcessed
		}

		var wallet models.Wallet
		if err := database.ForUpdate(tx).First(&wallet, "id = ?", request.WalletID).Error; err != nil {
			return notFoundOr(err, ErrWalletNotFound)
		}
		if request.Amount.GreaterThan(wallet.AvailableBalance) {
			return ErrInsufficientBalance
		}

		if err := consumeAvailable(tx, wallet.ID, request.Amount); err != nil {
			return err
		}

		if err := tx.Model(&wallet).Updates(map[string]interface{}{
			"available_balance": wallet.AvailableBalance.Sub(request.Amount),
			"total_withdrawn":   wallet.TotalWithdrawn.Add(request.Amount),
		}).Error; err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}

		result := tx.Model(&models.CashoutRequest{}).
			Where("id = ? AND status = ?", request.ID, models.CashoutStatusPending).
			Updates(map[string]interface{}{
				"status":       models.CashoutStatusPaid,
				"processed_at": now,
				"processed_by": adminID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrCashoutProcessed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = models.CashoutStatusPaid
	request.ProcessedAt = &now
	request.ProcessedBy = &adminID

	logrus.WithFields(logrus.Fields{
		"cashout_id": request.ID,
		"wallet_id":  request.WalletID,
		"amount":     request.Amount.String(),
		"admin_id":   adminID,
	}).Info("Cashout approved")

	metrics.Cashouts.WithLabelValues(string(models.CashoutStatusPaid)).Inc()
	publish(ctx, s.publisher, EventCashoutPaid, request.WalletID.String(), request)
	return &request, nil
}

func (s *CashoutService) RejectCashout(ctx context.Context, requestID, adminID uuid.UUID, reason string) (*models.CashoutRequest, error) {
	now := s.now()

	result := s.db.WithContext(ctx).Model(&models.CashoutRequest{}).
		Where("id = ? AND status = ?", requestID, models.CashoutStatusPending).
		Updates(map[string]interface{}{
			"status":           models.CashoutStatusRejected,
			"processed_at":     now,
			"processed_by":     adminID,
			"rejection_reason": reason,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to reject cashout: %w", result.Error)
	}

	request, err := s.GetCashout(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, ErrCashoutProcessed
	}

	metrics.Cashouts.WithLabelValues(string(models.CashoutStatusRejected)).Inc()
	publish(ctx, s.publisher, EventCashoutRejected, request.WalletID.String(), request)
	return request, nil
}

func (s *CashoutService) GetCashout(ctx context.Context, requestID uuid.UUID) (*models.CashoutRequest, error) {
	var request models.CashoutRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		return nil, notFoundOr(err, ErrCashoutNotFound)
	}
	return &request, nil
}

func (s *CashoutService) ListCashouts(ctx context.Context, walletID *uuid.UUID, status string, params utils.PaginationParams) ([]models.CashoutRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.CashoutRequest{})
	if walletID != nil {
		query = query.Where("wallet_id = ?", *walletID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cashout requests: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "requested_at", "amount", "status"})
	query = utils.ApplyPagination(query, params)

	var requests []models.CashoutRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch cashout requests: %w", err)
	}
	return requests, total, nil
}

// consumeAvailable marks withdrawn amounts on available transactions, oldest first.
func consumeAvailable(tx *gorm.DB, walletID uuid.UUID, amount decimal.Decimal) error {
	var transactions []models.WalletTransaction
	if err := database.ForUpdate(tx).
		Where("wallet_id = ? AND status = ?", walletID, models.WalletTxStatusAvailable).
		Order("available_at ASC, created_at ASC").
		Find(&transactions).Error; err != nil {
		return fmt.Errorf("failed to load available transactions: %w", err)
	}

	remaining := amount
	for _, transaction := range transactions {
		if !remaining.IsPositive() {
			break
		}

		take := decimal.Min(transaction.Outstanding(), remaining)
		if !take.IsPositive() {
			continue
		}

		withdrawn := transaction.WithdrawnAmount.Add(take)
		updates := map[string]interface{}{"withdrawn_amount": withdrawn}
		if withdrawn.Equal(transaction.NetAmount) {
			updates["status"] = models.WalletTxStatusWithdrawn
		}
		if err := tx.Model(&models.WalletTransaction{}).Where("id = ?", transaction.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark withdrawal: %w", err)
		}
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return fmt.Errorf("%w: available transactions do not cover the wallet balance", ErrLedgerInconsistent)
	}
	return nil
}
