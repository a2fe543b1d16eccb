// internal/services/wallet_service.go
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
	"github.com/javajoker/escrow-ledger/internal/models"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type WalletService struct {
	db        *gorm.DB
	config    *config.Config
	publisher EventPublisher
	now       func() time.Time
}

type ReverseTransactionRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// Reconciliation compares stored wallet balances with the sums of its transactions.
type Reconciliation struct {
	WalletID          uuid.UUID       `json:"wallet_id"`
	PendingClearance  decimal.Decimal `json:"pending_clearance"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
	ExpectedPending   decimal.Decimal `json:"expected_pending"`
	ExpectedAvailable decimal.Decimal `json:"expected_available"`
	Balanced          bool            `json:"balanced"`
}

func NewWalletService(db *gorm.DB, config *config.Config, publisher EventPublisher) *WalletService {
	return &WalletService{
		db:        db,
		config:    config,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *WalletService) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).First(&wallet, "id = ?", walletID).Error; err != nil {
		return nil, notFoundOr(err, ErrWalletNotFound)
	}
	return &wallet, nil
}

func (s *WalletService) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, ErrWalletNotFound)
	}
	return &wallet, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, walletID uuid.UUID, status string, params utils.PaginationParams) ([]models.WalletTransaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("wallet_id = ?", walletID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wallet transactions: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "available_at", "net_amount", "status"})
	query = utils.ApplyPagination(query, params)

	var transactions []models.WalletTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch wallet transactions: %w", err)
	}
	return transactions, total, nil
}

// ReconcileWallet recomputes the expected balances from the wallet's
// transactions. Withdrawn amounts are already excluded from both sums.
func (s *WalletService) ReconcileWallet(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error) {
	wallet, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	var transactions []models.WalletTransaction
	if err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND status IN ?", walletID,
			[]models.WalletTransactionStatus{models.WalletTxStatusPendingClearance, models.WalletTxStatusAvailable}).
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet transactions: %w", err)
	}

	pending, available := decimal.Zero, decimal.Zero
	for i := range transactions {
		switch transactions[i].Status {
		case models.WalletTxStatusPendingClearance:
			pending = pending.Add(transactions[i].Outstanding())
		case models.WalletTxStatusAvailable:
			available = available.Add(transactions[i].Outstanding())
		}
	}

	result := &Reconciliation{
		WalletID:          wallet.ID,
		PendingClearance:  wallet.PendingClearance,
		AvailableBalance:  wallet.AvailableBalance,
		ExpectedPending:   pending,
		ExpectedAvailable: available,
		Balanced:          pending.Equal(wallet.PendingClearance) && available.Equal(wallet.AvailableBalance),
	}

	if !result.Balanced {
		logrus.WithFields(logrus.Fields{
			"wallet_id":          wallet.ID,
			"pending_clearance":  wallet.PendingClearance.String(),
			"expected_pending":   pending.String(),
			"available_balance":  wallet.AvailableBalance.String(),
			"expected_available": available.String(),
		}).Error("Wallet balances do not match transactions")
	}
	return result, nil
}

// ReverseTransaction cancels a release that has not been withdrawn in full.
// The outstanding amount leaves the bucket it currently sits in; total_earned
// is historical and stays as it is.
func (s *WalletService) ReverseTransaction(ctx context.Context, transactionID, adminID uuid.UUID, reason string) (*models.WalletTransaction, error) {
	now := s.now()
	var transaction models.WalletTransaction

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&transaction, "id = ?", transactionID).Error; err != nil {
			return notFoundOr(err, ErrWalletTransactionNotFound)
		}

		var column string
		switch transaction.Status {
		case models.WalletTxStatusPendingClearance:
			column = "pending_clearance"
		case models.WalletTxStatusAvailable:
			column = "available_balance"
		default:
			return fmt.Errorf("%w: wallet transaction is %s", ErrInvalidTransition, transaction.Status)
		}

		result := tx.Model(&models.WalletTransaction{}).
			Where("id = ? AND status = ?", transaction.ID, transaction.Status).
			Updates(map[string]interface{}{
				"status":          models.WalletTxStatusReversed,
				"reversed_at":     now,
				"reversal_reason": reason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrInvalidTransition
		}

		var wallet models.Wallet
		if err := database.ForUpdate(tx).First(&wallet, "id = ?", transaction.WalletID).Error; err != nil {
			return notFoundOr(err, ErrWalletNotFound)
		}

		current := wallet.PendingClearance
		if column == "available_balance" {
			current = wallet.AvailableBalance
		}
		remaining := current.Sub(transaction.Outstanding())
		if remaining.IsNegative() {
			return fmt.Errorf("%w: %s would become negative", ErrLedgerInconsistent, column)
		}

		return tx.Model(&wallet).Update(column, remaining).Error
	})
	if err != nil {
		return nil, err
	}

	transaction.Status = models.WalletTxStatusReversed
	transaction.ReversedAt = &now
	transaction.ReversalReason = reason

	logrus.WithFields(logrus.Fields{
		"wallet_transaction": transaction.ID,
		"wallet_id":          transaction.WalletID,
		"amount":             transaction.Outstanding().String(),
		"admin_id":           adminID,
	}).Warn("Wallet transaction reversed")

	publish(ctx, s.publisher, EventTransactionReversed, transaction.WalletID.String(), &transaction)
	return &transaction, nil
}
