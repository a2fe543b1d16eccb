// internal/services/clearance_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/metrics"
	"github.com/javajoker/escrow-ledger/internal/models"
)

type ClearanceService struct {
	db        *gorm.DB
	config    *config.Config
	publisher EventPublisher
	now       func() time.Time
	backoff   time.Duration
}

func NewClearanceService(db *gorm.DB, config *config.Config, publisher EventPublisher) *ClearanceService {
	return &ClearanceService{
		db:        db,
		config:    config,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		backoff:   200 * time.Millisecond,
	}
}

// ClearPendingTransactions promotes every pending_clearance transaction whose
// clearance date has passed. Each promotion commits on its own, so a failure
// leaves the others intact and a rerun picks up what is left.
func (s *ClearanceService) ClearPendingTransactions(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.ClearanceRunDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("status = ? AND available_at <= ?", models.WalletTxStatusPendingClearance, now).
		Order("available_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to select due transactions: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	size := s.config.Scheduler.WorkerPoolSize
	if size <= 0 || size > len(ids) {
		size = len(ids)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return 0, fmt.Errorf("failed to create clearance pool: %w", err)
	}
	defer pool.Release()

	var (
		promoted atomic.Int64
		wg       sync.WaitGroup
		mu       sync.Mutex
		errs     []error
	)

	for _, id := range ids {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			ok, err := s.promoteWithRetry(ctx, id, now)
			if err != nil {
				metrics.ClearanceFailures.Inc()
				mu.Lock()
				errs = append(errs, fmt.Errorf("wallet transaction %s: %w", id, err))
				mu.Unlock()
				return
			}
			if ok {
				promoted.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("wallet transaction %s: %w", id, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	count := int(promoted.Load())
	metrics.ClearancePromoted.Add(float64(count))

	logrus.WithFields(logrus.Fields{
		"due":      len(ids),
		"promoted": count,
		"failed":   len(errs),
	}).Info("Clearance sweep finished")

	return count, errors.Join(errs...)
}

func (s *ClearanceService) promoteWithRetry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	attempts := s.config.Scheduler.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := s.promote(ctx, id, now)
		if err == nil {
			return ok, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == attempts {
			break
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"wallet_transaction": id,
			"attempt":            attempt,
		}).Warn("Clearance promotion failed, retrying")

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return false, lastErr
}

// promote returns false without error when the row was already handled.
func (s *ClearanceService) promote(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var transaction models.WalletTransaction
	promoted := false

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&transaction, "id = ?", id).Error; err != nil {
			return notFoundOr(err, ErrWalletTransactionNotFound)
		}

		if transaction.Status != models.WalletTxStatusPendingClearance || transaction.AvailableAt.After(now) {
			return nil
		}

		result := tx.Model(&models.WalletTransaction{}).
			Where("id = ? AND status = ?", id, models.WalletTxStatusPendingClearance).
			Updates(map[string]interface{}{
				"status":     models.WalletTxStatusAvailable,
				"cleared_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return nil
		}

		var wallet models.Wallet
		if err := database.ForUpdate(tx).First(&wallet, "id = ?", transaction.WalletID).Error; err != nil {
			return notFoundOr(err, ErrWalletNotFound)
		}

		amount := transaction.Outstanding()
		if err := tx.Model(&wallet).Updates(map[string]interface{}{
			"pending_clearance": wallet.PendingClearance.Sub(amount),
			"available_balance": wallet.AvailableBalance.Add(amount),
		}).Error; err != nil {
			return err
		}

		promoted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if promoted {
		publish(ctx, s.publisher, EventFundsCleared, transaction.WalletID.String(), map[string]interface{}{
			"wallet_transaction_id": transaction.ID,
			"wallet_id":             transaction.WalletID,
			"collaboration_id":      transaction.CollaborationID,
			"amount":                transaction.Outstanding(),
		})
	}
	return promoted, nil
}
