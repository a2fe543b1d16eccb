// internal/services/escrow_service.go
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
)

type EscrowService struct {
	db        *gorm.DB
	config    *config.Config
	gateway   PaymentGateway
	publisher EventPublisher
	now       func() time.Time
}

type VerifyPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method" validate:"required,max=50"`
	Notes  string          `json:"notes,omitempty" validate:"max=1000"`
}

type RefundPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// NewEscrowService accepts a nil gateway; automated verification is then unavailable.
func NewEscrowService(db *gorm.DB, config *config.Config, gateway PaymentGateway, publisher EventPublisher) *EscrowService {
	return &EscrowService{
		db:        db,
		config:    config,
		gateway:   gateway,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *EscrowService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Verification").First(&payment, "id = ?", paymentID).Error; err != nil {
		return nil, notFoundOr(err, ErrPaymentNotFound)
	}
	return &payment, nil
}

// VerifyPayment moves a pending payment into escrow. A nil adminID records the
// configured system actor.
func (s *EscrowService) VerifyPayment(ctx context.Context, paymentID uuid.UUID, adminID *uuid.UUID, req *VerifyPaymentRequest) (*models.Payment, error) {
	if !validMoney(req.Amount) {
		return nil, ErrInvalidAmount
	}

	actor := s.config.Ledger.SystemActorID
	if adminID != nil {
		actor = *adminID
	}

	now := s.now()
	var verification models.PaymentVerification

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var payment models.Payment
		if err := database.ForUpdate(tx).First(&payment, "id = ?", paymentID).Error; err != nil {
			return notFoundOr(err, ErrPaymentNotFound)
		}

		if payment.Status != models.PaymentStatusPending || !models.CanTransitionEscrow(payment.EscrowStatus, models.EscrowStatusEscrowed) {
			return ErrAlreadyVerified
		}
		if req.Amount.GreaterThan(payment.Amount) {
			return ErrAmountExceedsPayment
		}

		verification = models.PaymentVerification{
			PaymentID:  payment.ID,
			AdminID:    actor,
			Amount:     req.Amount,
			Method:     req.Method,
			Notes:      req.Notes,
			VerifiedAt: now,
		}
		if err := tx.Create(&verification).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyVerified
			}
			return fmt.Errorf("failed to record verification: %w", err)
		}

		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ? AND escrow_status = ?", payment.ID, models.PaymentStatusPending, models.EscrowStatusNone).
			Updates(map[string]interface{}{
				"status":        models.PaymentStatusVerified,
				"escrow_status": models.EscrowStatusEscrowed,
				"held_amount":   req.Amount,
				"verified_at":   now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to escrow payment: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return ErrAlreadyVerified
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"admin_id":   actor,
		"amount":     req.Amount.String(),
	}).Info("Payment verified and escrowed")

	publish(ctx, s.publisher, EventPaymentVerified, paymentID.String(), verification)

	return s.GetPayment(ctx, paymentID)
}

// VerifyWithGateway asks the gateway whether the payment succeeded and, if so,
// escrows the confirmed amount on behalf of the system actor.
func (s *EscrowService) VerifyWithGateway(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.GatewayReference == "" {
		return nil, ErrMissingGatewayReference
	}
	if !models.CanTransitionEscrow(payment.EscrowStatus, models.EscrowStatusEscrowed) {
		return nil, ErrAlreadyVerified
	}

	confirmation, err := s.gateway.Confirm(ctx, payment.GatewayReference)
	if err != nil {
		return nil, err
	}
	if !confirmation.Succeeded {
		return nil, ErrGatewayPaymentIncomplete
	}

	amount := decimal.Min(confirmation.Amount, payment.Amount)
	method := payment.PaymentMethod
	if method == "" {
		method = "gateway"
	}

	return s.VerifyPayment(ctx, paymentID, nil, &VerifyPaymentRequest{
		Amount: amount,
		Method: method,
		Notes:  "confirmed by gateway reference " + confirmation.Reference,
	})
}

// RefundPayment returns escrowed or not-yet-escrowed funds to the brand.
// Released funds can only be clawed back through a wallet transaction reversal.
func (s *EscrowService) RefundPayment(ctx context.Context, paymentID uuid.UUID, adminID *uuid.UUID, reason string) (*models.Payment, error) {
	actor := s.config.Ledger.SystemActorID
	if adminID != nil {
		actor = *adminID
	}

	now := s.now()
	var refunded decimal.Decimal

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var payment models.Payment
		if err := database.ForUpdate(tx).First(&payment, "id = ?", paymentID).Error; err != nil {
			return notFoundOr(err, ErrPaymentNotFound)
		}

		if !payment.Refundable() {
			return fmt.Errorf("%w: payment is %s with escrow %s", ErrInvalidTransition, payment.Status, payment.EscrowStatus)
		}

		refunded = payment.Amount
		if payment.EscrowStatus == models.EscrowStatusEscrowed {
			refunded = payment.HeldAmount
		}

		result := tx.Model(&models.Payment{}).
			Where("id = ? AND escrow_status = ? AND status = ?", payment.ID, payment.EscrowStatus, payment.Status).
			Updates(map[string]interface{}{
				"status":          models.PaymentStatusRefunded,
				"escrow_status":   models.EscrowStatusRefunded,
				"held_amount":     decimal.Zero,
				"refunded_amount": refunded,
				"refunded_at":     now,
				"refund_reason":   reason,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to refund payment: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return ErrInvalidTransition
		}

		// The gateway call is last so a failure rolls the state change back.
		if s.gateway != nil && payment.GatewayReference != "" && refunded.IsPositive() {
			if err := s.gateway.Refund(ctx, payment.GatewayReference, refunded, reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"admin_id":   actor,
		"amount":     refunded.String(),
	}).Info("Payment refunded")

	publish(ctx, s.publisher, EventPaymentRefunded, paymentID.String(), map[string]interface{}{
		"payment_id":  paymentID,
		"amount":      refunded,
		"reason":      reason,
		"refunded_by": actor,
	})

	return s.GetPayment(ctx, paymentID)
}

func validMoney(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(moneyScale))
}
