// internal/services/fee_service.go
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

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/models"
)

const moneyScale = 4

var hundred = decimal.NewFromInt(100)

// PlanResolver yields the platform fee percentage that applies to a brand.
type PlanResolver interface {
	ResolveFeePercentage(ctx context.Context, brandID uuid.UUID) (decimal.Decimal, error)
}

// ClearancePolicy yields the clearance window for a payment type.
type ClearancePolicy interface {
	ClearanceDays(paymentType models.PaymentType) int
}

type FeeCalculator interface {
	PlanResolver
	ClearancePolicy
}

// Split is the result of applying a fee and a release policy to a gross amount.
type Split struct {
	GrossAmount       decimal.Decimal
	FeePercentage     decimal.Decimal
	PlatformFee       decimal.Decimal
	StandardNetAmount decimal.Decimal
	NetAmount         decimal.Decimal
	RemainderAmount   decimal.Decimal
	Policy            models.ReleasePolicy
}

// ComputeSplit truncates fee and adjusted net to 4 decimal places, so the
// creator is never credited more than the exact share.
func ComputeSplit(gross, feePercentage decimal.Decimal, policy models.ReleasePolicy) (Split, error) {
	if !gross.IsPositive() {
		return Split{}, ErrMissingGrossAmount
	}
	if !validPercentage(feePercentage) {
		return Split{}, ErrInvalidFeePercentage
	}

	fee := gross.Mul(feePercentage).Div(hundred).Truncate(moneyScale)
	standardNet := gross.Sub(fee)

	split := Split{
		GrossAmount:       gross,
		FeePercentage:     feePercentage,
		PlatformFee:       fee,
		StandardNetAmount: standardNet,
		NetAmount:         standardNet,
		RemainderAmount:   decimal.Zero,
		Policy:            policy,
	}

	if policy.IsAdjusted() {
		if !validPercentage(policy.PayoutPercentage) {
			return Split{}, ErrInvalidPayoutPercentage
		}
		split.NetAmount = standardNet.Mul(policy.PayoutPercentage).Div(hundred).Truncate(moneyScale)
		split.RemainderAmount = standardNet.Sub(split.NetAmount)
	}

	return split, nil
}

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// TierFeePercentage is used when a plan row carries no explicit percentage.
func TierFeePercentage(tier models.SubscriptionTier) decimal.Decimal {
	switch tier {
	case models.SubscriptionTierPremium:
		return decimal.NewFromInt(5)
	default:
		return decimal.NewFromInt(10)
	}
}

type FeeService struct {
	db     *gorm.DB
	config *config.Config
	now    func() time.Time
}

func NewFeeService(db *gorm.DB, config *config.Config) *FeeService {
	return &FeeService{
		db:     db,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *FeeService) ResolveFeePercentage(ctx context.Context, brandID uuid.UUID) (decimal.Decimal, error) {
	var subscription models.BrandSubscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("brand_id = ? AND status = ?", brandID, "active").
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Order("created_at DESC").
		First(&subscription).Error

	switch {
	case err == nil:
		if subscription.Plan.PlatformFeePercentage != nil {
			return *subscription.Plan.PlatformFeePercentage, nil
		}
		return TierFeePercentage(subscription.Plan.Tier), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.PlatformFeePercentage(ctx), nil
	default:
		return decimal.Zero, fmt.Errorf("failed to resolve subscription for brand %s: %w", brandID, err)
	}
}

// PlatformFeePercentage reads the admin setting and falls back to configuration.
func (s *FeeService) PlatformFeePercentage(ctx context.Context) decimal.Decimal {
	fallback := decimal.NewFromFloat(s.config.Payment.PlatformFeePercent)

	var setting models.AdminSettings
	err := s.db.WithContext(ctx).
		Where(&models.AdminSettings{Category: models.SettingsCategoryPayments, Key: models.SettingPlatformFeePercent}).
		First(&setting).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Warn("Failed to read platform fee setting, using configured default")
		}
		return fallback
	}

	pct, ok := settingDecimal(setting.Value)
	if !ok || !validPercentage(pct) {
		logrus.WithField("value", setting.Value["value"]).Warn("Invalid platform fee setting, using configured default")
		return fallback
	}
	return pct
}

// MinimumCashout reads the admin setting and falls back to configuration.
func (s *FeeService) MinimumCashout(ctx context.Context) decimal.Decimal {
	fallback := decimal.NewFromFloat(s.config.Payment.MinimumCashout)

	var setting models.AdminSettings
	err := s.db.WithContext(ctx).
		Where(&models.AdminSettings{Category: models.SettingsCategoryPayments, Key: models.SettingMinimumCashout}).
		First(&setting).Error
	if err != nil {
		return fallback
	}

	minimum, ok := settingDecimal(setting.Value)
	if !ok || minimum.IsNegative() {
		return fallback
	}
	return minimum
}

func (s *FeeService) ClearanceDays(paymentType models.PaymentType) int {
	return s.config.Ledger.ClearanceDaysFor(string(paymentType))
}

func settingDecimal(value models.JSONB) (decimal.Decimal, bool) {
	switch v := value["value"].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
