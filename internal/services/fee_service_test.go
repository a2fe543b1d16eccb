package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/escrow-ledger/internal/models"
)

func TestComputeSplit(t *testing.T) {
	disputeID := uuid.New()

	tests := []struct {
		name      string
		gross     string
		fee       string
		policy    models.ReleasePolicy
		wantFee   string
		wantNet   string
		wantRest  string
		wantError error
	}{
		{
			name:    "standard ten percent",
			gross:   "100",
			fee:     "10",
			policy:  models.StandardSplit(),
			wantFee: "10", wantNet: "90", wantRest: "0",
		},
		{
			name:    "zero fee",
			gross:   "100",
			fee:     "0",
			policy:  models.StandardSplit(),
			wantFee: "0", wantNet: "100", wantRest: "0",
		},
		{
			name:    "fee truncated to four places",
			gross:   "0.0999",
			fee:     "10",
			policy:  models.StandardSplit(),
			wantFee: "0.0099", wantNet: "0.09", wantRest: "0",
		},
		{
			name:    "dispute adjusted half payout",
			gross:   "100",
			fee:     "10",
			policy:  models.DisputeAdjustedSplit(disputeID, decimal.NewFromInt(50), models.RemainderRefundToBrand),
			wantFee: "10", wantNet: "45", wantRest: "45",
		},
		{
			name:    "dispute adjusted zero payout",
			gross:   "100",
			fee:     "10",
			policy:  models.DisputeAdjustedSplit(disputeID, decimal.Zero, models.RemainderRetainByPlatform),
			wantFee: "10", wantNet: "0", wantRest: "90",
		},
		{
			name:    "adjusted net truncated",
			gross:   "10",
			fee:     "0",
			policy:  models.DisputeAdjustedSplit(disputeID, decimal.RequireFromString("33.33333"), models.RemainderRefundToBrand),
			wantFee: "0", wantNet: "3.3333", wantRest: "6.6667",
		},
		{
			name:      "missing gross",
			gross:     "0",
			fee:       "10",
			policy:    models.StandardSplit(),
			wantError: ErrMissingGrossAmount,
		},
		{
			name:      "fee above hundred",
			gross:     "100",
			fee:       "100.5",
			policy:    models.StandardSplit(),
			wantError: ErrInvalidFeePercentage,
		},
		{
			name:      "negative payout",
			gross:     "100",
			fee:       "10",
			policy:    models.DisputeAdjustedSplit(disputeID, decimal.NewFromInt(-1), models.RemainderRefundToBrand),
			wantError: ErrInvalidPayoutPercentage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := ComputeSplit(dec(tt.gross), dec(tt.fee), tt.policy)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.True(t, dec(tt.wantFee).Equal(split.PlatformFee), "fee %s", split.PlatformFee)
			assert.True(t, dec(tt.wantNet).Equal(split.NetAmount), "net %s", split.NetAmount)
			assert.True(t, dec(tt.wantRest).Equal(split.RemainderAmount), "remainder %s", split.RemainderAmount)
			assert.True(t, split.GrossAmount.Equal(split.PlatformFee.Add(split.StandardNetAmount)))
			assert.True(t, split.StandardNetAmount.Equal(split.NetAmount.Add(split.RemainderAmount)))
		})
	}
}

func TestTierFeePercentage(t *testing.T) {
	assert.True(t, decimal.NewFromInt(5).Equal(TierFeePercentage(models.SubscriptionTierPremium)))
	assert.True(t, decimal.NewFromInt(10).Equal(TierFeePercentage(models.SubscriptionTierPro)))
	assert.True(t, decimal.NewFromInt(10).Equal(TierFeePercentage(models.SubscriptionTierFree)))
}

type FeeServiceTestSuite struct {
	ledgerSuite
}

func (s *FeeServiceTestSuite) TestFallsBackToConfiguredFee() {
	pct, err := s.fees.ResolveFeePercentage(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.assertDecimal("10", pct)
}

func (s *FeeServiceTestSuite) TestAdminSettingOverridesConfig() {
	settings := NewSettingsService(s.db)
	fee := dec("7.5")
	s.Require().NoError(settings.UpdatePaymentSettings(s.ctx, s.adminID, &UpdatePaymentSettingsRequest{PlatformFeePercentage: &fee}))

	pct, err := s.fees.ResolveFeePercentage(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.assertDecimal("7.5", pct)
}

func (s *FeeServiceTestSuite) TestSeededFloatSettingIsRead() {
	s.Require().NoError(s.db.Create(&models.AdminSettings{
		Category:  models.SettingsCategoryPayments,
		Key:       models.SettingPlatformFeePercent,
		Value:     models.JSONB{"value": 12.0},
		DataType:  "float",
		UpdatedBy: s.adminID,
	}).Error)

	s.assertDecimal("12", s.fees.PlatformFeePercentage(s.ctx))
}

func (s *FeeServiceTestSuite) TestInvalidSettingFallsBack() {
	s.Require().NoError(s.db.Create(&models.AdminSettings{
		Category:  models.SettingsCategoryPayments,
		Key:       models.SettingPlatformFeePercent,
		Value:     models.JSONB{"value": "lots"},
		DataType:  "string",
		UpdatedBy: s.adminID,
	}).Error)

	s.assertDecimal("10", s.fees.PlatformFeePercentage(s.ctx))
}

func (s *FeeServiceTestSuite) TestPlanWithoutPercentageUsesTier() {
	brandID := uuid.New()
	plan := &models.SubscriptionPlan{Name: "Premium", Tier: models.SubscriptionTierPremium}
	s.Require().NoError(s.db.Create(plan).Error)
	s.Require().NoError(s.db.Create(&models.BrandSubscription{BrandID: brandID, PlanID: plan.ID, Status: "active"}).Error)

	pct, err := s.fees.ResolveFeePercentage(s.ctx, brandID)
	s.Require().NoError(err)
	s.assertDecimal("5", pct)
}

func (s *FeeServiceTestSuite) TestExpiredSubscriptionIsIgnored() {
	brandID := uuid.New()
	premium := dec("5")
	plan := &models.SubscriptionPlan{Name: "Premium", Tier: models.SubscriptionTierPremium, PlatformFeePercentage: &premium}
	s.Require().NoError(s.db.Create(plan).Error)

	expired := s.clock.Add(-time.Hour)
	s.Require().NoError(s.db.Create(&models.BrandSubscription{BrandID: brandID, PlanID: plan.ID, Status: "active", ExpiresAt: &expired}).Error)

	pct, err := s.fees.ResolveFeePercentage(s.ctx, brandID)
	s.Require().NoError(err)
	s.assertDecimal("10", pct)
}

func (s *FeeServiceTestSuite) TestMinimumCashout() {
	s.assertDecimal("10", s.fees.MinimumCashout(s.ctx))

	settings := NewSettingsService(s.db)
	minimum := dec("25")
	s.Require().NoError(settings.UpdatePaymentSettings(s.ctx, s.adminID, &UpdatePaymentSettingsRequest{MinimumCashout: &minimum}))
	s.assertDecimal("25", s.fees.MinimumCashout(s.ctx))

	minimum = dec("30")
	s.Require().NoError(settings.UpdatePaymentSettings(s.ctx, s.adminID, &UpdatePaymentSettingsRequest{MinimumCashout: &minimum}))
	s.assertDecimal("30", s.fees.MinimumCashout(s.ctx))

	all, err := settings.GetSettings(s.ctx)
	s.Require().NoError(err)
	s.Contains(all, "payments.minimum_cashout")
}

func (s *FeeServiceTestSuite) TestSettingsValidation() {
	settings := NewSettingsService(s.db)

	fee := dec("101")
	s.ErrorIs(settings.UpdatePaymentSettings(s.ctx, s.adminID, &UpdatePaymentSettingsRequest{PlatformFeePercentage: &fee}), ErrInvalidFeePercentage)

	minimum := dec("-1")
	s.ErrorIs(settings.UpdatePaymentSettings(s.ctx, s.adminID, &UpdatePaymentSettingsRequest{MinimumCashout: &minimum}), ErrInvalidAmount)
}

func (s *FeeServiceTestSuite) TestClearanceDaysPerPaymentType() {
	s.cfg.Ledger.ClearanceByType = map[string]int{"booking": 3}

	s.Equal(3, s.fees.ClearanceDays(models.PaymentTypeBooking))
	s.Equal(7, s.fees.ClearanceDays(models.PaymentTypeCollaboration))
}

func TestFeeServiceSuite(t *testing.T) {
	suite.Run(t, new(FeeServiceTestSuite))
}
