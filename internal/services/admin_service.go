// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/models"
)

// SettingsService manages the admin-editable payment settings that the fee
// and cashout rules read at runtime.
type SettingsService struct {
	db *gorm.DB
}

type UpdatePaymentSettingsRequest struct {
	PlatformFeePercentage *decimal.Decimal `json:"platform_fee_percentage,omitempty"`
	MinimumCashout        *decimal.Decimal `json:"minimum_cashout,omitempty"`
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

func (s *SettingsService) GetSettings(ctx context.Context) (map[string]models.AdminSettings, error) {
	var settings []models.AdminSettings
	if err := s.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	settingsMap := make(map[string]models.AdminSettings, len(settings))
	for _, setting := range settings {
		settingsMap[fmt.Sprintf("%s.%s", setting.Category, setting.Key)] = setting
	}
	return settingsMap, nil
}

func (s *SettingsService) UpdatePaymentSettings(ctx context.Context, adminID uuid.UUID, req *UpdatePaymentSettingsRequest) error {
	if req.PlatformFeePercentage != nil && !validPercentage(*req.PlatformFeePercentage) {
		return ErrInvalidFeePercentage
	}
	if req.MinimumCashout != nil && req.MinimumCashout.IsNegative() {
		return ErrInvalidAmount
	}

	if req.PlatformFeePercentage != nil {
		if err := s.updateSetting(ctx, models.SettingPlatformFeePercent, *req.PlatformFeePercentage, adminID); err != nil {
			return err
		}
	}
	if req.MinimumCashout != nil {
		if err := s.updateSetting(ctx, models.SettingMinimumCashout, *req.MinimumCashout, adminID); err != nil {
			return err
		}
	}
	return nil
}

// updateSetting stores decimals as strings so they survive the JSON round trip exactly.
func (s *SettingsService) updateSetting(ctx context.Context, key string, value decimal.Decimal, adminID uuid.UUID) error {
	db := s.db.WithContext(ctx)

	var setting models.AdminSettings
	err := db.Where("category = ? AND key = ?", models.SettingsCategoryPayments, key).First(&setting).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.AdminSettings{
			Category:  models.SettingsCategoryPayments,
			Key:       key,
			Value:     models.JSONB{"value": value.String()},
			DataType:  "decimal",
			UpdatedBy: adminID,
		}
		if err := db.Create(&setting).Error; err != nil {
			return fmt.Errorf("failed to create setting: %w", err)
		}
	case err != nil:
		return fmt.Errorf("database error: %w", err)
	default:
		oldValue := setting.Value["value"]
		setting.Value = models.JSONB{"value": value.String()}
		setting.DataType = "decimal"
		setting.UpdatedBy = adminID
		if err := db.Save(&setting).Error; err != nil {
			return fmt.Errorf("failed to update setting: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"setting":  key,
			"old":      oldValue,
			"new":      value.String(),
			"admin_id": adminID,
		}).Info("Payment setting updated")
	}
	return nil
}
