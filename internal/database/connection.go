// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", db.Dialector.Name()).Info("Database connection established")
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Collaboration{},
		&models.Booking{},
		&models.SubscriptionPlan{},
		&models.BrandSubscription{},
		&models.Payment{},
		&models.PaymentVerification{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.CashoutRequest{},
		&models.Dispute{},
		&models.AdminSettings{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// The release idempotency backstop; without it a double release is possible.
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_wallet_tx_active_collaboration ON wallet_transactions (collaboration_id) WHERE status <> 'reversed'",
	).Error; err != nil {
		return fmt.Errorf("failed to create wallet transaction unique index: %w", err)
	}

	createIndexes(db)

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_escrow_collaboration ON payments(collaboration_id, escrow_status)",
		"CREATE INDEX IF NOT EXISTS idx_payments_escrow_booking ON payments(booking_id, escrow_status)",
		"CREATE INDEX IF NOT EXISTS idx_wallet_tx_clearance ON wallet_transactions(status, available_at)",
		"CREATE INDEX IF NOT EXISTS idx_wallet_tx_wallet_created ON wallet_transactions(wallet_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_cashout_requests_wallet_status ON cashout_requests(wallet_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_disputes_collaboration_status ON disputes(collaboration_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_brand_subscriptions_active ON brand_subscriptions(brand_id, status, expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}
}

// SeedInitialData creates the default subscription plans and payment settings.
func SeedInitialData(db *gorm.DB, cfg *config.Config) error {
	logrus.Info("Seeding initial data...")

	pro := decimal.NewFromInt(10)
	premium := decimal.NewFromInt(5)
	plans := []models.SubscriptionPlan{
		{Name: "Free", Tier: models.SubscriptionTierFree},
		{Name: "Pro", Tier: models.SubscriptionTierPro, PlatformFeePercentage: &pro},
		{Name: "Premium", Tier: models.SubscriptionTierPremium, PlatformFeePercentage: &premium},
	}

	for _, plan := range plans {
		var count int64
		db.Model(&models.SubscriptionPlan{}).Where("tier = ?", plan.Tier).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&plan).Error; err != nil {
			return fmt.Errorf("failed to create %s plan: %w", plan.Tier, err)
		}
	}

	defaultSettings := []models.AdminSettings{
		{
			Category:    models.SettingsCategoryPayments,
			Key:         models.SettingPlatformFeePercent,
			Value:       models.JSONB{"value": cfg.Payment.PlatformFeePercent},
			DataType:    "float",
			Description: "Platform fee percentage applied when a brand has no active subscription",
		},
		{
			Category:    models.SettingsCategoryPayments,
			Key:         models.SettingMinimumCashout,
			Value:       models.JSONB{"value": cfg.Payment.MinimumCashout},
			DataType:    "float",
			Description: "Minimum amount for cashout requests",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.AdminSettings{}).
			Where(&models.AdminSettings{Category: setting.Category, Key: setting.Key}).
			Count(&count)

		if count == 0 {
			setting.UpdatedBy = cfg.Ledger.SystemActorID
			if err := db.Create(&setting).Error; err != nil {
				logrus.WithError(err).Warnf("Failed to create setting %s.%s", setting.Category, setting.Key)
			}
		}
	}

	logrus.Info("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// ForUpdate adds SELECT ... FOR UPDATE on PostgreSQL. SQLite serializes
// writers itself and has no row locks.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
