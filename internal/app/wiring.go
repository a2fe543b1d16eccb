// internal/app/wiring.go
package app

import (
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/router"
	"github.com/javajoker/escrow-ledger/internal/services"
)

// ConfigureLogging sets the logrus format and level for the process.
func ConfigureLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stdout)
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// OpenDatabase connects, migrates and seeds the ledger database.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		database.Close(db)
		return nil, err
	}
	if err := database.SeedInitialData(db, cfg); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

// Runtime holds the process-wide collaborators that need closing.
type Runtime struct {
	Services  *router.Services
	publisher services.EventPublisher
}

// NewRuntime picks Kafka when brokers are configured and a log publisher
// otherwise; the Stripe gateway is only wired when a key is present.
func NewRuntime(db *gorm.DB, cfg *config.Config) (*Runtime, error) {
	var publisher services.EventPublisher = services.NewLogPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := services.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		if err != nil {
			return nil, err
		}
		publisher = kafkaPublisher
	}

	var gateway services.PaymentGateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = services.NewStripeGateway(cfg.Payment.StripeSecretKey)
	}

	store, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Services:  router.BuildServices(db, cfg, publisher, gateway, store),
		publisher: publisher,
	}, nil
}

func (r *Runtime) Close() {
	if closer, ok := r.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close event publisher")
		}
	}
}
