// cmd/sweeper/main.go runs a single clearance sweep and exits. It is meant
// for cron or a Kubernetes CronJob when the in-process scheduler is disabled.
package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/escrow-ledger/internal/app"
	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	app.ConfigureLogging(cfg)

	db, err := app.OpenDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	runtime, err := app.NewRuntime(db, cfg)
	if err != nil {
		logrus.Fatalf("Failed to wire services: %v", err)
	}
	defer runtime.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	promoted, err := runtime.Services.Clearance.ClearPendingTransactions(ctx)
	if err != nil {
		logrus.WithError(err).WithField("promoted", promoted).Error("Clearance sweep finished with failures")
		runtime.Close()
		database.Close(db)
		os.Exit(1)
	}

	logrus.WithField("promoted", promoted).Info("Clearance sweep completed")
}
