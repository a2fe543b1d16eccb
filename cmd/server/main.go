// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/escrow-ledger/internal/app"
	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/i18n"
	"github.com/javajoker/escrow-ledger/internal/router"
	"github.com/javajoker/escrow-ledger/internal/scheduler"
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

	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.Fatalf("Failed to initialize i18n: %v", err)
	}

	runtime, err := app.NewRuntime(db, cfg)
	if err != nil {
		logrus.Fatalf("Failed to wire services: %v", err)
	}
	defer runtime.Close()

	var jobs *scheduler.Manager
	if cfg.Scheduler.Enabled {
		jobs = startScheduler(cfg, runtime)
		defer jobs.Stop()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Initialize(db, cfg, runtime.Services),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func startScheduler(cfg *config.Config, runtime *app.Runtime) *scheduler.Manager {
	var locker gocron.Locker
	if cfg.Redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, scheduler runs without a distributed lock")
		} else {
			locker = scheduler.NewRedisLocker(client, "escrow-ledger:jobs:", time.Duration(cfg.Scheduler.LockTTL)*time.Second)
		}
	}

	interval := time.Duration(cfg.Scheduler.ClearanceInterval) * time.Second
	manager, err := scheduler.NewManager(locker, scheduler.NewClearanceJob(runtime.Services.Clearance, interval))
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := manager.RegisterJobs(); err != nil {
		logrus.Fatalf("Failed to register jobs: %v", err)
	}
	manager.Start()
	return manager
}
