// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/handlers"
	"github.com/javajoker/escrow-ledger/internal/middleware"
	"github.com/javajoker/escrow-ledger/internal/services"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

// Services holds the ledger services shared by the HTTP API and the scheduler.
type Services struct {
	Fees      *services.FeeService
	Escrow    *services.EscrowService
	Release   *services.ReleaseService
	Clearance *services.ClearanceService
	Cashout   *services.CashoutService
	Dispute   *services.DisputeService
	Wallet    *services.WalletService
	Export    *services.ExportService
	Settings  *services.SettingsService
}

// BuildServices wires the ledger services. gateway may be nil when no payment
// provider is configured.
func BuildServices(db *gorm.DB, cfg *config.Config, publisher services.EventPublisher, gateway services.PaymentGateway, store services.ObjectStore) *Services {
	fees := services.NewFeeService(db, cfg)
	collaborations := services.NewCollaborationReader(db)
	disputes := services.NewDisputeService(db, cfg, collaborations, publisher)

	return &Services{
		Fees:      fees,
		Escrow:    services.NewEscrowService(db, cfg, gateway, publisher),
		Release:   services.NewReleaseService(db, cfg, fees, collaborations, disputes, publisher),
		Clearance: services.NewClearanceService(db, cfg, publisher),
		Cashout:   services.NewCashoutService(db, cfg, fees, publisher),
		Dispute:   disputes,
		Wallet:    services.NewWalletService(db, cfg, publisher),
		Export:    services.NewExportService(db, cfg, store),
		Settings:  services.NewSettingsService(db),
	}
}

func Initialize(db *gorm.DB, cfg *config.Config, svc *Services) *gin.Engine {
	paymentHandler := handlers.NewPaymentHandler(svc.Escrow, svc.Release)
	walletHandler := handlers.NewWalletHandler(svc.Wallet, svc.Cashout)
	disputeHandler := handlers.NewDisputeHandler(svc.Dispute)
	adminHandler := handlers.NewAdminHandler(svc.Cashout, svc.Wallet, svc.Export, svc.Settings, svc.Clearance)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "up"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "down"
		}
		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"database": dbStatus,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(limiter.Middleware(), middleware.AuthRequired())
	{
		v1.GET("/payments/:id", paymentHandler.GetPayment)

		wallets := v1.Group("/wallets/me")
		{
			wallets.GET("", walletHandler.GetMyWallet)
			wallets.GET("/transactions", walletHandler.ListMyTransactions)
			wallets.POST("/cashouts", walletHandler.RequestCashout)
			wallets.GET("/cashouts", walletHandler.ListMyCashouts)
		}

		disputes := v1.Group("/disputes")
		{
			disputes.POST("", disputeHandler.OpenDispute)
			disputes.GET("/:reference", disputeHandler.GetDispute)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminRequired(), middleware.AuditLogMiddleware(db))
		{
			admin.POST("/payments/:id/verify", paymentHandler.VerifyPayment)
			admin.POST("/payments/:id/verify-gateway", paymentHandler.VerifyWithGateway)
			admin.POST("/payments/:id/refund", paymentHandler.RefundPayment)
			admin.POST("/collaborations/:id/release", paymentHandler.ReleaseEscrow)
			admin.POST("/clearance/run", adminHandler.RunClearance)

			admin.GET("/cashouts", adminHandler.ListCashouts)
			admin.PUT("/cashouts/:id/approve", adminHandler.ApproveCashout)
			admin.PUT("/cashouts/:id/reject", adminHandler.RejectCashout)

			admin.GET("/disputes", disputeHandler.ListDisputes)
			admin.PUT("/disputes/:id/review", disputeHandler.StartReview)
			admin.PUT("/disputes/:id/resolve", disputeHandler.ResolveDispute)
			admin.PUT("/disputes/:id/dismiss", disputeHandler.DismissDispute)

			admin.POST("/wallet-transactions/:id/reverse", adminHandler.ReverseTransaction)
			admin.GET("/wallets/:id/reconcile", adminHandler.ReconcileWallet)
			admin.POST("/exports/wallet-transactions", adminHandler.ExportWalletTransactions)

			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings/payments", adminHandler.UpdatePaymentSettings)
		}
	}

	return r
}
