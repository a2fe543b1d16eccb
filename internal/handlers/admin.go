// internal/handlers/admin.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/escrow-ledger/internal/i18n"
	"github.com/javajoker/escrow-ledger/internal/services"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

// Sweeper runs one clearance pass.
type Sweeper interface {
	ClearPendingTransactions(ctx context.Context) (int, error)
}

type AdminHandler struct {
	cashoutService  *services.CashoutService
	walletService   *services.WalletService
	exportService   *services.ExportService
	settingsService *services.SettingsService
	sweeper         Sweeper
}

func NewAdminHandler(
	cashoutService *services.CashoutService,
	walletService *services.WalletService,
	exportService *services.ExportService,
	settingsService *services.SettingsService,
	sweeper Sweeper,
) *AdminHandler {
	return &AdminHandler{
		cashoutService:  cashoutService,
		walletService:   walletService,
		exportService:   exportService,
		settingsService: settingsService,
		sweeper:         sweeper,
	}
}

// GET /admin/cashouts
func (h *AdminHandler) ListCashouts(c *gin.Context) {
	var walletID *uuid.UUID
	if raw := c.Query("wallet_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyInvalidID, "wallet"), nil)
			return
		}
		walletID = &id
	}

	params := utils.GetPaginationParams(c)
	requests, total, err := h.cashoutService.ListCashouts(c.Request.Context(), walletID, c.Query("status"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}

// PUT /admin/cashouts/:id/approve
func (h *AdminHandler) ApproveCashout(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := paramUUID(c, "id", "cashout")
	if !ok {
		return
	}

	request, err := h.cashoutService.ApproveCashout(c.Request.Context(), requestID, adminID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, request)
}

// PUT /admin/cashouts/:id/reject
func (h *AdminHandler) RejectCashout(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := paramUUID(c, "id", "cashout")
	if !ok {
		return
	}

	var req services.RejectCashoutRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.cashoutService.RejectCashout(c.Request.Context(), requestID, adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, request)
}

// POST /admin/wallet-transactions/:id/reverse
func (h *AdminHandler) ReverseTransaction(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	transactionID, ok := paramUUID(c, "id", "wallet transaction")
	if !ok {
		return
	}

	var req services.ReverseTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	transaction, err := h.walletService.ReverseTransaction(c.Request.Context(), transactionID, adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, transaction)
}

// GET /admin/wallets/:id/reconcile
func (h *AdminHandler) ReconcileWallet(c *gin.Context) {
	walletID, ok := paramUUID(c, "id", "wallet")
	if !ok {
		return
	}

	result, err := h.walletService.ReconcileWallet(c.Request.Context(), walletID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}

// POST /admin/clearance/run
func (h *AdminHandler) RunClearance(c *gin.Context) {
	promoted, err := h.sweeper.ClearPendingTransactions(c.Request.Context())
	if err != nil && promoted == 0 {
		respondError(c, err)
		return
	}

	response := gin.H{"promoted": promoted}
	if err != nil {
		response["errors"] = err.Error()
	}
	utils.SuccessResponse(c, response)
}

// POST /admin/exports/wallet-transactions
func (h *AdminHandler) ExportWalletTransactions(c *gin.Context) {
	var req services.ExportRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}

	result, err := h.exportService.ExportWalletTransactions(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, result)
}

// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, settings)
}

// PUT /admin/settings/payments
func (h *AdminHandler) UpdatePaymentSettings(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdatePaymentSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.settingsService.UpdatePaymentSettings(c.Request.Context(), adminID, &req); err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyAdminSettingsUpdated)})
}
