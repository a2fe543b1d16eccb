// internal/handlers/wallet.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/escrow-ledger/internal/services"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type WalletHandler struct {
	walletService  *services.WalletService
	cashoutService *services.CashoutService
}

func NewWalletHandler(walletService *services.WalletService, cashoutService *services.CashoutService) *WalletHandler {
	return &WalletHandler{
		walletService:  walletService,
		cashoutService: cashoutService,
	}
}

// GET /wallets/me
func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	wallet, err := h.walletService.GetWalletByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, wallet)
}

// GET /wallets/me/transactions
func (h *WalletHandler) ListMyTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	wallet, err := h.walletService.GetWalletByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	params := utils.GetPaginationParams(c)
	transactions, total, err := h.walletService.ListTransactions(c.Request.Context(), wallet.ID, c.Query("status"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(transactions, total, params))
}

// POST /wallets/me/cashouts
func (h *WalletHandler) RequestCashout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CashoutRequestInput
	if !bindAndValidate(c, &req) {
		return
	}

	wallet, err := h.walletService.GetWalletByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	request, err := h.cashoutService.RequestCashout(c.Request.Context(), wallet.ID, req.Amount, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, request)
}

// GET /wallets/me/cashouts
func (h *WalletHandler) ListMyCashouts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	wallet, err := h.walletService.GetWalletByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	params := utils.GetPaginationParams(c)
	requests, total, err := h.cashoutService.ListCashouts(c.Request.Context(), &wallet.ID, c.Query("status"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}
