// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/escrow-ledger/internal/services"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type PaymentHandler struct {
	escrowService  *services.EscrowService
	releaseService *services.ReleaseService
}

func NewPaymentHandler(escrowService *services.EscrowService, releaseService *services.ReleaseService) *PaymentHandler {
	return &PaymentHandler{
		escrowService:  escrowService,
		releaseService: releaseService,
	}
}

// GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	paymentID, ok := paramUUID(c, "id", "payment")
	if !ok {
		return
	}

	payment, err := h.escrowService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if payment.BrandID != userID && !isAdmin(c) {
		respondError(c, services.ErrPaymentNotFound)
		return
	}

	utils.SuccessResponse(c, payment)
}

// POST /admin/payments/:id/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	paymentID, ok := paramUUID(c, "id", "payment")
	if !ok {
		return
	}

	var req services.VerifyPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	payment, err := h.escrowService.VerifyPayment(c.Request.Context(), paymentID, &adminID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, payment)
}

// POST /admin/payments/:id/verify-gateway
func (h *PaymentHandler) VerifyWithGateway(c *gin.Context) {
	paymentID, ok := paramUUID(c, "id", "payment")
	if !ok {
		return
	}

	payment, err := h.escrowService.VerifyWithGateway(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, payment)
}

// POST /admin/payments/:id/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	paymentID, ok := paramUUID(c, "id", "payment")
	if !ok {
		return
	}

	var req services.RefundPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	payment, err := h.escrowService.RefundPayment(c.Request.Context(), paymentID, &adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, payment)
}

// POST /admin/collaborations/:id/release
func (h *PaymentHandler) ReleaseEscrow(c *gin.Context) {
	collaborationID, ok := paramUUID(c, "id", "collaboration")
	if !ok {
		return
	}

	var req services.ReleaseRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}

	transaction, err := h.releaseService.ReleaseEscrowToWallet(c.Request.Context(), collaborationID, req.FeePercentage)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, transaction)
}
