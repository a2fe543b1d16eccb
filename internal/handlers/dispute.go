// internal/handlers/dispute.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/escrow-ledger/internal/services"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
}

func NewDisputeHandler(disputeService *services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService}
}

// POST /disputes
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.OpenDisputeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dispute, err := h.disputeService.OpenDispute(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, dispute)
}

// GET /disputes/:reference
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	dispute, err := h.disputeService.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	if dispute.RaisedBy != userID && dispute.RaisedAgainst != userID && !isAdmin(c) {
		respondError(c, services.ErrDisputeNotFound)
		return
	}
	utils.SuccessResponse(c, dispute)
}

// GET /admin/disputes
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	disputes, total, err := h.disputeService.ListDisputes(c.Request.Context(), c.Query("status"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(disputes, total, params))
}

// PUT /admin/disputes/:id/review
func (h *DisputeHandler) StartReview(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	disputeID, ok := paramUUID(c, "id", "dispute")
	if !ok {
		return
	}

	dispute, err := h.disputeService.StartReview(c.Request.Context(), disputeID, adminID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, dispute)
}

// PUT /admin/disputes/:id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	disputeID, ok := paramUUID(c, "id", "dispute")
	if !ok {
		return
	}

	var req services.ResolveDisputeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dispute, err := h.disputeService.ResolveDispute(c.Request.Context(), disputeID, adminID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, dispute)
}

// PUT /admin/disputes/:id/dismiss
func (h *DisputeHandler) DismissDispute(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	disputeID, ok := paramUUID(c, "id", "dispute")
	if !ok {
		return
	}

	var req services.DismissDisputeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dispute, err := h.disputeService.DismissDispute(c.Request.Context(), disputeID, adminID, req.Resolution)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, dispute)
}
