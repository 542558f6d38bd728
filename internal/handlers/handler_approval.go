package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
	"github.com/SscSPs/payroll_engine/internal/middleware"
)

// approvalHandler handles HTTP requests related to currency approval requests.
type approvalHandler struct {
	approvalService portssvc.ApprovalSvcFacade
}

func newApprovalHandler(svc portssvc.ApprovalSvcFacade) *approvalHandler {
	return &approvalHandler{approvalService: svc}
}

// RegisterApprovalRoutes registers routes related to approval requests.
func RegisterApprovalRoutes(rg *gin.RouterGroup, svc portssvc.ApprovalSvcFacade) {
	h := newApprovalHandler(svc)

	approvals := rg.Group("/approvals")
	{
		approvals.GET("/:id", h.getRequest)
		approvals.POST("/:id/actions", h.recordAction)
		approvals.POST("/:id/cancel", h.cancelRequest)
	}
}

// getRequest godoc
// @Summary Get an approval request
// @Tags approvals
// @Produce  json
// @Param   id path string true "Approval request ID"
// @Success 200 {object} dto.ApprovalRequestResponse
// @Failure 404 {object} map[string]string "Approval request not found"
// @Security BearerAuth
// @Router /approvals/{id} [get]
func (h *approvalHandler) getRequest(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	_, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	request, err := h.approvalService.GetRequest(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve approval request")
		return
	}
	c.JSON(http.StatusOK, dto.ToApprovalRequestResponse(request))
}

// recordAction godoc
// @Summary Approve or reject an approval request
// @Description Records the caller's decision. Each approver may act once per request.
// @Tags approvals
// @Accept  json
// @Produce  json
// @Param   id path string true "Approval request ID"
// @Param   action body dto.ApprovalActionRequest true "Decision"
// @Success 200 {object} dto.ApprovalRequestResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 403 {object} map[string]string "Approver lacks the required role"
// @Failure 409 {object} map[string]string "Request is no longer pending or approver already acted"
// @Security BearerAuth
// @Router /approvals/{id}/actions [post]
func (h *approvalHandler) recordAction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ApprovalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ApprovalAction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}
	requestID := c.Param("id")
	logger = logger.With(slog.String("approval_request_id", requestID))
	logger.Info("Received approval decision",
		slog.String("decision", string(req.Decision)),
		slog.String("role", req.ApproverRole),
	)

	request, err := h.approvalService.RecordAction(c.Request.Context(), orgID, requestID, principalID, req)
	if err != nil {
		respondError(c, logger, err, "Failed to record approval action")
		return
	}

	logger.Info("Approval action recorded", slog.String("status", string(request.Status)))
	c.JSON(http.StatusOK, dto.ToApprovalRequestResponse(request))
}

// cancelRequest godoc
// @Summary Cancel a pending approval request
// @Tags approvals
// @Produce  json
// @Param   id path string true "Approval request ID"
// @Success 200 {object} dto.ApprovalRequestResponse
// @Failure 409 {object} map[string]string "Request is no longer pending"
// @Security BearerAuth
// @Router /approvals/{id}/cancel [post]
func (h *approvalHandler) cancelRequest(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	request, err := h.approvalService.Cancel(c.Request.Context(), orgID, c.Param("id"), principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to cancel approval request")
		return
	}
	c.JSON(http.StatusOK, dto.ToApprovalRequestResponse(request))
}
