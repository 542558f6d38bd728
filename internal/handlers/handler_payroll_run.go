package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
	"github.com/SscSPs/payroll_engine/internal/middleware"
)

// payrollRunHandler handles HTTP requests related to payroll runs.
type payrollRunHandler struct {
	runService portssvc.PayrollRunSvcFacade
	renderer   portssvc.StatementRenderer
}

func newPayrollRunHandler(runs portssvc.PayrollRunSvcFacade, renderer portssvc.StatementRenderer) *payrollRunHandler {
	return &payrollRunHandler{runService: runs, renderer: renderer}
}

// RegisterPayrollRunRoutes registers routes related to payroll runs.
func RegisterPayrollRunRoutes(rg *gin.RouterGroup, runs portssvc.PayrollRunSvcFacade, renderer portssvc.StatementRenderer) {
	h := newPayrollRunHandler(runs, renderer)

	r := rg.Group("/runs")
	{
		r.POST("", h.createRun)
		r.GET("/:id", h.getRun)
		r.POST("/:id/calculate", h.calculateRun)
		r.POST("/:id/resume", h.resumeRun)
		r.POST("/:id/cancel", h.cancelRun)
		r.POST("/:id/approve", h.approveRun)
		r.GET("/:id/paychecks/:employeeID/statement", h.getStatement)
	}
}

// caller returns the principal and organization of the authenticated request.
func caller(c *gin.Context, logger *slog.Logger) (principalID, organizationID string, ok bool) {
	principalID, ok = middleware.GetPrincipalIDFromContext(c)
	if !ok {
		logger.Error("Principal ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", "", false
	}
	organizationID, ok = middleware.GetOrganizationIDFromContext(c)
	if !ok {
		logger.Error("Organization ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", "", false
	}
	return principalID, organizationID, true
}

// createRun godoc
// @Summary Create a payroll run
// @Description Creates a draft payroll run for a pay period and a set of employees
// @Tags payroll runs
// @Accept  json
// @Produce  json
// @Param   run body dto.CreatePayrollRunRequest true "Run details"
// @Success 201 {object} dto.PayrollRunResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to create payroll run"
// @Security BearerAuth
// @Router /runs [post]
func (h *payrollRunHandler) createRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreatePayrollRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreatePayrollRun", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	logger.Info("Received request to create payroll run",
		slog.String("name", req.Name),
		slog.Int("employees", len(req.EmployeeIDs)),
	)
	run, err := h.runService.CreateRun(c.Request.Context(), orgID, req, principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to create payroll run")
		return
	}

	logger.Info("Payroll run created", slog.String("run_id", run.RunID))
	c.JSON(http.StatusCreated, dto.ToPayrollRunResponse(run))
}

// getRun godoc
// @Summary Get a payroll run
// @Description Returns the run with its per-employee outcomes
// @Tags payroll runs
// @Produce  json
// @Param   id path string true "Run ID"
// @Success 200 {object} dto.RunSummaryResponse
// @Failure 404 {object} map[string]string "Run not found"
// @Security BearerAuth
// @Router /runs/{id} [get]
func (h *payrollRunHandler) getRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	_, orgID, ok := caller(c, logger)
	if !ok {
		return
	}
	runID := c.Param("id")

	run, err := h.runService.GetRun(c.Request.Context(), orgID, runID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve payroll run")
		return
	}
	summary, err := h.runService.GetRunSummary(c.Request.Context(), orgID, runID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve payroll run")
		return
	}
	c.JSON(http.StatusOK, dto.RunSummaryResponse{Run: dto.ToPayrollRunResponse(run), Summary: *summary})
}

// calculateRun godoc
// @Summary Calculate a payroll run
// @Description Computes paychecks for all or some of the run's employees. Failures are reported per employee.
// @Tags payroll runs
// @Accept  json
// @Produce  json
// @Param   id path string true "Run ID"
// @Param   request body dto.CalculatePayrollRunRequest false "Employees to recalculate"
// @Success 200 {object} domain.RunSummary
// @Failure 404 {object} map[string]string "Run not found"
// @Failure 409 {object} map[string]string "Run cannot be calculated in its current state"
// @Security BearerAuth
// @Router /runs/{id}/calculate [post]
func (h *payrollRunHandler) calculateRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CalculatePayrollRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			logger.Warn("Failed to bind JSON for CalculatePayrollRun", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}

	_, orgID, ok := caller(c, logger)
	if !ok {
		return
	}
	runID := c.Param("id")
	logger = logger.With(slog.String("run_id", runID))

	summary, err := h.runService.CalculateRun(c.Request.Context(), orgID, runID, portssvc.CalculateOptions{EmployeeIDs: req.EmployeeIDs})
	if err != nil {
		respondError(c, logger, err, "Failed to calculate payroll run")
		return
	}

	logger.Info("Payroll run calculated",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("pending_approval", summary.PendingApproval),
	)
	c.JSON(http.StatusOK, summary)
}

// resumeRun godoc
// @Summary Resume a payroll run
// @Description Recalculates the employees whose paychecks wait on currency approvals
// @Tags payroll runs
// @Produce  json
// @Param   id path string true "Run ID"
// @Success 200 {object} domain.RunSummary
// @Failure 409 {object} map[string]string "Run cannot be resumed in its current state"
// @Security BearerAuth
// @Router /runs/{id}/resume [post]
func (h *payrollRunHandler) resumeRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	_, orgID, ok := caller(c, logger)
	if !ok {
		return
	}
	runID := c.Param("id")

	summary, err := h.runService.ResumeRun(c.Request.Context(), orgID, runID)
	if err != nil {
		respondError(c, logger, err, "Failed to resume payroll run")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// cancelRun godoc
// @Summary Cancel a payroll run
// @Tags payroll runs
// @Produce  json
// @Param   id path string true "Run ID"
// @Success 200 {object} dto.PayrollRunResponse
// @Failure 409 {object} map[string]string "Run cannot be cancelled"
// @Security BearerAuth
// @Router /runs/{id}/cancel [post]
func (h *payrollRunHandler) cancelRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	run, err := h.runService.CancelRun(c.Request.Context(), orgID, c.Param("id"), principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to cancel payroll run")
		return
	}
	logger.Info("Payroll run cancelled", slog.String("run_id", run.RunID))
	c.JSON(http.StatusOK, dto.ToPayrollRunResponse(run))
}

// approveRun godoc
// @Summary Approve a payroll run
// @Description Approves a calculated run whose paychecks all succeeded
// @Tags payroll runs
// @Produce  json
// @Param   id path string true "Run ID"
// @Success 200 {object} dto.PayrollRunResponse
// @Failure 409 {object} map[string]string "Run cannot be approved"
// @Security BearerAuth
// @Router /runs/{id}/approve [post]
func (h *payrollRunHandler) approveRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	principalID, orgID, ok := caller(c, logger)
	if !ok {
		return
	}

	run, err := h.runService.ApproveRun(c.Request.Context(), orgID, c.Param("id"), principalID)
	if err != nil {
		respondError(c, logger, err, "Failed to approve payroll run")
		return
	}
	logger.Info("Payroll run approved", slog.String("run_id", run.RunID))
	c.JSON(http.StatusOK, dto.ToPayrollRunResponse(run))
}

// getStatement godoc
// @Summary Download a paycheck statement
// @Tags payroll runs
// @Produce  application/pdf
// @Param   id path string true "Run ID"
// @Param   employeeID path string true "Employee ID"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string "Paycheck not found"
// @Failure 409 {object} map[string]string "Paycheck has no statement"
// @Security BearerAuth
// @Router /runs/{id}/paychecks/{employeeID}/statement [get]
func (h *payrollRunHandler) getStatement(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	_, orgID, ok := caller(c, logger)
	if !ok {
		return
	}
	runID, employeeID := c.Param("id"), c.Param("employeeID")

	run, err := h.runService.GetRun(c.Request.Context(), orgID, runID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve payroll run")
		return
	}
	paycheck, err := h.runService.GetPaycheck(c.Request.Context(), orgID, runID, employeeID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve paycheck")
		return
	}

	// Render into a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, run, paycheck); err != nil {
		respondError(c, logger, err, "Failed to render statement")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s-%s.pdf"`, runID, employeeID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
