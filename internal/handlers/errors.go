package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
)

type statusMapping struct {
	err    error
	status int
}

// Order matters: approval outcomes wrap other errors and must win.
var statusMappings = []statusMapping{
	{apperrors.ErrApprovalRequired, http.StatusAccepted},
	{apperrors.ErrApprovalRejected, http.StatusConflict},
	{apperrors.ErrApprovalExpired, http.StatusUnprocessableEntity},
	{apperrors.ErrForbidden, http.StatusForbidden},
	{apperrors.ErrNotFound, http.StatusNotFound},
	{apperrors.ErrDuplicate, http.StatusConflict},
	{apperrors.ErrConflict, http.StatusConflict},
	{apperrors.ErrInvalidTransition, http.StatusConflict},
	{apperrors.ErrCancelled, http.StatusConflict},
	{apperrors.ErrValidation, http.StatusBadRequest},
	{apperrors.ErrConfigValidation, http.StatusBadRequest},
	{apperrors.ErrInvalidFormula, http.StatusBadRequest},
	{apperrors.ErrDependencyCycle, http.StatusBadRequest},
	{apperrors.ErrInvalidCalculationMode, http.StatusBadRequest},
	{apperrors.ErrNoExchangeRate, http.StatusUnprocessableEntity},
	{apperrors.ErrRateLookupTimeout, http.StatusGatewayTimeout},
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	for _, m := range statusMappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err with the mapped status. Internal errors are logged
// and replaced by fallback so storage details do not leak to callers.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": fallback})
		return
	}

	logger.Warn("Request rejected", slog.Int("status", status), slog.String("error", err.Error()))
	body := gin.H{"error": err.Error()}
	var approvalErr *apperrors.ApprovalError
	if errors.As(err, &approvalErr) {
		body["approvalRequestID"] = approvalErr.RequestID
	}
	c.JSON(status, body)
}
