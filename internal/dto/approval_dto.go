package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// ApprovalActionRequest records an approver's decision.
type ApprovalActionRequest struct {
	Decision     domain.ApprovalDecision `json:"decision" binding:"required,oneof=approve reject"`
	ApproverRole string                  `json:"approverRole" binding:"required"`
	Comment      string                  `json:"comment" binding:"max=1000"`
}

// ApprovalRequestResponse defines the data returned for an approval request.
type ApprovalRequestResponse struct {
	ApprovalRequestID string                `json:"approvalRequestID"`
	OperationType     domain.OperationType  `json:"operationType"`
	SourceRef         string                `json:"sourceRef"`
	FromCurrencyCode  string                `json:"fromCurrencyCode"`
	ToCurrencyCode    string                `json:"toCurrencyCode"`
	Amount            decimal.Decimal       `json:"amount"`
	Rate              decimal.Decimal       `json:"rate"`
	RequiredApprovals int                   `json:"requiredApprovals"`
	CurrentApprovals  int                   `json:"currentApprovals"`
	Status            domain.ApprovalStatus `json:"status"`
	ExpiresAt         time.Time             `json:"expiresAt"`
	ResolvedAt        *time.Time            `json:"resolvedAt,omitempty"`
}

// ToApprovalRequestResponse converts a domain.CurrencyApprovalRequest to its DTO.
func ToApprovalRequestResponse(r *domain.CurrencyApprovalRequest) ApprovalRequestResponse {
	return ApprovalRequestResponse{
		ApprovalRequestID: r.ApprovalRequestID,
		OperationType:     r.OperationType,
		SourceRef:         r.SourceRef,
		FromCurrencyCode:  r.FromCurrencyCode,
		ToCurrencyCode:    r.ToCurrencyCode,
		Amount:            r.Amount,
		Rate:              r.Rate,
		RequiredApprovals: r.RequiredApprovals,
		CurrentApprovals:  r.CurrentApprovals,
		Status:            r.Status,
		ExpiresAt:         r.ExpiresAt,
		ResolvedAt:        r.ResolvedAt,
	}
}
