package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
)

// ApprovalStatus is the state of a currency approval request. Every state but
// pending is terminal.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"
	ApprovalExpired   ApprovalStatus = "expired"
)

// OperationType is the kind of gated currency operation.
type OperationType string

const (
	OperationConversion OperationType = "conversion"
	OperationRateChange OperationType = "rate_change"
)

// ApprovalDecision is what an approver decided.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)

// CurrencyApprovalRule decides when a currency operation needs approval. All
// conditions that are set must hold for the rule to match.
type CurrencyApprovalRule struct {
	RuleID            string           `json:"ruleID"`
	OrganizationID    string           `json:"organizationID"`
	Name              string           `json:"name"`
	Priority          int              `json:"priority"` // higher is evaluated first
	Enabled           bool             `json:"enabled"`
	OperationType     OperationType    `json:"operationType"`
	ThresholdAmount   *decimal.Decimal `json:"thresholdAmount,omitempty"`
	VariancePercent   *decimal.Decimal `json:"variancePercent,omitempty"`
	Condition         string           `json:"condition,omitempty"` // CEL expression
	RequiredApprovals int              `json:"requiredApprovals"`
	ApproverRole      string           `json:"approverRole"`
	TTL               time.Duration    `json:"ttl"`
	AuditFields
}

// CurrencyApprovalRequest defers a currency operation until enough approvals arrive.
type CurrencyApprovalRequest struct {
	ApprovalRequestID string          `json:"approvalRequestID"`
	OrganizationID    string          `json:"organizationID"`
	RuleID            string          `json:"ruleID"`
	OperationType     OperationType   `json:"operationType"`
	SourceRef         string          `json:"sourceRef"` // e.g. run:<id>:employee:<id>
	FromCurrencyCode  string          `json:"fromCurrencyCode"`
	ToCurrencyCode    string          `json:"toCurrencyCode"`
	Amount            decimal.Decimal `json:"amount"`
	Rate              decimal.Decimal `json:"rate"`
	VariancePercent   decimal.Decimal `json:"variancePercent"`
	RequiredApprovals int             `json:"requiredApprovals"`
	CurrentApprovals  int             `json:"currentApprovals"`
	ApproverRole      string          `json:"approverRole"`
	Status            ApprovalStatus  `json:"status"`
	ExpiresAt         time.Time       `json:"expiresAt"`
	ResolvedAt        *time.Time      `json:"resolvedAt,omitempty"`
	AuditFields
}

// CurrencyApprovalAction is one approver's decision on a request.
type CurrencyApprovalAction struct {
	ActionID          string           `json:"actionID"`
	ApprovalRequestID string           `json:"approvalRequestID"`
	ApproverID        string           `json:"approverID"`
	ApproverRole      string           `json:"approverRole"`
	Decision          ApprovalDecision `json:"decision"`
	Comment           string           `json:"comment,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// IsTerminal reports whether the request can no longer change.
func (r *CurrencyApprovalRequest) IsTerminal() bool {
	return r.Status != ApprovalPending
}

// IsExpiredAt reports whether a pending request has outlived its deadline.
func (r *CurrencyApprovalRequest) IsExpiredAt(now time.Time) bool {
	return r.Status == ApprovalPending && !now.Before(r.ExpiresAt)
}

// Apply records a decision. An approval reaching the required count moves the
// request to approved; a rejection is terminal immediately.
func (r *CurrencyApprovalRequest) Apply(decision ApprovalDecision, at time.Time) error {
	if r.IsTerminal() {
		return fmt.Errorf("%w: approval request %s is %s", apperrors.ErrInvalidTransition, r.ApprovalRequestID, r.Status)
	}
	if r.IsExpiredAt(at) {
		return fmt.Errorf("%w: approval request %s", apperrors.ErrApprovalExpired, r.ApprovalRequestID)
	}
	switch decision {
	case DecisionApprove:
		r.CurrentApprovals++
		if r.CurrentApprovals >= r.RequiredApprovals {
			r.resolve(ApprovalApproved, at)
		}
	case DecisionReject:
		r.resolve(ApprovalRejected, at)
	default:
		return fmt.Errorf("%w: unknown decision %q", apperrors.ErrValidation, decision)
	}
	return nil
}

// Cancel withdraws a pending request.
func (r *CurrencyApprovalRequest) Cancel(at time.Time) error {
	if r.IsTerminal() {
		return fmt.Errorf("%w: approval request %s is %s", apperrors.ErrInvalidTransition, r.ApprovalRequestID, r.Status)
	}
	r.resolve(ApprovalCancelled, at)
	return nil
}

// Expire marks a pending request past its deadline as expired.
func (r *CurrencyApprovalRequest) Expire(at time.Time) error {
	if !r.IsExpiredAt(at) {
		return fmt.Errorf("%w: approval request %s is not expirable", apperrors.ErrInvalidTransition, r.ApprovalRequestID)
	}
	r.resolve(ApprovalExpired, at)
	return nil
}

func (r *CurrencyApprovalRequest) resolve(status ApprovalStatus, at time.Time) {
	r.Status = status
	resolved := at
	r.ResolvedAt = &resolved
}
