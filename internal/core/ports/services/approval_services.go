package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/dto"
)

// ApprovalGate evaluates approval rules for a currency operation.
type ApprovalGate interface {
	// Check returns nil when the operation may proceed. Otherwise it returns an
	// error wrapping ErrApprovalRequired, ErrApprovalRejected or ErrApprovalExpired,
	// along with the request involved.
	Check(ctx context.Context, op GatedOperation) (*domain.CurrencyApprovalRequest, error)
}

// GatedOperation describes a currency operation subject to approval rules.
type GatedOperation struct {
	OrganizationID  string
	OperationType   domain.OperationType
	SourceRef       string
	From            string
	To              string
	Amount          decimal.Decimal
	Rate            decimal.Decimal
	VariancePercent decimal.Decimal
	// RenewResolved lets a new request supersede an earlier rejected, cancelled
	// or expired one for the same source instead of failing with its outcome.
	RenewResolved bool
}

// ApprovalReaderSvc defines read operations for approval requests.
type ApprovalReaderSvc interface {
	GetRequest(ctx context.Context, organizationID, requestID string) (*domain.CurrencyApprovalRequest, error)
}

// ApprovalWriterSvc defines approval actions.
type ApprovalWriterSvc interface {
	// RecordAction records approverID's decision under the given role.
	RecordAction(ctx context.Context, organizationID, requestID, approverID string, req dto.ApprovalActionRequest) (*domain.CurrencyApprovalRequest, error)

	// Cancel withdraws a pending request.
	Cancel(ctx context.Context, organizationID, requestID, userID string) (*domain.CurrencyApprovalRequest, error)

	// ExpireStale expires pending requests past their deadline and returns how many.
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// ApprovalSvcFacade combines approval reads, writes and the gate.
type ApprovalSvcFacade interface {
	ApprovalReaderSvc
	ApprovalWriterSvc
	ApprovalGate
}
