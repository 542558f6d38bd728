package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// ApprovalRuleRepository persists currency approval rules.
type ApprovalRuleRepository interface {
	// ListEnabledRules returns enabled rules for the operation, highest priority first.
	ListEnabledRules(ctx context.Context, organizationID string, operation domain.OperationType) ([]domain.CurrencyApprovalRule, error)
	SaveRule(ctx context.Context, rule domain.CurrencyApprovalRule) error
}

// ApprovalRequestRepository persists approval requests and actions.
type ApprovalRequestRepository interface {
	SaveRequest(ctx context.Context, request domain.CurrencyApprovalRequest) error
	FindRequestByID(ctx context.Context, organizationID, requestID string) (*domain.CurrencyApprovalRequest, error)

	// FindLatestRequestBySource returns the newest request for sourceRef, or ErrNotFound.
	FindLatestRequestBySource(ctx context.Context, organizationID, sourceRef string) (*domain.CurrencyApprovalRequest, error)

	// RecordAction inserts action and writes the request's new state in one
	// transaction. A second action by the same approver fails with ErrDuplicate;
	// a request that changed concurrently fails with ErrConflict.
	RecordAction(ctx context.Context, request domain.CurrencyApprovalRequest, expectedApprovals int, action domain.CurrencyApprovalAction) error

	// UpdateRequestStatus moves a pending request to its new terminal status,
	// failing with ErrConflict when it is no longer pending.
	UpdateRequestStatus(ctx context.Context, request domain.CurrencyApprovalRequest) error

	// ListExpiredPending returns pending requests whose deadline is at or before now.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.CurrencyApprovalRequest, error)

	ListActions(ctx context.Context, requestID string) ([]domain.CurrencyApprovalAction, error)
}
