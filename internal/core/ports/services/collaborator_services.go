package services

import (
	"context"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// ApprovalEventType names a notification event.
type ApprovalEventType string

const (
	ApprovalRequested ApprovalEventType = "approval.requested"
	ApprovalResolved  ApprovalEventType = "approval.resolved"
)

// ApprovalEvent is published for the external notification collaborator.
type ApprovalEvent struct {
	Type    ApprovalEventType              `json:"type"`
	Request domain.CurrencyApprovalRequest `json:"request"`
}

// EventPublisher delivers approval events to the notification collaborator.
type EventPublisher interface {
	PublishApprovalEvent(ctx context.Context, event ApprovalEvent) error
}

// AuditArchive mirrors compliance records to long-term storage.
type AuditArchive interface {
	ArchiveFormulaLogs(ctx context.Context, logs []domain.FormulaExecutionLog) error
	ArchiveConversion(ctx context.Context, conversion domain.CurrencyConversion) error
}

// ApproverAuthorizer decides whether an approver holding role may act on requests of the organization.
type ApproverAuthorizer interface {
	CanApprove(ctx context.Context, organizationID, approverID, role string, op domain.OperationType) (bool, error)
}

// ApprovalResolutionHandler is notified when an approval request leaves pending.
type ApprovalResolutionHandler interface {
	OnApprovalResolved(ctx context.Context, request domain.CurrencyApprovalRequest)
}
