package events

import (
	"context"
	"log/slog"

	"github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/middleware"
)

// LogPublisher writes approval events to the context logger. It is used when
// no Service Bus namespace is configured.
type LogPublisher struct{}

var _ services.EventPublisher = LogPublisher{}

func (LogPublisher) PublishApprovalEvent(ctx context.Context, event services.ApprovalEvent) error {
	middleware.GetLoggerFromCtx(ctx).Info("Approval event",
		slog.String("type", string(event.Type)),
		slog.String("approval_request_id", event.Request.ApprovalRequestID),
		slog.String("organization_id", event.Request.OrganizationID),
		slog.String("status", string(event.Request.Status)))
	return nil
}
