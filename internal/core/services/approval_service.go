package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
)

const (
	defaultApprovalTTL = 72 * time.Hour
	expireBatchSize    = 500
)

// approvalService implements the ApprovalSvcFacade interface
type approvalService struct {
	BaseService
	rules      portsrepo.ApprovalRuleRepository
	requests   portsrepo.ApprovalRequestRepository
	authorizer portssvc.ApproverAuthorizer
	publisher  portssvc.EventPublisher
	matcher    ruleMatcher
	defaultTTL time.Duration

	mu       sync.RWMutex
	handlers []portssvc.ApprovalResolutionHandler
}

// ApprovalOption is a functional option for configuring the approval service
type ApprovalOption func(*approvalService)

// WithApproverAuthorizer checks approvers' roles against policy.
func WithApproverAuthorizer(authorizer portssvc.ApproverAuthorizer) ApprovalOption {
	return func(s *approvalService) {
		s.authorizer = authorizer
	}
}

// WithEventPublisher publishes approval notifications.
func WithEventPublisher(publisher portssvc.EventPublisher) ApprovalOption {
	return func(s *approvalService) {
		s.publisher = publisher
	}
}

// WithDefaultApprovalTTL sets the lifetime of requests whose rule sets none.
func WithDefaultApprovalTTL(ttl time.Duration) ApprovalOption {
	return func(s *approvalService) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewApprovalService creates the currency approval gate and workflow.
func NewApprovalService(rules portsrepo.ApprovalRuleRepository, requests portsrepo.ApprovalRequestRepository, options ...ApprovalOption) *approvalService {
	svc := &approvalService{
		rules:      rules,
		requests:   requests,
		defaultTTL: defaultApprovalTTL,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.ApprovalSvcFacade = (*approvalService)(nil)

// OnResolved registers h to be told when a request leaves pending.
func (s *approvalService) OnResolved(h portssvc.ApprovalResolutionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *approvalService) GetRequest(ctx context.Context, organizationID, requestID string) (*domain.CurrencyApprovalRequest, error) {
	return s.requests.FindRequestByID(ctx, organizationID, requestID)
}

func (s *approvalService) Check(ctx context.Context, op portssvc.GatedOperation) (*domain.CurrencyApprovalRequest, error) {
	now := s.Now()

	existing, err := s.requests.FindLatestRequestBySource(ctx, op.OrganizationID, op.SourceRef)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	if existing != nil {
		if sameOperation(existing, op) {
			if existing.IsExpiredAt(now) {
				if err := s.expire(ctx, existing, now); err != nil {
					return nil, err
				}
			}
			if existing.Status == domain.ApprovalApproved {
				return existing, nil
			}
			if existing.Status == domain.ApprovalPending || !op.RenewResolved {
				return existing, outcomeError(existing)
			}
		} else if existing.Status == domain.ApprovalPending {
			// the operation changed since the request was raised
			if err := existing.Cancel(now); err == nil {
				if err := s.requests.UpdateRequestStatus(ctx, *existing); err != nil && !errors.Is(err, apperrors.ErrConflict) {
					return nil, fmt.Errorf("failed to cancel superseded approval request: %w", err)
				}
				s.resolved(ctx, *existing)
			}
		}
	}

	rules, err := s.rules.ListEnabledRules(ctx, op.OrganizationID, op.OperationType)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rules: %w", err)
	}
	for _, rule := range rules {
		matched, err := s.matcher.Matches(rule, op)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		request, err := s.raise(ctx, rule, op, now)
		if err != nil {
			return nil, err
		}
		return request, outcomeError(request)
	}
	return nil, nil
}

func sameOperation(r *domain.CurrencyApprovalRequest, op portssvc.GatedOperation) bool {
	return r.OperationType == op.OperationType &&
		r.FromCurrencyCode == op.From &&
		r.ToCurrencyCode == op.To &&
		r.Amount.Equal(op.Amount)
}

// outcomeError maps a request that does not allow the operation to its error.
func outcomeError(r *domain.CurrencyApprovalRequest) error {
	var err error
	switch r.Status {
	case domain.ApprovalApproved:
		return nil
	case domain.ApprovalPending:
		err = fmt.Errorf("%w: %d of %d approvals", apperrors.ErrApprovalRequired, r.CurrentApprovals, r.RequiredApprovals)
	case domain.ApprovalExpired:
		err = apperrors.ErrApprovalExpired
	default:
		err = fmt.Errorf("%w: request was %s", apperrors.ErrApprovalRejected, r.Status)
	}
	return &apperrors.ApprovalError{RequestID: r.ApprovalRequestID, Err: err}
}

func (s *approvalService) raise(ctx context.Context, rule domain.CurrencyApprovalRule, op portssvc.GatedOperation, now time.Time) (*domain.CurrencyApprovalRequest, error) {
	ttl := rule.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	required := rule.RequiredApprovals
	if required < 1 {
		required = 1
	}

	request := domain.CurrencyApprovalRequest{
		ApprovalRequestID: uuid.NewString(),
		OrganizationID:    op.OrganizationID,
		RuleID:            rule.RuleID,
		OperationType:     op.OperationType,
		SourceRef:         op.SourceRef,
		FromCurrencyCode:  op.From,
		ToCurrencyCode:    op.To,
		Amount:            op.Amount,
		Rate:              op.Rate,
		VariancePercent:   op.VariancePercent,
		RequiredApprovals: required,
		ApproverRole:      rule.ApproverRole,
		Status:            domain.ApprovalPending,
		ExpiresAt:         now.Add(ttl),
		AuditFields:       domain.AuditFields{CreatedAt: now, CreatedBy: "system", LastUpdatedAt: now, LastUpdatedBy: "system"},
	}
	if err := s.requests.SaveRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save approval request: %w", err)
	}

	s.LogInfo(ctx, "Currency operation requires approval",
		slog.String("approval_request_id", request.ApprovalRequestID),
		slog.String("rule", rule.Name),
		slog.String("source_ref", op.SourceRef),
		slog.Int("required_approvals", required))
	s.publish(ctx, portssvc.ApprovalRequested, request)
	return &request, nil
}

func (s *approvalService) RecordAction(ctx context.Context, organizationID, requestID, approverID string, req dto.ApprovalActionRequest) (*domain.CurrencyApprovalRequest, error) {
	request, err := s.requests.FindRequestByID(ctx, organizationID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}

	if request.ApproverRole != "" && req.ApproverRole != request.ApproverRole {
		return nil, fmt.Errorf("%w: request %s needs role %s", apperrors.ErrForbidden, requestID, request.ApproverRole)
	}
	if s.authorizer != nil {
		allowed, err := s.authorizer.CanApprove(ctx, organizationID, approverID, req.ApproverRole, request.OperationType)
		if err != nil {
			return nil, fmt.Errorf("failed to authorize approver: %w", err)
		}
		if !allowed {
			s.LogWarn(ctx, "Approver not permitted",
				slog.String("approver_id", approverID),
				slog.String("role", req.ApproverRole))
			return nil, fmt.Errorf("%w: %s may not approve %s operations as %s", apperrors.ErrForbidden, approverID, request.OperationType, req.ApproverRole)
		}
	}

	now := s.Now()
	if request.IsExpiredAt(now) {
		if err := s.expire(ctx, request, now); err != nil {
			return nil, err
		}
		return request, fmt.Errorf("%w: request %s", apperrors.ErrApprovalExpired, requestID)
	}

	expected := request.CurrentApprovals
	if err := request.Apply(req.Decision, now); err != nil {
		return nil, err
	}
	request.LastUpdatedAt = now
	request.LastUpdatedBy = approverID

	action := domain.CurrencyApprovalAction{
		ActionID:          uuid.NewString(),
		ApprovalRequestID: requestID,
		ApproverID:        approverID,
		ApproverRole:      req.ApproverRole,
		Decision:          req.Decision,
		Comment:           req.Comment,
		CreatedAt:         now,
	}
	if err := s.requests.RecordAction(ctx, *request, expected, action); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s already acted on request %s", apperrors.ErrDuplicate, approverID, requestID)
		}
		return nil, fmt.Errorf("failed to record approval action: %w", err)
	}

	s.LogInfo(ctx, "Approval action recorded",
		slog.String("approval_request_id", requestID),
		slog.String("decision", string(req.Decision)),
		slog.String("status", string(request.Status)))
	if request.IsTerminal() {
		s.resolved(ctx, *request)
	}
	return request, nil
}

func (s *approvalService) Cancel(ctx context.Context, organizationID, requestID, userID string) (*domain.CurrencyApprovalRequest, error) {
	request, err := s.requests.FindRequestByID(ctx, organizationID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	now := s.Now()
	if err := request.Cancel(now); err != nil {
		return nil, err
	}
	request.LastUpdatedAt = now
	request.LastUpdatedBy = userID
	if err := s.requests.UpdateRequestStatus(ctx, *request); err != nil {
		return nil, fmt.Errorf("failed to cancel approval request: %w", err)
	}
	s.resolved(ctx, *request)
	return request, nil
}

func (s *approvalService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.requests.ListExpiredPending(ctx, now, expireBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired approval requests: %w", err)
	}
	expired := 0
	for i := range stale {
		if err := s.expire(ctx, &stale[i], now); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				continue
			}
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.LogInfo(ctx, "Expired stale approval requests", slog.Int("count", expired))
	}
	return expired, nil
}

func (s *approvalService) expire(ctx context.Context, request *domain.CurrencyApprovalRequest, now time.Time) error {
	if err := request.Expire(now); err != nil {
		return err
	}
	request.LastUpdatedAt = now
	request.LastUpdatedBy = "system"
	if err := s.requests.UpdateRequestStatus(ctx, *request); err != nil {
		return fmt.Errorf("failed to expire approval request %s: %w", request.ApprovalRequestID, err)
	}
	s.resolved(ctx, *request)
	return nil
}

// resolved notifies collaborators that request reached a terminal state.
func (s *approvalService) resolved(ctx context.Context, request domain.CurrencyApprovalRequest) {
	s.publish(ctx, portssvc.ApprovalResolved, request)

	s.mu.RLock()
	handlers := append([]portssvc.ApprovalResolutionHandler(nil), s.handlers...)
	s.mu.RUnlock()
	for _, h := range handlers {
		h.OnApprovalResolved(ctx, request)
	}
}

// publish delivers an event; delivery failures never fail the approval itself.
func (s *approvalService) publish(ctx context.Context, eventType portssvc.ApprovalEventType, request domain.CurrencyApprovalRequest) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishApprovalEvent(ctx, portssvc.ApprovalEvent{Type: eventType, Request: request}); err != nil {
		s.LogError(ctx, err, "Failed to publish approval event",
			slog.String("approval_request_id", request.ApprovalRequestID),
			slog.String("event", string(eventType)))
	}
}
