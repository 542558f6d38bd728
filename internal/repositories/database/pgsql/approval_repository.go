package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
)

// PgxApprovalRuleRepository stores currency approval rules.
type PgxApprovalRuleRepository struct {
	BaseRepository
}

func newPgxApprovalRuleRepository(pool *pgxpool.Pool) *PgxApprovalRuleRepository {
	return &PgxApprovalRuleRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ApprovalRuleRepository = (*PgxApprovalRuleRepository)(nil)

// ListEnabledRules returns enabled rules for the operation, highest priority first.
func (r *PgxApprovalRuleRepository) ListEnabledRules(ctx context.Context, organizationID string, operation domain.OperationType) ([]domain.CurrencyApprovalRule, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT rule_id, organization_id, name, priority, enabled, operation_type, threshold_amount,
		       variance_percent, condition, required_approvals, approver_role, ttl_seconds,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM currency_approval_rules
		WHERE organization_id = $1 AND operation_type = $2 AND enabled
		ORDER BY priority DESC, rule_id`,
		organizationID, string(operation))
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query approval rules", err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CurrencyApprovalRule, error) {
		var (
			rule       domain.CurrencyApprovalRule
			op         string
			ttlSeconds int64
		)
		err := row.Scan(
			&rule.RuleID, &rule.OrganizationID, &rule.Name, &rule.Priority, &rule.Enabled, &op, &rule.ThresholdAmount,
			&rule.VariancePercent, &rule.Condition, &rule.RequiredApprovals, &rule.ApproverRole, &ttlSeconds,
			&rule.CreatedAt, &rule.CreatedBy, &rule.LastUpdatedAt, &rule.LastUpdatedBy,
		)
		rule.OperationType = domain.OperationType(op)
		rule.TTL = time.Duration(ttlSeconds) * time.Second
		return rule, err
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan approval rules", err)
	}
	return rules, nil
}

// SaveRule inserts or replaces a rule.
func (r *PgxApprovalRuleRepository) SaveRule(ctx context.Context, rule domain.CurrencyApprovalRule) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO currency_approval_rules (
			rule_id, organization_id, name, priority, enabled, operation_type, threshold_amount,
			variance_percent, condition, required_approvals, approver_role, ttl_seconds,
			created_at, created_by, last_updated_at, last_updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (rule_id) DO UPDATE SET
			name = EXCLUDED.name,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled,
			threshold_amount = EXCLUDED.threshold_amount,
			variance_percent = EXCLUDED.variance_percent,
			condition = EXCLUDED.condition,
			required_approvals = EXCLUDED.required_approvals,
			approver_role = EXCLUDED.approver_role,
			ttl_seconds = EXCLUDED.ttl_seconds,
			last_updated_at = EXCLUDED.last_updated_at,
			last_updated_by = EXCLUDED.last_updated_by`,
		rule.RuleID, rule.OrganizationID, rule.Name, rule.Priority, rule.Enabled, string(rule.OperationType), rule.ThresholdAmount,
		rule.VariancePercent, rule.Condition, rule.RequiredApprovals, rule.ApproverRole, int64(rule.TTL/time.Second),
		rule.CreatedAt, rule.CreatedBy, rule.LastUpdatedAt, rule.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save approval rule", err)
	}
	return nil
}

// PgxApprovalRequestRepository stores approval requests and their actions.
type PgxApprovalRequestRepository struct {
	BaseRepository
}

func newPgxApprovalRequestRepository(pool *pgxpool.Pool) *PgxApprovalRequestRepository {
	return &PgxApprovalRequestRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ApprovalRequestRepository = (*PgxApprovalRequestRepository)(nil)

const approvalRequestColumns = `
	approval_request_id, organization_id, rule_id, operation_type, source_ref,
	from_currency_code, to_currency_code, amount, rate, variance_percent,
	required_approvals, current_approvals, approver_role, status, expires_at, resolved_at,
	created_at, created_by, last_updated_at, last_updated_by`

func scanApprovalRequest(row pgx.Row) (domain.CurrencyApprovalRequest, error) {
	var (
		req        domain.CurrencyApprovalRequest
		op, status string
	)
	err := row.Scan(
		&req.ApprovalRequestID, &req.OrganizationID, &req.RuleID, &op, &req.SourceRef,
		&req.FromCurrencyCode, &req.ToCurrencyCode, &req.Amount, &req.Rate, &req.VariancePercent,
		&req.RequiredApprovals, &req.CurrentApprovals, &req.ApproverRole, &status, &req.ExpiresAt, &req.ResolvedAt,
		&req.CreatedAt, &req.CreatedBy, &req.LastUpdatedAt, &req.LastUpdatedBy,
	)
	req.OperationType = domain.OperationType(op)
	req.Status = domain.ApprovalStatus(status)
	return req, err
}

func (r *PgxApprovalRequestRepository) findOne(ctx context.Context, filter string, args ...any) (*domain.CurrencyApprovalRequest, error) {
	req, err := scanApprovalRequest(r.Pool.QueryRow(ctx, `SELECT`+approvalRequestColumns+` FROM currency_approval_requests `+filter, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("approval request not found")
		}
		return nil, apperrors.NewAppError(500, "failed to find approval request", err)
	}
	return &req, nil
}

// SaveRequest inserts a new request.
func (r *PgxApprovalRequestRepository) SaveRequest(ctx context.Context, req domain.CurrencyApprovalRequest) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO currency_approval_requests (`+approvalRequestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		req.ApprovalRequestID, req.OrganizationID, req.RuleID, string(req.OperationType), req.SourceRef,
		req.FromCurrencyCode, req.ToCurrencyCode, req.Amount, req.Rate, req.VariancePercent,
		req.RequiredApprovals, req.CurrentApprovals, req.ApproverRole, string(req.Status), req.ExpiresAt, req.ResolvedAt,
		req.CreatedAt, req.CreatedBy, req.LastUpdatedAt, req.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError("approval request " + req.ApprovalRequestID + " already exists")
		}
		return apperrors.NewAppError(500, "failed to save approval request", err)
	}
	return nil
}

// FindRequestByID retrieves one request.
func (r *PgxApprovalRequestRepository) FindRequestByID(ctx context.Context, organizationID, requestID string) (*domain.CurrencyApprovalRequest, error) {
	return r.findOne(ctx, `WHERE organization_id = $1 AND approval_request_id = $2`, organizationID, requestID)
}

// FindLatestRequestBySource returns the newest request for sourceRef.
func (r *PgxApprovalRequestRepository) FindLatestRequestBySource(ctx context.Context, organizationID, sourceRef string) (*domain.CurrencyApprovalRequest, error) {
	return r.findOne(ctx, `WHERE organization_id = $1 AND source_ref = $2 ORDER BY created_at DESC LIMIT 1`,
		organizationID, sourceRef)
}

// RecordAction inserts the action and writes the request state in one transaction.
func (r *PgxApprovalRequestRepository) RecordAction(ctx context.Context, req domain.CurrencyApprovalRequest, expectedApprovals int, action domain.CurrencyApprovalAction) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO currency_approval_actions (
				action_id, approval_request_id, approver_id, approver_role, decision, comment, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			action.ActionID, req.ApprovalRequestID, action.ApproverID, action.ApproverRole,
			string(action.Decision), action.Comment, action.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewDuplicateError("approver " + action.ApproverID + " already acted")
			}
			return apperrors.NewAppError(500, "failed to record approval action", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE currency_approval_requests
			SET current_approvals = $3, status = $4, resolved_at = $5, last_updated_at = $6, last_updated_by = $7
			WHERE approval_request_id = $1 AND current_approvals = $2 AND status = 'pending'`,
			req.ApprovalRequestID, expectedApprovals, req.CurrentApprovals, string(req.Status), req.ResolvedAt,
			req.LastUpdatedAt, req.LastUpdatedBy,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to update approval request", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewConflictError("approval request " + req.ApprovalRequestID + " changed concurrently")
		}
		return nil
	})
}

// UpdateRequestStatus moves a pending request to its new terminal status.
func (r *PgxApprovalRequestRepository) UpdateRequestStatus(ctx context.Context, req domain.CurrencyApprovalRequest) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE currency_approval_requests
		SET status = $2, resolved_at = $3, last_updated_at = $4, last_updated_by = $5
		WHERE approval_request_id = $1 AND status = 'pending'`,
		req.ApprovalRequestID, string(req.Status), req.ResolvedAt, req.LastUpdatedAt, req.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update approval request status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("approval request " + req.ApprovalRequestID + " is no longer pending")
	}
	return nil
}

// ListExpiredPending returns pending requests whose deadline is at or before now.
func (r *PgxApprovalRequestRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.CurrencyApprovalRequest, error) {
	rows, err := r.Pool.Query(ctx, `SELECT`+approvalRequestColumns+`
		FROM currency_approval_requests
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query expired approval requests", err)
	}
	requests, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CurrencyApprovalRequest, error) {
		return scanApprovalRequest(row)
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan approval requests", err)
	}
	return requests, nil
}

// ListActions returns a request's actions in the order they were taken.
func (r *PgxApprovalRequestRepository) ListActions(ctx context.Context, requestID string) ([]domain.CurrencyApprovalAction, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT action_id, approval_request_id, approver_id, approver_role, decision, comment, created_at
		FROM currency_approval_actions WHERE approval_request_id = $1 ORDER BY created_at, action_id`,
		requestID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query approval actions", err)
	}
	actions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CurrencyApprovalAction, error) {
		var (
			a        domain.CurrencyApprovalAction
			decision string
		)
		err := row.Scan(&a.ActionID, &a.ApprovalRequestID, &a.ApproverID, &a.ApproverRole, &decision, &a.Comment, &a.CreatedAt)
		a.Decision = domain.ApprovalDecision(decision)
		return a, err
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan approval actions", err)
	}
	return actions, nil
}
