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

// PgxWorkerStructureRepository stores worker assignments and their overrides.
type PgxWorkerStructureRepository struct {
	BaseRepository
}

func newPgxWorkerStructureRepository(pool *pgxpool.Pool) *PgxWorkerStructureRepository {
	return &PgxWorkerStructureRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.WorkerStructureRepository = (*PgxWorkerStructureRepository)(nil)

// FindCurrentWorkerStructure returns the assignment covering asOf.
func (r *PgxWorkerStructureRepository) FindCurrentWorkerStructure(ctx context.Context, organizationID, employeeID string, asOf time.Time) (*domain.WorkerPayStructure, error) {
	var (
		ws        domain.WorkerPayStructure
		frequency *string
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT worker_structure_id, organization_id, employee_id, template_id, effective_from, effective_to,
		       base_salary, pay_frequency, payment_currency,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM worker_pay_structures
		WHERE organization_id = $1 AND employee_id = $2
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to > $3)
		ORDER BY effective_from DESC
		LIMIT 1`,
		organizationID, employeeID, asOf,
	).Scan(
		&ws.WorkerStructureID, &ws.OrganizationID, &ws.EmployeeID, &ws.TemplateID, &ws.From, &ws.To,
		&ws.BaseSalary, &frequency, &ws.PaymentCurrency,
		&ws.CreatedAt, &ws.CreatedBy, &ws.LastUpdatedAt, &ws.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("no worker structure for employee " + employeeID)
		}
		return nil, apperrors.NewAppError(500, "failed to find worker structure", err)
	}
	if frequency != nil {
		f := domain.PayFrequency(*frequency)
		ws.PayFrequency = &f
	}

	rows, err := r.Pool.Query(ctx, `
		SELECT override_id, worker_structure_id, component_code, disabled, amount, percentage, formula, rate,
		       reason, requires_approval, approved_by, approved_at
		FROM component_overrides
		WHERE worker_structure_id = $1
		ORDER BY component_code`,
		ws.WorkerStructureID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query overrides", err)
	}
	ws.Overrides, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ComponentOverride, error) {
		var o domain.ComponentOverride
		err := row.Scan(
			&o.OverrideID, &o.WorkerStructureID, &o.ComponentCode, &o.Disabled, &o.Amount, &o.Percentage,
			&o.Formula, &o.Rate, &o.Reason, &o.RequiresApproval, &o.ApprovedBy, &o.ApprovedAt,
		)
		if err != nil {
			return o, err
		}
		return o, o.ParseFormula()
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan overrides", err)
	}
	return &ws, nil
}

// SaveWorkerStructure inserts an assignment with its overrides. Assignments
// for one employee are serialized with an advisory lock for the overlap check.
func (r *PgxWorkerStructureRepository) SaveWorkerStructure(ctx context.Context, ws domain.WorkerPayStructure) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "worker-structure:"+ws.OrganizationID+":"+ws.EmployeeID); err != nil {
			return apperrors.NewAppError(500, "failed to lock worker structures", err)
		}
		var overlapping int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM worker_pay_structures
			WHERE organization_id = $1 AND employee_id = $2
			  AND effective_from < COALESCE($4, 'infinity'::timestamptz)
			  AND COALESCE(effective_to, 'infinity'::timestamptz) > $3`,
			ws.OrganizationID, ws.EmployeeID, ws.From, ws.To,
		).Scan(&overlapping)
		if err != nil {
			return apperrors.NewAppError(500, "failed to check assignment overlap", err)
		}
		if overlapping > 0 {
			return apperrors.NewConflictError("employee " + ws.EmployeeID + " already has an overlapping pay structure")
		}

		var frequency *string
		if ws.PayFrequency != nil {
			f := string(*ws.PayFrequency)
			frequency = &f
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO worker_pay_structures (
				worker_structure_id, organization_id, employee_id, template_id, effective_from, effective_to,
				base_salary, pay_frequency, payment_currency,
				created_at, created_by, last_updated_at, last_updated_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			ws.WorkerStructureID, ws.OrganizationID, ws.EmployeeID, ws.TemplateID, ws.From, ws.To,
			ws.BaseSalary, frequency, ws.PaymentCurrency,
			ws.CreatedAt, ws.CreatedBy, ws.LastUpdatedAt, ws.LastUpdatedBy,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to insert worker structure", err)
		}

		for _, o := range ws.Overrides {
			_, err := tx.Exec(ctx, `
				INSERT INTO component_overrides (
					override_id, worker_structure_id, component_code, disabled, amount, percentage, formula, rate,
					reason, requires_approval, approved_by, approved_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				o.OverrideID, ws.WorkerStructureID, o.ComponentCode, o.Disabled, o.Amount, o.Percentage, o.Formula, o.Rate,
				o.Reason, o.RequiresApproval, o.ApprovedBy, o.ApprovedAt,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return apperrors.NewDuplicateError("duplicate override for component " + o.ComponentCode)
				}
				return apperrors.NewAppError(500, "failed to insert override", err)
			}
		}
		return nil
	})
}
