package pgsql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	"github.com/SscSPs/payroll_engine/internal/models"
	"github.com/SscSPs/payroll_engine/internal/utils/mapping"
)

// PgxPayrollRunRepository stores runs, paychecks, line items and formula logs.
type PgxPayrollRunRepository struct {
	BaseRepository
}

func newPgxPayrollRunRepository(pool *pgxpool.Pool) *PgxPayrollRunRepository {
	return &PgxPayrollRunRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.PayrollRunRepositoryFacade = (*PgxPayrollRunRepository)(nil)

const runColumns = `
	run_id, organization_id, name, period_start, period_end, pay_date, status, employee_ids,
	total_gross, total_net, total_tax, total_deductions, total_employer_cost,
	created_at, created_by, last_updated_at, last_updated_by`

const paycheckColumns = `
	paycheck_id, run_id, organization_id, employee_id, status, gross, total_deductions, total_tax,
	employer_cost, net, base_currency, payment_currency, payment_amount, conversion_id,
	approval_request_id, template_id, template_version, error_kind, error_component, error_message,
	calculated_at`

const runComponentColumns = `
	run_component_id, paycheck_id, run_id, employee_id, component_code, component_name, category,
	amount, taxable, affects_gross, affects_net, sequence_order, structure_template_version,
	component_config_snapshot, tax_breakdown`

// FindRunByID retrieves a run with its current totals.
func (r *PgxPayrollRunRepository) FindRunByID(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	rows, err := r.Pool.Query(ctx, `SELECT`+runColumns+` FROM payroll_runs WHERE organization_id = $1 AND run_id = $2`,
		organizationID, runID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query payroll run", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.PayrollRun])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("payroll run not found: " + runID)
		}
		return nil, apperrors.NewAppError(500, "failed to scan payroll run", err)
	}
	run := mapping.ToDomainPayrollRun(m)
	return &run, nil
}

// FindPaycheck returns the paycheck of an employee with its line items.
func (r *PgxPayrollRunRepository) FindPaycheck(ctx context.Context, runID, employeeID string) (*domain.Paycheck, error) {
	rows, err := r.Pool.Query(ctx, `SELECT`+paycheckColumns+` FROM paychecks WHERE run_id = $1 AND employee_id = $2`,
		runID, employeeID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query paycheck", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.Paycheck])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("paycheck not found for employee " + employeeID)
		}
		return nil, apperrors.NewAppError(500, "failed to scan paycheck", err)
	}
	paycheck := mapping.ToDomainPaycheck(m)

	rows, err = r.Pool.Query(ctx, `SELECT`+runComponentColumns+`
		FROM payroll_run_components WHERE paycheck_id = $1 ORDER BY sequence_order, component_code`,
		paycheck.PaycheckID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query paycheck lines", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PayrollRunComponent])
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan paycheck lines", err)
	}
	for _, line := range lines {
		c, err := mapping.ToDomainRunComponent(line)
		if err != nil {
			return nil, apperrors.NewAppError(500, "stored paycheck line is unreadable", err)
		}
		paycheck.Components = append(paycheck.Components, c)
	}
	return &paycheck, nil
}

// ListPaychecks returns the run's paychecks without line items.
func (r *PgxPayrollRunRepository) ListPaychecks(ctx context.Context, runID string) ([]domain.Paycheck, error) {
	rows, err := r.Pool.Query(ctx, `SELECT`+paycheckColumns+` FROM paychecks WHERE run_id = $1 ORDER BY employee_id`, runID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query paychecks", err)
	}
	modelPaychecks, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Paycheck])
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan paychecks", err)
	}
	paychecks := make([]domain.Paycheck, len(modelPaychecks))
	for i, m := range modelPaychecks {
		paychecks[i] = mapping.ToDomainPaycheck(m)
	}
	return paychecks, nil
}

// FindRunsAwaitingApproval lists calculating runs holding a paycheck suspended on requestID.
func (r *PgxPayrollRunRepository) FindRunsAwaitingApproval(ctx context.Context, organizationID, requestID string) ([]string, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT DISTINCT r.run_id
		FROM payroll_runs r
		JOIN paychecks p ON p.run_id = r.run_id
		WHERE r.organization_id = $1 AND r.status = $2
		  AND p.status = $3 AND p.approval_request_id = $4
		ORDER BY r.run_id`,
		organizationID, string(domain.RunCalculating), string(domain.PaycheckPendingApproval), requestID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query runs awaiting approval", err)
	}
	runIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan runs awaiting approval", err)
	}
	return runIDs, nil
}

// SaveRun inserts a new run.
func (r *PgxPayrollRunRepository) SaveRun(ctx context.Context, run domain.PayrollRun) error {
	m := mapping.ToModelPayrollRun(run)
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO payroll_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		m.RunID, m.OrganizationID, m.Name, m.PeriodStart, m.PeriodEnd, m.PayDate, m.Status, m.EmployeeIDs,
		m.TotalGross, m.TotalNet, m.TotalTax, m.TotalDeductions, m.TotalEmployerCost,
		m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError("payroll run " + m.RunID + " already exists")
		}
		return apperrors.NewAppError(500, "failed to save payroll run", err)
	}
	return nil
}

// UpdateRunStatus moves the run from one status to another.
func (r *PgxPayrollRunRepository) UpdateRunStatus(ctx context.Context, runID string, from, to domain.RunStatus) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE payroll_runs SET status = $3, last_updated_at = now()
		WHERE run_id = $1 AND status = $2`,
		runID, string(from), string(to))
	if err != nil {
		return apperrors.NewAppError(500, "failed to update payroll run status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("payroll run " + runID + " is no longer " + string(from))
	}
	return nil
}

// SavePaycheck replaces the employee's previous paycheck and adjusts the run
// totals by the difference.
func (r *PgxPayrollRunRepository) SavePaycheck(ctx context.Context, record portsrepo.PaycheckRecord) error {
	p := mapping.ToModelPaycheck(record.Paycheck)
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		// The run row lock serializes concurrent total adjustments.
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE run_id = $1 FOR UPDATE`, p.RunID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFoundError("payroll run not found: " + p.RunID)
			}
			return apperrors.NewAppError(500, "failed to lock payroll run", err)
		}
		if domain.RunStatus(status) != domain.RunCalculating {
			return apperrors.NewConflictError("payroll run " + p.RunID + " is " + status)
		}

		old := models.Paycheck{}
		err = tx.QueryRow(ctx, `
			SELECT gross, total_deductions, total_tax, employer_cost, net
			FROM paychecks WHERE run_id = $1 AND employee_id = $2`,
			p.RunID, p.EmployeeID,
		).Scan(&old.Gross, &old.TotalDeductions, &old.TotalTax, &old.EmployerCost, &old.Net)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewAppError(500, "failed to load previous paycheck", err)
		}

		if err := r.clearEmployee(ctx, tx, p.RunID, p.EmployeeID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO paychecks (`+paycheckColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			p.PaycheckID, p.RunID, p.OrganizationID, p.EmployeeID, p.Status, p.Gross, p.TotalDeductions, p.TotalTax,
			p.EmployerCost, p.Net, p.BaseCurrency, p.PaymentCurrency, p.PaymentAmount, p.ConversionID,
			p.ApprovalRequestID, p.TemplateID, p.TemplateVersion, p.ErrorKind, p.ErrorComponent, p.ErrorMessage,
			p.CalculatedAt,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to insert paycheck", err)
		}

		batch := &pgx.Batch{}
		for _, line := range record.Components {
			m, err := mapping.ToModelRunComponent(line)
			if err != nil {
				return apperrors.NewAppError(500, "failed to encode paycheck line", err)
			}
			batch.Queue(`INSERT INTO payroll_run_components (`+runComponentColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				m.RunComponentID, m.PaycheckID, m.RunID, m.EmployeeID, m.ComponentCode, m.ComponentName, m.Category,
				m.Amount, m.Taxable, m.AffectsGross, m.AffectsNet, m.SequenceOrder, m.StructureTemplateVersion,
				m.ComponentConfigSnapshot, m.TaxBreakdown)
		}
		for _, log := range record.Logs {
			m, err := mapping.ToModelFormulaLog(log)
			if err != nil {
				return apperrors.NewAppError(500, "failed to encode formula log", err)
			}
			batch.Queue(`INSERT INTO formula_execution_logs (
					log_id, organization_id, run_id, employee_id, component_code, expression, inputs,
					result, duration_micros, executed_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				m.LogID, m.OrganizationID, m.RunID, m.EmployeeID, m.ComponentCode, m.Expression, m.Inputs,
				m.Result, m.DurationMicros, m.ExecutedAt)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return apperrors.NewAppError(500, "failed to insert paycheck lines", err)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE payroll_runs SET
				total_gross = total_gross + $2,
				total_deductions = total_deductions + $3,
				total_tax = total_tax + $4,
				total_employer_cost = total_employer_cost + $5,
				total_net = total_net + $6,
				last_updated_at = $7
			WHERE run_id = $1`,
			p.RunID,
			delta(p.Gross, old.Gross), delta(p.TotalDeductions, old.TotalDeductions), delta(p.TotalTax, old.TotalTax),
			delta(p.EmployerCost, old.EmployerCost), delta(p.Net, old.Net), p.CalculatedAt,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to adjust payroll run totals", err)
		}
		return nil
	})
}

func (r *PgxPayrollRunRepository) clearEmployee(ctx context.Context, tx pgx.Tx, runID, employeeID string) error {
	for _, stmt := range []string{
		`DELETE FROM payroll_run_components WHERE run_id = $1 AND employee_id = $2`,
		`DELETE FROM formula_execution_logs WHERE run_id = $1 AND employee_id = $2`,
		`DELETE FROM paychecks WHERE run_id = $1 AND employee_id = $2`,
	} {
		if _, err := tx.Exec(ctx, stmt, runID, employeeID); err != nil {
			return apperrors.NewAppError(500, "failed to clear previous paycheck", err)
		}
	}
	return nil
}

func delta(next, previous decimal.Decimal) decimal.Decimal {
	return next.Sub(previous)
}
