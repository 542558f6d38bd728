package pgsql

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// PgxHRISFixtureWriter loads demo rows into the HRIS tables. Production HRIS
// data is owned by the HRIS itself; only the seed tool uses this.
type PgxHRISFixtureWriter struct {
	BaseRepository
}

// NewPgxHRISFixtureWriter creates a fixture writer on pool.
func NewPgxHRISFixtureWriter(pool *pgxpool.Pool) *PgxHRISFixtureWriter {
	return &PgxHRISFixtureWriter{BaseRepository: BaseRepository{Pool: pool}}
}

// UpsertEmployee writes the employee and its compensation effective at compensationFrom.
func (w *PgxHRISFixtureWriter) UpsertEmployee(ctx context.Context, e domain.EmployeeSnapshot, compensationFrom time.Time) error {
	return w.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO hris_employees (employee_id, organization_id, status, hire_date, termination_date)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (organization_id, employee_id) DO UPDATE
			SET status = EXCLUDED.status, hire_date = EXCLUDED.hire_date, termination_date = EXCLUDED.termination_date`,
			e.EmployeeID, e.OrganizationID, string(e.Status), e.HireDate, e.TerminationDate)
		if err != nil {
			return apperrors.NewAppError(500, "failed to write HRIS employee", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO hris_compensation (organization_id, employee_id, effective_from, annual_salary, hourly_rate, currency)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (organization_id, employee_id, effective_from) DO UPDATE
			SET annual_salary = EXCLUDED.annual_salary, hourly_rate = EXCLUDED.hourly_rate, currency = EXCLUDED.currency`,
			e.OrganizationID, e.EmployeeID, compensationFrom, e.AnnualSalary, e.HourlyRate, e.Currency)
		if err != nil {
			return apperrors.NewAppError(500, "failed to write HRIS compensation", err)
		}
		return nil
	})
}

// UpsertTimeEntry writes one approved time entry.
func (w *PgxHRISFixtureWriter) UpsertTimeEntry(ctx context.Context, organizationID, employeeID, entryID, entryType string, workDate time.Time, hours decimal.Decimal) error {
	_, err := w.Pool.Exec(ctx, `
		INSERT INTO hris_time_entries (entry_id, organization_id, employee_id, work_date, entry_type, hours, approved)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		ON CONFLICT (entry_id) DO UPDATE
		SET work_date = EXCLUDED.work_date, entry_type = EXCLUDED.entry_type, hours = EXCLUDED.hours`,
		entryID, organizationID, employeeID, workDate, entryType, hours)
	if err != nil {
		return apperrors.NewAppError(500, "failed to write HRIS time entry", err)
	}
	return nil
}
