package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
)

// Time entry types with a dedicated variable; any other type becomes an extra.
const (
	entryRegular  = "regular"
	entryOvertime = "overtime"
)

// PgxHRISRepository reads the HRIS tables. It never writes.
type PgxHRISRepository struct {
	BaseRepository
}

func newPgxHRISRepository(pool *pgxpool.Pool) *PgxHRISRepository {
	return &PgxHRISRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var (
	_ portsrepo.EmployeeDirectory = (*PgxHRISRepository)(nil)
	_ portsrepo.TimeDataSource    = (*PgxHRISRepository)(nil)
)

// GetEmployee returns the employee with the compensation effective at asOf.
// An employee without a compensation record has zero salary and rate.
func (r *PgxHRISRepository) GetEmployee(ctx context.Context, organizationID, employeeID string, asOf time.Time) (*domain.EmployeeSnapshot, error) {
	var (
		e              domain.EmployeeSnapshot
		status         string
		annual, hourly *decimal.Decimal
		currency       *string
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT e.employee_id, e.organization_id, e.status, e.hire_date, e.termination_date,
		       c.annual_salary, c.hourly_rate, c.currency
		FROM hris_employees e
		LEFT JOIN LATERAL (
			SELECT annual_salary, hourly_rate, currency
			FROM hris_compensation
			WHERE organization_id = e.organization_id AND employee_id = e.employee_id AND effective_from <= $3
			ORDER BY effective_from DESC
			LIMIT 1
		) c ON true
		WHERE e.organization_id = $1 AND e.employee_id = $2`,
		organizationID, employeeID, asOf,
	).Scan(&e.EmployeeID, &e.OrganizationID, &status, &e.HireDate, &e.TerminationDate, &annual, &hourly, &currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("employee not found: " + employeeID)
		}
		return nil, apperrors.NewAppError(500, "failed to read employee", err)
	}
	e.Status = domain.EmploymentStatus(status)
	if annual != nil {
		e.AnnualSalary = *annual
	}
	if hourly != nil {
		e.HourlyRate = *hourly
	}
	if currency != nil {
		e.Currency = *currency
	}
	return &e, nil
}

// GetTimeData totals approved time entries in [periodStart, periodEnd].
func (r *PgxHRISRepository) GetTimeData(ctx context.Context, organizationID, employeeID string, periodStart, periodEnd time.Time) (*domain.TimeData, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT entry_type, SUM(hours)
		FROM hris_time_entries
		WHERE organization_id = $1 AND employee_id = $2 AND approved
		  AND work_date BETWEEN $3::date AND $4::date
		GROUP BY entry_type`,
		organizationID, employeeID, periodStart, periodEnd)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query time entries", err)
	}
	defer rows.Close()

	data := &domain.TimeData{HoursWorked: decimal.Zero, OvertimeHours: decimal.Zero}
	for rows.Next() {
		var (
			entryType string
			hours     decimal.Decimal
		)
		if err := rows.Scan(&entryType, &hours); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan time entries", err)
		}
		switch entryType {
		case entryRegular:
			data.HoursWorked = hours
		case entryOvertime:
			data.OvertimeHours = hours
		default:
			if data.Extra == nil {
				data.Extra = make(map[string]decimal.Decimal)
			}
			data.Extra[entryType] = hours
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed to read time entries", err)
	}
	return data, nil
}
