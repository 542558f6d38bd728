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

// PgxAllowanceRepository stores allowances, usage rows and per-source entries.
type PgxAllowanceRepository struct {
	BaseRepository
}

func newPgxAllowanceRepository(pool *pgxpool.Pool) *PgxAllowanceRepository {
	return &PgxAllowanceRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AllowanceRepositoryFacade = (*PgxAllowanceRepository)(nil)

const usageColumns = `
	usage_id, organization_id, employee_id, allowance_type, calendar_year,
	amount_used, amount_remaining, version, updated_at`

func scanUsage(row pgx.Row) (*domain.EmployeeAllowanceUsage, error) {
	var u domain.EmployeeAllowanceUsage
	err := row.Scan(
		&u.UsageID, &u.OrganizationID, &u.EmployeeID, &u.AllowanceType, &u.CalendarYear,
		&u.AmountUsed, &u.AmountRemaining, &u.Version, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("allowance usage not found")
		}
		return nil, apperrors.NewAppError(500, "failed to scan allowance usage", err)
	}
	return &u, nil
}

// FindAllowance returns the allowance of the given type effective at asOf.
func (r *PgxAllowanceRepository) FindAllowance(ctx context.Context, organizationID, allowanceType string, asOf time.Time) (*domain.Allowance, error) {
	var (
		a        domain.Allowance
		calcType string
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT allowance_id, organization_id, allowance_type, name, calculation_type, amount, percentage,
		       annual_cap, tax_free, effective_from, effective_to,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM allowances
		WHERE organization_id = $1 AND allowance_type = $2
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to > $3)
		ORDER BY effective_from DESC
		LIMIT 1`,
		organizationID, allowanceType, asOf,
	).Scan(
		&a.AllowanceID, &a.OrganizationID, &a.AllowanceType, &a.Name, &calcType, &a.Amount, &a.Percentage,
		&a.AnnualCap, &a.TaxFree, &a.From, &a.To,
		&a.CreatedAt, &a.CreatedBy, &a.LastUpdatedAt, &a.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("allowance not found: " + allowanceType)
		}
		return nil, apperrors.NewAppError(500, "failed to find allowance", err)
	}
	a.CalculationType = domain.AllowanceCalculationType(calcType)
	return &a, nil
}

// FindUsage returns the usage row for key.
func (r *PgxAllowanceRepository) FindUsage(ctx context.Context, key domain.AllowanceKey) (*domain.EmployeeAllowanceUsage, error) {
	return scanUsage(r.Pool.QueryRow(ctx, `SELECT`+usageColumns+`
		FROM employee_allowance_usage
		WHERE organization_id = $1 AND employee_id = $2 AND allowance_type = $3 AND calendar_year = $4`,
		key.OrganizationID, key.EmployeeID, key.AllowanceType, key.CalendarYear))
}

// FindUsageByID returns a usage row by id.
func (r *PgxAllowanceRepository) FindUsageByID(ctx context.Context, usageID string) (*domain.EmployeeAllowanceUsage, error) {
	return scanUsage(r.Pool.QueryRow(ctx, `SELECT`+usageColumns+` FROM employee_allowance_usage WHERE usage_id = $1`, usageID))
}

// FindUsageEntry returns what sourceRef consumed from the usage row.
func (r *PgxAllowanceRepository) FindUsageEntry(ctx context.Context, usageID, sourceRef string) (*domain.AllowanceUsageEntry, error) {
	var e domain.AllowanceUsageEntry
	err := r.Pool.QueryRow(ctx, `
		SELECT usage_id, source_ref, amount, created_at
		FROM allowance_usage_entries WHERE usage_id = $1 AND source_ref = $2`,
		usageID, sourceRef,
	).Scan(&e.UsageID, &e.SourceRef, &e.Amount, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("usage entry not found: " + sourceRef)
		}
		return nil, apperrors.NewAppError(500, "failed to find usage entry", err)
	}
	return &e, nil
}

// FindUsageEntriesBySourcePrefix lists the entries whose source ref starts with prefix.
func (r *PgxAllowanceRepository) FindUsageEntriesBySourcePrefix(ctx context.Context, organizationID, prefix string) ([]domain.AllowanceUsageEntry, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT e.usage_id, e.source_ref, e.amount, e.created_at
		FROM allowance_usage_entries e
		JOIN employee_allowance_usage u ON u.usage_id = e.usage_id
		WHERE u.organization_id = $1 AND starts_with(e.source_ref, $2)
		ORDER BY e.source_ref`,
		organizationID, prefix)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query usage entries", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AllowanceUsageEntry, error) {
		var e domain.AllowanceUsageEntry
		err := row.Scan(&e.UsageID, &e.SourceRef, &e.Amount, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan usage entries", err)
	}
	return entries, nil
}

// SaveAllowance inserts an allowance definition.
func (r *PgxAllowanceRepository) SaveAllowance(ctx context.Context, a domain.Allowance) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO allowances (
			allowance_id, organization_id, allowance_type, name, calculation_type, amount, percentage,
			annual_cap, tax_free, effective_from, effective_to,
			created_at, created_by, last_updated_at, last_updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.AllowanceID, a.OrganizationID, a.AllowanceType, a.Name, string(a.CalculationType), a.Amount, a.Percentage,
		a.AnnualCap, a.TaxFree, a.From, a.To,
		a.CreatedAt, a.CreatedBy, a.LastUpdatedAt, a.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError("allowance " + a.AllowanceID + " already exists")
		}
		return apperrors.NewAppError(500, "failed to insert allowance", err)
	}
	return nil
}

// CreateUsage inserts a zero-initialised usage row.
func (r *PgxAllowanceRepository) CreateUsage(ctx context.Context, u domain.EmployeeAllowanceUsage) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO employee_allowance_usage (`+usageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.UsageID, u.OrganizationID, u.EmployeeID, u.AllowanceType, u.CalendarYear,
		u.AmountUsed, u.AmountRemaining, u.Version, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError("allowance usage already exists for " + u.EmployeeID + " " + u.AllowanceType)
		}
		return apperrors.NewAppError(500, "failed to insert allowance usage", err)
	}
	return nil
}

// UpdateUsage writes usage and its source entry only if the stored version
// still equals expectedVersion.
func (r *PgxAllowanceRepository) UpdateUsage(ctx context.Context, u domain.EmployeeAllowanceUsage, expectedVersion int64, entry domain.AllowanceUsageEntry) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE employee_allowance_usage
			SET amount_used = $3, amount_remaining = $4, version = $5, updated_at = $6
			WHERE usage_id = $1 AND version = $2`,
			u.UsageID, expectedVersion, u.AmountUsed, u.AmountRemaining, u.Version, u.UpdatedAt,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to update allowance usage", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewConflictError("allowance usage " + u.UsageID + " changed concurrently")
		}

		if entry.Amount.IsZero() {
			_, err = tx.Exec(ctx, `DELETE FROM allowance_usage_entries WHERE usage_id = $1 AND source_ref = $2`,
				u.UsageID, entry.SourceRef)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO allowance_usage_entries (usage_id, source_ref, amount, created_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (usage_id, source_ref) DO UPDATE SET amount = EXCLUDED.amount`,
				u.UsageID, entry.SourceRef, entry.Amount, entry.CreatedAt)
		}
		if err != nil {
			return apperrors.NewAppError(500, "failed to write usage entry", err)
		}
		return nil
	})
}
