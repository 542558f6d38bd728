package pgsql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
)

// PgxTaxRuleSetRepository stores tax rule sets and brackets.
type PgxTaxRuleSetRepository struct {
	BaseRepository
}

func newPgxTaxRuleSetRepository(pool *pgxpool.Pool) *PgxTaxRuleSetRepository {
	return &PgxTaxRuleSetRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TaxRuleSetRepository = (*PgxTaxRuleSetRepository)(nil)

// FindTaxRuleSetByID retrieves a rule set with brackets ordered by income_min.
func (r *PgxTaxRuleSetRepository) FindTaxRuleSetByID(ctx context.Context, organizationID, taxRuleSetID string) (*domain.TaxRuleSet, error) {
	var (
		rs           domain.TaxRuleSet
		method, mode string
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT tax_rule_set_id, organization_id, code, jurisdiction, calculation_method, calculation_mode,
		       flat_rate, effective_from, effective_to,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM tax_rule_sets
		WHERE organization_id = $1 AND tax_rule_set_id = $2`,
		organizationID, taxRuleSetID,
	).Scan(
		&rs.TaxRuleSetID, &rs.OrganizationID, &rs.Code, &rs.Jurisdiction, &method, &mode,
		&rs.FlatRate, &rs.From, &rs.To,
		&rs.CreatedAt, &rs.CreatedBy, &rs.LastUpdatedAt, &rs.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("tax rule set not found: " + taxRuleSetID)
		}
		return nil, apperrors.NewAppError(500, "failed to find tax rule set", err)
	}
	rs.CalculationMethod = domain.TaxCalculationMethod(method)
	rs.CalculationMode = domain.TaxCalculationMode(mode)

	rows, err := r.Pool.Query(ctx, `
		SELECT income_min, income_max, rate_percentage, fixed_amount
		FROM tax_brackets WHERE tax_rule_set_id = $1 ORDER BY income_min`,
		taxRuleSetID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query tax brackets", err)
	}
	rs.Brackets, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TaxBracket, error) {
		var b domain.TaxBracket
		err := row.Scan(&b.IncomeMin, &b.IncomeMax, &b.RatePercentage, &b.FixedAmount)
		return b, err
	})
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan tax brackets", err)
	}
	return &rs, nil
}

// SaveTaxRuleSet inserts a rule set and its brackets.
func (r *PgxTaxRuleSetRepository) SaveTaxRuleSet(ctx context.Context, rs domain.TaxRuleSet) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO tax_rule_sets (
				tax_rule_set_id, organization_id, code, jurisdiction, calculation_method, calculation_mode,
				flat_rate, effective_from, effective_to,
				created_at, created_by, last_updated_at, last_updated_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			rs.TaxRuleSetID, rs.OrganizationID, rs.Code, rs.Jurisdiction,
			string(rs.CalculationMethod), string(rs.CalculationMode), rs.FlatRate, rs.From, rs.To,
			rs.CreatedAt, rs.CreatedBy, rs.LastUpdatedAt, rs.LastUpdatedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewDuplicateError("tax rule set " + rs.TaxRuleSetID + " already exists")
			}
			return apperrors.NewAppError(500, "failed to insert tax rule set", err)
		}

		batch := &pgx.Batch{}
		for _, b := range rs.Brackets {
			batch.Queue(`
				INSERT INTO tax_brackets (tax_rule_set_id, income_min, income_max, rate_percentage, fixed_amount)
				VALUES ($1, $2, $3, $4, $5)`,
				rs.TaxRuleSetID, b.IncomeMin, b.IncomeMax, b.RatePercentage, b.FixedAmount)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperrors.NewAppError(500, "failed to insert tax brackets", err)
		}
		return nil
	})
}
