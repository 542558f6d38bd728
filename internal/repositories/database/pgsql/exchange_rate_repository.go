package pgsql

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	"github.com/SscSPs/payroll_engine/internal/models"
	"github.com/SscSPs/payroll_engine/internal/utils/mapping"
)

// PgxExchangeRateRepository implements the ExchangeRateRepositoryFacade using pgxpool.
type PgxExchangeRateRepository struct {
	BaseRepository
}

func newPgxExchangeRateRepository(db *pgxpool.Pool) *PgxExchangeRateRepository {
	return &PgxExchangeRateRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*PgxExchangeRateRepository)(nil)

const exchangeRateColumns = `
	exchange_rate_id, organization_id, from_currency_code, to_currency_code, rate,
	effective_from, effective_to, created_at, created_by, last_updated_at, last_updated_by`

// SaveExchangeRate closes the pair's open rate and inserts the new one.
func (r *PgxExchangeRateRepository) SaveExchangeRate(ctx context.Context, rate domain.ExchangeRate) error {
	m := mapping.ToModelExchangeRate(rate)
	m.FromCurrencyCode = strings.ToUpper(m.FromCurrencyCode)
	m.ToCurrencyCode = strings.ToUpper(m.ToCurrencyCode)
	if m.FromCurrencyCode == m.ToCurrencyCode {
		return apperrors.NewValidationError("from and to currencies cannot be the same")
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE exchange_rates
			SET effective_to = $4, last_updated_at = $5, last_updated_by = $6
			WHERE organization_id = $1 AND from_currency_code = $2 AND to_currency_code = $3
			  AND effective_to IS NULL`,
			m.OrganizationID, m.FromCurrencyCode, m.ToCurrencyCode, m.EffectiveFrom,
			m.LastUpdatedAt, m.LastUpdatedBy,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to close previous exchange rate", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO exchange_rates (`+exchangeRateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			m.ExchangeRateID, m.OrganizationID, m.FromCurrencyCode, m.ToCurrencyCode, m.Rate,
			m.EffectiveFrom, m.EffectiveTo, m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewConflictError("exchange rate " + m.FromCurrencyCode + "/" + m.ToCurrencyCode + " changed concurrently")
			}
			return apperrors.NewAppError(500, "failed to save exchange rate", err)
		}
		return nil
	})
}

// FindExchangeRate returns the rate covering asOf, falling back to the inverse pair.
func (r *PgxExchangeRateRepository) FindExchangeRate(ctx context.Context, organizationID, fromCurrencyCode, toCurrencyCode string, asOf time.Time) (*domain.ExchangeRate, error) {
	fromCurrency := strings.ToUpper(fromCurrencyCode)
	toCurrency := strings.ToUpper(toCurrencyCode)

	directRate, err := r.findRate(ctx, `
		WHERE organization_id = $1 AND from_currency_code = $2 AND to_currency_code = $3
		  AND effective_from <= $4 AND (effective_to IS NULL OR effective_to > $4)`,
		organizationID, fromCurrency, toCurrency, asOf)
	if err == nil {
		return directRate, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	inverseRate, err := r.findRate(ctx, `
		WHERE organization_id = $1 AND from_currency_code = $2 AND to_currency_code = $3
		  AND effective_from <= $4 AND (effective_to IS NULL OR effective_to > $4)`,
		organizationID, toCurrency, fromCurrency, asOf)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("no exchange rate found for currency pair " + fromCurrency + " to " + toCurrency)
		}
		return nil, err
	}
	inverseRate.FromCurrencyCode = fromCurrency
	inverseRate.ToCurrencyCode = toCurrency
	inverseRate.Rate = decimal.NewFromInt(1).DivRound(inverseRate.Rate, 10)
	return inverseRate, nil
}

// FindOpenExchangeRate returns the pair's rate without an end date.
func (r *PgxExchangeRateRepository) FindOpenExchangeRate(ctx context.Context, organizationID, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error) {
	return r.findRate(ctx, `
		WHERE organization_id = $1 AND from_currency_code = $2 AND to_currency_code = $3 AND effective_to IS NULL`,
		organizationID, strings.ToUpper(fromCurrencyCode), strings.ToUpper(toCurrencyCode))
}

func (r *PgxExchangeRateRepository) findRate(ctx context.Context, filter string, args ...any) (*domain.ExchangeRate, error) {
	rows, err := r.Pool.Query(ctx, `SELECT`+exchangeRateColumns+` FROM exchange_rates `+filter+`
		ORDER BY effective_from DESC LIMIT 1`, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query exchange rate", err)
	}
	modelRate, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.ExchangeRate])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange rate not found")
		}
		return nil, apperrors.NewAppError(500, "failed to find exchange rate", err)
	}
	domainRate := mapping.ToDomainExchangeRate(modelRate)
	return &domainRate, nil
}

// PgxConversionRepository stores the currency conversion audit trail.
type PgxConversionRepository struct {
	BaseRepository
}

func newPgxConversionRepository(db *pgxpool.Pool) *PgxConversionRepository {
	return &PgxConversionRepository{BaseRepository: BaseRepository{Pool: db}}
}

var _ portsrepo.ConversionRepository = (*PgxConversionRepository)(nil)

// SaveConversion inserts an immutable conversion record.
func (r *PgxConversionRepository) SaveConversion(ctx context.Context, c domain.CurrencyConversion) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO currency_conversions (
			conversion_id, organization_id, exchange_rate_id, from_currency_code, to_currency_code,
			source_amount, converted_amount, rate, approval_request_id, source_ref, converted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ConversionID, c.OrganizationID, c.ExchangeRateID, c.FromCurrencyCode, c.ToCurrencyCode,
		c.SourceAmount, c.ConvertedAmount, c.Rate, c.ApprovalRequestID, c.SourceRef, c.ConvertedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError("conversion " + c.ConversionID + " already recorded")
		}
		return apperrors.NewAppError(500, "failed to save conversion", err)
	}
	return nil
}

// FindConversionByID retrieves one conversion record.
func (r *PgxConversionRepository) FindConversionByID(ctx context.Context, conversionID string) (*domain.CurrencyConversion, error) {
	var c domain.CurrencyConversion
	err := r.Pool.QueryRow(ctx, `
		SELECT conversion_id, organization_id, exchange_rate_id, from_currency_code, to_currency_code,
		       source_amount, converted_amount, rate, approval_request_id, source_ref, converted_at
		FROM currency_conversions WHERE conversion_id = $1`,
		conversionID,
	).Scan(
		&c.ConversionID, &c.OrganizationID, &c.ExchangeRateID, &c.FromCurrencyCode, &c.ToCurrencyCode,
		&c.SourceAmount, &c.ConvertedAmount, &c.Rate, &c.ApprovalRequestID, &c.SourceRef, &c.ConvertedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("conversion not found: " + conversionID)
		}
		return nil, apperrors.NewAppError(500, "failed to find conversion", err)
	}
	return &c, nil
}
