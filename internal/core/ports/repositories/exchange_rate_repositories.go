package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// ExchangeRateReader defines read operations for exchange rate data
type ExchangeRateReader interface {
	// FindExchangeRate returns the rate for the pair covering asOf. When only the
	// inverse pair is stored, the inverted rate is returned.
	FindExchangeRate(ctx context.Context, organizationID, fromCurrencyCode, toCurrencyCode string, asOf time.Time) (*domain.ExchangeRate, error)

	// FindOpenExchangeRate returns the rate without an end date for the pair, or ErrNotFound.
	FindOpenExchangeRate(ctx context.Context, organizationID, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error)
}

// ExchangeRateWriter defines write operations for exchange rate data
type ExchangeRateWriter interface {
	// SaveExchangeRate closes the pair's open rate at rate.EffectiveFrom and
	// inserts rate, atomically.
	SaveExchangeRate(ctx context.Context, rate domain.ExchangeRate) error
}

// ExchangeRateRepositoryFacade combines all exchange rate-related repository interfaces
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}

// ConversionRepository stores the immutable currency conversion audit trail.
type ConversionRepository interface {
	SaveConversion(ctx context.Context, conversion domain.CurrencyConversion) error
	FindConversionByID(ctx context.Context, conversionID string) (*domain.CurrencyConversion, error)
}
