package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/dto"
)

// ExchangeRateReaderSvc defines read operations for exchange rate data
type ExchangeRateReaderSvc interface {
	// GetExchangeRate returns the rate for the pair covering asOf.
	GetExchangeRate(ctx context.Context, organizationID, fromCode, toCode string, asOf time.Time) (*domain.ExchangeRate, error)
}

// ExchangeRateWriterSvc defines write operations for exchange rate data
type ExchangeRateWriterSvc interface {
	// CreateExchangeRate replaces the pair's open rate. Large moves may require
	// approval, in which case ErrApprovalRequired is returned and nothing is stored.
	CreateExchangeRate(ctx context.Context, organizationID string, req dto.CreateExchangeRateRequest, creatorUserID string) (*domain.ExchangeRate, error)
}

// ExchangeRateSvcFacade combines all exchange rate-related service interfaces
type ExchangeRateSvcFacade interface {
	ExchangeRateReaderSvc
	ExchangeRateWriterSvc
}

// ConversionRequest is one amount to convert.
type ConversionRequest struct {
	OrganizationID string
	Amount         decimal.Decimal
	From           string
	To             string
	AsOf           time.Time
	// SourceRef ties the conversion and any approval request to its origin so a
	// resumed calculation finds the request it raised earlier.
	SourceRef string
	// RenewResolved is passed through to the approval gate.
	RenewResolved bool
}

// ConversionResult is an executed conversion.
type ConversionResult struct {
	ConvertedAmount decimal.Decimal
	RateUsed        decimal.Decimal
	ConversionID    string
}

// CurrencyConverterSvc converts amounts under approval gating.
type CurrencyConverterSvc interface {
	// Convert executes the conversion or returns ErrApprovalRequired while an
	// approval request for it is pending.
	Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error)
}
