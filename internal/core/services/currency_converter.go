package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

const defaultRateLookupTimeout = 2 * time.Second

// currencyConverter implements CurrencyConverterSvc
type currencyConverter struct {
	BaseService
	rates         portsrepo.ExchangeRateReader
	conversions   portsrepo.ConversionRepository
	gate          portssvc.ApprovalGate
	archive       portssvc.AuditArchive
	lookupTimeout time.Duration
}

// ConverterOption is a functional option for configuring the converter
type ConverterOption func(*currencyConverter)

// WithRateLookupTimeout bounds each exchange rate lookup.
func WithRateLookupTimeout(d time.Duration) ConverterOption {
	return func(c *currencyConverter) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

// WithConversionArchive mirrors executed conversions to the audit archive.
func WithConversionArchive(archive portssvc.AuditArchive) ConverterOption {
	return func(c *currencyConverter) {
		c.archive = archive
	}
}

// NewCurrencyConverter creates a converter gated by the approval workflow.
func NewCurrencyConverter(rates portsrepo.ExchangeRateReader, conversions portsrepo.ConversionRepository, gate portssvc.ApprovalGate, options ...ConverterOption) *currencyConverter {
	c := &currencyConverter{
		rates:         rates,
		conversions:   conversions,
		gate:          gate,
		lookupTimeout: defaultRateLookupTimeout,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ portssvc.CurrencyConverterSvc = (*currencyConverter)(nil)

func (c *currencyConverter) Convert(ctx context.Context, req portssvc.ConversionRequest) (*portssvc.ConversionResult, error) {
	if req.From == req.To {
		return &portssvc.ConversionResult{ConvertedAmount: req.Amount, RateUsed: decimal.NewFromInt(1)}, nil
	}

	rate, err := c.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	converted := domain.RoundMoney(req.Amount.Mul(rate.Rate))

	request, err := c.gate.Check(ctx, portssvc.GatedOperation{
		OrganizationID: req.OrganizationID,
		OperationType:  domain.OperationConversion,
		SourceRef:      req.SourceRef,
		From:           req.From,
		To:             req.To,
		Amount:         req.Amount,
		Rate:           rate.Rate,
		RenewResolved:  req.RenewResolved,
	})
	if err != nil {
		return nil, err
	}

	conversion := domain.CurrencyConversion{
		ConversionID:     uuid.NewString(),
		OrganizationID:   req.OrganizationID,
		ExchangeRateID:   rate.ExchangeRateID,
		FromCurrencyCode: req.From,
		ToCurrencyCode:   req.To,
		SourceAmount:     req.Amount,
		ConvertedAmount:  converted,
		Rate:             rate.Rate,
		SourceRef:        req.SourceRef,
		ConvertedAt:      c.Now(),
	}
	if request != nil {
		id := request.ApprovalRequestID
		conversion.ApprovalRequestID = &id
	}
	if err := c.conversions.SaveConversion(ctx, conversion); err != nil {
		return nil, fmt.Errorf("failed to record currency conversion: %w", err)
	}
	if c.archive != nil {
		if err := c.archive.ArchiveConversion(ctx, conversion); err != nil {
			c.LogError(ctx, err, "Failed to archive currency conversion",
				slog.String("conversion_id", conversion.ConversionID))
		}
	}

	c.LogDebug(ctx, "Currency converted",
		slog.String("from", req.From),
		slog.String("to", req.To),
		slog.String("amount", req.Amount.String()),
		slog.String("converted", converted.String()))
	return &portssvc.ConversionResult{
		ConvertedAmount: converted,
		RateUsed:        rate.Rate,
		ConversionID:    conversion.ConversionID,
	}, nil
}

func (c *currencyConverter) lookup(ctx context.Context, req portssvc.ConversionRequest) (*domain.ExchangeRate, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	rate, err := c.rates.FindExchangeRate(lookupCtx, req.OrganizationID, req.From, req.To, req.AsOf)
	switch {
	case err == nil:
		return rate, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("%w: %s to %s on %s", apperrors.ErrNoExchangeRate, req.From, req.To, req.AsOf.Format(time.DateOnly))
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, fmt.Errorf("%w: %s to %s after %s", apperrors.ErrRateLookupTimeout, req.From, req.To, c.lookupTimeout)
	default:
		return nil, fmt.Errorf("failed to look up exchange rate: %w", err)
	}
}
