package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
)

// exchangeRateService provides business logic for exchange rates.
type exchangeRateService struct {
	BaseService
	rateRepo portsrepo.ExchangeRateRepositoryFacade
	gate     portssvc.ApprovalGate
}

// NewExchangeRateService creates a new exchange rate service. Rate changes go
// through gate.
func NewExchangeRateService(rateRepo portsrepo.ExchangeRateRepositoryFacade, gate portssvc.ApprovalGate) *exchangeRateService {
	return &exchangeRateService{
		rateRepo: rateRepo,
		gate:     gate,
	}
}

var _ portssvc.ExchangeRateSvcFacade = (*exchangeRateService)(nil)

// CreateExchangeRate handles the creation of a new exchange rate.
func (s *exchangeRateService) CreateExchangeRate(ctx context.Context, organizationID string, req dto.CreateExchangeRateRequest, creatorUserID string) (*domain.ExchangeRate, error) {
	from := strings.ToUpper(req.FromCurrencyCode)
	to := strings.ToUpper(req.ToCurrencyCode)
	if req.Rate.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: exchange rate must be positive", apperrors.ErrValidation)
	}
	if from == to {
		return nil, fmt.Errorf("%w: from and to currency codes cannot be the same", apperrors.ErrValidation)
	}
	effectiveFrom := req.EffectiveFrom.UTC()

	variance := decimal.Zero
	previous, err := s.rateRepo.FindOpenExchangeRate(ctx, organizationID, from, to)
	switch {
	case err == nil:
		if !effectiveFrom.After(previous.EffectiveFrom) {
			return nil, fmt.Errorf("%w: new rate must take effect after %s", apperrors.ErrValidation, previous.EffectiveFrom.Format(time.DateOnly))
		}
		variance = req.Rate.Sub(previous.Rate).Div(previous.Rate).Mul(decimal.NewFromInt(100))
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load current exchange rate: %w", err)
	}

	if _, err := s.gate.Check(ctx, portssvc.GatedOperation{
		OrganizationID:  organizationID,
		OperationType:   domain.OperationRateChange,
		SourceRef:       fmt.Sprintf("rate:%s:%s:%s:%s", organizationID, from, to, effectiveFrom.Format(time.RFC3339)),
		From:            from,
		To:              to,
		Rate:            req.Rate,
		VariancePercent: variance,
		RenewResolved:   true,
	}); err != nil {
		return nil, err
	}

	now := s.Now()
	rate := domain.ExchangeRate{
		ExchangeRateID:   uuid.NewString(),
		OrganizationID:   organizationID,
		FromCurrencyCode: from,
		ToCurrencyCode:   to,
		Rate:             req.Rate,
		EffectiveFrom:    effectiveFrom,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}
	if err := s.rateRepo.SaveExchangeRate(ctx, rate); err != nil {
		s.LogError(ctx, err, "Failed to save exchange rate",
			slog.String("from", from),
			slog.String("to", to))
		return nil, fmt.Errorf("failed to create exchange rate in service: %w", err)
	}

	s.LogInfo(ctx, "Exchange rate created",
		slog.String("exchange_rate_id", rate.ExchangeRateID),
		slog.String("pair", from+"/"+to),
		slog.String("variance_percent", variance.StringFixed(2)))
	return &rate, nil
}

// GetExchangeRate retrieves the rate for a currency pair covering asOf.
func (s *exchangeRateService) GetExchangeRate(ctx context.Context, organizationID, fromCode, toCode string, asOf time.Time) (*domain.ExchangeRate, error) {
	fromCode = strings.ToUpper(fromCode)
	toCode = strings.ToUpper(toCode)
	if len(fromCode) != 3 || len(toCode) != 3 {
		return nil, fmt.Errorf("%w: currency codes must be 3 letters", apperrors.ErrValidation)
	}

	rate, err := s.rateRepo.FindExchangeRate(ctx, organizationID, fromCode, toCode, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate in service: %w", err)
	}
	return rate, nil
}
