package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/core/services"
)

// MockApprovalGate is a mock type for the ApprovalGate interface
type MockApprovalGate struct {
	mock.Mock
}

func (m *MockApprovalGate) Check(ctx context.Context, op portssvc.GatedOperation) (*domain.CurrencyApprovalRequest, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CurrencyApprovalRequest), args.Error(1)
}

// MockAuditArchive is a mock type for the AuditArchive interface
type MockAuditArchive struct {
	mock.Mock
}

func (m *MockAuditArchive) ArchiveFormulaLogs(ctx context.Context, logs []domain.FormulaExecutionLog) error {
	args := m.Called(ctx, logs)
	return args.Error(0)
}

func (m *MockAuditArchive) ArchiveConversion(ctx context.Context, conversion domain.CurrencyConversion) error {
	args := m.Called(ctx, conversion)
	return args.Error(0)
}

func usdEurRates() *memRates {
	return &memRates{rates: []domain.ExchangeRate{{
		ExchangeRateID:   "rate-usd-eur",
		OrganizationID:   "org-1",
		FromCurrencyCode: "USD",
		ToCurrencyCode:   "EUR",
		Rate:             d("0.92"),
		EffectiveFrom:    date(2024, 1, 1),
	}}}
}

func conversionRequest(amount string) portssvc.ConversionRequest {
	return portssvc.ConversionRequest{
		OrganizationID: "org-1",
		Amount:         d(amount),
		From:           "USD",
		To:             "EUR",
		AsOf:           date(2024, 1, 31),
		SourceRef:      "run:r1:employee:emp-1",
	}
}

func TestConvert_SameCurrencyIsIdentity(t *testing.T) {
	rates := usdEurRates()
	gate := new(MockApprovalGate)
	converter := services.NewCurrencyConverter(rates, rates, gate)

	req := conversionRequest("123.45")
	req.To = "USD"
	res, err := converter.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, d("123.45").Equal(res.ConvertedAmount))
	assert.True(t, d("1").Equal(res.RateUsed))
	assert.Empty(t, res.ConversionID)
	assert.Zero(t, rates.conversionCount())
	gate.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestConvert_RecordsAndArchivesConversion(t *testing.T) {
	rates := usdEurRates()
	gate := new(MockApprovalGate)
	gate.On("Check", mock.Anything, mock.MatchedBy(func(op portssvc.GatedOperation) bool {
		return op.OperationType == domain.OperationConversion && op.Amount.Equal(d("1000.01")) && op.Rate.Equal(d("0.92"))
	})).Return(nil, nil).Once()
	archive := new(MockAuditArchive)
	archive.On("ArchiveConversion", mock.Anything, mock.AnythingOfType("domain.CurrencyConversion")).Return(errors.New("archive offline")).Once()

	converter := services.NewCurrencyConverter(rates, rates, gate, services.WithConversionArchive(archive))
	res, err := converter.Convert(context.Background(), conversionRequest("1000.01"))
	require.NoError(t, err)

	// 920.0092 rounds to cents
	assert.True(t, d("920.01").Equal(res.ConvertedAmount), res.ConvertedAmount.String())
	stored, err := rates.FindConversionByID(context.Background(), res.ConversionID)
	require.NoError(t, err)
	assert.Equal(t, "rate-usd-eur", stored.ExchangeRateID)
	assert.Equal(t, "run:r1:employee:emp-1", stored.SourceRef)
	assert.Nil(t, stored.ApprovalRequestID)
	gate.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestConvert_UsesInverseRate(t *testing.T) {
	rates := &memRates{rates: []domain.ExchangeRate{{
		ExchangeRateID:   "rate-eur-usd",
		OrganizationID:   "org-1",
		FromCurrencyCode: "EUR",
		ToCurrencyCode:   "USD",
		Rate:             d("1.25"),
		EffectiveFrom:    date(2024, 1, 1),
	}}}
	gate := new(MockApprovalGate)
	gate.On("Check", mock.Anything, mock.Anything).Return(nil, nil)

	res, err := services.NewCurrencyConverter(rates, rates, gate).Convert(context.Background(), conversionRequest("100"))
	require.NoError(t, err)
	assert.True(t, d("80").Equal(res.ConvertedAmount))
}

func TestConvert_ApprovedRequestIsLinked(t *testing.T) {
	rates := usdEurRates()
	gate := new(MockApprovalGate)
	gate.On("Check", mock.Anything, mock.Anything).Return(&domain.CurrencyApprovalRequest{
		ApprovalRequestID: "req-1",
		Status:            domain.ApprovalApproved,
	}, nil)

	res, err := services.NewCurrencyConverter(rates, rates, gate).Convert(context.Background(), conversionRequest("50000"))
	require.NoError(t, err)
	stored, err := rates.FindConversionByID(context.Background(), res.ConversionID)
	require.NoError(t, err)
	require.NotNil(t, stored.ApprovalRequestID)
	assert.Equal(t, "req-1", *stored.ApprovalRequestID)
}

func TestConvert_PendingApprovalStoresNothing(t *testing.T) {
	rates := usdEurRates()
	gate := new(MockApprovalGate)
	pending := &domain.CurrencyApprovalRequest{ApprovalRequestID: "req-2", Status: domain.ApprovalPending}
	gate.On("Check", mock.Anything, mock.Anything).Return(pending, &apperrors.ApprovalError{RequestID: "req-2", Err: apperrors.ErrApprovalRequired})

	_, err := services.NewCurrencyConverter(rates, rates, gate).Convert(context.Background(), conversionRequest("50000"))
	assert.ErrorIs(t, err, apperrors.ErrApprovalRequired)
	assert.Zero(t, rates.conversionCount())
}

func TestConvert_MissingRate(t *testing.T) {
	rates := usdEurRates()
	req := conversionRequest("10")
	req.To = "JPY"

	_, err := services.NewCurrencyConverter(rates, rates, new(MockApprovalGate)).Convert(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrNoExchangeRate)
	assert.Equal(t, apperrors.KindNoExchangeRate, apperrors.KindOf(err))

	req = conversionRequest("10")
	req.AsOf = date(2023, 12, 31)
	_, err = services.NewCurrencyConverter(rates, rates, new(MockApprovalGate)).Convert(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrNoExchangeRate)
}

func TestConvert_LookupTimeout(t *testing.T) {
	rates := usdEurRates()
	rates.block = true
	converter := services.NewCurrencyConverter(rates, rates, new(MockApprovalGate), services.WithRateLookupTimeout(20*time.Millisecond))

	started := time.Now()
	_, err := converter.Convert(context.Background(), conversionRequest("10"))
	assert.ErrorIs(t, err, apperrors.ErrRateLookupTimeout)
	assert.Less(t, time.Since(started), time.Second)

	// a caller that gave up is not reported as a timeout
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = converter.Convert(ctx, conversionRequest("10"))
	assert.NotErrorIs(t, err, apperrors.ErrRateLookupTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}
