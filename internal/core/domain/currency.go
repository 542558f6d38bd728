package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the rate for one currency pair over a validity window.
// At most one open-ended (nil EffectiveTo) rate exists per pair and organization.
type ExchangeRate struct {
	ExchangeRateID   string          `json:"exchangeRateID"`
	OrganizationID   string          `json:"organizationID"`
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"`
	EffectiveFrom    time.Time       `json:"effectiveFrom"`
	EffectiveTo      *time.Time      `json:"effectiveTo,omitempty"`
	AuditFields
}

// IsActiveAt reports whether the rate covers t.
func (r ExchangeRate) IsActiveAt(t time.Time) bool {
	return DateRange{From: r.EffectiveFrom, To: r.EffectiveTo}.Covers(t)
}

// CurrencyConversion is the immutable audit record of one executed conversion.
type CurrencyConversion struct {
	ConversionID      string          `json:"conversionID"`
	OrganizationID    string          `json:"organizationID"`
	ExchangeRateID    string          `json:"exchangeRateID"`
	FromCurrencyCode  string          `json:"fromCurrencyCode"`
	ToCurrencyCode    string          `json:"toCurrencyCode"`
	SourceAmount      decimal.Decimal `json:"sourceAmount"`
	ConvertedAmount   decimal.Decimal `json:"convertedAmount"`
	Rate              decimal.Decimal `json:"rate"`
	ApprovalRequestID *string         `json:"approvalRequestID,omitempty"`
	SourceRef         string          `json:"sourceRef"`
	ConvertedAt       time.Time       `json:"convertedAt"`
}
