package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the exchange_rates row.
type ExchangeRate struct {
	ExchangeRateID   string          `db:"exchange_rate_id"`
	OrganizationID   string          `db:"organization_id"`
	FromCurrencyCode string          `db:"from_currency_code"`
	ToCurrencyCode   string          `db:"to_currency_code"`
	Rate             decimal.Decimal `db:"rate"`
	EffectiveFrom    time.Time       `db:"effective_from"`
	EffectiveTo      *time.Time      `db:"effective_to"`
	AuditFields
}
