package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // UserID or service principal
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"`
}

// MoneyPlaces is the number of decimal places amounts are rounded to.
const MoneyPlaces int32 = 2

// RoundMoney rounds an amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// DateRange is a half-open [From, To) validity window. A nil To is open ended.
type DateRange struct {
	From time.Time  `json:"effectiveFrom"`
	To   *time.Time `json:"effectiveTo,omitempty"`
}

// Covers reports whether t falls inside the range.
func (r DateRange) Covers(t time.Time) bool {
	if t.Before(r.From) {
		return false
	}
	return r.To == nil || t.Before(*r.To)
}

// Overlaps reports whether two ranges share at least one instant.
func (r DateRange) Overlaps(other DateRange) bool {
	if r.To != nil && !other.From.Before(*r.To) {
		return false
	}
	if other.To != nil && !r.From.Before(*other.To) {
		return false
	}
	return true
}
