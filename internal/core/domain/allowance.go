package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllowanceCalculationType is how an allowance's amount is derived.
type AllowanceCalculationType string

const (
	AllowanceFixed      AllowanceCalculationType = "fixed"
	AllowancePercentage AllowanceCalculationType = "percentage"
)

// Allowance is a capped, possibly tax-free compensation category.
type Allowance struct {
	AllowanceID     string                   `json:"allowanceID"`
	OrganizationID  string                   `json:"organizationID"`
	AllowanceType   string                   `json:"allowanceType"` // e.g. HOLIDAY
	Name            string                   `json:"name"`
	CalculationType AllowanceCalculationType `json:"calculationType"`
	Amount          decimal.Decimal          `json:"amount"`
	Percentage      decimal.Decimal          `json:"percentage"`
	AnnualCap       decimal.Decimal          `json:"annualCap"`
	TaxFree         bool                     `json:"taxFree"`
	DateRange
	AuditFields
}

// EmployeeAllowanceUsage is the cumulative usage of one allowance type by one
// employee in one calendar year. AmountUsed never exceeds the cap.
type EmployeeAllowanceUsage struct {
	UsageID         string          `json:"usageID"`
	OrganizationID  string          `json:"organizationID"`
	EmployeeID      string          `json:"employeeID"`
	AllowanceType   string          `json:"allowanceType"`
	CalendarYear    int             `json:"calendarYear"`
	AmountUsed      decimal.Decimal `json:"amountUsed"`
	AmountRemaining decimal.Decimal `json:"amountRemaining"`
	Version         int64           `json:"version"` // optimistic concurrency token
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// AllowanceUsageEntry records what a single source (a paycheck line) consumed,
// so reapplying the same source replaces its previous consumption.
type AllowanceUsageEntry struct {
	UsageID   string          `json:"usageID"`
	SourceRef string          `json:"sourceRef"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AllowanceKey identifies a usage row.
type AllowanceKey struct {
	OrganizationID string
	EmployeeID     string
	AllowanceType  string
	CalendarYear   int
}

// AllowanceResult is the outcome of applying an amount against a cap.
type AllowanceResult struct {
	Applied   decimal.Decimal `json:"applied"`
	Remaining decimal.Decimal `json:"remaining"`
	Excess    decimal.Decimal `json:"excess"`
}

// Capped reports whether part of the request was refused by the cap.
func (r AllowanceResult) Capped() bool {
	return r.Excess.IsPositive()
}
