package domain

import (
	"github.com/shopspring/decimal"
)

// TaxCalculationMethod is how a rule set turns income into tax.
type TaxCalculationMethod string

const (
	TaxMethodBracket TaxCalculationMethod = "bracket"
	TaxMethodFlat    TaxCalculationMethod = "flat"
)

// TaxCalculationMode is how tax interacts with several taxable components.
type TaxCalculationMode string

const (
	TaxModeAggregated               TaxCalculationMode = "aggregated"
	TaxModeComponentBased           TaxCalculationMode = "component_based"
	TaxModeProportionalDistribution TaxCalculationMode = "proportional_distribution"
)

// TaxRuleSet is a jurisdiction's tax table for an effective date range.
type TaxRuleSet struct {
	TaxRuleSetID      string               `json:"taxRuleSetID"`
	OrganizationID    string               `json:"organizationID"`
	Code              string               `json:"code"`
	Jurisdiction      string               `json:"jurisdiction"`
	CalculationMethod TaxCalculationMethod `json:"calculationMethod"`
	CalculationMode   TaxCalculationMode   `json:"calculationMode"`
	FlatRate          decimal.Decimal      `json:"flatRate"` // percent, flat method only
	Brackets          []TaxBracket         `json:"brackets,omitempty"`
	DateRange
	AuditFields
}

// TaxBracket is one income band. IncomeMax is exclusive; nil marks the top bracket.
// FixedAmount is the tax due on all income below IncomeMin.
type TaxBracket struct {
	IncomeMin      decimal.Decimal  `json:"incomeMin"`
	IncomeMax      *decimal.Decimal `json:"incomeMax,omitempty"`
	RatePercentage decimal.Decimal  `json:"ratePercentage"`
	FixedAmount    decimal.Decimal  `json:"fixedAmount"`
}

// TaxableInput is one component's contribution to taxable income.
type TaxableInput struct {
	SourceCode string          `json:"sourceCode"`
	Amount     decimal.Decimal `json:"amount"`
}

// TaxAttribution is the share of a tax line attributed to one source component.
type TaxAttribution struct {
	SourceCode    string          `json:"sourceCode"`
	TaxableAmount decimal.Decimal `json:"taxableAmount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
}

// TaxResult is the tax due for one tax component.
type TaxResult struct {
	TaxableTotal decimal.Decimal  `json:"taxableTotal"`
	Total        decimal.Decimal  `json:"total"`
	Breakdown    []TaxAttribution `json:"breakdown,omitempty"`
}
