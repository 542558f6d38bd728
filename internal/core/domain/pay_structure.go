package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
)

// TemplateStatus is the lifecycle state of a pay structure template.
type TemplateStatus string

const (
	TemplateDraft      TemplateStatus = "draft"
	TemplateActive     TemplateStatus = "active"
	TemplateDeprecated TemplateStatus = "deprecated"
	TemplateArchived   TemplateStatus = "archived"
)

var templateTransitions = map[TemplateStatus][]TemplateStatus{
	TemplateDraft:      {TemplateActive},
	TemplateActive:     {TemplateDeprecated},
	TemplateDeprecated: {TemplateArchived},
}

// PayFrequency is how often a worker is paid.
type PayFrequency string

const (
	FrequencyWeekly      PayFrequency = "weekly"
	FrequencyBiweekly    PayFrequency = "biweekly"
	FrequencyFourWeekly  PayFrequency = "four_weekly"
	FrequencySemiMonthly PayFrequency = "semi_monthly"
	FrequencyMonthly     PayFrequency = "monthly"
)

var periodsPerYear = map[PayFrequency]int64{
	FrequencyWeekly:      52,
	FrequencyBiweekly:    26,
	FrequencyFourWeekly:  13,
	FrequencySemiMonthly: 24,
	FrequencyMonthly:     12,
}

// PeriodsPerYear returns the number of pay periods in a year for the frequency.
func (f PayFrequency) PeriodsPerYear() (int64, error) {
	n, ok := periodsPerYear[f]
	if !ok {
		return 0, fmt.Errorf("%w: unknown pay frequency %q", apperrors.ErrConfigValidation, f)
	}
	return n, nil
}

// ComponentCategory classifies a pay component.
type ComponentCategory string

const (
	CategoryEarning       ComponentCategory = "earning"
	CategoryDeduction     ComponentCategory = "deduction"
	CategoryTax           ComponentCategory = "tax"
	CategoryBenefit       ComponentCategory = "benefit"
	CategoryEmployerCost  ComponentCategory = "employer_cost"
	CategoryReimbursement ComponentCategory = "reimbursement"
)

// CalculationType is how a component computes its amount.
type CalculationType string

const (
	CalcFixed      CalculationType = "fixed"
	CalcPercentage CalculationType = "percentage"
	CalcFormula    CalculationType = "formula"
	CalcHourlyRate CalculationType = "hourly_rate"
	CalcTiered     CalculationType = "tiered"
	CalcExternal   CalculationType = "external"
)

// PayStructureTemplate is a versioned blueprint of pay components for an organization.
type PayStructureTemplate struct {
	TemplateID     string         `json:"templateID"`
	OrganizationID string         `json:"organizationID"`
	Code           string         `json:"code" validate:"required,max=50"`
	Name           string         `json:"name" validate:"max=200"`
	Version        string         `json:"version" validate:"required"` // semantic version, e.g. v1.2.0
	Status         TemplateStatus `json:"status"`
	IsDefault      bool           `json:"isDefault"`
	DateRange
	BaseCurrency string                  `json:"baseCurrency" validate:"required,len=3,uppercase"`
	PayFrequency PayFrequency            `json:"payFrequency" validate:"oneof=weekly biweekly four_weekly semi_monthly monthly"`
	PublishedAt  *time.Time              `json:"publishedAt,omitempty"`
	Components   []PayStructureComponent `json:"components,omitempty" validate:"dive"`
	AuditFields
}

// IsMutable reports whether components may still be added or changed.
func (t *PayStructureTemplate) IsMutable() bool {
	return t.Status == TemplateDraft
}

// TransitionTo moves the template to next if the lifecycle allows it.
func (t *PayStructureTemplate) TransitionTo(next TemplateStatus) error {
	for _, allowed := range templateTransitions[t.Status] {
		if allowed == next {
			t.Status = next
			return nil
		}
	}
	return fmt.Errorf("%w: template %s cannot move from %s to %s", apperrors.ErrInvalidTransition, t.Code, t.Status, next)
}

// Component returns the component with the given code.
func (t *PayStructureTemplate) Component(code string) (*PayStructureComponent, bool) {
	for i := range t.Components {
		if t.Components[i].Code == code {
			return &t.Components[i], true
		}
	}
	return nil, false
}

// PayStructureComponent is one element of compensation or deduction within a template.
type PayStructureComponent struct {
	ComponentID     string            `json:"componentID"`
	TemplateID      string            `json:"templateID"`
	Code            string            `json:"code" validate:"required,max=50,identifier"`
	Name            string            `json:"name" validate:"required,max=200"`
	Category        ComponentCategory `json:"category" validate:"oneof=earning deduction tax benefit employer_cost reimbursement"`
	CalculationType CalculationType   `json:"calculationType" validate:"oneof=fixed percentage formula hourly_rate tiered external"`
	SequenceOrder   int               `json:"sequenceOrder" validate:"gte=0"`
	DependsOn       []string          `json:"dependsOn,omitempty"`
	IsTaxable       bool              `json:"isTaxable"`
	AffectsGross    bool              `json:"affectsGross"`
	AffectsNet      bool              `json:"affectsNet"`
	TaxRuleSetID    *string           `json:"taxRuleSetID,omitempty"`
	AllowanceType   string            `json:"allowanceType,omitempty"`
	Config          ComponentConfig   `json:"-"`
	Bounds          ComponentBounds   `json:"bounds"`
}

// CapKey is the allowance type used for cap tracking, or "" when the
// component is not capped.
func (c *PayStructureComponent) CapKey() string {
	if c.AllowanceType != "" {
		return c.AllowanceType
	}
	if c.Bounds.AnnualCap != nil {
		return c.Code
	}
	return ""
}

// ComponentBounds are the declared validation limits of a component.
type ComponentBounds struct {
	MinAmount     *decimal.Decimal `json:"minAmount,omitempty"`
	MaxAmount     *decimal.Decimal `json:"maxAmount,omitempty"`
	MinPercentage *decimal.Decimal `json:"minPercentage,omitempty"`
	MaxPercentage *decimal.Decimal `json:"maxPercentage,omitempty"`
	AnnualCap     *decimal.Decimal `json:"annualCap,omitempty"`
	PeriodCap     *decimal.Decimal `json:"periodCap,omitempty"`
}

// CheckAmount rejects an amount parameter outside [MinAmount, MaxAmount].
func (b ComponentBounds) CheckAmount(code string, amount decimal.Decimal) error {
	if b.MinAmount != nil && amount.LessThan(*b.MinAmount) {
		return fmt.Errorf("%w: %s amount %s below minimum %s", apperrors.ErrConfigValidation, code, amount, b.MinAmount)
	}
	if b.MaxAmount != nil && amount.GreaterThan(*b.MaxAmount) {
		return fmt.Errorf("%w: %s amount %s above maximum %s", apperrors.ErrConfigValidation, code, amount, b.MaxAmount)
	}
	return nil
}

// CheckPercentage rejects a percentage parameter outside [MinPercentage, MaxPercentage].
func (b ComponentBounds) CheckPercentage(code string, pct decimal.Decimal) error {
	if b.MinPercentage != nil && pct.LessThan(*b.MinPercentage) {
		return fmt.Errorf("%w: %s percentage %s below minimum %s", apperrors.ErrConfigValidation, code, pct, b.MinPercentage)
	}
	if b.MaxPercentage != nil && pct.GreaterThan(*b.MaxPercentage) {
		return fmt.Errorf("%w: %s percentage %s above maximum %s", apperrors.ErrConfigValidation, code, pct, b.MaxPercentage)
	}
	return nil
}

// ClampPeriod limits a computed per-period amount to PeriodCap.
func (b ComponentBounds) ClampPeriod(amount decimal.Decimal) (decimal.Decimal, bool) {
	if b.PeriodCap != nil && amount.GreaterThan(*b.PeriodCap) {
		return *b.PeriodCap, true
	}
	return amount, false
}

// ResolvedStructure is the effective, ordered component set for one employee.
type ResolvedStructure struct {
	Template        *PayStructureTemplate   `json:"template"`
	WorkerStructure *WorkerPayStructure     `json:"workerStructure,omitempty"`
	Components      []PayStructureComponent `json:"components"` // execution order, overrides applied
	Disabled        map[string]bool         `json:"disabled,omitempty"`
	Overrides       []ComponentOverride     `json:"overrides,omitempty"`
}

// PayFrequency returns the worker override or the template default.
func (r *ResolvedStructure) PayFrequency() PayFrequency {
	if r.WorkerStructure != nil && r.WorkerStructure.PayFrequency != nil {
		return *r.WorkerStructure.PayFrequency
	}
	return r.Template.PayFrequency
}

// PaymentCurrency returns the worker override or the template base currency.
func (r *ResolvedStructure) PaymentCurrency() string {
	if r.WorkerStructure != nil && r.WorkerStructure.PaymentCurrency != nil {
		return *r.WorkerStructure.PaymentCurrency
	}
	return r.Template.BaseCurrency
}
