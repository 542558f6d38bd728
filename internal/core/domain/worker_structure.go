package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/formula"
)

// WorkerPayStructure assigns one employee to one template version for a date range.
type WorkerPayStructure struct {
	WorkerStructureID string `json:"workerStructureID"`
	OrganizationID    string `json:"organizationID"`
	EmployeeID        string `json:"employeeID"`
	TemplateID        string `json:"templateID"`
	DateRange
	BaseSalary      *decimal.Decimal    `json:"baseSalary,omitempty"` // annual; nil uses the HRIS compensation record
	PayFrequency    *PayFrequency       `json:"payFrequency,omitempty"`
	PaymentCurrency *string             `json:"paymentCurrency,omitempty"`
	Overrides       []ComponentOverride `json:"overrides,omitempty"`
	AuditFields
}

// ComponentOverride replaces the parameters of, or disables, one template
// component for a worker.
type ComponentOverride struct {
	OverrideID        string           `json:"overrideID"`
	WorkerStructureID string           `json:"workerStructureID"`
	ComponentCode     string           `json:"componentCode"`
	Disabled          bool             `json:"disabled"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Percentage        *decimal.Decimal `json:"percentage,omitempty"`
	Formula           *string          `json:"formula,omitempty"`
	FormulaTree       formula.Node     `json:"-"`
	Rate              *decimal.Decimal `json:"rate,omitempty"`
	Reason            string           `json:"reason"`
	RequiresApproval  bool             `json:"requiresApproval"`
	ApprovedBy        string           `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time       `json:"approvedAt,omitempty"`
}

// IsEffective reports whether the override may be applied.
func (o ComponentOverride) IsEffective() bool {
	return !o.RequiresApproval || o.ApprovedAt != nil
}

// ParseFormula parses a formula override once so resolving it does not.
func (o *ComponentOverride) ParseFormula() error {
	if o.Formula == nil {
		o.FormulaTree = nil
		return nil
	}
	tree, err := formula.Parse(*o.Formula)
	if err != nil {
		return fmt.Errorf("%w: %s override: %v", apperrors.ErrConfigValidation, o.ComponentCode, err)
	}
	o.FormulaTree = tree
	return nil
}

// Validate enforces the write-time rules for an override.
func (o ComponentOverride) Validate() error {
	if o.ComponentCode == "" {
		return fmt.Errorf("%w: override component code is required", apperrors.ErrValidation)
	}
	if o.Reason == "" {
		return fmt.Errorf("%w: override for %s requires a reason", apperrors.ErrValidation, o.ComponentCode)
	}
	set := 0
	for _, present := range []bool{o.Amount != nil, o.Percentage != nil, o.Formula != nil, o.Rate != nil} {
		if present {
			set++
		}
	}
	if o.Disabled && set > 0 {
		return fmt.Errorf("%w: override for %s both disables and replaces parameters", apperrors.ErrValidation, o.ComponentCode)
	}
	if !o.Disabled && set != 1 {
		return fmt.Errorf("%w: override for %s must replace exactly one parameter", apperrors.ErrValidation, o.ComponentCode)
	}
	return nil
}

// ApplyTo returns a copy of component with the override's parameter replaced.
// A parameter that does not fit the component's calculation type, or falls
// outside its bounds, is a configuration error.
func (o ComponentOverride) ApplyTo(component PayStructureComponent) (PayStructureComponent, error) {
	code := component.Code
	switch {
	case o.Amount != nil:
		if component.CalculationType != CalcFixed {
			return component, configError("%s: amount override on %s component", code, component.CalculationType)
		}
		if err := component.Bounds.CheckAmount(code, *o.Amount); err != nil {
			return component, err
		}
		component.Config = FixedConfig{Amount: *o.Amount}
	case o.Percentage != nil:
		cfg, ok := component.Config.(PercentageConfig)
		if !ok {
			return component, configError("%s: percentage override on %s component", code, component.CalculationType)
		}
		if err := component.Bounds.CheckPercentage(code, *o.Percentage); err != nil {
			return component, err
		}
		cfg.Percentage = *o.Percentage
		component.Config = cfg
	case o.Formula != nil:
		if component.CalculationType != CalcFormula {
			return component, configError("%s: formula override on %s component", code, component.CalculationType)
		}
		if o.FormulaTree != nil {
			component.Config = FormulaConfig{Expression: *o.Formula, Tree: o.FormulaTree}
			break
		}
		cfg, err := NewFormulaConfig(*o.Formula)
		if err != nil {
			return component, fmt.Errorf("%w: %s override: %v", apperrors.ErrConfigValidation, code, err)
		}
		component.Config = cfg
	case o.Rate != nil:
		cfg, ok := component.Config.(HourlyRateConfig)
		if !ok {
			return component, configError("%s: rate override on %s component", code, component.CalculationType)
		}
		if err := component.Bounds.CheckAmount(code, *o.Rate); err != nil {
			return component, err
		}
		rate := *o.Rate
		cfg.Rate = &rate
		component.Config = cfg
	}
	return component, nil
}
