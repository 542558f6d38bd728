package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/core/formula"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/core/tax"
)

// ExcessSuffix names the taxable earning line that carries the part of a capped
// allowance refused by the annual cap.
const ExcessSuffix = "_EXCESS"

var (
	hundred = decimal.NewFromInt(100)

	// runComponentNamespace seeds the deterministic ids of paychecks, lines and logs.
	runComponentNamespace = uuid.MustParse("5b7d1a56-3c8e-4f0e-9d43-0d6c1f2e8a71")
)

// deterministicID derives a stable id so recalculation rewrites the same rows.
func deterministicID(parts ...string) string {
	return uuid.NewSHA1(runComponentNamespace, []byte(strings.Join(parts, ":"))).String()
}

// employeeSourcePrefix is the allowance source prefix of every line of one paycheck.
func employeeSourcePrefix(runID, employeeID string) string {
	return fmt.Sprintf("run:%s:employee:%s:", runID, employeeID)
}

// taxRuleCache loads each tax rule set once per calculation pass.
type taxRuleCache struct {
	repo  portsrepo.TaxRuleSetRepository
	cache sync.Map
}

func (c *taxRuleCache) get(ctx context.Context, organizationID, id string) (*domain.TaxRuleSet, error) {
	if cached, ok := c.cache.Load(id); ok {
		return cached.(*domain.TaxRuleSet), nil
	}
	rs, err := c.repo.FindTaxRuleSetByID(ctx, organizationID, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: tax rule set %s not found", apperrors.ErrConfigValidation, id)
		}
		return nil, fmt.Errorf("failed to load tax rule set %s: %w", id, err)
	}
	c.cache.Store(id, rs)
	return rs, nil
}

// paycheckBuilder executes one employee's resolved components in order and
// accumulates the line items, execution logs and variables they produce.
type paycheckBuilder struct {
	run        *domain.PayrollRun
	employee   *domain.EmployeeSnapshot
	structure  *domain.ResolvedStructure
	taxRules   *taxRuleCache
	allowances portssvc.AllowanceSvc
	clock      func() time.Time

	vars    formula.Variables
	taxable []domain.TaxableInput
	lines   []domain.PayrollRunComponent
	logs    []domain.FormulaExecutionLog
}

func newPaycheckBuilder(run *domain.PayrollRun, employee *domain.EmployeeSnapshot, timeData *domain.TimeData, structure *domain.ResolvedStructure) (*paycheckBuilder, error) {
	periods, err := structure.PayFrequency().PeriodsPerYear()
	if err != nil {
		return nil, err
	}
	annual := employee.AnnualSalary
	if structure.WorkerStructure != nil && structure.WorkerStructure.BaseSalary != nil {
		annual = *structure.WorkerStructure.BaseSalary
	}

	vars := formula.Variables{}
	if timeData != nil {
		for name, v := range timeData.Extra {
			vars[name] = v
		}
		vars[domain.VarHoursWorked] = timeData.HoursWorked
		vars[domain.VarOvertimeHours] = timeData.OvertimeHours
	} else {
		vars[domain.VarHoursWorked] = decimal.Zero
		vars[domain.VarOvertimeHours] = decimal.Zero
	}
	vars[domain.VarAnnualSalary] = annual
	vars[domain.VarBaseSalary] = domain.RoundMoney(annual.Div(decimal.NewFromInt(periods)))
	vars[domain.VarHourlyRate] = employee.HourlyRate
	vars[domain.VarPeriodsPerYear] = decimal.NewFromInt(periods)
	vars[domain.VarGrossPay] = decimal.Zero
	vars[domain.VarTaxableIncome] = decimal.Zero
	for code := range structure.Disabled {
		vars[code] = decimal.Zero
	}

	return &paycheckBuilder{
		run:       run,
		employee:  employee,
		structure: structure,
		vars:      vars,
	}, nil
}

func (b *paycheckBuilder) now() time.Time {
	if b.clock != nil {
		return b.clock().UTC()
	}
	return time.Now().UTC()
}

// Execute runs every component. The first failure is returned as a
// CalculationError naming the component.
func (b *paycheckBuilder) Execute(ctx context.Context) error {
	for i := range b.structure.Components {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
		}
		c := &b.structure.Components[i]
		if err := b.executeComponent(ctx, c); err != nil {
			return apperrors.NewCalculationError(b.employee.EmployeeID, c.Code, err)
		}
	}
	return nil
}

func (b *paycheckBuilder) executeComponent(ctx context.Context, c *domain.PayStructureComponent) error {
	if c.Category == domain.CategoryTax {
		return b.executeTax(ctx, c)
	}

	amount, err := b.amount(c)
	if err != nil {
		return err
	}
	amount = domain.RoundMoney(amount)
	amount, _ = c.Bounds.ClampPeriod(amount)

	excess := decimal.Zero
	if key := c.CapKey(); key != "" && amount.IsPositive() {
		applied, over, err := b.applyCap(ctx, c, key, amount)
		if err != nil {
			return err
		}
		amount, excess = applied, over
	}

	line, err := b.newLine(c, c.Code, amount, c.IsTaxable)
	if err != nil {
		return err
	}
	b.record(line)

	if excess.IsPositive() {
		excessLine, err := b.newLine(c, c.Code+ExcessSuffix, excess, true)
		if err != nil {
			return err
		}
		excessLine.ComponentName = c.Name + " (excess over annual cap)"
		excessLine.Category = domain.CategoryEarning
		b.record(excessLine)
	}
	return nil
}

// amount computes the raw amount of a non-tax component.
func (b *paycheckBuilder) amount(c *domain.PayStructureComponent) (decimal.Decimal, error) {
	switch cfg := c.Config.(type) {
	case domain.FixedConfig:
		return cfg.Amount, nil

	case domain.PercentageConfig:
		basis := decimal.Zero
		for _, name := range cfg.Basis {
			v, err := b.lookup(name)
			if err != nil {
				return decimal.Zero, err
			}
			basis = basis.Add(v)
		}
		return basis.Mul(cfg.Percentage).Div(hundred), nil

	case domain.FormulaConfig:
		return b.evaluate(c, cfg)

	case domain.HourlyRateConfig:
		rate := b.vars[domain.VarHourlyRate]
		if cfg.Rate != nil {
			rate = *cfg.Rate
		}
		hours, err := b.lookup(cfg.HoursVariable)
		if err != nil {
			return decimal.Zero, err
		}
		return hours.Mul(rate).Mul(cfg.Multiplier), nil

	case domain.TieredConfig:
		basis, err := b.lookup(cfg.Basis)
		if err != nil {
			return decimal.Zero, err
		}
		return cfg.Apply(basis), nil

	case domain.ExternalConfig:
		return b.lookup(cfg.Variable)
	}
	return decimal.Zero, fmt.Errorf("%w: %s has no executable configuration", apperrors.ErrConfigValidation, c.Code)
}

func (b *paycheckBuilder) lookup(name string) (decimal.Decimal, error) {
	v, ok := b.vars[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrUnboundVariable, name)
	}
	return v, nil
}

func (b *paycheckBuilder) evaluate(c *domain.PayStructureComponent, cfg domain.FormulaConfig) (decimal.Decimal, error) {
	if cfg.Tree == nil {
		return decimal.Zero, fmt.Errorf("%w: %s formula is not parsed", apperrors.ErrInvalidFormula, c.Code)
	}
	started := time.Now()
	result, err := formula.Evaluate(cfg.Tree, b.vars)
	elapsed := time.Since(started)
	if err != nil {
		return decimal.Zero, err
	}

	inputs := make(map[string]decimal.Decimal)
	for _, name := range formula.VariableNames(cfg.Tree) {
		inputs[name] = b.vars[name]
	}
	b.logs = append(b.logs, domain.FormulaExecutionLog{
		LogID:          deterministicID(b.run.RunID, b.employee.EmployeeID, c.Code, "formula"),
		OrganizationID: b.run.OrganizationID,
		RunID:          b.run.RunID,
		EmployeeID:     b.employee.EmployeeID,
		ComponentCode:  c.Code,
		Expression:     cfg.Expression,
		Inputs:         inputs,
		Result:         result,
		DurationMicros: elapsed.Microseconds(),
		ExecutedAt:     b.now(),
	})
	return result, nil
}

func (b *paycheckBuilder) executeTax(ctx context.Context, c *domain.PayStructureComponent) error {
	if c.TaxRuleSetID == nil {
		return fmt.Errorf("%w: %s has no tax rule set", apperrors.ErrConfigValidation, c.Code)
	}
	rs, err := b.taxRules.get(ctx, b.run.OrganizationID, *c.TaxRuleSetID)
	if err != nil {
		return err
	}

	inputs := b.taxable
	if cfg, ok := c.Config.(domain.TaxConfig); ok && len(cfg.Basis) > 0 {
		inputs = filterInputs(b.taxable, cfg.Basis)
	}
	result, err := tax.Calculate(rs, inputs)
	if err != nil {
		return err
	}

	line, err := b.newLine(c, c.Code, result.Total, false)
	if err != nil {
		return err
	}
	line.TaxBreakdown = result.Breakdown
	b.record(line)
	return nil
}

// filterInputs keeps the taxable inputs from the listed components, including
// the excess lines they produced.
func filterInputs(inputs []domain.TaxableInput, codes []string) []domain.TaxableInput {
	wanted := make(map[string]bool, len(codes)*2)
	for _, code := range codes {
		wanted[code] = true
		wanted[code+ExcessSuffix] = true
	}
	var kept []domain.TaxableInput
	for _, in := range inputs {
		if wanted[in.SourceCode] {
			kept = append(kept, in)
		}
	}
	return kept
}

// applyCap charges amount against the employee's annual allowance and splits
// it into the applied part and the excess.
func (b *paycheckBuilder) applyCap(ctx context.Context, c *domain.PayStructureComponent, allowanceType string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var annualCap decimal.Decimal
	def, err := b.allowances.GetAllowance(ctx, b.run.OrganizationID, allowanceType, b.run.PayDate)
	switch {
	case err == nil:
		annualCap = def.AnnualCap
	case errors.Is(err, apperrors.ErrNotFound) && c.Bounds.AnnualCap != nil:
		annualCap = *c.Bounds.AnnualCap
	case errors.Is(err, apperrors.ErrNotFound):
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: no allowance %s defined for %s", apperrors.ErrConfigValidation, allowanceType, c.Code)
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to load allowance %s: %w", allowanceType, err)
	}

	result, err := b.allowances.ApplyAllowance(ctx, portssvc.AllowanceRequest{
		OrganizationID: b.run.OrganizationID,
		EmployeeID:     b.employee.EmployeeID,
		AllowanceType:  allowanceType,
		CalendarYear:   b.run.PayDate.Year(),
		Requested:      amount,
		Cap:            annualCap,
		SourceRef:      employeeSourcePrefix(b.run.RunID, b.employee.EmployeeID) + c.Code,
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return result.Applied, result.Excess, nil
}

func (b *paycheckBuilder) newLine(c *domain.PayStructureComponent, code string, amount decimal.Decimal, taxable bool) (domain.PayrollRunComponent, error) {
	snapshot, err := domain.MarshalComponentConfig(c.Config)
	if err != nil {
		return domain.PayrollRunComponent{}, err
	}
	return domain.PayrollRunComponent{
		RunComponentID:           deterministicID(b.run.RunID, b.employee.EmployeeID, code),
		PaycheckID:               deterministicID(b.run.RunID, b.employee.EmployeeID),
		RunID:                    b.run.RunID,
		EmployeeID:               b.employee.EmployeeID,
		ComponentCode:            code,
		ComponentName:            c.Name,
		Category:                 c.Category,
		Amount:                   amount,
		Taxable:                  taxable,
		AffectsGross:             c.AffectsGross,
		AffectsNet:               c.AffectsNet,
		SequenceOrder:            c.SequenceOrder,
		StructureTemplateVersion: b.structure.Template.Version,
		ComponentConfigSnapshot:  snapshot,
	}, nil
}

// record appends the line and exposes its amount to later components.
func (b *paycheckBuilder) record(line domain.PayrollRunComponent) {
	b.lines = append(b.lines, line)
	b.vars[line.ComponentCode] = line.Amount

	if !adds(line.Category) {
		return
	}
	if line.AffectsGross {
		b.vars[domain.VarGrossPay] = b.vars[domain.VarGrossPay].Add(line.Amount)
	}
	if line.Taxable {
		b.taxable = append(b.taxable, domain.TaxableInput{SourceCode: line.ComponentCode, Amount: line.Amount})
		b.vars[domain.VarTaxableIncome] = b.vars[domain.VarTaxableIncome].Add(line.Amount)
	}
}

// adds reports whether the category pays the employee.
func adds(category domain.ComponentCategory) bool {
	switch category {
	case domain.CategoryEarning, domain.CategoryBenefit, domain.CategoryReimbursement:
		return true
	}
	return false
}

// Totals aggregates the recorded lines into p.
func (b *paycheckBuilder) Totals(p *domain.Paycheck) {
	p.Gross = decimal.Zero
	p.TotalDeductions = decimal.Zero
	p.TotalTax = decimal.Zero
	p.EmployerCost = decimal.Zero
	p.Net = decimal.Zero

	for _, line := range b.lines {
		switch {
		case adds(line.Category):
			if line.AffectsGross {
				p.Gross = p.Gross.Add(line.Amount)
			}
			if line.AffectsNet {
				p.Net = p.Net.Add(line.Amount)
			}
		case line.Category == domain.CategoryDeduction:
			p.TotalDeductions = p.TotalDeductions.Add(line.Amount)
			if line.AffectsNet {
				p.Net = p.Net.Sub(line.Amount)
			}
		case line.Category == domain.CategoryTax:
			p.TotalTax = p.TotalTax.Add(line.Amount)
			if line.AffectsNet {
				p.Net = p.Net.Sub(line.Amount)
			}
		case line.Category == domain.CategoryEmployerCost:
			p.EmployerCost = p.EmployerCost.Add(line.Amount)
		}
	}
	p.Components = b.lines
}
