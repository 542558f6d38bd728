package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/core/tax"
)

// HRISWriter loads HRIS fixture rows.
type HRISWriter interface {
	UpsertEmployee(ctx context.Context, e domain.EmployeeSnapshot, compensationFrom time.Time) error
	UpsertTimeEntry(ctx context.Context, organizationID, employeeID, entryID, entryType string, workDate time.Time, hours decimal.Decimal) error
}

type exchangeRateWriter interface {
	SaveExchangeRate(ctx context.Context, rate domain.ExchangeRate) error
}

type taxRuleWriter interface {
	SaveTaxRuleSet(ctx context.Context, ruleSet domain.TaxRuleSet) error
}

type allowanceWriter interface {
	SaveAllowance(ctx context.Context, allowance domain.Allowance) error
}

type approvalRuleWriter interface {
	SaveRule(ctx context.Context, rule domain.CurrencyApprovalRule) error
}

type templateStore interface {
	SaveTemplate(ctx context.Context, template domain.PayStructureTemplate) error
	FindTemplateByID(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error)
}

// Targets are where seeded records are written. HRIS may be nil.
type Targets struct {
	HRIS          HRISWriter
	ExchangeRates exchangeRateWriter
	TaxRuleSets   taxRuleWriter
	Allowances    allowanceWriter
	ApprovalRules approvalRuleWriter
	TemplateStore templateStore
	// Templates publishes templates and assigns workers with full validation.
	Templates portssvc.TemplateWriterSvc
}

// Report counts what a seed pass did.
type Report struct {
	Created int
	Skipped int
}

// Seeder writes a seed File. IDs are derived from natural keys, so applying
// the same file again skips what already exists.
type Seeder struct {
	targets Targets
	logger  *slog.Logger
	now     func() time.Time
}

// NewSeeder creates a seeder writing to targets.
func NewSeeder(targets Targets, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{targets: targets, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// StableID derives the record ID of kind/key within organization.
func StableID(organizationID, kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("payroll-seed:"+organizationID+"/"+kind+"/"+key)).String()
}

// Apply writes every section of f in dependency order.
func (s *Seeder) Apply(ctx context.Context, f *File) (Report, error) {
	var report Report
	steps := []struct {
		name string
		fn   func(context.Context, *File, *Report) error
	}{
		{"employees", s.seedEmployees},
		{"taxRuleSets", s.seedTaxRuleSets},
		{"allowances", s.seedAllowances},
		{"approvalRules", s.seedApprovalRules},
		{"exchangeRates", s.seedExchangeRates},
		{"templates", s.seedTemplates},
		{"workers", s.seedWorkers},
	}
	for _, step := range steps {
		if err := step.fn(ctx, f, &report); err != nil {
			return report, fmt.Errorf("seeding %s: %w", step.name, err)
		}
	}
	s.logger.Info("Seed applied",
		slog.String("organization_id", f.Organization),
		slog.Int("created", report.Created),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

func (s *Seeder) audit(f *File) domain.AuditFields {
	now := s.now()
	return domain.AuditFields{CreatedAt: now, CreatedBy: f.Actor, LastUpdatedAt: now, LastUpdatedBy: f.Actor}
}

// record counts the outcome of one write. Duplicates mean an earlier pass
// already wrote the record.
func (s *Seeder) record(r *Report, err error, kind, key string) error {
	if err == nil {
		r.Created++
		return nil
	}
	if errors.Is(err, apperrors.ErrDuplicate) {
		s.logger.Info("Seed record already present", slog.String("kind", kind), slog.String("key", key))
		r.Skipped++
		return nil
	}
	return fmt.Errorf("%s %s: %w", kind, key, err)
}

func (s *Seeder) seedEmployees(ctx context.Context, f *File, r *Report) error {
	if len(f.Employees) == 0 {
		return nil
	}
	if s.targets.HRIS == nil {
		s.logger.Warn("No HRIS writer configured, skipping employees", slog.Int("count", len(f.Employees)))
		r.Skipped += len(f.Employees)
		return nil
	}
	for _, e := range f.Employees {
		snapshot, compFrom, err := e.toDomain(f.Organization)
		if err != nil {
			return err
		}
		if err := s.targets.HRIS.UpsertEmployee(ctx, snapshot, compFrom); err != nil {
			return fmt.Errorf("employee %s: %w", e.ID, err)
		}
		r.Created++
		for i, t := range e.TimeEntries {
			date, err := parseDate(e.ID+" time entry date", t.Date)
			if err != nil {
				return err
			}
			hours, err := parseDecimal(e.ID+" time entry hours", t.Hours)
			if err != nil {
				return err
			}
			entryType := t.Type
			if entryType == "" {
				entryType = "regular"
			}
			entryID := StableID(f.Organization, "time-entry", e.ID+"/"+strconv.Itoa(i))
			if err := s.targets.HRIS.UpsertTimeEntry(ctx, f.Organization, e.ID, entryID, entryType, date, hours); err != nil {
				return fmt.Errorf("employee %s time entry %d: %w", e.ID, i, err)
			}
		}
	}
	return nil
}

func (e Employee) toDomain(organizationID string) (domain.EmployeeSnapshot, time.Time, error) {
	out := domain.EmployeeSnapshot{
		EmployeeID:     e.ID,
		OrganizationID: organizationID,
		Status:         domain.EmploymentStatus(e.Status),
		Currency:       strings.ToUpper(e.Currency),
	}
	if out.Status == "" {
		out.Status = domain.EmploymentActive
	}
	var err error
	if out.HireDate, err = parseDate(e.ID+" hireDate", e.HireDate); err != nil {
		return out, time.Time{}, err
	}
	if out.TerminationDate, err = parseOptionalDate(e.ID+" terminationDate", e.TerminationDate); err != nil {
		return out, time.Time{}, err
	}
	if out.AnnualSalary, err = parseDecimal(e.ID+" annualSalary", e.AnnualSalary); err != nil {
		return out, time.Time{}, err
	}
	if out.HourlyRate, err = parseDecimal(e.ID+" hourlyRate", e.HourlyRate); err != nil {
		return out, time.Time{}, err
	}
	compFrom := out.HireDate
	if e.CompensationFrom != "" {
		if compFrom, err = parseDate(e.ID+" compensationFrom", e.CompensationFrom); err != nil {
			return out, time.Time{}, err
		}
	}
	return out, compFrom, nil
}

func (s *Seeder) seedTaxRuleSets(ctx context.Context, f *File, r *Report) error {
	for _, t := range f.TaxRuleSets {
		rs := domain.TaxRuleSet{
			TaxRuleSetID:      StableID(f.Organization, "tax-rule-set", t.Code),
			OrganizationID:    f.Organization,
			Code:              t.Code,
			Jurisdiction:      t.Jurisdiction,
			CalculationMethod: domain.TaxCalculationMethod(t.Method),
			CalculationMode:   domain.TaxCalculationMode(t.Mode),
			AuditFields:       s.audit(f),
		}
		if rs.CalculationMode == "" {
			rs.CalculationMode = domain.TaxModeAggregated
		}
		var err error
		if rs.FlatRate, err = parseDecimal(t.Code+" flatRate", t.FlatRate); err != nil {
			return err
		}
		if rs.From, err = parseDate(t.Code+" effectiveFrom", t.EffectiveFrom); err != nil {
			return err
		}
		if rs.To, err = parseOptionalDate(t.Code+" effectiveTo", t.EffectiveTo); err != nil {
			return err
		}
		for i, b := range t.Brackets {
			field := fmt.Sprintf("%s bracket %d", t.Code, i)
			var br domain.TaxBracket
			if br.IncomeMin, err = parseDecimal(field+" min", b.Min); err != nil {
				return err
			}
			if br.IncomeMax, err = parseOptionalDecimal(field+" max", b.Max); err != nil {
				return err
			}
			if br.RatePercentage, err = parseDecimal(field+" rate", b.Rate); err != nil {
				return err
			}
			if br.FixedAmount, err = parseDecimal(field+" fixed", b.Fixed); err != nil {
				return err
			}
			rs.Brackets = append(rs.Brackets, br)
		}
		if err := tax.ValidateRuleSet(&rs); err != nil {
			return fmt.Errorf("tax rule set %s: %w", t.Code, err)
		}
		if err := s.record(r, s.targets.TaxRuleSets.SaveTaxRuleSet(ctx, rs), "tax rule set", t.Code); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedAllowances(ctx context.Context, f *File, r *Report) error {
	for _, a := range f.Allowances {
		al := domain.Allowance{
			AllowanceID:     StableID(f.Organization, "allowance", a.Type+"/"+a.EffectiveFrom),
			OrganizationID:  f.Organization,
			AllowanceType:   a.Type,
			Name:            a.Name,
			CalculationType: domain.AllowanceCalculationType(a.CalculationType),
			TaxFree:         a.TaxFree,
			AuditFields:     s.audit(f),
		}
		if al.CalculationType == "" {
			al.CalculationType = domain.AllowanceFixed
		}
		var err error
		if al.Amount, err = parseDecimal(a.Type+" amount", a.Amount); err != nil {
			return err
		}
		if al.Percentage, err = parseDecimal(a.Type+" percentage", a.Percentage); err != nil {
			return err
		}
		if al.AnnualCap, err = parseDecimal(a.Type+" annualCap", a.AnnualCap); err != nil {
			return err
		}
		if al.From, err = parseDate(a.Type+" effectiveFrom", a.EffectiveFrom); err != nil {
			return err
		}
		if err := s.record(r, s.targets.Allowances.SaveAllowance(ctx, al), "allowance", a.Type); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedApprovalRules(ctx context.Context, f *File, r *Report) error {
	for _, a := range f.ApprovalRules {
		rule := domain.CurrencyApprovalRule{
			RuleID:            StableID(f.Organization, "approval-rule", a.Name),
			OrganizationID:    f.Organization,
			Name:              a.Name,
			Priority:          a.Priority,
			Enabled:           !a.Disabled,
			OperationType:     domain.OperationType(a.Operation),
			Condition:         a.Condition,
			RequiredApprovals: a.RequiredApprovals,
			ApproverRole:      a.ApproverRole,
			AuditFields:       s.audit(f),
		}
		if rule.RequiredApprovals <= 0 {
			rule.RequiredApprovals = 1
		}
		var err error
		if rule.ThresholdAmount, err = parseOptionalDecimal(a.Name+" thresholdAmount", a.ThresholdAmount); err != nil {
			return err
		}
		if rule.VariancePercent, err = parseOptionalDecimal(a.Name+" variancePercent", a.VariancePercent); err != nil {
			return err
		}
		if a.TTL != "" {
			if rule.TTL, err = time.ParseDuration(a.TTL); err != nil {
				return fmt.Errorf("seed: %s ttl: %w", a.Name, err)
			}
		}
		// SaveRule upserts, so rules always count as written.
		if err := s.record(r, s.targets.ApprovalRules.SaveRule(ctx, rule), "approval rule", a.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedExchangeRates(ctx context.Context, f *File, r *Report) error {
	for _, e := range f.ExchangeRates {
		key := strings.ToUpper(e.From) + "/" + strings.ToUpper(e.To) + "@" + e.EffectiveFrom
		rate := domain.ExchangeRate{
			ExchangeRateID:   StableID(f.Organization, "exchange-rate", key),
			OrganizationID:   f.Organization,
			FromCurrencyCode: strings.ToUpper(e.From),
			ToCurrencyCode:   strings.ToUpper(e.To),
			AuditFields:      s.audit(f),
		}
		var err error
		if rate.Rate, err = parseDecimal(key+" rate", e.Rate); err != nil {
			return err
		}
		if !rate.Rate.IsPositive() {
			return fmt.Errorf("seed: exchange rate %s must be positive", key)
		}
		if rate.EffectiveFrom, err = parseDate(key+" effectiveFrom", e.EffectiveFrom); err != nil {
			return err
		}
		err = s.targets.ExchangeRates.SaveExchangeRate(ctx, rate)
		// The stable ID collides on a second pass, which the repository reports as a conflict.
		if errors.Is(err, apperrors.ErrConflict) {
			err = apperrors.NewDuplicateError("exchange rate " + key)
		}
		if err := s.record(r, err, "exchange rate", key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedTemplates(ctx context.Context, f *File, r *Report) error {
	for _, t := range f.Templates {
		template, err := s.buildTemplate(f, t)
		if err != nil {
			return err
		}
		key := TemplateKey(t.Code, t.Version)
		if err := s.record(r, s.targets.TemplateStore.SaveTemplate(ctx, template), "template", key); err != nil {
			return err
		}
		if t.Publish != nil && !*t.Publish {
			continue
		}

		stored, err := s.targets.TemplateStore.FindTemplateByID(ctx, f.Organization, template.TemplateID)
		if err != nil {
			return fmt.Errorf("template %s: %w", key, err)
		}
		if stored.Status != domain.TemplateDraft {
			continue
		}
		if _, err := s.targets.Templates.Publish(ctx, f.Organization, template.TemplateID, t.Default, f.Actor); err != nil {
			return fmt.Errorf("publishing template %s: %w", key, err)
		}
	}
	return nil
}

func (s *Seeder) buildTemplate(f *File, t Template) (domain.PayStructureTemplate, error) {
	key := TemplateKey(t.Code, t.Version)
	template := domain.PayStructureTemplate{
		TemplateID:     StableID(f.Organization, "template", key),
		OrganizationID: f.Organization,
		Code:           t.Code,
		Name:           t.Name,
		Version:        t.Version,
		Status:         domain.TemplateDraft,
		BaseCurrency:   strings.ToUpper(t.BaseCurrency),
		PayFrequency:   domain.PayFrequency(t.PayFrequency),
		AuditFields:    s.audit(f),
	}
	if template.PayFrequency == "" {
		template.PayFrequency = domain.FrequencyMonthly
	}
	var err error
	if template.From, err = parseDate(key+" effectiveFrom", t.EffectiveFrom); err != nil {
		return template, err
	}
	if template.To, err = parseOptionalDate(key+" effectiveTo", t.EffectiveTo); err != nil {
		return template, err
	}

	for _, c := range t.Components {
		component := domain.PayStructureComponent{
			ComponentID:     StableID(f.Organization, "component", key+"/"+c.Code),
			TemplateID:      template.TemplateID,
			Code:            c.Code,
			Name:            c.Name,
			Category:        domain.ComponentCategory(c.Category),
			CalculationType: domain.CalculationType(c.CalculationType),
			SequenceOrder:   c.Sequence,
			DependsOn:       c.DependsOn,
			IsTaxable:       c.Taxable,
			AffectsGross:    c.AffectsGross,
			AffectsNet:      c.AffectsNet,
			AllowanceType:   c.AllowanceType,
		}
		if component.Name == "" {
			component.Name = c.Code
		}
		if component.Category == domain.CategoryTax && component.CalculationType == "" {
			component.CalculationType = domain.CalcExternal
		}
		if c.TaxRuleSet != "" {
			id := StableID(f.Organization, "tax-rule-set", c.TaxRuleSet)
			component.TaxRuleSetID = &id
		}
		if component.Config, err = componentConfig(c); err != nil {
			return template, err
		}
		if component.Bounds, err = c.Bounds.toDomain(c.Code); err != nil {
			return template, err
		}
		template.Components = append(template.Components, component)
	}
	return template, nil
}

func (s *Seeder) seedWorkers(ctx context.Context, f *File, r *Report) error {
	for _, w := range f.Workers {
		code, version, ok := strings.Cut(w.Template, "@")
		if !ok {
			return fmt.Errorf("seed: worker %s template %q must be code@version", w.Employee, w.Template)
		}
		structure := domain.WorkerPayStructure{
			OrganizationID: f.Organization,
			EmployeeID:     w.Employee,
			TemplateID:     StableID(f.Organization, "template", TemplateKey(code, version)),
		}
		var err error
		if structure.From, err = parseDate(w.Employee+" effectiveFrom", w.EffectiveFrom); err != nil {
			return err
		}
		if structure.To, err = parseOptionalDate(w.Employee+" effectiveTo", w.EffectiveTo); err != nil {
			return err
		}
		if structure.BaseSalary, err = parseOptionalDecimal(w.Employee+" baseSalary", w.BaseSalary); err != nil {
			return err
		}
		if w.PayFrequency != "" {
			freq := domain.PayFrequency(w.PayFrequency)
			structure.PayFrequency = &freq
		}
		if w.PaymentCurrency != "" {
			currency := strings.ToUpper(w.PaymentCurrency)
			structure.PaymentCurrency = &currency
		}
		for _, o := range w.Overrides {
			override, err := o.toDomain(w.Employee)
			if err != nil {
				return err
			}
			structure.Overrides = append(structure.Overrides, override)
		}

		_, err = s.targets.Templates.AssignWorker(ctx, structure, f.Actor)
		// Assignments get fresh IDs, so a second pass shows up as an overlap.
		if errors.Is(err, apperrors.ErrConflict) {
			err = apperrors.NewDuplicateError("worker structure for " + w.Employee)
		}
		if err := s.record(r, err, "worker structure", w.Employee); err != nil {
			return err
		}
	}
	return nil
}

func (o Override) toDomain(employeeID string) (domain.ComponentOverride, error) {
	field := employeeID + " override " + o.Component
	out := domain.ComponentOverride{ComponentCode: o.Component, Disabled: o.Disabled, Reason: o.Reason}
	var err error
	if out.Amount, err = parseOptionalDecimal(field+" amount", o.Amount); err != nil {
		return out, err
	}
	if out.Percentage, err = parseOptionalDecimal(field+" percentage", o.Percentage); err != nil {
		return out, err
	}
	if out.Rate, err = parseOptionalDecimal(field+" rate", o.Rate); err != nil {
		return out, err
	}
	if o.Formula != "" {
		expr := o.Formula
		out.Formula = &expr
	}
	return out, nil
}
