package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

// memoryStore records every seeded record and rejects repeated IDs.
type memoryStore struct {
	mu         sync.Mutex
	employees  map[string]domain.EmployeeSnapshot
	entries    map[string]decimal.Decimal
	rates      map[string]domain.ExchangeRate
	taxRules   map[string]domain.TaxRuleSet
	allowances map[string]domain.Allowance
	rules      map[string]domain.CurrencyApprovalRule
	templates  map[string]domain.PayStructureTemplate
	workers    map[string]domain.WorkerPayStructure
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		employees:  map[string]domain.EmployeeSnapshot{},
		entries:    map[string]decimal.Decimal{},
		rates:      map[string]domain.ExchangeRate{},
		taxRules:   map[string]domain.TaxRuleSet{},
		allowances: map[string]domain.Allowance{},
		rules:      map[string]domain.CurrencyApprovalRule{},
		templates:  map[string]domain.PayStructureTemplate{},
		workers:    map[string]domain.WorkerPayStructure{},
	}
}

func (m *memoryStore) UpsertEmployee(_ context.Context, e domain.EmployeeSnapshot, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.EmployeeID] = e
	return nil
}

func (m *memoryStore) UpsertTimeEntry(_ context.Context, _, _, entryID, _ string, _ time.Time, hours decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryID] = hours
	return nil
}

func (m *memoryStore) SaveExchangeRate(_ context.Context, rate domain.ExchangeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rates[rate.ExchangeRateID]; ok {
		return apperrors.NewConflictError("exchange rate changed concurrently")
	}
	m.rates[rate.ExchangeRateID] = rate
	return nil
}

func (m *memoryStore) SaveTaxRuleSet(_ context.Context, rs domain.TaxRuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.taxRules[rs.TaxRuleSetID]; ok {
		return apperrors.NewDuplicateError("tax rule set exists")
	}
	m.taxRules[rs.TaxRuleSetID] = rs
	return nil
}

func (m *memoryStore) SaveAllowance(_ context.Context, a domain.Allowance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allowances[a.AllowanceID]; ok {
		return apperrors.NewDuplicateError("allowance exists")
	}
	m.allowances[a.AllowanceID] = a
	return nil
}

func (m *memoryStore) SaveRule(_ context.Context, rule domain.CurrencyApprovalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.RuleID] = rule
	return nil
}

func (m *memoryStore) SaveTemplate(_ context.Context, t domain.PayStructureTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.TemplateID]; ok {
		return apperrors.NewDuplicateError("template exists")
	}
	m.templates[t.TemplateID] = t
	return nil
}

func (m *memoryStore) FindTemplateByID(_ context.Context, _, templateID string) (*domain.PayStructureTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[templateID]
	if !ok {
		return nil, apperrors.NewNotFoundError("template " + templateID)
	}
	return &t, nil
}

// templateWriter publishes and assigns against the memory store. Other
// writer methods are not used by the seeder.
type templateWriter struct {
	portssvc.TemplateWriterSvc
	store *memoryStore
}

func (w templateWriter) Publish(_ context.Context, _, templateID string, makeDefault bool, _ string) (*domain.PayStructureTemplate, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	t := w.store.templates[templateID]
	for i := range t.Components {
		if err := domain.ValidateComponent(&t.Components[i]); err != nil {
			return nil, err
		}
	}
	if err := t.TransitionTo(domain.TemplateActive); err != nil {
		return nil, err
	}
	t.IsDefault = makeDefault
	w.store.templates[templateID] = t
	return &t, nil
}

func (w templateWriter) AssignWorker(_ context.Context, s domain.WorkerPayStructure, _ string) (*domain.WorkerPayStructure, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if _, ok := w.store.templates[s.TemplateID]; !ok {
		return nil, fmt.Errorf("%w: template %s", apperrors.ErrValidation, s.TemplateID)
	}
	if _, ok := w.store.workers[s.EmployeeID]; ok {
		return nil, apperrors.NewConflictError("overlapping worker structure")
	}
	w.store.workers[s.EmployeeID] = s
	return &s, nil
}

func newTestSeeder(store *memoryStore) *Seeder {
	return NewSeeder(Targets{
		HRIS:          store,
		ExchangeRates: store,
		TaxRuleSets:   store,
		Allowances:    store,
		ApprovalRules: store,
		TemplateStore: store,
		Templates:     templateWriter{store: store},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	_, err := Parse([]byte("version: 2\norganization: org-1\n"))
	require.Error(t, err)

	_, err = Parse([]byte("version: 1\n"))
	require.Error(t, err)

	f, err := Parse([]byte("version: 1\norganization: org-1\n"))
	require.NoError(t, err)
	assert.Equal(t, "seed", f.Actor)
}

func TestDemoFileApplies(t *testing.T) {
	f, err := Load("../../seed/demo.yaml")
	require.NoError(t, err)

	store := newMemoryStore()
	report, err := newTestSeeder(store).Apply(context.Background(), f)
	require.NoError(t, err)
	assert.Zero(t, report.Skipped)

	assert.Len(t, store.employees, 3)
	assert.Len(t, store.entries, 3)
	assert.Len(t, store.taxRules, 2)
	assert.Len(t, store.rates, 2)
	assert.Len(t, store.rules, 2)
	assert.Len(t, store.workers, 2)

	salaried := store.templates[StableID("demo-org", "template", TemplateKey("SALARIED", "1.0.0"))]
	assert.Equal(t, domain.TemplateActive, salaried.Status)
	assert.True(t, salaried.IsDefault)
	require.Len(t, salaried.Components, 5)

	tax, ok := salaried.Component("FED_TAX")
	require.True(t, ok)
	require.NotNil(t, tax.TaxRuleSetID)
	assert.Equal(t, StableID("demo-org", "tax-rule-set", "US_FED_2024"), *tax.TaxRuleSetID)
	assert.Equal(t, domain.CalcExternal, tax.CalculationType)
	assert.IsType(t, domain.TaxConfig{}, tax.Config)

	pension, _ := salaried.Component("PENSION")
	cfg, ok := pension.Config.(domain.PercentageConfig)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(5).Equal(cfg.Percentage))
	assert.Equal(t, []string{"BASE"}, cfg.Basis)

	hourly := store.templates[StableID("demo-org", "template", TemplateKey("HOURLY", "1.0.0"))]
	overtime, _ := hourly.Component("OVERTIME")
	hr, ok := overtime.Config.(domain.HourlyRateConfig)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("1.5").Equal(hr.Multiplier))
	assert.Equal(t, domain.VarOvertimeHours, hr.HoursVariable)

	worker := store.workers["emp-003"]
	require.NotNil(t, worker.PaymentCurrency)
	assert.Equal(t, "EUR", *worker.PaymentCurrency)
	require.Len(t, worker.Overrides, 1)
	assert.True(t, decimal.NewFromInt(8).Equal(*worker.Overrides[0].Percentage))
}

func TestApplyTwiceSkipsExistingRecords(t *testing.T) {
	f, err := Load("../../seed/demo.yaml")
	require.NoError(t, err)
	store := newMemoryStore()
	seeder := newTestSeeder(store)

	first, err := seeder.Apply(context.Background(), f)
	require.NoError(t, err)
	second, err := seeder.Apply(context.Background(), f)
	require.NoError(t, err)

	// employees are upserts and approval rules are upserts; both count as created again
	upserts := len(f.Employees) + len(f.ApprovalRules)
	assert.Equal(t, upserts, second.Created)
	assert.Equal(t, first.Created-upserts, second.Skipped)
	assert.Len(t, store.templates, 2)
}

func TestBadNumbersAreReported(t *testing.T) {
	f, err := Parse([]byte(`
version: 1
organization: org-1
exchangeRates:
  - {from: USD, to: EUR, rate: "abc", effectiveFrom: 2024-01-01}
`))
	require.NoError(t, err)

	_, err = newTestSeeder(newMemoryStore()).Apply(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a number")
}

func TestWorkerTemplateReferenceFormat(t *testing.T) {
	f, err := Parse([]byte(`
version: 1
organization: org-1
workers:
  - {employee: emp-1, template: SALARIED, effectiveFrom: 2024-01-01}
`))
	require.NoError(t, err)

	_, err = newTestSeeder(newMemoryStore()).Apply(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code@version")
}

func TestStableIDIsDeterministic(t *testing.T) {
	assert.Equal(t, StableID("org", "template", "A@1"), StableID("org", "template", "A@1"))
	assert.NotEqual(t, StableID("org", "template", "A@1"), StableID("org", "template", "A@2"))
	assert.NotEqual(t, StableID("org-1", "template", "A@1"), StableID("org-2", "template", "A@1"))
}
