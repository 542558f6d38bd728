package services_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
)

// In-memory repositories with the same conflict semantics as the pgsql ones.

// --- allowances ---

type memAllowances struct {
	mu         sync.Mutex
	defs       map[string]domain.Allowance
	usage      map[domain.AllowanceKey]domain.EmployeeAllowanceUsage
	entries    map[string]map[string]domain.AllowanceUsageEntry // usageID -> sourceRef
	conflicts  int                                              // UpdateUsage calls to fail with ErrConflict
	updateHook func()
}

func newMemAllowances() *memAllowances {
	return &memAllowances{
		defs:    map[string]domain.Allowance{},
		usage:   map[domain.AllowanceKey]domain.EmployeeAllowanceUsage{},
		entries: map[string]map[string]domain.AllowanceUsageEntry{},
	}
}

func (m *memAllowances) FindAllowance(_ context.Context, organizationID, allowanceType string, asOf time.Time) (*domain.Allowance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.defs[organizationID+"/"+allowanceType]
	if !ok || !a.Covers(asOf) {
		return nil, apperrors.NewNotFoundError("allowance " + allowanceType)
	}
	return &a, nil
}

func (m *memAllowances) FindUsage(_ context.Context, key domain.AllowanceKey) (*domain.EmployeeAllowanceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usage[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("allowance usage")
	}
	return &u, nil
}

func (m *memAllowances) findByID(usageID string) (domain.EmployeeAllowanceUsage, bool) {
	for _, u := range m.usage {
		if u.UsageID == usageID {
			return u, true
		}
	}
	return domain.EmployeeAllowanceUsage{}, false
}

func (m *memAllowances) FindUsageByID(_ context.Context, usageID string) (*domain.EmployeeAllowanceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.findByID(usageID)
	if !ok {
		return nil, apperrors.NewNotFoundError("allowance usage " + usageID)
	}
	return &u, nil
}

func (m *memAllowances) FindUsageEntry(_ context.Context, usageID, sourceRef string) (*domain.AllowanceUsageEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[usageID][sourceRef]
	if !ok {
		return nil, apperrors.NewNotFoundError("allowance usage entry")
	}
	return &e, nil
}

func (m *memAllowances) FindUsageEntriesBySourcePrefix(_ context.Context, organizationID, prefix string) ([]domain.AllowanceUsageEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AllowanceUsageEntry
	for usageID, bySource := range m.entries {
		u, ok := m.findByID(usageID)
		if !ok || u.OrganizationID != organizationID {
			continue
		}
		for ref, e := range bySource {
			if strings.HasPrefix(ref, prefix) {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceRef < out[j].SourceRef })
	return out, nil
}

func (m *memAllowances) SaveAllowance(_ context.Context, a domain.Allowance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[a.OrganizationID+"/"+a.AllowanceType] = a
	return nil
}

func (m *memAllowances) CreateUsage(_ context.Context, usage domain.EmployeeAllowanceUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.AllowanceKey{
		OrganizationID: usage.OrganizationID,
		EmployeeID:     usage.EmployeeID,
		AllowanceType:  usage.AllowanceType,
		CalendarYear:   usage.CalendarYear,
	}
	if _, ok := m.usage[key]; ok {
		return apperrors.NewDuplicateError("allowance usage exists")
	}
	m.usage[key] = usage
	return nil
}

func (m *memAllowances) UpdateUsage(_ context.Context, usage domain.EmployeeAllowanceUsage, expectedVersion int64, entry domain.AllowanceUsageEntry) error {
	if m.updateHook != nil {
		m.updateHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return apperrors.NewConflictError("allowance usage changed")
	}
	key := domain.AllowanceKey{
		OrganizationID: usage.OrganizationID,
		EmployeeID:     usage.EmployeeID,
		AllowanceType:  usage.AllowanceType,
		CalendarYear:   usage.CalendarYear,
	}
	stored, ok := m.usage[key]
	if !ok || stored.Version != expectedVersion {
		return apperrors.NewConflictError("allowance usage changed")
	}
	m.usage[key] = usage
	if m.entries[usage.UsageID] == nil {
		m.entries[usage.UsageID] = map[string]domain.AllowanceUsageEntry{}
	}
	if entry.Amount.IsZero() {
		delete(m.entries[usage.UsageID], entry.SourceRef)
	} else {
		m.entries[usage.UsageID][entry.SourceRef] = entry
	}
	return nil
}

func (m *memAllowances) used(key domain.AllowanceKey) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[key].AmountUsed
}

var _ portsrepo.AllowanceRepositoryFacade = (*memAllowances)(nil)

// --- approvals ---

type memApprovals struct {
	mu       sync.Mutex
	rules    []domain.CurrencyApprovalRule
	requests map[string]domain.CurrencyApprovalRequest
	order    []string
	actions  map[string][]domain.CurrencyApprovalAction
}

func newMemApprovals() *memApprovals {
	return &memApprovals{
		requests: map[string]domain.CurrencyApprovalRequest{},
		actions:  map[string][]domain.CurrencyApprovalAction{},
	}
}

func (m *memApprovals) ListEnabledRules(_ context.Context, organizationID string, operation domain.OperationType) ([]domain.CurrencyApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CurrencyApprovalRule
	for _, r := range m.rules {
		if r.OrganizationID == organizationID && r.OperationType == operation && r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (m *memApprovals) SaveRule(_ context.Context, rule domain.CurrencyApprovalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

func (m *memApprovals) SaveRequest(_ context.Context, request domain.CurrencyApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[request.ApprovalRequestID] = request
	m.order = append(m.order, request.ApprovalRequestID)
	return nil
}

func (m *memApprovals) FindRequestByID(_ context.Context, organizationID, requestID string) (*domain.CurrencyApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok || r.OrganizationID != organizationID {
		return nil, apperrors.NewNotFoundError("approval request " + requestID)
	}
	return &r, nil
}

func (m *memApprovals) FindLatestRequestBySource(_ context.Context, organizationID, sourceRef string) (*domain.CurrencyApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.requests[m.order[i]]
		if r.OrganizationID == organizationID && r.SourceRef == sourceRef {
			return &r, nil
		}
	}
	return nil, apperrors.NewNotFoundError("approval request for " + sourceRef)
}

func (m *memApprovals) RecordAction(_ context.Context, request domain.CurrencyApprovalRequest, expectedApprovals int, action domain.CurrencyApprovalAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions[request.ApprovalRequestID] {
		if a.ApproverID == action.ApproverID {
			return apperrors.NewDuplicateError("approver already acted")
		}
	}
	stored := m.requests[request.ApprovalRequestID]
	if stored.Status != domain.ApprovalPending || stored.CurrentApprovals != expectedApprovals {
		return apperrors.NewConflictError("approval request changed")
	}
	m.requests[request.ApprovalRequestID] = request
	m.actions[request.ApprovalRequestID] = append(m.actions[request.ApprovalRequestID], action)
	return nil
}

func (m *memApprovals) UpdateRequestStatus(_ context.Context, request domain.CurrencyApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[request.ApprovalRequestID]
	if !ok || stored.Status != domain.ApprovalPending {
		return apperrors.NewConflictError("approval request is no longer pending")
	}
	m.requests[request.ApprovalRequestID] = request
	return nil
}

func (m *memApprovals) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]domain.CurrencyApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CurrencyApprovalRequest
	for _, id := range m.order {
		r := m.requests[id]
		if r.Status == domain.ApprovalPending && !now.Before(r.ExpiresAt) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memApprovals) ListActions(_ context.Context, requestID string) ([]domain.CurrencyApprovalAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CurrencyApprovalAction(nil), m.actions[requestID]...), nil
}

func (m *memApprovals) get(requestID string) domain.CurrencyApprovalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[requestID]
}

func (m *memApprovals) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

var (
	_ portsrepo.ApprovalRuleRepository    = (*memApprovals)(nil)
	_ portsrepo.ApprovalRequestRepository = (*memApprovals)(nil)
)

// --- exchange rates and conversions ---

type memRates struct {
	mu          sync.Mutex
	rates       []domain.ExchangeRate
	block       bool // lookups wait for the context to end
	conversions []domain.CurrencyConversion
}

func (m *memRates) FindExchangeRate(ctx context.Context, organizationID, from, to string, asOf time.Time) (*domain.ExchangeRate, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rates {
		if r.OrganizationID == organizationID && r.FromCurrencyCode == from && r.ToCurrencyCode == to && r.IsActiveAt(asOf) {
			return &r, nil
		}
	}
	for _, r := range m.rates {
		if r.OrganizationID == organizationID && r.FromCurrencyCode == to && r.ToCurrencyCode == from && r.IsActiveAt(asOf) {
			inverse := r
			inverse.FromCurrencyCode, inverse.ToCurrencyCode = from, to
			inverse.Rate = decimal.NewFromInt(1).DivRound(r.Rate, 10)
			return &inverse, nil
		}
	}
	return nil, apperrors.NewNotFoundError("exchange rate " + from + "/" + to)
}

func (m *memRates) FindOpenExchangeRate(_ context.Context, organizationID, from, to string) (*domain.ExchangeRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rates {
		if r.OrganizationID == organizationID && r.FromCurrencyCode == from && r.ToCurrencyCode == to && r.EffectiveTo == nil {
			return &r, nil
		}
	}
	return nil, apperrors.NewNotFoundError("open exchange rate")
}

func (m *memRates) SaveExchangeRate(_ context.Context, rate domain.ExchangeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rates {
		r := &m.rates[i]
		if r.OrganizationID == rate.OrganizationID && r.FromCurrencyCode == rate.FromCurrencyCode &&
			r.ToCurrencyCode == rate.ToCurrencyCode && r.EffectiveTo == nil {
			end := rate.EffectiveFrom
			r.EffectiveTo = &end
		}
	}
	m.rates = append(m.rates, rate)
	return nil
}

func (m *memRates) SaveConversion(_ context.Context, c domain.CurrencyConversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversions = append(m.conversions, c)
	return nil
}

func (m *memRates) FindConversionByID(_ context.Context, conversionID string) (*domain.CurrencyConversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversions {
		if c.ConversionID == conversionID {
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("conversion " + conversionID)
}

func (m *memRates) conversionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversions)
}

var (
	_ portsrepo.ExchangeRateRepositoryFacade = (*memRates)(nil)
	_ portsrepo.ConversionRepository         = (*memRates)(nil)
)

// --- templates, workers and tax rules ---

type memTemplates struct {
	mu        sync.Mutex
	templates map[string]domain.PayStructureTemplate
	workers   map[string][]domain.WorkerPayStructure
	taxRules  map[string]domain.TaxRuleSet
}

func newMemTemplates() *memTemplates {
	return &memTemplates{
		templates: map[string]domain.PayStructureTemplate{},
		workers:   map[string][]domain.WorkerPayStructure{},
		taxRules:  map[string]domain.TaxRuleSet{},
	}
}

func (m *memTemplates) FindTemplateByID(_ context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[templateID]
	if !ok || t.OrganizationID != organizationID {
		return nil, apperrors.NewNotFoundError("template " + templateID)
	}
	t.Components = append([]domain.PayStructureComponent(nil), t.Components...)
	return &t, nil
}

func (m *memTemplates) FindDefaultTemplates(_ context.Context, organizationID string, asOf time.Time) ([]domain.PayStructureTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PayStructureTemplate
	for _, t := range m.templates {
		if t.OrganizationID == organizationID && t.IsDefault && t.Status == domain.TemplateActive && t.Covers(asOf) {
			t.Components = nil
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTemplates) SaveTemplate(_ context.Context, t domain.PayStructureTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.TemplateID]; ok {
		return apperrors.NewDuplicateError("template exists")
	}
	m.templates[t.TemplateID] = t
	return nil
}

func (m *memTemplates) SaveComponent(_ context.Context, _ string, c domain.PayStructureComponent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[c.TemplateID]
	if !ok {
		return apperrors.NewNotFoundError("template " + c.TemplateID)
	}
	if !t.IsMutable() {
		return apperrors.NewConflictError("template is published")
	}
	for i := range t.Components {
		if t.Components[i].Code == c.Code {
			t.Components[i] = c
			m.templates[t.TemplateID] = t
			return nil
		}
	}
	t.Components = append(t.Components, c)
	m.templates[t.TemplateID] = t
	return nil
}

func (m *memTemplates) UpdateTemplateStatus(_ context.Context, t domain.PayStructureTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.IsDefault {
		for id, other := range m.templates {
			if id != t.TemplateID && other.OrganizationID == t.OrganizationID && other.IsDefault &&
				other.Status == domain.TemplateActive && other.Code == t.Code && other.Overlaps(t.DateRange) {
				return apperrors.NewConflictError("another default template overlaps")
			}
		}
	}
	stored := m.templates[t.TemplateID]
	stored.Status = t.Status
	stored.IsDefault = t.IsDefault
	stored.PublishedAt = t.PublishedAt
	stored.LastUpdatedAt = t.LastUpdatedAt
	stored.LastUpdatedBy = t.LastUpdatedBy
	m.templates[t.TemplateID] = stored
	return nil
}

func (m *memTemplates) FindCurrentWorkerStructure(_ context.Context, organizationID, employeeID string, asOf time.Time) (*domain.WorkerPayStructure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers[employeeID] {
		if w.OrganizationID == organizationID && w.Covers(asOf) {
			return &w, nil
		}
	}
	return nil, apperrors.NewNotFoundError("worker structure")
}

func (m *memTemplates) SaveWorkerStructure(_ context.Context, s domain.WorkerPayStructure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers[s.EmployeeID] {
		if w.Overlaps(s.DateRange) {
			return apperrors.NewConflictError("overlapping worker structure")
		}
	}
	m.workers[s.EmployeeID] = append(m.workers[s.EmployeeID], s)
	return nil
}

func (m *memTemplates) FindTaxRuleSetByID(_ context.Context, organizationID, id string) (*domain.TaxRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.taxRules[id]
	if !ok || rs.OrganizationID != organizationID {
		return nil, apperrors.NewNotFoundError("tax rule set " + id)
	}
	return &rs, nil
}

func (m *memTemplates) SaveTaxRuleSet(_ context.Context, rs domain.TaxRuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taxRules[rs.TaxRuleSetID] = rs
	return nil
}

func (m *memTemplates) put(t domain.PayStructureTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.TemplateID] = t
}

var (
	_ portsrepo.TemplateRepositoryFacade  = (*memTemplates)(nil)
	_ portsrepo.WorkerStructureRepository = (*memTemplates)(nil)
	_ portsrepo.TaxRuleSetRepository      = (*memTemplates)(nil)
)

// --- HRIS ---

type memHRIS struct {
	mu        sync.Mutex
	employees map[string]domain.EmployeeSnapshot
	time      map[string]domain.TimeData
}

func newMemHRIS() *memHRIS {
	return &memHRIS{employees: map[string]domain.EmployeeSnapshot{}, time: map[string]domain.TimeData{}}
}

func (m *memHRIS) GetEmployee(_ context.Context, organizationID, employeeID string, _ time.Time) (*domain.EmployeeSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[employeeID]
	if !ok || e.OrganizationID != organizationID {
		return nil, apperrors.NewNotFoundError("employee " + employeeID)
	}
	return &e, nil
}

func (m *memHRIS) GetTimeData(_ context.Context, _, employeeID string, _, _ time.Time) (*domain.TimeData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.time[employeeID]
	if !ok {
		return nil, apperrors.NewNotFoundError("time data")
	}
	return &td, nil
}

func (m *memHRIS) add(e domain.EmployeeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.EmployeeID] = e
}

var (
	_ portsrepo.EmployeeDirectory = (*memHRIS)(nil)
	_ portsrepo.TimeDataSource    = (*memHRIS)(nil)
)

// --- payroll runs ---

type memRuns struct {
	mu        sync.Mutex
	runs      map[string]domain.PayrollRun
	paychecks map[string]map[string]portsrepo.PaycheckRecord
}

func newMemRuns() *memRuns {
	return &memRuns{
		runs:      map[string]domain.PayrollRun{},
		paychecks: map[string]map[string]portsrepo.PaycheckRecord{},
	}
}

func (m *memRuns) FindRunByID(_ context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || r.OrganizationID != organizationID {
		return nil, apperrors.NewNotFoundError("payroll run " + runID)
	}
	r.EmployeeIDs = append([]string(nil), r.EmployeeIDs...)
	return &r, nil
}

func (m *memRuns) FindPaycheck(_ context.Context, runID, employeeID string) (*domain.Paycheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.paychecks[runID][employeeID]
	if !ok {
		return nil, apperrors.NewNotFoundError("paycheck")
	}
	p := rec.Paycheck
	p.Components = rec.Components
	return &p, nil
}

func (m *memRuns) ListPaychecks(_ context.Context, runID string) ([]domain.Paycheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Paycheck
	for _, rec := range m.paychecks[runID] {
		p := rec.Paycheck
		p.Components = nil
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (m *memRuns) FindRunsAwaitingApproval(_ context.Context, organizationID, requestID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for runID, byEmployee := range m.paychecks {
		run := m.runs[runID]
		if run.OrganizationID != organizationID || run.Status != domain.RunCalculating {
			continue
		}
		for _, rec := range byEmployee {
			p := rec.Paycheck
			if p.Status == domain.PaycheckPendingApproval && p.ApprovalRequestID != nil && *p.ApprovalRequestID == requestID {
				out = append(out, runID)
				break
			}
		}
	}
	return out, nil
}

func (m *memRuns) SaveRun(_ context.Context, run domain.PayrollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = run
	return nil
}

func (m *memRuns) UpdateRunStatus(_ context.Context, runID string, from, to domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || r.Status != from {
		return apperrors.NewConflictError("payroll run status changed")
	}
	r.Status = to
	m.runs[runID] = r
	return nil
}

func (m *memRuns) SavePaycheck(_ context.Context, rec portsrepo.PaycheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	runID := rec.Paycheck.RunID
	run, ok := m.runs[runID]
	if !ok || run.Status != domain.RunCalculating {
		return apperrors.NewConflictError("payroll run is not calculating")
	}
	if m.paychecks[runID] == nil {
		m.paychecks[runID] = map[string]portsrepo.PaycheckRecord{}
	}
	m.paychecks[runID][rec.Paycheck.EmployeeID] = rec

	run.TotalGross, run.TotalNet, run.TotalTax = decimal.Zero, decimal.Zero, decimal.Zero
	run.TotalDeductions, run.TotalEmployerCost = decimal.Zero, decimal.Zero
	for _, r := range m.paychecks[runID] {
		run.TotalGross = run.TotalGross.Add(r.Paycheck.Gross)
		run.TotalNet = run.TotalNet.Add(r.Paycheck.Net)
		run.TotalTax = run.TotalTax.Add(r.Paycheck.TotalTax)
		run.TotalDeductions = run.TotalDeductions.Add(r.Paycheck.TotalDeductions)
		run.TotalEmployerCost = run.TotalEmployerCost.Add(r.Paycheck.EmployerCost)
	}
	m.runs[runID] = run
	return nil
}

func (m *memRuns) status(runID string) domain.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[runID].Status
}

func (m *memRuns) record(runID, employeeID string) portsrepo.PaycheckRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paychecks[runID][employeeID]
}

var _ portsrepo.PayrollRunRepositoryFacade = (*memRuns)(nil)

// --- helpers ---

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func sp(s string) *string { return &s }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
