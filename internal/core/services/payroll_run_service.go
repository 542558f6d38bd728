package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
	"github.com/SscSPs/payroll_engine/internal/middleware"
)

const defaultCalcWorkers = 8

// payrollRunService implements the PayrollRunSvcFacade interface and drives
// per-employee calculation.
type payrollRunService struct {
	BaseService
	runs       portsrepo.PayrollRunRepositoryFacade
	employees  portsrepo.EmployeeDirectory
	timeData   portsrepo.TimeDataSource
	resolver   portssvc.TemplateResolverSvc
	taxRules   portsrepo.TaxRuleSetRepository
	allowances portssvc.AllowanceSvc
	converter  portssvc.CurrencyConverterSvc
	archive    portssvc.AuditArchive
	workers    int

	runLocks *keyedMutex

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	resumes  sync.WaitGroup
}

// PayrollRunDeps groups the collaborators of the payroll run service.
type PayrollRunDeps struct {
	Runs       portsrepo.PayrollRunRepositoryFacade
	Employees  portsrepo.EmployeeDirectory
	TimeData   portsrepo.TimeDataSource
	Resolver   portssvc.TemplateResolverSvc
	TaxRules   portsrepo.TaxRuleSetRepository
	Allowances portssvc.AllowanceSvc
	Converter  portssvc.CurrencyConverterSvc
}

// PayrollRunOption is a functional option for configuring the payroll run service
type PayrollRunOption func(*payrollRunService)

// WithCalculationWorkers bounds how many employees are calculated concurrently.
func WithCalculationWorkers(n int) PayrollRunOption {
	return func(s *payrollRunService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithFormulaLogArchive mirrors formula execution logs to the audit archive.
func WithFormulaLogArchive(archive portssvc.AuditArchive) PayrollRunOption {
	return func(s *payrollRunService) {
		s.archive = archive
	}
}

// NewPayrollRunService creates the payroll run orchestrator.
func NewPayrollRunService(deps PayrollRunDeps, options ...PayrollRunOption) *payrollRunService {
	svc := &payrollRunService{
		runs:       deps.Runs,
		employees:  deps.Employees,
		timeData:   deps.TimeData,
		resolver:   deps.Resolver,
		taxRules:   deps.TaxRules,
		allowances: deps.Allowances,
		converter:  deps.Converter,
		workers:    defaultCalcWorkers,
		runLocks:   newKeyedMutex(),
		inflight:   make(map[string]context.CancelFunc),
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var (
	_ portssvc.PayrollRunSvcFacade       = (*payrollRunService)(nil)
	_ portssvc.ApprovalResolutionHandler = (*payrollRunService)(nil)
)

func (s *payrollRunService) CreateRun(ctx context.Context, organizationID string, req dto.CreatePayrollRunRequest, creatorID string) (*domain.PayrollRun, error) {
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, fmt.Errorf("%w: period end must be after period start", apperrors.ErrValidation)
	}
	if len(req.EmployeeIDs) == 0 {
		return nil, fmt.Errorf("%w: a payroll run needs at least one employee", apperrors.ErrValidation)
	}
	seen := make(map[string]bool, len(req.EmployeeIDs))
	for _, id := range req.EmployeeIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: employee %s listed twice", apperrors.ErrValidation, id)
		}
		seen[id] = true
	}

	now := s.Now()
	run := domain.PayrollRun{
		RunID:             uuid.NewString(),
		OrganizationID:    organizationID,
		Name:              req.Name,
		PeriodStart:       req.PeriodStart.UTC(),
		PeriodEnd:         req.PeriodEnd.UTC(),
		PayDate:           req.PayDate.UTC(),
		Status:            domain.RunDraft,
		EmployeeIDs:       append([]string(nil), req.EmployeeIDs...),
		TotalGross:        decimal.Zero,
		TotalNet:          decimal.Zero,
		TotalTax:          decimal.Zero,
		TotalDeductions:   decimal.Zero,
		TotalEmployerCost: decimal.Zero,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorID,
		},
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		s.LogError(ctx, err, "Failed to save payroll run", slog.String("name", req.Name))
		return nil, fmt.Errorf("failed to create payroll run: %w", err)
	}
	s.LogInfo(ctx, "Payroll run created",
		slog.String("run_id", run.RunID),
		slog.Int("employees", len(run.EmployeeIDs)))
	return &run, nil
}

func (s *payrollRunService) GetRun(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	return s.runs.FindRunByID(ctx, organizationID, runID)
}

func (s *payrollRunService) GetRunSummary(ctx context.Context, organizationID, runID string) (*domain.RunSummary, error) {
	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	paychecks, err := s.runs.ListPaychecks(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paychecks: %w", err)
	}
	summary := &domain.RunSummary{RunID: runID, Status: run.Status}
	for i := range paychecks {
		summary.Add(domain.ResultFromPaycheck(&paychecks[i]))
	}
	sortResults(summary)
	return summary, nil
}

func (s *payrollRunService) GetPaycheck(ctx context.Context, organizationID, runID, employeeID string) (*domain.Paycheck, error) {
	if _, err := s.runs.FindRunByID(ctx, organizationID, runID); err != nil {
		return nil, err
	}
	return s.runs.FindPaycheck(ctx, runID, employeeID)
}

func (s *payrollRunService) CalculateRun(ctx context.Context, organizationID, runID string, opts portssvc.CalculateOptions) (*domain.RunSummary, error) {
	unlock := s.runLocks.Lock(runID)
	defer unlock()

	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	employees, err := selectEmployees(run, opts.EmployeeIDs)
	if err != nil {
		return nil, err
	}
	if err := s.enterCalculating(ctx, run); err != nil {
		return nil, err
	}
	return s.pass(ctx, run, employees, true)
}

func (s *payrollRunService) ResumeRun(ctx context.Context, organizationID, runID string) (*domain.RunSummary, error) {
	unlock := s.runLocks.Lock(runID)
	defer unlock()

	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunCalculating {
		return nil, fmt.Errorf("%w: run %s is %s, only calculating runs can resume", apperrors.ErrInvalidTransition, runID, run.Status)
	}
	paychecks, err := s.runs.ListPaychecks(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paychecks: %w", err)
	}
	var pending []string
	for _, p := range paychecks {
		if p.Status == domain.PaycheckPendingApproval {
			pending = append(pending, p.EmployeeID)
		}
	}
	return s.pass(ctx, run, pending, false)
}

// OnApprovalResolved resumes the runs suspended on the request in the background.
func (s *payrollRunService) OnApprovalResolved(ctx context.Context, request domain.CurrencyApprovalRequest) {
	runIDs, err := s.runs.FindRunsAwaitingApproval(ctx, request.OrganizationID, request.ApprovalRequestID)
	if err != nil {
		s.LogError(ctx, err, "Failed to find runs awaiting approval",
			slog.String("approval_request_id", request.ApprovalRequestID))
		return
	}

	bg := context.WithoutCancel(ctx)
	for _, runID := range runIDs {
		s.resumes.Add(1)
		go func(runID string) {
			defer s.resumes.Done()
			summary, err := s.ResumeRun(bg, request.OrganizationID, runID)
			if err != nil {
				s.LogError(bg, err, "Failed to resume payroll run", slog.String("run_id", runID))
				return
			}
			s.LogInfo(bg, "Payroll run resumed after approval",
				slog.String("run_id", runID),
				slog.String("approval_request_id", request.ApprovalRequestID),
				slog.Int("still_pending", summary.PendingApproval))
		}(runID)
	}
}

// Wait blocks until background resumptions have finished.
func (s *payrollRunService) Wait() {
	s.resumes.Wait()
}

func (s *payrollRunService) ApproveRun(ctx context.Context, organizationID, runID, userID string) (*domain.PayrollRun, error) {
	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	paychecks, err := s.runs.ListPaychecks(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paychecks: %w", err)
	}
	for _, p := range paychecks {
		if p.Status != domain.PaycheckSucceeded {
			return nil, fmt.Errorf("%w: paycheck of employee %s is %s", apperrors.ErrValidation, p.EmployeeID, p.Status)
		}
	}
	return s.advance(ctx, run, domain.RunApproved, userID)
}

func (s *payrollRunService) StartProcessing(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, run, domain.RunProcessing, "system")
}

func (s *payrollRunService) MarkProcessed(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, run, domain.RunProcessed, "system")
}

func (s *payrollRunService) CancelRun(ctx context.Context, organizationID, runID, userID string) (*domain.PayrollRun, error) {
	run, err := s.runs.FindRunByID(ctx, organizationID, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransition(domain.RunCancelled) {
		return nil, fmt.Errorf("%w: run %s cannot be cancelled from %s", apperrors.ErrInvalidTransition, runID, run.Status)
	}

	s.mu.Lock()
	if cancel, ok := s.inflight[runID]; ok {
		cancel()
	}
	s.mu.Unlock()

	cancelled, err := s.advance(ctx, run, domain.RunCancelled, userID)
	if err != nil {
		return nil, err
	}
	// wait for the in-flight pass to stop before releasing what it consumed
	unlock := s.runLocks.Lock(runID)
	defer unlock()
	if err := s.allowances.ReleaseAllowance(ctx, organizationID, fmt.Sprintf("run:%s:", runID)); err != nil {
		s.LogError(ctx, err, "Failed to release allowances of cancelled run", slog.String("run_id", runID))
	}
	return cancelled, nil
}

func (s *payrollRunService) advance(ctx context.Context, run *domain.PayrollRun, next domain.RunStatus, userID string) (*domain.PayrollRun, error) {
	from := run.Status
	if err := run.TransitionTo(next); err != nil {
		return nil, err
	}
	if err := s.runs.UpdateRunStatus(ctx, run.RunID, from, next); err != nil {
		return nil, fmt.Errorf("failed to move run %s to %s: %w", run.RunID, next, err)
	}
	run.LastUpdatedAt = s.Now()
	run.LastUpdatedBy = userID
	s.LogInfo(ctx, "Payroll run status changed",
		slog.String("run_id", run.RunID),
		slog.String("from", string(from)),
		slog.String("to", string(next)))
	return run, nil
}

// enterCalculating moves a draft or calculated run to calculating. A run
// already calculating, e.g. waiting on approvals, may recalculate a subset.
func (s *payrollRunService) enterCalculating(ctx context.Context, run *domain.PayrollRun) error {
	if run.Status == domain.RunCalculating {
		return nil
	}
	_, err := s.advance(ctx, run, domain.RunCalculating, "system")
	return err
}

func selectEmployees(run *domain.PayrollRun, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return run.EmployeeIDs, nil
	}
	members := make(map[string]bool, len(run.EmployeeIDs))
	for _, id := range run.EmployeeIDs {
		members[id] = true
	}
	for _, id := range requested {
		if !members[id] {
			return nil, fmt.Errorf("%w: employee %s is not part of run %s", apperrors.ErrValidation, id, run.RunID)
		}
	}
	return requested, nil
}

// pass calculates employees on a bounded pool and closes the run when nothing
// is left pending.
func (s *payrollRunService) pass(ctx context.Context, run *domain.PayrollRun, employees []string, renew bool) (*domain.RunSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.inflight[run.RunID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, run.RunID)
		s.mu.Unlock()
	}()

	logger := s.GetLogger(ctx).With(
		slog.String("run_id", run.RunID),
		slog.String("organization_id", run.OrganizationID))
	ctx = middleware.WithLogger(ctx, logger)
	logger.Info("Calculating payroll run", slog.Int("employees", len(employees)), slog.Int("workers", s.workers))

	taxRules := &taxRuleCache{repo: s.taxRules}
	summary := &domain.RunSummary{RunID: run.RunID}
	var summaryMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, employeeID := range employees {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := s.calculateEmployee(ctx, run, employeeID, taxRules, renew)
			summaryMu.Lock()
			summary.Add(result)
			summaryMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sortResults(summary)

	if err := ctx.Err(); err != nil {
		logger.Warn("Payroll run calculation cancelled")
		summary.Status = domain.RunCancelled
		return summary, fmt.Errorf("%w: run %s", apperrors.ErrCancelled, run.RunID)
	}

	status, err := s.finish(ctx, run)
	if err != nil {
		return nil, err
	}
	summary.Status = status
	logger.Info("Payroll run pass finished",
		slog.String("status", string(status)),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("pending_approval", summary.PendingApproval))
	return summary, nil
}

// finish moves the run to calculated once every employee has a paycheck and
// none waits on approval.
func (s *payrollRunService) finish(ctx context.Context, run *domain.PayrollRun) (domain.RunStatus, error) {
	paychecks, err := s.runs.ListPaychecks(ctx, run.RunID)
	if err != nil {
		return "", fmt.Errorf("failed to list paychecks: %w", err)
	}
	if len(paychecks) < len(run.EmployeeIDs) {
		return run.Status, nil
	}
	for _, p := range paychecks {
		if p.Status == domain.PaycheckPendingApproval {
			return run.Status, nil
		}
	}
	err = s.runs.UpdateRunStatus(ctx, run.RunID, domain.RunCalculating, domain.RunCalculated)
	if errors.Is(err, apperrors.ErrConflict) {
		// cancelled meanwhile
		current, findErr := s.runs.FindRunByID(ctx, run.OrganizationID, run.RunID)
		if findErr != nil {
			return "", findErr
		}
		return current.Status, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark run calculated: %w", err)
	}
	run.Status = domain.RunCalculated
	return run.Status, nil
}

// calculateEmployee computes and persists one paycheck. Failures are recorded
// on the paycheck; only cancellation leaves nothing behind.
func (s *payrollRunService) calculateEmployee(ctx context.Context, run *domain.PayrollRun, employeeID string, taxRules *taxRuleCache, renew bool) domain.EmployeeResult {
	ctx = middleware.WithLogger(ctx, s.GetLogger(ctx).With(slog.String("employee_id", employeeID)))

	paycheck := domain.Paycheck{
		PaycheckID:     deterministicID(run.RunID, employeeID),
		RunID:          run.RunID,
		OrganizationID: run.OrganizationID,
		EmployeeID:     employeeID,
	}
	// drop what an earlier pass charged so lines this pass no longer pays stop counting against caps
	var builder *paycheckBuilder
	err := s.allowances.ReleaseAllowance(ctx, run.OrganizationID, employeeSourcePrefix(run.RunID, employeeID))
	if err != nil {
		err = fmt.Errorf("failed to release earlier allowance usage: %w", err)
	} else {
		builder, err = s.build(ctx, run, employeeID, &paycheck, taxRules)
	}
	if err == nil {
		err = s.convert(ctx, run, &paycheck, renew)
	}
	paycheck.CalculatedAt = s.Now()

	var logs []domain.FormulaExecutionLog
	if err == nil {
		paycheck.Status = domain.PaycheckSucceeded
		logs = builder.logs
	} else {
		s.recordFailure(ctx, &paycheck, err)
	}

	if paycheck.Status != domain.PaycheckSucceeded || ctx.Err() != nil {
		// nothing of this attempt is kept, so neither is what it charged to caps
		if releaseErr := s.allowances.ReleaseAllowance(context.WithoutCancel(ctx), run.OrganizationID, employeeSourcePrefix(run.RunID, employeeID)); releaseErr != nil {
			s.LogError(ctx, releaseErr, "Failed to release allowance usage")
		}
	}
	if ctx.Err() != nil {
		return cancelledResult(employeeID)
	}

	err = s.runs.SavePaycheck(ctx, portsrepo.PaycheckRecord{
		Paycheck:   paycheck,
		Components: paycheck.Components,
		Logs:       logs,
	})
	if err != nil {
		if ctx.Err() != nil {
			return cancelledResult(employeeID)
		}
		s.LogError(ctx, err, "Failed to save paycheck")
		return domain.EmployeeResult{
			EmployeeID:   employeeID,
			Status:       domain.PaycheckFailed,
			ErrorKind:    apperrors.KindInternal,
			ErrorMessage: err.Error(),
		}
	}

	if s.archive != nil && len(logs) > 0 {
		if err := s.archive.ArchiveFormulaLogs(ctx, logs); err != nil {
			s.LogError(ctx, err, "Failed to archive formula execution logs")
		}
	}
	return domain.ResultFromPaycheck(&paycheck)
}

// build resolves and executes the employee's components into p.
func (s *payrollRunService) build(ctx context.Context, run *domain.PayrollRun, employeeID string, p *domain.Paycheck, taxRules *taxRuleCache) (*paycheckBuilder, error) {
	employee, err := s.employees.GetEmployee(ctx, run.OrganizationID, employeeID, run.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if !employee.EmployedDuring(run.PeriodStart, run.PeriodEnd) {
		return nil, fmt.Errorf("%w: employee %s was not employed during the period", apperrors.ErrValidation, employeeID)
	}

	timeData, err := s.timeData.GetTimeData(ctx, run.OrganizationID, employeeID, run.PeriodStart, run.PeriodEnd)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load time data: %w", err)
	}

	structure, err := s.resolver.Resolve(ctx, run.OrganizationID, employeeID, run.PeriodEnd)
	if err != nil {
		return nil, err
	}
	p.TemplateID = structure.Template.TemplateID
	p.TemplateVersion = structure.Template.Version
	p.BaseCurrency = structure.Template.BaseCurrency
	p.PaymentCurrency = structure.PaymentCurrency()

	builder, err := newPaycheckBuilder(run, employee, timeData, structure)
	if err != nil {
		return nil, err
	}
	builder.taxRules = taxRules
	builder.allowances = s.allowances
	builder.clock = s.Now
	if err := builder.Execute(ctx); err != nil {
		return nil, err
	}
	builder.Totals(p)
	return builder, nil
}

// convert pays the net amount in the payment currency.
func (s *payrollRunService) convert(ctx context.Context, run *domain.PayrollRun, p *domain.Paycheck, renew bool) error {
	if p.PaymentCurrency == p.BaseCurrency {
		p.PaymentAmount = p.Net
		return nil
	}
	result, err := s.converter.Convert(ctx, portssvc.ConversionRequest{
		OrganizationID: run.OrganizationID,
		Amount:         p.Net,
		From:           p.BaseCurrency,
		To:             p.PaymentCurrency,
		AsOf:           run.PayDate,
		SourceRef:      fmt.Sprintf("run:%s:employee:%s", run.RunID, p.EmployeeID),
		RenewResolved:  renew,
	})
	if err != nil {
		return err
	}
	p.PaymentAmount = result.ConvertedAmount
	if result.ConversionID != "" {
		id := result.ConversionID
		p.ConversionID = &id
	}
	return nil
}

// recordFailure turns err into a failed or pending paycheck with no amounts.
func (s *payrollRunService) recordFailure(ctx context.Context, p *domain.Paycheck, err error) {
	var approvalErr *apperrors.ApprovalError
	if errors.As(err, &approvalErr) {
		id := approvalErr.RequestID
		p.ApprovalRequestID = &id
	}

	p.Components = nil
	p.Gross = decimal.Zero
	p.TotalDeductions = decimal.Zero
	p.TotalTax = decimal.Zero
	p.EmployerCost = decimal.Zero
	p.Net = decimal.Zero
	p.PaymentAmount = decimal.Zero
	p.ConversionID = nil

	if errors.Is(err, apperrors.ErrApprovalRequired) {
		p.Status = domain.PaycheckPendingApproval
		p.ErrorKind = apperrors.KindApprovalRequired
		p.ErrorMessage = err.Error()
		s.LogInfo(ctx, "Paycheck suspended pending currency approval")
		return
	}

	calcErr := apperrors.NewCalculationError(p.EmployeeID, "", err)
	p.Status = domain.PaycheckFailed
	p.ErrorKind = calcErr.Kind
	p.ErrorComponent = calcErr.ComponentCode
	p.ErrorMessage = err.Error()
	s.LogWarn(ctx, "Paycheck calculation failed",
		slog.String("error_kind", string(calcErr.Kind)),
		slog.String("component", calcErr.ComponentCode),
		slog.String("error", err.Error()))
}

func cancelledResult(employeeID string) domain.EmployeeResult {
	return domain.EmployeeResult{
		EmployeeID: employeeID,
		Status:     domain.PaycheckFailed,
		ErrorKind:  apperrors.KindCancelled,
	}
}

func sortResults(summary *domain.RunSummary) {
	sort.Slice(summary.Employees, func(i, j int) bool {
		return summary.Employees[i].EmployeeID < summary.Employees[j].EmployeeID
	})
}
