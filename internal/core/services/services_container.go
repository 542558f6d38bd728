package services

import (
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/pkg/config"
)

// Collaborators are the adapters of external systems the services talk to.
// Nil members disable the corresponding integration.
type Collaborators struct {
	Publisher  portssvc.EventPublisher
	Archive    portssvc.AuditArchive
	Authorizer portssvc.ApproverAuthorizer
	Statement  portssvc.StatementRenderer
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, collab Collaborators) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	container.Template = NewTemplateService(repos.TemplateRepo, repos.WorkerStructureRepo, repos.TaxRuleSetRepo)
	container.Resolver = NewTemplateResolver(repos.TemplateRepo, repos.WorkerStructureRepo)
	container.Allowance = NewAllowanceService(repos.AllowanceRepo, WithAllowanceMaxRetries(cfg.AllowanceMaxRetries))

	approvalOpts := []ApprovalOption{WithDefaultApprovalTTL(cfg.ApprovalDefaultTTL)}
	if collab.Publisher != nil {
		approvalOpts = append(approvalOpts, WithEventPublisher(collab.Publisher))
	}
	if collab.Authorizer != nil {
		approvalOpts = append(approvalOpts, WithApproverAuthorizer(collab.Authorizer))
	}
	approval := NewApprovalService(repos.ApprovalRuleRepo, repos.ApprovalRequestRepo, approvalOpts...)
	container.Approval = approval

	converterOpts := []ConverterOption{WithRateLookupTimeout(cfg.RateLookupTimeout)}
	runOpts := []PayrollRunOption{WithCalculationWorkers(cfg.CalcWorkers)}
	if collab.Archive != nil {
		converterOpts = append(converterOpts, WithConversionArchive(collab.Archive))
		runOpts = append(runOpts, WithFormulaLogArchive(collab.Archive))
	}
	container.ExchangeRate = NewExchangeRateService(repos.ExchangeRateRepo, approval)
	container.Converter = NewCurrencyConverter(repos.ExchangeRateRepo, repos.ConversionRepo, approval, converterOpts...)

	runs := NewPayrollRunService(PayrollRunDeps{
		Runs:       repos.PayrollRunRepo,
		Employees:  repos.EmployeeDirectory,
		TimeData:   repos.TimeDataSource,
		Resolver:   container.Resolver,
		TaxRules:   repos.TaxRuleSetRepo,
		Allowances: container.Allowance,
		Converter:  container.Converter,
	}, runOpts...)
	// resolved approvals resume the runs waiting on them
	approval.OnResolved(runs)
	container.PayrollRun = runs
	container.Statement = collab.Statement

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.TemplateSvcFacade     = (*templateService)(nil)
	_ portssvc.TemplateResolverSvc   = (*templateResolver)(nil)
	_ portssvc.AllowanceSvc          = (*allowanceService)(nil)
	_ portssvc.ExchangeRateSvcFacade = (*exchangeRateService)(nil)
	_ portssvc.CurrencyConverterSvc  = (*currencyConverter)(nil)
	_ portssvc.ApprovalSvcFacade     = (*approvalService)(nil)
	_ portssvc.PayrollRunSvcFacade   = (*payrollRunService)(nil)
)
