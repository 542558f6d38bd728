package repositories

// RepositoryProvider holds every repository the services need.
type RepositoryProvider struct {
	TemplateRepo        TemplateRepositoryFacade
	WorkerStructureRepo WorkerStructureRepository
	TaxRuleSetRepo      TaxRuleSetRepository
	AllowanceRepo       AllowanceRepositoryFacade
	ExchangeRateRepo    ExchangeRateRepositoryFacade
	ConversionRepo      ConversionRepository
	ApprovalRuleRepo    ApprovalRuleRepository
	ApprovalRequestRepo ApprovalRequestRepository
	PayrollRunRepo      PayrollRunRepositoryFacade
	EmployeeDirectory   EmployeeDirectory
	TimeDataSource      TimeDataSource
}
