package services

// ServiceContainer holds instances of all the application services.
// This is the main entry point for accessing service functionality and
// is used throughout the application, particularly in the handlers.
type ServiceContainer struct {
	Template     TemplateSvcFacade
	Resolver     TemplateResolverSvc
	Allowance    AllowanceSvc
	ExchangeRate ExchangeRateSvcFacade
	Converter    CurrencyConverterSvc
	Approval     ApprovalSvcFacade
	PayrollRun   PayrollRunSvcFacade
	Statement    StatementRenderer
}
