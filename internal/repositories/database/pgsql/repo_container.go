package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
)

// NewRepositoryProvider builds every Postgres-backed repository on one pool.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	hris := newPgxHRISRepository(dbPool)

	return portsrepo.RepositoryProvider{
		TemplateRepo:        newPgxTemplateRepository(dbPool),
		WorkerStructureRepo: newPgxWorkerStructureRepository(dbPool),
		TaxRuleSetRepo:      newPgxTaxRuleSetRepository(dbPool),
		AllowanceRepo:       newPgxAllowanceRepository(dbPool),
		ExchangeRateRepo:    newPgxExchangeRateRepository(dbPool),
		ConversionRepo:      newPgxConversionRepository(dbPool),
		ApprovalRuleRepo:    newPgxApprovalRuleRepository(dbPool),
		ApprovalRequestRepo: newPgxApprovalRequestRepository(dbPool),
		PayrollRunRepo:      newPgxPayrollRunRepository(dbPool),
		EmployeeDirectory:   hris,
		TimeDataSource:      hris,
	}
}
