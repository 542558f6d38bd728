package repositories

import (
	"context"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// PaycheckRecord is everything persisted for one employee of a run.
type PaycheckRecord struct {
	Paycheck   domain.Paycheck
	Components []domain.PayrollRunComponent
	Logs       []domain.FormulaExecutionLog
}

// PayrollRunReader defines read operations for payroll runs.
type PayrollRunReader interface {
	FindRunByID(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error)

	// FindPaycheck returns the paycheck of an employee with its line items.
	FindPaycheck(ctx context.Context, runID, employeeID string) (*domain.Paycheck, error)

	// ListPaychecks returns the run's paychecks without line items.
	ListPaychecks(ctx context.Context, runID string) ([]domain.Paycheck, error)

	// FindRunsAwaitingApproval lists calculating runs holding a paycheck suspended on requestID.
	FindRunsAwaitingApproval(ctx context.Context, organizationID, requestID string) ([]string, error)
}

// PayrollRunWriter defines write operations for payroll runs.
type PayrollRunWriter interface {
	SaveRun(ctx context.Context, run domain.PayrollRun) error

	// UpdateRunStatus moves the run from one status to another, failing with
	// ErrConflict when the stored status is not from.
	UpdateRunStatus(ctx context.Context, runID string, from, to domain.RunStatus) error

	// SavePaycheck replaces the employee's previous paycheck, line items and
	// execution logs and adjusts the run totals by the difference, all in one
	// transaction.
	SavePaycheck(ctx context.Context, record PaycheckRecord) error
}

// PayrollRunRepositoryFacade combines payroll run reads and writes.
type PayrollRunRepositoryFacade interface {
	PayrollRunReader
	PayrollRunWriter
}
