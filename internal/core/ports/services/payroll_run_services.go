package services

import (
	"context"
	"io"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/dto"
)

// CalculateOptions narrows a calculation pass.
type CalculateOptions struct {
	// EmployeeIDs restricts the pass to these employees of the run; empty means all.
	EmployeeIDs []string
}

// PayrollRunReaderSvc defines read operations for payroll runs.
type PayrollRunReaderSvc interface {
	GetRun(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error)
	GetRunSummary(ctx context.Context, organizationID, runID string) (*domain.RunSummary, error)
	GetPaycheck(ctx context.Context, organizationID, runID, employeeID string) (*domain.Paycheck, error)
}

// PayrollRunWriterSvc defines the run lifecycle operations.
type PayrollRunWriterSvc interface {
	CreateRun(ctx context.Context, organizationID string, req dto.CreatePayrollRunRequest, creatorID string) (*domain.PayrollRun, error)

	// CalculateRun computes paychecks and returns the summary of this pass.
	CalculateRun(ctx context.Context, organizationID, runID string, opts CalculateOptions) (*domain.RunSummary, error)

	// ResumeRun recalculates only the employees suspended on approvals.
	ResumeRun(ctx context.Context, organizationID, runID string) (*domain.RunSummary, error)

	ApproveRun(ctx context.Context, organizationID, runID, userID string) (*domain.PayrollRun, error)
	StartProcessing(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error)
	MarkProcessed(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error)

	// CancelRun stops an in-flight calculation and cancels the run.
	CancelRun(ctx context.Context, organizationID, runID, userID string) (*domain.PayrollRun, error)
}

// PayrollRunSvcFacade combines payroll run reads and writes.
type PayrollRunSvcFacade interface {
	PayrollRunReaderSvc
	PayrollRunWriterSvc
}

// StatementRenderer writes a human-readable paycheck statement.
type StatementRenderer interface {
	Render(w io.Writer, run *domain.PayrollRun, paycheck *domain.Paycheck) error
}
