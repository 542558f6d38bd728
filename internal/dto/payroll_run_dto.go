package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// CreatePayrollRunRequest defines the structure for creating a payroll run.
type CreatePayrollRunRequest struct {
	Name        string    `json:"name" binding:"required,max=200"`
	PeriodStart time.Time `json:"periodStart" binding:"required"`
	PeriodEnd   time.Time `json:"periodEnd" binding:"required,gtfield=PeriodStart"`
	PayDate     time.Time `json:"payDate" binding:"required"`
	EmployeeIDs []string  `json:"employeeIDs" binding:"required,min=1,dive,required"`
}

// CalculatePayrollRunRequest restricts a calculation pass to a subset of the
// run's employees, e.g. the ones that failed last time. Empty means all.
type CalculatePayrollRunRequest struct {
	EmployeeIDs []string `json:"employeeIDs" binding:"omitempty,dive,required"`
}

// PayrollRunResponse defines the data returned for a payroll run.
type PayrollRunResponse struct {
	RunID             string           `json:"runID"`
	OrganizationID    string           `json:"organizationID"`
	Name              string           `json:"name"`
	PeriodStart       time.Time        `json:"periodStart"`
	PeriodEnd         time.Time        `json:"periodEnd"`
	PayDate           time.Time        `json:"payDate"`
	Status            domain.RunStatus `json:"status"`
	EmployeeCount     int              `json:"employeeCount"`
	TotalGross        decimal.Decimal  `json:"totalGross"`
	TotalNet          decimal.Decimal  `json:"totalNet"`
	TotalTax          decimal.Decimal  `json:"totalTax"`
	TotalDeductions   decimal.Decimal  `json:"totalDeductions"`
	TotalEmployerCost decimal.Decimal  `json:"totalEmployerCost"`
}

// RunSummaryResponse combines the run with per-employee outcomes.
type RunSummaryResponse struct {
	Run     PayrollRunResponse `json:"run"`
	Summary domain.RunSummary  `json:"summary"`
}

// ToPayrollRunResponse converts a domain.PayrollRun to PayrollRunResponse DTO.
func ToPayrollRunResponse(run *domain.PayrollRun) PayrollRunResponse {
	return PayrollRunResponse{
		RunID:             run.RunID,
		OrganizationID:    run.OrganizationID,
		Name:              run.Name,
		PeriodStart:       run.PeriodStart,
		PeriodEnd:         run.PeriodEnd,
		PayDate:           run.PayDate,
		Status:            run.Status,
		EmployeeCount:     len(run.EmployeeIDs),
		TotalGross:        run.TotalGross,
		TotalNet:          run.TotalNet,
		TotalTax:          run.TotalTax,
		TotalDeductions:   run.TotalDeductions,
		TotalEmployerCost: run.TotalEmployerCost,
	}
}
