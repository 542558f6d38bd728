package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
)

// RunStatus is the state of a payroll run.
type RunStatus string

const (
	RunDraft       RunStatus = "draft"
	RunCalculating RunStatus = "calculating"
	RunCalculated  RunStatus = "calculated"
	RunApproved    RunStatus = "approved"
	RunProcessing  RunStatus = "processing"
	RunProcessed   RunStatus = "processed"
	RunCancelled   RunStatus = "cancelled"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunDraft:       {RunCalculating, RunCancelled},
	RunCalculating: {RunCalculated, RunCancelled},
	// Recalculation of a calculated run goes back through calculating.
	RunCalculated: {RunCalculating, RunApproved, RunCancelled},
	RunApproved:   {RunProcessing, RunCancelled},
	RunProcessing: {RunProcessed},
}

// CanTransition reports whether a run may move from s to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PayrollRun batches paychecks for one pay period.
type PayrollRun struct {
	RunID             string          `json:"runID"`
	OrganizationID    string          `json:"organizationID"`
	Name              string          `json:"name"`
	PeriodStart       time.Time       `json:"periodStart"`
	PeriodEnd         time.Time       `json:"periodEnd"`
	PayDate           time.Time       `json:"payDate"`
	Status            RunStatus       `json:"status"`
	EmployeeIDs       []string        `json:"employeeIDs"`
	TotalGross        decimal.Decimal `json:"totalGross"`
	TotalNet          decimal.Decimal `json:"totalNet"`
	TotalTax          decimal.Decimal `json:"totalTax"`
	TotalDeductions   decimal.Decimal `json:"totalDeductions"`
	TotalEmployerCost decimal.Decimal `json:"totalEmployerCost"`
	AuditFields
}

// TransitionTo moves the run to next if the state machine allows it.
func (r *PayrollRun) TransitionTo(next RunStatus) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: run %s cannot move from %s to %s", apperrors.ErrInvalidTransition, r.RunID, r.Status, next)
	}
	r.Status = next
	return nil
}

// PaycheckStatus is the per-employee outcome of a calculation pass.
type PaycheckStatus string

const (
	PaycheckSucceeded       PaycheckStatus = "succeeded"
	PaycheckFailed          PaycheckStatus = "failed"
	PaycheckPendingApproval PaycheckStatus = "pending_approval"
)

// Paycheck aggregates one employee's resolved components within a run.
type Paycheck struct {
	PaycheckID        string                `json:"paycheckID"`
	RunID             string                `json:"runID"`
	OrganizationID    string                `json:"organizationID"`
	EmployeeID        string                `json:"employeeID"`
	Status            PaycheckStatus        `json:"status"`
	Gross             decimal.Decimal       `json:"gross"`
	TotalDeductions   decimal.Decimal       `json:"totalDeductions"`
	TotalTax          decimal.Decimal       `json:"totalTax"`
	EmployerCost      decimal.Decimal       `json:"employerCost"`
	Net               decimal.Decimal       `json:"net"`
	BaseCurrency      string                `json:"baseCurrency"`
	PaymentCurrency   string                `json:"paymentCurrency"`
	PaymentAmount     decimal.Decimal       `json:"paymentAmount"`
	ConversionID      *string               `json:"conversionID,omitempty"`
	ApprovalRequestID *string               `json:"approvalRequestID,omitempty"`
	TemplateID        string                `json:"templateID,omitempty"`
	TemplateVersion   string                `json:"templateVersion,omitempty"`
	ErrorKind         apperrors.ErrorKind   `json:"errorKind,omitempty"`
	ErrorComponent    string                `json:"errorComponent,omitempty"`
	ErrorMessage      string                `json:"errorMessage,omitempty"`
	CalculatedAt      time.Time             `json:"calculatedAt"`
	Components        []PayrollRunComponent `json:"components,omitempty"`
}

// PayrollRunComponent is one line item of a paycheck. It freezes the template
// version and component configuration it was computed from.
type PayrollRunComponent struct {
	RunComponentID           string            `json:"runComponentID"`
	PaycheckID               string            `json:"paycheckID"`
	RunID                    string            `json:"runID"`
	EmployeeID               string            `json:"employeeID"`
	ComponentCode            string            `json:"componentCode"`
	ComponentName            string            `json:"componentName"`
	Category                 ComponentCategory `json:"category"`
	Amount                   decimal.Decimal   `json:"amount"`
	Taxable                  bool              `json:"taxable"`
	AffectsGross             bool              `json:"affectsGross"`
	AffectsNet               bool              `json:"affectsNet"`
	SequenceOrder            int               `json:"sequenceOrder"`
	StructureTemplateVersion string            `json:"structureTemplateVersion"`
	ComponentConfigSnapshot  json.RawMessage   `json:"componentConfigSnapshot"`
	TaxBreakdown             []TaxAttribution  `json:"taxBreakdown,omitempty"`
}

// FormulaExecutionLog is the compliance record of one formula evaluation.
type FormulaExecutionLog struct {
	LogID          string                     `json:"logID"`
	OrganizationID string                     `json:"organizationID"`
	RunID          string                     `json:"runID"`
	EmployeeID     string                     `json:"employeeID"`
	ComponentCode  string                     `json:"componentCode"`
	Expression     string                     `json:"expression"`
	Inputs         map[string]decimal.Decimal `json:"inputs"`
	Result         decimal.Decimal            `json:"result"`
	DurationMicros int64                      `json:"durationMicros"`
	ExecutedAt     time.Time                  `json:"executedAt"`
}

// EmployeeResult is one employee's entry in a run summary.
type EmployeeResult struct {
	EmployeeID        string              `json:"employeeID"`
	Status            PaycheckStatus      `json:"status"`
	Gross             decimal.Decimal     `json:"gross"`
	Net               decimal.Decimal     `json:"net"`
	ErrorKind         apperrors.ErrorKind `json:"errorKind,omitempty"`
	ErrorComponent    string              `json:"errorComponent,omitempty"`
	ErrorMessage      string              `json:"errorMessage,omitempty"`
	ApprovalRequestID *string             `json:"approvalRequestID,omitempty"`
}

// RunSummary reports per-employee outcomes of a run.
type RunSummary struct {
	RunID           string           `json:"runID"`
	Status          RunStatus        `json:"status"`
	Succeeded       int              `json:"succeeded"`
	Failed          int              `json:"failed"`
	PendingApproval int              `json:"pendingApproval"`
	Employees       []EmployeeResult `json:"employees"`
}

// Add counts r into the summary.
func (s *RunSummary) Add(r EmployeeResult) {
	switch r.Status {
	case PaycheckSucceeded:
		s.Succeeded++
	case PaycheckFailed:
		s.Failed++
	case PaycheckPendingApproval:
		s.PendingApproval++
	}
	s.Employees = append(s.Employees, r)
}

// ResultFromPaycheck projects a stored paycheck into a summary entry.
func ResultFromPaycheck(p *Paycheck) EmployeeResult {
	return EmployeeResult{
		EmployeeID:        p.EmployeeID,
		Status:            p.Status,
		Gross:             p.Gross,
		Net:               p.Net,
		ErrorKind:         p.ErrorKind,
		ErrorComponent:    p.ErrorComponent,
		ErrorMessage:      p.ErrorMessage,
		ApprovalRequestID: p.ApprovalRequestID,
	}
}
