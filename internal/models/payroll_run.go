package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollRun is the payroll_runs row.
type PayrollRun struct {
	RunID             string          `db:"run_id"`
	OrganizationID    string          `db:"organization_id"`
	Name              string          `db:"name"`
	PeriodStart       time.Time       `db:"period_start"`
	PeriodEnd         time.Time       `db:"period_end"`
	PayDate           time.Time       `db:"pay_date"`
	Status            string          `db:"status"`
	EmployeeIDs       []string        `db:"employee_ids"`
	TotalGross        decimal.Decimal `db:"total_gross"`
	TotalNet          decimal.Decimal `db:"total_net"`
	TotalTax          decimal.Decimal `db:"total_tax"`
	TotalDeductions   decimal.Decimal `db:"total_deductions"`
	TotalEmployerCost decimal.Decimal `db:"total_employer_cost"`
	AuditFields
}

// Paycheck is the paychecks row.
type Paycheck struct {
	PaycheckID        string          `db:"paycheck_id"`
	RunID             string          `db:"run_id"`
	OrganizationID    string          `db:"organization_id"`
	EmployeeID        string          `db:"employee_id"`
	Status            string          `db:"status"`
	Gross             decimal.Decimal `db:"gross"`
	TotalDeductions   decimal.Decimal `db:"total_deductions"`
	TotalTax          decimal.Decimal `db:"total_tax"`
	EmployerCost      decimal.Decimal `db:"employer_cost"`
	Net               decimal.Decimal `db:"net"`
	BaseCurrency      string          `db:"base_currency"`
	PaymentCurrency   string          `db:"payment_currency"`
	PaymentAmount     decimal.Decimal `db:"payment_amount"`
	ConversionID      *string         `db:"conversion_id"`
	ApprovalRequestID *string         `db:"approval_request_id"`
	TemplateID        string          `db:"template_id"`
	TemplateVersion   string          `db:"template_version"`
	ErrorKind         string          `db:"error_kind"`
	ErrorComponent    string          `db:"error_component"`
	ErrorMessage      string          `db:"error_message"`
	CalculatedAt      time.Time       `db:"calculated_at"`
}

// PayrollRunComponent is the payroll_run_components row.
type PayrollRunComponent struct {
	RunComponentID           string          `db:"run_component_id"`
	PaycheckID               string          `db:"paycheck_id"`
	RunID                    string          `db:"run_id"`
	EmployeeID               string          `db:"employee_id"`
	ComponentCode            string          `db:"component_code"`
	ComponentName            string          `db:"component_name"`
	Category                 string          `db:"category"`
	Amount                   decimal.Decimal `db:"amount"`
	Taxable                  bool            `db:"taxable"`
	AffectsGross             bool            `db:"affects_gross"`
	AffectsNet               bool            `db:"affects_net"`
	SequenceOrder            int             `db:"sequence_order"`
	StructureTemplateVersion string          `db:"structure_template_version"`
	ComponentConfigSnapshot  []byte          `db:"component_config_snapshot"`
	TaxBreakdown             []byte          `db:"tax_breakdown"`
}

// FormulaExecutionLog is the formula_execution_logs row.
type FormulaExecutionLog struct {
	LogID          string          `db:"log_id"`
	OrganizationID string          `db:"organization_id"`
	RunID          string          `db:"run_id"`
	EmployeeID     string          `db:"employee_id"`
	ComponentCode  string          `db:"component_code"`
	Expression     string          `db:"expression"`
	Inputs         []byte          `db:"inputs"`
	Result         decimal.Decimal `db:"result"`
	DurationMicros int64           `db:"duration_micros"`
	ExecutedAt     time.Time       `db:"executed_at"`
}
