package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmploymentStatus is the HRIS employment state.
type EmploymentStatus string

const (
	EmploymentActive     EmploymentStatus = "active"
	EmploymentOnLeave    EmploymentStatus = "on_leave"
	EmploymentTerminated EmploymentStatus = "terminated"
)

// Built-in formula variable names.
const (
	VarBaseSalary     = "base_salary" // per-period share of the annual salary
	VarAnnualSalary   = "annual_salary"
	VarHourlyRate     = "hourly_rate"
	VarHoursWorked    = "hours_worked"
	VarOvertimeHours  = "overtime_hours"
	VarPeriodsPerYear = "periods_per_year"
	VarGrossPay       = "gross_pay" // running gross of the lines executed so far
	VarTaxableIncome  = "taxable_income"
)

// EmployeeSnapshot is the read-only HRIS view of an employee used for one calculation.
type EmployeeSnapshot struct {
	EmployeeID      string           `json:"employeeID"`
	OrganizationID  string           `json:"organizationID"`
	Status          EmploymentStatus `json:"status"`
	HireDate        time.Time        `json:"hireDate"`
	TerminationDate *time.Time       `json:"terminationDate,omitempty"`
	AnnualSalary    decimal.Decimal  `json:"annualSalary"`
	HourlyRate      decimal.Decimal  `json:"hourlyRate"`
	Currency        string           `json:"currency"`
}

// EmployedDuring reports whether the employee was employed at any point of [start, end].
func (e *EmployeeSnapshot) EmployedDuring(start, end time.Time) bool {
	if e.HireDate.After(end) {
		return false
	}
	return e.TerminationDate == nil || !e.TerminationDate.Before(start)
}

// TimeData is the approved time totals for one employee and pay period.
type TimeData struct {
	HoursWorked   decimal.Decimal            `json:"hoursWorked"`
	OvertimeHours decimal.Decimal            `json:"overtimeHours"`
	Extra         map[string]decimal.Decimal `json:"extra,omitempty"` // additional named totals
}
