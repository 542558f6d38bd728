package mapping

import (
	"encoding/json"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/models"
)

// ToModelPayrollRun converts a domain PayrollRun to a model PayrollRun
func ToModelPayrollRun(d domain.PayrollRun) models.PayrollRun {
	return models.PayrollRun{
		RunID:             d.RunID,
		OrganizationID:    d.OrganizationID,
		Name:              d.Name,
		PeriodStart:       d.PeriodStart,
		PeriodEnd:         d.PeriodEnd,
		PayDate:           d.PayDate,
		Status:            string(d.Status),
		EmployeeIDs:       d.EmployeeIDs,
		TotalGross:        d.TotalGross,
		TotalNet:          d.TotalNet,
		TotalTax:          d.TotalTax,
		TotalDeductions:   d.TotalDeductions,
		TotalEmployerCost: d.TotalEmployerCost,
		AuditFields:       ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainPayrollRun converts a model PayrollRun to a domain PayrollRun
func ToDomainPayrollRun(m models.PayrollRun) domain.PayrollRun {
	return domain.PayrollRun{
		RunID:             m.RunID,
		OrganizationID:    m.OrganizationID,
		Name:              m.Name,
		PeriodStart:       m.PeriodStart,
		PeriodEnd:         m.PeriodEnd,
		PayDate:           m.PayDate,
		Status:            domain.RunStatus(m.Status),
		EmployeeIDs:       m.EmployeeIDs,
		TotalGross:        m.TotalGross,
		TotalNet:          m.TotalNet,
		TotalTax:          m.TotalTax,
		TotalDeductions:   m.TotalDeductions,
		TotalEmployerCost: m.TotalEmployerCost,
		AuditFields:       ToDomainAuditFields(m.AuditFields),
	}
}

// ToModelPaycheck converts a domain Paycheck to a model Paycheck
func ToModelPaycheck(d domain.Paycheck) models.Paycheck {
	return models.Paycheck{
		PaycheckID:        d.PaycheckID,
		RunID:             d.RunID,
		OrganizationID:    d.OrganizationID,
		EmployeeID:        d.EmployeeID,
		Status:            string(d.Status),
		Gross:             d.Gross,
		TotalDeductions:   d.TotalDeductions,
		TotalTax:          d.TotalTax,
		EmployerCost:      d.EmployerCost,
		Net:               d.Net,
		BaseCurrency:      d.BaseCurrency,
		PaymentCurrency:   d.PaymentCurrency,
		PaymentAmount:     d.PaymentAmount,
		ConversionID:      d.ConversionID,
		ApprovalRequestID: d.ApprovalRequestID,
		TemplateID:        d.TemplateID,
		TemplateVersion:   d.TemplateVersion,
		ErrorKind:         string(d.ErrorKind),
		ErrorComponent:    d.ErrorComponent,
		ErrorMessage:      d.ErrorMessage,
		CalculatedAt:      d.CalculatedAt,
	}
}

// ToDomainPaycheck converts a model Paycheck to a domain Paycheck
func ToDomainPaycheck(m models.Paycheck) domain.Paycheck {
	return domain.Paycheck{
		PaycheckID:        m.PaycheckID,
		RunID:             m.RunID,
		OrganizationID:    m.OrganizationID,
		EmployeeID:        m.EmployeeID,
		Status:            domain.PaycheckStatus(m.Status),
		Gross:             m.Gross,
		TotalDeductions:   m.TotalDeductions,
		TotalTax:          m.TotalTax,
		EmployerCost:      m.EmployerCost,
		Net:               m.Net,
		BaseCurrency:      m.BaseCurrency,
		PaymentCurrency:   m.PaymentCurrency,
		PaymentAmount:     m.PaymentAmount,
		ConversionID:      m.ConversionID,
		ApprovalRequestID: m.ApprovalRequestID,
		TemplateID:        m.TemplateID,
		TemplateVersion:   m.TemplateVersion,
		ErrorKind:         apperrors.ErrorKind(m.ErrorKind),
		ErrorComponent:    m.ErrorComponent,
		ErrorMessage:      m.ErrorMessage,
		CalculatedAt:      m.CalculatedAt,
	}
}

// ToModelRunComponent converts a paycheck line to its row.
func ToModelRunComponent(d domain.PayrollRunComponent) (models.PayrollRunComponent, error) {
	var breakdown []byte
	if len(d.TaxBreakdown) > 0 {
		var err error
		if breakdown, err = json.Marshal(d.TaxBreakdown); err != nil {
			return models.PayrollRunComponent{}, err
		}
	}
	snapshot := []byte(d.ComponentConfigSnapshot)
	if len(snapshot) == 0 {
		snapshot = []byte("{}")
	}
	return models.PayrollRunComponent{
		RunComponentID:           d.RunComponentID,
		PaycheckID:               d.PaycheckID,
		RunID:                    d.RunID,
		EmployeeID:               d.EmployeeID,
		ComponentCode:            d.ComponentCode,
		ComponentName:            d.ComponentName,
		Category:                 string(d.Category),
		Amount:                   d.Amount,
		Taxable:                  d.Taxable,
		AffectsGross:             d.AffectsGross,
		AffectsNet:               d.AffectsNet,
		SequenceOrder:            d.SequenceOrder,
		StructureTemplateVersion: d.StructureTemplateVersion,
		ComponentConfigSnapshot:  snapshot,
		TaxBreakdown:             breakdown,
	}, nil
}

// ToDomainRunComponent converts a line row back to the domain type.
func ToDomainRunComponent(m models.PayrollRunComponent) (domain.PayrollRunComponent, error) {
	var breakdown []domain.TaxAttribution
	if len(m.TaxBreakdown) > 0 {
		if err := json.Unmarshal(m.TaxBreakdown, &breakdown); err != nil {
			return domain.PayrollRunComponent{}, err
		}
	}
	return domain.PayrollRunComponent{
		RunComponentID:           m.RunComponentID,
		PaycheckID:               m.PaycheckID,
		RunID:                    m.RunID,
		EmployeeID:               m.EmployeeID,
		ComponentCode:            m.ComponentCode,
		ComponentName:            m.ComponentName,
		Category:                 domain.ComponentCategory(m.Category),
		Amount:                   m.Amount,
		Taxable:                  m.Taxable,
		AffectsGross:             m.AffectsGross,
		AffectsNet:               m.AffectsNet,
		SequenceOrder:            m.SequenceOrder,
		StructureTemplateVersion: m.StructureTemplateVersion,
		ComponentConfigSnapshot:  json.RawMessage(m.ComponentConfigSnapshot),
		TaxBreakdown:             breakdown,
	}, nil
}

// ToModelFormulaLog converts a formula execution log to its row.
func ToModelFormulaLog(d domain.FormulaExecutionLog) (models.FormulaExecutionLog, error) {
	inputs, err := json.Marshal(d.Inputs)
	if err != nil {
		return models.FormulaExecutionLog{}, err
	}
	return models.FormulaExecutionLog{
		LogID:          d.LogID,
		OrganizationID: d.OrganizationID,
		RunID:          d.RunID,
		EmployeeID:     d.EmployeeID,
		ComponentCode:  d.ComponentCode,
		Expression:     d.Expression,
		Inputs:         inputs,
		Result:         d.Result,
		DurationMicros: d.DurationMicros,
		ExecutedAt:     d.ExecutedAt,
	}, nil
}
