package statement

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

const dateLayout = "2006-01-02"

// PDFRenderer writes a one-page paycheck statement listing every line item.
type PDFRenderer struct {
	title string
}

var _ portssvc.StatementRenderer = (*PDFRenderer)(nil)

// NewPDFRenderer creates a renderer whose statements carry title.
func NewPDFRenderer(title string) *PDFRenderer {
	if title == "" {
		title = "Payslip"
	}
	return &PDFRenderer{title: title}
}

// Render writes the statement of paycheck to w.
func (r *PDFRenderer) Render(w io.Writer, run *domain.PayrollRun, paycheck *domain.Paycheck) error {
	if paycheck.Status != domain.PaycheckSucceeded {
		return fmt.Errorf("%w: paycheck of %s is %s and has no statement", apperrors.ErrConflict, paycheck.EmployeeID, paycheck.Status)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, r.title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", paycheck.EmployeeID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Run: %s", run.Name))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s, paid %s",
		run.PeriodStart.Format(dateLayout), run.PeriodEnd.Format(dateLayout), run.PayDate.Format(dateLayout)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Structure: %s", paycheck.TemplateVersion))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(70, 7, "Component", "B", 0, "L", false, 0, "")
	pdf.CellFormat(45, 7, "Category", "B", 0, "L", false, 0, "")
	pdf.CellFormat(45, 7, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range paycheck.Components {
		pdf.CellFormat(70, 6, line.ComponentName, "", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, string(line.Category), "", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, money(line.Amount, paycheck.BaseCurrency), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	totals := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Gross", paycheck.Gross},
		{"Deductions", paycheck.TotalDeductions},
		{"Tax", paycheck.TotalTax},
		{"Net", paycheck.Net},
	}
	for _, t := range totals {
		pdf.CellFormat(115, 6, t.label, "T", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, money(t.amount, paycheck.BaseCurrency), "T", 1, "R", false, 0, "")
	}
	if paycheck.PaymentCurrency != "" && paycheck.PaymentCurrency != paycheck.BaseCurrency {
		pdf.CellFormat(115, 6, "Paid", "", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, money(paycheck.PaymentAmount, paycheck.PaymentCurrency), "", 1, "R", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out statement: %w", err)
	}
	return pdf.Output(w)
}

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(domain.MoneyPlaces) + " " + currency
}
