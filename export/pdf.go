package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/imatec/payroll-engine/payroll"
)

// Company identifies the employer on printed documents.
type Company struct {
	Name     string
	FiscalID string
}

func newDocument() (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	// Core fonts are cp1252; Portuguese accents need translating.
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

func kz(d decimal.Decimal) string {
	return d.StringFixed(payroll.CentPlaces) + " Kz"
}

// line writes a label/value pair, value right aligned.
func line(pdf *gofpdf.Fpdf, tr func(string) string, label string, value decimal.Decimal) {
	pdf.CellFormat(120, 7, tr(label), "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 7, tr(kz(value)), "", 1, "R", false, 0, "")
}

// WriteReceipt renders the salary receipt of one slip.
func WriteReceipt(w io.Writer, company Company, slip payroll.SalarySlip) error {
	pdf, tr := newDocument()
	c := slip.Compensation

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Recibo de Salário"))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("%s  NIF %s", company.Name, company.FiscalID)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Funcionário: %s (%s)", slip.EmployeeName, slip.EmployeeRole)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Período: %s   Revisão: %d   Ref: %s", slip.Period.Label(), slip.Revision, slip.ID)))
	pdf.Ln(6)
	a := slip.Attendance
	pdf.Cell(0, 6, tr(fmt.Sprintf("Dias trabalhados: %d   Folgas: %d   Férias: %d   Faltas just.: %d   Faltas injust.: %d",
		a.WorkedDays, a.RestDays, a.VacationDays, a.JustifiedAbsences, a.UnjustifiedAbsences)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, tr("Rendimentos"))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	line(pdf, tr, "Vencimento Base", c.BaseSalary)
	if !c.Complement.IsZero() {
		line(pdf, tr, "Complemento", c.Complement)
	}
	if !c.AbsenceDeduction.IsZero() {
		line(pdf, tr, fmt.Sprintf("Abatimento por faltas (%d dias)", a.UnjustifiedAbsences), c.AbsenceDeduction)
	}
	for _, k := range payroll.SubsidyKinds {
		if v := c.Subsidies.Get(k); !v.IsZero() {
			line(pdf, tr, subsidyLabel(k), v)
		}
	}
	if !c.Bonuses.IsZero() {
		line(pdf, tr, "Prémios", c.Bonuses)
	}
	if !c.Adjustments.IsZero() {
		line(pdf, tr, "Acertos", c.Adjustments)
	}
	if !c.Penalties.IsZero() {
		line(pdf, tr, "Penalizações", c.Penalties)
	}
	pdf.SetFont("Helvetica", "B", 10)
	line(pdf, tr, "Remuneração Bruta", slip.GrossTotal)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, tr("Descontos"))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	line(pdf, tr, "INSS (3%)", slip.INSSContribution)
	line(pdf, tr, "Matéria colectável IRT", slip.IRTTaxableBase)
	line(pdf, tr, "IRT", slip.IRTContribution)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	line(pdf, tr, "Vencimento Líquido", slip.NetTotal)

	if slip.IsTransferred {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, tr("Pago pela ordem de transferência "+slip.TransferOrderRef))
	}

	return pdf.Output(w)
}

// WriteTransferOrder renders the bank instruction for an order.
func WriteTransferOrder(w io.Writer, company Company, order payroll.TransferOrder, register payroll.CashRegister) error {
	pdf, tr := newDocument()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Ordem de Transferência"))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(company.Name))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr("N/ Ref Nº: "+order.Ref))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr("Data: "+order.Date.Format("02/01/2006")))
	pdf.Ln(6)
	name := register.Name
	if name == "" {
		name = order.RegisterID
	}
	pdf.Cell(0, 6, tr("Conta a debitar: "+name))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Nº Total Transferências: %d", order.TotalTransfers)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr("Montante Total: "+kz(order.TotalAmount)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(10, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(60, 7, tr("Beneficiário"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(70, 7, tr("Descritivo"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, tr("Montante"), "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for i, l := range order.Lines {
		pdf.CellFormat(10, 6, fmt.Sprint(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, tr(l.EmployeeName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tr(TransferLineText(l.Period)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(kz(l.Amount)), "1", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}

// TransferLineText is the statement text of one transfer line.
func TransferLineText(p payroll.Period) string {
	return "Transferência Salário " + p.Label()
}

func subsidyLabel(k payroll.SubsidyKind) string {
	switch k {
	case payroll.SubsidyTransport:
		return "Subsídio de Transporte"
	case payroll.SubsidyFood:
		return "Subsídio de Alimentação"
	case payroll.SubsidyFamily:
		return "Abono de Família"
	case payroll.SubsidyHousing:
		return "Subsídio de Alojamento"
	case payroll.SubsidyChristmas:
		return "Subsídio de Natal"
	case payroll.SubsidyVacation:
		return "Subsídio de Férias"
	default:
		return "Outros Subsídios"
	}
}
