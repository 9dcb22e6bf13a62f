package export

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/imatec/payroll-engine/payroll"
)

// AGTNamespace is the namespace of the Modelo 2 IRT declaration.
const AGTNamespace = "http://www.minfin.gv.ao/agt"

// IRTDeclaration is the AGT Modelo 2 document.
type IRTDeclaration struct {
	XMLName   xml.Name           `xml:"DeclaracaoIRT"`
	Namespace string             `xml:"xmlns,attr"`
	Header    DeclarationHeader  `xml:"Cabecalho"`
	Employees []DeclaredEmployee `xml:"Funcionarios>Funcionario"`
}

type DeclarationHeader struct {
	Company string `xml:"Empresa"`
	Year    int    `xml:"Ano"`
	Month   int    `xml:"Mes"`
}

type DeclaredEmployee struct {
	FiscalID string `xml:"NIF"`
	Name     string `xml:"Nome"`
	Base     string `xml:"Base"`
	IRT      string `xml:"IRT"`
	INSS     string `xml:"INSS"`
}

// IRTDeclarationFor builds the declaration from a salary map.
func IRTDeclarationFor(company string, m payroll.SalaryMap, opts Options) IRTDeclaration {
	d := IRTDeclaration{
		Namespace: AGTNamespace,
		Header: DeclarationHeader{
			Company: company,
			Year:    m.Period.Year,
			Month:   int(m.Period.Month),
		},
	}
	for _, r := range opts.rows(m) {
		d.Employees = append(d.Employees, DeclaredEmployee{
			FiscalID: r.FiscalID,
			Name:     r.Name,
			Base:     amount(r.BaseSalary),
			IRT:      amount(r.IRT),
			INSS:     amount(r.INSSWorker),
		})
	}
	return d
}

// WriteIRT renders the declaration as indented XML with a prolog.
func WriteIRT(w io.Writer, company string, m payroll.SalaryMap, opts Options) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(IRTDeclarationFor(company, m, opts)); err != nil {
		return fmt.Errorf("failed to encode IRT declaration: %w", err)
	}
	return enc.Flush()
}

// IRTFileName is the download name of the declaration.
func IRTFileName(p payroll.Period) string {
	return fmt.Sprintf("Modelo2_IRT_%s_%d.xml", payroll.MonthName(p.Month), p.Year)
}
