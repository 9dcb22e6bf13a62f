/*
Package export renders salary maps, slips and transfer orders into the
documents handed to employees, banks and the tax authorities.

PURPOSE:
  Exporters read the figures already on slips and salary-map rows. They
  never recompute tax, so a document always matches the stored slip.

DOCUMENTS:
  - inss.go: INSS contribution map (CSV)
  - agt.go:  AGT Modelo 2 IRT declaration (XML)
  - pdf.go:  salary receipt and transfer order (PDF)
*/
package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/imatec/payroll-engine/payroll"
)

// INSSEntry is one line of the INSS contribution map.
type INSSEntry struct {
	Index            string `csv:"Nº Ordem"`
	Name             string `csv:"Nome Completo"`
	FiscalID         string `csv:"NIF / BI"`
	SocialSecurityNo string `csv:"Nº INSS"`
	AdmissionDate    string `csv:"Data Admissão"`
	BaseSalary       string `csv:"Vencimento Base"`
	Subsidies        string `csv:"Subsídios"`
	Gross            string `csv:"Remuneração Bruta"`
	INSSWorker       string `csv:"INSS Trabalhador (3%)"`
	INSSEmployer     string `csv:"INSS Empresa (8%)"`
	INSSTotal        string `csv:"Total Contribuição"`
	IRT              string `csv:"IRT"`
	Net              string `csv:"Vencimento Líquido"`
}

type INSSEntries []INSSEntry

// ToCSV writes the entries with a header row.
func (entries INSSEntries) ToCSV(w io.Writer) error {
	return gocsv.Marshal(entries, w)
}

// Options select which salary-map rows reach a declaration.
type Options struct {
	// IncludeProvisional adds rows of employees without a processed slip.
	IncludeProvisional bool
}

func (o Options) rows(m payroll.SalaryMap) []payroll.SalaryMapRow {
	if o.IncludeProvisional {
		return m.Rows
	}
	var out []payroll.SalaryMapRow
	for _, r := range m.Rows {
		if !r.IsProvisional {
			out = append(out, r)
		}
	}
	return out
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(payroll.CentPlaces)
}

// INSSMap builds the INSS contribution map with a closing totals line.
func INSSMap(m payroll.SalaryMap, opts Options) INSSEntries {
	rows := opts.rows(m)
	entries := make(INSSEntries, 0, len(rows)+1)

	var base, subs, gross, worker, employer, irt, net decimal.Decimal
	for i, r := range rows {
		nif := r.IDNumber
		if nif == "" {
			nif = r.FiscalID
		}
		admission := ""
		if !r.AdmissionDate.IsZero() {
			admission = r.AdmissionDate.Format("2006-01-02")
		}
		entries = append(entries, INSSEntry{
			Index:            fmt.Sprint(i + 1),
			Name:             r.Name,
			FiscalID:         nif,
			SocialSecurityNo: r.SocialSecurityNo,
			AdmissionDate:    admission,
			BaseSalary:       amount(r.BaseSalary),
			Subsidies:        amount(r.Subsidies.Total()),
			Gross:            amount(r.Gross),
			INSSWorker:       amount(r.INSSWorker),
			INSSEmployer:     amount(r.INSSEmployer),
			INSSTotal:        amount(r.INSSTotal()),
			IRT:              amount(r.IRT),
			Net:              amount(r.Net),
		})
		base = base.Add(r.BaseSalary)
		subs = subs.Add(r.Subsidies.Total())
		gross = gross.Add(r.Gross)
		worker = worker.Add(r.INSSWorker)
		employer = employer.Add(r.INSSEmployer)
		irt = irt.Add(r.IRT)
		net = net.Add(r.Net)
	}

	entries = append(entries, INSSEntry{
		Index:        "TOTAL",
		BaseSalary:   amount(base),
		Subsidies:    amount(subs),
		Gross:        amount(gross),
		INSSWorker:   amount(worker),
		INSSEmployer: amount(employer),
		INSSTotal:    amount(worker.Add(employer)),
		IRT:          amount(irt),
		Net:          amount(net),
	})
	return entries
}

// WriteINSS renders the INSS map of a period as CSV.
func WriteINSS(w io.Writer, m payroll.SalaryMap, opts Options) error {
	return INSSMap(m, opts).ToCSV(w)
}

// INSSFileName is the download name of the INSS map.
func INSSFileName(p payroll.Period) string {
	return fmt.Sprintf("Mapa_INSS_%s_%d.csv", payroll.MonthName(p.Month), p.Year)
}
