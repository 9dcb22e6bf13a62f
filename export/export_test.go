package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imatec/payroll-engine/export"
	"github.com/imatec/payroll-engine/payroll"
)

var march = payroll.Period{Year: 2024, Month: time.March}

func salaryMap() payroll.SalaryMap {
	ana := payroll.Employee{
		ID: "ana", Name: "Ana Silva", Role: "Contabilista", FiscalID: "5417000001",
		SocialSecurityNo: "INSS-1",
		AdmissionDate:    time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC),
		BaseSalary:       payroll.MustDecimal("150000"),
	}
	bruno := payroll.Employee{
		ID: "bruno", Name: "Bruno Costa", Role: "Motorista", FiscalID: "5417000002",
		AdmissionDate: time.Date(2022, time.May, 1, 0, 0, 0, 0, time.UTC),
		BaseSalary:    payroll.MustDecimal("70000"),
	}
	schedule := payroll.DefaultSchedule()
	tax := schedule.Compute(ana.BaseSalary, payroll.Subsidies{})
	slip := payroll.SalarySlip{
		ID:               "s1",
		EmployeeID:       ana.ID,
		Period:           march,
		Status:           payroll.SlipActive,
		Compensation:     payroll.CompensationBreakdown{BaseSalary: ana.BaseSalary},
		GrossTotal:       tax.Gross,
		INSSContribution: tax.INSS,
		IRTTaxableBase:   tax.IRTTaxableBase,
		IRTContribution:  tax.IRT,
		EmployerINSS:     tax.EmployerINSS,
		NetTotal:         tax.Net,
	}
	return payroll.BuildSalaryMap(payroll.SalaryMapInput{
		Period:    march,
		Employees: []payroll.Employee{ana, bruno},
		Slips:     []payroll.SalarySlip{slip},
		Schedule:  schedule,
	})
}

// =============================================================================
// INSS MAP TESTS
// =============================================================================

func TestWriteINSS_ProcessedRowsAndTotals(t *testing.T) {
	// GIVEN: A map with one processed and one provisional row
	m := salaryMap()

	// WHEN: Exporting without provisional rows
	var buf bytes.Buffer
	require.NoError(t, export.WriteINSS(&buf, m, export.Options{}))

	// THEN: Header, the processed row, and the totals line
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Nº Ordem", records[0][0])
	assert.Equal(t, "INSS Trabalhador (3%)", records[0][8])
	assert.Equal(t, []string{"1", "Ana Silva", "5417000001", "INSS-1", "2021-02-01",
		"150000.00", "0.00", "150000.00", "4500.00", "12000.00", "16500.00", "11915.00", "133585.00"}, records[1])
	assert.Equal(t, "TOTAL", records[2][0])
	assert.Equal(t, "133585.00", records[2][12])
}

func TestINSSMap_IncludeProvisional(t *testing.T) {
	entries := export.INSSMap(salaryMap(), export.Options{IncludeProvisional: true})

	require.Len(t, entries, 3)
	assert.Equal(t, "Bruno Costa", entries[0].Name)
	assert.Equal(t, "Ana Silva", entries[1].Name)
	assert.Equal(t, "201485.00", entries[2].Net)
}

func TestINSSFileName(t *testing.T) {
	assert.Equal(t, "Mapa_INSS_Março_2024.csv", export.INSSFileName(march))
}

// =============================================================================
// AGT DECLARATION TESTS
// =============================================================================

func TestWriteIRT_Declaration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteIRT(&buf, "Imatec Lda", salaryMap(), export.Options{}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, `xmlns="`+export.AGTNamespace+`"`)

	var decl export.IRTDeclaration
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &decl))
	assert.Equal(t, "Imatec Lda", decl.Header.Company)
	assert.Equal(t, 2024, decl.Header.Year)
	assert.Equal(t, 3, decl.Header.Month)
	require.Len(t, decl.Employees, 1)
	assert.Equal(t, export.DeclaredEmployee{
		FiscalID: "5417000001",
		Name:     "Ana Silva",
		Base:     "150000.00",
		IRT:      "11915.00",
		INSS:     "4500.00",
	}, decl.Employees[0])
}

func TestIRTFileName(t *testing.T) {
	assert.Equal(t, "Modelo2_IRT_Março_2024.xml", export.IRTFileName(march))
}

// =============================================================================
// PDF TESTS
// =============================================================================

func TestWriteReceipt_ProducesPDF(t *testing.T) {
	slip := payroll.SalarySlip{
		ID:           "s1",
		EmployeeName: "Ana Silva",
		EmployeeRole: "Contabilista",
		Period:       march,
		Compensation: payroll.CompensationBreakdown{
			BaseSalary: payroll.MustDecimal("150000"),
			Subsidies:  payroll.Subsidies{}.With(payroll.SubsidyTransport, payroll.MustDecimal("5000")),
		},
		GrossTotal:       payroll.MustDecimal("155000"),
		INSSContribution: payroll.MustDecimal("4650"),
		IRTContribution:  payroll.MustDecimal("12611"),
		NetTotal:         payroll.MustDecimal("137739"),
		IsTransferred:    true,
		TransferOrderRef: "OT-000001",
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteReceipt(&buf, export.Company{Name: "Imatec Lda", FiscalID: "5000000000"}, slip))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteTransferOrder_ProducesPDF(t *testing.T) {
	order := payroll.TransferOrder{
		Ref:        "OT-000001",
		Date:       time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC),
		RegisterID: "bfa",
		Lines: []payroll.TransferLine{
			{SlipID: "s1", EmployeeName: "Ana Silva", Period: march, Amount: payroll.MustDecimal("50000")},
			{SlipID: "s2", EmployeeName: "Bruno Costa", Period: march, Amount: payroll.MustDecimal("75000")},
		},
		TotalTransfers: 2,
		TotalAmount:    payroll.MustDecimal("125000"),
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteTransferOrder(&buf, export.Company{Name: "Imatec Lda"}, order, payroll.CashRegister{ID: "bfa"}))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "Transferência Salário Março 2024", export.TransferLineText(march))
}
