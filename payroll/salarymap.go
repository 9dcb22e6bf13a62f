/*
salarymap.go - Aggregation view over employees and their slips

PURPOSE:
  Builds the monthly salary map used for reporting and for the INSS and
  AGT exports. The map is a pure projection: it never writes and never
  changes a slip.

ROW SOURCES:
  - Processed employee:   the active slip for the period, figures as stored
  - Unprocessed employee: a provisional zero-deduction projection. Gross
    is the base salary, worker INSS is withheld at the schedule rate and
    IRT is zero. Provisional rows are flagged and never settled.
*/
package payroll

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SalaryMapRow is one employee line of the salary map.
type SalaryMapRow struct {
	Index            int        `json:"index"`
	EmployeeID       EmployeeID `json:"employee_id"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	FiscalID         string     `json:"fiscal_id"`
	IDNumber         string     `json:"id_number,omitempty"`
	SocialSecurityNo string     `json:"social_security_no,omitempty"`
	Province         string     `json:"province,omitempty"`
	Municipality     string     `json:"municipality,omitempty"`
	AdmissionDate    time.Time  `json:"admission_date"`
	TerminationDate  *time.Time `json:"termination_date,omitempty"`

	SlipID        SlipID `json:"slip_id,omitempty"`
	IsProvisional bool   `json:"is_provisional"`
	IsTransferred bool   `json:"is_transferred"`

	DayBase      int             `json:"day_base"`
	BaseSalary   decimal.Decimal `json:"base_salary"`
	Complement   decimal.Decimal `json:"complement"`
	AbsenceDays  int             `json:"absence_days"`
	AbsenceValue decimal.Decimal `json:"absence_value"`
	VacationDays int             `json:"vacation_days"`
	Subsidies    Subsidies       `json:"subsidies"`
	Allowances   decimal.Decimal `json:"allowances"`
	Bonuses      decimal.Decimal `json:"bonuses"`
	Adjustments  decimal.Decimal `json:"adjustments"`
	Penalties    decimal.Decimal `json:"penalties"`

	Gross        decimal.Decimal `json:"gross"`
	INSSBase     decimal.Decimal `json:"inss_base"`
	IRTBase      decimal.Decimal `json:"irt_base"`
	IRTExempt    decimal.Decimal `json:"irt_exempt"`
	INSSWorker   decimal.Decimal `json:"inss_worker"`
	INSSEmployer decimal.Decimal `json:"inss_employer"`
	IRT          decimal.Decimal `json:"irt"`
	Net          decimal.Decimal `json:"net"`
}

// INSSTotal is the combined worker and employer contribution.
func (r SalaryMapRow) INSSTotal() decimal.Decimal {
	return r.INSSWorker.Add(r.INSSEmployer)
}

// SalaryMapTotals sums the numeric columns.
type SalaryMapTotals struct {
	Employees    int             `json:"employees"`
	Provisional  int             `json:"provisional"`
	BaseSalary   decimal.Decimal `json:"base_salary"`
	AbsenceValue decimal.Decimal `json:"absence_value"`
	Subsidies    Subsidies       `json:"subsidies"`
	Allowances   decimal.Decimal `json:"allowances"`
	Gross        decimal.Decimal `json:"gross"`
	INSSBase     decimal.Decimal `json:"inss_base"`
	IRTBase      decimal.Decimal `json:"irt_base"`
	IRTExempt    decimal.Decimal `json:"irt_exempt"`
	INSSWorker   decimal.Decimal `json:"inss_worker"`
	INSSEmployer decimal.Decimal `json:"inss_employer"`
	IRT          decimal.Decimal `json:"irt"`
	Net          decimal.Decimal `json:"net"`
}

func (t *SalaryMapTotals) add(r SalaryMapRow) {
	t.Employees++
	if r.IsProvisional {
		t.Provisional++
	}
	t.BaseSalary = t.BaseSalary.Add(r.BaseSalary)
	t.AbsenceValue = t.AbsenceValue.Add(r.AbsenceValue)
	t.Subsidies = t.Subsidies.Add(r.Subsidies)
	t.Allowances = t.Allowances.Add(r.Allowances)
	t.Gross = t.Gross.Add(r.Gross)
	t.INSSBase = t.INSSBase.Add(r.INSSBase)
	t.IRTBase = t.IRTBase.Add(r.IRTBase)
	t.IRTExempt = t.IRTExempt.Add(r.IRTExempt)
	t.INSSWorker = t.INSSWorker.Add(r.INSSWorker)
	t.INSSEmployer = t.INSSEmployer.Add(r.INSSEmployer)
	t.IRT = t.IRT.Add(r.IRT)
	t.Net = t.Net.Add(r.Net)
}

// SalaryMap is the full map for one period.
type SalaryMap struct {
	Period          Period          `json:"period"`
	ScheduleVersion string          `json:"schedule_version"`
	Rows            []SalaryMapRow  `json:"rows"`
	Totals          SalaryMapTotals `json:"totals"`
}

// SalaryMapInput scopes BuildSalaryMap.
type SalaryMapInput struct {
	Period    Period
	Employees []Employee
	// Slips may contain any slips; only active ones for Period are used.
	Slips    []SalarySlip
	Schedule TaxSchedule
	Rules    CompensationRules
	// EmployeeID restricts the map to one employee when set.
	EmployeeID EmployeeID
}

// BuildSalaryMap projects one row per employee in scope, in employee
// name order.
func BuildSalaryMap(in SalaryMapInput) SalaryMap {
	rules := in.Rules
	if rules.AbsenceDayBase <= 0 {
		rules = DefaultRules()
	}

	active := make(map[EmployeeID]SalarySlip)
	for _, s := range in.Slips {
		if s.Period == in.Period && s.IsActive() {
			active[s.EmployeeID] = s
		}
	}

	employees := make([]Employee, 0, len(in.Employees))
	for _, emp := range in.Employees {
		if in.EmployeeID != "" && emp.ID != in.EmployeeID {
			continue
		}
		employees = append(employees, emp)
	}
	sort.SliceStable(employees, func(i, j int) bool {
		if employees[i].Name != employees[j].Name {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].ID < employees[j].ID
	})

	m := SalaryMap{Period: in.Period, ScheduleVersion: in.Schedule.Version}
	for i, emp := range employees {
		var row SalaryMapRow
		if slip, ok := active[emp.ID]; ok {
			row = slipRow(emp, slip)
		} else {
			row = provisionalRow(emp, in.Schedule)
		}
		row.Index = i + 1
		row.DayBase = rules.AbsenceDayBase
		m.Rows = append(m.Rows, row)
		m.Totals.add(row)
	}
	return m
}

func employeeRow(emp Employee) SalaryMapRow {
	return SalaryMapRow{
		EmployeeID:       emp.ID,
		Name:             emp.Name,
		Role:             emp.Role,
		FiscalID:         emp.FiscalID,
		IDNumber:         emp.IDNumber,
		SocialSecurityNo: emp.SocialSecurityNo,
		Province:         emp.Province,
		Municipality:     emp.Municipality,
		AdmissionDate:    emp.AdmissionDate,
		TerminationDate:  emp.TerminationDate,
		Allowances:       Round(emp.Allowances),
	}
}

func slipRow(emp Employee, s SalarySlip) SalaryMapRow {
	row := employeeRow(emp)
	c := s.Compensation

	row.SlipID = s.ID
	row.IsTransferred = s.IsTransferred
	row.BaseSalary = c.BaseSalary
	row.Complement = c.Complement
	row.AbsenceDays = s.Attendance.UnjustifiedAbsences
	row.AbsenceValue = c.AbsenceDeduction
	row.VacationDays = s.Attendance.VacationDays
	row.Subsidies = c.Subsidies
	row.Bonuses = c.Bonuses
	row.Adjustments = c.Adjustments
	row.Penalties = c.Penalties
	row.Gross = s.GrossTotal
	row.INSSBase = s.GrossTotal
	row.IRTBase = s.IRTTaxableBase
	row.IRTExempt = s.IRTExempt
	row.INSSWorker = s.INSSContribution
	row.INSSEmployer = s.EmployerINSS
	row.IRT = s.IRTContribution
	row.Net = s.NetTotal
	return row
}

// provisionalRow projects an unprocessed employee as base salary only,
// with worker INSS deducted and no IRT. Complement, subsidies and other
// recurring items only count once a slip is processed.
func provisionalRow(emp Employee, schedule TaxSchedule) SalaryMapRow {
	row := employeeRow(emp)
	row.IsProvisional = true

	gross := Round(emp.BaseSalary)
	inss := schedule.INSS(gross)

	row.BaseSalary = gross
	row.Complement = decimal.Zero
	row.AbsenceValue = decimal.Zero
	row.Bonuses = decimal.Zero
	row.Adjustments = decimal.Zero
	row.Penalties = decimal.Zero
	row.Gross = gross
	row.INSSBase = gross
	row.IRTBase = decimal.Zero
	row.IRTExempt = decimal.Zero
	row.INSSWorker = inss
	row.INSSEmployer = schedule.EmployerINSS(gross)
	row.IRT = decimal.Zero
	row.Net = gross.Sub(inss)
	return row
}

// SalaryMap builds the map for a period from the stored active slips.
func (e *Engine) SalaryMap(ctx context.Context, period Period, employees []Employee, employeeID EmployeeID) (SalaryMap, error) {
	if err := period.Validate(); err != nil {
		return SalaryMap{}, err
	}
	slips, err := e.store.ListSlips(ctx, SlipFilter{Period: &period, ActiveOnly: true})
	if err != nil {
		return SalaryMap{}, err
	}
	return BuildSalaryMap(SalaryMapInput{
		Period:     period,
		Employees:  employees,
		Slips:      slips,
		Schedule:   e.schedules.For(period),
		Rules:      e.rules,
		EmployeeID: employeeID,
	}), nil
}
