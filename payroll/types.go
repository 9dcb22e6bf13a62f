/*
Package payroll implements the payroll computation and batch settlement engine.

PURPOSE:
  Turns attendance plus compensation inputs into a salary slip with the
  statutory Angolan deductions (INSS social security, IRT income tax), and
  groups processed slips into transfer orders against a payment register.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:      read-only snapshot owned by the employee directory
  - Subsidies:     the fixed set of subsidy kinds carried by employees and slips
  - SalarySlip:    the durable record, one active slip per (employee, period)
  - TransferOrder: an immutable batch instruction settling a set of slips
  - CashRegister:  payment account, balance is advisory only

DESIGN PRINCIPLES:
  1. Precision: every amount is a decimal.Decimal rounded to cêntimos
  2. Derived values: gross, contributions and net are written only by the engine
  3. No deletes: reprocessing supersedes a slip, it never overwrites one
  4. Single writer: uniqueness and settlement are enforced atomically by the Store

DATA FLOW:
  AggregateAttendance -> AssembleCompensation -> TaxSchedule.Compute
      -> Engine.Process (slip) -> Engine.Transfer (order)
  BuildSalaryMap reads slips independently at any time.

SEE ALSO:
  - attendance.go:  day map to period counts
  - compensation.go: fixed + variable pay
  - tax.go:         INSS and IRT bracket table
  - slip.go:        Process / Supersede
  - settlement.go:  Transfer
  - salarymap.go:   reporting projection
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// CentPlaces is the number of decimal places kept on stored amounts.
const CentPlaces = 2

// Round rounds an amount to cêntimos, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// MustDecimal parses a decimal literal, panicking on malformed input.
// Only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type SlipID string

// =============================================================================
// SUBSIDIES
// =============================================================================

// SubsidyKind names one of the subsidy columns of the salary map.
type SubsidyKind string

const (
	SubsidyTransport SubsidyKind = "transport"
	SubsidyFood      SubsidyKind = "food"
	SubsidyFamily    SubsidyKind = "family"
	SubsidyHousing   SubsidyKind = "housing"
	SubsidyChristmas SubsidyKind = "christmas"
	SubsidyVacation  SubsidyKind = "vacation"
	SubsidyOther     SubsidyKind = "other"
)

// SubsidyKinds lists every kind in salary-map column order.
var SubsidyKinds = []SubsidyKind{
	SubsidyTransport, SubsidyFood, SubsidyFamily, SubsidyHousing,
	SubsidyChristmas, SubsidyVacation, SubsidyOther,
}

// ParseSubsidyKind validates a subsidy kind name.
func ParseSubsidyKind(s string) (SubsidyKind, bool) {
	for _, k := range SubsidyKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Subsidies holds one amount per subsidy kind.
type Subsidies struct {
	Transport decimal.Decimal `json:"transport"`
	Food      decimal.Decimal `json:"food"`
	Family    decimal.Decimal `json:"family"`
	Housing   decimal.Decimal `json:"housing"`
	Christmas decimal.Decimal `json:"christmas"`
	Vacation  decimal.Decimal `json:"vacation"`
	Other     decimal.Decimal `json:"other"`
}

func (s *Subsidies) field(k SubsidyKind) *decimal.Decimal {
	switch k {
	case SubsidyTransport:
		return &s.Transport
	case SubsidyFood:
		return &s.Food
	case SubsidyFamily:
		return &s.Family
	case SubsidyHousing:
		return &s.Housing
	case SubsidyChristmas:
		return &s.Christmas
	case SubsidyVacation:
		return &s.Vacation
	case SubsidyOther:
		return &s.Other
	}
	return nil
}

// Get returns the amount of one kind; unknown kinds are zero.
func (s Subsidies) Get(k SubsidyKind) decimal.Decimal {
	if f := s.field(k); f != nil {
		return *f
	}
	return decimal.Zero
}

// With returns a copy with one kind set.
func (s Subsidies) With(k SubsidyKind, amount decimal.Decimal) Subsidies {
	if f := s.field(k); f != nil {
		*f = amount
	}
	return s
}

// Add sums two subsidy sets kind by kind.
func (s Subsidies) Add(o Subsidies) Subsidies {
	out := s
	for _, k := range SubsidyKinds {
		out = out.With(k, s.Get(k).Add(o.Get(k)))
	}
	return out
}

// Rounded rounds every kind to cêntimos.
func (s Subsidies) Rounded() Subsidies {
	out := s
	for _, k := range SubsidyKinds {
		out = out.With(k, Round(s.Get(k)))
	}
	return out
}

// Total sums all kinds.
func (s Subsidies) Total() decimal.Decimal {
	total := decimal.Zero
	for _, k := range SubsidyKinds {
		total = total.Add(s.Get(k))
	}
	return total
}

// HasNegative reports the first negative kind, if any.
func (s Subsidies) HasNegative() (SubsidyKind, bool) {
	for _, k := range SubsidyKinds {
		if s.Get(k).IsNegative() {
			return k, true
		}
	}
	return "", false
}

// =============================================================================
// EMPLOYEE - External snapshot
// =============================================================================

// Employee is owned by the employee directory. The engine reads it as a
// snapshot at computation time and never mutates it; see mutation.go for
// the typed edits the directory applies.
type Employee struct {
	ID               EmployeeID      `json:"id"`
	Name             string          `json:"name"`
	Role             string          `json:"role"`
	FiscalID         string          `json:"fiscal_id"`
	IDNumber         string          `json:"id_number,omitempty"`
	SocialSecurityNo string          `json:"social_security_no,omitempty"`
	Province         string          `json:"province,omitempty"`
	Municipality     string          `json:"municipality,omitempty"`
	AdmissionDate    time.Time       `json:"admission_date"`
	TerminationDate  *time.Time      `json:"termination_date,omitempty"`
	BaseSalary       decimal.Decimal `json:"base_salary"`
	Complement       decimal.Decimal `json:"complement"`
	Allowances       decimal.Decimal `json:"allowances"`
	Subsidies        Subsidies       `json:"subsidies"`
}

// MissingFields lists the payroll-required fields that are not populated.
func (e Employee) MissingFields() []string {
	var missing []string
	if !e.BaseSalary.IsPositive() {
		missing = append(missing, "base_salary")
	}
	if e.FiscalID == "" {
		missing = append(missing, "fiscal_id")
	}
	if e.AdmissionDate.IsZero() {
		missing = append(missing, "admission_date")
	}
	if e.Role == "" {
		missing = append(missing, "role")
	}
	return missing
}

// =============================================================================
// SALARY SLIP - The durable record
// =============================================================================

type SlipStatus string

const (
	SlipActive     SlipStatus = "active"
	SlipSuperseded SlipStatus = "superseded"
)

// Warning codes attached to slips and operation results.
const (
	WarningNegativeNet         = "negative_net"
	WarningInvalidAttendance   = "invalid_attendance"
	WarningSyncFailed          = "sync_failed"
	WarningInsufficientBalance = "insufficient_register_balance"
	WarningSkippedSlip         = "skipped_slip"
)

// Warning is a non-fatal condition the caller must surface.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SalarySlip is created once per (EmployeeID, Period) by the engine and
// mutated only by settlement (IsTransferred) or supersession (Status).
//
// INVARIANTS:
//   - GrossTotal = Compensation.GrossTotal()
//   - NetTotal = GrossTotal - INSSContribution - IRTContribution
//   - INSSContribution >= 0, IRTContribution >= 0
type SalarySlip struct {
	ID           SlipID     `json:"id"`
	EmployeeID   EmployeeID `json:"employee_id"`
	EmployeeName string     `json:"employee_name"`
	EmployeeRole string     `json:"employee_role"`
	Period       Period     `json:"period"`
	Revision     int        `json:"revision"`
	Status       SlipStatus `json:"status"`
	SupersededBy SlipID     `json:"superseded_by,omitempty"`

	Compensation CompensationBreakdown `json:"compensation"`
	Attendance   AttendanceOutcome     `json:"attendance"`

	GrossTotal       decimal.Decimal `json:"gross_total"`
	INSSContribution decimal.Decimal `json:"inss_contribution"`
	IRTTaxableBase   decimal.Decimal `json:"irt_taxable_base"`
	IRTExempt        decimal.Decimal `json:"irt_exempt"`
	IRTContribution  decimal.Decimal `json:"irt_contribution"`
	EmployerINSS     decimal.Decimal `json:"employer_inss"`
	NetTotal         decimal.Decimal `json:"net_total"`

	ScheduleVersion  string    `json:"schedule_version"`
	IsTransferred    bool      `json:"is_transferred"`
	TransferOrderRef string    `json:"transfer_order_ref,omitempty"`
	Warnings         []Warning `json:"warnings,omitempty"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// BaseSalary is the base salary the slip was computed with.
func (s SalarySlip) BaseSalary() decimal.Decimal {
	return s.Compensation.BaseSalary
}

// HasNegativeNet reports a data-entry problem that must be flagged.
func (s SalarySlip) HasNegativeNet() bool {
	return s.NetTotal.IsNegative()
}

// IsActive is true until the slip is superseded.
func (s SalarySlip) IsActive() bool {
	return s.Status == SlipActive
}

// =============================================================================
// TRANSFER ORDER - Immutable settlement batch
// =============================================================================

// TransferLine is one slip settled by an order.
type TransferLine struct {
	SlipID       SlipID          `json:"slip_id"`
	EmployeeID   EmployeeID      `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	Period       Period          `json:"period"`
	Amount       decimal.Decimal `json:"amount"`
}

// TransferOrder directs a payment register to settle a set of net salaries.
type TransferOrder struct {
	Ref            string          `json:"ref"`
	Seq            int64           `json:"seq"`
	Date           time.Time       `json:"date"`
	RegisterID     string          `json:"register_id"`
	Lines          []TransferLine  `json:"lines"`
	TotalTransfers int             `json:"total_transfers"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// SlipIDs returns the settled slips in order.
func (o TransferOrder) SlipIDs() []SlipID {
	ids := make([]SlipID, len(o.Lines))
	for i, l := range o.Lines {
		ids[i] = l.SlipID
	}
	return ids
}

// Contains reports whether the order settles the slip.
func (o TransferOrder) Contains(id SlipID) bool {
	for _, l := range o.Lines {
		if l.SlipID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// CASH REGISTER - External, advisory
// =============================================================================

// CashRegister is a payment account. Its balance is a selection aid only;
// the engine never holds or releases funds.
type CashRegister struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}
