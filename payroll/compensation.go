package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultAbsenceDayBase is the legal payroll convention: the daily rate is
// base/30 regardless of the true month length.
const DefaultAbsenceDayBase = 30

// CompensationRules parameterize the assembler.
type CompensationRules struct {
	AbsenceDayBase int
}

// DefaultRules returns the 30-day convention.
func DefaultRules() CompensationRules {
	return CompensationRules{AbsenceDayBase: DefaultAbsenceDayBase}
}

func (r CompensationRules) dayBase() decimal.Decimal {
	if r.AbsenceDayBase <= 0 {
		return decimal.NewFromInt(DefaultAbsenceDayBase)
	}
	return decimal.NewFromInt(int64(r.AbsenceDayBase))
}

// =============================================================================
// OVERRIDES - Manual, period-variable inputs
// =============================================================================

// Overrides are the manual period fields. All are optional and default to 0.
// Penalties may be given with either sign; they always reduce gross.
type Overrides struct {
	Complement  *decimal.Decimal `json:"complement,omitempty"`
	Bonuses     decimal.Decimal  `json:"bonuses"`
	Adjustments decimal.Decimal  `json:"adjustments"`
	Penalties   decimal.Decimal  `json:"penalties"`
	Subsidies   Subsidies        `json:"subsidies"`
}

// Validate rejects negative amounts where only additions make sense.
func (o Overrides) Validate() error {
	if o.Complement != nil && o.Complement.IsNegative() {
		return fmt.Errorf("%w: complement must not be negative", ErrInvalidOverride)
	}
	if o.Bonuses.IsNegative() {
		return fmt.Errorf("%w: bonuses must not be negative", ErrInvalidOverride)
	}
	if o.Adjustments.IsNegative() {
		return fmt.Errorf("%w: adjustments must not be negative", ErrInvalidOverride)
	}
	if k, neg := o.Subsidies.HasNegative(); neg {
		return fmt.Errorf("%w: subsidy %s must not be negative", ErrInvalidOverride, k)
	}
	return nil
}

// =============================================================================
// COMPENSATION BREAKDOWN
// =============================================================================

// CompensationBreakdown is the gross side of a slip. AbsenceDeduction and
// Penalties are zero or negative; every other field is non-negative.
type CompensationBreakdown struct {
	BaseSalary       decimal.Decimal `json:"base_salary"`
	Complement       decimal.Decimal `json:"complement"`
	AbsenceDeduction decimal.Decimal `json:"absence_deduction"`
	Bonuses          decimal.Decimal `json:"bonuses"`
	Subsidies        Subsidies       `json:"subsidies"`
	Adjustments      decimal.Decimal `json:"adjustments"`
	Penalties        decimal.Decimal `json:"penalties"`
}

// GrossTotal = base + complement + absenceDeduction + Σsubsidies + bonuses
// + adjustments + penalties.
func (c CompensationBreakdown) GrossTotal() decimal.Decimal {
	return c.BaseSalary.
		Add(c.Complement).
		Add(c.AbsenceDeduction).
		Add(c.Subsidies.Total()).
		Add(c.Bonuses).
		Add(c.Adjustments).
		Add(c.Penalties)
}

// DailyRate is base / day base, unrounded.
func DailyRate(base decimal.Decimal, rules CompensationRules) decimal.Decimal {
	return base.Div(rules.dayBase())
}

// AbsenceDeduction = -(base / dayBase) * unjustifiedAbsences, rounded to
// cêntimos. It is not clamped: more than dayBase absences push it past the
// base salary and the resulting negative net is flagged downstream.
func AbsenceDeduction(base decimal.Decimal, unjustified int, rules CompensationRules) decimal.Decimal {
	if unjustified <= 0 {
		return decimal.Zero
	}
	d := DailyRate(base, rules).Mul(decimal.NewFromInt(int64(unjustified)))
	return Round(d).Neg()
}

// AssembleCompensation merges the employee's fixed compensation with the
// period attendance and manual overrides. Overrides must already be valid.
func AssembleCompensation(emp Employee, att AttendanceOutcome, ov Overrides, rules CompensationRules) CompensationBreakdown {
	complement := emp.Complement
	if ov.Complement != nil {
		complement = *ov.Complement
	}

	return CompensationBreakdown{
		BaseSalary:       Round(emp.BaseSalary),
		Complement:       Round(complement),
		AbsenceDeduction: AbsenceDeduction(emp.BaseSalary, att.UnjustifiedAbsences, rules),
		Bonuses:          Round(ov.Bonuses),
		Subsidies:        emp.Subsidies.Add(ov.Subsidies).Rounded(),
		Adjustments:      Round(ov.Adjustments),
		Penalties:        Round(ov.Penalties.Abs()).Neg(),
	}
}
