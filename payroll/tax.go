/*
tax.go - Statutory deductions: INSS social security and IRT income tax

PURPOSE:
  Pure functions over a TaxSchedule value. The bracket table is data, so a
  new fiscal year is a new schedule document, not a code change.

IRT TABLE (default schedule, taxable = gross - INSS - exempt subsidies):
  x <= 70,000                 0
  70,000  < x <= 100,000      (x - 70,000)  * 10% +  3,000
  100,000 < x <= 150,000      (x - 100,000) * 13% +  6,000
  150,000 < x <= 200,000      (x - 150,000) * 16% + 12,500
  x > 200,000                 (x - 200,000) * 18% + 31,250

  Brackets are half-open on the lower bound: a taxable base equal to a
  lower bound is taxed by the bracket below it. The table is applied as
  published; the jumps at 70,000 and 200,000 are reported by
  Discontinuities().

INSS:
  worker   = gross * 3%   (deducted from net)
  employer = gross * 8%   (reporting only)

SEE ALSO:
  - factory/schedule.go: JSON schedule documents
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bracket is one row of the IRT table. It applies to taxable bases strictly
// above LowerBound, up to and including the next bracket's LowerBound.
type Bracket struct {
	LowerBound decimal.Decimal `json:"lower_bound"`
	Rate       decimal.Decimal `json:"rate"`
	BaseAmount decimal.Decimal `json:"base_amount"`
}

// TaxSchedule is a versioned set of statutory rates.
type TaxSchedule struct {
	Version          string          `json:"version"`
	EffectiveFrom    Period          `json:"effective_from"`
	INSSWorkerRate   decimal.Decimal `json:"inss_worker_rate"`
	INSSEmployerRate decimal.Decimal `json:"inss_employer_rate"`
	Brackets         []Bracket       `json:"brackets"`
	ExemptSubsidies  []SubsidyKind   `json:"exempt_subsidies,omitempty"`
}

// DefaultScheduleVersion names the built-in table.
const DefaultScheduleVersion = "AO-IRT-2020"

// DefaultSchedule returns the published Angolan table.
func DefaultSchedule() TaxSchedule {
	return TaxSchedule{
		Version:          DefaultScheduleVersion,
		EffectiveFrom:    Period{Year: 2020, Month: 9},
		INSSWorkerRate:   MustDecimal("0.03"),
		INSSEmployerRate: MustDecimal("0.08"),
		Brackets: []Bracket{
			{LowerBound: decimal.Zero, Rate: decimal.Zero, BaseAmount: decimal.Zero},
			{LowerBound: MustDecimal("70000"), Rate: MustDecimal("0.10"), BaseAmount: MustDecimal("3000")},
			{LowerBound: MustDecimal("100000"), Rate: MustDecimal("0.13"), BaseAmount: MustDecimal("6000")},
			{LowerBound: MustDecimal("150000"), Rate: MustDecimal("0.16"), BaseAmount: MustDecimal("12500")},
			{LowerBound: MustDecimal("200000"), Rate: MustDecimal("0.18"), BaseAmount: MustDecimal("31250")},
		},
	}
}

// Validate checks the bracket table shape and the rates.
func (s TaxSchedule) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidSchedule)
	}
	if s.INSSWorkerRate.IsNegative() || s.INSSWorkerRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: inss worker rate %s out of [0,1]", ErrInvalidSchedule, s.INSSWorkerRate)
	}
	if s.INSSEmployerRate.IsNegative() || s.INSSEmployerRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: inss employer rate %s out of [0,1]", ErrInvalidSchedule, s.INSSEmployerRate)
	}
	if len(s.Brackets) == 0 {
		return fmt.Errorf("%w: at least one bracket is required", ErrInvalidSchedule)
	}
	for i, b := range s.Brackets {
		if b.LowerBound.IsNegative() || b.Rate.IsNegative() || b.BaseAmount.IsNegative() {
			return fmt.Errorf("%w: bracket %d has a negative value", ErrInvalidSchedule, i)
		}
		if i > 0 && !b.LowerBound.GreaterThan(s.Brackets[i-1].LowerBound) {
			return fmt.Errorf("%w: bracket %d lower bound %s not above %s",
				ErrInvalidSchedule, i, b.LowerBound, s.Brackets[i-1].LowerBound)
		}
	}
	for _, k := range s.ExemptSubsidies {
		if _, ok := ParseSubsidyKind(string(k)); !ok {
			return fmt.Errorf("%w: unknown exempt subsidy %q", ErrInvalidSchedule, k)
		}
	}
	return nil
}

// INSS is the worker contribution on gross. Never negative.
func (s TaxSchedule) INSS(gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	return Round(gross.Mul(s.INSSWorkerRate))
}

// EmployerINSS is the employer contribution on gross, carried for reporting.
func (s TaxSchedule) EmployerINSS(gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	return Round(gross.Mul(s.INSSEmployerRate))
}

// bracketFor returns the last bracket whose lower bound is strictly below x.
func (s TaxSchedule) bracketFor(x decimal.Decimal) (Bracket, bool) {
	var found Bracket
	ok := false
	for _, b := range s.Brackets {
		if x.GreaterThan(b.LowerBound) {
			found, ok = b, true
			continue
		}
		break
	}
	return found, ok
}

func liability(b Bracket, x decimal.Decimal) decimal.Decimal {
	return x.Sub(b.LowerBound).Mul(b.Rate).Add(b.BaseAmount)
}

// IRT is the income tax on a taxable base. Never negative.
func (s TaxSchedule) IRT(taxable decimal.Decimal) decimal.Decimal {
	b, ok := s.bracketFor(taxable)
	if !ok {
		return decimal.Zero
	}
	return Round(liability(b, taxable))
}

// IsExempt reports whether a subsidy kind is outside the IRT base.
func (s TaxSchedule) IsExempt(k SubsidyKind) bool {
	for _, e := range s.ExemptSubsidies {
		if e == k {
			return true
		}
	}
	return false
}

// Exempt sums the subsidy amounts excluded from the IRT base.
func (s TaxSchedule) Exempt(subs Subsidies) decimal.Decimal {
	total := decimal.Zero
	for _, k := range s.ExemptSubsidies {
		if a := subs.Get(k); a.IsPositive() {
			total = total.Add(a)
		}
	}
	return Round(total)
}

// TaxResult is the deduction side of a slip.
type TaxResult struct {
	Gross          decimal.Decimal `json:"gross"`
	INSS           decimal.Decimal `json:"inss"`
	IRTTaxableBase decimal.Decimal `json:"irt_taxable_base"`
	IRTExempt      decimal.Decimal `json:"irt_exempt"`
	IRT            decimal.Decimal `json:"irt"`
	EmployerINSS   decimal.Decimal `json:"employer_inss"`
	Net            decimal.Decimal `json:"net"`
}

// Compute runs INSS then IRT over a gross amount. INSS is always levied on
// the full gross; exempt subsidies only reduce the IRT base.
func (s TaxSchedule) Compute(gross decimal.Decimal, subs Subsidies) TaxResult {
	gross = Round(gross)
	inss := s.INSS(gross)
	exempt := s.Exempt(subs)

	taxable := gross.Sub(inss).Sub(exempt)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	irt := s.IRT(taxable)

	return TaxResult{
		Gross:          gross,
		INSS:           inss,
		IRTTaxableBase: taxable,
		IRTExempt:      exempt,
		IRT:            irt,
		EmployerINSS:   s.EmployerINSS(gross),
		Net:            gross.Sub(inss).Sub(irt),
	}
}

// Discontinuity is a bracket boundary where liability jumps.
type Discontinuity struct {
	Boundary decimal.Decimal `json:"boundary"`
	Below    decimal.Decimal `json:"below"`
	Above    decimal.Decimal `json:"above"`
	Jump     decimal.Decimal `json:"jump"`
}

// Discontinuities lists every boundary where the next bracket's base amount
// differs from the liability of the bracket below at that boundary.
func (s TaxSchedule) Discontinuities() []Discontinuity {
	var out []Discontinuity
	for i := 1; i < len(s.Brackets); i++ {
		prev, next := s.Brackets[i-1], s.Brackets[i]
		below := Round(liability(prev, next.LowerBound))
		above := Round(next.BaseAmount)
		if !below.Equal(above) {
			out = append(out, Discontinuity{
				Boundary: next.LowerBound,
				Below:    below,
				Above:    above,
				Jump:     above.Sub(below),
			})
		}
	}
	return out
}

// ScheduleSet holds schedules keyed by the period they take effect.
type ScheduleSet []TaxSchedule

// For returns the latest schedule effective on or before p. Periods earlier
// than every schedule use the oldest one.
func (s ScheduleSet) For(p Period) TaxSchedule {
	if len(s) == 0 {
		return DefaultSchedule()
	}
	best := -1
	oldest := 0
	for i, sch := range s {
		if sch.EffectiveFrom.Before(s[oldest].EffectiveFrom) {
			oldest = i
		}
		if p.Before(sch.EffectiveFrom) {
			continue
		}
		if best < 0 || s[best].EffectiveFrom.Before(sch.EffectiveFrom) {
			best = i
		}
	}
	if best < 0 {
		return s[oldest]
	}
	return s[best]
}

// Validate checks every schedule in the set.
func (s ScheduleSet) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, sch := range s {
		if err := sch.Validate(); err != nil {
			return fmt.Errorf("schedule %q: %w", sch.Version, err)
		}
		if seen[sch.Version] {
			return fmt.Errorf("%w: duplicate version %q", ErrInvalidSchedule, sch.Version)
		}
		seen[sch.Version] = true
	}
	return nil
}
