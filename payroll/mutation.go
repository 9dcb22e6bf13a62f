package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE MUTATIONS - Typed edits applied by the employee directory
// =============================================================================

// Mutation is one validated edit of an employee record. The set is closed:
// only the types in this file implement it.
type Mutation interface {
	Op() string
	apply(*Employee) error
}

type SetBaseSalary struct{ Amount decimal.Decimal }
type SetComplement struct{ Amount decimal.Decimal }
type SetAllowances struct{ Amount decimal.Decimal }
type SetSubsidy struct {
	Kind   SubsidyKind
	Amount decimal.Decimal
}
type SetRole struct{ Role string }
type SetFiscalID struct{ FiscalID string }

func (SetBaseSalary) Op() string { return "set_base_salary" }
func (SetComplement) Op() string { return "set_complement" }
func (SetAllowances) Op() string { return "set_allowances" }
func (SetSubsidy) Op() string    { return "set_subsidy" }
func (SetRole) Op() string       { return "set_role" }
func (SetFiscalID) Op() string   { return "set_fiscal_id" }

func nonNegative(op string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &MutationError{Op: op, Reason: "amount must not be negative"}
	}
	return nil
}

func (m SetBaseSalary) apply(e *Employee) error {
	if !m.Amount.IsPositive() {
		return &MutationError{Op: m.Op(), Reason: "base salary must be positive"}
	}
	e.BaseSalary = Round(m.Amount)
	return nil
}

func (m SetComplement) apply(e *Employee) error {
	if err := nonNegative(m.Op(), m.Amount); err != nil {
		return err
	}
	e.Complement = Round(m.Amount)
	return nil
}

func (m SetAllowances) apply(e *Employee) error {
	if err := nonNegative(m.Op(), m.Amount); err != nil {
		return err
	}
	e.Allowances = Round(m.Amount)
	return nil
}

func (m SetSubsidy) apply(e *Employee) error {
	if _, ok := ParseSubsidyKind(string(m.Kind)); !ok {
		return &MutationError{Op: m.Op(), Reason: "unknown subsidy kind " + string(m.Kind)}
	}
	if err := nonNegative(m.Op(), m.Amount); err != nil {
		return err
	}
	e.Subsidies = e.Subsidies.With(m.Kind, Round(m.Amount))
	return nil
}

func (m SetRole) apply(e *Employee) error {
	role := strings.TrimSpace(m.Role)
	if role == "" {
		return &MutationError{Op: m.Op(), Reason: "role must not be empty"}
	}
	e.Role = role
	return nil
}

func (m SetFiscalID) apply(e *Employee) error {
	nif := strings.TrimSpace(m.FiscalID)
	if nif == "" {
		return &MutationError{Op: m.Op(), Reason: "fiscal id must not be empty"}
	}
	e.FiscalID = nif
	return nil
}

// Apply returns a copy of e with every mutation applied in order. Nothing
// is applied if any mutation is invalid.
func (e Employee) Apply(muts ...Mutation) (Employee, error) {
	out := e
	for _, m := range muts {
		if m == nil {
			return e, &MutationError{Op: "unknown", Reason: "nil mutation"}
		}
		if err := m.apply(&out); err != nil {
			return e, err
		}
	}
	return out, nil
}
