package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imatec/payroll-engine/payroll"
)

func TestEmployeeApply_AppliesInOrder(t *testing.T) {
	emp := employee("a", "100000")

	out, err := emp.Apply(
		payroll.SetBaseSalary{Amount: dec("120000.456")},
		payroll.SetComplement{Amount: dec("5000")},
		payroll.SetAllowances{Amount: dec("2500")},
		payroll.SetSubsidy{Kind: payroll.SubsidyFood, Amount: dec("3000")},
		payroll.SetRole{Role: "  Contabilista "},
		payroll.SetFiscalID{FiscalID: "5417000000"},
	)

	require.NoError(t, err)
	assertAmount(t, "120000.46", out.BaseSalary, "base")
	assertAmount(t, "5000", out.Complement, "complement")
	assertAmount(t, "2500", out.Allowances, "allowances")
	assertAmount(t, "3000", out.Subsidies.Food, "food")
	assert.Equal(t, "Contabilista", out.Role)
	assert.Equal(t, "5417000000", out.FiscalID)

	// The receiver is a snapshot and stays untouched.
	assertAmount(t, "100000", emp.BaseSalary, "original base")
}

func TestEmployeeApply_AllOrNothing(t *testing.T) {
	// GIVEN: A valid edit followed by an invalid one
	emp := employee("a", "100000")

	// WHEN: Applying both
	out, err := emp.Apply(
		payroll.SetComplement{Amount: dec("5000")},
		payroll.SetBaseSalary{Amount: dec("0")},
	)

	// THEN: The error names the op and the record is returned unchanged
	var me *payroll.MutationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "set_base_salary", me.Op)
	assert.ErrorIs(t, err, payroll.ErrInvalidMutation)
	assertAmount(t, "0", out.Complement, "complement not applied")
}

func TestEmployeeApply_Rejections(t *testing.T) {
	emp := employee("a", "100000")

	cases := []payroll.Mutation{
		payroll.SetComplement{Amount: dec("-1")},
		payroll.SetAllowances{Amount: dec("-1")},
		payroll.SetSubsidy{Kind: "meal", Amount: dec("10")},
		payroll.SetSubsidy{Kind: payroll.SubsidyHousing, Amount: dec("-10")},
		payroll.SetRole{Role: "   "},
		payroll.SetFiscalID{FiscalID: ""},
		nil,
	}
	for _, m := range cases {
		_, err := emp.Apply(m)
		assert.ErrorIs(t, err, payroll.ErrInvalidMutation, "mutation %#v", m)
	}
}
