package payroll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imatec/payroll-engine/payroll"
)

var (
	march2024 = payroll.Period{Year: 2024, Month: time.March}
	feb2024   = payroll.Period{Year: 2024, Month: time.February}
	feb2023   = payroll.Period{Year: 2023, Month: time.February}
)

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestPeriod_Days_UsesTrueMonthLength(t *testing.T) {
	assert.Equal(t, 31, march2024.Days())
	assert.Equal(t, 29, feb2024.Days(), "2024 is a leap year")
	assert.Equal(t, 28, feb2023.Days())
}

func TestParsePeriod(t *testing.T) {
	p, err := payroll.ParsePeriod("2024-03")
	require.NoError(t, err)
	assert.Equal(t, march2024, p)
	assert.Equal(t, "2024-03", p.String())
	assert.Equal(t, "Março 2024", p.Label())

	for _, bad := range []string{"", "2024", "2024-13", "2024-00", "abcd-03", "03-2024x"} {
		_, err := payroll.ParsePeriod(bad)
		assert.ErrorIs(t, err, payroll.ErrInvalidPeriod, "input %q", bad)
	}
}

func TestPeriod_Before(t *testing.T) {
	assert.True(t, feb2024.Before(march2024))
	assert.True(t, feb2023.Before(feb2024))
	assert.False(t, march2024.Before(march2024))
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregateAttendance_EmptyMap_AllDaysWorked(t *testing.T) {
	// GIVEN: No tagged days
	// WHEN: Aggregating March 2024
	// THEN: Every calendar day is an ordinary worked day

	out, invalid := payroll.AggregateAttendance(march2024, nil)

	assert.Empty(t, invalid)
	assert.Equal(t, payroll.AttendanceOutcome{WorkedDays: 31}, out)
}

func TestAggregateAttendance_ClassifiesEveryDayOnce(t *testing.T) {
	// GIVEN: A grid with every day type, using both tags and aliases
	days := payroll.DayMap{
		2:  "folga",
		3:  "rest",
		9:  "FOLGA",
		4:  "injust",
		5:  "unjustified_absence",
		11: "just",
		12: "férias",
		13: "ferias",
		14: "vacation",
		15: "serviço",
		16: "",
	}

	// WHEN: Aggregating
	out, invalid := payroll.AggregateAttendance(march2024, days)

	// THEN: Counts match and add up to the month length
	assert.Empty(t, invalid)
	assert.Equal(t, 3, out.RestDays)
	assert.Equal(t, 2, out.UnjustifiedAbsences)
	assert.Equal(t, 1, out.JustifiedAbsences)
	assert.Equal(t, 3, out.VacationDays)
	assert.Equal(t, 22, out.WorkedDays)
	assert.Equal(t, march2024.Days(), out.Total())
	assert.NoError(t, out.Validate(march2024))
}

func TestAggregateAttendance_InvalidEntries_ReportedNotFatal(t *testing.T) {
	// GIVEN: Out-of-range days and an unknown tag
	days := payroll.DayMap{
		0:  "folga",
		30: "folga", // February 2024 has 29 days
		10: "feriado",
		1:  "injust",
	}

	// WHEN: Aggregating February 2024
	out, invalid := payroll.AggregateAttendance(feb2024, days)

	// THEN: Each bad entry is reported, out-of-range first in day order
	require.Len(t, invalid, 3)
	assert.Equal(t, 0, invalid[0].Day)
	assert.Equal(t, 30, invalid[1].Day)
	assert.Equal(t, 10, invalid[2].Day)
	assert.Equal(t, "feriado", invalid[2].Tag)
	for _, e := range invalid {
		assert.True(t, errors.Is(e, payroll.ErrInvalidAttendance))
	}

	// AND: The rest of the month is unaffected; day 10 counts as worked
	assert.Equal(t, 1, out.UnjustifiedAbsences)
	assert.Equal(t, 28, out.WorkedDays)
	assert.Equal(t, 29, out.Total())
}

func TestParseDayType_Aliases(t *testing.T) {
	cases := map[string]payroll.DayType{
		"folga":   payroll.DayRest,
		" Folga ": payroll.DayRest,
		"servico": payroll.DayService,
		"just":    payroll.DayJustifiedAbsence,
		"INJUST":  payroll.DayUnjustifiedAbsence,
		"Férias":  payroll.DayVacation,
	}
	for tag, want := range cases {
		got, ok := payroll.ParseDayType(tag)
		assert.True(t, ok, "tag %q", tag)
		assert.Equal(t, want, got, "tag %q", tag)
	}

	_, ok := payroll.ParseDayType("holiday")
	assert.False(t, ok)
}

func TestAttendanceOutcome_Validate_RejectsOverfullMonth(t *testing.T) {
	out := payroll.AttendanceOutcome{WorkedDays: 25, RestDays: 5}
	assert.ErrorIs(t, out.Validate(feb2024), payroll.ErrInvalidAttendance)

	out = payroll.AttendanceOutcome{WorkedDays: -1}
	assert.ErrorIs(t, out.Validate(march2024), payroll.ErrInvalidAttendance)
}
