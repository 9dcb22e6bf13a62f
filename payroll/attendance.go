package payroll

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// DAY TYPES - Fixed attendance vocabulary
// =============================================================================

// DayType classifies one calendar day of the attendance grid.
type DayType string

const (
	DayRest               DayType = "rest"
	DayService            DayType = "service"
	DayJustifiedAbsence   DayType = "justified_absence"
	DayUnjustifiedAbsence DayType = "unjustified_absence"
	DayVacation           DayType = "vacation"
)

// dayTypeAliases maps the grid codes used by the HR front office onto the
// vocabulary. Keys are lower case.
var dayTypeAliases = map[string]DayType{
	"rest":                DayRest,
	"folga":               DayRest,
	"service":             DayService,
	"servico":             DayService,
	"serviço":             DayService,
	"justified_absence":   DayJustifiedAbsence,
	"just":                DayJustifiedAbsence,
	"unjustified_absence": DayUnjustifiedAbsence,
	"injust":              DayUnjustifiedAbsence,
	"vacation":            DayVacation,
	"ferias":              DayVacation,
	"férias":              DayVacation,
}

// ParseDayType resolves a tag or one of its aliases.
func ParseDayType(tag string) (DayType, bool) {
	t, ok := dayTypeAliases[strings.ToLower(strings.TrimSpace(tag))]
	return t, ok
}

// DayMap maps a calendar day (1..daysInMonth) to a day-type tag.
// Untagged days are ordinary worked days.
type DayMap map[int]string

// =============================================================================
// ATTENDANCE OUTCOME
// =============================================================================

// AttendanceOutcome holds the period counts derived from a DayMap.
type AttendanceOutcome struct {
	RestDays            int `json:"rest_days"`
	WorkedDays          int `json:"worked_days"`
	JustifiedAbsences   int `json:"justified_absences"`
	UnjustifiedAbsences int `json:"unjustified_absences"`
	VacationDays        int `json:"vacation_days"`
}

// Total is the number of classified days.
func (o AttendanceOutcome) Total() int {
	return o.RestDays + o.WorkedDays + o.JustifiedAbsences + o.UnjustifiedAbsences + o.VacationDays
}

// Validate checks counts are non-negative and fit in the period.
func (o AttendanceOutcome) Validate(p Period) error {
	for _, c := range []int{o.RestDays, o.WorkedDays, o.JustifiedAbsences, o.UnjustifiedAbsences, o.VacationDays} {
		if c < 0 {
			return fmt.Errorf("%w: negative day count", ErrInvalidAttendance)
		}
	}
	if o.Total() > p.Days() {
		return fmt.Errorf("%w: %d classified days exceed %d days in %s",
			ErrInvalidAttendance, o.Total(), p.Days(), p)
	}
	return nil
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// AggregateAttendance classifies every day of the period exactly once.
//
// A malformed entry (day outside 1..daysInMonth, or a tag outside the
// vocabulary) is rejected on its own and reported; the day it names, if in
// range, is counted as an ordinary worked day. The rest of the period is
// unaffected.
func AggregateAttendance(p Period, days DayMap) (AttendanceOutcome, []*InvalidAttendanceError) {
	var out AttendanceOutcome
	var invalid []*InvalidAttendanceError

	n := p.Days()

	// Out-of-range entries first, in day order for stable reporting.
	keys := make([]int, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Ints(keys)
	for _, d := range keys {
		if d < 1 || d > n {
			invalid = append(invalid, &InvalidAttendanceError{
				Day:    d,
				Tag:    days[d],
				Reason: fmt.Sprintf("day outside 1..%d", n),
			})
		}
	}

	for d := 1; d <= n; d++ {
		tag, tagged := days[d]
		if !tagged || strings.TrimSpace(tag) == "" {
			out.WorkedDays++
			continue
		}
		dt, ok := ParseDayType(tag)
		if !ok {
			invalid = append(invalid, &InvalidAttendanceError{Day: d, Tag: tag, Reason: "unknown day type"})
			out.WorkedDays++
			continue
		}
		switch dt {
		case DayRest:
			out.RestDays++
		case DayService:
			out.WorkedDays++
		case DayJustifiedAbsence:
			out.JustifiedAbsences++
		case DayUnjustifiedAbsence:
			out.UnjustifiedAbsences++
		case DayVacation:
			out.VacationDays++
		}
	}

	return out, invalid
}
