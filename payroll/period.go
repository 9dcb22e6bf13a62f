package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - One payroll month
// =============================================================================

// Period is the (month, year) a salary slip belongs to.
// Slips are unique per (EmployeeID, Period).
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewPeriod builds a validated period.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: time.Month(month)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod reads the "YYYY-MM" form produced by String.
func ParsePeriod(s string) (Period, error) {
	year, month, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Period{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, s)
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, s)
	}
	return NewPeriod(y, m)
}

// Validate checks month 1..12 and a plausible year.
func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Start returns the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Days returns the true calendar length of the month.
func (p Period) Days() int {
	return p.End().Day()
}

// Contains returns true if t falls within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(p.Start()) && !d.After(p.End())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before reports whether p is an earlier month than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Label renders the period the way payroll documents print it ("Março 2024").
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", MonthName(p.Month), p.Year)
}

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthName returns the Portuguese month name.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return m.String()
	}
	return monthNames[m-1]
}
