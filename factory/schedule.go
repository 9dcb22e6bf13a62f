/*
Package factory provides JSON to Go tax schedule conversion.

PURPOSE:
  Converts versioned JSON schedule documents into payroll.TaxSchedule
  values. A new fiscal year's IRT table or a new INSS rate is shipped as a
  document, not as a code change.

JSON SCHEMA:
  {
    "version": "AO-IRT-2020",
    "effective_from": "2020-09",
    "inss": {"worker_rate": "0.03", "employer_rate": "0.08"},
    "irt": {
      "brackets": [
        {"over": "0",      "rate": "0",    "base": "0"},
        {"over": "70000",  "rate": "0.10", "base": "3000"},
        {"over": "100000", "rate": "0.13", "base": "6000"},
        {"over": "150000", "rate": "0.16", "base": "12500"},
        {"over": "200000", "rate": "0.18", "base": "31250"}
      ],
      "exempt_subsidies": []
    }
  }

  A file may hold one document or an array of documents; the engine picks
  the latest effective_from not after the payroll period.

USAGE:
  f := factory.NewScheduleFactory()
  schedules, err := f.LoadFile("./schedules.json")

SEE ALSO:
  - payroll/tax.go: TaxSchedule and the IRT computation
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/imatec/payroll-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a tax schedule.
type ScheduleJSON struct {
	Version       string   `json:"version"`
	EffectiveFrom string   `json:"effective_from"` // YYYY-MM
	INSS          INSSJSON `json:"inss"`
	IRT           IRTJSON  `json:"irt"`
}

// INSSJSON holds the social security rates.
type INSSJSON struct {
	WorkerRate   decimal.Decimal `json:"worker_rate"`
	EmployerRate decimal.Decimal `json:"employer_rate"`
}

// IRTJSON holds the bracket table and the exempt subsidy kinds.
type IRTJSON struct {
	Brackets        []BracketJSON `json:"brackets"`
	ExemptSubsidies []string      `json:"exempt_subsidies,omitempty"`
}

// BracketJSON is one row: applies above Over.
type BracketJSON struct {
	Over decimal.Decimal `json:"over"`
	Rate decimal.Decimal `json:"rate"`
	Base decimal.Decimal `json:"base"`
}

// DefaultScheduleJSON is the built-in schedule as a document.
const DefaultScheduleJSON = `{
  "version": "AO-IRT-2020",
  "effective_from": "2020-09",
  "inss": {"worker_rate": "0.03", "employer_rate": "0.08"},
  "irt": {
    "brackets": [
      {"over": "0", "rate": "0", "base": "0"},
      {"over": "70000", "rate": "0.10", "base": "3000"},
      {"over": "100000", "rate": "0.13", "base": "6000"},
      {"over": "150000", "rate": "0.16", "base": "12500"},
      {"over": "200000", "rate": "0.18", "base": "31250"}
    ]
  }
}`

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to payroll.TaxSchedule.
type ScheduleFactory struct{}

// NewScheduleFactory creates a new schedule factory.
func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a single JSON document.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (payroll.TaxSchedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return payroll.TaxSchedule{}, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// ParseSchedules accepts one document or an array of documents.
func (f *ScheduleFactory) ParseSchedules(data []byte) (payroll.ScheduleSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty schedule document", payroll.ErrInvalidSchedule)
	}

	var docs []ScheduleJSON
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
		}
	} else {
		var one ScheduleJSON
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
		}
		docs = append(docs, one)
	}

	set := make(payroll.ScheduleSet, 0, len(docs))
	for _, sj := range docs {
		s, err := f.FromJSON(sj)
		if err != nil {
			return nil, err
		}
		set = append(set, s)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadFile reads a schedule file from disk.
func (f *ScheduleFactory) LoadFile(path string) (payroll.ScheduleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	return f.ParseSchedules(data)
}

// FromJSON converts ScheduleJSON to a validated payroll.TaxSchedule.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (payroll.TaxSchedule, error) {
	from, err := parsePeriod(sj.EffectiveFrom)
	if err != nil {
		return payroll.TaxSchedule{}, err
	}

	s := payroll.TaxSchedule{
		Version:          sj.Version,
		EffectiveFrom:    from,
		INSSWorkerRate:   sj.INSS.WorkerRate,
		INSSEmployerRate: sj.INSS.EmployerRate,
	}
	for _, b := range sj.IRT.Brackets {
		s.Brackets = append(s.Brackets, payroll.Bracket{
			LowerBound: b.Over,
			Rate:       b.Rate,
			BaseAmount: b.Base,
		})
	}
	for _, k := range sj.IRT.ExemptSubsidies {
		kind, ok := payroll.ParseSubsidyKind(k)
		if !ok {
			return payroll.TaxSchedule{}, fmt.Errorf("%w: unknown exempt subsidy %q", payroll.ErrInvalidSchedule, k)
		}
		s.ExemptSubsidies = append(s.ExemptSubsidies, kind)
	}

	if err := s.Validate(); err != nil {
		return payroll.TaxSchedule{}, err
	}
	return s, nil
}

// ToJSON converts a schedule back to its document form.
func (f *ScheduleFactory) ToJSON(s payroll.TaxSchedule) ScheduleJSON {
	sj := ScheduleJSON{
		Version:       s.Version,
		EffectiveFrom: s.EffectiveFrom.String(),
		INSS: INSSJSON{
			WorkerRate:   s.INSSWorkerRate,
			EmployerRate: s.INSSEmployerRate,
		},
	}
	for _, b := range s.Brackets {
		sj.IRT.Brackets = append(sj.IRT.Brackets, BracketJSON{Over: b.LowerBound, Rate: b.Rate, Base: b.BaseAmount})
	}
	for _, k := range s.ExemptSubsidies {
		sj.IRT.ExemptSubsidies = append(sj.IRT.ExemptSubsidies, string(k))
	}
	return sj
}

// WithExemptions returns a copy of each schedule with the exempt subsidy
// list replaced. Used when the list comes from configuration.
func WithExemptions(set payroll.ScheduleSet, kinds []string) (payroll.ScheduleSet, error) {
	var exempt []payroll.SubsidyKind
	for _, k := range kinds {
		kind, ok := payroll.ParseSubsidyKind(strings.TrimSpace(k))
		if !ok {
			return nil, fmt.Errorf("%w: unknown exempt subsidy %q", payroll.ErrInvalidSchedule, k)
		}
		exempt = append(exempt, kind)
	}
	out := make(payroll.ScheduleSet, len(set))
	for i, s := range set {
		s.ExemptSubsidies = append([]payroll.SubsidyKind(nil), exempt...)
		out[i] = s
	}
	return out, nil
}

// ScheduleOverrides are configuration changes layered on top of schedule
// documents. Nil rates and a nil exempt list leave the document as is.
type ScheduleOverrides struct {
	INSSWorkerRate   *decimal.Decimal
	INSSEmployerRate *decimal.Decimal
	IRTExempt        []string
}

// ApplyOverrides returns a copy of the set with the overrides applied.
// Every schedule an override actually changes gets a derived version name
// such as "AO-IRT-2020+inss=0.04/0.08+exempt=food,transport", so a stored
// version is never redefined and slips record what they were computed with.
func ApplyOverrides(set payroll.ScheduleSet, ov ScheduleOverrides) (payroll.ScheduleSet, error) {
	out := append(payroll.ScheduleSet(nil), set...)
	if len(ov.IRTExempt) > 0 {
		exempted, err := WithExemptions(out, ov.IRTExempt)
		if err != nil {
			return nil, err
		}
		out = exempted
	}
	for i := range out {
		base := set[i]
		s := out[i]
		if ov.INSSWorkerRate != nil {
			s.INSSWorkerRate = *ov.INSSWorkerRate
		}
		if ov.INSSEmployerRate != nil {
			s.INSSEmployerRate = *ov.INSSEmployerRate
		}
		s.Version = overriddenVersion(base, s)
		out[i] = s
	}
	return out, out.Validate()
}

func overriddenVersion(base, s payroll.TaxSchedule) string {
	version := base.Version
	if !base.INSSWorkerRate.Equal(s.INSSWorkerRate) || !base.INSSEmployerRate.Equal(s.INSSEmployerRate) {
		version += fmt.Sprintf("+inss=%s/%s", s.INSSWorkerRate, s.INSSEmployerRate)
	}
	if !sameKinds(base.ExemptSubsidies, s.ExemptSubsidies) {
		kinds := make([]string, len(s.ExemptSubsidies))
		for i, k := range s.ExemptSubsidies {
			kinds[i] = string(k)
		}
		sort.Strings(kinds)
		version += "+exempt=" + strings.Join(kinds, ",")
	}
	return version
}

func sameKinds(a, b []payroll.SubsidyKind) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[payroll.SubsidyKind]int, len(a))
	for _, k := range a {
		seen[k]++
	}
	for _, k := range b {
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePeriod(s string) (payroll.Period, error) {
	p, err := payroll.ParsePeriod(s)
	if err != nil {
		return payroll.Period{}, fmt.Errorf("%w: effective_from: %v", payroll.ErrInvalidSchedule, err)
	}
	return p, nil
}
