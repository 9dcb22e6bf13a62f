/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that are
  already a stable wire shape (SalarySlip, TransferOrder, SalaryMap) are
  returned as they are; the types here cover the places where the HTTP
  contract differs from the domain model:
  - dates as YYYY-MM-DD strings, periods as YYYY-MM
  - mutations as a tagged {op, ...} object instead of a Go interface
  - invalid attendance days as plain data instead of error values

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employee:
    EmployeeRequest, MutationRequest, MutationDTO

  Attendance:
    AggregateRequest, AggregateResponse, InvalidDayDTO

  Slips:
    SlipRequest, SlipResponse

  Tax:
    ScheduleResponse, TaxPreviewRequest

VALIDATION:
  Validation is done in handlers and the payroll package, not in DTOs.
  DTOs are pure data carriers; the to* helpers only translate shapes.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/types.go: Domain types returned directly
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imatec/payroll-engine/factory"
	"github.com/imatec/payroll-engine/payroll"
)

const dateLayout = "2006-01-02"

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeRequest creates or replaces an employee record.
type EmployeeRequest struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Role             string            `json:"role"`
	FiscalID         string            `json:"fiscal_id"`
	IDNumber         string            `json:"id_number,omitempty"`
	SocialSecurityNo string            `json:"social_security_no,omitempty"`
	Province         string            `json:"province,omitempty"`
	Municipality     string            `json:"municipality,omitempty"`
	AdmissionDate    string            `json:"admission_date"`
	TerminationDate  string            `json:"termination_date,omitempty"`
	BaseSalary       decimal.Decimal   `json:"base_salary"`
	Complement       decimal.Decimal   `json:"complement"`
	Allowances       decimal.Decimal   `json:"allowances"`
	Subsidies        payroll.Subsidies `json:"subsidies"`
}

func (req EmployeeRequest) toEmployee() (payroll.Employee, error) {
	emp := payroll.Employee{
		ID:               payroll.EmployeeID(strings.TrimSpace(req.ID)),
		Name:             strings.TrimSpace(req.Name),
		Role:             strings.TrimSpace(req.Role),
		FiscalID:         strings.TrimSpace(req.FiscalID),
		IDNumber:         req.IDNumber,
		SocialSecurityNo: req.SocialSecurityNo,
		Province:         req.Province,
		Municipality:     req.Municipality,
		BaseSalary:       payroll.Round(req.BaseSalary),
		Complement:       payroll.Round(req.Complement),
		Allowances:       payroll.Round(req.Allowances),
		Subsidies:        req.Subsidies.Rounded(),
	}
	if emp.ID == "" {
		return payroll.Employee{}, fmt.Errorf("id is required")
	}
	if req.AdmissionDate != "" {
		t, err := time.Parse(dateLayout, req.AdmissionDate)
		if err != nil {
			return payroll.Employee{}, fmt.Errorf("invalid admission_date format (use YYYY-MM-DD)")
		}
		emp.AdmissionDate = t
	}
	if req.TerminationDate != "" {
		t, err := time.Parse(dateLayout, req.TerminationDate)
		if err != nil {
			return payroll.Employee{}, fmt.Errorf("invalid termination_date format (use YYYY-MM-DD)")
		}
		emp.TerminationDate = &t
	}
	return emp, nil
}

// MutationRequest applies typed edits to one employee, all or nothing.
type MutationRequest struct {
	Mutations []MutationDTO `json:"mutations"`
}

// MutationDTO is the wire form of a payroll.Mutation.
//
//	{"op": "set_base_salary", "amount": "180000"}
//	{"op": "set_subsidy", "kind": "transport", "amount": "5000"}
//	{"op": "set_role", "value": "Técnico"}
type MutationDTO struct {
	Op     string          `json:"op"`
	Amount decimal.Decimal `json:"amount"`
	Kind   string          `json:"kind,omitempty"`
	Value  string          `json:"value,omitempty"`
}

func (m MutationDTO) toMutation() (payroll.Mutation, error) {
	switch m.Op {
	case "set_base_salary":
		return payroll.SetBaseSalary{Amount: m.Amount}, nil
	case "set_complement":
		return payroll.SetComplement{Amount: m.Amount}, nil
	case "set_allowances":
		return payroll.SetAllowances{Amount: m.Amount}, nil
	case "set_subsidy":
		kind, ok := payroll.ParseSubsidyKind(m.Kind)
		if !ok {
			return nil, &payroll.MutationError{Op: m.Op, Reason: fmt.Sprintf("unknown subsidy kind %q", m.Kind)}
		}
		return payroll.SetSubsidy{Kind: kind, Amount: m.Amount}, nil
	case "set_role":
		return payroll.SetRole{Role: m.Value}, nil
	case "set_fiscal_id":
		return payroll.SetFiscalID{FiscalID: m.Value}, nil
	}
	return nil, &payroll.MutationError{Op: m.Op, Reason: "unknown operation"}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AggregateRequest classifies a month of day tags without processing a slip.
type AggregateRequest struct {
	Period string         `json:"period"` // YYYY-MM
	Days   payroll.DayMap `json:"days"`
}

// InvalidDayDTO reports one rejected day entry.
type InvalidDayDTO struct {
	Day    int    `json:"day"`
	Tag    string `json:"tag"`
	Reason string `json:"reason"`
}

type AggregateResponse struct {
	Period      string                    `json:"period"`
	Outcome     payroll.AttendanceOutcome `json:"outcome"`
	InvalidDays []InvalidDayDTO           `json:"invalid_days,omitempty"`
}

func toInvalidDays(errs []*payroll.InvalidAttendanceError) []InvalidDayDTO {
	if len(errs) == 0 {
		return nil
	}
	out := make([]InvalidDayDTO, len(errs))
	for i, e := range errs {
		out[i] = InvalidDayDTO{Day: e.Day, Tag: e.Tag, Reason: e.Reason}
	}
	return out
}

// =============================================================================
// SLIPS
// =============================================================================

// SlipRequest processes (or supersedes) the slip of one employee and period.
// The employee snapshot is read from the directory at request time.
type SlipRequest struct {
	EmployeeID string            `json:"employee_id"`
	Period     string            `json:"period"` // YYYY-MM
	Days       payroll.DayMap    `json:"days"`
	Overrides  payroll.Overrides `json:"overrides"`
}

// SlipResponse is the processing outcome.
type SlipResponse struct {
	Slip        payroll.SalarySlip  `json:"slip"`
	Superseded  *payroll.SalarySlip `json:"superseded,omitempty"`
	InvalidDays []InvalidDayDTO     `json:"invalid_days,omitempty"`
	Warnings    []payroll.Warning   `json:"warnings,omitempty"`
}

func toSlipResponse(res payroll.ProcessResult) SlipResponse {
	return SlipResponse{
		Slip:        res.Slip,
		Superseded:  res.Superseded,
		InvalidDays: toInvalidDays(res.InvalidDays),
		Warnings:    res.Warnings,
	}
}

// =============================================================================
// TAX
// =============================================================================

// ScheduleResponse shows the schedule for a period and where its liability
// function jumps.
type ScheduleResponse struct {
	Period          string                  `json:"period"`
	Schedule        factory.ScheduleJSON    `json:"schedule"`
	Discontinuities []payroll.Discontinuity `json:"discontinuities"`
}

// TaxPreviewRequest runs the tax engine on a gross amount without storing
// anything.
type TaxPreviewRequest struct {
	Period    string            `json:"period"` // YYYY-MM, defaults to the current month
	Gross     decimal.Decimal   `json:"gross"`
	Subsidies payroll.Subsidies `json:"subsidies"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
