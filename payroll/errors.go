/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error conditions the engine can report, in one place. Every condition
  is locally recoverable: none of them leave the slip collection or the
  transfer-order sequence in a partial state.

ERROR CATEGORIES:
  1. Input errors      - malformed attendance, periods, overrides, mutations
  2. Record errors     - incomplete employee records
  3. Uniqueness errors - duplicate slips, already-settled slips
  4. Batch errors      - empty batches, missing registers
  5. Lookup errors     - unknown slips, orders, employees

USAGE:
  Sentinels work with errors.Is, structured errors carry context and
  unwrap to their sentinel:

    var dup *payroll.DuplicateSlipError
    if errors.As(err, &dup) {
        log.Printf("slip %s already exists", dup.ExistingSlipID)
    }
    if errors.Is(err, payroll.ErrDuplicateSlip) { ... }
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIncompleteEmployeeRecord is returned when an employee lacks a field
	// required for payroll. Processing is refused until the record is completed.
	ErrIncompleteEmployeeRecord = errors.New("incomplete employee record")

	// ErrDuplicateSlip is returned when the (employee, period) key already has
	// an active slip. Recover with Supersede or by choosing another period.
	ErrDuplicateSlip = errors.New("salary slip already processed for period")

	// ErrAlreadySettled marks a slip that already belongs to a transfer order.
	ErrAlreadySettled = errors.New("salary slip already settled")

	// ErrEmptyBatch is returned when a transfer request has no eligible slips.
	ErrEmptyBatch = errors.New("no eligible slips for transfer")

	// ErrInvalidAttendance marks a day entry outside the vocabulary or range.
	ErrInvalidAttendance = errors.New("invalid attendance entry")

	ErrSlipNotFound     = errors.New("salary slip not found")
	ErrSlipSuperseded   = errors.New("salary slip superseded")
	ErrOrderNotFound    = errors.New("transfer order not found")
	ErrEmployeeNotFound = errors.New("employee not found")

	ErrInvalidPeriod    = errors.New("invalid payroll period")
	ErrInvalidOverride  = errors.New("invalid compensation override")
	ErrInvalidMutation  = errors.New("invalid employee mutation")
	ErrInvalidSchedule  = errors.New("invalid tax schedule")
	ErrRegisterRequired = errors.New("payment register is required")
	ErrRegisterNotFound = errors.New("payment register not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IncompleteEmployeeError lists the fields that block processing.
type IncompleteEmployeeError struct {
	EmployeeID EmployeeID
	Missing    []string
}

func (e *IncompleteEmployeeError) Error() string {
	return fmt.Sprintf("incomplete employee record %s: missing %s",
		e.EmployeeID, strings.Join(e.Missing, ", "))
}

func (e *IncompleteEmployeeError) Unwrap() error {
	return ErrIncompleteEmployeeRecord
}

// DuplicateSlipError identifies the slip already holding the period key.
type DuplicateSlipError struct {
	EmployeeID     EmployeeID
	Period         Period
	ExistingSlipID SlipID
}

func (e *DuplicateSlipError) Error() string {
	return fmt.Sprintf("salary slip already processed: employee %s, period %s (slip: %s)",
		e.EmployeeID, e.Period, e.ExistingSlipID)
}

func (e *DuplicateSlipError) Unwrap() error {
	return ErrDuplicateSlip
}

// AlreadySettledError names the order that already owns the slip.
type AlreadySettledError struct {
	SlipID   SlipID
	OrderRef string
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("salary slip %s already settled by order %s", e.SlipID, e.OrderRef)
}

func (e *AlreadySettledError) Unwrap() error {
	return ErrAlreadySettled
}

// InvalidAttendanceError rejects a single day entry. The rest of the period
// is still aggregated.
type InvalidAttendanceError struct {
	Day    int
	Tag    string
	Reason string
}

func (e *InvalidAttendanceError) Error() string {
	return fmt.Sprintf("invalid attendance for day %d (%q): %s", e.Day, e.Tag, e.Reason)
}

func (e *InvalidAttendanceError) Unwrap() error {
	return ErrInvalidAttendance
}

// MutationError explains why a typed employee mutation was refused.
type MutationError struct {
	Op     string
	Reason string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("invalid mutation %s: %s", e.Op, e.Reason)
}

func (e *MutationError) Unwrap() error {
	return ErrInvalidMutation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrIncompleteEmployeeRecord) ||
		errors.Is(err, ErrInvalidAttendance) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidOverride) ||
		errors.Is(err, ErrInvalidMutation) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrRegisterRequired) ||
		errors.Is(err, ErrEmptyBatch)
}

// IsConflict returns true if the error reports a uniqueness or state clash.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSlip) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrSlipSuperseded)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSlipNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRegisterNotFound)
}
