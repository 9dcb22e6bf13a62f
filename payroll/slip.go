/*
slip.go - Slip factory: attendance + compensation + tax -> salary slip

PURPOSE:
  Produces the durable SalarySlip for one (employee, period). This is the
  only code that writes derived amounts (gross, INSS, IRT, net).

FLOW:
  1. Validate period, employee record and overrides
  2. AggregateAttendance (bad day entries are reported, not fatal)
  3. AssembleCompensation
  4. TaxSchedule.Compute for the period's schedule
  5. Store.InsertSlip (compare-and-insert on the active key)
  6. Sink sync after commit

REPROCESSING:
  Process refuses a key that already has an active slip. Supersede is the
  explicit path: the old slip is marked superseded and a new revision is
  inserted in the same store transaction. Settled slips cannot be
  superseded.
*/
package payroll

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ProcessInput is everything the factory needs for one slip.
type ProcessInput struct {
	Employee  Employee  `json:"employee"`
	Period    Period    `json:"period"`
	Days      DayMap    `json:"days"`
	Overrides Overrides `json:"overrides"`
}

// ProcessResult is a stored slip plus the non-fatal findings.
type ProcessResult struct {
	Slip        SalarySlip                `json:"slip"`
	Superseded  *SalarySlip               `json:"superseded,omitempty"`
	InvalidDays []*InvalidAttendanceError `json:"-"`
	Warnings    []Warning                 `json:"warnings,omitempty"`
}

// Compute builds a slip without storing it. The slip has a fresh ID and
// revision 1.
func (e *Engine) Compute(in ProcessInput) (SalarySlip, []*InvalidAttendanceError, error) {
	if err := in.Period.Validate(); err != nil {
		return SalarySlip{}, nil, err
	}
	if missing := in.Employee.MissingFields(); len(missing) > 0 {
		return SalarySlip{}, nil, &IncompleteEmployeeError{EmployeeID: in.Employee.ID, Missing: missing}
	}
	if err := in.Overrides.Validate(); err != nil {
		return SalarySlip{}, nil, err
	}

	att, invalid := AggregateAttendance(in.Period, in.Days)
	comp := AssembleCompensation(in.Employee, att, in.Overrides, e.rules)
	schedule := e.schedules.For(in.Period)
	tax := schedule.Compute(comp.GrossTotal(), comp.Subsidies)

	slip := SalarySlip{
		ID:               SlipID(e.newID()),
		EmployeeID:       in.Employee.ID,
		EmployeeName:     in.Employee.Name,
		EmployeeRole:     in.Employee.Role,
		Period:           in.Period,
		Revision:         1,
		Status:           SlipActive,
		Compensation:     comp,
		Attendance:       att,
		GrossTotal:       tax.Gross,
		INSSContribution: tax.INSS,
		IRTTaxableBase:   tax.IRTTaxableBase,
		IRTExempt:        tax.IRTExempt,
		IRTContribution:  tax.IRT,
		EmployerINSS:     tax.EmployerINSS,
		NetTotal:         tax.Net,
		ScheduleVersion:  schedule.Version,
		ProcessedAt:      e.now(),
	}

	for _, bad := range invalid {
		slip.Warnings = append(slip.Warnings, Warning{Code: WarningInvalidAttendance, Message: bad.Error()})
	}
	if slip.HasNegativeNet() {
		slip.Warnings = append(slip.Warnings, Warning{
			Code:    WarningNegativeNet,
			Message: fmt.Sprintf("net salary %s is negative", slip.NetTotal.StringFixed(CentPlaces)),
		})
	}
	return slip, invalid, nil
}

// Process computes and stores the slip for a new (employee, period) key.
// Returns *DuplicateSlipError if the key already has an active slip.
func (e *Engine) Process(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	slip, invalid, err := e.Compute(in)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := e.store.InsertSlip(ctx, slip); err != nil {
		var dup *DuplicateSlipError
		if errors.As(err, &dup) {
			e.log.Info("slip already processed",
				zap.String("employee", string(dup.EmployeeID)),
				zap.Stringer("period", dup.Period),
				zap.String("existing", string(dup.ExistingSlipID)))
		}
		return ProcessResult{}, err
	}

	e.log.Info("slip processed",
		zap.String("slip", string(slip.ID)),
		zap.String("employee", string(slip.EmployeeID)),
		zap.Stringer("period", slip.Period),
		zap.String("net", slip.NetTotal.StringFixed(CentPlaces)))

	res := ProcessResult{Slip: slip, InvalidDays: invalid}
	res.Warnings = append(res.Warnings, slip.Warnings...)
	res.Warnings = append(res.Warnings, e.syncSlips(ctx, slip)...)
	return res, nil
}

// Supersede replaces the active slip for the key with a new revision.
// Returns ErrSlipNotFound if there is no active slip and
// *AlreadySettledError if the active slip was transferred.
func (e *Engine) Supersede(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	slip, invalid, err := e.Compute(in)
	if err != nil {
		return ProcessResult{}, err
	}

	var old SalarySlip
	err = e.store.WithTx(ctx, func(s Store) error {
		prev, err := s.ActiveSlip(ctx, in.Employee.ID, in.Period)
		if err != nil {
			return err
		}
		if prev.IsTransferred {
			return &AlreadySettledError{SlipID: prev.ID, OrderRef: prev.TransferOrderRef}
		}

		slip.Revision = prev.Revision + 1
		if err := s.MarkSuperseded(ctx, prev.ID, slip.ID); err != nil {
			return err
		}
		if err := s.InsertSlip(ctx, slip); err != nil {
			return err
		}

		prev.Status = SlipSuperseded
		prev.SupersededBy = slip.ID
		old = prev
		return nil
	})
	if err != nil {
		return ProcessResult{}, err
	}

	e.log.Info("slip superseded",
		zap.String("slip", string(slip.ID)),
		zap.String("previous", string(old.ID)),
		zap.Int("revision", slip.Revision),
		zap.String("employee", string(slip.EmployeeID)),
		zap.Stringer("period", slip.Period))

	res := ProcessResult{Slip: slip, Superseded: &old, InvalidDays: invalid}
	res.Warnings = append(res.Warnings, slip.Warnings...)
	res.Warnings = append(res.Warnings, e.syncSlips(ctx, old, slip)...)
	return res, nil
}
