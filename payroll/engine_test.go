package payroll_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imatec/payroll-engine/payroll"
	"github.com/imatec/payroll-engine/payroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Note: dec, decPtr and assertAmount are defined in compensation_test.go

var fixedNow = time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts payroll.Options) (*payroll.Engine, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	var n atomic.Int64
	if opts.NewID == nil {
		opts.NewID = func() string { return fmt.Sprintf("slip-%03d", n.Add(1)) }
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	e, err := payroll.NewEngine(mem, opts)
	require.NoError(t, err)
	return e, mem
}

func employee(id string, base string) payroll.Employee {
	return payroll.Employee{
		ID:            payroll.EmployeeID(id),
		Name:          "Employee " + id,
		Role:          "Técnico",
		FiscalID:      "NIF-" + id,
		AdmissionDate: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		BaseSalary:    dec(base),
	}
}

func process(t *testing.T, e *payroll.Engine, emp payroll.Employee, days payroll.DayMap) payroll.SalarySlip {
	t.Helper()
	res, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024, Days: days})
	require.NoError(t, err)
	return res.Slip
}

// zeroTaxSchedule has no INSS and no IRT, so net equals gross.
func zeroTaxSchedule() payroll.TaxSchedule {
	return payroll.TaxSchedule{
		Version:       "ZERO",
		EffectiveFrom: payroll.Period{Year: 2000, Month: time.January},
		Brackets:      []payroll.Bracket{{LowerBound: dec("0"), Rate: dec("0"), BaseAmount: dec("0")}},
	}
}

type recordingSink struct {
	mu     sync.Mutex
	slips  []payroll.SalarySlip
	orders []payroll.TransferOrder
	err    error
}

func (s *recordingSink) SaveSlips(_ context.Context, slips ...payroll.SalarySlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.slips = append(s.slips, slips...)
	return nil
}

func (s *recordingSink) SaveOrder(_ context.Context, order payroll.TransferOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.orders = append(s.orders, order)
	return nil
}

func warningCodes(ws []payroll.Warning) []string {
	var codes []string
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// =============================================================================
// SLIP FACTORY TESTS
// =============================================================================

func TestProcess_StandardSalary(t *testing.T) {
	// GIVEN: Base 150,000, full attendance
	// WHEN: Processing March 2024
	// THEN: INSS 4,500, IRT 11,915, net 133,585

	e, _ := newTestEngine(t, payroll.Options{})

	slip := process(t, e, employee("a", "150000"), nil)

	assertAmount(t, "150000", slip.GrossTotal, "gross")
	assertAmount(t, "4500", slip.INSSContribution, "inss")
	assertAmount(t, "11915", slip.IRTContribution, "irt")
	assertAmount(t, "133585", slip.NetTotal, "net")
	assertAmount(t, "12000", slip.EmployerINSS, "employer inss")
	assert.Equal(t, 1, slip.Revision)
	assert.Equal(t, payroll.SlipActive, slip.Status)
	assert.Equal(t, payroll.DefaultScheduleVersion, slip.ScheduleVersion)
	assert.Equal(t, fixedNow, slip.ProcessedAt)
	assert.False(t, slip.IsTransferred)
	assert.Empty(t, slip.Warnings)
}

func TestProcess_BelowTaxThreshold(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})

	slip := process(t, e, employee("b", "70000"), nil)

	assertAmount(t, "2100", slip.INSSContribution, "inss")
	assertAmount(t, "0", slip.IRTContribution, "irt")
	assertAmount(t, "67900", slip.NetTotal, "net")
}

func TestProcess_UnjustifiedAbsences(t *testing.T) {
	// GIVEN: Base 100,000 and five unjustified absences
	days := payroll.DayMap{4: "injust", 5: "injust", 6: "injust", 7: "injust", 8: "injust"}
	e, _ := newTestEngine(t, payroll.Options{})

	// WHEN: Processing
	slip := process(t, e, employee("c", "100000"), days)

	// THEN: Deduction at base/30 per day flows through INSS and IRT
	assert.Equal(t, 5, slip.Attendance.UnjustifiedAbsences)
	assertAmount(t, "-16666.67", slip.Compensation.AbsenceDeduction, "deduction")
	assertAmount(t, "83333.33", slip.GrossTotal, "gross")
	assertAmount(t, "2500.00", slip.INSSContribution, "inss")
	assertAmount(t, "80833.33", slip.IRTTaxableBase, "taxable")
	assertAmount(t, "4083.33", slip.IRTContribution, "irt")
	assertAmount(t, "76750.00", slip.NetTotal, "net")
}

func TestProcess_SlipInvariants(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("inv", "187654.32")
	emp.Complement = dec("12000")
	emp.Subsidies = payroll.Subsidies{}.With(payroll.SubsidyFood, dec("8000"))

	res, err := e.Process(context.Background(), payroll.ProcessInput{
		Employee: emp,
		Period:   march2024,
		Days:     payroll.DayMap{3: "injust", 10: "férias"},
		Overrides: payroll.Overrides{
			Bonuses:   dec("5000"),
			Penalties: dec("1234.56"),
		},
	})
	require.NoError(t, err)
	s := res.Slip

	assert.True(t, s.GrossTotal.Equal(s.Compensation.GrossTotal()), "gross = components")
	assert.True(t, s.NetTotal.Equal(s.GrossTotal.Sub(s.INSSContribution).Sub(s.IRTContribution)), "net identity")
	assert.False(t, s.INSSContribution.IsNegative())
	assert.False(t, s.IRTContribution.IsNegative())
	assert.Equal(t, march2024.Days(), s.Attendance.Total())
}

func TestProcess_DuplicateKey_Rejected(t *testing.T) {
	// GIVEN: March already processed for the employee
	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("a", "150000")
	first := process(t, e, emp, nil)

	// WHEN: Processing the same period again
	_, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024})

	// THEN: DuplicateSlipError names the existing slip
	var dup *payroll.DuplicateSlipError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingSlipID)
	assert.ErrorIs(t, err, payroll.ErrDuplicateSlip)
	assert.True(t, payroll.IsConflict(err))

	// AND: Another period is fine
	_, err = e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: feb2024})
	assert.NoError(t, err)
}

func TestProcess_IncompleteEmployee_Refused(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("x", "100000")
	emp.FiscalID = ""
	emp.Role = ""

	_, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024})

	var inc *payroll.IncompleteEmployeeError
	require.ErrorAs(t, err, &inc)
	assert.ElementsMatch(t, []string{"fiscal_id", "role"}, inc.Missing)
	assert.True(t, payroll.IsClientError(err))

	slips, err := e.ListSlips(context.Background(), payroll.SlipFilter{})
	require.NoError(t, err)
	assert.Empty(t, slips, "nothing stored")
}

func TestProcess_InvalidPeriodAndOverrides(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("a", "100000")

	_, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: payroll.Period{Year: 2024, Month: 13}})
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)

	_, err = e.Process(context.Background(), payroll.ProcessInput{
		Employee:  emp,
		Period:    march2024,
		Overrides: payroll.Overrides{Bonuses: dec("-10")},
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidOverride)
}

func TestProcess_InvalidAttendance_WarnsAndContinues(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})

	res, err := e.Process(context.Background(), payroll.ProcessInput{
		Employee: employee("a", "150000"),
		Period:   march2024,
		Days:     payroll.DayMap{32: "folga", 5: "feriado"},
	})

	require.NoError(t, err)
	require.Len(t, res.InvalidDays, 2)
	assert.Equal(t, []string{payroll.WarningInvalidAttendance, payroll.WarningInvalidAttendance}, warningCodes(res.Warnings))
	assert.Equal(t, 31, res.Slip.Attendance.WorkedDays)
	assertAmount(t, "133585", res.Slip.NetTotal, "net unaffected")
}

func TestProcess_NegativeNet_Flagged(t *testing.T) {
	// GIVEN: Every day of March is an unjustified absence
	days := payroll.DayMap{}
	for d := 1; d <= 31; d++ {
		days[d] = "injust"
	}
	e, _ := newTestEngine(t, payroll.Options{})

	// WHEN: Processing
	res, err := e.Process(context.Background(), payroll.ProcessInput{Employee: employee("a", "100000"), Period: march2024, Days: days})

	// THEN: The slip is stored with a negative net and a warning; no tax is due
	require.NoError(t, err)
	assertAmount(t, "-3333.33", res.Slip.GrossTotal, "gross")
	assertAmount(t, "0", res.Slip.INSSContribution, "inss")
	assertAmount(t, "0", res.Slip.IRTContribution, "irt")
	assertAmount(t, "-3333.33", res.Slip.NetTotal, "net")
	assert.Contains(t, warningCodes(res.Warnings), payroll.WarningNegativeNet)
	assert.Contains(t, warningCodes(res.Slip.Warnings), payroll.WarningNegativeNet)
}

func TestProcess_ScheduleChosenByPeriod(t *testing.T) {
	next := payroll.DefaultSchedule()
	next.Version = "AO-IRT-2024"
	next.EffectiveFrom = march2024
	next.INSSWorkerRate = dec("0.04")
	e, _ := newTestEngine(t, payroll.Options{Schedules: payroll.ScheduleSet{payroll.DefaultSchedule(), next}})
	emp := employee("a", "100000")

	feb, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: feb2024})
	require.NoError(t, err)
	mar, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024})
	require.NoError(t, err)

	assert.Equal(t, payroll.DefaultScheduleVersion, feb.Slip.ScheduleVersion)
	assertAmount(t, "3000", feb.Slip.INSSContribution, "feb inss")
	assert.Equal(t, "AO-IRT-2024", mar.Slip.ScheduleVersion)
	assertAmount(t, "4000", mar.Slip.INSSContribution, "mar inss")
}

func TestProcess_ConcurrentSameKey_OneWins(t *testing.T) {
	// GIVEN: 20 concurrent requests for the same (employee, period)
	// WHEN: They race
	// THEN: Exactly one slip is stored; the rest get DuplicateSlipError

	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("a", "150000")

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Process(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, payroll.ErrDuplicateSlip):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(19), dup.Load())
	slips, err := e.ListSlips(context.Background(), payroll.SlipFilter{})
	require.NoError(t, err)
	assert.Len(t, slips, 1)
}

// =============================================================================
// SUPERSEDE TESTS
// =============================================================================

func TestSupersede_ReplacesActiveSlip(t *testing.T) {
	// GIVEN: A processed slip
	sink := &recordingSink{}
	e, _ := newTestEngine(t, payroll.Options{Sink: sink})
	emp := employee("a", "150000")
	first := process(t, e, emp, nil)

	// WHEN: Superseding with a bonus
	res, err := e.Supersede(context.Background(), payroll.ProcessInput{
		Employee:  emp,
		Period:    march2024,
		Overrides: payroll.Overrides{Bonuses: dec("10000")},
	})

	// THEN: A new revision is active and the old one points at it
	require.NoError(t, err)
	assert.Equal(t, 2, res.Slip.Revision)
	assert.NotEqual(t, first.ID, res.Slip.ID)
	require.NotNil(t, res.Superseded)
	assert.Equal(t, first.ID, res.Superseded.ID)
	assert.Equal(t, payroll.SlipSuperseded, res.Superseded.Status)
	assert.Equal(t, res.Slip.ID, res.Superseded.SupersededBy)
	assertAmount(t, "160000", res.Slip.GrossTotal, "new gross")

	ctx := context.Background()
	stored, err := e.GetSlip(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.SlipSuperseded, stored.Status)

	active, err := e.ListSlips(ctx, payroll.SlipFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, res.Slip.ID, active[0].ID)

	// AND: The sink saw the old revision before the new one
	require.Len(t, sink.slips, 3)
	assert.Equal(t, first.ID, sink.slips[1].ID)
	assert.Equal(t, payroll.SlipSuperseded, sink.slips[1].Status)
	assert.Equal(t, res.Slip.ID, sink.slips[2].ID)
}

func TestSupersede_NoActiveSlip(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})

	_, err := e.Supersede(context.Background(), payroll.ProcessInput{Employee: employee("a", "150000"), Period: march2024})

	assert.ErrorIs(t, err, payroll.ErrSlipNotFound)
}

func TestSupersede_TransferredSlip_Refused(t *testing.T) {
	// GIVEN: A slip already settled by a transfer order
	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("a", "150000")
	slip := process(t, e, emp, nil)
	tr, err := e.Transfer(context.Background(), payroll.TransferRequest{SlipIDs: []payroll.SlipID{slip.ID}, RegisterID: "bfa"})
	require.NoError(t, err)

	// WHEN: Superseding it
	_, err = e.Supersede(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024})

	// THEN: AlreadySettledError names the order, and nothing changed
	var settled *payroll.AlreadySettledError
	require.ErrorAs(t, err, &settled)
	assert.Equal(t, slip.ID, settled.SlipID)
	assert.Equal(t, tr.Order.Ref, settled.OrderRef)

	stored, err := e.GetSlip(context.Background(), slip.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.SlipActive, stored.Status)
}

// =============================================================================
// SETTLEMENT TESTS
// =============================================================================

func TestTransfer_TwoSlips_OneOrder(t *testing.T) {
	// GIVEN: Two slips with nets 50,000 and 75,000
	e, _ := newTestEngine(t, payroll.Options{Schedules: payroll.ScheduleSet{zeroTaxSchedule()}})
	s1 := process(t, e, employee("a", "50000"), nil)
	s2 := process(t, e, employee("b", "75000"), nil)

	// WHEN: Transferring both
	res, err := e.Transfer(context.Background(), payroll.TransferRequest{
		SlipIDs:    []payroll.SlipID{s1.ID, s2.ID},
		RegisterID: "bfa",
	})

	// THEN: One order with both lines and the summed total
	require.NoError(t, err)
	o := res.Order
	assert.Equal(t, "OT-000001", o.Ref)
	assert.Equal(t, int64(1), o.Seq)
	assert.Equal(t, 2, o.TotalTransfers)
	assertAmount(t, "125000", o.TotalAmount, "total")
	assert.Equal(t, []payroll.SlipID{s1.ID, s2.ID}, o.SlipIDs())
	assert.Equal(t, fixedNow, o.Date)
	assert.Empty(t, res.Skipped)

	// AND: Both slips are marked transferred with the order ref
	for _, id := range []payroll.SlipID{s1.ID, s2.ID} {
		s, err := e.GetSlip(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, s.IsTransferred)
		assert.Equal(t, o.Ref, s.TransferOrderRef)
	}
}

func TestTransfer_AlreadyTransferred_Skipped(t *testing.T) {
	// GIVEN: One slip already in OT-000001 and a fresh slip
	e, _ := newTestEngine(t, payroll.Options{})
	old := process(t, e, employee("a", "150000"), nil)
	_, err := e.Transfer(context.Background(), payroll.TransferRequest{SlipIDs: []payroll.SlipID{old.ID}, RegisterID: "bfa"})
	require.NoError(t, err)
	fresh := process(t, e, employee("b", "70000"), nil)

	// WHEN: Requesting both again
	res, err := e.Transfer(context.Background(), payroll.TransferRequest{
		SlipIDs:    []payroll.SlipID{old.ID, fresh.ID},
		RegisterID: "bfa",
	})

	// THEN: Only the fresh slip lands in OT-000002
	require.NoError(t, err)
	assert.Equal(t, "OT-000002", res.Order.Ref)
	assert.Equal(t, []payroll.SlipID{fresh.ID}, res.Order.SlipIDs())
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, payroll.SkippedSlip{SlipID: old.ID, Reason: payroll.SkipTransferred, OrderRef: "OT-000001"}, res.Skipped[0])
	assert.Contains(t, warningCodes(res.Warnings), payroll.WarningSkippedSlip)
}

func TestTransfer_SkipReasons(t *testing.T) {
	e, _ := newTestEngine(t, payroll.Options{})
	emp := employee("a", "150000")
	first := process(t, e, emp, nil)
	sup, err := e.Supersede(context.Background(), payroll.ProcessInput{Employee: emp, Period: march2024})
	require.NoError(t, err)

	res, err := e.Transfer(context.Background(), payroll.TransferRequest{
		SlipIDs:    []payroll.SlipID{first.ID, "ghost", sup.Slip.ID, sup.Slip.ID},
		RegisterID: "bfa",
	})

	require.NoError(t, err)
	assert.Equal(t, []payroll.SlipID{sup.Slip.ID}, res.Order.SlipIDs())
	assert.Equal(t, []payroll.SkippedSlip{
		{SlipID: first.ID, Reason: payroll.SkipSuperseded},
		{SlipID: "ghost", Reason: payroll.SkipNotFound},
		{SlipID: sup.Slip.ID, Reason: payroll.SkipRepeated},
	}, res.Skipped)
}

func TestTransfer_EmptyBatch_ConsumesNoSequence(t *testing.T) {
	// GIVEN: A request with nothing eligible
	e, _ := newTestEngine(t, payroll.Options{})

	// WHEN: Transferring
	res, err := e.Transfer(context.Background(), payroll.TransferRequest{SlipIDs: []payroll.SlipID{"ghost"}, RegisterID: "bfa"})

	// THEN: ErrEmptyBatch with the skip list, and no order exists
	assert.ErrorIs(t, err, payroll.ErrEmptyBatch)
	assert.Equal(t, []payroll.SkippedSlip{{SlipID: "ghost", Reason: payroll.SkipNotFound}}, res.Skipped)
	orders, err := e.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)

	// AND: The next real order is still OT-000001
	s := process(t, e, employee("a", "150000"), nil)
	ok, err := e.Transfer(context.Background(), payroll.TransferRequest{SlipIDs: []payroll.SlipID{s.ID}, RegisterID: "bfa"})
	require.NoError(t, err)
	assert.Equal(t, "OT-000001", ok.Order.Ref)
}

func TestTransfer_RegisterChecks(t *testing.T) {
	regs := store.NewRegisters(payroll.CashRegister{ID: "bfa", Name: "BFA", Balance: dec("100000")})
	e, _ := newTestEngine(t, payroll.Options{Registers: regs})
	s := process(t, e, employee("a", "150000"), nil)
	ctx := context.Background()

	_, err := e.Transfer(ctx, payroll.TransferRequest{SlipIDs: []payroll.SlipID{s.ID}})
	assert.ErrorIs(t, err, payroll.ErrRegisterRequired)

	_, err = e.Transfer(ctx, payroll.TransferRequest{SlipIDs: []payroll.SlipID{s.ID}, RegisterID: "bai"})
	assert.ErrorIs(t, err, payroll.ErrRegisterNotFound)

	// Balance 100,000 is below net 133,585: the order goes ahead with a warning.
	res, err := e.Transfer(ctx, payroll.TransferRequest{SlipIDs: []payroll.SlipID{s.ID}, RegisterID: "bfa"})
	require.NoError(t, err)
	assert.Equal(t, "OT-000001", res.Order.Ref)
	assert.Contains(t, warningCodes(res.Warnings), payroll.WarningInsufficientBalance)
}

func TestTransfer_ConcurrentRequests_SlipInOneOrder(t *testing.T) {
	// GIVEN: Two slips and 10 concurrent transfer requests for both
	// WHEN: They race
	// THEN: Exactly one order is created; every other request is empty

	e, _ := newTestEngine(t, payroll.Options{})
	s1 := process(t, e, employee("a", "150000"), nil)
	s2 := process(t, e, employee("b", "70000"), nil)

	var wg sync.WaitGroup
	var created, empty atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Transfer(context.Background(), payroll.TransferRequest{
				SlipIDs:    []payroll.SlipID{s1.ID, s2.ID},
				RegisterID: "bfa",
			})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, payroll.ErrEmptyBatch):
				empty.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(9), empty.Load())
	orders, err := e.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 2, orders[0].TotalTransfers)
}

// =============================================================================
// SINK TESTS
// =============================================================================

func TestSink_FailureBecomesWarning(t *testing.T) {
	// GIVEN: A sink that always fails
	sink := &recordingSink{err: errors.New("disk full")}
	e, _ := newTestEngine(t, payroll.Options{Sink: sink})

	// WHEN: Processing and transferring
	res, err := e.Process(context.Background(), payroll.ProcessInput{Employee: employee("a", "150000"), Period: march2024})

	// THEN: The engine commit stands and the caller gets sync_failed
	require.NoError(t, err)
	assert.Equal(t, []string{payroll.WarningSyncFailed}, warningCodes(res.Warnings))
	_, err = e.GetSlip(context.Background(), res.Slip.ID)
	assert.NoError(t, err)

	tr, err := e.Transfer(context.Background(), payroll.TransferRequest{SlipIDs: []payroll.SlipID{res.Slip.ID}, RegisterID: "bfa"})
	require.NoError(t, err)
	assert.Contains(t, warningCodes(tr.Warnings), payroll.WarningSyncFailed)
}

func TestResync_PushesEverything(t *testing.T) {
	// GIVEN: State built while the sink was failing
	sink := &recordingSink{err: errors.New("offline")}
	e, _ := newTestEngine(t, payroll.Options{Sink: sink})
	s := process(t, e, employee("a", "150000"), nil)
	_, err := e.Transfer(context.Background(), payroll.TransferRequest{SlipIDs: []payroll.SlipID{s.ID}, RegisterID: "bfa"})
	require.NoError(t, err)

	// WHEN: The sink recovers and a resync runs
	sink.err = nil
	slips, orders, err := e.Resync(context.Background())

	// THEN: Every slip and order reached the sink
	require.NoError(t, err)
	assert.Equal(t, 1, slips)
	assert.Equal(t, 1, orders)
	require.Len(t, sink.slips, 1)
	assert.True(t, sink.slips[0].IsTransferred)
	require.Len(t, sink.orders, 1)
	assert.Equal(t, "OT-000001", sink.orders[0].Ref)
}

func TestNewEngine_RejectsInvalidSchedules(t *testing.T) {
	bad := payroll.DefaultSchedule()
	bad.Version = ""

	_, err := payroll.NewEngine(store.NewTxMemory(), payroll.Options{Schedules: payroll.ScheduleSet{bad}})
	assert.ErrorIs(t, err, payroll.ErrInvalidSchedule)

	_, err = payroll.NewEngine(nil, payroll.Options{})
	assert.Error(t, err)
}
