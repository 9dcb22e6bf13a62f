package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imatec/payroll-engine/payroll"
	"github.com/imatec/payroll-engine/payroll/store"
)

var march = payroll.Period{Year: 2024, Month: time.March}

func slip(id, emp string) payroll.SalarySlip {
	return payroll.SalarySlip{
		ID:         payroll.SlipID(id),
		EmployeeID: payroll.EmployeeID(emp),
		Period:     march,
		Revision:   1,
		Status:     payroll.SlipActive,
		NetTotal:   decimal.NewFromInt(1000),
	}
}

func TestMemory_InsertSlip_OneActivePerKey(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.InsertSlip(ctx, slip("s1", "a")))
	err := m.InsertSlip(ctx, slip("s2", "a"))

	var dup *payroll.DuplicateSlipError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, payroll.SlipID("s1"), dup.ExistingSlipID)

	// A different employee has its own key.
	assert.NoError(t, m.InsertSlip(ctx, slip("s3", "b")))
}

func TestMemory_MarkSuperseded_FreesKey(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertSlip(ctx, slip("s1", "a")))

	require.NoError(t, m.MarkSuperseded(ctx, "s1", "s2"))
	require.NoError(t, m.InsertSlip(ctx, slip("s2", "a")))

	active, err := m.ActiveSlip(ctx, "a", march)
	require.NoError(t, err)
	assert.Equal(t, payroll.SlipID("s2"), active.ID)

	old, err := m.GetSlip(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, payroll.SlipSuperseded, old.Status)
	assert.Equal(t, payroll.SlipID("s2"), old.SupersededBy)

	assert.ErrorIs(t, m.MarkSuperseded(ctx, "s1", "s3"), payroll.ErrSlipSuperseded)
	assert.ErrorIs(t, m.MarkSuperseded(ctx, "nope", "s3"), payroll.ErrSlipNotFound)
}

func TestMemory_MarkTransferred_Once(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertSlip(ctx, slip("s1", "a")))

	require.NoError(t, m.MarkTransferred(ctx, "s1", "OT-000001"))
	err := m.MarkTransferred(ctx, "s1", "OT-000002")

	var settled *payroll.AlreadySettledError
	require.ErrorAs(t, err, &settled)
	assert.Equal(t, "OT-000001", settled.OrderRef)

	// Settled slips can no longer be superseded.
	assert.ErrorIs(t, m.MarkSuperseded(ctx, "s1", "s2"), payroll.ErrAlreadySettled)
}

func TestMemory_ListSlips_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	feb := payroll.Period{Year: 2024, Month: time.February}

	b := slip("s1", "b")
	a := slip("s2", "a")
	early := slip("s3", "c")
	early.Period = feb
	for _, s := range []payroll.SalarySlip{b, a, early} {
		require.NoError(t, m.InsertSlip(ctx, s))
	}
	require.NoError(t, m.MarkTransferred(ctx, "s1", "OT-000001"))

	all, err := m.ListSlips(ctx, payroll.SlipFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []payroll.SlipID{"s3", "s2", "s1"}, []payroll.SlipID{all[0].ID, all[1].ID, all[2].ID})

	yes := true
	transferred, err := m.ListSlips(ctx, payroll.SlipFilter{Transferred: &yes})
	require.NoError(t, err)
	require.Len(t, transferred, 1)
	assert.Equal(t, payroll.SlipID("s1"), transferred[0].ID)

	forMarch, err := m.ListSlips(ctx, payroll.SlipFilter{Period: &march, EmployeeID: "a"})
	require.NoError(t, err)
	require.Len(t, forMarch, 1)
	assert.Equal(t, payroll.SlipID("s2"), forMarch[0].ID)
}

func TestMemory_Restore_ResumesSequence(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.Restore(
		[]payroll.SalarySlip{slip("s1", "a")},
		[]payroll.TransferOrder{{Ref: "OT-000007", Seq: 7}},
	)
	require.NoError(t, err)

	seq, err := m.NextOrderSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)

	_, err = m.GetOrder(ctx, "OT-000007")
	assert.NoError(t, err)
	assert.ErrorIs(t, m.InsertSlip(ctx, slip("s2", "a")), payroll.ErrDuplicateSlip)
}

func TestMemory_Restore_RejectsTwoActiveSlips(t *testing.T) {
	m := store.NewMemory()

	err := m.Restore([]payroll.SalarySlip{slip("s1", "a"), slip("s2", "a")}, nil)

	assert.ErrorIs(t, err, payroll.ErrDuplicateSlip)
}

func TestTxMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that reserves a sequence, writes, then fails
	ctx := context.Background()
	tm := store.NewTxMemory()
	require.NoError(t, tm.InsertSlip(ctx, slip("s1", "a")))
	boom := errors.New("boom")

	// WHEN: Running it
	err := tm.WithTx(ctx, func(s payroll.Store) error {
		seq, err := s.NextOrderSeq(ctx)
		require.NoError(t, err)
		require.NoError(t, s.MarkTransferred(ctx, "s1", payroll.FormatOrderRef(seq)))
		require.NoError(t, s.InsertOrder(ctx, payroll.TransferOrder{Ref: payroll.FormatOrderRef(seq), Seq: seq}))
		require.NoError(t, s.InsertSlip(ctx, slip("s2", "b")))
		return boom
	})

	// THEN: Every write is undone, including the sequence reservation
	assert.ErrorIs(t, err, boom)

	s1, err := tm.GetSlip(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s1.IsTransferred)
	_, err = tm.GetSlip(ctx, "s2")
	assert.ErrorIs(t, err, payroll.ErrSlipNotFound)
	orders, err := tm.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	seq, err := tm.NextOrderSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestTxMemory_WithTx_Commits(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()

	err := tm.WithTx(ctx, func(s payroll.Store) error {
		if err := s.InsertSlip(ctx, slip("s1", "a")); err != nil {
			return err
		}
		return s.InsertOrder(ctx, payroll.TransferOrder{Ref: "OT-000001", Seq: 1})
	})

	require.NoError(t, err)
	_, err = tm.GetSlip(ctx, "s1")
	assert.NoError(t, err)
	_, err = tm.GetOrder(ctx, "OT-000001")
	assert.NoError(t, err)
}

func TestRegisters_Lookup(t *testing.T) {
	ctx := context.Background()
	r := store.NewRegisters(payroll.CashRegister{ID: "bfa", Name: "BFA", Balance: decimal.NewFromInt(10)})
	r.Put(payroll.CashRegister{ID: "bai", Name: "BAI"})

	got, err := r.GetRegister(ctx, "bfa")
	require.NoError(t, err)
	assert.Equal(t, "BFA", got.Name)
	_, err = r.GetRegister(ctx, "bai")
	assert.NoError(t, err)
	_, err = r.GetRegister(ctx, "bic")
	assert.ErrorIs(t, err, payroll.ErrRegisterNotFound)
}
