// Package store provides in-memory payroll.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/imatec/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	slips  map[payroll.SlipID]payroll.SalarySlip
	active map[activeKey]payroll.SlipID
	orders map[string]payroll.TransferOrder
	seq    int64
}

type activeKey struct {
	EmployeeID payroll.EmployeeID
	Period     payroll.Period
}

func keyOf(s payroll.SalarySlip) activeKey {
	return activeKey{EmployeeID: s.EmployeeID, Period: s.Period}
}

func NewMemory() *Memory {
	return &Memory{
		slips:  make(map[payroll.SlipID]payroll.SalarySlip),
		active: make(map[activeKey]payroll.SlipID),
		orders: make(map[string]payroll.TransferOrder),
	}
}

// Restore loads previously persisted slips and orders, e.g. from SQLite at
// startup. The order sequence resumes after the highest restored order.
func (m *Memory) Restore(slips []payroll.SalarySlip, orders []payroll.TransferOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range slips {
		if s.IsActive() {
			if id, ok := m.active[keyOf(s)]; ok && id != s.ID {
				return &payroll.DuplicateSlipError{EmployeeID: s.EmployeeID, Period: s.Period, ExistingSlipID: id}
			}
			m.active[keyOf(s)] = s.ID
		}
		m.slips[s.ID] = s
	}
	for _, o := range orders {
		m.orders[o.Ref] = o
		if o.Seq > m.seq {
			m.seq = o.Seq
		}
	}
	return nil
}

func (m *Memory) InsertSlip(_ context.Context, slip payroll.SalarySlip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSlipLocked(slip)
}

func (m *Memory) insertSlipLocked(slip payroll.SalarySlip) error {
	k := keyOf(slip)
	if id, ok := m.active[k]; ok {
		return &payroll.DuplicateSlipError{EmployeeID: slip.EmployeeID, Period: slip.Period, ExistingSlipID: id}
	}
	slip.Status = payroll.SlipActive
	m.slips[slip.ID] = slip
	m.active[k] = slip.ID
	return nil
}

func (m *Memory) GetSlip(_ context.Context, id payroll.SlipID) (payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSlipLocked(id)
}

func (m *Memory) getSlipLocked(id payroll.SlipID) (payroll.SalarySlip, error) {
	s, ok := m.slips[id]
	if !ok {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	return s, nil
}

func (m *Memory) ActiveSlip(_ context.Context, employeeID payroll.EmployeeID, period payroll.Period) (payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSlipLocked(employeeID, period)
}

func (m *Memory) activeSlipLocked(employeeID payroll.EmployeeID, period payroll.Period) (payroll.SalarySlip, error) {
	id, ok := m.active[activeKey{EmployeeID: employeeID, Period: period}]
	if !ok {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	return m.slips[id], nil
}

func (m *Memory) ListSlips(_ context.Context, f payroll.SlipFilter) ([]payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSlipsLocked(f), nil
}

func (m *Memory) listSlipsLocked(f payroll.SlipFilter) []payroll.SalarySlip {
	var out []payroll.SalarySlip
	for _, s := range m.slips {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	sortSlips(out)
	return out
}

func sortSlips(slips []payroll.SalarySlip) {
	sort.Slice(slips, func(i, j int) bool {
		a, b := slips[i], slips[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.Revision < b.Revision
	})
}

func (m *Memory) MarkSuperseded(_ context.Context, id, by payroll.SlipID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markSupersededLocked(id, by)
}

func (m *Memory) markSupersededLocked(id, by payroll.SlipID) error {
	s, ok := m.slips[id]
	if !ok {
		return payroll.ErrSlipNotFound
	}
	if !s.IsActive() {
		return payroll.ErrSlipSuperseded
	}
	if s.IsTransferred {
		return &payroll.AlreadySettledError{SlipID: id, OrderRef: s.TransferOrderRef}
	}
	s.Status = payroll.SlipSuperseded
	s.SupersededBy = by
	m.slips[id] = s
	delete(m.active, keyOf(s))
	return nil
}

func (m *Memory) MarkTransferred(_ context.Context, id payroll.SlipID, orderRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markTransferredLocked(id, orderRef)
}

func (m *Memory) markTransferredLocked(id payroll.SlipID, orderRef string) error {
	s, ok := m.slips[id]
	if !ok {
		return payroll.ErrSlipNotFound
	}
	if !s.IsActive() {
		return payroll.ErrSlipSuperseded
	}
	if s.IsTransferred {
		return &payroll.AlreadySettledError{SlipID: id, OrderRef: s.TransferOrderRef}
	}
	s.IsTransferred = true
	s.TransferOrderRef = orderRef
	m.slips[id] = s
	return nil
}

func (m *Memory) NextOrderSeq(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *Memory) InsertOrder(_ context.Context, order payroll.TransferOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOrderLocked(order)
}

func (m *Memory) insertOrderLocked(order payroll.TransferOrder) error {
	if _, ok := m.orders[order.Ref]; ok {
		return fmt.Errorf("transfer order %s already exists", order.Ref)
	}
	m.orders[order.Ref] = order
	return nil
}

func (m *Memory) GetOrder(_ context.Context, ref string) (payroll.TransferOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[ref]
	if !ok {
		return payroll.TransferOrder{}, payroll.ErrOrderNotFound
	}
	return o, nil
}

func (m *Memory) ListOrders(_ context.Context) ([]payroll.TransferOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOrdersLocked(), nil
}

func (m *Memory) listOrdersLocked() []payroll.TransferOrder {
	out := make([]payroll.TransferOrder, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serial.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	slips  map[payroll.SlipID]payroll.SalarySlip
	active map[activeKey]payroll.SlipID
	orders map[string]payroll.TransferOrder
	seq    int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		slips:  make(map[payroll.SlipID]payroll.SalarySlip, len(tm.slips)),
		active: make(map[activeKey]payroll.SlipID, len(tm.active)),
		orders: make(map[string]payroll.TransferOrder, len(tm.orders)),
		seq:    tm.seq,
	}
	for k, v := range tm.slips {
		s.slips[k] = v
	}
	for k, v := range tm.active {
		s.active[k] = v
	}
	for k, v := range tm.orders {
		s.orders[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.slips = s.slips
	tm.active = s.active
	tm.orders = s.orders
	tm.seq = s.seq
}

// txMemoryView runs against the parent's maps with the lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) InsertSlip(_ context.Context, slip payroll.SalarySlip) error {
	return tv.parent.insertSlipLocked(slip)
}

func (tv *txMemoryView) GetSlip(_ context.Context, id payroll.SlipID) (payroll.SalarySlip, error) {
	return tv.parent.getSlipLocked(id)
}

func (tv *txMemoryView) ActiveSlip(_ context.Context, employeeID payroll.EmployeeID, period payroll.Period) (payroll.SalarySlip, error) {
	return tv.parent.activeSlipLocked(employeeID, period)
}

func (tv *txMemoryView) ListSlips(_ context.Context, f payroll.SlipFilter) ([]payroll.SalarySlip, error) {
	return tv.parent.listSlipsLocked(f), nil
}

func (tv *txMemoryView) MarkSuperseded(_ context.Context, id, by payroll.SlipID) error {
	return tv.parent.markSupersededLocked(id, by)
}

func (tv *txMemoryView) MarkTransferred(_ context.Context, id payroll.SlipID, orderRef string) error {
	return tv.parent.markTransferredLocked(id, orderRef)
}

func (tv *txMemoryView) NextOrderSeq(_ context.Context) (int64, error) {
	tv.parent.seq++
	return tv.parent.seq, nil
}

func (tv *txMemoryView) InsertOrder(_ context.Context, order payroll.TransferOrder) error {
	return tv.parent.insertOrderLocked(order)
}

func (tv *txMemoryView) GetOrder(_ context.Context, ref string) (payroll.TransferOrder, error) {
	o, ok := tv.parent.orders[ref]
	if !ok {
		return payroll.TransferOrder{}, payroll.ErrOrderNotFound
	}
	return o, nil
}

func (tv *txMemoryView) ListOrders(_ context.Context) ([]payroll.TransferOrder, error) {
	return tv.parent.listOrdersLocked(), nil
}

// =============================================================================
// REGISTER DIRECTORY
// =============================================================================

// Registers is an in-memory payroll.RegisterDirectory.
type Registers struct {
	mu        sync.RWMutex
	registers map[string]payroll.CashRegister
}

func NewRegisters(regs ...payroll.CashRegister) *Registers {
	r := &Registers{registers: make(map[string]payroll.CashRegister)}
	for _, reg := range regs {
		r.registers[reg.ID] = reg
	}
	return r
}

func (r *Registers) Put(reg payroll.CashRegister) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registers[reg.ID] = reg
}

func (r *Registers) GetRegister(_ context.Context, id string) (payroll.CashRegister, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registers[id]
	if !ok {
		return payroll.CashRegister{}, payroll.ErrRegisterNotFound
	}
	return reg, nil
}
