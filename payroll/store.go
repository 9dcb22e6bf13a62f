/*
store.go - Persistence interfaces for slips and transfer orders

PURPOSE:
  Defines the boundary between the engine and its state. The Store is the
  single writer for the slip collection and the transfer-order sequence;
  every uniqueness and settlement rule is enforced inside it atomically.

KEY INTERFACES:
  Store:             Slip and order persistence
  TxStore:           Store plus atomic multi-step operations
  Sink:              Downstream persistence collaborator, written after commit
  RegisterDirectory: Advisory payment-register lookup
  EmployeeDirectory: Employee snapshots for the salary map

NO DELETES:
  Slips are never removed. Reprocessing marks the old slip superseded and
  inserts a new revision. Orders are immutable once inserted.

COMPARE-AND-INSERT:
  InsertSlip fails with *DuplicateSlipError when an active slip already
  holds the (employee, period) key. Two concurrent callers racing for the
  same key see exactly one success.

IMPLEMENTATIONS:
  - payroll/store/memory.go: In-memory, snapshot/rollback transactions
  - store/sqlite/sqlite.go:  SQLite, partial unique index on active slips
*/
package payroll

import "context"

// SlipFilter narrows ListSlips. Zero values match everything.
type SlipFilter struct {
	EmployeeID  EmployeeID
	Period      *Period
	ActiveOnly  bool
	Transferred *bool
}

// Match applies the filter to one slip.
func (f SlipFilter) Match(s SalarySlip) bool {
	if f.EmployeeID != "" && s.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Period != nil && s.Period != *f.Period {
		return false
	}
	if f.ActiveOnly && !s.IsActive() {
		return false
	}
	if f.Transferred != nil && s.IsTransferred != *f.Transferred {
		return false
	}
	return true
}

// =============================================================================
// STORE
// =============================================================================

// Store persists slips and orders.
type Store interface {
	// InsertSlip adds a new active slip. Returns *DuplicateSlipError if the
	// (employee, period) key already has an active slip.
	InsertSlip(ctx context.Context, slip SalarySlip) error

	GetSlip(ctx context.Context, id SlipID) (SalarySlip, error)

	// ActiveSlip returns the active slip for the key or ErrSlipNotFound.
	ActiveSlip(ctx context.Context, employeeID EmployeeID, period Period) (SalarySlip, error)

	// ListSlips returns matching slips ordered by period, employee, revision.
	ListSlips(ctx context.Context, filter SlipFilter) ([]SalarySlip, error)

	// MarkSuperseded flips an active, untransferred slip to superseded.
	MarkSuperseded(ctx context.Context, id SlipID, by SlipID) error

	// MarkTransferred settles a slip. Returns *AlreadySettledError if the
	// slip already belongs to an order.
	MarkTransferred(ctx context.Context, id SlipID, orderRef string) error

	// NextOrderSeq reserves the next order sequence number. Inside WithTx
	// the reservation is released on rollback.
	NextOrderSeq(ctx context.Context) (int64, error)

	InsertOrder(ctx context.Context, order TransferOrder) error
	GetOrder(ctx context.Context, ref string) (TransferOrder, error)

	// ListOrders returns orders by ascending sequence.
	ListOrders(ctx context.Context) ([]TransferOrder, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store is undone.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Sink receives committed slips and orders. A failing Sink never rolls back
// engine state; the failure is surfaced as a sync_failed warning.
type Sink interface {
	SaveSlips(ctx context.Context, slips ...SalarySlip) error
	SaveOrder(ctx context.Context, order TransferOrder) error
}

// RegisterDirectory resolves payment registers. Lookups return
// ErrRegisterNotFound for unknown IDs.
type RegisterDirectory interface {
	GetRegister(ctx context.Context, id string) (CashRegister, error)
}

// EmployeeDirectory serves employee snapshots. Lookups return
// ErrEmployeeNotFound for unknown IDs.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}
