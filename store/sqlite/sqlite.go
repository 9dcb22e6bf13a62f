/*
Package sqlite provides a SQLite-backed implementation of the payroll storage interfaces.

PURPOSE:
  Persists employees, payment registers, salary slips, transfer orders and
  tax schedules. The same Store is used two ways:
  - as the engine's payroll.TxStore (APP_STORE=sqlite)
  - as the payroll.Sink behind the in-memory store, and as the source
    the memory store is restored from at startup (APP_STORE=memory)

INTERFACES IMPLEMENTED:
  payroll.TxStore:           Slip and order persistence with transactions
  payroll.Sink:              Post-commit mirror of slips and orders
  payroll.EmployeeDirectory: Employee snapshots
  payroll.RegisterDirectory: Payment registers

KEY TABLES:
  employees:       Employee records (amounts as decimal TEXT)
  registers:       Payment registers
  slips:           Salary slips; the full slip as JSON plus indexed columns
  transfer_orders: Immutable settlement batches
  sequences:       Named counters (transfer order numbering)
  tax_schedules:   Schedule documents referenced by slips

INDEXES:
  - idx_unique_active_slip: at most one active slip per (employee, period).
    This is the database side of the compare-and-insert in InsertSlip.
  - idx_slips_period: salary map queries

CONCURRENCY:
  One open connection; SQLite allows a single writer. Inside WithTx every
  read and write goes through the transaction.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/imatec/payroll-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		fiscal_id TEXT NOT NULL DEFAULT '',
		id_number TEXT,
		social_security_no TEXT,
		province TEXT,
		municipality TEXT,
		admission_date TEXT,
		termination_date TEXT,
		base_salary TEXT NOT NULL DEFAULT '0',
		complement TEXT NOT NULL DEFAULT '0',
		allowances TEXT NOT NULL DEFAULT '0',
		subsidies_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS registers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Salary slips (never deleted; reprocessing supersedes)
	CREATE TABLE IF NOT EXISTS slips (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'active',
		superseded_by TEXT,
		gross_total TEXT NOT NULL,
		net_total TEXT NOT NULL,
		is_transferred INTEGER NOT NULL DEFAULT 0,
		transfer_order_ref TEXT,
		slip_json TEXT NOT NULL,
		processed_at TEXT NOT NULL
	);

	-- CRITICAL: one active slip per employee and period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_slip
		ON slips(employee_id, year, month)
		WHERE status = 'active';

	CREATE INDEX IF NOT EXISTS idx_slips_period
		ON slips(year, month);
	CREATE INDEX IF NOT EXISTS idx_slips_order
		ON slips(transfer_order_ref) WHERE transfer_order_ref IS NOT NULL;

	-- Transfer orders (immutable)
	CREATE TABLE IF NOT EXISTS transfer_orders (
		ref TEXT PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		date TEXT NOT NULL,
		register_id TEXT NOT NULL,
		total_transfers INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		lines_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tax_schedules (
		version TEXT PRIMARY KEY,
		effective_year INTEGER NOT NULL,
		effective_month INTEGER NOT NULL,
		document_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SLIP STORE (payroll.Store interface)
// =============================================================================

const orderSequence = "transfer_order"

func (s *Store) InsertSlip(ctx context.Context, slip payroll.SalarySlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSlip(ctx, s.db, slip)
}

func insertSlip(ctx context.Context, q querier, slip payroll.SalarySlip) error {
	slip.Status = payroll.SlipActive
	err := writeSlip(ctx, q, slip, false)
	if isActiveSlipConflict(err) {
		existing, gerr := activeSlip(ctx, q, slip.EmployeeID, slip.Period)
		if gerr != nil {
			return &payroll.DuplicateSlipError{EmployeeID: slip.EmployeeID, Period: slip.Period}
		}
		return &payroll.DuplicateSlipError{EmployeeID: slip.EmployeeID, Period: slip.Period, ExistingSlipID: existing.ID}
	}
	return err
}

// writeSlip inserts a slip, or upserts it when upsert is true.
func writeSlip(ctx context.Context, q querier, slip payroll.SalarySlip, upsert bool) error {
	slipJSON, err := json.Marshal(slip)
	if err != nil {
		return fmt.Errorf("failed to encode slip: %w", err)
	}

	query := `
		INSERT INTO slips
		(id, employee_id, year, month, revision, status, superseded_by, gross_total, net_total,
		 is_transferred, transfer_order_ref, slip_json, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if upsert {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			superseded_by = excluded.superseded_by,
			is_transferred = excluded.is_transferred,
			transfer_order_ref = excluded.transfer_order_ref,
			slip_json = excluded.slip_json
		`
	}

	_, err = q.ExecContext(ctx, query,
		string(slip.ID),
		string(slip.EmployeeID),
		slip.Period.Year,
		int(slip.Period.Month),
		slip.Revision,
		string(slip.Status),
		nullString(string(slip.SupersededBy)),
		slip.GrossTotal.String(),
		slip.NetTotal.String(),
		slip.IsTransferred,
		nullString(slip.TransferOrderRef),
		string(slipJSON),
		slip.ProcessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return err
		}
		return fmt.Errorf("failed to write slip: %w", err)
	}
	return nil
}

const slipColumns = `slip_json, status, superseded_by, is_transferred, transfer_order_ref`

func scanSlip(row interface{ Scan(...any) error }) (payroll.SalarySlip, error) {
	var slip payroll.SalarySlip
	var slipJSON, status string
	var supersededBy, orderRef sql.NullString
	var transferred bool

	if err := row.Scan(&slipJSON, &status, &supersededBy, &transferred, &orderRef); err != nil {
		return payroll.SalarySlip{}, err
	}
	if err := json.Unmarshal([]byte(slipJSON), &slip); err != nil {
		return payroll.SalarySlip{}, fmt.Errorf("failed to decode slip: %w", err)
	}
	// Columns hold the mutable state.
	slip.Status = payroll.SlipStatus(status)
	slip.SupersededBy = payroll.SlipID(supersededBy.String)
	slip.IsTransferred = transferred
	slip.TransferOrderRef = orderRef.String
	return slip, nil
}

func (s *Store) GetSlip(ctx context.Context, id payroll.SlipID) (payroll.SalarySlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSlip(ctx, s.db, id)
}

func getSlip(ctx context.Context, q querier, id payroll.SlipID) (payroll.SalarySlip, error) {
	row := q.QueryRowContext(ctx, "SELECT "+slipColumns+" FROM slips WHERE id = ?", string(id))
	slip, err := scanSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	return slip, err
}

func (s *Store) ActiveSlip(ctx context.Context, employeeID payroll.EmployeeID, period payroll.Period) (payroll.SalarySlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeSlip(ctx, s.db, employeeID, period)
}

func activeSlip(ctx context.Context, q querier, employeeID payroll.EmployeeID, period payroll.Period) (payroll.SalarySlip, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+slipColumns+" FROM slips WHERE employee_id = ? AND year = ? AND month = ? AND status = 'active'",
		string(employeeID), period.Year, int(period.Month),
	)
	slip, err := scanSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	return slip, err
}

func (s *Store) ListSlips(ctx context.Context, f payroll.SlipFilter) ([]payroll.SalarySlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSlips(ctx, s.db, f)
}

func listSlips(ctx context.Context, q querier, f payroll.SlipFilter) ([]payroll.SalarySlip, error) {
	var where []string
	var args []any
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(f.EmployeeID))
	}
	if f.Period != nil {
		where = append(where, "year = ? AND month = ?")
		args = append(args, f.Period.Year, int(f.Period.Month))
	}
	if f.ActiveOnly {
		where = append(where, "status = 'active'")
	}
	if f.Transferred != nil {
		where = append(where, "is_transferred = ?")
		args = append(args, *f.Transferred)
	}

	query := "SELECT " + slipColumns + " FROM slips"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY year, month, employee_id, revision"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slips: %w", err)
	}
	defer rows.Close()

	var slips []payroll.SalarySlip
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		slips = append(slips, slip)
	}
	return slips, rows.Err()
}

func (s *Store) MarkSuperseded(ctx context.Context, id, by payroll.SlipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markSuperseded(ctx, s.db, id, by)
}

func markSuperseded(ctx context.Context, q querier, id, by payroll.SlipID) error {
	slip, err := getSlip(ctx, q, id)
	if err != nil {
		return err
	}
	if !slip.IsActive() {
		return payroll.ErrSlipSuperseded
	}
	if slip.IsTransferred {
		return &payroll.AlreadySettledError{SlipID: id, OrderRef: slip.TransferOrderRef}
	}
	_, err = q.ExecContext(ctx,
		"UPDATE slips SET status = ?, superseded_by = ? WHERE id = ? AND status = 'active' AND is_transferred = 0",
		string(payroll.SlipSuperseded), string(by), string(id),
	)
	return err
}

func (s *Store) MarkTransferred(ctx context.Context, id payroll.SlipID, orderRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markTransferred(ctx, s.db, id, orderRef)
}

func markTransferred(ctx context.Context, q querier, id payroll.SlipID, orderRef string) error {
	// Conditional update: the row count decides, not a prior read.
	res, err := q.ExecContext(ctx,
		"UPDATE slips SET is_transferred = 1, transfer_order_ref = ? WHERE id = ? AND status = 'active' AND is_transferred = 0",
		orderRef, string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to mark slip transferred: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	slip, err := getSlip(ctx, q, id)
	if err != nil {
		return err
	}
	if !slip.IsActive() {
		return payroll.ErrSlipSuperseded
	}
	return &payroll.AlreadySettledError{SlipID: id, OrderRef: slip.TransferOrderRef}
}

func (s *Store) NextOrderSeq(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextSeq(ctx, s.db, orderSequence)
}

func nextSeq(ctx context.Context, q querier, name string) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	var v int64
	if err := q.QueryRowContext(ctx, "SELECT value FROM sequences WHERE name = ?", name).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) InsertOrder(ctx context.Context, order payroll.TransferOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeOrder(ctx, s.db, order, false)
}

func writeOrder(ctx context.Context, q querier, order payroll.TransferOrder, upsert bool) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode order lines: %w", err)
	}

	verb := "INSERT"
	if upsert {
		// Orders are immutable; a replayed mirror write is a no-op.
		verb = "INSERT OR IGNORE"
	}
	_, err = q.ExecContext(ctx, verb+` INTO transfer_orders
		(ref, seq, date, register_id, total_transfers, total_amount, lines_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.Ref,
		order.Seq,
		order.Date.UTC().Format(time.RFC3339Nano),
		order.RegisterID,
		order.TotalTransfers,
		order.TotalAmount.String(),
		string(linesJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write transfer order: %w", err)
	}
	return nil
}

const orderColumns = `ref, seq, date, register_id, total_transfers, total_amount, lines_json`

func scanOrder(row interface{ Scan(...any) error }) (payroll.TransferOrder, error) {
	var o payroll.TransferOrder
	var date, total, linesJSON string
	if err := row.Scan(&o.Ref, &o.Seq, &date, &o.RegisterID, &o.TotalTransfers, &total, &linesJSON); err != nil {
		return payroll.TransferOrder{}, err
	}
	o.Date, _ = time.Parse(time.RFC3339Nano, date)
	o.TotalAmount = parseDecimal(total)
	if err := json.Unmarshal([]byte(linesJSON), &o.Lines); err != nil {
		return payroll.TransferOrder{}, fmt.Errorf("failed to decode order lines: %w", err)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, ref string) (payroll.TransferOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOrder(ctx, s.db, ref)
}

func getOrder(ctx context.Context, q querier, ref string) (payroll.TransferOrder, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM transfer_orders WHERE ref = ?", ref))
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.TransferOrder{}, payroll.ErrOrderNotFound
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context) ([]payroll.TransferOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOrders(ctx, s.db)
}

func listOrders(ctx context.Context, q querier) ([]payroll.TransferOrder, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+orderColumns+" FROM transfer_orders ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer orders: %w", err)
	}
	defer rows.Close()

	var orders []payroll.TransferOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// =============================================================================
// TRANSACTIONS (payroll.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertSlip(ctx context.Context, slip payroll.SalarySlip) error {
	return insertSlip(ctx, ts.tx, slip)
}

func (ts *txStore) GetSlip(ctx context.Context, id payroll.SlipID) (payroll.SalarySlip, error) {
	return getSlip(ctx, ts.tx, id)
}

func (ts *txStore) ActiveSlip(ctx context.Context, employeeID payroll.EmployeeID, period payroll.Period) (payroll.SalarySlip, error) {
	return activeSlip(ctx, ts.tx, employeeID, period)
}

func (ts *txStore) ListSlips(ctx context.Context, f payroll.SlipFilter) ([]payroll.SalarySlip, error) {
	return listSlips(ctx, ts.tx, f)
}

func (ts *txStore) MarkSuperseded(ctx context.Context, id, by payroll.SlipID) error {
	return markSuperseded(ctx, ts.tx, id, by)
}

func (ts *txStore) MarkTransferred(ctx context.Context, id payroll.SlipID, orderRef string) error {
	return markTransferred(ctx, ts.tx, id, orderRef)
}

func (ts *txStore) NextOrderSeq(ctx context.Context) (int64, error) {
	return nextSeq(ctx, ts.tx, orderSequence)
}

func (ts *txStore) InsertOrder(ctx context.Context, order payroll.TransferOrder) error {
	return writeOrder(ctx, ts.tx, order, false)
}

func (ts *txStore) GetOrder(ctx context.Context, ref string) (payroll.TransferOrder, error) {
	return getOrder(ctx, ts.tx, ref)
}

func (ts *txStore) ListOrders(ctx context.Context) ([]payroll.TransferOrder, error) {
	return listOrders(ctx, ts.tx)
}

// =============================================================================
// SINK (payroll.Sink interface)
// =============================================================================

// SaveSlips upserts slips in the given order, in one transaction.
// Superseded revisions must come before their replacement.
func (s *Store) SaveSlips(ctx context.Context, slips ...payroll.SalarySlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, slip := range slips {
		if err := writeSlip(ctx, tx, slip, true); err != nil {
			return fmt.Errorf("failed to save slip %s: %w", slip.ID, err)
		}
	}
	return tx.Commit()
}

// SaveOrder mirrors an order and keeps the sequence ahead of it.
func (s *Store) SaveOrder(ctx context.Context, order payroll.TransferOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeOrder(ctx, tx, order, true); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)
	`, orderSequence, order.Seq)
	if err != nil {
		return fmt.Errorf("failed to advance sequence: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// EMPLOYEE DIRECTORY (payroll.EmployeeDirectory interface)
// =============================================================================

// SaveEmployee inserts or replaces an employee record.
func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subsJSON, err := json.Marshal(emp.Subsidies)
	if err != nil {
		return fmt.Errorf("failed to encode subsidies: %w", err)
	}
	var termination sql.NullString
	if emp.TerminationDate != nil {
		termination = nullString(emp.TerminationDate.Format(time.RFC3339))
	}
	var admission sql.NullString
	if !emp.AdmissionDate.IsZero() {
		admission = nullString(emp.AdmissionDate.Format(time.RFC3339))
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO employees
		(id, name, role, fiscal_id, id_number, social_security_no, province, municipality,
		 admission_date, termination_date, base_salary, complement, allowances, subsidies_json,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			fiscal_id = excluded.fiscal_id,
			id_number = excluded.id_number,
			social_security_no = excluded.social_security_no,
			province = excluded.province,
			municipality = excluded.municipality,
			admission_date = excluded.admission_date,
			termination_date = excluded.termination_date,
			base_salary = excluded.base_salary,
			complement = excluded.complement,
			allowances = excluded.allowances,
			subsidies_json = excluded.subsidies_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(emp.ID), emp.Name, emp.Role, emp.FiscalID,
		nullString(emp.IDNumber), nullString(emp.SocialSecurityNo),
		nullString(emp.Province), nullString(emp.Municipality),
		admission, termination,
		emp.BaseSalary.String(), emp.Complement.String(), emp.Allowances.String(),
		string(subsJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, role, fiscal_id, id_number, social_security_no, province, municipality,
	admission_date, termination_date, base_salary, complement, allowances, subsidies_json`

func scanEmployee(row interface{ Scan(...any) error }) (payroll.Employee, error) {
	var emp payroll.Employee
	var id string
	var idNumber, ssn, province, municipality, admission, termination sql.NullString
	var base, complement, allowances, subsJSON string

	err := row.Scan(&id, &emp.Name, &emp.Role, &emp.FiscalID, &idNumber, &ssn, &province, &municipality,
		&admission, &termination, &base, &complement, &allowances, &subsJSON)
	if err != nil {
		return payroll.Employee{}, err
	}

	emp.ID = payroll.EmployeeID(id)
	emp.IDNumber = idNumber.String
	emp.SocialSecurityNo = ssn.String
	emp.Province = province.String
	emp.Municipality = municipality.String
	if admission.Valid {
		emp.AdmissionDate, _ = time.Parse(time.RFC3339, admission.String)
	}
	if termination.Valid {
		t, err := time.Parse(time.RFC3339, termination.String)
		if err == nil {
			emp.TerminationDate = &t
		}
	}
	emp.BaseSalary = parseDecimal(base)
	emp.Complement = parseDecimal(complement)
	emp.Allowances = parseDecimal(allowances)
	if err := json.Unmarshal([]byte(subsJSON), &emp.Subsidies); err != nil {
		return payroll.Employee{}, fmt.Errorf("failed to decode subsidies: %w", err)
	}
	return emp, nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id payroll.EmployeeID) (payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, err := scanEmployee(s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.Employee{}, payroll.ErrEmployeeNotFound
	}
	return emp, err
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []payroll.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// REGISTER DIRECTORY (payroll.RegisterDirectory interface)
// =============================================================================

// SaveRegister inserts or replaces a payment register.
func (s *Store) SaveRegister(ctx context.Context, reg payroll.CashRegister) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registers (id, name, balance, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			balance = excluded.balance
	`, reg.ID, reg.Name, reg.Balance.String(), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetRegister retrieves a register by ID.
func (s *Store) GetRegister(ctx context.Context, id string) (payroll.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reg payroll.CashRegister
	var balance string
	err := s.db.QueryRowContext(ctx, "SELECT id, name, balance FROM registers WHERE id = ?", id).
		Scan(&reg.ID, &reg.Name, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.CashRegister{}, payroll.ErrRegisterNotFound
	}
	if err != nil {
		return payroll.CashRegister{}, err
	}
	reg.Balance = parseDecimal(balance)
	return reg, nil
}

// ListRegisters returns all registers by name.
func (s *Store) ListRegisters(ctx context.Context) ([]payroll.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, balance FROM registers ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []payroll.CashRegister
	for rows.Next() {
		var reg payroll.CashRegister
		var balance string
		if err := rows.Scan(&reg.ID, &reg.Name, &balance); err != nil {
			return nil, err
		}
		reg.Balance = parseDecimal(balance)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// =============================================================================
// TAX SCHEDULES
// =============================================================================

// SaveSchedule stores a schedule document. Versions are immutable: saving
// an existing version with a different document is an error.
func (s *Store) SaveSchedule(ctx context.Context, sch payroll.TaxSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(sch)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}

	var existing string
	err = s.db.QueryRowContext(ctx, "SELECT document_json FROM tax_schedules WHERE version = ?", sch.Version).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	case existing == string(doc):
		return nil
	default:
		return fmt.Errorf("%w: version %s already stored with different rates; publish the changed schedule under a new version", payroll.ErrInvalidSchedule, sch.Version)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tax_schedules (version, effective_year, effective_month, document_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sch.Version, sch.EffectiveFrom.Year, int(sch.EffectiveFrom.Month), string(doc), time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListSchedules returns stored schedules by effective period.
func (s *Store) ListSchedules(ctx context.Context) (payroll.ScheduleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT document_json FROM tax_schedules ORDER BY effective_year, effective_month")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var set payroll.ScheduleSet
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var sch payroll.TaxSchedule
		if err := json.Unmarshal([]byte(doc), &sch); err != nil {
			return nil, fmt.Errorf("failed to decode schedule: %w", err)
		}
		set = append(set, sch)
	}
	return set, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"slips", "transfer_orders", "sequences", "registers", "employees", "tax_schedules"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isActiveSlipConflict matches idx_unique_active_slip, not a slip ID clash.
func isActiveSlipConflict(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "slips.employee_id")
}
