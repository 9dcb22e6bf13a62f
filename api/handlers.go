/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the payroll package.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List all employees
    POST   /api/employees                 Create or replace an employee
    GET    /api/employees/{id}            Get employee details
    POST   /api/employees/{id}/mutations  Apply typed edits (all or nothing)

  Registers:
    GET    /api/registers                 List payment registers
    POST   /api/registers                 Create or replace a register

  Attendance:
    POST   /api/attendance/aggregate      Classify a month of day tags

  Slips:
    GET    /api/slips                     List (?employee_id, period, active, transferred)
    POST   /api/slips                     Process a slip
    POST   /api/slips/supersede           Replace the active slip
    GET    /api/slips/{id}                Get a slip
    GET    /api/slips/{id}/receipt.pdf    Salary receipt

  Transfers:
    GET    /api/transfers                 List transfer orders
    POST   /api/transfers                 Batch slips into a transfer order
    GET    /api/transfers/{ref}           Get an order
    GET    /api/transfers/{ref}/order.pdf Bank instruction

  Salary map:
    GET    /api/salary-map                Map for ?period (and ?employee_id)
    GET    /api/salary-map/inss.csv       INSS map download
    GET    /api/salary-map/irt.xml        AGT Modelo 2 download

  Tax:
    GET    /api/tax/schedule              Schedule for ?period and its cliffs
    GET    /api/tax/schedules             All configured schedules
    POST   /api/tax/preview               INSS/IRT/net for a gross amount

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Engine: slip factory, settlement batcher, salary map
  - Directory: employees and payment registers
  - Log: zap logger for 5xx responses and admin actions

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the payroll engine
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as ErrorResponse with a stable code:
  - 400: Invalid input, empty batch
  - 404: Unknown slip, order, employee, register
  - 409: Duplicate slip, already settled, superseded
  - 422: Incomplete employee record
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo dataset loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imatec/payroll-engine/export"
	"github.com/imatec/payroll-engine/factory"
	"github.com/imatec/payroll-engine/payroll"
)

// Directory is the employee and register data the API edits and reads.
// store/sqlite.Store implements it.
type Directory interface {
	payroll.EmployeeDirectory
	payroll.RegisterDirectory
	SaveEmployee(ctx context.Context, emp payroll.Employee) error
	SaveRegister(ctx context.Context, reg payroll.CashRegister) error
	ListRegisters(ctx context.Context) ([]payroll.CashRegister, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *payroll.Engine
	Directory Directory
	Company   export.Company
	Log       *zap.Logger

	schedules *factory.ScheduleFactory
	now       func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(engine *payroll.Engine, dir Directory, company export.Company, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Engine:    engine,
		Directory: dir,
		Company:   company,
		Log:       log,
		schedules: factory.NewScheduleFactory(),
		now:       time.Now,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list employees", err)
		return
	}
	if employees == nil {
		employees = []payroll.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// SaveEmployee creates or replaces an employee record. Incomplete records
// are accepted; processing a slip for them is refused later.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	emp, err := req.toEmployee()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Directory.SaveEmployee(r.Context(), emp); err != nil {
		h.writeDomainError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Directory.GetEmployee(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Employee not found", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// MutateEmployee applies typed mutations in order. Nothing is saved if any
// mutation is refused.
func (h *Handler) MutateEmployee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Mutations) == 0 {
		writeError(w, http.StatusBadRequest, "mutations is required", nil)
		return
	}

	muts := make([]payroll.Mutation, 0, len(req.Mutations))
	for _, m := range req.Mutations {
		mut, err := m.toMutation()
		if err != nil {
			h.writeDomainError(w, "Invalid mutation", err)
			return
		}
		muts = append(muts, mut)
	}

	emp, err := h.Directory.GetEmployee(ctx, payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Employee not found", err)
		return
	}
	updated, err := emp.Apply(muts...)
	if err != nil {
		h.writeDomainError(w, "Invalid mutation", err)
		return
	}
	if err := h.Directory.SaveEmployee(ctx, updated); err != nil {
		h.writeDomainError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// =============================================================================
// REGISTER HANDLERS
// =============================================================================

func (h *Handler) ListRegisters(w http.ResponseWriter, r *http.Request) {
	regs, err := h.Directory.ListRegisters(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list registers", err)
		return
	}
	if regs == nil {
		regs = []payroll.CashRegister{}
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *Handler) SaveRegister(w http.ResponseWriter, r *http.Request) {
	var reg payroll.CashRegister
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if reg.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	reg.Balance = payroll.Round(reg.Balance)
	if err := h.Directory.SaveRegister(r.Context(), reg); err != nil {
		h.writeDomainError(w, "Failed to save register", err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// AggregateAttendance previews the attendance outcome of a month.
func (h *Handler) AggregateAttendance(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := payroll.ParsePeriod(req.Period)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}
	outcome, invalid := payroll.AggregateAttendance(period, req.Days)
	writeJSON(w, http.StatusOK, AggregateResponse{
		Period:      period.String(),
		Outcome:     outcome,
		InvalidDays: toInvalidDays(invalid),
	})
}

// =============================================================================
// SLIP HANDLERS
// =============================================================================

// ListSlips returns slips filtered by query parameters.
func (h *Handler) ListSlips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := payroll.SlipFilter{
		EmployeeID: payroll.EmployeeID(q.Get("employee_id")),
		ActiveOnly: q.Get("active") == "true",
	}
	if s := q.Get("period"); s != "" {
		p, err := payroll.ParsePeriod(s)
		if err != nil {
			h.writeDomainError(w, "Invalid period", err)
			return
		}
		f.Period = &p
	}
	if s := q.Get("transferred"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid transferred flag", err)
			return
		}
		f.Transferred = &b
	}

	slips, err := h.Engine.ListSlips(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, "Failed to list slips", err)
		return
	}
	if slips == nil {
		slips = []payroll.SalarySlip{}
	}
	writeJSON(w, http.StatusOK, slips)
}

// ProcessSlip computes and stores the first slip of an employee for a period.
func (h *Handler) ProcessSlip(w http.ResponseWriter, r *http.Request) {
	in, ok := h.processInput(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Process(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, "Failed to process slip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlipResponse(res))
}

// SupersedeSlip replaces the active, untransferred slip of the period.
func (h *Handler) SupersedeSlip(w http.ResponseWriter, r *http.Request) {
	in, ok := h.processInput(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Supersede(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, "Failed to supersede slip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlipResponse(res))
}

// processInput decodes a SlipRequest and loads the employee snapshot. It
// writes the error response itself.
func (h *Handler) processInput(w http.ResponseWriter, r *http.Request) (payroll.ProcessInput, bool) {
	var req SlipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return payroll.ProcessInput{}, false
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return payroll.ProcessInput{}, false
	}
	period, err := payroll.ParsePeriod(req.Period)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return payroll.ProcessInput{}, false
	}
	emp, err := h.Directory.GetEmployee(r.Context(), payroll.EmployeeID(req.EmployeeID))
	if err != nil {
		h.writeDomainError(w, "Employee not found", err)
		return payroll.ProcessInput{}, false
	}
	return payroll.ProcessInput{
		Employee:  emp,
		Period:    period,
		Days:      req.Days,
		Overrides: req.Overrides,
	}, true
}

func (h *Handler) GetSlip(w http.ResponseWriter, r *http.Request) {
	slip, err := h.Engine.GetSlip(r.Context(), payroll.SlipID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Slip not found", err)
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

// GetReceipt renders the salary receipt PDF of a slip.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	slip, err := h.Engine.GetSlip(r.Context(), payroll.SlipID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Slip not found", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteReceipt(&buf, h.Company, slip); err != nil {
		h.writeDomainError(w, "Failed to render receipt", err)
		return
	}
	name := fmt.Sprintf("Recibo_%s_%s.pdf", slip.EmployeeID, slip.Period)
	writeFile(w, "application/pdf", name, buf.Bytes())
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Engine.ListOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list transfer orders", err)
		return
	}
	if orders == nil {
		orders = []payroll.TransferOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// CreateTransfer batches the requested slips into one transfer order.
// Ineligible slips are reported in skipped; an all-skipped request is a 400
// with the skip list in details.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req payroll.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Engine.Transfer(r.Context(), req)
	if err != nil {
		if errors.Is(err, payroll.ErrEmptyBatch) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "No eligible slips for transfer",
				Code:    errorCode(err),
				Details: res.Skipped,
			})
			return
		}
		h.writeDomainError(w, "Failed to create transfer order", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	order, err := h.Engine.GetOrder(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeDomainError(w, "Transfer order not found", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetTransferPDF renders the bank instruction of an order.
func (h *Handler) GetTransferPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.Engine.GetOrder(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeDomainError(w, "Transfer order not found", err)
		return
	}
	reg, err := h.Directory.GetRegister(ctx, order.RegisterID)
	if err != nil && !errors.Is(err, payroll.ErrRegisterNotFound) {
		h.writeDomainError(w, "Failed to load register", err)
		return
	}
	if err != nil {
		reg = payroll.CashRegister{ID: order.RegisterID}
	}
	var buf bytes.Buffer
	if err := export.WriteTransferOrder(&buf, h.Company, order, reg); err != nil {
		h.writeDomainError(w, "Failed to render transfer order", err)
		return
	}
	writeFile(w, "application/pdf", order.Ref+".pdf", buf.Bytes())
}

// =============================================================================
// SALARY MAP HANDLERS
// =============================================================================

// GetSalaryMap returns the salary map of ?period.
func (h *Handler) GetSalaryMap(w http.ResponseWriter, r *http.Request) {
	m, _, ok := h.salaryMap(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ExportINSS downloads the INSS map as CSV.
func (h *Handler) ExportINSS(w http.ResponseWriter, r *http.Request) {
	m, opts, ok := h.salaryMap(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteINSS(&buf, m, opts); err != nil {
		h.writeDomainError(w, "Failed to export INSS map", err)
		return
	}
	writeFile(w, "text/csv; charset=utf-8", export.INSSFileName(m.Period), buf.Bytes())
}

// ExportIRT downloads the AGT Modelo 2 declaration.
func (h *Handler) ExportIRT(w http.ResponseWriter, r *http.Request) {
	m, opts, ok := h.salaryMap(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteIRT(&buf, h.Company.Name, m, opts); err != nil {
		h.writeDomainError(w, "Failed to export IRT declaration", err)
		return
	}
	writeFile(w, "application/xml", export.IRTFileName(m.Period), buf.Bytes())
}

func (h *Handler) salaryMap(w http.ResponseWriter, r *http.Request) (payroll.SalaryMap, export.Options, bool) {
	q := r.URL.Query()
	period, err := payroll.ParsePeriod(q.Get("period"))
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return payroll.SalaryMap{}, export.Options{}, false
	}
	employees, err := h.Directory.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list employees", err)
		return payroll.SalaryMap{}, export.Options{}, false
	}
	m, err := h.Engine.SalaryMap(r.Context(), period, employees, payroll.EmployeeID(q.Get("employee_id")))
	if err != nil {
		h.writeDomainError(w, "Failed to build salary map", err)
		return payroll.SalaryMap{}, export.Options{}, false
	}
	opts := export.Options{IncludeProvisional: q.Get("include_provisional") == "true"}
	return m, opts, true
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

// GetTaxSchedule returns the schedule in force for ?period (default: this
// month) with its discontinuities.
func (h *Handler) GetTaxSchedule(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodOrCurrent(r.URL.Query().Get("period"))
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}
	sch := h.Engine.Schedule(period)
	writeJSON(w, http.StatusOK, ScheduleResponse{
		Period:          period.String(),
		Schedule:        h.schedules.ToJSON(sch),
		Discontinuities: sch.Discontinuities(),
	})
}

func (h *Handler) ListTaxSchedules(w http.ResponseWriter, r *http.Request) {
	set := h.Engine.Schedules()
	out := make([]factory.ScheduleJSON, len(set))
	for i, s := range set {
		out[i] = h.schedules.ToJSON(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// PreviewTax runs the tax engine on a gross amount.
func (h *Handler) PreviewTax(w http.ResponseWriter, r *http.Request) {
	var req TaxPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := h.periodOrCurrent(req.Period)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.Schedule(period).Compute(payroll.Round(req.Gross), req.Subsidies.Rounded()))
}

func (h *Handler) periodOrCurrent(s string) (payroll.Period, error) {
	if s == "" {
		now := h.now()
		return payroll.Period{Year: now.Year(), Month: now.Month()}, nil
	}
	return payroll.ParsePeriod(s)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Resync pushes all engine state to the sink again.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	slips, orders, err := h.Engine.Resync(r.Context())
	if err != nil {
		h.writeDomainError(w, "Resync failed", err)
		return
	}
	h.Log.Info("manual resync", zap.Int("slips", slips), zap.Int("orders", orders))
	writeJSON(w, http.StatusOK, map[string]int{"slips": slips, "orders": orders})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; the failure can only be logged.
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Debug("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeFile(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeDomainError maps payroll errors to a status and a stable code.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Code: errorCode(err), Details: err.Error()}

	var dup *payroll.DuplicateSlipError
	var settled *payroll.AlreadySettledError
	var incomplete *payroll.IncompleteEmployeeError
	switch {
	case errors.As(err, &dup):
		resp.Details = map[string]any{"message": err.Error(), "existing_slip_id": dup.ExistingSlipID}
	case errors.As(err, &settled):
		resp.Details = map[string]any{"message": err.Error(), "order_ref": settled.OrderRef}
	case errors.As(err, &incomplete):
		resp.Details = map[string]any{"message": err.Error(), "missing": incomplete.Missing}
	}

	if status >= http.StatusInternalServerError {
		h.Log.Error(message, zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, payroll.ErrIncompleteEmployeeRecord):
		return http.StatusUnprocessableEntity
	case payroll.IsNotFound(err):
		return http.StatusNotFound
	case payroll.IsConflict(err):
		return http.StatusConflict
	case payroll.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errorCodes = []struct {
	err  error
	code string
}{
	{payroll.ErrIncompleteEmployeeRecord, "incomplete_employee_record"},
	{payroll.ErrDuplicateSlip, "duplicate_slip"},
	{payroll.ErrAlreadySettled, "already_settled"},
	{payroll.ErrEmptyBatch, "empty_batch"},
	{payroll.ErrInvalidAttendance, "invalid_attendance"},
	{payroll.ErrSlipNotFound, "slip_not_found"},
	{payroll.ErrSlipSuperseded, "slip_superseded"},
	{payroll.ErrOrderNotFound, "order_not_found"},
	{payroll.ErrEmployeeNotFound, "employee_not_found"},
	{payroll.ErrInvalidPeriod, "invalid_period"},
	{payroll.ErrInvalidOverride, "invalid_override"},
	{payroll.ErrInvalidMutation, "invalid_mutation"},
	{payroll.ErrInvalidSchedule, "invalid_schedule"},
	{payroll.ErrRegisterRequired, "register_required"},
	{payroll.ErrRegisterNotFound, "register_not_found"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
