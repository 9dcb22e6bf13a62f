/*
scenarios.go - Demo dataset loaders for testing and demonstrations

PURPOSE:
  Provides pre-built datasets that populate the employee directory and the
  payment registers with realistic data for demos. Each scenario saves
  employees and registers; some also process slips so the transfer and
  salary map screens have something to show.

AVAILABLE SCENARIOS:
  payroll-basics:    Four employees across the IRT brackets, one register
  absences:          An employee with unjustified absences in March 2024
  incomplete-record: An employee without a NIF (processing is refused)
  processed-month:   payroll-basics with March 2024 slips already processed

HOW SCENARIOS WORK:
  1. Save employees (upsert by ID)
  2. Save payment registers
  3. Optionally process slips through the engine

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "processed-month"}

NOTE:
  Scenarios never delete anything. Reloading a scenario overwrites its
  employees and registers; already-processed slips are left as they are.

SEE ALSO:
  - handlers.go: Handler
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imatec/payroll-engine/payroll"
)

// ScenarioDTO describes one demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a dataset.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "payroll-basics",
		Name:        "Payroll Basics",
		Description: "Four employees across the IRT brackets and one payment register",
	},
	{
		ID:          "absences",
		Name:        "Unjustified Absences",
		Description: "March 2024 with five unjustified absences deducted from base salary",
	},
	{
		ID:          "incomplete-record",
		Name:        "Incomplete Record",
		Description: "Employee without a NIF; slip processing is refused",
	},
	{
		ID:          "processed-month",
		Name:        "Processed Month",
		Description: "Payroll basics with March 2024 slips processed and ready to transfer",
	},
}

var demoPeriod = payroll.Period{Year: 2024, Month: time.March}

func demoEmployee(id, name, role, nif string, base int64) payroll.Employee {
	return payroll.Employee{
		ID:            payroll.EmployeeID(id),
		Name:          name,
		Role:          role,
		FiscalID:      nif,
		Province:      "Luanda",
		Municipality:  "Luanda",
		AdmissionDate: time.Date(2022, time.January, 10, 0, 0, 0, 0, time.UTC),
		BaseSalary:    decimal.NewFromInt(base),
	}
}

func basicsEmployees() []payroll.Employee {
	ana := demoEmployee("emp-ana", "Ana Domingos", "Contabilista", "004512399LA041", 150000)
	ana.Subsidies = ana.Subsidies.With(payroll.SubsidyTransport, decimal.NewFromInt(5000))
	return []payroll.Employee{
		ana,
		demoEmployee("emp-bruno", "Bruno Cassule", "Motorista", "005889102LA033", 70000),
		demoEmployee("emp-carla", "Carla Neto", "Técnica de RH", "003301877LA029", 100000),
		demoEmployee("emp-david", "David Tchissola", "Engenheiro", "006120045LA011", 450000),
	}
}

var demoRegister = payroll.CashRegister{
	ID:      "bfa-principal",
	Name:    "BFA Conta Principal",
	Balance: decimal.NewFromInt(2500000),
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a demo dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "payroll-basics":
		err = h.loadBasicsScenario(ctx)
	case "absences":
		err = h.loadAbsencesScenario(ctx)
	case "incomplete-record":
		err = h.loadIncompleteScenario(ctx)
	case "processed-month":
		err = h.loadProcessedMonthScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q not found", req.ScenarioID))
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

func (h *Handler) saveAll(ctx context.Context, employees []payroll.Employee, regs ...payroll.CashRegister) error {
	for _, emp := range employees {
		if err := h.Directory.SaveEmployee(ctx, emp); err != nil {
			return err
		}
	}
	for _, reg := range regs {
		if err := h.Directory.SaveRegister(ctx, reg); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadBasicsScenario(ctx context.Context) error {
	return h.saveAll(ctx, basicsEmployees(), demoRegister)
}

func (h *Handler) loadAbsencesScenario(ctx context.Context) error {
	emp := demoEmployee("emp-eva", "Eva Lukamba", "Rececionista", "007730215LA052", 100000)
	if err := h.saveAll(ctx, []payroll.Employee{emp}, demoRegister); err != nil {
		return err
	}
	days := payroll.DayMap{}
	for d := 4; d <= 8; d++ {
		days[d] = string(payroll.DayUnjustifiedAbsence)
	}
	return h.processDemo(ctx, emp, days)
}

func (h *Handler) loadIncompleteScenario(ctx context.Context) error {
	emp := demoEmployee("emp-filipe", "Filipe Mbala", "Estagiário", "", 60000)
	return h.saveAll(ctx, []payroll.Employee{emp})
}

func (h *Handler) loadProcessedMonthScenario(ctx context.Context) error {
	employees := basicsEmployees()
	if err := h.saveAll(ctx, employees, demoRegister); err != nil {
		return err
	}
	for _, emp := range employees {
		if err := h.processDemo(ctx, emp, nil); err != nil {
			return err
		}
	}
	return nil
}

// processDemo processes the demo period; an existing slip is kept.
func (h *Handler) processDemo(ctx context.Context, emp payroll.Employee, days payroll.DayMap) error {
	_, err := h.Engine.Process(ctx, payroll.ProcessInput{Employee: emp, Period: demoPeriod, Days: days})
	if errors.Is(err, payroll.ErrDuplicateSlip) {
		return nil
	}
	return err
}
