/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap access log (carries the request ID)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/employees/*      Employee directory and typed mutations
  /api/registers/*      Payment registers
  /api/attendance/*     Attendance aggregation preview
  /api/slips/*          Slip processing, supersede, receipts
  /api/transfers/*      Settlement batches and bank instructions
  /api/salary-map/*     Salary map and statutory exports
  /api/tax/*            Tax schedules and previews
  /api/scenarios/*      Demo datasets
  /api/admin/*          Sink resync

SECURITY NOTE:
  No authentication middleware. Deploy behind the company gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Access logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/mutations", h.MutateEmployee)
		})

		r.Route("/registers", func(r chi.Router) {
			r.Get("/", h.ListRegisters)
			r.Post("/", h.SaveRegister)
		})

		r.Post("/attendance/aggregate", h.AggregateAttendance)

		r.Route("/slips", func(r chi.Router) {
			r.Get("/", h.ListSlips)
			r.Post("/", h.ProcessSlip)
			r.Post("/supersede", h.SupersedeSlip)
			r.Get("/{id}", h.GetSlip)
			r.Get("/{id}/receipt.pdf", h.GetReceipt)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.ListTransfers)
			r.Post("/", h.CreateTransfer)
			r.Get("/{ref}", h.GetTransfer)
			r.Get("/{ref}/order.pdf", h.GetTransferPDF)
		})

		r.Route("/salary-map", func(r chi.Router) {
			r.Get("/", h.GetSalaryMap)
			r.Get("/inss.csv", h.ExportINSS)
			r.Get("/irt.xml", h.ExportIRT)
		})

		r.Route("/tax", func(r chi.Router) {
			r.Get("/schedule", h.GetTaxSchedule)
			r.Get("/schedules", h.ListTaxSchedules)
			r.Post("/preview", h.PreviewTax)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/admin/resync", h.Resync)
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
