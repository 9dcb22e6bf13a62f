/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration, apply flag overrides
  2. Build the zap logger
  3. Open the SQLite store
  4. Load tax schedules (file or built-in), apply config overrides, and
     record them in SQLite
  5. Build the engine store (memory restored from SQLite, or SQLite itself)
  6. Create the engine, API handler and router
  7. Start the sink resync scheduler (memory mode)
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (overrides APP_ADDR)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database
  -store   memory | sqlite (overrides APP_STORE)

ENVIRONMENT:
  See internal/config. A .env file in the working directory is loaded
  first; variables already set take precedence.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and run a last resync
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run directly against SQLite on a different port
  ./server -store=sqlite -addr=:3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/imatec/payroll-engine/api"
	"github.com/imatec/payroll-engine/export"
	"github.com/imatec/payroll-engine/factory"
	"github.com/imatec/payroll-engine/internal/config"
	"github.com/imatec/payroll-engine/internal/logging"
	"github.com/imatec/payroll-engine/payroll"
	"github.com/imatec/payroll-engine/payroll/store"
	"github.com/imatec/payroll-engine/store/sqlite"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()

	// Flags
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	storeMode := flag.String("store", cfg.StoreMode, "engine store: memory or sqlite")
	flag.Parse()
	cfg.Addr, cfg.DBPath, cfg.StoreMode = *addr, *dbPath, *storeMode

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Initialize SQLite
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	schedules, err := loadSchedules(cfg)
	if err != nil {
		return err
	}
	for _, sch := range schedules {
		if err := db.SaveSchedule(ctx, sch); err != nil {
			return fmt.Errorf("failed to record tax schedule %s: %w", sch.Version, err)
		}
	}

	opts := payroll.Options{
		Schedules: schedules,
		Rules:     payroll.CompensationRules{AbsenceDayBase: cfg.AbsenceDayBase},
		Logger:    logger.Named("payroll"),
		Registers: db,
	}

	var engineStore payroll.TxStore = db
	if cfg.StoreMode == config.StoreMemory {
		mem := store.NewTxMemory()
		slips, err := db.ListSlips(ctx, payroll.SlipFilter{})
		if err != nil {
			return fmt.Errorf("failed to load slips: %w", err)
		}
		orders, err := db.ListOrders(ctx)
		if err != nil {
			return fmt.Errorf("failed to load transfer orders: %w", err)
		}
		if err := mem.Restore(slips, orders); err != nil {
			return fmt.Errorf("failed to restore engine state: %w", err)
		}
		logger.Info("engine state restored", zap.Int("slips", len(slips)), zap.Int("orders", len(orders)))
		engineStore = mem
		opts.Sink = db
	}

	engine, err := payroll.NewEngine(engineStore, opts)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	company := export.Company{Name: cfg.CompanyName, FiscalID: cfg.CompanyFiscalID}
	handler := api.NewHandler(engine, db, company, logger.Named("api"))
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewSyncScheduler(engine, logger.Named("sync"))
	scheduler.CheckInterval = cfg.SyncInterval
	scheduler.Enabled = cfg.StoreMode == config.StoreMemory
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreMode),
			zap.String("db", cfg.DBPath),
			zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	scheduler.Stop()
	if scheduler.Enabled {
		if err := scheduler.RunNow(shutdownCtx); err != nil {
			logger.Warn("final resync failed", zap.Error(err))
		}
	}

	logger.Info("server stopped")
	return nil
}

// loadSchedules reads TAX_SCHEDULE_FILE (or the built-in schedule) and
// applies the configured exemptions and INSS rate overrides.
func loadSchedules(cfg config.Config) (payroll.ScheduleSet, error) {
	f := factory.NewScheduleFactory()

	set := payroll.ScheduleSet{payroll.DefaultSchedule()}
	if cfg.TaxScheduleFile != "" {
		loaded, err := f.LoadFile(cfg.TaxScheduleFile)
		if err != nil {
			return nil, err
		}
		set = loaded
	}

	return factory.ApplyOverrides(set, factory.ScheduleOverrides{
		INSSWorkerRate:   cfg.INSSWorkerRate,
		INSSEmployerRate: cfg.INSSEmployerRate,
		IRTExempt:        cfg.IRTExempt,
	})
}
