/*
scheduler.go - Periodic sink resync

PURPOSE:
  In memory mode the engine commits to the in-memory store and then mirrors
  to SQLite. A failed mirror write only produces a sync_failed warning, so
  SQLite can fall behind. This scheduler pushes the full engine state to the
  sink on a fixed interval until it catches up.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sink writes are upserts; repeating a resync is harmless
  - Failures are logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to resync (SYNC_INTERVAL, default: 5 minutes)
  - Enabled: Whether scheduler is active (off when the engine has no sink)

USAGE:
  scheduler := NewSyncScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Resync endpoint (manual resync)
  - payroll/engine.go: Engine.Resync
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imatec/payroll-engine/payroll"
)

// SyncScheduler periodically resyncs the engine to its sink.
type SyncScheduler struct {
	Engine        *payroll.Engine
	Log           *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(engine *payroll.Engine, log *zap.Logger) *SyncScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncScheduler{
		Engine:        engine,
		Log:           log,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Log.Info("sync scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Log.Info("sync scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight resync.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker = nil
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	s.wg.Wait()
	s.Log.Info("sync scheduler stopped")
}

func (s *SyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one resync and records its outcome.
func (s *SyncScheduler) RunNow(ctx context.Context) error {
	slips, orders, err := s.Engine.Resync(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.Log.Warn("scheduled resync failed", zap.Error(err))
		return err
	}
	s.Log.Debug("scheduled resync", zap.Int("slips", slips), zap.Int("orders", orders))
	return nil
}

// LastRun returns when the last resync finished and its error, if any.
func (s *SyncScheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
