package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// ENGINE - Slip factory, settlement batcher and salary map over one Store
// =============================================================================

// Options configure an Engine. Zero values fall back to defaults.
type Options struct {
	// Schedules are selected per period by EffectiveFrom.
	// Empty means DefaultSchedule().
	Schedules ScheduleSet
	Rules     CompensationRules

	Logger    *zap.Logger
	Sink      Sink              // optional
	Registers RegisterDirectory // optional

	Now   func() time.Time
	NewID func() string
}

// Engine owns every write to slips and transfer orders.
type Engine struct {
	store     TxStore
	schedules ScheduleSet
	rules     CompensationRules
	log       *zap.Logger
	sink      Sink
	registers RegisterDirectory
	now       func() time.Time
	newID     func() string
}

// NewEngine validates the schedules and wires the collaborators.
func NewEngine(store TxStore, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("payroll engine requires a store")
	}
	schedules := opts.Schedules
	if len(schedules) == 0 {
		schedules = ScheduleSet{DefaultSchedule()}
	}
	if err := schedules.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:     store,
		schedules: schedules,
		rules:     opts.Rules,
		log:       opts.Logger,
		sink:      opts.Sink,
		registers: opts.Registers,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if e.rules.AbsenceDayBase <= 0 {
		e.rules = DefaultRules()
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// Schedule returns the tax schedule that applies to a period.
func (e *Engine) Schedule(p Period) TaxSchedule {
	return e.schedules.For(p)
}

// Schedules returns every configured schedule.
func (e *Engine) Schedules() ScheduleSet {
	out := make(ScheduleSet, len(e.schedules))
	copy(out, e.schedules)
	return out
}

// Rules returns the compensation rules in force.
func (e *Engine) Rules() CompensationRules {
	return e.rules
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) GetSlip(ctx context.Context, id SlipID) (SalarySlip, error) {
	return e.store.GetSlip(ctx, id)
}

func (e *Engine) ListSlips(ctx context.Context, f SlipFilter) ([]SalarySlip, error) {
	return e.store.ListSlips(ctx, f)
}

func (e *Engine) GetOrder(ctx context.Context, ref string) (TransferOrder, error) {
	return e.store.GetOrder(ctx, ref)
}

func (e *Engine) ListOrders(ctx context.Context) ([]TransferOrder, error) {
	return e.store.ListOrders(ctx)
}

// =============================================================================
// SINK
// =============================================================================

// syncSlips pushes committed slips downstream. Failures never undo the
// local commit; they come back as a warning.
func (e *Engine) syncSlips(ctx context.Context, slips ...SalarySlip) []Warning {
	if e.sink == nil || len(slips) == 0 {
		return nil
	}
	if err := e.sink.SaveSlips(ctx, slips...); err != nil {
		e.log.Warn("slip sync failed", zap.Int("slips", len(slips)), zap.Error(err))
		return []Warning{{Code: WarningSyncFailed, Message: err.Error()}}
	}
	return nil
}

func (e *Engine) syncOrder(ctx context.Context, order TransferOrder, slips []SalarySlip) []Warning {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.SaveOrder(ctx, order); err != nil {
		e.log.Warn("order sync failed", zap.String("order", order.Ref), zap.Error(err))
		return []Warning{{Code: WarningSyncFailed, Message: err.Error()}}
	}
	return e.syncSlips(ctx, slips...)
}

// Resync pushes every stored order and slip to the sink again. Sink writes
// are upserts, so repeating a resync is harmless. It repairs the downstream
// copy after sync_failed warnings.
func (e *Engine) Resync(ctx context.Context) (slips int, orders int, err error) {
	if e.sink == nil {
		return 0, 0, nil
	}
	all, err := e.store.ListSlips(ctx, SlipFilter{})
	if err != nil {
		return 0, 0, err
	}
	ords, err := e.store.ListOrders(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, o := range ords {
		if err := e.sink.SaveOrder(ctx, o); err != nil {
			return 0, orders, fmt.Errorf("failed to resync order %s: %w", o.Ref, err)
		}
		orders++
	}
	if len(all) > 0 {
		if err := e.sink.SaveSlips(ctx, all...); err != nil {
			return 0, orders, fmt.Errorf("failed to resync slips: %w", err)
		}
	}
	e.log.Debug("resync complete", zap.Int("slips", len(all)), zap.Int("orders", orders))
	return len(all), orders, nil
}
