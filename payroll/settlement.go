package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// SETTLEMENT BATCHER - Slips -> transfer order
// =============================================================================

// Skip reasons reported for slips left out of a batch.
const (
	SkipNotFound    = "not_found"
	SkipSuperseded  = "superseded"
	SkipTransferred = "already_transferred"
	SkipRepeated    = "repeated_in_request"
)

// OrderRefFormat renders the sequence number into the order reference.
const OrderRefFormat = "OT-%06d"

// FormatOrderRef returns the reference for a sequence number.
func FormatOrderRef(seq int64) string {
	return fmt.Sprintf(OrderRefFormat, seq)
}

// TransferRequest selects slips to settle against a register.
type TransferRequest struct {
	SlipIDs    []SlipID `json:"slip_ids"`
	RegisterID string   `json:"register_id"`
}

// SkippedSlip is a requested slip that was not settled.
type SkippedSlip struct {
	SlipID   SlipID `json:"slip_id"`
	Reason   string `json:"reason"`
	OrderRef string `json:"order_ref,omitempty"`
}

// TransferResult is the created order and everything left out of it.
type TransferResult struct {
	Order    TransferOrder `json:"order"`
	Skipped  []SkippedSlip `json:"skipped,omitempty"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// Transfer settles the eligible slips of the request in one new order.
//
// Unknown, superseded, already-transferred and repeated slip IDs are
// skipped and reported; the batch goes ahead with the rest. With nothing
// eligible it returns ErrEmptyBatch and no sequence number is consumed.
// Eligibility is checked and the slips are flipped inside one store
// transaction, so a slip can never land in two orders.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.RegisterID == "" {
		return TransferResult{}, ErrRegisterRequired
	}
	var register *CashRegister
	if e.registers != nil {
		reg, err := e.registers.GetRegister(ctx, req.RegisterID)
		if err != nil {
			return TransferResult{}, err
		}
		register = &reg
	}

	var (
		order   TransferOrder
		skipped []SkippedSlip
		settled []SalarySlip
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		// Reset on every attempt so a rolled-back run leaves nothing behind.
		skipped, settled = nil, nil
		seen := make(map[SlipID]bool, len(req.SlipIDs))
		var eligible []SalarySlip

		for _, id := range req.SlipIDs {
			if seen[id] {
				skipped = append(skipped, SkippedSlip{SlipID: id, Reason: SkipRepeated})
				continue
			}
			seen[id] = true

			slip, err := s.GetSlip(ctx, id)
			switch {
			case IsNotFound(err):
				skipped = append(skipped, SkippedSlip{SlipID: id, Reason: SkipNotFound})
				continue
			case err != nil:
				return err
			case !slip.IsActive():
				skipped = append(skipped, SkippedSlip{SlipID: id, Reason: SkipSuperseded})
				continue
			case slip.IsTransferred:
				skipped = append(skipped, SkippedSlip{SlipID: id, Reason: SkipTransferred, OrderRef: slip.TransferOrderRef})
				continue
			}
			eligible = append(eligible, slip)
		}

		if len(eligible) == 0 {
			return ErrEmptyBatch
		}

		seq, err := s.NextOrderSeq(ctx)
		if err != nil {
			return err
		}
		order = TransferOrder{
			Ref:        FormatOrderRef(seq),
			Seq:        seq,
			Date:       e.now(),
			RegisterID: req.RegisterID,
		}
		order.TotalAmount = decimal.Zero
		for _, slip := range eligible {
			if err := s.MarkTransferred(ctx, slip.ID, order.Ref); err != nil {
				return err
			}
			order.Lines = append(order.Lines, TransferLine{
				SlipID:       slip.ID,
				EmployeeID:   slip.EmployeeID,
				EmployeeName: slip.EmployeeName,
				Period:       slip.Period,
				Amount:       slip.NetTotal,
			})
			order.TotalAmount = order.TotalAmount.Add(slip.NetTotal)

			slip.IsTransferred = true
			slip.TransferOrderRef = order.Ref
			settled = append(settled, slip)
		}
		order.TotalTransfers = len(order.Lines)
		return s.InsertOrder(ctx, order)
	})

	for _, sk := range skipped {
		e.log.Warn("slip skipped from transfer",
			zap.String("slip", string(sk.SlipID)),
			zap.String("reason", sk.Reason))
	}
	if err != nil {
		return TransferResult{Skipped: skipped}, err
	}

	e.log.Info("transfer order created",
		zap.String("order", order.Ref),
		zap.String("register", order.RegisterID),
		zap.Int("transfers", order.TotalTransfers),
		zap.String("total", order.TotalAmount.StringFixed(CentPlaces)))

	res := TransferResult{Order: order, Skipped: skipped}
	for _, sk := range skipped {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarningSkippedSlip,
			Message: fmt.Sprintf("slip %s skipped: %s", sk.SlipID, sk.Reason),
		})
	}
	if register != nil && register.Balance.LessThan(order.TotalAmount) {
		res.Warnings = append(res.Warnings, Warning{
			Code: WarningInsufficientBalance,
			Message: fmt.Sprintf("register %s balance %s is below order total %s",
				register.ID, register.Balance.StringFixed(CentPlaces), order.TotalAmount.StringFixed(CentPlaces)),
		})
	}
	res.Warnings = append(res.Warnings, e.syncOrder(ctx, order, settled)...)
	return res, nil
}
