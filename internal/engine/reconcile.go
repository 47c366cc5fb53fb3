package engine

import (
	"context"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// Tick runs one reconciliation pass: a fresh snapshot of remote open orders
// against every stored position. An order id missing from the snapshot is
// the only fill signal available, there is no separate fill/cancel feed.
// A failure in one position never blocks the others.
func (e *Engine) Tick(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "engine.Tick")
	defer span.Finish()

	refs, err := e.ex.OpenOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "open orders snapshot")
	}
	open := make(map[int64]struct{}, len(refs))
	for _, r := range refs {
		open[r.OrderID] = struct{}{}
	}

	positions, err := e.store.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, "list active positions")
	}
	mtxOpenPositions.Set(float64(len(positions)))

	for _, p := range positions {
		e.locks.Lock(p.Asset)
		err := e.reconcileOne(ctx, p, open)
		e.locks.Unlock(p.Asset)
		if err != nil {
			logger.Error("reconcile %s (entry %d): %v", p.Asset, p.Entry.OrderID, err)
		}
	}
	return nil
}

// reconcileOne walks one position through its next transitions. Order
// matters: a stop fill is terminal and is checked before anything else, so a
// stopped-out position is never also processed for target trailing. Fill
// detection runs on the durable state before any new placements, a leg
// placed within this tick cannot be mistaken for a fill.
func (e *Engine) reconcileOne(ctx context.Context, p *models.Position, open map[int64]struct{}) error {
	absent := func(orderID int64) bool {
		_, ok := open[orderID]
		return orderID != 0 && !ok
	}

	// Stop no longer resting: the position was closed out at the stop.
	if p.Stop.Status == models.StatusPlaced && absent(p.Stop.OrderID) {
		return e.closeStoppedOut(ctx, p)
	}

	// Entry no longer resting: the limit order filled, the position exists
	// on the exchange now. Commit the transition before placing exits so a
	// later failure can never roll it back.
	if p.Entry.Status == models.StatusPending && absent(p.Entry.OrderID) {
		p.Entry.Status = models.StatusFilled
		if err := e.store.Update(ctx, p); err != nil {
			return errors.Wrap(err, "commit entry fill")
		}
		mtxTransitions.WithLabelValues("entered").Inc()
		e.notifier.Sendf("✅ %s entry %d filled at ~%s", p.Asset, p.Entry.OrderID, p.Entry.OpenPrice)
	}
	if p.Entry.Status != models.StatusFilled {
		return nil // entry still resting, nothing else can happen yet
	}

	// Detect target fills against the snapshot taken before this tick's
	// placements, trailing the stop for each.
	changed := false
	for i := range p.Targets {
		t := &p.Targets[i]
		if t.Status != models.StatusPlaced || !absent(t.OrderID) {
			continue
		}
		t.Status = models.StatusFilled
		changed = true
		mtxTransitions.WithLabelValues("target_filled").Inc()

		newTrigger := trailTrigger(p, i)
		if err := e.replaceStop(ctx, p, newTrigger); err != nil {
			logger.Error("trail stop for %s after target %d: %v", p.Asset, i+1, err)
		} else {
			mtxTransitions.WithLabelValues("stop_trailed").Inc()
		}
	}

	if p.AllTargetsFilled() {
		return e.closeFullProfit(ctx, p)
	}

	// Self-healing: a stop that never made it out gets retried every tick.
	if p.Stop.Status == models.StatusPending {
		if err := e.placeStop(ctx, p); err != nil {
			if exchange.IsImmediateTrigger(err) {
				// Price is already through the stop: the position is as good
				// as stopped out, close it at market instead of protecting it.
				return e.closeBreached(ctx, p)
			}
			logger.Error("stop for %s not placed: %v", p.Asset, err)
		} else {
			changed = true
		}
	}

	// Same for targets that are still pending after the entry filled.
	for i := range p.Targets {
		if p.Targets[i].Status == models.StatusPending {
			e.placeTargets(ctx, p)
			changed = true
			break
		}
	}

	if changed {
		return errors.Wrap(e.store.Update(ctx, p), "persist reconcile changes")
	}
	return nil
}

// closeStoppedOut finishes a position whose stop order disappeared from the
// snapshot: cancel whatever targets are still resting and drop the record.
func (e *Engine) closeStoppedOut(ctx context.Context, p *models.Position) error {
	symbol := e.ex.Symbol(p.Asset)
	for _, t := range p.Targets {
		if t.Status != models.StatusPlaced {
			continue
		}
		if err := e.ex.CancelOrder(ctx, symbol, t.OrderID); err != nil {
			logger.Error("cancel target %d for %s: %v", t.OrderID, symbol, err)
		}
	}

	if err := e.store.Delete(ctx, p.Entry.OrderID); err != nil {
		return errors.Wrap(err, "delete stopped-out position")
	}
	mtxTransitions.WithLabelValues("stopped_out").Inc()
	mtxOpenPositions.Dec()
	e.notifier.Sendf("🛑 %s stopped out at %s", p.Asset, p.Stop.Value)
	return nil
}

// closeFullProfit drops a position whose targets have all filled. The stop
// has nothing left to protect, cancel it if it is still resting.
func (e *Engine) closeFullProfit(ctx context.Context, p *models.Position) error {
	if p.Stop.Status == models.StatusPlaced {
		if err := e.ex.CancelOrder(ctx, e.ex.Symbol(p.Asset), p.Stop.OrderID); err != nil {
			logger.Error("cancel stop %d for %s: %v", p.Stop.OrderID, p.Asset, err)
		}
	}

	if err := e.store.Delete(ctx, p.Entry.OrderID); err != nil {
		return errors.Wrap(err, "delete closed position")
	}
	mtxTransitions.WithLabelValues("closed_profit").Inc()
	mtxOpenPositions.Dec()
	e.notifier.Sendf("💰 %s closed, all %d targets filled", p.Asset, len(p.Targets))
	return nil
}

// closeBreached handles a filled entry whose stop cannot be placed because
// the market is already past the trigger: close at market, cancel resting
// targets and drop the record.
func (e *Engine) closeBreached(ctx context.Context, p *models.Position) error {
	symbol := e.ex.Symbol(p.Asset)

	// Filled target legs already reduced the position, only the remainder is
	// still open; closing the full quantity would flip to the other side.
	remaining := p.Quantity
	if len(p.Targets) > 0 {
		legs := splitQuantity(p.Quantity, len(p.Targets), p.Precision)
		for i := range p.Targets {
			if p.Targets[i].Status == models.StatusFilled {
				remaining = remaining.Sub(legs[i])
			}
		}
	}

	if remaining.IsPositive() {
		if _, err := e.ex.SubmitOrder(ctx, exchange.OrderRequest{
			Symbol:   symbol,
			Side:     p.ClosingSide(),
			Type:     exchange.OrderTypeMarket,
			Quantity: remaining,
		}); err != nil {
			// Leave the record in place, the next tick tries again.
			return errors.Wrap(err, "close breached position")
		}
	}

	for _, t := range p.Targets {
		if t.Status != models.StatusPlaced {
			continue
		}
		if err := e.ex.CancelOrder(ctx, symbol, t.OrderID); err != nil {
			logger.Error("cancel target %d for %s: %v", t.OrderID, symbol, err)
		}
	}

	if err := e.store.Delete(ctx, p.Entry.OrderID); err != nil {
		return errors.Wrap(err, "delete breached position")
	}
	mtxTransitions.WithLabelValues("stopped_out").Inc()
	mtxOpenPositions.Dec()
	e.notifier.Sendf("🛑 %s price already through stop %s, closed at market", p.Asset, p.Stop.Value)
	return nil
}
