package engine

import (
	"context"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// placeStop submits the protective stop for the full position quantity at
// the position's current trigger value. An immediate-trigger rejection is
// returned to the caller untouched, the reconcile loop decides what a stop
// that would fire instantly means for the position.
func (e *Engine) placeStop(ctx context.Context, p *models.Position) error {
	ack, err := e.ex.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:       e.ex.Symbol(p.Asset),
		Side:         p.ClosingSide(),
		Type:         exchange.OrderTypeStopMarket,
		Quantity:     p.Quantity,
		TriggerPrice: p.Stop.Value,
	})
	if err != nil {
		return err
	}

	p.Stop.OrderID = ack.OrderID
	p.Stop.Status = models.StatusPlaced
	return nil
}

// improves reports whether newTrigger moves the stop in the risk-reducing
// direction for this position.
func improves(p *models.Position, newTrigger decimal.Decimal) bool {
	if p.Entry.Side == models.SideBuy {
		return newTrigger.GreaterThan(p.Stop.Value)
	}
	return newTrigger.LessThan(p.Stop.Value)
}

// replaceStop trails the stop to newTrigger: cancel the live stop, then
// place a fresh one. A replacement that would worsen the trigger is skipped,
// the stop only ever tightens. If the cancel fails the replacement aborts
// (never two live stops); if the place after a successful cancel fails the
// stop is left pending so the next tick retries at the tightened value.
func (e *Engine) replaceStop(ctx context.Context, p *models.Position, newTrigger decimal.Decimal) error {
	if !improves(p, newTrigger) {
		logger.Info("stop for %s stays at %s, candidate %s does not tighten", p.Asset, p.Stop.Value, newTrigger)
		return nil
	}

	if p.Stop.Status == models.StatusPlaced {
		if err := e.ex.CancelOrder(ctx, e.ex.Symbol(p.Asset), p.Stop.OrderID); err != nil {
			return errors.Wrapf(err, "cancel stop %d", p.Stop.OrderID)
		}
	}

	p.Stop.Value = newTrigger
	p.Stop.OrderID = 0
	p.Stop.Status = models.StatusPending

	if err := e.placeStop(ctx, p); err != nil {
		return errors.Wrapf(err, "place stop at %s", newTrigger)
	}

	logger.Info("stop for %s moved to %s (order %d)", p.Asset, p.Stop.Value, p.Stop.OrderID)
	return nil
}

// trailTrigger is the trailing rule: when target i fills the stop moves to
// the previous target's price, or to the entry fill price for the first one.
func trailTrigger(p *models.Position, filledIdx int) decimal.Decimal {
	if filledIdx == 0 {
		return p.Entry.OpenPrice
	}
	return p.Targets[filledIdx-1].TargetPrice
}
