package engine

import (
	"context"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/shopspring/decimal"
)

// splitQuantity divides total across n take-profit legs. Every leg but the
// last is the rounded even share; the last leg is the remainder, so the legs
// always sum to total exactly whatever the rounding did.
func splitQuantity(total decimal.Decimal, n int, precision int32) []decimal.Decimal {
	legs := make([]decimal.Decimal, n)
	even := models.RoundQuantity(total.Div(decimal.NewFromInt(int64(n))), precision)

	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		legs[i] = even
		allocated = allocated.Add(even)
	}
	legs[n-1] = total.Sub(allocated)
	return legs
}

// placeTargets submits a closing-side limit order for every target still
// pending. A leg the exchange rejects for crossing the market is resubmitted
// as a market order; any other per-leg failure is logged and left pending
// for the next reconcile pass, the remaining legs continue.
func (e *Engine) placeTargets(ctx context.Context, p *models.Position) {
	symbol := e.ex.Symbol(p.Asset)
	side := p.ClosingSide()
	legs := splitQuantity(p.Quantity, len(p.Targets), p.Precision)

	for i := range p.Targets {
		t := &p.Targets[i]
		if t.Status != models.StatusPending {
			continue
		}

		ack, err := e.ex.SubmitOrder(ctx, exchange.OrderRequest{
			Symbol:      symbol,
			Side:        side,
			Type:        exchange.OrderTypeLimit,
			Quantity:    legs[i],
			Price:       t.TargetPrice,
			TimeInForce: "GTC",
		})
		if err != nil {
			if !exchange.IsImmediateTrigger(err) {
				logger.Error("target %d/%d for %s: %v", i+1, len(p.Targets), symbol, err)
				continue
			}

			// Target already beyond the market, take the profit now.
			logger.Warn("target price %s for %s crosses the market, substituting market order",
				t.TargetPrice, symbol)
			ack, err = e.ex.SubmitOrder(ctx, exchange.OrderRequest{
				Symbol:   symbol,
				Side:     side,
				Type:     exchange.OrderTypeMarket,
				Quantity: legs[i],
			})
			if err != nil {
				logger.Error("market substitution for target %d/%d %s: %v", i+1, len(p.Targets), symbol, err)
				continue
			}
		}

		t.OrderID = ack.OrderID
		t.Status = models.StatusPlaced
		logger.Info("TP order %d placed for %s: qty=%s px=%s", ack.OrderID, symbol, legs[i], t.TargetPrice)
	}
}
