package engine

import (
	"context"
	"time"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// open places the entry for an accepted signal and persists the resulting
// position. One-shot branch: inside the entry band the position is opened at
// market with exits placed synchronously; outside it a resting limit order
// waits at the band bound nearest to the current price and exits stay
// pending until the entry fill is detected.
//
// Leverage and margin mode are set up front; any setup failure (other than
// the idempotent margin-mode case, swallowed by the client) aborts before an
// order exists, so no partial position is ever written.
func (e *Engine) open(
	ctx context.Context,
	sig models.Signal,
	symbol string,
	price decimal.Decimal,
	capital decimal.Decimal,
	qty decimal.Decimal,
	meta models.SymbolMeta,
) (*models.Position, error) {
	if err := e.ex.SetLeverage(ctx, symbol, sig.Leverage); err != nil {
		return nil, err
	}
	if err := e.ex.SetMarginMode(ctx, symbol, e.cfg.MarginMode); err != nil {
		return nil, err
	}

	if sig.InBand(price) {
		return e.openImmediate(ctx, sig, symbol, price, qty, meta)
	}
	return e.openDeferred(ctx, sig, symbol, price, capital, meta)
}

func (e *Engine) openImmediate(
	ctx context.Context,
	sig models.Signal,
	symbol string,
	price decimal.Decimal,
	qty decimal.Decimal,
	meta models.SymbolMeta,
) (*models.Position, error) {
	ack, err := e.ex.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:   symbol,
		Side:     sig.Side,
		Type:     exchange.OrderTypeMarket,
		Quantity: qty,
	})
	if err != nil {
		return nil, errors.Wrap(err, "market entry")
	}

	p := newPosition(sig, ack.OrderID, models.StatusFilled, price, qty, meta)

	// Exits go out synchronously. A failed stop stays pending and the next
	// reconcile tick retries it, the entry itself is already live.
	if err := e.placeStop(ctx, p); err != nil {
		logger.Error("stop for %s not placed: %v", symbol, err)
	}
	e.placeTargets(ctx, p)

	if err := e.store.Insert(ctx, p); err != nil {
		return nil, errors.Wrap(err, "persist position")
	}

	logger.Info("order %d placed as market order for %s", p.Entry.OrderID, symbol)
	return p, nil
}

func (e *Engine) openDeferred(
	ctx context.Context,
	sig models.Signal,
	symbol string,
	price decimal.Decimal,
	capital decimal.Decimal,
	meta models.SymbolMeta,
) (*models.Position, error) {
	// Price below the band waits at the lower bound, above it at the upper.
	entryPrice := sig.BandHigh()
	if price.LessThan(sig.BandLow()) {
		entryPrice = sig.BandLow()
	}

	qty := models.RoundQuantity(capital.Div(entryPrice), meta.QuantityPrecision)
	if !qty.IsPositive() {
		return nil, errors.Errorf("deferred size %s too small at limit price %s", capital, entryPrice)
	}

	ack, err := e.ex.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:      symbol,
		Side:        sig.Side,
		Type:        exchange.OrderTypeLimit,
		Quantity:    qty,
		Price:       entryPrice,
		TimeInForce: "GTC",
	})
	if err != nil {
		return nil, errors.Wrap(err, "deferred entry")
	}

	p := newPosition(sig, ack.OrderID, models.StatusPending, entryPrice, qty, meta)
	if err := e.store.Insert(ctx, p); err != nil {
		return nil, errors.Wrap(err, "persist position")
	}

	logger.Info("order %d placed as deferred order for %s at %s", p.Entry.OrderID, symbol, entryPrice)
	return p, nil
}

func newPosition(
	sig models.Signal,
	entryOrderID int64,
	entryStatus models.OrderStatus,
	openPrice decimal.Decimal,
	qty decimal.Decimal,
	meta models.SymbolMeta,
) *models.Position {
	targets := make([]models.TargetOrder, 0, len(sig.Targets))
	for _, tp := range sig.Targets {
		targets = append(targets, models.TargetOrder{
			Status:      models.StatusPending,
			TargetPrice: tp,
		})
	}

	return &models.Position{
		Asset: sig.Asset,
		Entry: models.EntryOrder{
			OrderID:   entryOrderID,
			Status:    entryStatus,
			Side:      sig.Side,
			OpenPrice: openPrice,
		},
		Targets:   targets,
		Stop:      models.StopOrder{Status: models.StatusPending, Value: sig.StopLoss},
		Precision: meta.QuantityPrecision,
		Quantity:  qty,
		CreatedAt: time.Now().UTC(),
	}
}
