package engine

import (
	"context"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Result string

const (
	Accepted  Result = "accepted"
	Duplicate Result = "duplicate"
	Rejected  Result = "rejected"
)

var oneHundred = decimal.NewFromInt(100)

// Submit runs one signal through intake: validation, duplicate scan against
// active positions, sizing from the account balance and instrument metadata,
// then entry placement. Idempotent for a signal whose position is active.
func (e *Engine) Submit(ctx context.Context, sig models.Signal) (Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "engine.Submit")
	defer span.Finish()

	if !sig.Complete() {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.New("incomplete signal")
	}

	// The lock covers the duplicate scan as well as the submit/persist
	// sequence: two copies of one alert arriving together serialise here, so
	// the second scan sees the first one's position.
	e.locks.Lock(sig.Asset)
	defer e.locks.Unlock(sig.Asset)

	active, err := e.store.ListActive(ctx)
	if err != nil {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Wrap(err, "list active positions")
	}
	for _, p := range active {
		if sig.Matches(p) {
			logger.Info("signal for %s already handled, position %d active", sig.Asset, p.Entry.OrderID)
			mtxSignals.WithLabelValues(string(Duplicate)).Inc()
			return Duplicate, nil
		}
	}

	balance, err := e.ex.Balance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Wrap(err, "get balance")
	}
	capital := balance.Mul(e.cfg.OrderFractionPct).Div(oneHundred)

	symbol := e.ex.Symbol(sig.Asset)
	price, err := e.ex.Price(ctx, symbol)
	if err != nil {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Wrapf(err, "get price %s", symbol)
	}

	meta, err := e.ex.InstrumentMeta(ctx, symbol)
	if err != nil {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Wrapf(err, "instrument meta %s", symbol)
	}
	if meta.MinNotional.GreaterThan(e.cfg.MaxNotional) {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Errorf("%s min notional %s above cap %s",
			symbol, meta.MinNotional, e.cfg.MaxNotional)
	}

	qty := models.RoundQuantity(capital.Div(price), meta.QuantityPrecision)
	if !qty.IsPositive() {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Errorf("%s allocation %s too small at price %s", symbol, capital, price)
	}
	if qty.Mul(price).LessThan(meta.MinNotional) {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Errorf("%s notional %s below minimum %s",
			symbol, qty.Mul(price), meta.MinNotional)
	}

	p, err := e.open(ctx, sig, symbol, price, capital, qty, meta)
	if err != nil {
		mtxSignals.WithLabelValues(string(Rejected)).Inc()
		return Rejected, errors.Wrapf(err, "open position %s", symbol)
	}

	mtxSignals.WithLabelValues(string(Accepted)).Inc()
	mtxOpenPositions.Inc()
	e.notifier.Sendf("📈 %s %s qty=%s entry=%s stop=%s targets=%d",
		sig.Asset, sig.Side, p.Quantity, p.Entry.OpenPrice, p.Stop.Value, len(p.Targets))
	return Accepted, nil
}
