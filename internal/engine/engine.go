package engine

import (
	"context"
	"time"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"

	"github.com/shopspring/decimal"
)

// Exchange is the capability surface the engine needs from the futures
// exchange. *exchange.Client implements it; tests substitute a fake.
type Exchange interface {
	Symbol(asset string) string
	Balance(ctx context.Context, asset string) (decimal.Decimal, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	InstrumentMeta(ctx context.Context, symbol string) (models.SymbolMeta, error)
	SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderAck, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	OpenOrders(ctx context.Context) ([]models.OrderRef, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol, mode string) error
}

// PositionStore is the durable position collection.
type PositionStore interface {
	Insert(ctx context.Context, p *models.Position) error
	Update(ctx context.Context, p *models.Position) error
	Delete(ctx context.Context, entryOrderID int64) error
	ListActive(ctx context.Context) ([]*models.Position, error)
}

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

type Config struct {
	QuoteAsset        string
	OrderFractionPct  decimal.Decimal
	MaxNotional       decimal.Decimal
	MarginMode        string
	ReconcileInterval time.Duration
}

// Engine owns the full position lifecycle: intake of new signals, entry
// placement, exit-order management and the periodic reconciliation of local
// records against the remote open-order set.
type Engine struct {
	ex       Exchange
	store    PositionStore
	notifier Notifier
	cfg      Config
	locks    *instrumentLocks
}

func New(ex Exchange, store PositionStore, notifier Notifier, cfg Config) *Engine {
	return &Engine{
		ex:       ex,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		locks:    newInstrumentLocks(),
	}
}
