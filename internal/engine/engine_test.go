package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// fakeExchange records every call and keeps an in-memory open-order book.
// LIMIT and STOP_MARKET orders rest in the book, MARKET orders never do.
type fakeExchange struct {
	mu sync.Mutex

	price        decimal.Decimal
	balance      decimal.Decimal
	balanceDelay time.Duration
	meta         models.SymbolMeta

	nextID    int64
	book      map[int64]models.OrderRef
	submitted []exchange.OrderRequest
	cancelled []int64

	failSubmit func(req exchange.OrderRequest) error
	failCancel map[int64]error

	leverageSet int
	marginMode  string
}

func newFakeExchange(price float64) *fakeExchange {
	return &fakeExchange{
		price:   decimal.NewFromFloat(price),
		balance: decimal.NewFromInt(1000),
		meta: models.SymbolMeta{
			Symbol:            "BTCUSDT",
			QuantityPrecision: 3,
			MinNotional:       decimal.NewFromInt(5),
		},
		nextID: 100,
		book:   make(map[int64]models.OrderRef),
	}
}

func (f *fakeExchange) Symbol(asset string) string { return asset + "USDT" }

func (f *fakeExchange) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if f.balanceDelay > 0 {
		time.Sleep(f.balanceDelay)
	}
	return f.balance, nil
}

func (f *fakeExchange) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeExchange) InstrumentMeta(ctx context.Context, symbol string) (models.SymbolMeta, error) {
	return f.meta, nil
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSubmit != nil {
		if err := f.failSubmit(req); err != nil {
			return exchange.OrderAck{}, err
		}
	}

	f.nextID++
	f.submitted = append(f.submitted, req)
	if req.Type != exchange.OrderTypeMarket {
		f.book[f.nextID] = models.OrderRef{Symbol: req.Symbol, OrderID: f.nextID}
	}
	return exchange.OrderAck{OrderID: f.nextID, Status: "NEW"}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failCancel[orderID]; ok {
		return err
	}
	delete(f.book, orderID)
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context) ([]models.OrderRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	refs := make([]models.OrderRef, 0, len(f.book))
	for _, r := range f.book {
		refs = append(refs, r)
	}
	return refs, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.leverageSet = leverage
	return nil
}

func (f *fakeExchange) SetMarginMode(ctx context.Context, symbol, mode string) error {
	f.marginMode = mode
	return nil
}

// rest injects a resting order id into the fake book, as if placed earlier.
func (f *fakeExchange) rest(orderID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.book[orderID] = models.OrderRef{Symbol: "BTCUSDT", OrderID: orderID}
}

// fill removes an order id from the fake book, the way a fill or remote
// cancel makes it disappear from the snapshot.
func (f *fakeExchange) fill(orderID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.book, orderID)
}

func (f *fakeExchange) submittedOfType(ot exchange.OrderType) []exchange.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []exchange.OrderRequest
	for _, r := range f.submitted {
		if r.Type == ot {
			out = append(out, r)
		}
	}
	return out
}

// memStore keeps positions in memory but round-trips every write through
// the document encoding, so state mutated after a write never leaks back.
type memStore struct {
	mu      sync.Mutex
	byEntry map[int64][]byte
}

func newMemStore() *memStore {
	return &memStore{byEntry: make(map[int64][]byte)}
}

func (s *memStore) Insert(ctx context.Context, p *models.Position) error {
	doc, err := sonic.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.byEntry[p.Entry.OrderID] = doc
	s.mu.Unlock()
	return nil
}

func (s *memStore) Update(ctx context.Context, p *models.Position) error {
	return s.Insert(ctx, p)
}

func (s *memStore) Delete(ctx context.Context, entryOrderID int64) error {
	s.mu.Lock()
	delete(s.byEntry, entryOrderID)
	s.mu.Unlock()
	return nil
}

func (s *memStore) ListActive(ctx context.Context) ([]*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Position, 0, len(s.byEntry))
	for _, doc := range s.byEntry {
		var p models.Position
		if err := sonic.Unmarshal(doc, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEntry)
}

func (s *memStore) mustGet(t *testing.T, entryOrderID int64) *models.Position {
	t.Helper()
	s.mu.Lock()
	doc, ok := s.byEntry[entryOrderID]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("position with entry order %d not in store", entryOrderID)
	}
	var p models.Position
	if err := sonic.Unmarshal(doc, &p); err != nil {
		t.Fatalf("decode stored position: %v", err)
	}
	return &p
}

type nopNotifier struct{}

func (nopNotifier) Send(msg string)                  {}
func (nopNotifier) Sendf(format string, args ...any) {}

func testConfig() Config {
	return Config{
		QuoteAsset:       "USDT",
		OrderFractionPct: decimal.NewFromInt(2),
		MaxNotional:      decimal.NewFromInt(100),
		MarginMode:       "ISOLATED",
	}
}

func newTestEngine(price float64) (*Engine, *fakeExchange, *memStore) {
	ex := newFakeExchange(price)
	store := newMemStore()
	return New(ex, store, nopNotifier{}, testConfig()), ex, store
}

func testSignal() models.Signal {
	return models.Signal{
		Asset: "BTC",
		Side:  models.SideBuy,
		Between: []decimal.Decimal{
			decimal.NewFromInt(100),
			decimal.NewFromInt(102),
		},
		Targets: []decimal.Decimal{
			decimal.NewFromInt(105),
			decimal.NewFromInt(110),
			decimal.NewFromInt(115),
		},
		StopLoss: decimal.NewFromInt(95),
		Leverage: 5,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func apiError(code int64) error {
	return &exchange.APIError{Code: code, Msg: "injected"}
}
