package engine

import (
	"context"
	"testing"
	"time"

	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
)

// fixturePosition is a filled long with three placed targets and a placed
// stop: entry order 1 at 100, targets 11/12/13 at 105/110/115, stop 21 at 95.
func fixturePosition() *models.Position {
	return &models.Position{
		Asset: "BTC",
		Entry: models.EntryOrder{
			OrderID:   1,
			Status:    models.StatusFilled,
			Side:      models.SideBuy,
			OpenPrice: dec("100"),
		},
		Targets: []models.TargetOrder{
			{OrderID: 11, Status: models.StatusPlaced, TargetPrice: dec("105")},
			{OrderID: 12, Status: models.StatusPlaced, TargetPrice: dec("110")},
			{OrderID: 13, Status: models.StatusPlaced, TargetPrice: dec("115")},
		},
		Stop:      models.StopOrder{OrderID: 21, Status: models.StatusPlaced, Value: dec("95")},
		Precision: 3,
		Quantity:  dec("0.3"),
		CreatedAt: time.Now().UTC(),
	}
}

// seed puts the fixture in the store and rests its live orders in the fake
// book, then returns the position as stored.
func seed(t *testing.T, ex *fakeExchange, store *memStore, p *models.Position) {
	t.Helper()
	if err := store.Insert(context.Background(), p); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if p.Stop.Status == models.StatusPlaced {
		ex.rest(p.Stop.OrderID)
	}
	if p.Entry.Status == models.StatusPending {
		ex.rest(p.Entry.OrderID)
	}
	for _, tgt := range p.Targets {
		if tgt.Status == models.StatusPlaced {
			ex.rest(tgt.OrderID)
		}
	}
}

func TestTickEntryFillPlacesExits(t *testing.T) {
	e, ex, store := newTestEngine(101)
	ctx := context.Background()

	p := fixturePosition()
	p.Entry.Status = models.StatusPending
	for i := range p.Targets {
		p.Targets[i].Status = models.StatusPending
		p.Targets[i].OrderID = 0
	}
	p.Stop.Status = models.StatusPending
	p.Stop.OrderID = 0
	seed(t, ex, store, p)

	// The resting entry fills: it disappears from the snapshot.
	ex.fill(p.Entry.OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := store.mustGet(t, 1)
	if got.Entry.Status != models.StatusFilled {
		t.Fatalf("entry status = %s, want filled", got.Entry.Status)
	}
	if got.Stop.Status != models.StatusPlaced {
		t.Errorf("stop status = %s, want placed", got.Stop.Status)
	}
	for i, tgt := range got.Targets {
		if tgt.Status != models.StatusPlaced {
			t.Errorf("target %d status = %s, want placed", i, tgt.Status)
		}
	}
	if len(ex.submittedOfType(exchange.OrderTypeStopMarket)) != 1 {
		t.Error("exactly one stop must go out on entry fill")
	}
	if len(ex.submittedOfType(exchange.OrderTypeLimit)) != 3 {
		t.Error("all three targets must go out on entry fill")
	}
}

func TestTickEntryStillRestingDoesNothing(t *testing.T) {
	e, ex, store := newTestEngine(101)

	p := fixturePosition()
	p.Entry.Status = models.StatusPending
	for i := range p.Targets {
		p.Targets[i].Status = models.StatusPending
		p.Targets[i].OrderID = 0
	}
	p.Stop.Status = models.StatusPending
	p.Stop.OrderID = 0
	seed(t, ex, store, p)

	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(ex.submitted) != 0 {
		t.Errorf("placed %d orders while the entry is still resting", len(ex.submitted))
	}
	got := store.mustGet(t, 1)
	if got.Entry.Status != models.StatusPending {
		t.Errorf("entry status = %s, want pending", got.Entry.Status)
	}
}

func TestTickStopFillClosesPosition(t *testing.T) {
	e, ex, store := newTestEngine(94)
	ctx := context.Background()

	p := fixturePosition()
	seed(t, ex, store, p)

	ex.fill(p.Stop.OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if store.count() != 0 {
		t.Fatal("stopped-out position must be removed from the store")
	}
	wantCancelled := map[int64]bool{11: true, 12: true, 13: true}
	for _, id := range ex.cancelled {
		delete(wantCancelled, id)
	}
	if len(wantCancelled) != 0 {
		t.Errorf("resting targets not cancelled: %v", wantCancelled)
	}
	if len(ex.submitted) != 0 {
		t.Errorf("stop fill placed %d orders, want 0", len(ex.submitted))
	}
}

func TestTickStopFillWinsOverTargetFill(t *testing.T) {
	// Both the stop and a target vanished from the snapshot. The stop fill
	// is terminal and must be handled first: no trailing, no replacement.
	e, ex, store := newTestEngine(94)
	ctx := context.Background()

	p := fixturePosition()
	seed(t, ex, store, p)

	ex.fill(p.Stop.OrderID)
	ex.fill(p.Targets[0].OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if store.count() != 0 {
		t.Fatal("position must be removed")
	}
	if len(ex.submittedOfType(exchange.OrderTypeStopMarket)) != 0 {
		t.Error("no replacement stop may be placed after a stop fill")
	}
}

func TestTickTargetFillTrailsStop(t *testing.T) {
	e, ex, store := newTestEngine(106)
	ctx := context.Background()

	p := fixturePosition()
	seed(t, ex, store, p)

	ex.fill(p.Targets[0].OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := store.mustGet(t, 1)
	if got.Targets[0].Status != models.StatusFilled {
		t.Fatalf("target 0 status = %s, want filled", got.Targets[0].Status)
	}
	if got.Targets[1].Status != models.StatusPlaced || got.Targets[2].Status != models.StatusPlaced {
		t.Error("remaining targets must stay placed")
	}

	// The stop moved to the entry fill price.
	if !got.Stop.Value.Equal(dec("100")) {
		t.Errorf("stop value = %s, want 100", got.Stop.Value)
	}
	if got.Stop.Status != models.StatusPlaced {
		t.Errorf("stop status = %s, want placed", got.Stop.Status)
	}
	if got.Stop.OrderID == 21 {
		t.Error("stop must carry a fresh order id after trailing")
	}
	if len(ex.cancelled) != 1 || ex.cancelled[0] != 21 {
		t.Errorf("cancelled = %v, want the old stop [21]", ex.cancelled)
	}
}

func TestTickSecondTargetTrailsToFirst(t *testing.T) {
	e, ex, store := newTestEngine(111)
	ctx := context.Background()

	p := fixturePosition()
	p.Targets[0].Status = models.StatusFilled
	p.Stop.Value = dec("100") // already trailed once
	seed(t, ex, store, p)

	ex.fill(p.Targets[1].OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := store.mustGet(t, 1)
	if got.Targets[1].Status != models.StatusFilled {
		t.Fatalf("target 1 status = %s, want filled", got.Targets[1].Status)
	}
	if !got.Stop.Value.Equal(dec("105")) {
		t.Errorf("stop value = %s, want first target price 105", got.Stop.Value)
	}
}

func TestTickAllTargetsFilledClosesPosition(t *testing.T) {
	e, ex, store := newTestEngine(116)
	ctx := context.Background()

	p := fixturePosition()
	p.Targets = p.Targets[:1] // single-target trade
	seed(t, ex, store, p)

	ex.fill(p.Targets[0].OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if store.count() != 0 {
		t.Fatal("fully-profited position must be removed from the store")
	}

	// The trailing replacement placed a fresh stop this tick; it and the
	// original were both cancelled, nothing protective is left resting.
	for id := range ex.book {
		t.Errorf("order %d still resting after close", id)
	}
}

func TestTickPendingStopRetried(t *testing.T) {
	e, ex, store := newTestEngine(101)
	ctx := context.Background()

	p := fixturePosition()
	p.Stop.Status = models.StatusPending
	p.Stop.OrderID = 0
	seed(t, ex, store, p)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := store.mustGet(t, 1)
	if got.Stop.Status != models.StatusPlaced {
		t.Fatalf("stop status = %s, want placed", got.Stop.Status)
	}
	if got.Stop.OrderID == 0 {
		t.Error("stop must carry the new order id")
	}
	stops := ex.submittedOfType(exchange.OrderTypeStopMarket)
	if len(stops) != 1 || !stops[0].TriggerPrice.Equal(dec("95")) {
		t.Errorf("stop submissions = %v, want one at trigger 95", stops)
	}
}

func TestTickPendingStopBreachedClosesAtMarket(t *testing.T) {
	e, ex, store := newTestEngine(94)
	ctx := context.Background()

	p := fixturePosition()
	p.Stop.Status = models.StatusPending
	p.Stop.OrderID = 0
	seed(t, ex, store, p)

	// The market already traded through the trigger, the stop is rejected.
	ex.failSubmit = func(req exchange.OrderRequest) error {
		if req.Type == exchange.OrderTypeStopMarket {
			return apiError(-2021)
		}
		return nil
	}

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if store.count() != 0 {
		t.Fatal("breached position must be removed from the store")
	}
	markets := ex.submittedOfType(exchange.OrderTypeMarket)
	if len(markets) != 1 {
		t.Fatalf("market closes = %d, want 1", len(markets))
	}
	if markets[0].Side != models.SideSell || !markets[0].Quantity.Equal(dec("0.3")) {
		t.Errorf("close order = %+v, want SELL of the full 0.3", markets[0])
	}
	wantCancelled := map[int64]bool{11: true, 12: true, 13: true}
	for _, id := range ex.cancelled {
		delete(wantCancelled, id)
	}
	if len(wantCancelled) != 0 {
		t.Errorf("resting targets not cancelled: %v", wantCancelled)
	}
}

func TestTickBreachedStopClosesRemainderOnly(t *testing.T) {
	// One target leg already filled before the stop breach: the market close
	// must cover only the quantity still open, not the original size.
	e, ex, store := newTestEngine(99)
	ctx := context.Background()

	p := fixturePosition()
	p.Targets[0].Status = models.StatusFilled
	p.Stop.Status = models.StatusPending
	p.Stop.OrderID = 0
	p.Stop.Value = dec("100") // trailed after the first fill, then lost
	seed(t, ex, store, p)

	ex.failSubmit = func(req exchange.OrderRequest) error {
		if req.Type == exchange.OrderTypeStopMarket {
			return apiError(-2021)
		}
		return nil
	}

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if store.count() != 0 {
		t.Fatal("breached position must be removed from the store")
	}
	markets := ex.submittedOfType(exchange.OrderTypeMarket)
	if len(markets) != 1 {
		t.Fatalf("market closes = %d, want 1", len(markets))
	}
	// 0.3 total minus the filled 0.1 leg.
	if !markets[0].Quantity.Equal(dec("0.2")) {
		t.Errorf("close quantity = %s, want remaining 0.2", markets[0].Quantity)
	}
	wantCancelled := map[int64]bool{12: true, 13: true}
	for _, id := range ex.cancelled {
		delete(wantCancelled, id)
	}
	if len(wantCancelled) != 0 {
		t.Errorf("resting targets not cancelled: %v", wantCancelled)
	}
}

func TestTickPendingTargetsRetried(t *testing.T) {
	e, ex, store := newTestEngine(101)
	ctx := context.Background()

	p := fixturePosition()
	p.Targets[1].Status = models.StatusPending
	p.Targets[1].OrderID = 0
	seed(t, ex, store, p)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := store.mustGet(t, 1)
	if got.Targets[1].Status != models.StatusPlaced {
		t.Fatalf("target 1 status = %s, want placed", got.Targets[1].Status)
	}
	limits := ex.submittedOfType(exchange.OrderTypeLimit)
	if len(limits) != 1 || !limits[0].Price.Equal(dec("110")) {
		t.Errorf("limit submissions = %v, want one at 110", limits)
	}
}

func TestTickSamePassPlacementsNotMistakenForFills(t *testing.T) {
	// An entry fill places exits within the tick. Those fresh orders are not
	// in the snapshot the tick started from and must not be treated as
	// filled by the same pass.
	e, ex, store := newTestEngine(101)
	ctx := context.Background()

	p := fixturePosition()
	p.Entry.Status = models.StatusPending
	for i := range p.Targets {
		p.Targets[i].Status = models.StatusPending
		p.Targets[i].OrderID = 0
	}
	p.Stop.Status = models.StatusPending
	p.Stop.OrderID = 0
	seed(t, ex, store, p)
	ex.fill(p.Entry.OrderID)

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if store.count() != 1 {
		t.Fatal("position must survive the tick that fills its entry")
	}
	got := store.mustGet(t, 1)
	for i, tgt := range got.Targets {
		if tgt.Status == models.StatusFilled {
			t.Errorf("target %d marked filled in the pass that placed it", i)
		}
	}
}
