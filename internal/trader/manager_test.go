package trader

import (
	"context"
	"fmt"
	"testing"
	"time"

	"algotrader/internal/brokerage"
	"algotrader/internal/model"
)

// fakeBroker scripts brokerage responses for decision-loop tests.
type fakeBroker struct {
	clock      brokerage.Clock
	buyErr     map[string]error
	sellErr    map[string]error
	listed     []model.Position
	listErr    error
	buys       []string
	sells      []string
	liquidated int
	orderSeq   int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		clock: brokerage.Clock{
			IsOpen:    true,
			NextClose: time.Now().Add(3 * time.Hour),
			NextOpen:  time.Now().Add(20 * time.Hour),
		},
		buyErr:  make(map[string]error),
		sellErr: make(map[string]error),
	}
}

func (f *fakeBroker) GetPosition(string) (*model.Position, error) { return nil, nil }

func (f *fakeBroker) BuyStock(symbol string) (model.Order, error) {
	if err := f.buyErr[symbol]; err != nil {
		return model.Order{}, err
	}
	f.orderSeq++
	f.buys = append(f.buys, symbol)
	return model.Order{ID: fmt.Sprintf("O-%d", f.orderSeq), Symbol: symbol, Side: model.SideBuy, Qty: 1}, nil
}

func (f *fakeBroker) SellStock(symbol string) (model.Order, error) {
	if err := f.sellErr[symbol]; err != nil {
		return model.Order{}, err
	}
	f.orderSeq++
	f.sells = append(f.sells, symbol)
	return model.Order{ID: fmt.Sprintf("O-%d", f.orderSeq), Symbol: symbol, Side: model.SideSell, Qty: 1}, nil
}

func (f *fakeBroker) GetClock() (brokerage.Clock, error) { return f.clock, nil }

func (f *fakeBroker) LiquidateAndCancelAll() error {
	f.liquidated++
	return nil
}

func (f *fakeBroker) ListPositions() ([]model.Position, error) {
	return f.listed, f.listErr
}

type managerFixture struct {
	broker  *fakeBroker
	signals chan model.Signal
	updates chan model.TradeUpdate
	m       *Manager
}

func newManagerFixture(maxPositions int) *managerFixture {
	f := &managerFixture{
		broker:  newFakeBroker(),
		signals: make(chan model.Signal, 64),
		updates: make(chan model.TradeUpdate, 64),
	}
	f.m = NewManager(ManagerConfig{
		Brokerage:    f.broker,
		Signals:      f.signals,
		TradeUpdates: f.updates,
		MaxPositions: maxPositions,
	})
	return f
}

func (f *managerFixture) cycle(t *testing.T) {
	t.Helper()
	if err := f.m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
}

func TestManagerBuyThenFill(t *testing.T) {
	f := newManagerFixture(1)

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)

	if len(f.broker.buys) != 1 || f.broker.buys[0] != "AAPL" {
		t.Fatalf("buys = %v, want [AAPL]", f.broker.buys)
	}
	if _, ok := f.m.openOrders["AAPL"]; !ok {
		t.Fatal("open order not recorded after buy submit")
	}
	if f.m.positions["AAPL"].Filled {
		t.Fatal("position marked filled before fill event")
	}

	f.updates <- model.TradeUpdate{
		Symbol: "AAPL", OrderID: "O-1", Event: model.EventFill,
		Side: model.SideBuy, Price: 101.5,
	}
	f.cycle(t)

	if _, ok := f.m.openOrders["AAPL"]; ok {
		t.Fatal("open order should be cleared by fill")
	}
	pos := f.m.positions["AAPL"]
	if !pos.Filled || pos.EntrancePrice != 101.5 {
		t.Fatalf("position after fill = %+v", pos)
	}
}

func TestManagerSellFillRemovesPosition(t *testing.T) {
	f := newManagerFixture(1)
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)
	f.updates <- model.TradeUpdate{Symbol: "AAPL", Event: model.EventFill, Side: model.SideBuy, Price: 100}
	f.cycle(t)

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalSell}
	f.cycle(t)
	if len(f.broker.sells) != 1 {
		t.Fatalf("sells = %v, want one", f.broker.sells)
	}

	f.updates <- model.TradeUpdate{Symbol: "AAPL", Event: model.EventFill, Side: model.SideSell, Price: 110}
	f.cycle(t)
	if len(f.m.positions) != 0 {
		t.Fatalf("positions after sell fill = %v, want none", f.m.Positions())
	}
	if len(f.m.openOrders) != 0 {
		t.Fatal("open orders should be empty after sell fill")
	}
}

func TestManagerAdmitsOneBuyPerCycle(t *testing.T) {
	f := newManagerFixture(3)

	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		f.signals <- model.Signal{Symbol: symbol, Type: model.SignalBuy}
	}
	f.cycle(t)

	if len(f.broker.buys) != 1 || f.broker.buys[0] != "AAPL" {
		t.Fatalf("buys in one cycle = %v, want just [AAPL]", f.broker.buys)
	}
	if len(f.m.positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(f.m.positions))
	}

	// The unadmitted candidates were discarded with the batch, not queued.
	f.cycle(t)
	if len(f.broker.buys) != 1 {
		t.Fatalf("buys after second cycle = %v, want still one", f.broker.buys)
	}
}

func TestManagerSelectorWidensAdmission(t *testing.T) {
	f := newManagerFixture(2)
	f.m.selectBuys = func(signals []model.Signal) []model.Signal { return signals }

	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		f.signals <- model.Signal{Symbol: symbol, Type: model.SignalBuy}
	}
	f.cycle(t)

	// A pass-through selector admits up to the position limit.
	if len(f.broker.buys) != 2 {
		t.Fatalf("buys = %v, want 2 under a widening selector", f.broker.buys)
	}
	if len(f.m.positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(f.m.positions))
	}
}

func TestManagerPositionLimitAcrossCycles(t *testing.T) {
	f := newManagerFixture(1)

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)
	f.signals <- model.Signal{Symbol: "MSFT", Type: model.SignalBuy}
	f.cycle(t)

	if len(f.broker.buys) != 1 {
		t.Fatalf("buys = %v, want limit to hold across cycles", f.broker.buys)
	}

	// Free the slot, the next buy goes through.
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalSell}
	f.cycle(t)
	f.updates <- model.TradeUpdate{Symbol: "AAPL", Event: model.EventFill, Side: model.SideSell, Price: 100}
	f.signals <- model.Signal{Symbol: "MSFT", Type: model.SignalBuy}
	f.cycle(t)
	if len(f.broker.buys) != 2 || f.broker.buys[1] != "MSFT" {
		t.Fatalf("buys = %v, want [AAPL MSFT]", f.broker.buys)
	}
}

func TestManagerSellsProcessedBeforeBuys(t *testing.T) {
	f := newManagerFixture(1)
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)
	f.updates <- model.TradeUpdate{Symbol: "AAPL", Event: model.EventFill, Side: model.SideBuy, Price: 100}
	f.cycle(t)

	// Buy arrives ahead of the sell in the queue, but the sell frees the
	// slot first. The buy is still skipped because the sell fill has not
	// arrived in this cycle.
	f.signals <- model.Signal{Symbol: "MSFT", Type: model.SignalBuy}
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalSell}
	f.cycle(t)

	if len(f.broker.sells) != 1 {
		t.Fatalf("sells = %v, want one", f.broker.sells)
	}
	if len(f.broker.buys) != 1 {
		t.Fatalf("buys = %v, want the MSFT buy deferred", f.broker.buys)
	}
}

func TestManagerBuySelectorOrdersAdmission(t *testing.T) {
	f := newManagerFixture(1)
	f.m.selectBuys = func(signals []model.Signal) []model.Signal {
		// Prefer the lexicographically last symbol.
		best := signals[0]
		for _, s := range signals[1:] {
			if s.Symbol > best.Symbol {
				best = s
			}
		}
		return []model.Signal{best}
	}

	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		f.signals <- model.Signal{Symbol: symbol, Type: model.SignalBuy}
	}
	f.cycle(t)

	if len(f.broker.buys) != 1 || f.broker.buys[0] != "MSFT" {
		t.Fatalf("buys = %v, want [MSFT]", f.broker.buys)
	}
}

func TestManagerTerminalEventFailsClosed(t *testing.T) {
	f := newManagerFixture(1)
	f.updates <- model.TradeUpdate{Symbol: "AAPL", OrderID: "O-9", Event: "rejected"}

	if err := f.m.Cycle(context.Background()); err == nil {
		t.Fatal("Cycle should fail on terminal order event")
	}
}

func TestManagerBenignEventsIgnored(t *testing.T) {
	f := newManagerFixture(1)
	for _, ev := range []string{"new", "partial_fill", "pending_new", "done_for_day"} {
		f.updates <- model.TradeUpdate{Symbol: "AAPL", Event: ev}
	}
	f.cycle(t)
	if len(f.m.positions) != 0 || len(f.m.openOrders) != 0 {
		t.Fatal("benign events must not change the account view")
	}
}

func TestManagerResyncOnMissingPosition(t *testing.T) {
	f := newManagerFixture(2)
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)
	f.updates <- model.TradeUpdate{Symbol: "AAPL", Event: model.EventFill, Side: model.SideBuy, Price: 100}
	f.cycle(t)

	// Broker lost the position out from under us; it reports one other
	// position instead.
	f.broker.sellErr["AAPL"] = brokerage.ErrMissingPosition
	f.broker.listed = []model.Position{{Symbol: "MSFT", Qty: 5, EntrancePrice: 50, Filled: true}}

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalSell}
	f.cycle(t)

	if _, ok := f.m.positions["AAPL"]; ok {
		t.Fatal("resync should drop the phantom position")
	}
	if pos, ok := f.m.positions["MSFT"]; !ok || pos.Qty != 5 {
		t.Fatalf("resync should adopt broker positions, got %v", f.m.Positions())
	}
}

func TestManagerResyncUnsupportedFailsClosed(t *testing.T) {
	f := newManagerFixture(1)
	f.m.positions["AAPL"] = &model.Position{Symbol: "AAPL", Filled: true}
	f.broker.sellErr["AAPL"] = brokerage.ErrMissingPosition
	f.broker.listErr = brokerage.ErrNotSupported

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalSell}
	if err := f.m.Cycle(context.Background()); err == nil {
		t.Fatal("Cycle should fail when resync is unsupported")
	}
}

func TestManagerNotEnoughCashSkipsBuy(t *testing.T) {
	f := newManagerFixture(2)
	f.broker.buyErr["AAPL"] = brokerage.ErrNotEnoughCash

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)
	if len(f.broker.buys) != 0 {
		t.Fatalf("buys = %v, want the unaffordable one skipped", f.broker.buys)
	}
	if _, ok := f.m.positions["AAPL"]; ok {
		t.Fatal("skipped buy must not record a position")
	}

	// The skip does not wedge the loop; the next cycle's candidate goes
	// through.
	f.signals <- model.Signal{Symbol: "MSFT", Type: model.SignalBuy}
	f.cycle(t)
	if len(f.broker.buys) != 1 || f.broker.buys[0] != "MSFT" {
		t.Fatalf("buys = %v, want [MSFT]", f.broker.buys)
	}
}

func TestManagerSellWithOpenOrderFailsClosed(t *testing.T) {
	f := newManagerFixture(1)
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)

	// No fill arrives; a sell on the same symbol would race the open buy.
	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalSell}
	if err := f.m.Cycle(context.Background()); err == nil {
		t.Fatal("Cycle should fail on sell with an order still open")
	}
}

func TestManagerCleanupBeforeClose(t *testing.T) {
	f := newManagerFixture(1)
	stopped := 0
	f.m.stopListener = func() { stopped++ }
	f.m.listenerRunning = true
	f.m.positions["AAPL"] = &model.Position{Symbol: "AAPL", Filled: true}

	f.broker.clock.NextClose = time.Now().Add(3 * time.Minute)
	f.signals <- model.Signal{Symbol: "MSFT", Type: model.SignalBuy}
	f.cycle(t)

	if f.broker.liquidated != 1 {
		t.Fatalf("liquidated = %d, want 1", f.broker.liquidated)
	}
	if stopped != 1 {
		t.Fatalf("listener stops = %d, want 1", stopped)
	}
	if len(f.m.positions) != 0 {
		t.Fatal("cleanup should clear local positions")
	}
	if len(f.broker.buys) != 0 {
		t.Fatalf("buys during cleanup window = %v, want none", f.broker.buys)
	}

	// Second cycle in the window must not liquidate again.
	f.cycle(t)
	if f.broker.liquidated != 1 {
		t.Fatalf("liquidated = %d after second cycle, want still 1", f.broker.liquidated)
	}
}

func TestManagerStartsListenerAheadOfOpen(t *testing.T) {
	f := newManagerFixture(1)
	started := 0
	f.m.startListener = func(context.Context) { started++ }

	f.broker.clock.IsOpen = false
	f.broker.clock.NextOpen = time.Now().Add(12 * time.Hour)
	f.cycle(t)
	if started != 0 {
		t.Fatal("listener started too early")
	}

	f.broker.clock.NextOpen = time.Now().Add(2 * time.Hour)
	f.cycle(t)
	f.cycle(t)
	if started != 1 {
		t.Fatalf("listener starts = %d, want exactly 1", started)
	}
}

func TestManagerDiscardsSignalsWhileClosed(t *testing.T) {
	f := newManagerFixture(1)
	f.broker.clock.IsOpen = false
	f.broker.clock.NextOpen = time.Now().Add(12 * time.Hour)

	f.signals <- model.Signal{Symbol: "AAPL", Type: model.SignalBuy}
	f.cycle(t)

	if len(f.broker.buys) != 0 {
		t.Fatalf("buys while closed = %v, want none", f.broker.buys)
	}
	if len(f.signals) != 0 {
		t.Fatal("stale signals should be drained while closed")
	}
}
