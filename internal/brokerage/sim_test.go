package brokerage

import (
	"errors"
	"testing"
	"time"

	"algotrader/internal/model"
)

func simTime(h, m int) time.Time {
	return time.Date(2021, 6, 7, h, m, 0, 0, time.UTC)
}

func TestSimBuySellRoundTrip(t *testing.T) {
	sim := NewSim(10000, 1)
	sim.UpdateValue("AAPL", 100, simTime(15, 0))

	order, err := sim.BuyStock("AAPL")
	if err != nil {
		t.Fatalf("BuyStock: %v", err)
	}
	if order.Side != model.SideBuy || order.Qty != 100 {
		t.Fatalf("unexpected order %+v", order)
	}

	pos, err := sim.GetPosition("AAPL")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos == nil || pos.Qty != 100 || pos.EntrancePrice != 100 {
		t.Fatalf("unexpected position %+v", pos)
	}
	if got := sim.Cash(); got != 0 {
		t.Fatalf("cash after full buy = %v, want 0", got)
	}

	sim.UpdateValue("AAPL", 110, simTime(15, 30))
	if _, err := sim.SellStock("AAPL"); err != nil {
		t.Fatalf("SellStock: %v", err)
	}
	if got := sim.Cash(); got != 11000 {
		t.Fatalf("cash after sell = %v, want 11000", got)
	}
	trades := sim.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].PctProfit != 10 {
		t.Fatalf("pct profit = %v, want 10", trades[0].PctProfit)
	}
	if pos, _ := sim.GetPosition("AAPL"); pos != nil {
		t.Fatalf("position should be closed, got %+v", pos)
	}
}

func TestSimBuySplitsCashAcrossSlots(t *testing.T) {
	sim := NewSim(9000, 3)
	sim.UpdateValue("AAPL", 10, simTime(15, 0))
	sim.UpdateValue("MSFT", 10, simTime(15, 0))

	// First buy gets a third of the cash, second gets half the remainder.
	if _, err := sim.BuyStock("AAPL"); err != nil {
		t.Fatalf("BuyStock AAPL: %v", err)
	}
	aapl, _ := sim.GetPosition("AAPL")
	if aapl.Qty != 300 {
		t.Fatalf("AAPL qty = %d, want 300", aapl.Qty)
	}
	if _, err := sim.BuyStock("MSFT"); err != nil {
		t.Fatalf("BuyStock MSFT: %v", err)
	}
	msft, _ := sim.GetPosition("MSFT")
	if msft.Qty != 300 {
		t.Fatalf("MSFT qty = %d, want 300", msft.Qty)
	}
}

func TestSimBuyErrors(t *testing.T) {
	sim := NewSim(1000, 1)
	sim.UpdateValue("AAPL", 100, simTime(15, 0))
	sim.UpdateValue("MSFT", 100, simTime(15, 0))
	sim.UpdateValue("GOOG", 5000, simTime(15, 0))

	if _, err := sim.BuyStock("AAPL"); err != nil {
		t.Fatalf("BuyStock: %v", err)
	}
	if _, err := sim.BuyStock("AAPL"); !errors.Is(err, ErrPositionExists) {
		t.Fatalf("duplicate buy err = %v, want ErrPositionExists", err)
	}
	if _, err := sim.BuyStock("MSFT"); !errors.Is(err, ErrTooManyPositions) {
		t.Fatalf("over-limit buy err = %v, want ErrTooManyPositions", err)
	}

	poor := NewSim(1000, 1)
	poor.UpdateValue("GOOG", 5000, simTime(15, 0))
	if _, err := poor.BuyStock("GOOG"); !errors.Is(err, ErrNotEnoughCash) {
		t.Fatalf("unaffordable buy err = %v, want ErrNotEnoughCash", err)
	}
}

func TestSimSellMissingPosition(t *testing.T) {
	sim := NewSim(1000, 1)
	sim.UpdateValue("AAPL", 100, simTime(15, 0))
	if _, err := sim.SellStock("AAPL"); !errors.Is(err, ErrMissingPosition) {
		t.Fatalf("sell err = %v, want ErrMissingPosition", err)
	}
}

func TestSimLiquidateAndCancelAll(t *testing.T) {
	sim := NewSim(10000, 2)
	sim.UpdateValue("AAPL", 100, simTime(15, 0))
	sim.UpdateValue("MSFT", 50, simTime(15, 0))
	if _, err := sim.BuyStock("AAPL"); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.BuyStock("MSFT"); err != nil {
		t.Fatal(err)
	}

	if err := sim.LiquidateAndCancelAll(); err != nil {
		t.Fatalf("LiquidateAndCancelAll: %v", err)
	}
	positions, err := sim.ListPositions()
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("positions after liquidation = %d, want 0", len(positions))
	}
	if got := sim.Cash(); got != 10000 {
		t.Fatalf("cash after flat liquidation = %v, want 10000", got)
	}
}

func TestSimTradeUpdateHook(t *testing.T) {
	sim := NewSim(10000, 1)
	var updates []model.TradeUpdate
	sim.OnTradeUpdate = func(u model.TradeUpdate) { updates = append(updates, u) }

	sim.UpdateValue("AAPL", 100, simTime(15, 0))
	if _, err := sim.BuyStock("AAPL"); err != nil {
		t.Fatal(err)
	}
	sim.UpdateValue("AAPL", 105, simTime(15, 30))
	if _, err := sim.SellStock("AAPL"); err != nil {
		t.Fatal(err)
	}

	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	if updates[0].Side != model.SideBuy || updates[0].Event != model.EventFill {
		t.Fatalf("unexpected first update %+v", updates[0])
	}
	if updates[1].Side != model.SideSell || updates[1].Price != 105 {
		t.Fatalf("unexpected second update %+v", updates[1])
	}
}

func TestSimEquityMarksOpenPositions(t *testing.T) {
	sim := NewSim(10000, 1)
	sim.UpdateValue("AAPL", 100, simTime(15, 0))
	if _, err := sim.BuyStock("AAPL"); err != nil {
		t.Fatal(err)
	}
	sim.UpdateValue("AAPL", 120, simTime(15, 30))
	if got := sim.Equity(); got != 12000 {
		t.Fatalf("equity = %v, want 12000", got)
	}
}

func TestSimClockUsesSimulatedTime(t *testing.T) {
	sim := NewSim(1000, 1)
	// 15:00 UTC on a June weekday is 10:00 ET, inside the session.
	sim.UpdateValue("AAPL", 100, simTime(15, 0))
	clock, err := sim.GetClock()
	if err != nil {
		t.Fatalf("GetClock: %v", err)
	}
	if !clock.IsOpen {
		t.Fatal("clock should report market open at simulated 15:00 UTC")
	}
	if !clock.NextClose.After(simTime(15, 0)) {
		t.Fatalf("NextClose %v should be after sim time", clock.NextClose)
	}
}
