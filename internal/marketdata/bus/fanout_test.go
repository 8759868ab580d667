package bus

import (
	"context"
	"testing"
	"time"

	"algotrader/internal/model"
)

func TestFanOutBroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.PeriodMessage, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.PeriodMessage{
		Symbol: "AAPL",
		Period: model.Period{Timeframe: 60, Open: 100, Close: 105, High: 110, Low: 90},
	}

	for i, out := range []<-chan model.PeriodMessage{out1, out2} {
		select {
		case msg := <-out:
			if msg.Symbol != "AAPL" || msg.Period.Close != 105 {
				t.Errorf("subscriber %d: unexpected message %+v", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out waiting for period", i)
		}
	}
}

func TestFanOutDropsForSlowConsumer(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe()

	dropped := make(chan int, 10)
	fo.OnDrop = func(idx int) { dropped <- idx }

	input := make(chan model.PeriodMessage, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	// Capacity one, two sends: the second must be dropped, not block.
	input <- model.PeriodMessage{Symbol: "AAPL"}
	input <- model.PeriodMessage{Symbol: "MSFT"}

	select {
	case idx := <-dropped:
		if idx != 0 {
			t.Fatalf("dropped for subscriber %d, want 0", idx)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drop callback")
	}

	if msg := <-slow; msg.Symbol != "AAPL" {
		t.Fatalf("first delivered message = %+v, want AAPL", msg)
	}
}

func TestFanOutClosesOutputsWhenInputCloses(t *testing.T) {
	fo := New(1)
	out := fo.Subscribe()

	input := make(chan model.PeriodMessage)
	go fo.Run(context.Background(), input)
	close(input)

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected closed channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output close")
	}
}
