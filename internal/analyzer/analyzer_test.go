package analyzer

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// feedPeriods appends closed periods with the given closes to a fresh
// aggregator, with highs/lows a fixed band around the close.
func feedPeriods(a *agg.Aggregator, closes ...float64) {
	start := time.Date(2021, 12, 1, 14, 30, 0, 0, time.UTC)
	n := a.NumPeriods()
	for i, c := range closes {
		idx := n + i
		a.ProcessPeriod(model.Period{
			Timeframe: a.Timeframe(),
			StartTime: start.Add(time.Duration(idx*a.Timeframe()) * time.Second),
			EndTime:   start.Add(time.Duration((idx+1)*a.Timeframe()) * time.Second),
			Open:      c,
			Close:     c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Volume:    100,
		})
	}
}

func TestSMA_MatchesArithmeticMean(t *testing.T) {
	const length = 7
	rng := rand.New(rand.NewSource(7))
	a := agg.New(60)
	sma := NewSMA(length)

	var closes []float64
	for i := 0; i < 50; i++ {
		c := 100 + rng.Float64()*20
		closes = append(closes, c)
		feedPeriods(a, c)
		sma.UpdateValues(a)
	}

	avgs := sma.Averages()
	if len(avgs) != 50-length+1 {
		t.Fatalf("expected %d averages, got %d", 50-length+1, len(avgs))
	}
	for i, avg := range avgs {
		// Average i is computed at closed period index i+length-1.
		var want float64
		for _, c := range closes[i : i+length] {
			want += c
		}
		want /= length
		if math.Abs(avg-want) > 1e-9 {
			t.Fatalf("average %d: expected %v, got %v", i, want, avg)
		}
	}
}

func TestSMA_NoAppendBeforeWarmUp(t *testing.T) {
	a := agg.New(60)
	sma := NewSMA(10)
	feedPeriods(a, 1, 2, 3)
	sma.UpdateValues(a)
	if len(sma.Averages()) != 0 {
		t.Errorf("expected no averages with insufficient history, got %d", len(sma.Averages()))
	}
}

func TestUpdateValues_IdempotentWithoutNewPeriod(t *testing.T) {
	a := agg.New(60)
	feedPeriods(a, 1, 2, 3, 4, 5, 6)

	analyzers := []Analyzer{
		NewSMA(3), NewEMA(3), NewLSMA(3), NewALMA(3), NewVWMA(3), NewMACD(), NewPSAR(),
	}
	lengths := func() []int {
		out := []int{}
		for _, an := range analyzers {
			switch v := an.(type) {
			case MovingAverage:
				out = append(out, len(v.Averages()))
			case *MACD:
				out = append(out, len(v.SignalValues()))
			case *PSAR:
				out = append(out, len(v.Values()))
			}
		}
		return out
	}

	for _, an := range analyzers {
		an.UpdateValues(a)
	}
	before := lengths()

	// Same closed-period count: repeated calls must append nothing.
	for _, an := range analyzers {
		an.UpdateValues(a)
		an.UpdateValues(a)
	}
	after := lengths()

	for i := range before {
		if before[i] != after[i] {
			t.Errorf("analyzer %s appended without a new closed period: %d -> %d",
				analyzers[i].Name(), before[i], after[i])
		}
	}
}

func TestEMA_SeedAndRecurrence(t *testing.T) {
	a := agg.New(60)
	e := NewEMA(4)
	feedPeriods(a, 10, 12, 14, 16)
	e.UpdateValues(a)

	avgs := e.Averages()
	if len(avgs) != 1 {
		t.Fatalf("expected seed value, got %d values", len(avgs))
	}
	if avgs[0] != 13.0 {
		t.Errorf("seed should be mean of first 4 closes, got %v", avgs[0])
	}

	feedPeriods(a, 20)
	e.UpdateValues(a)
	mult := 2.0 / 5.0
	want := 20*mult + 13.0*(1-mult)
	if math.Abs(e.Averages()[1]-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, e.Averages()[1])
	}
}

func TestLSMA_ExactOnLinearSeries(t *testing.T) {
	// y = 3 + 2x for x=1..5 oldest-first: intercept must be exactly 3.
	a := agg.New(60)
	l := NewLSMA(5)
	feedPeriods(a, 5, 7, 9, 11, 13)
	l.UpdateValues(a)

	avgs := l.Averages()
	if len(avgs) != 1 {
		t.Fatalf("expected 1 value, got %d", len(avgs))
	}
	if math.Abs(avgs[0]-3.0) > 1e-9 {
		t.Errorf("expected intercept 3.0, got %v", avgs[0])
	}
}

func TestALMA_NormalizationOnConstantSeries(t *testing.T) {
	// The weight sum divides out exactly: a constant series must map to the
	// constant for any spread/offset shape.
	const c = 42.5
	shapes := []struct{ sigma, offset float64 }{
		{6, 0.85}, {3, 0.85}, {12, 0.85}, {6, 0.0}, {6, 0.5}, {6, 1.0},
	}
	for _, shape := range shapes {
		a := agg.New(60)
		m := NewALMAWithShape(9, shape.sigma, shape.offset)
		feedPeriods(a, c, c, c, c, c, c, c, c, c)
		m.UpdateValues(a)
		if len(m.Averages()) != 1 {
			t.Fatalf("sigma=%v offset=%v: expected 1 value", shape.sigma, shape.offset)
		}
		if math.Abs(m.Averages()[0]-c) > 1e-9 {
			t.Errorf("sigma=%v offset=%v: expected %v, got %v",
				shape.sigma, shape.offset, c, m.Averages()[0])
		}
	}
}

func TestALMA_WeightsFavorRecentCloses(t *testing.T) {
	// offset 0.85 puts the weight peak near the newest close.
	a := agg.New(60)
	m := NewALMA(5)
	feedPeriods(a, 10, 10, 10, 10, 20)
	m.UpdateValues(a)

	got := m.Averages()[0]
	if got <= 12.0 {
		t.Errorf("expected output pulled toward recent close, got %v", got)
	}
}

func TestVWMA_WeightsByVolume(t *testing.T) {
	start := time.Date(2021, 12, 1, 14, 30, 0, 0, time.UTC)
	a := agg.New(60)
	mk := func(i int, close float64, vol int64) model.Period {
		return model.Period{
			Timeframe: 60,
			StartTime: start.Add(time.Duration(i*60) * time.Second),
			EndTime:   start.Add(time.Duration((i+1)*60) * time.Second),
			Open:      close, Close: close, High: close, Low: close,
			Volume: vol,
		}
	}
	a.ProcessPeriod(mk(0, 10, 100))
	a.ProcessPeriod(mk(1, 20, 300))

	v := NewVWMA(2)
	v.UpdateValues(a)

	want := (10.0*100 + 20.0*300) / 400.0
	if math.Abs(v.Averages()[0]-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, v.Averages()[0])
	}
}

func TestMACD_SentinelsAndConvergence(t *testing.T) {
	a := agg.New(60)
	m := NewMACDWithLengths(3, 5, 2)

	// Constant series: fast == slow once both are seeded, so the oscillator
	// is exactly zero and the signal line follows.
	for i := 0; i < 10; i++ {
		feedPeriods(a, 100)
		m.UpdateValues(a)
	}

	if n := len(m.MACDValues()); n != 6 {
		t.Fatalf("expected 6 oscillator values (periods 5..10), got %d", n)
	}
	for i, v := range m.MACDValues() {
		if v != 0 {
			t.Errorf("macd value %d: expected 0, got %v", i, v)
		}
	}

	sig := m.SignalValues()
	if len(sig) != 10 {
		t.Fatalf("expected one signal entry per update, got %d", len(sig))
	}
	if !IsUnavailable(sig[0]) {
		t.Error("signal must start unavailable")
	}
	last := sig[len(sig)-1]
	if IsUnavailable(last) || last != 0 {
		t.Errorf("signal should converge to 0, got %v", last)
	}
}

func TestPSAR_RisingSeriesKeepsRisingStop(t *testing.T) {
	a := agg.New(60)
	p := NewPSAR()

	// 5-period warm-up establishing a rising direction.
	feedPeriods(a, 100, 101, 102, 103, 104)
	p.UpdateValues(a)

	if len(p.Values()) != 1 {
		t.Fatalf("expected initial stop after warm-up, got %d values", len(p.Values()))
	}
	if !p.IsRising() {
		t.Fatal("expected initial direction rising")
	}
	// Initial stop is the warm-up window's lowest low.
	if got := p.Values()[0]; got != 99.5 {
		t.Errorf("expected initial stop 99.5, got %v", got)
	}

	// 10 strictly rising periods: direction must stay rising and the stop
	// must monotonically increase.
	for i := 1; i <= 10; i++ {
		feedPeriods(a, 104+float64(i))
		p.UpdateValues(a)
		if !p.IsRising() {
			t.Fatalf("period %d: direction flipped on a rising series", i)
		}
	}
	vals := p.Values()
	if len(vals) != 11 {
		t.Fatalf("expected 11 stop values, got %d", len(vals))
	}
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			t.Fatalf("stop not monotonically increasing at %d: %v -> %v", i, vals[i-1], vals[i])
		}
	}
}

func TestPSAR_FlipResetsAccelAndExtremes(t *testing.T) {
	a := agg.New(60)
	p := NewPSARWithSteps(0.02, 0.2)

	feedPeriods(a, 100, 101, 102, 103, 104)
	p.UpdateValues(a)
	for i := 1; i <= 3; i++ {
		feedPeriods(a, 104+float64(i))
		p.UpdateValues(a)
	}
	if !p.IsRising() {
		t.Fatal("setup should be rising")
	}

	// Crash far below the stop: trend must flip and the stop must reset to
	// the highest extreme seen.
	feedPeriods(a, 80)
	p.UpdateValues(a)

	if p.IsRising() {
		t.Fatal("expected flip to falling")
	}
	vals := p.Values()
	flipStop := vals[len(vals)-1]
	if flipStop != 107.5 {
		t.Errorf("expected stop reset to high extreme 107.5, got %v", flipStop)
	}

	// After the flip the stop advances downward.
	feedPeriods(a, 79)
	p.UpdateValues(a)
	next := p.Values()[len(p.Values())-1]
	if next >= flipStop {
		t.Errorf("falling stop should decrease: %v -> %v", flipStop, next)
	}
}

func TestPSAR_NoValuesBeforeWarmUp(t *testing.T) {
	a := agg.New(60)
	p := NewPSAR()
	feedPeriods(a, 1, 2, 3, 4)
	p.UpdateValues(a)
	if len(p.Values()) != 0 {
		t.Errorf("expected no stop values before warm-up, got %d", len(p.Values()))
	}
}
