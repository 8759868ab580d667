// Package trader runs the live trading pipeline: a Listener turns the quote
// stream into per-symbol periods and signals, and a Manager consumes those
// signals against the brokerage on a fixed poll cycle.
package trader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
	"algotrader/internal/strategy"
)

// Default clock boundary for the Tracking->Buy transition. 14:30 UTC is the
// regular session open in exchange time; before it, strategies observe
// pre-market periods without becoming eligible to trade.
const (
	DefaultBuyBoundaryHour   = 14
	DefaultBuyBoundaryMinute = 30
)

// StrategyFactory builds a fresh strategy instance for one symbol.
type StrategyFactory func() strategy.Strategy

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Symbols     []string
	Timeframe   int // period length, seconds
	NewStrategy StrategyFactory

	// Signals receives gated trading signals. When nil the listener runs
	// in period mode and only emits to Periods. Bidirectional because the
	// overflow policy evicts the oldest queued signal to admit the new
	// one.
	Signals chan model.Signal

	// Periods optionally receives every closed period.
	Periods chan<- model.PeriodMessage

	// BuyBoundaryHour/Minute override the UTC time of day at which
	// Tracking strategies become eligible to buy. Zero values keep the
	// defaults.
	BuyBoundaryHour   int
	BuyBoundaryMinute int
}

type symbolUnit struct {
	agg   *agg.Aggregator
	strat strategy.Strategy
}

// Listener is the per-session ingestion unit. It owns one aggregator and
// one strategy state machine per symbol and drives them from the quote
// channel. Quotes for unknown symbols are ignored.
type Listener struct {
	units       map[string]*symbolUnit
	signals     chan model.Signal
	periods     chan<- model.PeriodMessage
	boundaryHr  int
	boundaryMin int
	log         *slog.Logger

	stopOnce sync.Once
	stopped  chan struct{}

	// OnSignal is called for every admitted signal, whether or not it is
	// delivered. Used for publishing and metrics.
	OnSignal func(model.Signal)

	// OnDroppedSignal is called when the signal channel is full and a
	// signal is discarded.
	OnDroppedSignal func(model.Signal)

	// OnPeriodClosed is called after every closed period, before the
	// strategy is evaluated.
	OnPeriodClosed func(symbol string, p model.Period)
}

// NewListener creates a listener with one aggregator and one strategy per
// configured symbol.
func NewListener(cfg ListenerConfig) *Listener {
	hr, min := cfg.BuyBoundaryHour, cfg.BuyBoundaryMinute
	if hr == 0 && min == 0 {
		hr, min = DefaultBuyBoundaryHour, DefaultBuyBoundaryMinute
	}

	units := make(map[string]*symbolUnit, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		var strat strategy.Strategy
		if cfg.NewStrategy != nil {
			strat = cfg.NewStrategy()
		}
		units[symbol] = &symbolUnit{
			agg:   agg.New(cfg.Timeframe),
			strat: strat,
		}
	}

	return &Listener{
		units:       units,
		signals:     cfg.Signals,
		periods:     cfg.Periods,
		boundaryHr:  hr,
		boundaryMin: min,
		log:         slog.Default().With(slog.String("component", "listener")),
		stopped:     make(chan struct{}),
	}
}

// Run consumes the quote channel until ctx is cancelled, the channel is
// closed, or Stop is called.
func (l *Listener) Run(ctx context.Context, quotes <-chan model.QuoteMessage) {
	l.log.Info("listener started", slog.Int("symbols", len(l.units)))
	defer l.log.Info("listener stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopped:
			return
		case msg, ok := <-quotes:
			if !ok {
				return
			}
			l.HandleQuote(msg.Symbol, msg.Quote)
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// HandleQuote feeds one quote into the symbol's aggregator and, when a
// period closes, evaluates the strategy. Exported so the offline replay
// path can drive the listener without a channel.
func (l *Listener) HandleQuote(symbol string, q model.Quote) {
	unit, ok := l.units[symbol]
	if !ok {
		return
	}

	if !unit.agg.ProcessQuote(q) {
		return
	}

	closed := unit.agg.Period(unit.agg.NumPeriods() - 1)
	if l.OnPeriodClosed != nil {
		l.OnPeriodClosed(symbol, closed)
	}
	if l.periods != nil {
		l.emitPeriod(model.PeriodMessage{Symbol: symbol, Period: closed})
	}
	if unit.strat == nil || l.signals == nil {
		return
	}

	unit.strat.UpdateAnalyzerVals(unit.agg)

	// Strategies track without trading until the session boundary passes.
	if unit.strat.State() == strategy.StateTracking && !q.Timestamp.Before(l.buyBoundary(q.Timestamp)) {
		unit.strat.SetState(strategy.StateBuy)
	}

	switch action := unit.strat.GenerateSignal(); {
	case unit.strat.State() == strategy.StateBuy && action == strategy.ActionBuy:
		l.emitSignal(model.Signal{Symbol: symbol, Type: model.SignalBuy, Timestamp: q.Timestamp})
		unit.strat.SetState(strategy.StateSell)
	case unit.strat.State() == strategy.StateSell && action == strategy.ActionSell:
		l.emitSignal(model.Signal{Symbol: symbol, Type: model.SignalSell, Timestamp: q.Timestamp})
		unit.strat.SetState(strategy.StateBuy)
	}
}

// buyBoundary returns the Tracking->Buy boundary on the quote's UTC day.
func (l *Listener) buyBoundary(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), l.boundaryHr, l.boundaryMin, 0, 0, time.UTC)
}

func (l *Listener) emitSignal(s model.Signal) {
	if l.OnSignal != nil {
		l.OnSignal(s)
	}
	select {
	case l.signals <- s:
		return
	default:
	}

	// Queue full: evict the oldest so the freshest signal survives. The
	// strategy state has already flipped, so dropping the new signal
	// would lose the trade outright instead of delaying it.
	select {
	case old := <-l.signals:
		l.log.Warn("signal queue full, evicting oldest",
			slog.String("symbol", old.Symbol), slog.String("type", string(old.Type)))
		if l.OnDroppedSignal != nil {
			l.OnDroppedSignal(old)
		}
	default:
	}

	select {
	case l.signals <- s:
	default:
		// Lost the race for the freed slot.
		l.log.Warn("signal queue full, dropping signal",
			slog.String("symbol", s.Symbol), slog.String("type", string(s.Type)))
		if l.OnDroppedSignal != nil {
			l.OnDroppedSignal(s)
		}
	}
}

func (l *Listener) emitPeriod(p model.PeriodMessage) {
	select {
	case l.periods <- p:
	default:
		l.log.Warn("period channel full, dropping period", slog.String("symbol", p.Symbol))
	}
}
