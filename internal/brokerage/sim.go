package brokerage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"algotrader/internal/markethours"
	"algotrader/internal/model"
)

// Trade records a completed round trip in the simulation journal.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Qty        int64     `json:"quantity"`
	EnterValue float64   `json:"enter_value"`
	EnterTime  time.Time `json:"enter_time"`
	SellValue  float64   `json:"sell_value"`
	SellTime   time.Time `json:"sell_time"`
	PctProfit  float64   `json:"pct_profit"`
}

type simPosition struct {
	qty        int64
	enterValue float64
	enterTime  time.Time
}

type lastValue struct {
	value     float64
	timestamp time.Time
}

// Sim is the deterministic in-memory brokerage used for backtesting. Orders
// fill immediately at the last seen bid for the symbol; buys are sized by
// dividing available cash across the remaining position slots.
type Sim struct {
	mu           sync.Mutex
	cash         float64
	maxPositions int
	positions    map[string]simPosition
	values       map[string]lastValue
	trades       []Trade
	numBuys      int
	numSells     int
	orderSeq     int64
	now          time.Time // latest quote timestamp, drives the clock

	log *slog.Logger

	// OnTradeUpdate, when set, receives the synchronous fill notification
	// for every simulated order.
	OnTradeUpdate func(model.TradeUpdate)
}

// NewSim creates a simulated brokerage with the given starting cash and
// position limit.
func NewSim(initialCash float64, maxPositions int) *Sim {
	return &Sim{
		cash:         initialCash,
		maxPositions: maxPositions,
		positions:    make(map[string]simPosition),
		values:       make(map[string]lastValue),
		log:          slog.Default().With(slog.String("component", "sim_broker")),
	}
}

// UpdateValue records the latest observed market value for symbol and
// advances the simulated clock.
func (s *Sim) UpdateValue(symbol string, value float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[symbol] = lastValue{value: value, timestamp: ts}
	if ts.After(s.now) {
		s.now = ts
	}
}

// GetPosition returns the open position for symbol, or nil.
func (s *Sim) GetPosition(symbol string) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[symbol]
	if !ok {
		return nil, nil
	}
	return &model.Position{
		Symbol:        symbol,
		Qty:           pos.qty,
		EntrancePrice: pos.enterValue,
		Filled:        true,
	}, nil
}

// BuyStock opens a position sized by the cash available for one slot.
func (s *Sim) BuyStock(symbol string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[symbol]; ok {
		s.log.Error("attempted to buy position that was already open", slog.String("symbol", symbol))
		return model.Order{}, fmt.Errorf("%s: %w", symbol, ErrPositionExists)
	}
	if len(s.positions) >= s.maxPositions {
		s.log.Error("open positions at configured limit",
			slog.Int("open", len(s.positions)), slog.Int("max", s.maxPositions))
		return model.Order{}, ErrTooManyPositions
	}

	lv, ok := s.values[symbol]
	if !ok {
		return model.Order{}, fmt.Errorf("no market value seen for %s", symbol)
	}

	availCash := s.cash / float64(s.maxPositions-len(s.positions))
	qty := int64(availCash / lv.value)
	if qty < 1 {
		s.log.Error("not enough cash to buy stock", slog.String("symbol", symbol))
		return model.Order{}, ErrNotEnoughCash
	}

	s.log.Info("buying stock",
		slog.String("symbol", symbol), slog.Int64("qty", qty), slog.Float64("value", lv.value))

	s.positions[symbol] = simPosition{qty: qty, enterValue: lv.value, enterTime: lv.timestamp}
	s.cash -= float64(qty) * lv.value
	s.numBuys++

	order := s.newOrderLocked(symbol, model.SideBuy, qty)
	s.notifyFillLocked(order, lv)
	return order, nil
}

// SellStock closes the full position at the last seen value.
func (s *Sim) SellStock(symbol string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[symbol]
	if !ok {
		s.log.Error("attempted to sell position which does not exist", slog.String("symbol", symbol))
		return model.Order{}, fmt.Errorf("%s: %w", symbol, ErrMissingPosition)
	}

	lv := s.values[symbol]
	profit := (lv.value - pos.enterValue) * float64(pos.qty)
	pctProfit := (lv.value - pos.enterValue) / pos.enterValue * 100

	s.log.Info("selling position",
		slog.String("symbol", symbol), slog.Int64("qty", pos.qty),
		slog.Float64("profit", profit), slog.Float64("pct", pctProfit))

	delete(s.positions, symbol)
	s.cash += lv.value * float64(pos.qty)
	s.numSells++
	s.trades = append(s.trades, Trade{
		Symbol:     symbol,
		Qty:        pos.qty,
		EnterValue: pos.enterValue,
		EnterTime:  pos.enterTime,
		SellValue:  lv.value,
		SellTime:   lv.timestamp,
		PctProfit:  pctProfit,
	})

	order := s.newOrderLocked(symbol, model.SideSell, pos.qty)
	s.notifyFillLocked(order, lv)
	return order, nil
}

// GetClock answers the session clock at the simulated time (latest quote
// timestamp seen; wall clock before any quote arrives).
func (s *Sim) GetClock() (Clock, error) {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Clock{
		IsOpen:    markethours.IsMarketOpen(now),
		NextOpen:  markethours.NextOpen(now),
		NextClose: markethours.NextClose(now),
	}, nil
}

// LiquidateAndCancelAll sells every open position, best-effort.
func (s *Sim) LiquidateAndCancelAll() error {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.positions))
	for symbol := range s.positions {
		symbols = append(symbols, symbol)
	}
	s.mu.Unlock()

	for _, symbol := range symbols {
		if _, err := s.SellStock(symbol); err != nil {
			s.log.Error("liquidation sell failed",
				slog.String("symbol", symbol), slog.String("err", err.Error()))
		}
	}
	return nil
}

// ListPositions returns a snapshot of all open positions.
func (s *Sim) ListPositions() ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Position, 0, len(s.positions))
	for symbol, pos := range s.positions {
		out = append(out, model.Position{
			Symbol:        symbol,
			Qty:           pos.qty,
			EntrancePrice: pos.enterValue,
			Filled:        true,
		})
	}
	return out, nil
}

// Equity returns cash plus the marked value of all open positions.
func (s *Sim) Equity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	equity := s.cash
	for symbol, pos := range s.positions {
		equity += float64(pos.qty) * s.values[symbol].value
	}
	return equity
}

// Cash returns the uninvested cash balance.
func (s *Sim) Cash() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash
}

// Trades returns the completed round-trip journal.
func (s *Sim) Trades() []Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// NumBuys returns the count of filled buy orders.
func (s *Sim) NumBuys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numBuys
}

// NumSells returns the count of filled sell orders.
func (s *Sim) NumSells() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numSells
}

func (s *Sim) newOrderLocked(symbol, side string, qty int64) model.Order {
	s.orderSeq++
	return model.Order{
		ID:     fmt.Sprintf("SIM-%d", s.orderSeq),
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Status: "filled",
	}
}

func (s *Sim) notifyFillLocked(order model.Order, lv lastValue) {
	if s.OnTradeUpdate == nil {
		return
	}
	s.OnTradeUpdate(model.TradeUpdate{
		Symbol:    order.Symbol,
		OrderID:   order.ID,
		Event:     model.EventFill,
		Timestamp: lv.timestamp,
		Price:     lv.value,
		Side:      order.Side,
	})
}
