package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"algotrader/internal/brokerage"
	"algotrader/internal/model"
)

// Decision loop defaults, overridable through ManagerConfig.
const (
	DefaultPollInterval  = 5 * time.Second
	DefaultCleanupMargin = 5 * time.Minute
	DefaultListenerLead  = 4 * time.Hour
)

// BuySelector picks which candidate buy signals to act on. It receives
// every buy signal drained in one cycle and returns the ones to submit, in
// order. The default selector admits a single buy per cycle, the first to
// arrive; a custom selector may rank differently or widen the admission.
type BuySelector func([]model.Signal) []model.Signal

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Brokerage    brokerage.Brokerage
	Signals      <-chan model.Signal
	TradeUpdates <-chan model.TradeUpdate
	MaxPositions int

	PollInterval  time.Duration
	CleanupMargin time.Duration
	ListenerLead  time.Duration

	// StartListener is invoked once per session, ListenerLead before the
	// next open. StopListener is invoked at cleanup and on shutdown; both
	// may be nil when the listener lifecycle is managed externally.
	StartListener func(ctx context.Context)
	StopListener  func()

	// SelectBuys overrides the buy preference order. Nil keeps arrival
	// order.
	SelectBuys BuySelector
}

// Manager is the decision loop. It is the only writer to the brokerage: it
// drains trade updates and signals once per poll cycle, keeps its position
// and open-order view consistent with the broker, and fails closed on
// anything it cannot reconcile.
type Manager struct {
	broker       brokerage.Brokerage
	signals      <-chan model.Signal
	tradeUpdates <-chan model.TradeUpdate
	maxPositions int

	pollInterval  time.Duration
	cleanupMargin time.Duration
	listenerLead  time.Duration

	startListener func(ctx context.Context)
	stopListener  func()
	selectBuys    BuySelector

	positions  map[string]*model.Position
	openOrders map[string]string // symbol -> order ID, at most one per symbol

	clock           brokerage.Clock
	listenerRunning bool
	cleanedUp       bool

	log *slog.Logger

	// now is the wall clock, replaceable in tests.
	now func() time.Time

	// OnOrderResult is called with "ok", "skipped" or "error" after every
	// order attempt.
	OnOrderResult func(side, result string)

	// OnCycle is called with each decision cycle's duration.
	OnCycle func(time.Duration)
}

// NewManager builds a manager around an existing brokerage connection.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		broker:        cfg.Brokerage,
		signals:       cfg.Signals,
		tradeUpdates:  cfg.TradeUpdates,
		maxPositions:  cfg.MaxPositions,
		pollInterval:  cfg.PollInterval,
		cleanupMargin: cfg.CleanupMargin,
		listenerLead:  cfg.ListenerLead,
		startListener: cfg.StartListener,
		stopListener:  cfg.StopListener,
		selectBuys:    cfg.SelectBuys,
		positions:     make(map[string]*model.Position),
		openOrders:    make(map[string]string),
		log:           slog.Default().With(slog.String("component", "manager")),
		now:           time.Now,
	}
	if m.pollInterval <= 0 {
		m.pollInterval = DefaultPollInterval
	}
	if m.cleanupMargin <= 0 {
		m.cleanupMargin = DefaultCleanupMargin
	}
	if m.listenerLead <= 0 {
		m.listenerLead = DefaultListenerLead
	}
	return m
}

// Run executes the decision loop until ctx is cancelled or an
// unrecoverable brokerage condition forces a shutdown. The brokerage is
// left flat on shutdown.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info("trade manager started",
		slog.Duration("poll_interval", m.pollInterval),
		slog.Int("max_positions", m.maxPositions))

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("trade manager stopping", slog.String("reason", "context cancelled"))
			m.shutdown(false)
			return ctx.Err()
		case <-ticker.C:
		}

		start := m.now()
		err := m.Cycle(ctx)
		if m.OnCycle != nil {
			m.OnCycle(m.now().Sub(start))
		}
		if err != nil {
			m.shutdown(true)
			return err
		}
	}
}

// Cycle runs one decision pass: refresh the session clock, manage the
// listener lifecycle, reconcile trade updates, then act on signals.
// Exported so the simulation driver can step the loop deterministically.
func (m *Manager) Cycle(ctx context.Context) error {
	clock, err := m.broker.GetClock()
	if err != nil {
		// A stale clock is survivable for one cycle; keep the last view.
		m.log.Warn("clock refresh failed", slog.String("err", err.Error()))
	} else {
		m.clock = clock
	}

	now := m.now()

	if !m.clock.IsOpen {
		m.cleanedUp = false
		if !m.listenerRunning && m.startListener != nil &&
			!m.clock.NextOpen.IsZero() && m.clock.NextOpen.Sub(now) <= m.listenerLead {
			m.log.Info("starting listener ahead of open", slog.Time("next_open", m.clock.NextOpen))
			m.startListener(ctx)
			m.listenerRunning = true
		}
	}

	if err := m.drainTradeUpdates(); err != nil {
		return err
	}

	if m.clock.IsOpen && !m.clock.NextClose.IsZero() && m.clock.NextClose.Sub(now) <= m.cleanupMargin {
		if !m.cleanedUp {
			m.cleanup()
		}
		// Discard late signals for the rest of the session.
		m.discardSignals()
		return nil
	}

	if m.clock.IsOpen {
		return m.drainSignals()
	}
	m.discardSignals()
	return nil
}

// drainTradeUpdates consumes every queued trade update and reconciles the
// local position and open-order view. A terminal order event means the
// broker state can no longer be trusted; the loop fails closed.
func (m *Manager) drainTradeUpdates() error {
	for {
		select {
		case u, ok := <-m.tradeUpdates:
			if !ok {
				return nil
			}
			if err := m.applyTradeUpdate(u); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (m *Manager) applyTradeUpdate(u model.TradeUpdate) error {
	switch {
	case u.Event == model.EventFill:
		m.applyFill(u)
		return nil
	case model.IsBenignOrderEvent(u.Event):
		m.log.Debug("order event",
			slog.String("symbol", u.Symbol), slog.String("event", u.Event))
		return nil
	case model.IsTerminalOrderEvent(u.Event):
		m.log.Error("terminal order event, shutting down",
			slog.String("symbol", u.Symbol),
			slog.String("order_id", u.OrderID),
			slog.String("event", u.Event))
		return fmt.Errorf("order %s for %s hit terminal event %q", u.OrderID, u.Symbol, u.Event)
	default:
		m.log.Warn("unrecognized order event",
			slog.String("symbol", u.Symbol), slog.String("event", u.Event))
		return nil
	}
}

func (m *Manager) applyFill(u model.TradeUpdate) {
	delete(m.openOrders, u.Symbol)

	switch u.Side {
	case model.SideBuy:
		pos, ok := m.positions[u.Symbol]
		if !ok {
			pos = &model.Position{Symbol: u.Symbol}
			m.positions[u.Symbol] = pos
		}
		pos.EntrancePrice = u.Price
		pos.Filled = true
		m.log.Info("buy filled",
			slog.String("symbol", u.Symbol), slog.Float64("price", u.Price))
	case model.SideSell:
		delete(m.positions, u.Symbol)
		m.log.Info("sell filled",
			slog.String("symbol", u.Symbol), slog.Float64("price", u.Price))
	default:
		m.log.Warn("fill with unknown side",
			slog.String("symbol", u.Symbol), slog.String("side", u.Side))
	}
}

// drainSignals consumes every queued signal. Sells are executed
// immediately; buys are collected, passed through the selector, and
// checked against the position limit, so one cycle opens at most one
// position and can never oversubscribe the limit.
func (m *Manager) drainSignals() error {
	var buys []model.Signal

	for {
		var s model.Signal
		select {
		case sig, ok := <-m.signals:
			if !ok {
				return m.admitBuys(buys)
			}
			s = sig
		default:
			return m.admitBuys(buys)
		}

		switch s.Type {
		case model.SignalSell:
			if err := m.exitPosition(s.Symbol); err != nil {
				return err
			}
		case model.SignalBuy:
			buys = append(buys, s)
		}
	}
}

func (m *Manager) admitBuys(buys []model.Signal) error {
	if len(buys) == 0 {
		return nil
	}
	if m.selectBuys != nil {
		buys = m.selectBuys(buys)
	} else if len(buys) > 1 {
		// One entry per cycle: the rest of this batch is discarded, and
		// symbols still worth holding signal again on a later period.
		buys = buys[:1]
	}

	for _, s := range buys {
		if len(m.positions) >= m.maxPositions {
			m.log.Info("position limit reached, skipping buy signal",
				slog.String("symbol", s.Symbol))
			if m.OnOrderResult != nil {
				m.OnOrderResult(model.SideBuy, "skipped")
			}
			continue
		}
		if err := m.enterPosition(s.Symbol); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) enterPosition(symbol string) error {
	if _, ok := m.positions[symbol]; ok {
		m.log.Warn("buy signal for symbol already held", slog.String("symbol", symbol))
		return nil
	}

	order, err := m.broker.BuyStock(symbol)
	switch {
	case err == nil:
		m.positions[symbol] = &model.Position{Symbol: symbol, Qty: order.Qty}
		m.openOrders[symbol] = order.ID
		m.log.Info("buy order submitted",
			slog.String("symbol", symbol), slog.String("order_id", order.ID))
		m.orderResult(model.SideBuy, "ok")
		return nil
	case errors.Is(err, brokerage.ErrPositionExists), errors.Is(err, brokerage.ErrTooManyPositions):
		// Local view disagrees with the broker; resync instead of guessing.
		m.log.Error("buy rejected, resynchronizing account",
			slog.String("symbol", symbol), slog.String("err", err.Error()))
		m.orderResult(model.SideBuy, "error")
		return m.synchronizeAccount()
	case errors.Is(err, brokerage.ErrNotEnoughCash):
		m.log.Warn("not enough cash for buy", slog.String("symbol", symbol))
		m.orderResult(model.SideBuy, "skipped")
		return nil
	default:
		m.log.Error("buy order failed",
			slog.String("symbol", symbol), slog.String("err", err.Error()))
		m.orderResult(model.SideBuy, "error")
		return nil
	}
}

func (m *Manager) exitPosition(symbol string) error {
	if orderID, ok := m.openOrders[symbol]; ok {
		// A sell while an order is still open would double-spend the
		// position; the view is broken.
		m.log.Error("sell signal while order still open, shutting down",
			slog.String("symbol", symbol), slog.String("order_id", orderID))
		return fmt.Errorf("open order %s for %s at sell time", orderID, symbol)
	}
	if _, ok := m.positions[symbol]; !ok {
		m.log.Warn("sell signal for symbol not held", slog.String("symbol", symbol))
		return nil
	}

	order, err := m.broker.SellStock(symbol)
	switch {
	case err == nil:
		m.openOrders[symbol] = order.ID
		m.log.Info("sell order submitted",
			slog.String("symbol", symbol), slog.String("order_id", order.ID))
		m.orderResult(model.SideSell, "ok")
		return nil
	case errors.Is(err, brokerage.ErrMissingPosition):
		m.log.Error("sell rejected, resynchronizing account",
			slog.String("symbol", symbol), slog.String("err", err.Error()))
		m.orderResult(model.SideSell, "error")
		return m.synchronizeAccount()
	default:
		m.log.Error("sell order failed",
			slog.String("symbol", symbol), slog.String("err", err.Error()))
		m.orderResult(model.SideSell, "error")
		return nil
	}
}

// synchronizeAccount replaces the local position view with the broker's.
// Brokerages that cannot enumerate positions leave no safe way to recover,
// so the loop fails closed on ErrNotSupported.
func (m *Manager) synchronizeAccount() error {
	listed, err := m.broker.ListPositions()
	if err != nil {
		if errors.Is(err, brokerage.ErrNotSupported) {
			m.log.Error("brokerage cannot list positions, shutting down")
			return fmt.Errorf("account resync: %w", err)
		}
		m.log.Error("position listing failed", slog.String("err", err.Error()))
		return fmt.Errorf("account resync: %w", err)
	}

	m.positions = make(map[string]*model.Position, len(listed))
	for i := range listed {
		pos := listed[i]
		m.positions[pos.Symbol] = &pos
	}
	// Orders for symbols with no position and no pending buy are stale.
	for symbol := range m.openOrders {
		if _, ok := m.positions[symbol]; !ok {
			delete(m.openOrders, symbol)
		}
	}
	m.log.Info("account resynchronized", slog.Int("positions", len(m.positions)))
	return nil
}

// cleanup flattens the account ahead of the close and stops the listener
// for the session.
func (m *Manager) cleanup() {
	m.log.Info("session cleanup, liquidating all positions",
		slog.Time("next_close", m.clock.NextClose))
	if err := m.broker.LiquidateAndCancelAll(); err != nil {
		m.log.Error("liquidation failed", slog.String("err", err.Error()))
	}
	m.positions = make(map[string]*model.Position)
	m.openOrders = make(map[string]string)
	if m.stopListener != nil && m.listenerRunning {
		m.stopListener()
		m.listenerRunning = false
	}
	m.cleanedUp = true
}

// shutdown leaves the account flat. liquidate is false when the account
// was already cleaned up through the normal end-of-session path.
func (m *Manager) shutdown(liquidate bool) {
	if m.stopListener != nil && m.listenerRunning {
		m.stopListener()
		m.listenerRunning = false
	}
	if liquidate || !m.cleanedUp {
		if err := m.broker.LiquidateAndCancelAll(); err != nil {
			m.log.Error("shutdown liquidation failed", slog.String("err", err.Error()))
		}
	}
	m.positions = make(map[string]*model.Position)
	m.openOrders = make(map[string]string)
}

func (m *Manager) discardSignals() {
	for {
		select {
		case s, ok := <-m.signals:
			if !ok {
				return
			}
			m.log.Debug("discarding signal outside trading window",
				slog.String("symbol", s.Symbol), slog.String("type", string(s.Type)))
		default:
			return
		}
	}
}

func (m *Manager) orderResult(side, result string) {
	if m.OnOrderResult != nil {
		m.OnOrderResult(side, result)
	}
}

// Positions returns a snapshot of the manager's local position view.
func (m *Manager) Positions() []model.Position {
	out := make([]model.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}
