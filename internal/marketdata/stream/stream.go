// Package stream provides the market data transport: a live WebSocket feed
// and an offline replay feed, both delivering quotes and trade updates to
// registered callbacks.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"algotrader/internal/model"
)

// Feed delivers market data to registered callbacks. Subscriptions must be
// registered before Run; Run blocks and drives the event loop.
type Feed interface {
	SubscribeQuotes(symbol string, fn func(model.Quote))
	SubscribeTradeUpdates(fn func(model.TradeUpdate))
	Run(ctx context.Context) error
}

// Config holds configuration for the live stream.
type Config struct {
	// URL of the data WebSocket, e.g. "wss://stream.broker.example/v2".
	URL string

	// Key/Secret authenticate the stream connection. Empty values skip
	// the auth message for unauthenticated test servers.
	Key    string
	Secret string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// wireMessage is the JSON envelope used on the feed.
type wireMessage struct {
	Type        string             `json:"type"`
	Symbol      string             `json:"symbol,omitempty"`
	Quote       *model.Quote       `json:"quote,omitempty"`
	TradeUpdate *model.TradeUpdate `json:"trade_update,omitempty"`
}

type authMessage struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeMessage struct {
	Action string   `json:"action"`
	Quotes []string `json:"quotes"`
}

// Stream is the live feed client. It reconnects with exponential backoff
// and resubscribes on every new connection. Callbacks run on the read
// goroutine, so they must not block.
type Stream struct {
	cfg       Config
	quoteSubs map[string][]func(model.Quote)
	tradeSubs []func(model.TradeUpdate)
	log       *slog.Logger

	// OnReconnect is called each time a reconnection happens.
	OnReconnect func()
}

// New creates a stream client. Returns an error if the URL is unparseable.
func New(cfg Config) (*Stream, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Stream{
		cfg:       cfg,
		quoteSubs: make(map[string][]func(model.Quote)),
		log:       slog.Default().With(slog.String("component", "stream")),
	}, nil
}

// SubscribeQuotes registers fn for quotes of symbol. Must be called before
// Run.
func (s *Stream) SubscribeQuotes(symbol string, fn func(model.Quote)) {
	s.quoteSubs[symbol] = append(s.quoteSubs[symbol], fn)
}

// SubscribeTradeUpdates registers fn for all trade updates. Must be called
// before Run.
func (s *Stream) SubscribeTradeUpdates(fn func(model.TradeUpdate)) {
	s.tradeSubs = append(s.tradeSubs, fn)
}

// Run connects to the feed and dispatches messages until ctx is cancelled.
// Reconnects automatically on disconnect.
func (s *Stream) Run(ctx context.Context) error {
	delay := s.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := s.runOnce(ctx)
		if err == nil {
			return nil
		}

		s.log.Warn("feed disconnected, reconnecting",
			slog.String("err", err.Error()), slog.Duration("delay", delay))
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel.
func (s *Stream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.log.Info("connected to feed", slog.String("url", s.cfg.URL))

	if s.cfg.Key != "" {
		if err := conn.WriteJSON(authMessage{Action: "auth", Key: s.cfg.Key, Secret: s.cfg.Secret}); err != nil {
			return err
		}
	}
	symbols := make([]string, 0, len(s.quoteSubs))
	for symbol := range s.quoteSubs {
		symbols = append(symbols, symbol)
	}
	if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Quotes: symbols}); err != nil {
		return err
	}

	// Closes the connection when ctx is cancelled so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn("unparseable feed message", slog.String("err", err.Error()))
			continue
		}

		switch msg.Type {
		case "quote":
			if msg.Quote == nil || msg.Symbol == "" {
				continue
			}
			for _, fn := range s.quoteSubs[msg.Symbol] {
				fn(*msg.Quote)
			}
		case "trade_update":
			if msg.TradeUpdate == nil {
				continue
			}
			for _, fn := range s.tradeSubs {
				fn(*msg.TradeUpdate)
			}
		default:
			// Control frames (subscription acks, errors) are logged only.
			s.log.Debug("feed control message", slog.String("type", msg.Type))
		}
	}
}
