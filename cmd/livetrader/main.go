// Command livetrader runs the streaming trading daemon: quotes from the
// data feed are aggregated into periods, evaluated by a strategy per
// symbol, and the resulting signals are executed by the decision loop
// against the brokerage. Closed periods fan out to SQLite, Redis and the
// dashboard gateway when those are configured.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"algotrader/config"
	"algotrader/internal/brokerage"
	"algotrader/internal/gateway"
	"algotrader/internal/logger"
	"algotrader/internal/marketdata/bus"
	"algotrader/internal/marketdata/stream"
	"algotrader/internal/metrics"
	"algotrader/internal/model"
	"algotrader/internal/notification"
	redisstore "algotrader/internal/store/redis"
	sqlitestore "algotrader/internal/store/sqlite"
	"algotrader/internal/strategy"
	"algotrader/internal/trader"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[livetrader] starting...")

	cfg := config.Load()
	logger.Init("livetrader", logger.ParseLevel(cfg.LogLevel))

	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[livetrader] no symbols configured")
	}
	if cfg.AccountType != "paper" {
		log.Fatalf("[livetrader] account type %q not supported, only paper trading is wired", cfg.AccountType)
	}

	newStrategy, err := strategy.Factory(cfg.Strategy)
	if err != nil {
		log.Fatalf("[livetrader] %v", err)
	}
	log.Printf("[livetrader] strategy=%s symbols=%v timeframe=%ds", cfg.Strategy, symbols, cfg.Timeframe)

	// ---- Pipeline channels ----
	quoteCh := make(chan model.QuoteMessage, 10000)
	periodCh := make(chan model.PeriodMessage, 1024)
	signalCh := make(chan model.Signal, 256)
	updateCh := make(chan model.TradeUpdate, 256)

	// ---- Metrics ----
	prom := metrics.New()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	// ---- Shutdown plumbing ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Notifications ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	}

	// ---- Brokerage (paper): simulated fills at the latest seen bid ----
	broker := brokerage.NewSim(cfg.InitialCash, cfg.MaxPositions)
	broker.OnTradeUpdate = func(u model.TradeUpdate) {
		select {
		case updateCh <- u:
		default:
			log.Printf("[livetrader] trade update channel full, dropping %s %s", u.Symbol, u.Event)
		}
	}

	// ---- Market data feed ----
	feed, err := stream.New(stream.Config{
		URL:    cfg.DataStreamURL,
		Key:    cfg.BrokerKey,
		Secret: cfg.BrokerSecret,
	})
	if err != nil {
		log.Fatalf("[livetrader] stream init failed: %v", err)
	}
	feed.OnReconnect = func() { prom.FeedRecon.Inc() }
	for _, symbol := range symbols {
		symbol := symbol
		feed.SubscribeQuotes(symbol, func(q model.Quote) {
			prom.QuotesTotal.Inc()
			broker.UpdateValue(symbol, q.BidPrice, q.Timestamp)
			select {
			case quoteCh <- model.QuoteMessage{Symbol: symbol, Quote: q}:
			default:
				prom.DroppedQuotes.Inc()
			}
		})
	}
	feed.SubscribeTradeUpdates(func(u model.TradeUpdate) {
		select {
		case updateCh <- u:
		case <-ctx.Done():
		}
	})
	go func() {
		if err := feed.Run(ctx); err != nil {
			log.Printf("[livetrader] feed stopped: %v", err)
		}
	}()

	// ---- Period fan-out: storage, publishing, dashboard ----
	fanout := bus.New(512)

	if cfg.SQLitePath != "" {
		os.MkdirAll("data", 0o755)
		writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[livetrader] sqlite init failed: %v", err)
		}
		defer writer.Close()
		go writer.Run(ctx, fanout.Subscribe())
	}

	var publisher *redisstore.Publisher
	if cfg.RedisAddr != "" {
		publisher, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[livetrader] redis init failed: %v", err)
		}
		defer publisher.Close()
		go publisher.Run(ctx, fanout.Subscribe())
	}

	var hub *gateway.Hub
	if cfg.GatewayAddr != "" {
		hub = gateway.NewHub()
		go hub.Run(ctx, fanout.Subscribe(), nil)
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.ServeWS)
		go func() {
			log.Printf("[livetrader] gateway listening on %s", cfg.GatewayAddr)
			if err := http.ListenAndServe(cfg.GatewayAddr, mux); err != nil {
				log.Printf("[livetrader] gateway server error: %v", err)
			}
		}()
	}

	go fanout.Run(ctx, periodCh)

	// ---- Ingestion unit, rebuilt fresh for every session ----
	newListener := func() *trader.Listener {
		l := trader.NewListener(trader.ListenerConfig{
			Symbols:     symbols,
			Timeframe:   cfg.Timeframe,
			NewStrategy: newStrategy,
			Signals:     signalCh,
			Periods:     periodCh,
		})
		l.OnPeriodClosed = func(_ string, p model.Period) {
			prom.PeriodsTotal.WithLabelValues(strconv.Itoa(p.Timeframe)).Inc()
		}
		l.OnSignal = func(s model.Signal) {
			prom.SignalsTotal.WithLabelValues(string(s.Type)).Inc()
			if publisher != nil {
				publisher.PublishSignal(ctx, s)
			}
			if hub != nil {
				hub.BroadcastSignal(s)
			}
		}
		l.OnDroppedSignal = func(model.Signal) { prom.DroppedSignals.Inc() }
		return l
	}
	var listener *trader.Listener

	// ---- Decision loop ----
	manager := trader.NewManager(trader.ManagerConfig{
		Brokerage:    broker,
		Signals:      signalCh,
		TradeUpdates: updateCh,
		MaxPositions: cfg.MaxPositions,

		PollInterval:  cfg.PollInterval,
		CleanupMargin: cfg.CleanupMargin,
		ListenerLead:  cfg.ListenerLead,

		StartListener: func(ctx context.Context) {
			listener = newListener()
			go listener.Run(ctx, quoteCh)
		},
		StopListener: func() {
			if listener != nil {
				listener.Stop()
			}
		},
	})
	manager.OnOrderResult = func(side, result string) {
		prom.OrdersTotal.WithLabelValues(side, result).Inc()
	}
	manager.OnCycle = func(d time.Duration) {
		prom.CycleDur.Observe(d.Seconds())
		prom.OpenPositions.Set(float64(len(manager.Positions())))
	}

	// Session state gauge, refreshed off the hot path.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if clock, err := broker.GetClock(); err == nil {
					if clock.IsOpen {
						prom.MarketState.Set(1)
					} else {
						prom.MarketState.Set(0)
					}
				}
			}
		}
	}()

	// ---- Run until signal or manager failure ----
	errCh := make(chan error, 1)
	go func() { errCh <- manager.Run(ctx) }()

	select {
	case sig := <-sigCh:
		log.Printf("[livetrader] received %v, shutting down", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Printf("[livetrader] trade manager failed: %v", err)
			notifier.Send(context.Background(), notification.Alert{
				Level:   notification.AlertCritical,
				Title:   "trade manager shut down",
				Message: err.Error(),
			})
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[livetrader] stopped")
}
