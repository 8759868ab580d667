// Package metrics holds the Prometheus instrumentation for the trading
// pipeline and serves it together with a health endpoint.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading pipeline.
type Metrics struct {
	QuotesTotal   prometheus.Counter
	DroppedQuotes prometheus.Counter
	FeedRecon     prometheus.Counter

	PeriodsTotal   *prometheus.CounterVec // labels: timeframe
	SignalsTotal   *prometheus.CounterVec // labels: type
	DroppedSignals prometheus.Counter

	OrdersTotal   *prometheus.CounterVec // labels: side, result
	OpenPositions prometheus.Gauge
	MarketState   prometheus.Gauge // 0=closed, 1=open
	CycleDur      prometheus.Histogram
}

// New registers and returns all pipeline metrics.
func New() *Metrics {
	m := &Metrics{
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_quotes_total",
			Help: "Total quotes received from the data feed",
		}),
		DroppedQuotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_dropped_quotes_total",
			Help: "Quotes dropped because the pipeline channel was full",
		}),
		FeedRecon: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_feed_reconnects_total",
			Help: "Total data feed reconnection attempts",
		}),
		PeriodsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algotrader_periods_total",
			Help: "Total closed periods (by timeframe)",
		}, []string{"timeframe"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algotrader_signals_total",
			Help: "Total admitted trading signals (by type)",
		}, []string{"type"}),
		DroppedSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_dropped_signals_total",
			Help: "Signals dropped because the decision queue was full",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algotrader_orders_total",
			Help: "Order attempts (by side and result)",
		}, []string{"side", "result"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "algotrader_open_positions",
			Help: "Open positions in the local account view",
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "algotrader_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "algotrader_decision_cycle_duration_seconds",
			Help:    "Decision loop cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.QuotesTotal,
		m.DroppedQuotes,
		m.FeedRecon,
		m.PeriodsTotal,
		m.SignalsTotal,
		m.DroppedSignals,
		m.OrdersTotal,
		m.OpenPositions,
		m.MarketState,
		m.CycleDur,
	)
	return m
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics server on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
		log:  slog.Default().With(slog.String("component", "metrics")),
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", slog.String("err", err.Error()))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
