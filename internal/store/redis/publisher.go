// Package redis publishes closed periods and trading signals to Redis
// streams and pub/sub channels for external consumers (dashboards,
// recorders, downstream services).
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"algotrader/internal/model"
)

const (
	// Stream trimming: roughly one session of one-minute periods plus
	// slack.
	periodStreamMaxLen = 500
	signalStreamMaxLen = 1000
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes periods and signals to Redis.
type Publisher struct {
	client *goredis.Client
	log    *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log := slog.Default().With(slog.String("component", "redis"))
	log.Info("connected", slog.String("addr", cfg.Addr))
	return &Publisher{client: client, log: log}, nil
}

// Run reads closed periods from periodCh and publishes them. Blocks until
// ctx is cancelled or periodCh is closed.
func (p *Publisher) Run(ctx context.Context, periodCh <-chan model.PeriodMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-periodCh:
			if !ok {
				return
			}
			p.publishPeriod(ctx, msg)
		}
	}
}

// publishPeriod appends the period to its symbol stream and notifies
// pub/sub subscribers. XADD + PUBLISH go through one pipeline.
func (p *Publisher) publishPeriod(ctx context.Context, msg model.PeriodMessage) {
	data := msg.Period.JSON()
	streamKey := "periods:" + strconv.Itoa(msg.Period.Timeframe) + "s:" + msg.Symbol

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: periodStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Publish(ctx, "pub:"+streamKey, data)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Error("period publish failed",
			slog.String("symbol", msg.Symbol), slog.String("err", err.Error()))
	}
}

// PublishSignal records the signal on the shared signal stream.
func (p *Publisher) PublishSignal(ctx context.Context, s model.Signal) {
	data := s.JSON()
	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "signals",
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Publish(ctx, "pub:signals", data)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Error("signal publish failed",
			slog.String("symbol", s.Symbol), slog.String("err", err.Error()))
	}
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
