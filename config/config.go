// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	// Brokerage credentials
	BrokerKey      string
	BrokerSecret   string
	BrokerEndpoint string
	DataStreamURL  string

	// Trading
	AccountType   string  // "paper" or "live"
	InitialCash   float64 // paper account starting cash
	Symbols       string  // comma-separated, e.g. "AAPL,MSFT,GOOG"
	Timeframe     int     // period length, seconds
	MaxPositions  int
	Strategy      string // strategy name, e.g. "psar_cross"
	PollInterval  time.Duration
	CleanupMargin time.Duration
	ListenerLead  time.Duration

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string
	WebhookURL    string
	LogLevel      string
}

// Load reads configuration from environment variables with sensible
// defaults. Credentials are required; everything else falls back.
func Load() *Config {
	return &Config{
		BrokerKey:      mustEnv("BROKER_KEY"),
		BrokerSecret:   mustEnv("BROKER_SECRET"),
		BrokerEndpoint: getEnv("BROKER_ENDPOINT", "https://paper-api.broker.example"),
		DataStreamURL:  getEnv("DATA_STREAM_URL", "wss://stream.broker.example/v2"),

		AccountType:   getEnv("ACCOUNT_TYPE", "paper"),
		InitialCash:   getEnvFloat("INITIAL_CASH", 100000),
		Symbols:       getEnv("SYMBOLS", "AAPL,MSFT,GOOG"),
		Timeframe:     getEnvInt("TIMEFRAME_SEC", 60),
		MaxPositions:  getEnvInt("MAX_POSITIONS", 5),
		Strategy:      getEnv("STRATEGY", "psar_cross"),
		PollInterval:  getEnvDuration("POLL_INTERVAL", 5*time.Second),
		CleanupMargin: getEnvDuration("CLEANUP_MARGIN", 5*time.Minute),
		ListenerLead:  getEnvDuration("LISTENER_LEAD", 4*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/periods.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSymbols splits the Symbols string into a cleaned slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] env var %s: invalid integer %q", key, v)
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[config] env var %s: invalid number %q", key, v)
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("[config] env var %s: invalid duration %q", key, v)
	}
	return d
}
