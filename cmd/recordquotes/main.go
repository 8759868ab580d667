// cmd/recordquotes records a live quote stream to per-symbol CSV files for
// later resampling and simulation.
//
// Usage:
//
//	go run ./cmd/recordquotes --url=wss://stream.broker.example/v2 \
//	    --symbols=AAPL,MSFT --out=data/quotes --duration=6h30m
//
// Credentials come from BROKER_KEY/BROKER_SECRET; unset values connect
// unauthenticated. Recording stops after --duration, or on SIGINT/SIGTERM,
// and the files are written on the way out.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"algotrader/internal/logger"
	"algotrader/internal/marketdata/csvdata"
	"algotrader/internal/marketdata/stream"
	"algotrader/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	url := flag.String("url", "wss://stream.broker.example/v2", "Data WebSocket URL")
	symbolsArg := flag.String("symbols", "", "Comma-separated symbols to record")
	outDir := flag.String("out", "data/quotes", "Output directory for SYMBOL.csv files")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	flag.Parse()

	logger.Init("recordquotes", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	symbols := splitSymbols(*symbolsArg)
	if len(symbols) == 0 {
		log.Fatal("[recordquotes] --symbols is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[recordquotes] received %v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	feed, err := stream.New(stream.Config{
		URL:    *url,
		Key:    os.Getenv("BROKER_KEY"),
		Secret: os.Getenv("BROKER_SECRET"),
	})
	if err != nil {
		log.Fatalf("[recordquotes] stream init failed: %v", err)
	}

	log.Printf("[recordquotes] recording %v from %s", symbols, *url)
	recorded := record(ctx, feed, symbols)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("[recordquotes] %v", err)
	}
	for symbol, quotes := range recorded {
		if len(quotes) == 0 {
			continue
		}
		path := filepath.Join(*outDir, symbol+".csv")
		if err := writeQuoteFile(path, quotes); err != nil {
			log.Fatalf("[recordquotes] write %s: %v", path, err)
		}
		log.Printf("[recordquotes] wrote %d quotes to %s", len(quotes), path)
	}
}

// record drives the feed until ctx ends and returns the captured quotes per
// symbol, in arrival order. Quote callbacks run on the feed's read
// goroutine, so plain slice appends are safe.
func record(ctx context.Context, feed stream.Feed, symbols []string) map[string][]model.Quote {
	recorded := make(map[string][]model.Quote, len(symbols))
	for _, symbol := range symbols {
		symbol := symbol
		feed.SubscribeQuotes(symbol, func(q model.Quote) {
			recorded[symbol] = append(recorded[symbol], q)
		})
	}

	if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[recordquotes] feed stopped: %v", err)
	}
	return recorded
}

func writeQuoteFile(path string, quotes []model.Quote) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return csvdata.WriteQuotes(f, quotes, false)
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
