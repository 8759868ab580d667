// cmd/simulate replays recorded quote files through a grid of strategies
// against the simulated brokerage and reports per-strategy, per-symbol
// results.
//
// Usage:
//
//	go run ./cmd/simulate --data=data/quotes --timeframe=60 \
//	    --strategies=ma_cross,psar_cross --cash=100000
//
// The data directory holds one quote CSV per symbol, named SYMBOL.csv.
// Periods can also be replayed directly from a SQLite database written by
// livetrader using --db.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"algotrader/internal/brokerage"
	"algotrader/internal/marketdata/agg"
	"algotrader/internal/marketdata/csvdata"
	"algotrader/internal/model"
	sqlitestore "algotrader/internal/store/sqlite"
	"algotrader/internal/strategy"
)

type result struct {
	strategy  string
	symbol    string
	pctProfit float64
	numBuys   int
	numSells  int
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	dataDir := flag.String("data", "", "Directory of per-symbol quote CSVs (SYMBOL.csv)")
	dbPath := flag.String("db", "", "SQLite database to replay periods from (alternative to --data)")
	timeframe := flag.Int("timeframe", 60, "Period length in seconds")
	strategies := flag.String("strategies", "trivial,ma_cross,ma_slope,macd_cross,psar_cross,psar_only",
		"Comma-separated strategy names")
	cash := flag.Float64("cash", 100000, "Starting cash per simulation")
	reportPath := flag.String("report", "", "Optional CSV file for the full result table")
	flag.Parse()

	if (*dataDir == "") == (*dbPath == "") {
		log.Fatal("[simulate] exactly one of --data or --db is required")
	}

	periodsBySymbol, err := loadPeriods(*dataDir, *dbPath, *timeframe)
	if err != nil {
		log.Fatalf("[simulate] %v", err)
	}
	if len(periodsBySymbol) == 0 {
		log.Fatal("[simulate] no data found")
	}

	var results []result
	for _, name := range splitList(*strategies) {
		factory, err := strategy.Factory(name)
		if err != nil {
			log.Fatalf("[simulate] %v", err)
		}
		for symbol, periods := range periodsBySymbol {
			r, err := simulate(name, symbol, periods, factory, *cash)
			if err != nil {
				log.Fatalf("[simulate] %s/%s: %v", name, symbol, err)
			}
			results = append(results, r)
		}
	}

	report(results)

	if *reportPath != "" {
		if err := writeReport(*reportPath, results); err != nil {
			log.Fatalf("[simulate] report: %v", err)
		}
		log.Printf("[simulate] wrote report to %s", *reportPath)
	}
}

// writeReport saves the full result table as CSV.
func writeReport(path string, results []result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"strategy", "symbol", "pct_profit", "buys", "sells"}); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			r.strategy,
			r.symbol,
			strconv.FormatFloat(r.pctProfit, 'f', 4, 64),
			strconv.Itoa(r.numBuys),
			strconv.Itoa(r.numSells),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// simulate runs one strategy over one symbol's periods against a fresh
// simulated brokerage and returns the outcome.
func simulate(name, symbol string, periods []model.Period, factory func() strategy.Strategy, cash float64) (result, error) {
	sim := brokerage.NewSim(cash, 1)
	strat := factory()
	// Simulations skip the session-boundary wait and trade immediately.
	strat.SetState(strategy.StateBuy)

	a := agg.New(periods[0].Timeframe)
	for _, p := range periods {
		a.ProcessPeriod(p)
		sim.UpdateValue(symbol, p.Close, p.EndTime)
		strat.UpdateAnalyzerVals(a)
		if err := strategy.MakeDecision(strat, sim, symbol); err != nil {
			return result{}, err
		}
	}
	// Close any position still open at the last seen value.
	if err := sim.LiquidateAndCancelAll(); err != nil {
		return result{}, err
	}

	return result{
		strategy:  name,
		symbol:    symbol,
		pctProfit: (sim.Equity() - cash) / cash * 100,
		numBuys:   sim.NumBuys(),
		numSells:  sim.NumSells(),
	}, nil
}

func loadPeriods(dataDir, dbPath string, timeframe int) (map[string][]model.Period, error) {
	out := make(map[string][]model.Period)

	if dbPath != "" {
		reader, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return nil, err
		}
		defer reader.Close()

		symbols, err := reader.Symbols(timeframe)
		if err != nil {
			return nil, err
		}
		for _, symbol := range symbols {
			periods, err := reader.ReadPeriods(symbol, timeframe, time.Time{})
			if err != nil {
				return nil, err
			}
			out[symbol] = append(out[symbol], periods...)
		}
		return out, nil
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), ".csv"))

		f, err := os.Open(filepath.Join(dataDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		quotes, err := csvdata.ReadQuotes(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}

		a := agg.New(timeframe)
		for _, q := range quotes {
			a.ProcessQuote(q)
		}
		out[symbol] = append(out[symbol], a.Periods()...)
	}
	return out, nil
}

func report(results []result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].strategy != results[j].strategy {
			return results[i].strategy < results[j].strategy
		}
		return results[i].symbol < results[j].symbol
	})

	fmt.Printf("%-28s %-8s %10s %6s %6s\n", "STRATEGY", "SYMBOL", "PROFIT%", "BUYS", "SELLS")
	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range results {
		fmt.Printf("%-28s %-8s %9.2f%% %6d %6d\n", r.strategy, r.symbol, r.pctProfit, r.numBuys, r.numSells)
		totals[r.strategy] += r.pctProfit
		counts[r.strategy]++
	}

	fmt.Println()
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return totals[names[i]] > totals[names[j]] })
	for _, name := range names {
		fmt.Printf("%-28s mean %8.2f%% over %d symbols\n", name, totals[name]/float64(counts[name]), counts[name])
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
