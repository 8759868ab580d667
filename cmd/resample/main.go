// cmd/resample rewrites a raw quote CSV into period CSVs for one or more
// timeframes, so simulations can start from pre-aggregated data.
//
// Usage:
//
//	go run ./cmd/resample --in=data/quotes/AAPL.csv --out=data/periods \
//	    --timeframes=60,300,900
//
// Output files are named <input base>_<timeframe>s.csv.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/marketdata/csvdata"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	inPath := flag.String("in", "", "Input quote CSV")
	outDir := flag.String("out", ".", "Output directory")
	tfStr := flag.String("timeframes", "60", "Comma-separated timeframes in seconds")
	flag.Parse()

	if *inPath == "" {
		log.Fatal("[resample] --in is required")
	}
	timeframes := parseTimeframes(*tfStr)
	if len(timeframes) == 0 {
		log.Fatal("[resample] no valid timeframes")
	}

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("[resample] %v", err)
	}
	quotes, err := csvdata.ReadQuotes(f)
	f.Close()
	if err != nil {
		log.Fatalf("[resample] %v", err)
	}
	log.Printf("[resample] read %d quotes from %s", len(quotes), *inPath)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("[resample] %v", err)
	}
	base := strings.TrimSuffix(filepath.Base(*inPath), filepath.Ext(*inPath))

	for _, tf := range timeframes {
		a := agg.New(tf)
		for _, q := range quotes {
			a.ProcessQuote(q)
		}

		outPath := filepath.Join(*outDir, fmt.Sprintf("%s_%ds.csv", base, tf))
		out, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("[resample] %v", err)
		}
		if err := csvdata.WritePeriods(out, a.Periods()); err != nil {
			out.Close()
			log.Fatalf("[resample] write %s: %v", outPath, err)
		}
		out.Close()
		log.Printf("[resample] wrote %d periods to %s", a.NumPeriods(), outPath)
	}
}

func parseTimeframes(s string) []int {
	parts := strings.Split(s, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[resample] skipping invalid timeframe %q", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}
