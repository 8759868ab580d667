// Package csvdata reads and writes the on-disk market data formats: raw
// quote files and resampled period files.
package csvdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"algotrader/internal/model"
)

// Column layouts. Quote files may carry the two optional extended columns
// written by pre-aggregated sources.
var (
	quoteHeader         = []string{"t", "ap", "as", "bp", "bs"}
	quoteExtendedHeader = []string{"t", "ap", "as", "bp", "bs", "max_bp", "min_bp"}
	periodHeader        = []string{"timeframe", "start_time", "end_time", "open", "close", "high", "low", "volume"}
)

const timeLayout = time.RFC3339Nano

// ReadQuotes parses a quote CSV. Rows must be in ascending timestamp
// order; order is the caller's contract with the aggregator, not enforced
// here.
func ReadQuotes(r io.Reader) ([]model.Quote, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("quote csv header: %w", err)
	}
	extended, err := quoteLayout(header)
	if err != nil {
		return nil, err
	}

	var quotes []model.Quote
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return quotes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("quote csv line %d: %w", line, err)
		}
		q, err := parseQuote(rec, extended)
		if err != nil {
			return nil, fmt.Errorf("quote csv line %d: %w", line, err)
		}
		quotes = append(quotes, q)
	}
}

func quoteLayout(header []string) (extended bool, err error) {
	switch {
	case equalHeader(header, quoteHeader):
		return false, nil
	case equalHeader(header, quoteExtendedHeader):
		return true, nil
	default:
		return false, fmt.Errorf("unrecognized quote csv header %v", header)
	}
}

func parseQuote(rec []string, extended bool) (model.Quote, error) {
	var q model.Quote
	var err error

	if q.Timestamp, err = time.Parse(timeLayout, rec[0]); err != nil {
		return q, fmt.Errorf("timestamp: %w", err)
	}
	if q.AskPrice, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return q, fmt.Errorf("ask price: %w", err)
	}
	if q.AskSize, err = strconv.ParseInt(rec[2], 10, 64); err != nil {
		return q, fmt.Errorf("ask size: %w", err)
	}
	if q.BidPrice, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return q, fmt.Errorf("bid price: %w", err)
	}
	if q.BidSize, err = strconv.ParseInt(rec[4], 10, 64); err != nil {
		return q, fmt.Errorf("bid size: %w", err)
	}
	if extended {
		if q.BidHigh, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return q, fmt.Errorf("max bid: %w", err)
		}
		if q.BidLow, err = strconv.ParseFloat(rec[6], 64); err != nil {
			return q, fmt.Errorf("min bid: %w", err)
		}
	}
	return q, nil
}

// WriteQuotes writes quotes in the raw layout, or the extended layout when
// extended is true.
func WriteQuotes(w io.Writer, quotes []model.Quote, extended bool) error {
	cw := csv.NewWriter(w)

	header := quoteHeader
	if extended {
		header = quoteExtendedHeader
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range quotes {
		q := &quotes[i]
		rec := []string{
			q.Timestamp.Format(timeLayout),
			formatFloat(q.AskPrice),
			strconv.FormatInt(q.AskSize, 10),
			formatFloat(q.BidPrice),
			strconv.FormatInt(q.BidSize, 10),
		}
		if extended {
			rec = append(rec, formatFloat(q.BidHigh), formatFloat(q.BidLow))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPeriods parses a period CSV. Derived prices are recomputed rather
// than stored, so a read-back period carries the same composites as the
// one written.
func ReadPeriods(r io.Reader) ([]model.Period, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("period csv header: %w", err)
	}
	if !equalHeader(header, periodHeader) {
		return nil, fmt.Errorf("unrecognized period csv header %v", header)
	}

	var periods []model.Period
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return periods, nil
		}
		if err != nil {
			return nil, fmt.Errorf("period csv line %d: %w", line, err)
		}
		p, err := parsePeriod(rec)
		if err != nil {
			return nil, fmt.Errorf("period csv line %d: %w", line, err)
		}
		p.Finalize()
		periods = append(periods, p)
	}
}

func parsePeriod(rec []string) (model.Period, error) {
	var p model.Period
	var err error

	if p.Timeframe, err = strconv.Atoi(rec[0]); err != nil {
		return p, fmt.Errorf("timeframe: %w", err)
	}
	if p.StartTime, err = time.Parse(timeLayout, rec[1]); err != nil {
		return p, fmt.Errorf("start time: %w", err)
	}
	if p.EndTime, err = time.Parse(timeLayout, rec[2]); err != nil {
		return p, fmt.Errorf("end time: %w", err)
	}
	if p.Open, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return p, fmt.Errorf("open: %w", err)
	}
	if p.Close, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return p, fmt.Errorf("close: %w", err)
	}
	if p.High, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return p, fmt.Errorf("high: %w", err)
	}
	if p.Low, err = strconv.ParseFloat(rec[6], 64); err != nil {
		return p, fmt.Errorf("low: %w", err)
	}
	if p.Volume, err = strconv.ParseInt(rec[7], 10, 64); err != nil {
		return p, fmt.Errorf("volume: %w", err)
	}
	return p, nil
}

// WritePeriods writes periods in the resampled layout. Only the base OHLCV
// fields are stored.
func WritePeriods(w io.Writer, periods []model.Period) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(periodHeader); err != nil {
		return err
	}

	for i := range periods {
		p := &periods[i]
		rec := []string{
			strconv.Itoa(p.Timeframe),
			p.StartTime.Format(timeLayout),
			p.EndTime.Format(timeLayout),
			formatFloat(p.Open),
			formatFloat(p.Close),
			formatFloat(p.High),
			formatFloat(p.Low),
			strconv.FormatInt(p.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
