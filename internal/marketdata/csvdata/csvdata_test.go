package csvdata

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"algotrader/internal/model"
)

func TestQuoteRoundTrip(t *testing.T) {
	in := []model.Quote{
		{
			Timestamp: time.Date(2021, 6, 7, 14, 30, 0, 0, time.UTC),
			AskPrice:  100.25, AskSize: 3,
			BidPrice: 100.1, BidSize: 7,
		},
		{
			Timestamp: time.Date(2021, 6, 7, 14, 30, 1, 500000000, time.UTC),
			AskPrice:  100.3, AskSize: 1,
			BidPrice: 100.15, BidSize: 2,
		},
	}

	var buf bytes.Buffer
	if err := WriteQuotes(&buf, in, false); err != nil {
		t.Fatalf("WriteQuotes: %v", err)
	}
	out, err := ReadQuotes(&buf)
	if err != nil {
		t.Fatalf("ReadQuotes: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("read %d quotes, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Timestamp.Equal(in[i].Timestamp) || out[i].BidPrice != in[i].BidPrice ||
			out[i].AskSize != in[i].AskSize {
			t.Fatalf("quote %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestQuoteExtendedColumns(t *testing.T) {
	in := []model.Quote{{
		Timestamp: time.Date(2021, 6, 7, 14, 30, 0, 0, time.UTC),
		AskPrice:  100.25, AskSize: 3,
		BidPrice: 100.1, BidSize: 7,
		BidHigh: 100.5, BidLow: 99.9,
	}}

	var buf bytes.Buffer
	if err := WriteQuotes(&buf, in, true); err != nil {
		t.Fatalf("WriteQuotes: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "t,ap,as,bp,bs,max_bp,min_bp\n") {
		t.Fatalf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
	out, err := ReadQuotes(&buf)
	if err != nil {
		t.Fatalf("ReadQuotes: %v", err)
	}
	if out[0].High() != 100.5 || out[0].Low() != 99.9 {
		t.Fatalf("extended extremes lost: %+v", out[0])
	}
}

func TestPeriodRoundTripRecomputesComposites(t *testing.T) {
	p := model.Period{
		Timeframe: 60,
		StartTime: time.Date(2021, 6, 7, 14, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2021, 6, 7, 14, 31, 0, 0, time.UTC),
		Open:      10, Close: 12, High: 13, Low: 9, Volume: 42,
	}
	p.Finalize()

	var buf bytes.Buffer
	if err := WritePeriods(&buf, []model.Period{p}); err != nil {
		t.Fatalf("WritePeriods: %v", err)
	}
	out, err := ReadPeriods(&buf)
	if err != nil {
		t.Fatalf("ReadPeriods: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("read %d periods, want 1", len(out))
	}
	got := out[0]
	if got.HL2 != p.HL2 || got.HLC3 != p.HLC3 || got.OHLC4 != p.OHLC4 || got.HLCC4 != p.HLCC4 {
		t.Fatalf("composites after round trip = %+v, want %+v", got, p)
	}
	if !got.StartTime.Equal(p.StartTime) || got.Volume != p.Volume {
		t.Fatalf("base fields after round trip = %+v, want %+v", got, p)
	}
}

func TestReadQuotesRejectsUnknownHeader(t *testing.T) {
	if _, err := ReadQuotes(strings.NewReader("time,price\n")); err == nil {
		t.Fatal("unknown header should be rejected")
	}
}

func TestReadPeriodsRejectsBadRow(t *testing.T) {
	data := "timeframe,start_time,end_time,open,close,high,low,volume\n" +
		"60,not-a-time,2021-06-07T14:31:00Z,1,2,3,0,5\n"
	if _, err := ReadPeriods(strings.NewReader(data)); err == nil {
		t.Fatal("bad row should be rejected")
	}
}
