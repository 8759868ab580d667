package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"algotrader/internal/model"
)

// Reader provides read-only access for replay and analysis.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// ReadPeriods returns the stored periods for one symbol and timeframe,
// ordered by start time ascending for correct replay order. Derived prices
// are recomputed on load.
func (r *Reader) ReadPeriods(symbol string, timeframe int, after time.Time) ([]model.Period, error) {
	rows, err := r.db.Query(`
		SELECT timeframe, start_ts, end_ts, open, close, high, low, volume
		FROM periods
		WHERE symbol = ? AND timeframe = ? AND start_ts > ?
		ORDER BY start_ts ASC
	`, symbol, timeframe, after.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query periods: %w", err)
	}
	defer rows.Close()

	var periods []model.Period
	for rows.Next() {
		var p model.Period
		var startTS, endTS int64
		if err := rows.Scan(&p.Timeframe, &startTS, &endTS, &p.Open, &p.Close, &p.High, &p.Low, &p.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan period: %w", err)
		}
		p.StartTime = time.Unix(startTS, 0).UTC()
		p.EndTime = time.Unix(endTS, 0).UTC()
		p.Finalize()
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// Symbols returns every symbol with at least one stored period for the
// timeframe.
func (r *Reader) Symbols(timeframe int) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT symbol FROM periods WHERE timeframe = ? ORDER BY symbol`, timeframe)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// ReadTradeUpdates returns the recorded trade updates for one symbol in
// insertion order. An empty symbol returns all of them.
func (r *Reader) ReadTradeUpdates(symbol string) ([]model.TradeUpdate, error) {
	query := `SELECT symbol, order_id, event, side, price, ts FROM trade_updates ORDER BY id ASC`
	args := []any{}
	if symbol != "" {
		query = `SELECT symbol, order_id, event, side, price, ts FROM trade_updates WHERE symbol = ? ORDER BY id ASC`
		args = append(args, symbol)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trade updates: %w", err)
	}
	defer rows.Close()

	var updates []model.TradeUpdate
	for rows.Next() {
		var u model.TradeUpdate
		var ts int64
		if err := rows.Scan(&u.Symbol, &u.OrderID, &u.Event, &u.Side, &u.Price, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan trade update: %w", err)
		}
		u.Timestamp = time.Unix(ts, 0).UTC()
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
