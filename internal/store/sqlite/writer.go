// Package sqlite persists closed periods and trade fills to a local SQLite
// database, for replay and post-session analysis.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"algotrader/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to the database file, e.g. "data/periods.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := slog.Default().With(slog.String("component", "sqlite"))
	log.Info("opened database", slog.String("path", cfg.DBPath))
	return &Writer{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS periods (
			symbol    TEXT    NOT NULL,
			timeframe INTEGER NOT NULL,
			start_ts  INTEGER NOT NULL,
			end_ts    INTEGER NOT NULL,
			open      REAL    NOT NULL,
			close     REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			volume    INTEGER NOT NULL,
			PRIMARY KEY (symbol, timeframe, start_ts)
		);

		CREATE TABLE IF NOT EXISTS trade_updates (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol   TEXT    NOT NULL,
			order_id TEXT    NOT NULL,
			event    TEXT    NOT NULL,
			side     TEXT    NOT NULL,
			price    REAL    NOT NULL,
			ts       INTEGER NOT NULL
		);
	`)
	return err
}

// Run reads closed periods from periodCh and inserts them in batched
// transactions. Flushes every batch size periods or every flush delay,
// whichever comes first. Blocks until ctx is cancelled or periodCh closes.
func (w *Writer) Run(ctx context.Context, periodCh <-chan model.PeriodMessage) {
	batch := make([]model.PeriodMessage, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.insertBatch(batch); err != nil {
			w.log.Error("batch insert failed", slog.String("err", err.Error()))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case msg, ok := <-periodCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, msg)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertBatch(batch []model.PeriodMessage) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO periods (symbol, timeframe, start_ts, end_ts, open, close, high, low, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range batch {
		p := &batch[i].Period
		_, err := stmt.Exec(batch[i].Symbol, p.Timeframe,
			p.StartTime.Unix(), p.EndTime.Unix(),
			p.Open, p.Close, p.High, p.Low, p.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveTradeUpdate appends one trade update to the journal.
func (w *Writer) SaveTradeUpdate(u model.TradeUpdate) error {
	_, err := w.db.Exec(
		`INSERT INTO trade_updates (symbol, order_id, event, side, price, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Symbol, u.OrderID, u.Event, u.Side, u.Price, u.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert trade update: %w", err)
	}
	return nil
}

// LastPeriodStart returns the newest stored period start for a symbol and
// timeframe, or the zero time when none exist.
func (w *Writer) LastPeriodStart(symbol string, timeframe int) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(start_ts) FROM periods WHERE symbol = ? AND timeframe = ?`,
		symbol, timeframe,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
