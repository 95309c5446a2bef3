package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
// ":memory:" keeps everything for the lifetime of the process only.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Each pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alert_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			alert_id   TEXT,
			symbol     TEXT,
			condition  TEXT,
			target     REAL,
			price      REAL,
			lifetime   TEXT,
			delivered  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS lot_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			action    TEXT,
			symbol    TEXT,
			shares    REAL,
			buy_price REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lot_ts ON lot_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			symbol     TEXT,
			degree     INTEGER,
			horizon    INTEGER,
			last_close REAL,
			final      REAL,
			direction  TEXT,
			strength   TEXT,
			rmse       REAL,
			r2         REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_ts ON forecasts(timestamp)`,

		`CREATE TABLE IF NOT EXISTS valuations (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			currency  TEXT,
			value     REAL,
			cost      REAL,
			pnl       REAL,
			pnl_pct   REAL,
			lines     INTEGER,
			failed    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_valuation_ts ON valuations(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAlertFired(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alert_events
		(timestamp, alert_id, symbol, condition, target, price, lifetime, delivered)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.AlertID, evt.Symbol, evt.Condition,
		evt.Target, evt.Price, evt.Lifetime, evt.Delivered,
	)
	return err
}

func (r *SQLiteRecorder) RecordLot(evt *LotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO lot_events
		(timestamp, action, symbol, shares, buy_price)
		VALUES (?,?,?,?,?)`,
		r.now().Unix(), evt.Action, evt.Symbol, evt.Shares, evt.BuyPrice,
	)
	return err
}

func (r *SQLiteRecorder) RecordForecast(evt *ForecastEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO forecasts
		(timestamp, symbol, degree, horizon, last_close, final, direction, strength, rmse, r2)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.Symbol, evt.Degree, evt.Horizon,
		evt.LastClose, evt.Final, evt.Direction, evt.Strength,
		evt.RMSE, evt.R2,
	)
	return err
}

func (r *SQLiteRecorder) RecordValuation(evt *ValuationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO valuations
		(timestamp, currency, value, cost, pnl, pnl_pct, lines, failed)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.Currency, evt.Value, evt.Cost,
		evt.PnL, evt.PnLPct, evt.Lines, evt.Failed,
	)
	return err
}

// AlertHistory returns the most recent firings, newest first.
func (r *SQLiteRecorder) AlertHistory(limit int) ([]AlertEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT alert_id, symbol, condition, target, price, lifetime, delivered
		FROM alert_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var out []AlertEvent
	for rows.Next() {
		var e AlertEvent
		if err := rows.Scan(&e.AlertID, &e.Symbol, &e.Condition, &e.Target, &e.Price, &e.Lifetime, &e.Delivered); err != nil {
			return nil, fmt.Errorf("scan alert event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
