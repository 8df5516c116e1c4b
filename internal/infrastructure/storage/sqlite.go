package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"smartbot/internal/domain"
)

// SQLiteStore is the single durable source of truth: open positions,
// completed trades, bias state and the configurable screener thresholds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite serializes writers anyway

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			side TEXT NOT NULL,
			qty INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			current_price REAL,
			last_update DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			qty INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			reason TEXT,
			fees REAL NOT NULL DEFAULT 0.0
		);`,
		`CREATE TABLE IF NOT EXISTS bias_components (
			component TEXT PRIMARY KEY,
			last_value TEXT NOT NULL DEFAULT 'both',
			score INTEGER NOT NULL DEFAULT 0,
			weight REAL NOT NULL DEFAULT 1.0,
			last_updated DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS bias_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			source TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS setup_rules (
			name TEXT PRIMARY KEY,
			value REAL NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Seed the component rows so weights are editable out of band. Existing
	// rows, including tuned weights, are left untouched.
	for _, component := range []string{"spy_trend", "breadth", "volatility"} {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO bias_components (component, last_value, score, weight) VALUES (?, 'both', 0, 1.0)`,
			component,
		); err != nil {
			return fmt.Errorf("failed to seed bias component %s: %w", component, err)
		}
	}
	return nil
}

// PositionRepository implementation

func (s *SQLiteStore) SavePosition(ctx context.Context, pos *domain.Position) error {
	query := `INSERT INTO positions (symbol, side, qty, entry_price, entry_time, current_price, last_update)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(symbol) DO UPDATE SET
			  side=excluded.side,
			  qty=excluded.qty,
			  entry_price=excluded.entry_price,
			  entry_time=excluded.entry_time,
			  current_price=excluded.current_price,
			  last_update=excluded.last_update`
	_, err := s.db.ExecContext(ctx, query,
		pos.Symbol, string(pos.Side), pos.Qty, pos.EntryPrice, pos.EntryTime, pos.CurrentPrice, pos.LastUpdate)
	return err
}

func (s *SQLiteStore) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	query := `SELECT symbol, side, qty, entry_price, entry_time, current_price, last_update FROM positions WHERE symbol = ?`
	pos, err := scanPosition(s.db.QueryRowContext(ctx, query, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return pos, err
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT symbol, side, qty, entry_price, entry_time, current_price, last_update FROM positions ORDER BY entry_time`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) UpdateCurrentPrice(ctx context.Context, symbol string, price float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE positions SET current_price = ?, last_update = ? WHERE symbol = ?`,
		price, at, symbol)
	return err
}

func (s *SQLiteStore) RemovePosition(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

// ReplacePositions rebuilds the table from the venue account. Used by the
// sync tool after a restart or a tracking mismatch.
func (s *SQLiteStore) ReplacePositions(ctx context.Context, positions []*domain.Position) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return err
	}
	for _, pos := range positions {
		if err := s.SavePosition(ctx, pos); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var (
		p            domain.Position
		side         string
		currentPrice sql.NullFloat64
		lastUpdate   sql.NullTime
	)
	err := row.Scan(&p.Symbol, &side, &p.Qty, &p.EntryPrice, &p.EntryTime, &currentPrice, &lastUpdate)
	if err != nil {
		return nil, err
	}
	p.Side = domain.Side(side)
	if currentPrice.Valid {
		p.CurrentPrice = currentPrice.Float64
	}
	if lastUpdate.Valid {
		p.LastUpdate = lastUpdate.Time
	}
	return &p, nil
}

// TradeRepository implementation

func (s *SQLiteStore) LogTrade(ctx context.Context, trade *domain.Trade) error {
	query := `INSERT INTO trades (symbol, side, qty, entry_price, exit_price, entry_time, exit_time, reason, fees)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		trade.Symbol, string(trade.Side), trade.Qty, trade.EntryPrice, trade.ExitPrice,
		trade.EntryTime, trade.ExitTime, trade.Reason, trade.Fees)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	query := `SELECT id, symbol, side, qty, entry_price, exit_price, entry_time, exit_time, reason, fees
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var (
			t    domain.Trade
			side string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.Qty, &t.EntryPrice, &t.ExitPrice,
			&t.EntryTime, &t.ExitTime, &t.Reason, &t.Fees); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// BiasRepository implementation

func (s *SQLiteStore) UpdateComponent(ctx context.Context, component, lastValue string, score int) error {
	query := `INSERT INTO bias_components (component, last_value, score, weight, last_updated)
			  VALUES (?, ?, ?, 1.0, ?)
			  ON CONFLICT(component) DO UPDATE SET
			  last_value=excluded.last_value,
			  score=excluded.score,
			  last_updated=excluded.last_updated`
	_, err := s.db.ExecContext(ctx, query, component, lastValue, score, time.Now())
	return err
}

func (s *SQLiteStore) ListComponents(ctx context.Context) ([]*domain.BiasComponent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT component, last_value, score, weight, last_updated FROM bias_components`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []*domain.BiasComponent
	for rows.Next() {
		var (
			c       domain.BiasComponent
			updated sql.NullTime
		)
		if err := rows.Scan(&c.Component, &c.LastValue, &c.Score, &c.Weight, &updated); err != nil {
			return nil, err
		}
		if c.Weight < 0 {
			return nil, fmt.Errorf("bias component %s has negative weight %f", c.Component, c.Weight)
		}
		if updated.Valid {
			c.LastUpdated = updated.Time
		}
		components = append(components, &c)
	}
	return components, rows.Err()
}

func (s *SQLiteStore) LogDecision(ctx context.Context, decision *domain.BiasDecision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bias_history (strategy, source, timestamp) VALUES (?, ?, ?)`,
		string(decision.Strategy), decision.Source, decision.Timestamp)
	return err
}

// MetaRepository implementation

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// RuleRepository implementation

func (s *SQLiteStore) ListSetupRules(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM setup_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make(map[string]float64)
	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		rules[name] = value
	}
	return rules, rows.Err()
}

func (s *SQLiteStore) SaveSetupRule(ctx context.Context, name string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO setup_rules (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	return err
}
