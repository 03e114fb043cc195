// internal/storage/sqlite.go
//
// SQLiteStore 以 SQLite 檔案實作 Recorder。
// 每一批紀錄在單一 SQL 交易中寫入；任何一列失敗則整批回滾並回傳錯誤。
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile    = "economy.db"
	maxBusyTimeoutMs = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	simulation_id TEXT    NOT NULL,
	cycle         INTEGER NOT NULL,
	from_account  TEXT    NOT NULL,
	to_account    TEXT    NOT NULL,
	amount        TEXT    NOT NULL,
	text          TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_sim_cycle ON transactions (simulation_id, cycle);

CREATE TABLE IF NOT EXISTS time_series (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	simulation_id TEXT    NOT NULL,
	cycle         INTEGER NOT NULL,
	label         TEXT    NOT NULL,
	value         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_time_series_sim_label ON time_series (simulation_id, label, cycle);
`

// SQLiteStore 為 SQLite 後端的紀錄器。
type SQLiteStore struct {
	db   *sql.DB
	file string
}

// NewSQLiteStore 開啟（必要時建立）資料庫檔案並確保資料表存在。
func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db, file: absPath}, nil
}

// Close 釋放資料庫連線。
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// InsertTransactions 寫入一批轉帳紀錄。
func (s *SQLiteStore) InsertTransactions(ctx context.Context, records []TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, `INSERT INTO transactions (simulation_id, cycle, from_account, to_account, amount, text)
		VALUES (?, ?, ?, ?, ?, ?)`, func(stmt *sql.Stmt) error {
		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.SimulationID.String(), r.Cycle, r.From, r.To, r.Amount.String(), r.Text); err != nil {
				return fmt.Errorf("insert transaction %s->%s cycle %d: %w", r.From, r.To, r.Cycle, err)
			}
		}
		return nil
	})
}

// InsertTimeSeries 寫入一批指標。
func (s *SQLiteStore) InsertTimeSeries(ctx context.Context, entries []TimeSeriesEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, `INSERT INTO time_series (simulation_id, cycle, label, value) VALUES (?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, e := range entries {
				if _, err := stmt.ExecContext(ctx, e.SimulationID.String(), e.Cycle, e.Label, e.Value.String()); err != nil {
					return fmt.Errorf("insert time series %s cycle %d: %w", e.Label, e.Cycle, err)
				}
			}
			return nil
		})
}

func (s *SQLiteStore) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	if s.db == nil {
		return fmt.Errorf("sqlite store %s: closed", s.file)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Transactions 讀回某次模擬的所有轉帳紀錄，依寫入順序排列。
func (s *SQLiteStore) Transactions(ctx context.Context, simulationID uuid.UUID) ([]TransactionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("sqlite store %s: closed", s.file)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cycle, from_account, to_account, amount, text
		FROM transactions WHERE simulation_id = ? ORDER BY id`, simulationID.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var (
			r      TransactionRecord
			amount string
		)
		if err := rows.Scan(&r.Cycle, &r.From, &r.To, &amount, &r.Text); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		r.SimulationID = simulationID
		out = append(out, r)
	}
	return out, rows.Err()
}

// Series 讀回某次模擬中單一指標的取樣，依週期排列。
func (s *SQLiteStore) Series(ctx context.Context, simulationID uuid.UUID, label string) ([]TimeSeriesEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("sqlite store %s: closed", s.file)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cycle, value FROM time_series
		WHERE simulation_id = ? AND label = ? ORDER BY cycle, id`, simulationID.String(), label)
	if err != nil {
		return nil, fmt.Errorf("query time series: %w", err)
	}
	defer rows.Close()

	var out []TimeSeriesEntry
	for rows.Next() {
		var (
			e     TimeSeriesEntry
			value string
		)
		if err := rows.Scan(&e.Cycle, &value); err != nil {
			return nil, fmt.Errorf("scan time series: %w", err)
		}
		if e.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parse value %q: %w", value, err)
		}
		e.SimulationID = simulationID
		e.Label = label
		out = append(out, e)
	}
	return out, rows.Err()
}
