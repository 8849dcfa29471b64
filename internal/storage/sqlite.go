package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_kv (
	k TEXT PRIMARY KEY,
	v BLOB NOT NULL
)`

// SQLite is a single-file backend. It keeps one connection open so writers
// never race for the database lock; transactions start IMMEDIATE.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Begin(ctx context.Context, writable bool) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	return &sqliteTx{tx: tx, writable: writable}, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteTx struct {
	tx       *sql.Tx
	writable bool
	done     bool
}

func (t *sqliteTx) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRowContext(ctx, "SELECT v FROM ledger_kv WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return v, nil
}

func (t *sqliteTx) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM ledger_kv WHERE k = ?)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return exists, nil
}

func (t *sqliteTx) Put(ctx context.Context, key string, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO ledger_kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v",
		key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (t *sqliteTx) Scan(ctx context.Context, prefix string) ([]Pair, error) {
	query := "SELECT k, v FROM ledger_kv WHERE k >= ? ORDER BY k"
	args := []any{prefix}
	if end := prefixEnd(prefix); end != "" {
		query = "SELECT k, v FROM ledger_kv WHERE k >= ? AND k < ? ORDER BY k"
		args = append(args, end)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}
