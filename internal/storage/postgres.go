package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_kv (
	k TEXT COLLATE "C" PRIMARY KEY,
	v BYTEA NOT NULL
)`

// writerLockID is the session advisory lock every writable transaction
// holds, so mutating invocations run one at a time. It is taken before
// BEGIN: the transaction snapshot is only established by its first
// statement, which then sees every writer that committed before it.
const writerLockID int64 = 0x73746f7265687562

type Postgres struct {
	Db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (s *Postgres) Close() error {
	s.Db.Close()
	return nil
}

func (s *Postgres) Begin(ctx context.Context, writable bool) (Tx, error) {
	if !writable {
		tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
		if err != nil {
			return nil, fmt.Errorf("tx begin failed: %w", err)
		}
		return &pgTx{tx: tx}, nil
	}

	conn, err := s.Db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection acquire failed: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", writerLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("writer lock acquisition failed: %w", err)
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
	if err != nil {
		releaseWriter(conn)
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	return &pgTx{tx: tx, writable: true, conn: conn}, nil
}

// releaseWriter drops the writer lock and returns conn to the pool. A
// connection that cannot be unlocked is closed so the lock dies with its
// session.
func releaseWriter(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", writerLockID); err != nil {
		log.Warnf("Writer unlock failed, closing connection: %v", err)
		conn.Conn().Close(ctx)
	}
	conn.Release()
}

type pgTx struct {
	tx       pgx.Tx
	writable bool
	// conn holds the writer lock; nil for readers.
	conn *pgxpool.Conn
}

func (t *pgTx) release() {
	if t.conn != nil {
		releaseWriter(t.conn)
		t.conn = nil
	}
}

func (t *pgTx) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRow(ctx, "SELECT v FROM ledger_kv WHERE k = $1", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return v, nil
}

func (t *pgTx) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM ledger_kv WHERE k = $1)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return exists, nil
}

func (t *pgTx) Put(ctx context.Context, key string, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(ctx,
		"INSERT INTO ledger_kv (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v",
		key, value)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "40001" {
			log.Warnf("Serialization failure writing %q", key)
		}
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (t *pgTx) Scan(ctx context.Context, prefix string) ([]Pair, error) {
	query := "SELECT k, v FROM ledger_kv WHERE k >= $1 ORDER BY k"
	args := []any{prefix}
	if end := prefixEnd(prefix); end != "" {
		query = "SELECT k, v FROM ledger_kv WHERE k >= $1 AND k < $2 ORDER BY k"
		args = append(args, end)
	}
	rows, err := t.tx.Query(ctx, query, args...)
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

func (t *pgTx) Commit(ctx context.Context) error {
	defer t.release()
	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return ErrTxClosed
		}
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	defer t.release()
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
