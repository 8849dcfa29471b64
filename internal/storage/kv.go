// Package storage provides the transactional key-value backends the ledger
// persists its registries in. Keys are ordered bytewise; nothing is ever
// deleted.
package storage

import (
	"context"
	"errors"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("storehub/storage")

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrReadOnly    = errors.New("write in read-only transaction")
	ErrTxClosed    = errors.New("transaction already closed")
)

// Pair is a key with its value, as returned by Scan.
type Pair struct {
	Key   string
	Value []byte
}

// Tx is one atomic unit of work. Writes become visible to other transactions
// only after Commit. Rollback after Commit is a no-op.
type Tx interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Has(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, value []byte) error
	// Scan returns every pair whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, prefix string) ([]Pair, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Backend opens transactions. Writable transactions are serialized against
// each other.
type Backend interface {
	Begin(ctx context.Context, writable bool) (Tx, error)
	Close() error
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or "" when no such bound exists.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
