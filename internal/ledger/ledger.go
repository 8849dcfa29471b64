// Package ledger implements the marketplace state machine: store and item
// registries, the purchase protocol, the payment-token allow-list and the
// hash-linked audit log.
//
// Every operation runs against a caller-supplied storage.Tx. The caller owns
// the transaction: it commits when the operation returns nil and rolls back
// otherwise, which is what makes an invocation all-or-nothing.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

var log = logging.Logger("storehub/ledger")

// Ledger holds the configuration shared by all operations. It carries no
// mutable state of its own.
type Ledger struct {
	overseer domain.AccountID
	funds    FundsTransferer
	now      func() time.Time
}

type Option func(*Ledger)

// WithClock replaces the wall clock used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFunds replaces the funds-transfer collaborator.
func WithFunds(f FundsTransferer) Option {
	return func(l *Ledger) { l.funds = f }
}

// New creates a ledger administered by overseer.
func New(overseer domain.AccountID, opts ...Option) *Ledger {
	l := &Ledger{
		overseer: overseer,
		funds:    BalanceCredit{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Overseer returns the account allowed to manage the token allow-list.
func (l *Ledger) Overseer() domain.AccountID { return l.overseer }

func getJSON(ctx context.Context, tx storage.Tx, key string, v any) (bool, error) {
	raw, err := tx.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", domain.ErrInternalInconsistency, key, err)
	}
	return true, nil
}

func putJSON(ctx context.Context, tx storage.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return tx.Put(ctx, key, raw)
}
