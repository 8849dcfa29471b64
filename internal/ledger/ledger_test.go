package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
	"github.com/punchamoorthee/storehub/internal/testutil"
)

const overseer domain.AccountID = "overseer"

type fixture struct {
	t       *testing.T
	ctx     context.Context
	backend *storage.Memory
	clock   *testutil.StepClock
	ledger  *Ledger
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := testutil.NewStepClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		backend: storage.NewMemory(nil, nil),
		clock:   clock,
		ledger:  New(overseer, opts...),
	}
}

// write runs fn in one writable transaction, committing only on success.
func (f *fixture) write(fn func(tx storage.Tx) error) error {
	f.t.Helper()
	tx, err := f.backend.Begin(f.ctx, true)
	require.NoError(f.t, err)
	defer tx.Rollback(f.ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(f.ctx)
}

func (f *fixture) read(fn func(tx storage.Tx)) {
	f.t.Helper()
	tx, err := f.backend.Begin(f.ctx, false)
	require.NoError(f.t, err)
	defer tx.Rollback(f.ctx)
	fn(tx)
}

func (f *fixture) createStore(caller domain.AccountID, store domain.StoreID) {
	f.t.Helper()
	require.NoError(f.t, f.write(func(tx storage.Tx) error {
		return f.ledger.CreateStore(f.ctx, tx, caller, store)
	}))
}

func (f *fixture) addItem(caller domain.AccountID, store domain.StoreID, item domain.ItemID, price int64) {
	f.t.Helper()
	require.NoError(f.t, f.write(func(tx storage.Tx) error {
		_, err := f.ledger.AddStoreItem(f.ctx, tx, caller, domain.NewItem{
			ID:       item,
			StoreID:  store,
			Name:     "Item " + string(item),
			Price:    decimal.NewFromInt(price),
			ImageRef: "https://img.example/" + string(item) + ".png",
		})
		return err
	}))
}

func (f *fixture) buy(caller domain.AccountID, item domain.ItemID, store domain.StoreID, payment int64) (*domain.BuyResult, error) {
	var res *domain.BuyResult
	err := f.write(func(tx storage.Tx) error {
		var err error
		res, err = f.ledger.Buy(f.ctx, tx, caller, item, store, decimal.NewFromInt(payment))
		return err
	})
	return res, err
}

func (f *fixture) item(id domain.ItemID) *domain.Item {
	f.t.Helper()
	var item *domain.Item
	f.read(func(tx storage.Tx) {
		got, ok, err := f.ledger.GetItem(f.ctx, tx, id)
		require.NoError(f.t, err)
		require.True(f.t, ok, "item %s should exist", id)
		item = got
	})
	return item
}

func (f *fixture) logs(filter domain.LogFilter) []domain.LogEntry {
	f.t.Helper()
	var out []domain.LogEntry
	f.read(func(tx storage.Tx) {
		var err error
		out, err = f.ledger.Logs(f.ctx, tx, filter)
		require.NoError(f.t, err)
	})
	return out
}

func (f *fixture) balance(account domain.AccountID) decimal.Decimal {
	f.t.Helper()
	var b domain.Balance
	f.read(func(tx storage.Tx) {
		var err error
		b, err = f.ledger.Balance(f.ctx, tx, account)
		require.NoError(f.t, err)
	})
	return b.Amount
}
