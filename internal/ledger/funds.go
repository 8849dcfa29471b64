package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

// FundsTransferer moves value to an account. Implementations that settle
// outside the ledger may ignore tx, but then only a failure to issue the
// transfer can abort the purchase.
type FundsTransferer interface {
	Transfer(ctx context.Context, tx storage.Tx, to domain.AccountID, amount decimal.Decimal) error
}

// BalanceCredit settles transfers by crediting a payout balance kept in the
// same transaction as the purchase.
type BalanceCredit struct{}

func (BalanceCredit) Transfer(ctx context.Context, tx storage.Tx, to domain.AccountID, amount decimal.Decimal) error {
	current, err := ReadBalance(ctx, tx, to)
	if err != nil {
		return err
	}
	next := current.Add(amount)
	if err := domain.ValidateAmount(next); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return tx.Put(ctx, balanceKey(to), []byte(next.String()))
}

// ReadBalance returns the payout balance of account, zero if never credited.
func ReadBalance(ctx context.Context, tx storage.Tx, account domain.AccountID) (decimal.Decimal, error) {
	raw, err := tx.Get(ctx, balanceKey(account))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: balance of %s: %v", domain.ErrInternalInconsistency, account, err)
	}
	return d, nil
}

// Balance returns the payout balance credited to account by purchases.
func (l *Ledger) Balance(ctx context.Context, tx storage.Tx, account domain.AccountID) (domain.Balance, error) {
	amount, err := ReadBalance(ctx, tx, account)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{AccountID: account, Amount: amount}, nil
}
