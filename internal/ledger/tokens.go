package ledger

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/storehub/internal/access"
	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

// AddApprovedToken adds a fungible-token contract to the payment allow-list.
// Only the overseer may call it.
func (l *Ledger) AddApprovedToken(ctx context.Context, tx storage.Tx, caller domain.AccountID, token domain.AccountID) error {
	if caller != l.overseer {
		return fmt.Errorf("%w: only the overseer can approve payment tokens", domain.ErrAccessDenied)
	}
	if err := access.ValidateAccount(token); err != nil {
		return err
	}

	approved, err := l.IsTokenApproved(ctx, tx, token)
	if err != nil || approved {
		return err
	}
	if err := tx.Put(ctx, tokenPrefix+string(token), []byte(token)); err != nil {
		return err
	}
	_, err = l.appendLog(ctx, tx, "add_approved_token", caller, string(token), nil)
	return err
}

func (l *Ledger) IsTokenApproved(ctx context.Context, tx storage.Tx, token domain.AccountID) (bool, error) {
	return tx.Has(ctx, tokenPrefix+string(token))
}

func (l *Ledger) ApprovedTokens(ctx context.Context, tx storage.Tx) ([]domain.AccountID, error) {
	pairs, err := tx.Scan(ctx, tokenPrefix)
	if err != nil {
		return nil, err
	}
	tokens := make([]domain.AccountID, 0, len(pairs))
	for _, p := range pairs {
		tokens = append(tokens, domain.AccountID(p.Value))
	}
	return tokens, nil
}
