package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/storehub/internal/access"
	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

// Buy moves item from its current owner to caller. The whole payment goes to
// the current owner; overpayment is not refunded.
//
// Ownership changes only after the funds transfer succeeds. Any error leaves
// the transaction to be rolled back by the caller, transfer included.
func (l *Ledger) Buy(ctx context.Context, tx storage.Tx, caller domain.AccountID, item domain.ItemID, store domain.StoreID, payment decimal.Decimal) (*domain.BuyResult, error) {
	if err := access.ValidateAccount(caller); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(payment); err != nil {
		return nil, err
	}

	// 1. Resolve the item and check the caller's store reference
	indexed, ok, err := l.itemStore(ctx, tx, item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: item doesn't exist", domain.ErrNotFound)
	}
	if indexed != store {
		return nil, fmt.Errorf("%w: item doesn't exist for this store", domain.ErrMismatch)
	}

	// 2. Metadata must exist for an indexed item
	key := access.StoreItemKey(store, item)
	var meta domain.ItemMetadata
	found, err := getJSON(ctx, tx, metadataKey(key), &meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: item %s has no metadata", domain.ErrInternalInconsistency, item)
	}

	// 3. No self purchase, whatever the payment
	if caller == meta.CurrentOwner {
		return nil, fmt.Errorf("%w: %s already owns %s", domain.ErrSelfPurchaseRejected, caller, item)
	}

	// 4. Price check tolerates overpayment
	if payment.LessThan(meta.Price) {
		return nil, fmt.Errorf("%w: attached %s, price is %s", domain.ErrInsufficientFunds, payment, meta.Price)
	}

	// 5. Pay the current owner
	previousOwner := meta.CurrentOwner
	if err := l.funds.Transfer(ctx, tx, previousOwner, payment); err != nil {
		return nil, fmt.Errorf("funds transfer to %s failed: %w", previousOwner, err)
	}

	// 6. Reassign ownership
	meta.CurrentOwner = caller
	if err := putJSON(ctx, tx, metadataKey(key), meta); err != nil {
		return nil, err
	}

	// 7. Record the purchase
	entry, err := l.appendLog(ctx, tx, "buy", caller, key, map[string]string{
		"paid":           payment.String(),
		"price":          meta.Price.String(),
		"previous_owner": string(previousOwner),
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Item %s sold by %s to %s for %s", key, previousOwner, caller, payment)
	return &domain.BuyResult{
		Message:       fmt.Sprintf("%s bought %s from %s for %s", caller, item, previousOwner, payment),
		LogID:         entry.ID,
		Item:          domain.Item{ID: item, StoreID: store, Key: key, Metadata: meta},
		Paid:          payment,
		PreviousOwner: previousOwner,
	}, nil
}
