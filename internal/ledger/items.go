package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/storehub/internal/access"
	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

// AddStoreItem lists a new item for store. The listing signer becomes the
// item's first owner. Item ids are never rebound to another store.
//
// A store with no owner set does not exist: listing into it fails with
// ErrNotFound, not ErrInternalInconsistency. InternalInconsistency is kept
// for state the ledger itself left broken, such as metadata without an
// index entry.
func (l *Ledger) AddStoreItem(ctx context.Context, tx storage.Tx, caller domain.AccountID, in domain.NewItem) (*domain.Item, error) {
	if err := access.ValidateAccount(caller); err != nil {
		return nil, err
	}
	if err := access.ValidateIdentifier("store", string(in.StoreID)); err != nil {
		return nil, err
	}
	if err := access.ValidateIdentifier("item", string(in.ID)); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(in.Price); err != nil {
		return nil, err
	}

	owners, err := l.OwnersByStore(ctx, tx, in.StoreID)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("%w: store %s doesn't exist", domain.ErrNotFound, in.StoreID)
	}
	if !access.IsMember(owners, caller) {
		return nil, fmt.Errorf("%w: signer not store owner", domain.ErrAccessDenied)
	}

	listed, err := tx.Has(ctx, itemIndexKey(in.ID))
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, fmt.Errorf("%w: item %s is already listed", domain.ErrAlreadyExists, in.ID)
	}

	key := access.StoreItemKey(in.StoreID, in.ID)
	orphan, err := tx.Has(ctx, metadataKey(key))
	if err != nil {
		return nil, err
	}
	if orphan {
		return nil, fmt.Errorf("%w: metadata for %s exists without an index entry", domain.ErrInternalInconsistency, key)
	}

	item := &domain.Item{
		ID:      in.ID,
		StoreID: in.StoreID,
		Key:     key,
		Metadata: domain.ItemMetadata{
			Name:         in.Name,
			Price:        in.Price,
			ImageRef:     in.ImageRef,
			CurrentOwner: caller,
		},
	}

	// Index and metadata are written together; the transaction makes them
	// visible together.
	if err := tx.Put(ctx, itemIndexKey(in.ID), []byte(in.StoreID)); err != nil {
		return nil, err
	}
	if err := tx.Put(ctx, storeItemsPrefix(in.StoreID)+string(in.ID), []byte(in.ID)); err != nil {
		return nil, err
	}
	if err := putJSON(ctx, tx, metadataKey(key), item.Metadata); err != nil {
		return nil, err
	}

	extra := map[string]string{
		"name":      in.Name,
		"price":     in.Price.String(),
		"image_ref": in.ImageRef,
	}
	if _, err := l.appendLog(ctx, tx, "add_store_item", caller, key, extra); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem resolves item through the store index. A missing hop is reported
// as absence, not as an error.
func (l *Ledger) GetItem(ctx context.Context, tx storage.Tx, item domain.ItemID) (*domain.Item, bool, error) {
	store, ok, err := l.itemStore(ctx, tx, item)
	if err != nil || !ok {
		return nil, false, err
	}
	key := access.StoreItemKey(store, item)
	var meta domain.ItemMetadata
	found, err := getJSON(ctx, tx, metadataKey(key), &meta)
	if err != nil || !found {
		return nil, false, err
	}
	return &domain.Item{ID: item, StoreID: store, Key: key, Metadata: meta}, true, nil
}

// ItemsByStore returns every item listed by store, sorted by item id.
func (l *Ledger) ItemsByStore(ctx context.Context, tx storage.Tx, store domain.StoreID) ([]domain.Item, error) {
	pairs, err := tx.Scan(ctx, storeItemsPrefix(store))
	if err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(pairs))
	for _, p := range pairs {
		item, ok, err := l.GetItem(ctx, tx, domain.ItemID(p.Value))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: store %s lists unknown item %s", domain.ErrInternalInconsistency, store, p.Value)
		}
		items = append(items, *item)
	}
	return items, nil
}

func (l *Ledger) itemStore(ctx context.Context, tx storage.Tx, item domain.ItemID) (domain.StoreID, bool, error) {
	raw, err := tx.Get(ctx, itemIndexKey(item))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return domain.StoreID(raw), true, nil
}
