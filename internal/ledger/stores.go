package ledger

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/storehub/internal/access"
	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

// CreateStore registers store under caller and makes caller its first owner.
// Repeating the call as an existing owner is a no-op; any other account gets
// AccessDenied because the store is already claimed.
func (l *Ledger) CreateStore(ctx context.Context, tx storage.Tx, caller domain.AccountID, store domain.StoreID) error {
	if err := access.ValidateAccount(caller); err != nil {
		return err
	}
	if err := access.ValidateIdentifier("store", string(store)); err != nil {
		return err
	}

	owners, err := l.OwnersByStore(ctx, tx, store)
	if err != nil {
		return err
	}
	if len(owners) > 0 && !access.IsMember(owners, caller) {
		return fmt.Errorf("%w: store %s already exists", domain.ErrAccessDenied, store)
	}

	if err := tx.Put(ctx, accountStoresPrefix(caller)+string(store), []byte(store)); err != nil {
		return err
	}
	if len(owners) > 0 {
		return nil
	}

	if err := l.seedOwner(ctx, tx, store, caller); err != nil {
		return err
	}
	if _, err := l.appendLog(ctx, tx, "create_store", caller, string(store), map[string]string{"owner": string(caller)}); err != nil {
		return err
	}
	log.Debugf("Store %s created by %s", store, caller)
	return nil
}

// seedOwner inserts the first owner of a store. Only CreateStore reaches it,
// so no external caller can claim an ownerless store.
func (l *Ledger) seedOwner(ctx context.Context, tx storage.Tx, store domain.StoreID, owner domain.AccountID) error {
	return tx.Put(ctx, storeOwnersPrefix(store)+string(owner), []byte(owner))
}

// AddStoreOwner grants newOwner management rights over store. caller must
// already be an owner.
func (l *Ledger) AddStoreOwner(ctx context.Context, tx storage.Tx, caller domain.AccountID, store domain.StoreID, newOwner domain.AccountID) error {
	if err := access.ValidateAccount(caller); err != nil {
		return err
	}
	if err := access.ValidateAccount(newOwner); err != nil {
		return err
	}
	if err := access.ValidateIdentifier("store", string(store)); err != nil {
		return err
	}

	owners, err := l.OwnersByStore(ctx, tx, store)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return fmt.Errorf("%w: store %s doesn't exist", domain.ErrNotFound, store)
	}
	if !access.IsMember(owners, caller) {
		return fmt.Errorf("%w: signer not store owner", domain.ErrAccessDenied)
	}
	if access.IsMember(owners, newOwner) {
		return nil
	}

	if err := tx.Put(ctx, storeOwnersPrefix(store)+string(newOwner), []byte(newOwner)); err != nil {
		return err
	}
	_, err = l.appendLog(ctx, tx, "add_store_owner", caller, string(store), map[string]string{"owner": string(newOwner)})
	return err
}

// StoresByAccount lists the stores account created, sorted by id.
func (l *Ledger) StoresByAccount(ctx context.Context, tx storage.Tx, account domain.AccountID) ([]domain.StoreID, error) {
	pairs, err := tx.Scan(ctx, accountStoresPrefix(account))
	if err != nil {
		return nil, err
	}
	stores := make([]domain.StoreID, 0, len(pairs))
	for _, p := range pairs {
		stores = append(stores, domain.StoreID(p.Value))
	}
	return stores, nil
}

// OwnersByStore lists the owners of store, sorted by id. Unknown stores have
// no owners.
func (l *Ledger) OwnersByStore(ctx context.Context, tx storage.Tx, store domain.StoreID) ([]domain.AccountID, error) {
	pairs, err := tx.Scan(ctx, storeOwnersPrefix(store))
	if err != nil {
		return nil, err
	}
	owners := make([]domain.AccountID, 0, len(pairs))
	for _, p := range pairs {
		owners = append(owners, domain.AccountID(p.Value))
	}
	return owners, nil
}
