package ledger

import (
	"fmt"

	"github.com/punchamoorthee/storehub/internal/access"
	"github.com/punchamoorthee/storehub/internal/domain"
)

// Storage key layout. Nested collections live under namespaces derived by
// the access package so that no account or store id can escape its prefix.
//
//	acct/<ns>/stores/<store>    store ids created by an account
//	store/<ns>/owners/<account> owner set of a store
//	store/<ns>/items/<item>     items listed by a store
//	item/<item>                 item -> store index
//	meta/<store>.<item>         item metadata
//	log/entry/<id>              audit entries
//	log/seq/<seq>               sequence -> log id
//	log/tail                    last seq and hash
//	token/<token>               approved payment tokens
//	balance/<account>           payout balances

func accountStoresPrefix(account domain.AccountID) string {
	return "acct/" + access.Namespace(access.KindAccountStores, string(account)) + "/stores/"
}

func storeOwnersPrefix(store domain.StoreID) string {
	return "store/" + access.Namespace(access.KindStoreOwners, string(store)) + "/owners/"
}

func storeItemsPrefix(store domain.StoreID) string {
	return "store/" + access.Namespace(access.KindStoreItems, string(store)) + "/items/"
}

func itemIndexKey(item domain.ItemID) string { return "item/" + string(item) }

func metadataKey(composite string) string { return "meta/" + composite }

func logEntryKey(id string) string { return "log/entry/" + id }

func logSeqKey(seq uint64) string { return fmt.Sprintf("log/seq/%020d", seq) }

const (
	logSeqPrefix = "log/seq/"
	logTailKey   = "log/tail"
	tokenPrefix  = "token/"
)

func balanceKey(account domain.AccountID) string { return "balance/" + string(account) }
