// Package access derives storage namespaces for accounts and stores and
// validates the identifiers that flow into them.
package access

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/punchamoorthee/storehub/internal/domain"
)

// KeyDelimiter joins a store id and an item id into a StoreAndItem key.
const KeyDelimiter = "."

// keySeparator separates segments of storage keys.
const keySeparator = "/"

// MaxIdentifierLength matches the longest account id the identity provider issues.
const MaxIdentifierLength = 64

// Kind tags the collection family a namespace belongs to.
type Kind byte

const (
	KindAccountStores Kind = 'a'
	KindStoreOwners   Kind = 'o'
	KindStoreItems    Kind = 'i'
)

// Namespace returns the deterministic collection prefix for id within kind.
// The same (kind, id) always yields the same prefix and different kinds never
// share one.
func Namespace(kind Kind, id string) string {
	sum := sha256.Sum256([]byte(id))
	return string(kind) + hex.EncodeToString(sum[:12])
}

// ValidateAccount checks an account id supplied by a caller.
func ValidateAccount(id domain.AccountID) error {
	return validate("account", string(id), false)
}

// ValidateIdentifier checks a store, item or token id. These end up inside
// composite keys, so the delimiters are rejected as well.
func ValidateIdentifier(field, id string) error {
	return validate(field, id, true)
}

func validate(field, id string, strict bool) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is empty", domain.ErrInvalidIdentifier, field)
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%w: %s id longer than %d bytes", domain.ErrInvalidIdentifier, field, MaxIdentifierLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %s id %q contains whitespace", domain.ErrInvalidIdentifier, field, id)
		}
	}
	if strict && (strings.Contains(id, KeyDelimiter) || strings.Contains(id, keySeparator)) {
		return fmt.Errorf("%w: %s id %q contains a reserved delimiter", domain.ErrInvalidIdentifier, field, id)
	}
	return nil
}

// StoreItemKey builds the composite key addressing an item's metadata.
func StoreItemKey(store domain.StoreID, item domain.ItemID) string {
	return string(store) + KeyDelimiter + string(item)
}

// IsMember reports whether account is in set.
func IsMember(set []domain.AccountID, account domain.AccountID) bool {
	for _, a := range set {
		if a == account {
			return true
		}
	}
	return false
}
