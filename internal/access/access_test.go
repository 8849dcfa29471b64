package access

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/storehub/internal/domain"
)

func TestNamespace_Deterministic(t *testing.T) {
	a := Namespace(KindAccountStores, "alice")
	b := Namespace(KindAccountStores, "alice")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "a"))
	assert.Len(t, a, 25)

	assert.NotEqual(t, a, Namespace(KindAccountStores, "bob"))
	assert.NotEqual(t, a, Namespace(KindStoreOwners, "alice"), "kinds must not share a prefix")
}

func TestValidateAccount(t *testing.T) {
	require.NoError(t, ValidateAccount("alice.near"))

	for _, bad := range []domain.AccountID{"", "has space", "tab\there", domain.AccountID(strings.Repeat("x", 65))} {
		err := ValidateAccount(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier, "account %q", bad)
	}
}

func TestValidateIdentifier_RejectsDelimiters(t *testing.T) {
	require.NoError(t, ValidateIdentifier("store", "shop1"))
	require.NoError(t, ValidateIdentifier("item", "item-1_a"))

	assert.ErrorIs(t, ValidateIdentifier("store", "shop.1"), domain.ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidateIdentifier("item", "a/b"), domain.ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidateIdentifier("item", ""), domain.ErrInvalidIdentifier)
}

func TestStoreItemKey(t *testing.T) {
	assert.Equal(t, "shop1.item1", StoreItemKey("shop1", "item1"))
}

func TestIsMember(t *testing.T) {
	set := []domain.AccountID{"alice", "carol"}
	assert.True(t, IsMember(set, "carol"))
	assert.False(t, IsMember(set, "bob"))
	assert.False(t, IsMember(nil, "bob"))
}
