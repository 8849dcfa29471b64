package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// AccountID identifies a principal supplied by the identity provider.
type AccountID string

// StoreID identifies a store. A store is itself an addressable principal.
type StoreID string

// ItemID identifies an item. Unique across the whole ledger, not per store.
type ItemID string

// maxAmount is 2^128, the exclusive upper bound for any amount.
var maxAmount = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

// maxAmountDigits is the number of decimal digits in 2^128.
const maxAmountDigits = 39

// ParseAmount parses a base-10 unsigned 128-bit integer.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if reason := checkAmount(d); reason != "" {
		return decimal.Zero, fmt.Errorf("%w: %q %s", ErrInvalidAmount, s, reason)
	}
	return d, nil
}

// ValidateAmount checks that d is a whole, non-negative number below 2^128.
func ValidateAmount(d decimal.Decimal) error {
	if reason := checkAmount(d); reason != "" {
		return fmt.Errorf("%w: amount %s", ErrInvalidAmount, reason)
	}
	return nil
}

// checkAmount returns why d is not a valid amount, or "" if it is.
// Coefficient length and exponent are bounded before any exact comparison,
// since rescaling a decimal with a huge exponent costs time proportional to
// the exponent. Messages never format d for the same reason.
func checkAmount(d decimal.Decimal) string {
	switch d.Sign() {
	case -1:
		return "is negative"
	case 0:
		return ""
	}

	digits := len(d.Coefficient().Text(10))
	exp := int(d.Exponent())
	if exp < 0 && -exp >= digits {
		// 0 < |d| < 1
		return "is not a whole number"
	}
	if digits+exp > maxAmountDigits {
		return "overflows 128 bits"
	}

	if !d.Equal(d.Truncate(0)) {
		return "is not a whole number"
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return "overflows 128 bits"
	}
	return ""
}

// ItemMetadata is the state stored under a StoreAndItem key.
// Name, Price and ImageRef never change after listing.
type ItemMetadata struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	ImageRef     string          `json:"image_ref"`
	CurrentOwner AccountID       `json:"current_owner"`
}

// Item is the resolved view of a listed item.
type Item struct {
	ID       ItemID       `json:"id"`
	StoreID  StoreID      `json:"store_id"`
	Key      string       `json:"key"`
	Metadata ItemMetadata `json:"metadata"`
}

// NewItem carries the arguments of a listing.
type NewItem struct {
	ID       ItemID
	StoreID  StoreID
	Name     string
	Price    decimal.Decimal
	ImageRef string
}

// LogEntry is one immutable audit record. Entries are hash-linked by Seq.
type LogEntry struct {
	ID        string            `json:"id"`
	Seq       uint64            `json:"seq"`
	Timestamp int64             `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     AccountID         `json:"actor"`
	Entity    string            `json:"entity"`
	Extra     map[string]string `json:"extra,omitempty"`
	PrevHash  string            `json:"prev_hash"`
	Hash      string            `json:"hash"`
}

// LogFilter narrows a log listing. Zero values match everything.
type LogFilter struct {
	Entity string
	Actor  AccountID
	Action string
	Limit  int
}

// BuyRequest is a purchase intent with the payment attached to the call.
type BuyRequest struct {
	ItemID  ItemID          `json:"item_id"`
	StoreID StoreID         `json:"store_id"`
	Payment decimal.Decimal `json:"payment"`
}

// BuyResult is returned by a successful purchase.
type BuyResult struct {
	Message       string          `json:"message"`
	LogID         string          `json:"log_id"`
	Item          Item            `json:"item"`
	Paid          decimal.Decimal `json:"paid"`
	PreviousOwner AccountID       `json:"previous_owner"`
}

// Balance is the payout balance credited to an account by purchases.
type Balance struct {
	AccountID AccountID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}
