package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CreateStoreRequest is the payload for POST /stores.
type CreateStoreRequest struct {
	StoreID string `json:"store_id"`
}

// AddOwnerRequest is the payload for POST /stores/{store}/owners.
type AddOwnerRequest struct {
	Owner string `json:"owner"`
}

// AddItemRequest is the payload for POST /stores/{store}/items.
// Price accepts a JSON string or number.
type AddItemRequest struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageRef string          `json:"image_ref"`
}

// BuyRequest is the payload for POST /items/{item}/buy. Payment is the
// amount attached to the call.
type BuyRequest struct {
	StoreID string          `json:"store_id"`
	Payment decimal.Decimal `json:"payment"`
}

// AddTokenRequest is the payload for POST /tokens.
type AddTokenRequest struct {
	TokenID string `json:"token_id"`
}

// TokenStatus answers GET /tokens/{token}.
type TokenStatus struct {
	TokenID  string `json:"token_id"`
	Approved bool   `json:"approved"`
}

// AuditStatus answers GET /audit/verify.
type AuditStatus struct {
	Entries int  `json:"entries"`
	Intact  bool `json:"intact"`
}

// IdempotencyRecord holds the committed outcome of a keyed purchase.
type IdempotencyRecord struct {
	Key            string          `json:"key"`
	RequestHash    string          `json:"request_hash"`
	Status         string          `json:"status"`
	ResponseBody   json.RawMessage `json:"response_body"`
	ResponseStatus int             `json:"response_status"`
}
