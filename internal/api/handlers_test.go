package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/ledger"
	"github.com/punchamoorthee/storehub/internal/models"
	"github.com/punchamoorthee/storehub/internal/service"
	"github.com/punchamoorthee/storehub/internal/storage"
	"github.com/punchamoorthee/storehub/internal/testutil"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	clock := testutil.NewStepClock()
	l := ledger.New("overseer", ledger.WithClock(clock.Now))
	return NewRouter(NewHandler(service.NewMarketplace(storage.NewMemory(nil, nil), l)))
}

func do(t *testing.T, r http.Handler, method, path, account string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if account != "" {
		req.Header.Set(headerAccountID, account)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func seedShop(t *testing.T, r http.Handler) {
	t.Helper()
	rec := do(t, r, "POST", "/api/v1/stores", "alice", models.CreateStoreRequest{StoreID: "shop1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, r, "POST", "/api/v1/stores/shop1/items", "alice", map[string]string{
		"item_id": "item1", "name": "Lamp", "price": "1000", "image_ref": "ipfs://lamp",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthAndRequestID(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	rec = do(t, r, "GET", "/health", "", nil, headerRequestID, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestStoreAndItemRoutes(t *testing.T) {
	r := newTestRouter(t)
	seedShop(t, r)

	rec := do(t, r, "POST", "/api/v1/stores/shop1/owners", "alice", models.AddOwnerRequest{Owner: "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, "GET", "/api/v1/accounts/alice/stores", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"account_id":"alice","stores":["shop1"]}`, rec.Body.String())

	rec = do(t, r, "GET", "/api/v1/items/item1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var item domain.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, domain.AccountID("alice"), item.Metadata.CurrentOwner)
	assert.Equal(t, "shop1.item1", item.Key)

	rec = do(t, r, "GET", "/api/v1/stores/shop1/items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []domain.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)
}

func TestErrorStatusMapping(t *testing.T) {
	r := newTestRouter(t)
	seedShop(t, r)

	cases := []struct {
		name    string
		method  string
		path    string
		account string
		body    any
		status  int
	}{
		{"missing caller", "POST", "/api/v1/stores", "", models.CreateStoreRequest{StoreID: "x"}, http.StatusUnauthorized},
		{"bad identifier", "POST", "/api/v1/stores", "alice", models.CreateStoreRequest{StoreID: "a.b"}, http.StatusBadRequest},
		{"claimed store", "POST", "/api/v1/stores", "mallory", models.CreateStoreRequest{StoreID: "shop1"}, http.StatusForbidden},
		{"non owner lists", "POST", "/api/v1/stores/shop1/items", "mallory", map[string]string{"item_id": "i2", "name": "n", "price": "1"}, http.StatusForbidden},
		{"duplicate item", "POST", "/api/v1/stores/shop1/items", "alice", map[string]string{"item_id": "item1", "name": "n", "price": "1"}, http.StatusConflict},
		{"unknown item", "GET", "/api/v1/items/nope", "", nil, http.StatusNotFound},
		{"underpaid", "POST", "/api/v1/items/item1/buy", "bob", map[string]string{"store_id": "shop1", "payment": "999"}, http.StatusPaymentRequired},
		{"self purchase", "POST", "/api/v1/items/item1/buy", "alice", map[string]string{"store_id": "shop1", "payment": "1000"}, http.StatusUnprocessableEntity},
		{"wrong store", "POST", "/api/v1/items/item1/buy", "bob", map[string]string{"store_id": "shop2", "payment": "1000"}, http.StatusConflict},
		{"negative payment", "POST", "/api/v1/items/item1/buy", "bob", map[string]string{"store_id": "shop1", "payment": "-1"}, http.StatusBadRequest},
		{"token by non overseer", "POST", "/api/v1/tokens", "alice", models.AddTokenRequest{TokenID: "usdc"}, http.StatusForbidden},
		{"bad limit", "GET", "/api/v1/logs?limit=x", "", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.account, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest("POST", "/api/v1/stores", bytes.NewBufferString("{"))
	req.Header.Set(headerAccountID, "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBodyTooLarge(t *testing.T) {
	r := newTestRouter(t)
	seedShop(t, r)

	payload := map[string]string{"store_id": "shop1", "payment": strings.Repeat("9", maxBodyBytes)}
	rec := do(t, r, "POST", "/api/v1/items/item1/buy", "bob", payload)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	rec = do(t, r, "GET", "/api/v1/items/item1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_owner":"alice"`)
}

func TestBuyRoute_HugeExponentDoesNotStallWriters(t *testing.T) {
	r := newTestRouter(t)
	seedShop(t, r)

	var (
		wg       sync.WaitGroup
		buyRec   *httptest.ResponseRecorder
		storeRec *httptest.ResponseRecorder
	)
	start := time.Now()
	wg.Add(2)
	go func() {
		defer wg.Done()
		buyRec = do(t, r, "POST", "/api/v1/items/item1/buy", "bob", map[string]string{"store_id": "shop1", "payment": "1e10000000"})
	}()
	go func() {
		defer wg.Done()
		storeRec = do(t, r, "POST", "/api/v1/stores", "carol", models.CreateStoreRequest{StoreID: "shop2"})
	}()
	wg.Wait()

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusBadRequest, buyRec.Code)
	assert.Less(t, buyRec.Body.Len(), 200)
	assert.Equal(t, http.StatusCreated, storeRec.Code)
}

func TestBuyRoute_Idempotency(t *testing.T) {
	r := newTestRouter(t)
	seedShop(t, r)
	payload := map[string]string{"store_id": "shop1", "payment": "1500"}

	rec := do(t, r, "POST", "/api/v1/items/item1/buy", "bob", payload, headerIdempotency, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first domain.BuyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "/api/v1/logs/"+first.LogID, rec.Header().Get("Location"))

	rec = do(t, r, "POST", "/api/v1/items/item1/buy", "bob", payload, headerIdempotency, "k-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replay domain.BuyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replay))
	assert.Equal(t, first.LogID, replay.LogID)

	rec = do(t, r, "POST", "/api/v1/items/item1/buy", "carol", payload, headerIdempotency, "k-1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, r, "GET", "/api/v1/accounts/alice/balance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"account_id":"alice","amount":"1500"}`, rec.Body.String())
}

func TestLogsAndAudit(t *testing.T) {
	r := newTestRouter(t)
	seedShop(t, r)
	rec := do(t, r, "POST", "/api/v1/items/item1/buy", "bob", map[string]string{"store_id": "shop1", "payment": "1000"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, "GET", "/api/v1/logs?action=buy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AccountID("bob"), entries[0].Actor)

	rec = do(t, r, "GET", "/api/v1/logs/"+entries[0].ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, "GET", "/api/v1/logs/missing.1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, "GET", "/api/v1/audit/verify", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":3,"intact":true}`, rec.Body.String())
}

func TestTokenRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, "POST", "/api/v1/tokens", "overseer", models.AddTokenRequest{TokenID: "usdc.token"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, "GET", "/api/v1/tokens/usdc.token", "", nil)
	assert.JSONEq(t, `{"token_id":"usdc.token","approved":true}`, rec.Body.String())

	rec = do(t, r, "GET", "/api/v1/tokens/dai.token", "", nil)
	assert.JSONEq(t, `{"token_id":"dai.token","approved":false}`, rec.Body.String())

	rec = do(t, r, "GET", "/api/v1/tokens", "", nil)
	assert.JSONEq(t, `{"tokens":["usdc.token"]}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.ErrInternalInconsistency))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrLogTampered))
}
