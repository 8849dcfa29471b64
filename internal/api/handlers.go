package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/models"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 8 << 10

var errNoCaller = errors.New("missing " + headerAccountID + " header")

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the signer of a mutating request.
func caller(r *http.Request) (domain.AccountID, error) {
	id := r.Header.Get(headerAccountID)
	if id == "" {
		return "", errNoCaller
	}
	return domain.AccountID(id), nil
}

// decodeBody reads the JSON body into v and returns the raw bytes.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return nil, false
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))
	if err := json.Unmarshal(body, v); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return nil, false
	}
	return body, true
}

func (h *Handler) CreateStoreHandler(w http.ResponseWriter, r *http.Request) {
	signer, err := caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req models.CreateStoreRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	store := domain.StoreID(req.StoreID)
	if err := h.service.CreateStore(r.Context(), signer, store); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	owners, err := h.service.OwnersByStore(r.Context(), store)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/stores/%s/owners", store))
	respondWithJSON(w, http.StatusCreated, map[string]any{"store_id": store, "owners": owners})
}

func (h *Handler) AddOwnerHandler(w http.ResponseWriter, r *http.Request) {
	signer, err := caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req models.AddOwnerRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	store := domain.StoreID(mux.Vars(r)["store"])
	if err := h.service.AddStoreOwner(r.Context(), signer, store, domain.AccountID(req.Owner)); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	owners, err := h.service.OwnersByStore(r.Context(), store)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"store_id": store, "owners": owners})
}

func (h *Handler) GetOwnersHandler(w http.ResponseWriter, r *http.Request) {
	store := domain.StoreID(mux.Vars(r)["store"])
	owners, err := h.service.OwnersByStore(r.Context(), store)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"store_id": store, "owners": owners})
}

func (h *Handler) GetAccountStoresHandler(w http.ResponseWriter, r *http.Request) {
	account := domain.AccountID(mux.Vars(r)["account"])
	stores, err := h.service.StoresByAccount(r.Context(), account)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"account_id": account, "stores": stores})
}

func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Balance(r.Context(), domain.AccountID(mux.Vars(r)["account"]))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

func (h *Handler) AddItemHandler(w http.ResponseWriter, r *http.Request) {
	signer, err := caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req models.AddItemRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	item, err := h.service.AddStoreItem(r.Context(), signer, domain.NewItem{
		ID:       domain.ItemID(req.ItemID),
		StoreID:  domain.StoreID(mux.Vars(r)["store"]),
		Name:     req.Name,
		Price:    req.Price,
		ImageRef: req.ImageRef,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/items/%s", item.ID))
	respondWithJSON(w, http.StatusCreated, item)
}

func (h *Handler) GetStoreItemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ItemsByStore(r.Context(), domain.StoreID(mux.Vars(r)["store"]))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *Handler) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	id := domain.ItemID(mux.Vars(r)["item"])
	item, ok, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if !ok {
		respondWithServiceError(w, r, fmt.Errorf("%w: item %s doesn't exist", domain.ErrNotFound, id))
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *Handler) BuyHandler(w http.ResponseWriter, r *http.Request) {
	signer, err := caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req models.BuyRequest
	body, ok := decodeBody(w, r, &req)
	if !ok {
		return
	}
	item := domain.ItemID(mux.Vars(r)["item"])

	// The hash covers the target item and signer as well as the body.
	hash := sha256.New()
	fmt.Fprintf(hash, "%s\n%s\n", signer, item)
	hash.Write(body)
	reqHash := hex.EncodeToString(hash.Sum(nil))

	res, replayed, err := h.service.Buy(r.Context(), signer, domain.BuyRequest{
		ItemID:  item,
		StoreID: domain.StoreID(req.StoreID),
		Payment: req.Payment,
	}, r.Header.Get(headerIdempotency), reqHash)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/logs/%s", res.LogID))
	if replayed {
		respondWithJSON(w, http.StatusOK, res)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetLogsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LogFilter{
		Entity: q.Get("entity"),
		Actor:  domain.AccountID(q.Get("actor")),
		Action: q.Get("action"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	entries, err := h.service.Logs(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) GetLogHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetLog(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

func (h *Handler) VerifyAuditHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.VerifyAudit(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.AuditStatus{Entries: n, Intact: true})
}

func (h *Handler) AddTokenHandler(w http.ResponseWriter, r *http.Request) {
	signer, err := caller(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req models.AddTokenRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	token := domain.AccountID(req.TokenID)
	if err := h.service.AddApprovedToken(r.Context(), signer, token); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.TokenStatus{TokenID: req.TokenID, Approved: true})
}

func (h *Handler) GetTokensHandler(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.service.ApprovedTokens(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *Handler) GetTokenHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	ok, err := h.service.IsTokenApproved(r.Context(), domain.AccountID(token))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.TokenStatus{TokenID: token, Approved: ok})
}
