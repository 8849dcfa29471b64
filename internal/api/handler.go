package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/service"
)

var log = logging.Logger("storehub/api")

const (
	headerAccountID   = "X-Account-ID"
	headerRequestID   = "X-Request-ID"
	headerIdempotency = "Idempotency-Key"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehub_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storehub_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	service *service.Marketplace
}

func NewHandler(svc *service.Marketplace) *Handler {
	return &Handler{service: svc}
}

// NewRouter wires every route. Ledger routes live under /api/v1.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, instrument)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/stores", h.CreateStoreHandler).Methods("POST")
	v1.HandleFunc("/stores/{store}/owners", h.GetOwnersHandler).Methods("GET")
	v1.HandleFunc("/stores/{store}/owners", h.AddOwnerHandler).Methods("POST")
	v1.HandleFunc("/stores/{store}/items", h.GetStoreItemsHandler).Methods("GET")
	v1.HandleFunc("/stores/{store}/items", h.AddItemHandler).Methods("POST")
	v1.HandleFunc("/accounts/{account}/stores", h.GetAccountStoresHandler).Methods("GET")
	v1.HandleFunc("/accounts/{account}/balance", h.GetBalanceHandler).Methods("GET")
	v1.HandleFunc("/items/{item}", h.GetItemHandler).Methods("GET")
	v1.HandleFunc("/items/{item}/buy", h.BuyHandler).Methods("POST")
	v1.HandleFunc("/logs", h.GetLogsHandler).Methods("GET")
	v1.HandleFunc("/logs/{id}", h.GetLogHandler).Methods("GET")
	v1.HandleFunc("/audit/verify", h.VerifyAuditHandler).Methods("GET")
	v1.HandleFunc("/tokens", h.AddTokenHandler).Methods("POST")
	v1.HandleFunc("/tokens", h.GetTokensHandler).Methods("GET")
	v1.HandleFunc("/tokens/{token}", h.GetTokenHandler).Methods("GET")
	return r
}

// requestID tags every request with an X-Request-ID, keeping a client
// supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		log.Debugf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, rec.status, elapsed, r.Header.Get(headerRequestID))
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch domain.Kind(err) {
	case domain.ErrInvalidIdentifier, domain.ErrInvalidAmount:
		return http.StatusBadRequest
	case domain.ErrAccessDenied:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrAlreadyExists, domain.ErrMismatch, domain.ErrLogTampered:
		return http.StatusConflict
	case domain.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.ErrSelfPurchaseRejected, domain.ErrIdempotencyMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Errorf("request %s failed: %v", r.Header.Get(headerRequestID), err)
		if errors.Is(err, domain.ErrInternalInconsistency) {
			respondWithError(w, code, err.Error())
			return
		}
		respondWithError(w, code, "Internal Server Error")
		return
	}
	respondWithError(w, code, err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
