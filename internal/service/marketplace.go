package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/ledger"
	"github.com/punchamoorthee/storehub/internal/models"
	"github.com/punchamoorthee/storehub/internal/storage"
)

var log = logging.Logger("storehub/service")

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehub_ledger_operations_total",
		Help: "Ledger invocations, labeled by operation and outcome",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storehub_ledger_operation_duration_seconds",
		Help:    "Latency of ledger invocations including commit",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})

	purchaseVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storehub_purchase_volume_total",
		Help: "Sum of payments settled by purchases (approximate, float64)",
	})
)

// Marketplace runs every ledger operation as one transaction: begin, apply,
// commit on success, roll back on any error.
type Marketplace struct {
	backend storage.Backend
	ledger  *ledger.Ledger
}

func NewMarketplace(backend storage.Backend, l *ledger.Ledger) *Marketplace {
	return &Marketplace{backend: backend, ledger: l}
}

// Ledger exposes the underlying state machine configuration.
func (s *Marketplace) Ledger() *ledger.Ledger { return s.ledger }

func (s *Marketplace) CreateStore(ctx context.Context, caller domain.AccountID, store domain.StoreID) error {
	return s.update(ctx, "create_store", func(tx storage.Tx) error {
		return s.ledger.CreateStore(ctx, tx, caller, store)
	})
}

func (s *Marketplace) AddStoreOwner(ctx context.Context, caller domain.AccountID, store domain.StoreID, owner domain.AccountID) error {
	return s.update(ctx, "add_store_owner", func(tx storage.Tx) error {
		return s.ledger.AddStoreOwner(ctx, tx, caller, store, owner)
	})
}

func (s *Marketplace) StoresByAccount(ctx context.Context, account domain.AccountID) ([]domain.StoreID, error) {
	var out []domain.StoreID
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		out, err = s.ledger.StoresByAccount(ctx, tx, account)
		return err
	})
	return out, err
}

func (s *Marketplace) OwnersByStore(ctx context.Context, store domain.StoreID) ([]domain.AccountID, error) {
	var out []domain.AccountID
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		out, err = s.ledger.OwnersByStore(ctx, tx, store)
		return err
	})
	return out, err
}

func (s *Marketplace) AddStoreItem(ctx context.Context, caller domain.AccountID, in domain.NewItem) (*domain.Item, error) {
	var item *domain.Item
	err := s.update(ctx, "add_store_item", func(tx storage.Tx) (err error) {
		item, err = s.ledger.AddStoreItem(ctx, tx, caller, in)
		return err
	})
	return item, err
}

// GetItem returns (nil, false, nil) when the item is unknown.
func (s *Marketplace) GetItem(ctx context.Context, id domain.ItemID) (*domain.Item, bool, error) {
	var (
		item *domain.Item
		ok   bool
	)
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		item, ok, err = s.ledger.GetItem(ctx, tx, id)
		return err
	})
	return item, ok, err
}

func (s *Marketplace) ItemsByStore(ctx context.Context, store domain.StoreID) ([]domain.Item, error) {
	var out []domain.Item
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		out, err = s.ledger.ItemsByStore(ctx, tx, store)
		return err
	})
	return out, err
}

// Buy executes a purchase. With a non-empty idempotencyKey the committed
// result is stored under the key: a retry with the same reqHash replays it
// (replayed == true) and a retry with a different payload is rejected.
func (s *Marketplace) Buy(ctx context.Context, caller domain.AccountID, req domain.BuyRequest, idempotencyKey, reqHash string) (res *domain.BuyResult, replayed bool, err error) {
	err = s.update(ctx, "buy", func(tx storage.Tx) error {
		if idempotencyKey != "" {
			prior, err := loadIdempotency(ctx, tx, idempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				if prior.RequestHash != reqHash {
					return domain.ErrIdempotencyMismatch
				}
				var stored domain.BuyResult
				if err := json.Unmarshal(prior.ResponseBody, &stored); err != nil {
					return fmt.Errorf("%w: idempotency record %s: %v", domain.ErrInternalInconsistency, idempotencyKey, err)
				}
				res, replayed = &stored, true
				return nil
			}
		}

		res, err = s.ledger.Buy(ctx, tx, caller, req.ItemID, req.StoreID, req.Payment)
		if err != nil {
			return err
		}

		if idempotencyKey != "" {
			body, err := json.Marshal(res)
			if err != nil {
				return err
			}
			rec := models.IdempotencyRecord{
				Key:            idempotencyKey,
				RequestHash:    reqHash,
				Status:         "completed",
				ResponseBody:   body,
				ResponseStatus: http.StatusCreated,
			}
			if err := saveIdempotency(ctx, tx, rec); err != nil {
				return fmt.Errorf("idempotency update failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		purchaseVolume.Add(res.Paid.InexactFloat64())
	}
	return res, replayed, nil
}

func (s *Marketplace) GetLog(ctx context.Context, id string) (*domain.LogEntry, error) {
	var entry *domain.LogEntry
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		entry, err = s.ledger.GetLog(ctx, tx, id)
		return err
	})
	return entry, err
}

func (s *Marketplace) Logs(ctx context.Context, f domain.LogFilter) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		out, err = s.ledger.Logs(ctx, tx, f)
		return err
	})
	return out, err
}

// VerifyAudit checks the hash chain of the whole audit log.
func (s *Marketplace) VerifyAudit(ctx context.Context) (int, error) {
	var n int
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		n, err = s.ledger.VerifyChain(ctx, tx)
		return err
	})
	return n, err
}

func (s *Marketplace) AddApprovedToken(ctx context.Context, caller, token domain.AccountID) error {
	return s.update(ctx, "add_approved_token", func(tx storage.Tx) error {
		return s.ledger.AddApprovedToken(ctx, tx, caller, token)
	})
}

func (s *Marketplace) IsTokenApproved(ctx context.Context, token domain.AccountID) (bool, error) {
	var ok bool
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		ok, err = s.ledger.IsTokenApproved(ctx, tx, token)
		return err
	})
	return ok, err
}

func (s *Marketplace) ApprovedTokens(ctx context.Context) ([]domain.AccountID, error) {
	var out []domain.AccountID
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		out, err = s.ledger.ApprovedTokens(ctx, tx)
		return err
	})
	return out, err
}

func (s *Marketplace) Balance(ctx context.Context, account domain.AccountID) (domain.Balance, error) {
	var b domain.Balance
	err := s.view(ctx, func(tx storage.Tx) (err error) {
		b, err = s.ledger.Balance(ctx, tx, account)
		return err
	})
	return b, err
}

func (s *Marketplace) update(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	tx, err := s.backend.Begin(ctx, true)
	if err != nil {
		operationsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		operationsTotal.WithLabelValues(op, outcome(err)).Inc()
		if kind := domain.Kind(err); kind == nil || kind == domain.ErrInternalInconsistency {
			log.Errorf("%s aborted: %v", op, err)
		} else {
			log.Debugf("%s rejected: %v", op, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		operationsTotal.WithLabelValues(op, "error").Inc()
		log.Errorf("%s commit failed: %v", op, err)
		return fmt.Errorf("tx commit failed: %w", err)
	}
	operationsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

func (s *Marketplace) view(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.backend.Begin(ctx, false)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

func outcome(err error) string {
	if kind := domain.Kind(err); kind != nil {
		return kind.Error()
	}
	return "error"
}

func idempotencyKey(key string) string { return "idem/" + key }

func loadIdempotency(ctx context.Context, tx storage.Tx, key string) (*models.IdempotencyRecord, error) {
	raw, err := tx.Get(ctx, idempotencyKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	var rec models.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: idempotency record %s: %v", domain.ErrInternalInconsistency, key, err)
	}
	return &rec, nil
}

func saveIdempotency(ctx context.Context, tx storage.Tx, rec models.IdempotencyRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Put(ctx, idempotencyKey(rec.Key), raw)
}
