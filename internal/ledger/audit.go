package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/storage"
)

// GenesisHash is the PrevHash of the first log entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

type logTail struct {
	Seq  uint64 `json:"seq"`
	Hash string `json:"hash"`
}

// appendLog records one action. The id is entity + "." + unix nanos; an id
// that already exists aborts the invocation rather than being reused.
func (l *Ledger) appendLog(ctx context.Context, tx storage.Tx, action string, actor domain.AccountID, entity string, extra map[string]string) (*domain.LogEntry, error) {
	ts := l.now().UnixNano()
	id := entity + "." + strconv.FormatInt(ts, 10)
	if len(extra) == 0 {
		extra = nil
	}

	taken, err := tx.Has(ctx, logEntryKey(id))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: log id %s already used", domain.ErrInternalInconsistency, id)
	}

	tail := logTail{Hash: GenesisHash}
	if _, err := getJSON(ctx, tx, logTailKey, &tail); err != nil {
		return nil, err
	}

	entry := &domain.LogEntry{
		ID:        id,
		Seq:       tail.Seq + 1,
		Timestamp: ts,
		Action:    action,
		Actor:     actor,
		Entity:    entity,
		Extra:     extra,
		PrevHash:  tail.Hash,
	}
	entry.Hash, err = computeEntryHash(entry)
	if err != nil {
		return nil, err
	}

	if err := putJSON(ctx, tx, logEntryKey(id), entry); err != nil {
		return nil, err
	}
	if err := tx.Put(ctx, logSeqKey(entry.Seq), []byte(id)); err != nil {
		return nil, err
	}
	if err := putJSON(ctx, tx, logTailKey, logTail{Seq: entry.Seq, Hash: entry.Hash}); err != nil {
		return nil, err
	}
	return entry, nil
}

func computeEntryHash(e *domain.LogEntry) (string, error) {
	// encoding/json sorts map keys, so extra hashes deterministically.
	extra, err := json.Marshal(e.Extra)
	if err != nil {
		return "", fmt.Errorf("encode log extra: %w", err)
	}
	data := fmt.Sprintf("%d|%s|%d|%s|%s|%s|%s|%s",
		e.Seq, e.ID, e.Timestamp, e.Action, e.Actor, e.Entity, extra, e.PrevHash)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:]), nil
}

// GetLog returns the entry with id. Callers look up ids they were handed, so
// a miss is an error.
func (l *Ledger) GetLog(ctx context.Context, tx storage.Tx, id string) (*domain.LogEntry, error) {
	var entry domain.LogEntry
	found, err := getJSON(ctx, tx, logEntryKey(id), &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: log %s doesn't exist", domain.ErrNotFound, id)
	}
	return &entry, nil
}

// Logs returns entries in append order, filtered by f.
func (l *Ledger) Logs(ctx context.Context, tx storage.Tx, f domain.LogFilter) ([]domain.LogEntry, error) {
	out := []domain.LogEntry{}
	err := l.walkLog(ctx, tx, func(e *domain.LogEntry) (bool, error) {
		if f.Entity != "" && e.Entity != f.Entity {
			return true, nil
		}
		if f.Actor != "" && e.Actor != f.Actor {
			return true, nil
		}
		if f.Action != "" && e.Action != f.Action {
			return true, nil
		}
		out = append(out, *e)
		return f.Limit <= 0 || len(out) < f.Limit, nil
	})
	return out, err
}

// VerifyChain re-walks the log and checks every link and hash. It returns
// the number of verified entries.
func (l *Ledger) VerifyChain(ctx context.Context, tx storage.Tx) (int, error) {
	expectedPrev := GenesisHash
	var expectedSeq uint64 = 1
	count := 0
	err := l.walkLog(ctx, tx, func(e *domain.LogEntry) (bool, error) {
		if e.Seq != expectedSeq {
			return false, fmt.Errorf("%w: expected seq %d, got %d", domain.ErrLogTampered, expectedSeq, e.Seq)
		}
		if e.PrevHash != expectedPrev {
			log.Errorf("Chain break at entry %s: expected prev hash %s, got %s", e.ID, expectedPrev, e.PrevHash)
			return false, fmt.Errorf("%w: chain break at %s", domain.ErrLogTampered, e.ID)
		}
		computed, err := computeEntryHash(e)
		if err != nil {
			return false, err
		}
		if computed != e.Hash {
			log.Errorf("Hash mismatch at entry %s: stored %s, computed %s", e.ID, e.Hash, computed)
			return false, fmt.Errorf("%w: hash mismatch at %s", domain.ErrLogTampered, e.ID)
		}
		expectedPrev = e.Hash
		expectedSeq++
		count++
		return true, nil
	})
	if err != nil {
		return count, err
	}

	tail := logTail{Hash: GenesisHash}
	if _, err := getJSON(ctx, tx, logTailKey, &tail); err != nil {
		return count, err
	}
	if tail.Hash != expectedPrev || tail.Seq != uint64(count) {
		return count, fmt.Errorf("%w: tail does not match last entry", domain.ErrLogTampered)
	}
	log.Infof("Audit chain verified: %d entries, integrity OK", count)
	return count, nil
}

func (l *Ledger) walkLog(ctx context.Context, tx storage.Tx, fn func(*domain.LogEntry) (bool, error)) error {
	pairs, err := tx.Scan(ctx, logSeqPrefix)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		entry, err := l.GetLog(ctx, tx, string(p.Value))
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s indexes missing log %s", domain.ErrInternalInconsistency, p.Key, p.Value)
		}
		if err != nil {
			return err
		}
		more, err := fn(entry)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
