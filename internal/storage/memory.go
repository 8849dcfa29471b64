package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process backend. A writable transaction holds the writer
// lock for its whole life and buffers its writes in an overlay that is merged
// on Commit. When a Persistence is attached every commit is flushed to disk.
type Memory struct {
	mu        sync.RWMutex
	data      map[string][]byte
	persister *Persistence
}

// NewMemory creates a backend seeded with initialData (may be nil).
func NewMemory(initialData map[string][]byte, p *Persistence) *Memory {
	if initialData == nil {
		initialData = make(map[string][]byte)
	}
	return &Memory{data: initialData, persister: p}
}

// OpenFile loads a snapshot from path (if present) and persists every commit
// back to it.
func OpenFile(path string) (*Memory, error) {
	p, err := NewPersistence(path)
	if err != nil {
		return nil, err
	}
	data, err := p.Load()
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d keys from %s", len(data), path)
	return NewMemory(data, p), nil
}

func (m *Memory) Begin(ctx context.Context, writable bool) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if writable {
		m.mu.Lock()
	} else {
		m.mu.RLock()
	}
	return &memTx{m: m, writable: writable, writes: make(map[string][]byte)}, nil
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	m        *Memory
	writable bool
	writes   map[string][]byte
	done     bool
}

func (t *memTx) Get(ctx context.Context, key string) ([]byte, error) {
	if t.done {
		return nil, ErrTxClosed
	}
	if v, ok := t.writes[key]; ok {
		return cloneBytes(v), nil
	}
	if v, ok := t.m.data[key]; ok {
		return cloneBytes(v), nil
	}
	return nil, ErrKeyNotFound
}

func (t *memTx) Has(ctx context.Context, key string) (bool, error) {
	if t.done {
		return false, ErrTxClosed
	}
	if _, ok := t.writes[key]; ok {
		return true, nil
	}
	_, ok := t.m.data[key]
	return ok, nil
}

func (t *memTx) Put(ctx context.Context, key string, value []byte) error {
	if t.done {
		return ErrTxClosed
	}
	if !t.writable {
		return ErrReadOnly
	}
	t.writes[key] = cloneBytes(value)
	return nil
}

func (t *memTx) Scan(ctx context.Context, prefix string) ([]Pair, error) {
	if t.done {
		return nil, ErrTxClosed
	}
	merged := make(map[string][]byte)
	for k, v := range t.m.data {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k, v := range t.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	out := make([]Pair, 0, len(merged))
	for k, v := range merged {
		out = append(out, Pair{Key: k, Value: cloneBytes(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	defer t.release()
	if !t.writable || len(t.writes) == 0 {
		return nil
	}
	if t.m.persister != nil {
		// Flush before applying so a failed write leaves memory untouched.
		next := make(map[string][]byte, len(t.m.data)+len(t.writes))
		for k, v := range t.m.data {
			next[k] = v
		}
		for k, v := range t.writes {
			next[k] = v
		}
		if err := t.m.persister.Save(next); err != nil {
			return err
		}
		t.m.data = next
		return nil
	}
	for k, v := range t.writes {
		t.m.data[k] = v
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	t.done = true
	t.writes = nil
	if t.writable {
		t.m.mu.Unlock()
	} else {
		t.m.mu.RUnlock()
	}
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
