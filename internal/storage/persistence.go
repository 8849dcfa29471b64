package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Persistence writes Memory snapshots to a single JSON file.
type Persistence struct {
	Path string
	mu   sync.Mutex
}

// NewPersistence ensures the snapshot directory exists.
func NewPersistence(path string) (*Persistence, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Persistence{Path: path}, nil
}

// Save writes data atomically: temp file first, then rename over the old
// snapshot, so a crash leaves either the previous or the new file.
func (p *Persistence) Save(data map[string][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tempPath := p.Path + ".tmp"
	if err := os.WriteFile(tempPath, bytes, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tempPath, p.Path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty ledger.
func (p *Persistence) Load() (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	content, err := os.ReadFile(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string][]byte), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	data := make(map[string][]byte)
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", p.Path, err)
	}
	return data, nil
}
