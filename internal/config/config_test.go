package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/storehub/internal/storage"
)

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("STOREHUB_CONFIG", "")
	t.Setenv("OVERSEER_ID", "overseer")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestLoad_RequiresOverseer(t *testing.T) {
	t.Setenv("STOREHUB_CONFIG", "")
	t.Setenv("OVERSEER_ID", "")

	_, err := Load()
	assert.ErrorContains(t, err, "OVERSEER_ID")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
overseer: admin
port: "7000"
log_level: debug
storage:
  backend: sqlite
  sqlite_path: /tmp/ledger.db
`), 0o644))
	t.Setenv("STOREHUB_CONFIG", path)
	t.Setenv("OVERSEER_ID", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("SERVER_PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "admin", cfg.Overseer)
	assert.Equal(t, "7100", cfg.Port, "environment wins over the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/ledger.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "development", cfg.Env, "unset keys keep defaults")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Overseer = "overseer"
	require.NoError(t, cfg.Validate())

	cfg.Storage.Backend = BackendPostgres
	assert.ErrorContains(t, cfg.Validate(), "DB_SOURCE")

	cfg.Storage.Backend = "etcd"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage backend")
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Default()
	cfg.Overseer = "overseer"
	cfg.Storage.SQLitePath = filepath.Join(dir, "nested", "ledger.db")
	cfg.Storage.SnapshotPath = filepath.Join(dir, "ledger.json")

	for _, backend := range []string{BackendMemory, BackendFile, BackendSQLite} {
		cfg.Storage.Backend = backend
		b, err := cfg.OpenBackend(ctx)
		require.NoError(t, err, backend)

		tx, err := b.Begin(ctx, true)
		require.NoError(t, err)
		require.NoError(t, tx.Put(ctx, "k", []byte("v")))
		require.NoError(t, tx.Commit(ctx))
		require.NoError(t, b.Close())
	}

	_, err := storage.OpenFile(cfg.Storage.SnapshotPath)
	require.NoError(t, err)
}
