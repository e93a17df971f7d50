package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/config"
	"github.com/spec-kit/pod-console/internal/storage"
)

func TestOpenStorageFile(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{
		Backend:  config.BackendFile,
		FilePath: filepath.Join(t.TempDir(), "storage.json"),
	}}

	store, closeFn, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	_, ok := store.(*storage.FileStore)
	assert.True(t, ok)
	require.NoError(t, store.Ping(context.Background()))
}

func TestOpenStorageMemory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: config.BackendMemory}}

	store, closeFn, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, store.Set(context.Background(), "token", "x"))
}

func TestOpenStorageUnknown(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "cookie"}}
	_, _, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewPostgresRequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.Error(t, err)
}

func TestNilPostgresPing(t *testing.T) {
	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
}
