package handler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/gift-market/internal/adapter/artwork"
	"github.com/rl1809/gift-market/internal/adapter/storage"
	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/core/service"
)

const (
	testAdminID         int64 = 5000936733
	testStartingBalance int64 = 2_000_000
)

type testEnv struct {
	store   *storage.SQLiteStore
	market  *service.MarketService
	dedup   *storage.MemoryDedup
	artwork *artwork.FileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	files, err := artwork.NewFileStore(artwork.Options{
		Dir:        filepath.Join(dir, "uploads"),
		URLPrefix:  "/static/uploads",
		MaxBytes:   1 << 10,
		Extensions: []string{".tgs"},
	})
	require.NoError(t, err)

	return &testEnv{
		store:   store,
		market:  service.NewMarketService(store, service.Options{StartingBalance: testStartingBalance, TxTimeout: 5 * time.Second}),
		dedup:   storage.NewMemoryDedup(time.Minute),
		artwork: files,
	}
}

func (e *testEnv) seedItem(t *testing.T, name string, price, stock int64) domain.ItemID {
	t.Helper()

	id, err := e.market.AddItem(context.Background(), domain.NewItem{Name: name, Price: price, Stock: stock})
	require.NoError(t, err)
	return id
}
