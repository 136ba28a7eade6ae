package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/logger"
)

func TestPurchaseGuard_KeepsReservationOnRejection(t *testing.T) {
	env := newTestEnv(t)
	guard := &purchaseGuard{market: env.market, dedup: env.dedup, log: logger.Nop()}
	ctx := context.Background()

	_, err := guard.purchase(ctx, "req-404", 1, 404)
	require.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = guard.purchase(ctx, "req-404", 1, 404)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
}

func TestPurchaseGuard_ReleasesOnStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.seedItem(t, "Lunar Hare", 100, 1)
	guard := &purchaseGuard{market: env.market, dedup: env.dedup, log: logger.Nop()}
	ctx := context.Background()

	require.NoError(t, env.store.Close())

	_, err := guard.purchase(ctx, "req-1", 1, itemID)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	ok, err := env.dedup.Reserve(ctx, dedupKey(1, "req-1"))
	require.NoError(t, err)
	assert.True(t, ok, "reservation must be released so the client can retry")
}

func TestPurchaseGuard_RequestIDsAreScopedPerUser(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.seedItem(t, "Lunar Hare", 100, 5)
	guard := &purchaseGuard{market: env.market, dedup: env.dedup, log: logger.Nop()}
	ctx := context.Background()

	_, err := guard.purchase(ctx, "1", 1, itemID)
	require.NoError(t, err)

	_, err = guard.purchase(ctx, "1", 2, itemID)
	require.NoError(t, err, "another user's request id must not collide")

	_, err = guard.purchase(ctx, "1", 1, itemID)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	item, err := env.market.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), item.Stock)
}

func TestPurchaseGuard_NoRequestIDSkipsDedup(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.seedItem(t, "Lunar Hare", 100, 2)
	guard := &purchaseGuard{market: env.market, dedup: env.dedup, log: logger.Nop()}
	ctx := context.Background()

	_, err := guard.purchase(ctx, "", 1, itemID)
	require.NoError(t, err)
	_, err = guard.purchase(ctx, "", 1, itemID)
	require.NoError(t, err)

	profile, err := env.market.GetProfile(ctx, 1)
	require.NoError(t, err)
	require.Len(t, profile.Holdings, 1)
	assert.Equal(t, int64(2), profile.Holdings[0].Quantity)
}
