package handler

import (
	"context"
	"fmt"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/core/service"
	"github.com/rl1809/gift-market/internal/logger"
	"github.com/rl1809/gift-market/internal/port"
)

// purchaseGuard runs a purchase at most once per user and client request id.
// The reservation is kept for every terminal outcome and released when the
// store failed, so that the client can retry with the same id.
type purchaseGuard struct {
	market *service.MarketService
	dedup  port.DedupRepository
	log    *logger.Logger
}

func (g *purchaseGuard) purchase(ctx context.Context, requestID string, userID domain.UserID, itemID domain.ItemID) (*domain.PurchaseResult, error) {
	if requestID == "" || g.dedup == nil {
		return g.market.Purchase(ctx, userID, itemID)
	}

	key := dedupKey(userID, requestID)
	ok, err := g.dedup.Reserve(ctx, key)
	if err != nil {
		return nil, domain.Unavailable("reserve request id", err)
	}
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrDuplicateRequest)
	}

	result, err := g.market.Purchase(ctx, userID, itemID)
	if domain.IsRetryable(err) {
		if rerr := g.dedup.Release(context.WithoutCancel(ctx), key); rerr != nil {
			g.log.Error(ctx, "failed to release request id "+requestID, rerr)
		}
	}
	return result, err
}

// dedupKey scopes a client request id to the user that sent it.
func dedupKey(userID domain.UserID, requestID string) string {
	return fmt.Sprintf("%d:%s", userID, requestID)
}
