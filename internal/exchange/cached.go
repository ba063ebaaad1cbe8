// Package exchange provides the venue-facing building blocks around the
// core: the snapshot-caching client decorator, the trading calendar, and a
// paper client for running the strategy without a real account.
package exchange

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// SnapshotCache stores market snapshots scoped to one tick.
type SnapshotCache interface {
	Get(ctx context.Context, instrumentID, tickID string) (*domain.MarketSnapshot, error)
	Set(ctx context.Context, instrumentID, tickID string, snapshot *domain.MarketSnapshot) error
}

// CachedClient decorates an exchange client with tick-scoped market data
// caching: states trading the same instrument within one cycle share a
// single venue read. Mutating calls pass straight through.
type CachedClient struct {
	domain.ExchangeClient

	cache  SnapshotCache
	logger *slog.Logger
}

// NewCachedClient wraps inner with the given cache.
func NewCachedClient(inner domain.ExchangeClient, cache SnapshotCache, logger *slog.Logger) *CachedClient {
	return &CachedClient{
		ExchangeClient: inner,
		cache:          cache,
		logger:         logger.With(slog.String("component", "cachedclient")),
	}
}

func (c *CachedClient) GetData(ctx context.Context, instrumentID, tickID string) (*domain.MarketSnapshot, error) {
	snapshot, err := c.cache.Get(ctx, instrumentID, tickID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn("snapshot cache read failed",
			slog.String("instrument", instrumentID),
			slog.String("error", err.Error()))
	}

	snapshot, err = c.ExchangeClient.GetData(ctx, instrumentID, tickID)
	if err != nil {
		return nil, err
	}
	if cacheErr := c.cache.Set(ctx, instrumentID, tickID, snapshot); cacheErr != nil {
		c.logger.Warn("snapshot cache write failed",
			slog.String("instrument", instrumentID),
			slog.String("error", cacheErr.Error()))
	}
	return snapshot, nil
}
