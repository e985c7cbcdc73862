package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// CacheService caches valued wallet views and keeps the webhook dedup
// window. Cache failures are logged and treated as misses; Redis being
// down must never break a request.
type CacheService struct {
	cache  *RedisCache
	logger *logging.Logger
}

// NewCacheService creates a cache service.
func NewCacheService(cache *RedisCache, logger *logging.Logger) *CacheService {
	return &CacheService{
		cache:  cache,
		logger: logger.WithField("component", "cache_service"),
	}
}

func walletCacheKey(chain types.ChainID, address string) string {
	return "valued_wallet:" + string(chain) + ":" + address
}

// GetValuedWallet returns a cached valued wallet, or false on a miss.
func (s *CacheService) GetValuedWallet(ctx context.Context, chain types.ChainID, address string) (*models.ValuedWallet, bool) {
	data, err := s.cache.Client().Get(ctx, walletCacheKey(chain, address)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).Warn("Wallet cache read failed")
		}
		return nil, false
	}

	var w models.ValuedWallet
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.WithError(err).Warn("Wallet cache entry corrupt, dropping")
		s.InvalidateWallet(ctx, chain, address)
		return nil, false
	}
	return &w, true
}

// SetValuedWallet caches a valued wallet view.
func (s *CacheService) SetValuedWallet(ctx context.Context, w *models.ValuedWallet, ttl time.Duration) {
	data, err := json.Marshal(w)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to marshal wallet for cache")
		return
	}
	if err := s.cache.Client().Set(ctx, walletCacheKey(w.Chain, w.Address), data, ttl).Err(); err != nil {
		s.logger.WithError(err).Warn("Wallet cache write failed")
	}
}

// InvalidateWallet drops a wallet's cached view, called after ingestion
// changes its balances.
func (s *CacheService) InvalidateWallet(ctx context.Context, chain types.ChainID, address string) {
	if err := s.cache.Client().Del(ctx, walletCacheKey(chain, address)).Err(); err != nil {
		s.logger.WithError(err).Warn("Wallet cache invalidation failed")
	}
}

// MarkWebhookSeen registers a webhook delivery in the dedup window and
// reports whether this is its first appearance. On cache failure the
// delivery counts as first-seen; the transaction store is idempotent, so
// a duplicate slipping through is harmless.
func (s *CacheService) MarkWebhookSeen(ctx context.Context, chain types.ChainID, deliveryID string, window time.Duration) bool {
	key := "webhook_seen:" + string(chain) + ":" + deliveryID
	first, err := s.cache.Client().SetNX(ctx, key, 1, window).Result()
	if err != nil {
		s.logger.WithError(err).Warn("Webhook dedup check failed")
		return true
	}
	return first
}
