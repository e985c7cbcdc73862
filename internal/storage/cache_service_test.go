package storage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

func setupCacheService(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewCacheService(cache, logging.NewLogger(logging.LevelError, logging.FormatText)), mr
}

func TestCacheServiceValuedWalletRoundTrip(t *testing.T) {
	svc, _ := setupCacheService(t)
	ctx := context.Background()

	wallet := models.NewWallet("0xAbC0000000000000000000000000000000000001", types.ChainEthereum)
	wallet.NativeBalance = big.NewInt(2500000000000000000)
	valued := &models.ValuedWallet{
		Wallet:           wallet,
		NativeValueUSD:   7500,
		NativePercentage: 75,
		TotalValueUSD:    10000,
	}

	_, ok := svc.GetValuedWallet(ctx, wallet.Chain, wallet.Address)
	assert.False(t, ok, "expected cache miss before Set")

	svc.SetValuedWallet(ctx, valued, time.Minute)

	got, ok := svc.GetValuedWallet(ctx, wallet.Chain, wallet.Address)
	require.True(t, ok)
	assert.Equal(t, valued.TotalValueUSD, got.TotalValueUSD)
	assert.Equal(t, wallet.Address, got.Address)
	assert.Equal(t, "2500000000000000000", got.NativeBalance.String())
}

func TestCacheServiceInvalidateWallet(t *testing.T) {
	svc, _ := setupCacheService(t)
	ctx := context.Background()

	wallet := models.NewWallet("0xabc0000000000000000000000000000000000002", types.ChainEthereum)
	svc.SetValuedWallet(ctx, &models.ValuedWallet{Wallet: wallet}, time.Minute)

	svc.InvalidateWallet(ctx, wallet.Chain, wallet.Address)
	_, ok := svc.GetValuedWallet(ctx, wallet.Chain, wallet.Address)
	assert.False(t, ok)
}

func TestCacheServiceWebhookDedup(t *testing.T) {
	svc, mr := setupCacheService(t)
	ctx := context.Background()

	assert.True(t, svc.MarkWebhookSeen(ctx, types.ChainEthereum, "delivery-1", time.Minute))
	assert.False(t, svc.MarkWebhookSeen(ctx, types.ChainEthereum, "delivery-1", time.Minute),
		"second delivery inside the window is a duplicate")

	// a different chain is a different delivery
	assert.True(t, svc.MarkWebhookSeen(ctx, types.ChainPolygon, "delivery-1", time.Minute))

	// after the window expires the id counts as new again
	mr.FastForward(2 * time.Minute)
	assert.True(t, svc.MarkWebhookSeen(ctx, types.ChainEthereum, "delivery-1", time.Minute))
}
