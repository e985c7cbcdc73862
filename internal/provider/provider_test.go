package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

func providerConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		RatePerSecond: 100,
		Burst:         10,
		Timeout:       2 * time.Second,
	}
}

func TestEVMProviderHistoryPaging(t *testing.T) {
	var gotFrom, gotTo, gotCursor atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		gotFrom.Store(r.URL.Query().Get("from"))
		gotTo.Store(r.URL.Query().Get("to"))
		gotCursor.Store(r.URL.Query().Get("cursor"))
		w.Write([]byte(`{"transactions": [{"hash": "0xaa"}], "nextCursor": "page2"}`))
	}))
	defer srv.Close()

	p := NewEVMProvider(providerConfig(srv.URL), testLogger())
	window := Window{
		From: time.Unix(1700000000, 0),
		To:   time.Unix(1700086400, 0),
	}

	page, err := p.GetTransactionHistory(context.Background(), types.ChainEthereum,
		"0x742d35Cc6634C0532925a3b844Bc454e4438f44e", window, "")
	require.NoError(t, err)
	assert.Equal(t, "page2", page.Cursor)
	assert.JSONEq(t, `[{"hash": "0xaa"}]`, string(page.Raw))
	assert.Equal(t, "1700000000", gotFrom.Load())
	assert.Equal(t, "1700086400", gotTo.Load())

	_, err = p.GetTransactionHistory(context.Background(), types.ChainEthereum,
		"0x742d35Cc6634C0532925a3b844Bc454e4438f44e", window, "page2")
	require.NoError(t, err)
	assert.Equal(t, "page2", gotCursor.Load())
}

func TestEVMProviderRejectsBadAddress(t *testing.T) {
	p := NewEVMProvider(providerConfig("http://unused"), testLogger())

	_, err := p.GetWallet(context.Background(), types.ChainEthereum, "not-an-address")
	require.Error(t, err)
	assert.False(t, errors.IsTransient(err))
}

func TestProviderErrorClassification(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		w.Write([]byte(`{"error": "nope"}`))
	}))
	defer srv.Close()

	p := NewUTXOProvider(providerConfig(srv.URL), testLogger())
	ctx := context.Background()

	// throttling and server faults are transient
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		status.Store(int32(code))
		_, err := p.GetRecentTransactions(ctx, types.ChainBitcoin, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", 10)
		require.Error(t, err, "status %d", code)
		assert.True(t, errors.IsTransient(err), "status %d should be transient", code)
	}

	// client faults are not
	status.Store(http.StatusBadRequest)
	_, err := p.GetRecentTransactions(ctx, types.ChainBitcoin, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", 10)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
	assert.False(t, errors.IsTransient(err))
}

func TestProviderSnapshotDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"address": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			"nativeBalance": "2500000000",
			"tokens": [
				{"contract": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "amount": "42000000", "decimals": 6, "symbol": "USDC"}
			]
		}`))
	}))
	defer srv.Close()

	p := NewSolanaProvider(providerConfig(srv.URL), testLogger())
	snap, err := p.GetWallet(context.Background(), types.ChainSolana, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	require.NoError(t, err)

	assert.Equal(t, "2500000000", snap.NativeBalance.String())
	require.Len(t, snap.Balances, 1)
	assert.Equal(t, "42000000", snap.Balances[0].RawAmount.String())
	assert.Equal(t, 6, snap.Balances[0].Decimals)
	assert.Equal(t, "USDC", snap.Balances[0].Symbol)
}

func TestProviderRateLimiterGatesCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"transactions": [], "nextCursor": ""}`))
	}))
	defer srv.Close()

	cfg := providerConfig(srv.URL)
	cfg.RatePerSecond = 20
	cfg.Burst = 1
	p := NewUTXOProvider(cfg, testLogger())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.GetRecentTransactions(context.Background(), types.ChainBitcoin, "addr", 1)
		require.NoError(t, err)
	}
	// burst of 1 at 20 rps: two of the three calls had to wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistryForChain(t *testing.T) {
	cfg := &config.ProvidersConfig{
		EVM:    providerConfig("http://evm"),
		UTXO:   providerConfig("http://utxo"),
		Solana: providerConfig("http://solana"),
	}
	r := NewRegistry(cfg, testLogger())

	for chain, eco := range map[types.ChainID]types.Ecosystem{
		types.ChainEthereum: types.EcosystemEVM,
		types.ChainArbitrum: types.EcosystemEVM,
		types.ChainBitcoin:  types.EcosystemUTXO,
		types.ChainSolana:   types.EcosystemSolana,
	} {
		p, err := r.ForChain(chain)
		require.NoError(t, err)
		assert.Equal(t, eco, p.Ecosystem())
	}

	_, err := r.ForChain(types.ChainID("tron"))
	require.Error(t, err)
}
