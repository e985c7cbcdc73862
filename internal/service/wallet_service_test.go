package service

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/provider"
	"github.com/wallet-sync/internal/storage"
	"github.com/wallet-sync/internal/types"
	"github.com/wallet-sync/internal/valuation"
)

type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[string]*models.Wallet
	updates int
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: make(map[string]*models.Wallet)}
}

func walletKey(chain types.ChainID, address string) string {
	return string(chain) + ":" + strings.ToLower(address)
}

func (s *fakeWalletStore) Create(ctx context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := walletKey(wallet.Chain, wallet.Address)
	if _, ok := s.wallets[key]; ok {
		return errors.NewDuplicateWalletError(wallet.Address, wallet.Chain)
	}
	s.wallets[key] = wallet
	return nil
}

func (s *fakeWalletStore) GetWallet(ctx context.Context, chain types.ChainID, address string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletKey(chain, address)]
	if !ok {
		return nil, errors.NewNotFoundError("wallet", address)
	}
	return w, nil
}

func (s *fakeWalletStore) ListByChain(ctx context.Context, chain types.ChainID, page, pageSize int) ([]*models.Wallet, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.Wallet
	for _, w := range s.wallets {
		if w.Chain == chain {
			all = append(all, w)
		}
	}
	return all, len(all), nil
}

func (s *fakeWalletStore) UpdateBalances(ctx context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[walletKey(wallet.Chain, wallet.Address)] = wallet
	s.updates++
	return nil
}

type fakeTxStore struct {
	mu    sync.Mutex
	saved map[string][]*models.ValuedTransaction
	pages map[string][]*models.ValuedTransaction
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{
		saved: make(map[string][]*models.ValuedTransaction),
		pages: make(map[string][]*models.ValuedTransaction),
	}
}

func (s *fakeTxStore) SaveTransactions(ctx context.Context, address string, txs []*models.ValuedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[address] = append(s.saved[address], txs...)
	return nil
}

func (s *fakeTxStore) ListByWallet(ctx context.Context, chain types.ChainID, address string, page, pageSize int) ([]*models.ValuedTransaction, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.pages[address]
	return txs, uint64(len(txs)), nil
}

type fakeCoinCatalog struct {
	byContract map[string]*models.Coin
}

func (c *fakeCoinCatalog) GetCoinByContract(ctx context.Context, chain types.ChainID, contract string) (*models.Coin, error) {
	coin, ok := c.byContract[strings.ToLower(contract)]
	if !ok {
		return nil, errors.NewNotFoundError("coin", contract)
	}
	return coin, nil
}

type fakeBackfiller struct {
	mu      sync.Mutex
	started []*models.Wallet
	err     error
}

func (b *fakeBackfiller) StartBackfill(ctx context.Context, wallet *models.Wallet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.started = append(b.started, wallet)
	return nil
}

type snapshotProvider struct {
	snapshot *provider.WalletSnapshot
	err      error
}

func (p *snapshotProvider) Ecosystem() types.Ecosystem { return types.EcosystemEVM }

func (p *snapshotProvider) GetWallet(ctx context.Context, chain types.ChainID, address string) (*provider.WalletSnapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.snapshot, nil
}

func (p *snapshotProvider) GetRecentTransactions(ctx context.Context, chain types.ChainID, address string, limit int) (json.RawMessage, error) {
	return nil, nil
}

func (p *snapshotProvider) GetTransactionHistory(ctx context.Context, chain types.ChainID, address string, window provider.Window, cursor string) (*provider.HistoryPage, error) {
	return nil, nil
}

type staticPrices struct {
	native    float64
	contracts map[string]float64
}

func (p *staticPrices) NativePrice(chain types.ChainID) float64 { return p.native }

func (p *staticPrices) ContractPrice(chain types.ChainID, contract string) float64 {
	return p.contracts[strings.ToLower(contract)]
}

func testCache(t *testing.T) (*storage.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := storage.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return storage.NewCacheService(cache, logging.NewLogger(logging.LevelError, logging.FormatText)), mr
}

const testAddress = "0xAbC0000000000000000000000000000000000001"

func testWalletService(t *testing.T, prov provider.WalletProvider) (*WalletService, *fakeWalletStore, *fakeTxStore, *fakeBackfiller) {
	t.Helper()
	wallets := newFakeWalletStore()
	txs := newFakeTxStore()
	coins := &fakeCoinCatalog{byContract: map[string]*models.Coin{}}
	backfill := &fakeBackfiller{}
	cache, _ := testCache(t)
	valuator := valuation.NewValuator(&staticPrices{
		native:    3000,
		contracts: map[string]float64{"0xtoken0000000000000000000000000000000001": 1},
	})
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)

	svc := NewWalletService(wallets, txs, coins, provider.NewRegistryWith(prov), valuator, cache, backfill, logger)
	return svc, wallets, txs, backfill
}

func TestAddWalletCreatesPendingWalletAndStartsBackfill(t *testing.T) {
	native, _ := new(big.Int).SetString("2500000000000000000", 10)
	prov := &snapshotProvider{snapshot: &provider.WalletSnapshot{
		Address:       strings.ToLower(testAddress),
		NativeBalance: native,
		Balances: []provider.TokenBalance{
			{
				Contract:  "0xToken0000000000000000000000000000000001",
				RawAmount: big.NewInt(2500000000000),
				Decimals:  9,
				Symbol:    "TKN",
			},
		},
	}}
	svc, wallets, _, backfill := testWalletService(t, prov)

	result, err := svc.AddWallet(context.Background(), &AddWalletInput{
		Address: testAddress,
		Chain:   types.ChainEthereum,
	})
	require.NoError(t, err)

	stored, err := wallets.GetWallet(context.Background(), types.ChainEthereum, testAddress)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(testAddress), stored.Address)
	assert.Equal(t, types.BackfillPending, stored.BackfillStatus)

	require.Len(t, backfill.started, 1)
	assert.Equal(t, stored.Address, backfill.started[0].Address)

	assert.InDelta(t, 7500, result.NativeValueUSD, 0.001)
	assert.InDelta(t, 10000, result.TotalValueUSD, 0.001)
	assert.InDelta(t, 75, result.NativePercentage, 0.001)
	require.Len(t, result.ValuedWallet.CoinBalances, 1)
	assert.InDelta(t, 25, result.ValuedWallet.CoinBalances[0].PercentageInWallet, 0.001)
	assert.Empty(t, result.Transactions)
}

func TestAddWalletDuplicateIsConflict(t *testing.T) {
	prov := &snapshotProvider{snapshot: &provider.WalletSnapshot{
		Address:       strings.ToLower(testAddress),
		NativeBalance: big.NewInt(1),
	}}
	svc, _, _, _ := testWalletService(t, prov)
	ctx := context.Background()

	input := &AddWalletInput{Address: testAddress, Chain: types.ChainEthereum}
	_, err := svc.AddWallet(ctx, input)
	require.NoError(t, err)

	_, err = svc.AddWallet(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestAddWalletUnsupportedChain(t *testing.T) {
	svc, _, _, _ := testWalletService(t, &snapshotProvider{})

	_, err := svc.AddWallet(context.Background(), &AddWalletInput{
		Address: testAddress,
		Chain:   types.ChainID("dogecoin"),
	})
	require.Error(t, err)
}

func TestAddWalletSurvivesBackfillStartFailure(t *testing.T) {
	prov := &snapshotProvider{snapshot: &provider.WalletSnapshot{
		Address:       strings.ToLower(testAddress),
		NativeBalance: big.NewInt(1),
	}}
	svc, wallets, _, backfill := testWalletService(t, prov)
	backfill.err = errors.NewInternalError("queue unavailable", nil)

	_, err := svc.AddWallet(context.Background(), &AddWalletInput{
		Address: testAddress,
		Chain:   types.ChainEthereum,
	})
	require.NoError(t, err, "wallet creation must not fail when the backfill start fails")

	stored, err := wallets.GetWallet(context.Background(), types.ChainEthereum, testAddress)
	require.NoError(t, err)
	assert.Equal(t, types.BackfillPending, stored.BackfillStatus, "sweep picks the wallet up later")
}

func TestGetWalletNotFound(t *testing.T) {
	svc, _, _, _ := testWalletService(t, &snapshotProvider{})

	_, err := svc.GetWallet(context.Background(), types.ChainEthereum, testAddress, 1)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetWalletReturnsTransactionPage(t *testing.T) {
	svc, wallets, txs, _ := testWalletService(t, &snapshotProvider{})
	ctx := context.Background()

	wallet := models.NewWallet(testAddress, types.ChainEthereum)
	wallet.NativeBalance = big.NewInt(1000000000000000000)
	require.NoError(t, wallets.Create(ctx, wallet))

	hash := "0xdeadbeef"
	txs.pages[wallet.Address] = []*models.ValuedTransaction{
		{Transaction: &models.Transaction{Chain: types.ChainEthereum, Hash: hash}},
	}

	result, err := svc.GetWallet(ctx, types.ChainEthereum, testAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, uint64(1), result.TotalCount)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, hash, result.Transactions[0].Hash)
	assert.InDelta(t, 3000, result.NativeValueUSD, 0.001)
}

func TestGetWalletServesCachedValuation(t *testing.T) {
	svc, wallets, _, _ := testWalletService(t, &snapshotProvider{})
	ctx := context.Background()

	wallet := models.NewWallet(testAddress, types.ChainEthereum)
	wallet.NativeBalance = big.NewInt(1000000000000000000)
	require.NoError(t, wallets.Create(ctx, wallet))

	first, err := svc.GetWallet(ctx, types.ChainEthereum, testAddress, 1)
	require.NoError(t, err)

	// A balance change invisible to the cache must not show up until the
	// cached valuation expires or is invalidated.
	wallet.NativeBalance = big.NewInt(2000000000000000000)
	require.NoError(t, wallets.UpdateBalances(ctx, wallet))

	second, err := svc.GetWallet(ctx, types.ChainEthereum, testAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, first.NativeValueUSD, second.NativeValueUSD)
}

func TestListWalletsValuesEveryWallet(t *testing.T) {
	svc, wallets, _, _ := testWalletService(t, &snapshotProvider{})
	ctx := context.Background()

	a := models.NewWallet(testAddress, types.ChainEthereum)
	a.NativeBalance = big.NewInt(1000000000000000000)
	b := models.NewWallet("0xAbC0000000000000000000000000000000000002", types.ChainEthereum)
	b.NativeBalance = big.NewInt(2000000000000000000)
	require.NoError(t, wallets.Create(ctx, a))
	require.NoError(t, wallets.Create(ctx, b))

	valued, total, err := svc.ListWallets(ctx, types.ChainEthereum, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, valued, 2)
	for _, v := range valued {
		assert.Greater(t, v.TotalValueUSD, 0.0)
	}
}
