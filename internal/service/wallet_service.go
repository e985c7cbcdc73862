// Package service implements the synchronous query surface on top of the
// storage, provider, valuation and backfill layers.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/provider"
	"github.com/wallet-sync/internal/storage"
	"github.com/wallet-sync/internal/types"
	"github.com/wallet-sync/internal/valuation"
)

const (
	defaultPageSize = 20
	valuedWalletTTL = time.Minute
)

// WalletStore is the wallet persistence surface the services need.
type WalletStore interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, chain types.ChainID, address string) (*models.Wallet, error)
	ListByChain(ctx context.Context, chain types.ChainID, page, pageSize int) ([]*models.Wallet, int, error)
	UpdateBalances(ctx context.Context, wallet *models.Wallet) error
}

// TransactionStore is the transaction persistence surface the services need.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, address string, txs []*models.ValuedTransaction) error
	ListByWallet(ctx context.Context, chain types.ChainID, address string, page, pageSize int) ([]*models.ValuedTransaction, uint64, error)
}

// CoinCatalog resolves contract addresses to known coins.
type CoinCatalog interface {
	GetCoinByContract(ctx context.Context, chain types.ChainID, contract string) (*models.Coin, error)
}

// Backfiller starts the historical sync for a newly added wallet.
type Backfiller interface {
	StartBackfill(ctx context.Context, wallet *models.Wallet) error
}

// WalletService handles wallet registration and valued wallet queries.
type WalletService struct {
	wallets   WalletStore
	txs       TransactionStore
	coins     CoinCatalog
	providers *provider.Registry
	valuator  *valuation.Valuator
	cache     *storage.CacheService
	backfill  Backfiller
	logger    *logging.Logger
}

// NewWalletService creates a new wallet service.
func NewWalletService(
	wallets WalletStore,
	txs TransactionStore,
	coins CoinCatalog,
	providers *provider.Registry,
	valuator *valuation.Valuator,
	cache *storage.CacheService,
	backfill Backfiller,
	logger *logging.Logger,
) *WalletService {
	return &WalletService{
		wallets:   wallets,
		txs:       txs,
		coins:     coins,
		providers: providers,
		valuator:  valuator,
		cache:     cache,
		backfill:  backfill,
		logger:    logger.WithField("component", "wallet_service"),
	}
}

// AddWalletInput represents input for registering a wallet.
type AddWalletInput struct {
	Address string        `json:"address"`
	Chain   types.ChainID `json:"chain"`
	Alias   *string       `json:"alias,omitempty"`
}

// AddWallet registers a wallet for tracking. The wallet is created from a
// live provider snapshot in the pending state and its backfill is started
// asynchronously. An existing (address, chain) pair is a conflict, not a
// system fault.
func (s *WalletService) AddWallet(ctx context.Context, input *AddWalletInput) (*models.ValuedWalletWithTransactions, error) {
	if !types.IsSupportedChain(input.Chain) {
		return nil, errors.NewInvalidParameterError("chain", "unsupported chain "+string(input.Chain))
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, errors.NewInvalidParameterError("address", "address is required")
	}

	prov, err := s.providers.ForChain(input.Chain)
	if err != nil {
		return nil, err
	}

	snapshot, err := prov.GetWallet(ctx, input.Chain, input.Address)
	if err != nil {
		return nil, err
	}

	wallet := models.NewWallet(input.Address, input.Chain)
	wallet.Alias = input.Alias
	wallet.NativeBalance = snapshot.NativeBalance
	wallet.CoinBalances = s.balancesFromSnapshot(ctx, input.Chain, snapshot)

	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}

	// The wallet is persisted as pending, so a failed start here is not
	// fatal: the next coordinator sweep picks it up.
	if err := s.backfill.StartBackfill(ctx, wallet); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"address": wallet.Address,
			"chain":   wallet.Chain,
		}).Warn("Failed to start backfill for new wallet")
	}

	valued := s.valuator.ValueWallet(wallet)
	s.cache.SetValuedWallet(ctx, valued, valuedWalletTTL)

	return &models.ValuedWalletWithTransactions{
		ValuedWallet: valued,
		Transactions: []*models.ValuedTransaction{},
		Page:         1,
		PageSize:     defaultPageSize,
		TotalCount:   0,
	}, nil
}

// GetWallet returns the valued wallet with one page of its transactions.
func (s *WalletService) GetWallet(ctx context.Context, chain types.ChainID, address string, page int) (*models.ValuedWalletWithTransactions, error) {
	if page < 1 {
		page = 1
	}
	address = strings.ToLower(address)

	valued, ok := s.cache.GetValuedWallet(ctx, chain, address)
	if !ok {
		wallet, err := s.wallets.GetWallet(ctx, chain, address)
		if err != nil {
			return nil, err
		}
		valued = s.valuator.ValueWallet(wallet)
		s.cache.SetValuedWallet(ctx, valued, valuedWalletTTL)
	}

	txs, total, err := s.txs.ListByWallet(ctx, chain, address, page, defaultPageSize)
	if err != nil {
		return nil, err
	}

	return &models.ValuedWalletWithTransactions{
		ValuedWallet: valued,
		Transactions: txs,
		Page:         page,
		PageSize:     defaultPageSize,
		TotalCount:   total,
	}, nil
}

// ListWallets returns one page of valued wallets for a chain.
func (s *WalletService) ListWallets(ctx context.Context, chain types.ChainID, page int) ([]*models.ValuedWallet, int, error) {
	if !types.IsSupportedChain(chain) {
		return nil, 0, errors.NewInvalidParameterError("chain", "unsupported chain "+string(chain))
	}
	if page < 1 {
		page = 1
	}

	wallets, total, err := s.wallets.ListByChain(ctx, chain, page, defaultPageSize)
	if err != nil {
		return nil, 0, err
	}

	valued := make([]*models.ValuedWallet, 0, len(wallets))
	for _, w := range wallets {
		valued = append(valued, s.valuator.ValueWallet(w))
	}
	return valued, total, nil
}

// balancesFromSnapshot converts provider token balances to wallet coin
// balances, resolving known coins through the catalog.
func (s *WalletService) balancesFromSnapshot(ctx context.Context, chain types.ChainID, snapshot *provider.WalletSnapshot) []*models.WalletCoinBalance {
	balances := make([]*models.WalletCoinBalance, 0, len(snapshot.Balances))
	for _, b := range snapshot.Balances {
		balance := &models.WalletCoinBalance{
			Contract:  strings.ToLower(b.Contract),
			RawAmount: b.RawAmount,
			Decimals:  b.Decimals,
			Symbol:    b.Symbol,
			TokenID:   b.TokenID,
			IsNFT:     b.TokenID != nil,
		}
		if !balance.IsNFT {
			if coin, err := s.coins.GetCoinByContract(ctx, chain, balance.Contract); err == nil {
				id := coin.ID
				balance.CoinID = &id
				if p := coin.PlatformOn(chain); p != nil && balance.Decimals == 0 {
					balance.Decimals = p.Decimals
				}
			}
		}
		balances = append(balances, balance)
	}
	return balances
}
