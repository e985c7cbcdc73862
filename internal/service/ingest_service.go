package service

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/normalize"
	"github.com/wallet-sync/internal/storage"
	"github.com/wallet-sync/internal/types"
	"github.com/wallet-sync/internal/valuation"
)

// webhookDedupWindow bounds how long a delivery id is remembered.
const webhookDedupWindow = 10 * time.Minute

// PushEvent is the decoded body of a stream webhook delivery. The
// transactions array carries the chain's raw provider payload, so live
// events flow through the same normalizer as backfill pages.
type PushEvent struct {
	DeliveryID     string          `json:"deliveryId"`
	StreamID       string          `json:"streamId,omitempty"`
	Confirmed      bool            `json:"confirmed"`
	BlockTimestamp int64           `json:"blockTimestamp"`
	Transactions   json.RawMessage `json:"transactions"`
}

// IngestResult is the acknowledgement returned for an accepted delivery.
type IngestResult struct {
	Status         string `json:"status"`
	Transactions   int    `json:"transactions"`
	WalletsUpdated int    `json:"walletsUpdated"`
}

// IngestService applies live webhook deliveries to tracked wallets.
type IngestService struct {
	wallets     WalletStore
	txs         TransactionStore
	coins       CoinCatalog
	normalizers *normalize.Registry
	valuator    *valuation.Valuator
	cache       *storage.CacheService
	logger      *logging.Logger
}

// NewIngestService creates a new webhook ingest service.
func NewIngestService(
	wallets WalletStore,
	txs TransactionStore,
	coins CoinCatalog,
	normalizers *normalize.Registry,
	valuator *valuation.Valuator,
	cache *storage.CacheService,
	logger *logging.Logger,
) *IngestService {
	return &IngestService{
		wallets:     wallets,
		txs:         txs,
		coins:       coins,
		normalizers: normalizers,
		valuator:    valuator,
		cache:       cache,
		logger:      logger.WithField("component", "ingest_service"),
	}
}

// Ingest decodes one webhook delivery and routes it through the
// normalize, value, persist path. Unconfirmed blocks and duplicate
// deliveries are acknowledged without writes. The caller has already
// verified the delivery's signature.
func (s *IngestService) Ingest(ctx context.Context, chain types.ChainID, body []byte) (*IngestResult, error) {
	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errors.NewProviderSchemaError("webhook", err)
	}

	if !event.Confirmed {
		s.logger.WithField("chain", chain).Debug("Dropping unconfirmed webhook delivery")
		return &IngestResult{Status: "dropped_unconfirmed"}, nil
	}

	if event.DeliveryID != "" && !s.cache.MarkWebhookSeen(ctx, chain, event.DeliveryID, webhookDedupWindow) {
		return &IngestResult{Status: "duplicate"}, nil
	}

	if len(event.Transactions) == 0 {
		return &IngestResult{Status: "ok"}, nil
	}

	txs, err := s.normalizers.Normalize(event.Transactions, chain)
	if err != nil {
		return nil, err
	}

	valued := make([]*models.ValuedTransaction, 0, len(txs))
	for _, tx := range txs {
		valued = append(valued, s.valuator.ValueTransaction(tx))
	}

	updated, err := s.applyToWallets(ctx, chain, valued)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"chain":        chain,
		"transactions": len(valued),
		"wallets":      updated,
	}).Info("Applied webhook delivery")

	return &IngestResult{
		Status:         "ok",
		Transactions:   len(valued),
		WalletsUpdated: updated,
	}, nil
}

// applyToWallets persists each transaction once per tracked wallet it
// touches and applies its transfers to that wallet's balances.
func (s *IngestService) applyToWallets(ctx context.Context, chain types.ChainID, txs []*models.ValuedTransaction) (int, error) {
	touched := make(map[string]*models.Wallet)
	saved := make(map[string][]*models.ValuedTransaction)

	for _, tx := range txs {
		for _, address := range transferAddresses(tx.Transaction) {
			wallet, ok := touched[address]
			if !ok {
				var err error
				wallet, err = s.wallets.GetWallet(ctx, chain, address)
				if err != nil {
					if !errors.IsNotFound(err) {
						return 0, err
					}
					wallet = nil
				}
				touched[address] = wallet
			}
			if wallet == nil {
				continue
			}
			saved[address] = append(saved[address], tx)
			s.applyTransaction(ctx, wallet, tx)
		}
	}

	updated := 0
	for address, walletTxs := range saved {
		wallet := touched[address]
		if err := s.txs.SaveTransactions(ctx, address, walletTxs); err != nil {
			return updated, err
		}
		if err := s.wallets.UpdateBalances(ctx, wallet); err != nil {
			return updated, err
		}
		s.cache.InvalidateWallet(ctx, chain, address)
		updated++
	}
	return updated, nil
}

// applyTransaction moves the transaction's transfers through the wallet's
// balances. A token contract the wallet has never held before is caught
// up from the coin catalog on first sight.
func (s *IngestService) applyTransaction(ctx context.Context, wallet *models.Wallet, tx *models.ValuedTransaction) {
	for _, tr := range tx.Transaction.Transfers {
		outgoing := tr.From != nil && *tr.From == wallet.Address
		incoming := tr.To != nil && *tr.To == wallet.Address
		if !outgoing && !incoming {
			continue
		}

		switch tr.Kind {
		case types.TransferNative:
			if outgoing {
				wallet.NativeBalance = new(big.Int).Sub(wallet.NativeBalance, tr.RawAmount)
			}
			if incoming {
				wallet.NativeBalance = new(big.Int).Add(wallet.NativeBalance, tr.RawAmount)
			}
		case types.TransferToken, types.TransferNFT:
			if tr.Contract == nil {
				continue
			}
			balance := wallet.FindCoinBalance(*tr.Contract)
			if balance == nil {
				balance = s.newCoinBalance(ctx, wallet.Chain, tr)
				wallet.CoinBalances = append(wallet.CoinBalances, balance)
			}
			if outgoing {
				balance.RawAmount = new(big.Int).Sub(balance.RawAmount, tr.RawAmount)
			}
			if incoming {
				balance.RawAmount = new(big.Int).Add(balance.RawAmount, tr.RawAmount)
			}
		}
	}

	if outgoingFee(wallet.Address, tx.Transaction) {
		wallet.NativeBalance = new(big.Int).Sub(wallet.NativeBalance, tx.Transaction.Fee)
	}
	wallet.UpdatedAt = time.Now().UTC()
}

// newCoinBalance creates a zero balance entry for a freshly observed
// contract, resolving the coin identity when the catalog knows it.
func (s *IngestService) newCoinBalance(ctx context.Context, chain types.ChainID, tr *models.Transfer) *models.WalletCoinBalance {
	balance := &models.WalletCoinBalance{
		Contract:  strings.ToLower(*tr.Contract),
		RawAmount: new(big.Int),
		TokenID:   tr.TokenID,
		IsNFT:     tr.Kind == types.TransferNFT,
	}
	if !balance.IsNFT {
		if coin, err := s.coins.GetCoinByContract(ctx, chain, balance.Contract); err == nil {
			id := coin.ID
			balance.CoinID = &id
			balance.Symbol = coin.Symbol
			if p := coin.PlatformOn(chain); p != nil {
				balance.Decimals = p.Decimals
			}
		}
	}
	return balance
}

// transferAddresses collects the distinct lower-cased addresses a
// transaction touches.
func transferAddresses(tx *models.Transaction) []string {
	seen := make(map[string]struct{})
	var addresses []string
	add := func(a *string) {
		if a == nil {
			return
		}
		lower := strings.ToLower(*a)
		if _, ok := seen[lower]; ok {
			return
		}
		seen[lower] = struct{}{}
		addresses = append(addresses, lower)
	}
	for _, tr := range tx.Transfers {
		add(tr.From)
		add(tr.To)
	}
	return addresses
}

// outgoingFee reports whether the wallet paid the transaction's fee,
// which is the case when it sent any transfer in it.
func outgoingFee(address string, tx *models.Transaction) bool {
	if tx.Fee == nil || tx.Fee.Sign() == 0 {
		return false
	}
	for _, tr := range tx.Transfers {
		if tr.From != nil && *tr.From == address {
			return true
		}
	}
	return false
}
