package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/types"
)

// SolanaProvider serves Solana through an enriched-transaction vendor.
// Like the UTXO vendor it paginates full history itself (by signature),
// so history windows are always unbounded.
type SolanaProvider struct {
	*baseClient
}

// NewSolanaProvider creates the Solana provider client.
func NewSolanaProvider(cfg config.ProviderConfig, logger *logging.Logger) *SolanaProvider {
	return &SolanaProvider{baseClient: newBaseClient("solana", cfg, logger)}
}

// Ecosystem returns the Solana ecosystem tag.
func (p *SolanaProvider) Ecosystem() types.Ecosystem {
	return types.EcosystemSolana
}

// GetWallet fetches the wallet's balance snapshot.
func (p *SolanaProvider) GetWallet(ctx context.Context, chain types.ChainID, address string) (*WalletSnapshot, error) {
	var env snapshotEnvelope
	if err := p.get(ctx, "/v1/addresses/"+address+"/balances", nil, &env); err != nil {
		return nil, err
	}
	return env.toSnapshot(p.name)
}

// GetRecentTransactions fetches the newest enriched transactions.
func (p *SolanaProvider) GetRecentTransactions(ctx context.Context, chain types.ChainID, address string, limit int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var env historyEnvelope
	if err := p.get(ctx, "/v1/addresses/"+address+"/transactions", params, &env); err != nil {
		return nil, err
	}
	return env.Transactions, nil
}

// GetTransactionHistory fetches one page of the wallet's full history,
// resuming from the last signature cursor.
func (p *SolanaProvider) GetTransactionHistory(ctx context.Context, chain types.ChainID, address string, _ Window, cursor string) (*HistoryPage, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("before", cursor)
	}

	var env historyEnvelope
	if err := p.get(ctx, "/v1/addresses/"+address+"/transactions", params, &env); err != nil {
		return nil, err
	}
	return &HistoryPage{Raw: env.Transactions, Cursor: env.NextCursor}, nil
}
