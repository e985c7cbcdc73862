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

// UTXOProvider serves Bitcoin-family chains. Its vendor paginates the
// wallet's full history itself, so history windows are always unbounded.
type UTXOProvider struct {
	*baseClient
}

// NewUTXOProvider creates the UTXO provider client.
func NewUTXOProvider(cfg config.ProviderConfig, logger *logging.Logger) *UTXOProvider {
	return &UTXOProvider{baseClient: newBaseClient("utxo", cfg, logger)}
}

// Ecosystem returns the UTXO ecosystem tag.
func (p *UTXOProvider) Ecosystem() types.Ecosystem {
	return types.EcosystemUTXO
}

// GetWallet fetches the wallet's balance snapshot.
func (p *UTXOProvider) GetWallet(ctx context.Context, chain types.ChainID, address string) (*WalletSnapshot, error) {
	var env snapshotEnvelope
	if err := p.get(ctx, "/v1/"+string(chain)+"/address/"+address+"/balance", nil, &env); err != nil {
		return nil, err
	}
	return env.toSnapshot(p.name)
}

// GetRecentTransactions fetches the newest raw transactions for a wallet.
func (p *UTXOProvider) GetRecentTransactions(ctx context.Context, chain types.ChainID, address string, limit int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var env historyEnvelope
	if err := p.get(ctx, "/v1/"+string(chain)+"/address/"+address+"/txs", params, &env); err != nil {
		return nil, err
	}
	return env.Transactions, nil
}

// GetTransactionHistory fetches one page of the wallet's full history.
// The window is ignored; the provider's cursor walks the whole history.
func (p *UTXOProvider) GetTransactionHistory(ctx context.Context, chain types.ChainID, address string, _ Window, cursor string) (*HistoryPage, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var env historyEnvelope
	if err := p.get(ctx, "/v1/"+string(chain)+"/address/"+address+"/txs", params, &env); err != nil {
		return nil, err
	}
	return &HistoryPage{Raw: env.Transactions, Cursor: env.NextCursor}, nil
}
