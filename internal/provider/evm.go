package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/types"
)

// EVMProvider serves every EVM chain through one enhanced-API vendor.
// History requests are window-bounded; the planner splits the full span
// into windows so chunks can fetch independently.
type EVMProvider struct {
	*baseClient
}

// NewEVMProvider creates the EVM provider client.
func NewEVMProvider(cfg config.ProviderConfig, logger *logging.Logger) *EVMProvider {
	return &EVMProvider{baseClient: newBaseClient("evm", cfg, logger)}
}

// Ecosystem returns the EVM ecosystem tag.
func (p *EVMProvider) Ecosystem() types.Ecosystem {
	return types.EcosystemEVM
}

// GetWallet fetches the wallet's balance snapshot.
func (p *EVMProvider) GetWallet(ctx context.Context, chain types.ChainID, address string) (*WalletSnapshot, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.NewInvalidAddressError(address, chain)
	}

	var env snapshotEnvelope
	if err := p.get(ctx, "/v1/"+string(chain)+"/address/"+strings.ToLower(address)+"/balances", nil, &env); err != nil {
		return nil, err
	}
	return env.toSnapshot(p.name)
}

// GetRecentTransactions fetches the newest raw transactions for a wallet.
func (p *EVMProvider) GetRecentTransactions(ctx context.Context, chain types.ChainID, address string, limit int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "desc")

	var env historyEnvelope
	if err := p.get(ctx, "/v1/"+string(chain)+"/address/"+strings.ToLower(address)+"/transactions", params, &env); err != nil {
		return nil, err
	}
	return env.Transactions, nil
}

// GetTransactionHistory fetches one page of history inside the window.
func (p *EVMProvider) GetTransactionHistory(ctx context.Context, chain types.ChainID, address string, window Window, cursor string) (*HistoryPage, error) {
	params := url.Values{}
	if !window.Unbounded {
		params.Set("from", strconv.FormatInt(window.From.Unix(), 10))
		params.Set("to", strconv.FormatInt(window.To.Unix(), 10))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var env historyEnvelope
	if err := p.get(ctx, "/v1/"+string(chain)+"/address/"+strings.ToLower(address)+"/transactions", params, &env); err != nil {
		return nil, err
	}
	return &HistoryPage{Raw: env.Transactions, Cursor: env.NextCursor}, nil
}
