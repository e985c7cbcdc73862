// Package provider holds the wallet data provider clients, one per
// ecosystem. Providers return the ecosystem's raw payloads untouched;
// decoding them is the normalizer's job. Every outbound call first takes
// a permit from the provider's shared rate limiter.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/types"
)

// Window bounds a history request. Unbounded windows are used for
// ecosystems whose providers paginate the full history themselves.
type Window struct {
	From      time.Time
	To        time.Time
	Unbounded bool
}

// HistoryPage is one page of raw transactions plus the cursor for the
// next page; an empty cursor means the history is exhausted.
type HistoryPage struct {
	Raw    json.RawMessage
	Cursor string
}

// TokenBalance is one token or NFT position in a wallet snapshot.
type TokenBalance struct {
	Contract  string   `json:"contract"`
	RawAmount *big.Int `json:"rawAmount"`
	Decimals  int      `json:"decimals"`
	Symbol    string   `json:"symbol"`
	TokenID   *string  `json:"tokenId,omitempty"`
}

// WalletSnapshot is a provider's current view of a wallet's balances.
type WalletSnapshot struct {
	Address       string         `json:"address"`
	NativeBalance *big.Int       `json:"nativeBalance"`
	Balances      []TokenBalance `json:"balances"`
}

// WalletProvider is the data source for one ecosystem's wallets.
// Constructors return ready handles; there is no async initialize step.
type WalletProvider interface {
	Ecosystem() types.Ecosystem

	// GetWallet fetches the wallet's current balance snapshot.
	GetWallet(ctx context.Context, chain types.ChainID, address string) (*WalletSnapshot, error)

	// GetRecentTransactions fetches the newest raw transactions.
	GetRecentTransactions(ctx context.Context, chain types.ChainID, address string, limit int) (json.RawMessage, error)

	// GetTransactionHistory fetches one page of raw history inside the
	// window, resuming from cursor.
	GetTransactionHistory(ctx context.Context, chain types.ChainID, address string, window Window, cursor string) (*HistoryPage, error)
}

// Registry maps chains to their ecosystem provider.
type Registry struct {
	byEcosystem map[types.Ecosystem]WalletProvider
}

// NewRegistry builds the registry from the configured providers.
func NewRegistry(cfg *config.ProvidersConfig, logger *logging.Logger) *Registry {
	r := &Registry{byEcosystem: make(map[types.Ecosystem]WalletProvider)}
	for _, p := range []WalletProvider{
		NewEVMProvider(cfg.EVM, logger),
		NewUTXOProvider(cfg.UTXO, logger),
		NewSolanaProvider(cfg.Solana, logger),
	} {
		r.byEcosystem[p.Ecosystem()] = p
	}
	return r
}

// NewRegistryWith builds a registry from explicit providers. Used by
// tests to substitute fakes.
func NewRegistryWith(providers ...WalletProvider) *Registry {
	r := &Registry{byEcosystem: make(map[types.Ecosystem]WalletProvider)}
	for _, p := range providers {
		r.byEcosystem[p.Ecosystem()] = p
	}
	return r
}

// ForChain returns the provider serving a chain's ecosystem.
func (r *Registry) ForChain(chain types.ChainID) (WalletProvider, error) {
	eco, ok := types.EcosystemOf(chain)
	if !ok {
		return nil, errors.NewInvalidParameterError("chain", "unsupported chain "+string(chain))
	}
	p, ok := r.byEcosystem[eco]
	if !ok {
		return nil, errors.NewInvalidParameterError("chain", "no provider for ecosystem "+string(eco))
	}
	return p, nil
}

// baseClient is the transport shared by all provider clients: one HTTP
// client, one rate limiter, one error mapping.
type baseClient struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

func newBaseClient(name string, cfg config.ProviderConfig, logger *logging.Logger) *baseClient {
	return &baseClient{
		name:    name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:  logger.WithField("provider", name),
	}
}

// get performs a permit-gated GET and decodes the JSON response into out.
func (c *baseClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewProviderTransientError(c.name, err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.NewInternalError("build provider request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewProviderTransientError(c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewProviderTransientError(c.name, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errors.NewProviderTransientError(c.name, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body)))
	default:
		return errors.NewProviderSchemaError(c.name, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewProviderSchemaError(c.name, err)
	}
	return nil
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// historyEnvelope is the shared page shape of the history endpoints.
type historyEnvelope struct {
	Transactions json.RawMessage `json:"transactions"`
	NextCursor   string          `json:"nextCursor"`
}

// snapshotEnvelope is the shared shape of the balance endpoints.
type snapshotEnvelope struct {
	Address       string `json:"address"`
	NativeBalance string `json:"nativeBalance"`
	Tokens        []struct {
		Contract string  `json:"contract"`
		Amount   string  `json:"amount"`
		Decimals int     `json:"decimals"`
		Symbol   string  `json:"symbol"`
		TokenID  *string `json:"tokenId"`
	} `json:"tokens"`
}

func (e *snapshotEnvelope) toSnapshot(name string) (*WalletSnapshot, error) {
	native, ok := parseRawAmount(e.NativeBalance)
	if !ok {
		return nil, errors.NewProviderSchemaError(name, fmt.Errorf("invalid native balance %q", e.NativeBalance))
	}
	snap := &WalletSnapshot{
		Address:       e.Address,
		NativeBalance: native,
		Balances:      make([]TokenBalance, 0, len(e.Tokens)),
	}
	for _, t := range e.Tokens {
		amount, ok := parseRawAmount(t.Amount)
		if !ok {
			return nil, errors.NewProviderSchemaError(name, fmt.Errorf("invalid token amount %q for %s", t.Amount, t.Contract))
		}
		snap.Balances = append(snap.Balances, TokenBalance{
			Contract:  t.Contract,
			RawAmount: amount,
			Decimals:  t.Decimals,
			Symbol:    t.Symbol,
			TokenID:   t.TokenID,
		})
	}
	return snap, nil
}

func parseRawAmount(s string) (*big.Int, bool) {
	if s == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(s, 10)
}
