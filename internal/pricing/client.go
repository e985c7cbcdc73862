// Package pricing fetches coin prices and market metadata. Prices are
// eventually consistent: a stale or missing price never blocks
// synchronization, it only affects valuations.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wallet-sync/internal/config"
	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
)

// MarketData is one coin's market snapshot.
type MarketData struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	PriceUSD     float64 `json:"current_price"`
	MarketCapUSD float64 `json:"market_cap"`
	Volume24hUSD float64 `json:"total_volume"`
}

// Client talks to a CoinGecko-compatible price API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logging.Logger
}

// NewClient creates a pricing client.
func NewClient(cfg config.PricingConfig, logger *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.WithField("component", "pricing_client"),
	}
}

// GetPrice returns one coin's USD unit price.
func (c *Client) GetPrice(ctx context.Context, coinID string) (float64, error) {
	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", "usd")

	var resp map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", params, &resp); err != nil {
		return 0, err
	}

	quote, ok := resp[coinID]
	if !ok {
		return 0, errors.NewNotFoundError("coin price", coinID)
	}
	return quote["usd"], nil
}

// GetMarketData returns market snapshots for a batch of coins.
func (c *Client) GetMarketData(ctx context.Context, coinIDs []string) ([]MarketData, error) {
	if len(coinIDs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(coinIDs, ","))

	var markets []MarketData
	if err := c.get(ctx, "/coins/markets", params, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.NewInternalError("build pricing request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewProviderTransientError("pricing", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewProviderTransientError("pricing", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errors.NewProviderTransientError("pricing", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return errors.NewProviderSchemaError("pricing", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewProviderSchemaError("pricing", err)
	}
	return nil
}
