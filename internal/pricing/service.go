package pricing

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// priceCacheTTL bounds how stale a cached quote can get.
const priceCacheTTL = 5 * time.Minute

// nativeCoinIDs maps each chain's native asset to its price-API id.
// L2s settle in ETH, so they share Ethereum's quote.
var nativeCoinIDs = map[types.ChainID]string{
	types.ChainEthereum: "ethereum",
	types.ChainPolygon:  "matic-network",
	types.ChainArbitrum: "ethereum",
	types.ChainBase:     "ethereum",
	types.ChainBitcoin:  "bitcoin",
	types.ChainSolana:   "solana",
}

// CoinStore resolves contract addresses to known coins.
type CoinStore interface {
	GetCoinByContract(ctx context.Context, chain types.ChainID, contract string) (*models.Coin, error)
}

// Service resolves prices for the valuator: native assets by chain,
// tokens by contract through the coin catalog. Quotes are cached in
// Redis so valuation bursts do not hammer the price API.
type Service struct {
	client *Client
	coins  CoinStore
	cache  *redis.Client
	logger *logging.Logger
}

// NewService creates a price service.
func NewService(client *Client, coins CoinStore, cache *redis.Client, logger *logging.Logger) *Service {
	return &Service{
		client: client,
		coins:  coins,
		cache:  cache,
		logger: logger.WithField("component", "pricing_service"),
	}
}

// NativePrice returns the USD price of a chain's native asset.
func (s *Service) NativePrice(chain types.ChainID) (float64, error) {
	coinID, ok := nativeCoinIDs[chain]
	if !ok {
		return 0, errors.NewInvalidParameterError("chain", "no native coin for chain "+string(chain))
	}
	return s.price(context.Background(), coinID)
}

// ContractPrice returns the USD price of a token by its contract. Unknown
// contracts are NotFound; the valuator treats them as unpriced.
func (s *Service) ContractPrice(chain types.ChainID, contract string) (float64, error) {
	ctx := context.Background()
	coin, err := s.coins.GetCoinByContract(ctx, chain, contract)
	if err != nil {
		return 0, err
	}
	if coin.PriceUSD > 0 && time.Since(coin.UpdatedAt) < priceCacheTTL {
		return coin.PriceUSD, nil
	}
	return s.price(ctx, coin.ID)
}

func (s *Service) price(ctx context.Context, coinID string) (float64, error) {
	key := "price:usd:" + coinID
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			if p, perr := strconv.ParseFloat(cached, 64); perr == nil {
				return p, nil
			}
		}
	}

	p, err := s.client.GetPrice(ctx, coinID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, strconv.FormatFloat(p, 'f', -1, 64), priceCacheTTL).Err(); err != nil {
			s.logger.WithError(err).WithField("coin", coinID).Warn("Failed to cache price")
		}
	}
	return p, nil
}

// RefreshMarketData pulls market snapshots for the catalog and hands each
// one to apply. Coins the API does not know keep their previous price.
func (s *Service) RefreshMarketData(ctx context.Context, coinIDs []string, apply func(MarketData) error) error {
	markets, err := s.client.GetMarketData(ctx, coinIDs)
	if err != nil {
		return err
	}
	for _, m := range markets {
		if err := apply(m); err != nil {
			return err
		}
	}
	return nil
}

// Source adapts the service to the valuator's price lookup. Valuation
// treats a missing price as 0 rather than failing the whole wallet, so
// lookup errors collapse to unpriced here.
type Source struct {
	svc *Service
}

// Source returns the service as a valuation price source.
func (s *Service) Source() *Source {
	return &Source{svc: s}
}

// NativePrice returns the native asset price, or 0 when unavailable.
func (src *Source) NativePrice(chain types.ChainID) float64 {
	p, err := src.svc.NativePrice(chain)
	if err != nil {
		src.svc.logger.WithError(err).WithField("chain", chain).Warn("Native price lookup failed")
		return 0
	}
	return p
}

// ContractPrice returns a token's price by contract, or 0 when the
// catalog does not know the contract or the quote fails.
func (src *Source) ContractPrice(chain types.ChainID, contract string) float64 {
	p, err := src.svc.ContractPrice(chain, contract)
	if err != nil {
		if !errors.IsNotFound(err) {
			src.svc.logger.WithError(err).WithFields(map[string]interface{}{
				"chain":    chain,
				"contract": contract,
			}).Warn("Contract price lookup failed")
		}
		return 0
	}
	return p
}
