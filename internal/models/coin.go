package models

import (
	"time"

	"github.com/wallet-sync/internal/types"
)

// Coin represents the canonical identity of a fungible asset.
// Price and market fields are refreshed asynchronously and are eventually
// consistent; consumers must tolerate staleness.
type Coin struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	Platforms    []CoinPlatform `json:"platforms"`
	PriceUSD     float64        `json:"priceUsd"`
	MarketCapUSD *float64       `json:"marketCapUsd,omitempty"`
	Volume24hUSD *float64       `json:"volume24hUsd,omitempty"`
	PricelessAt  *time.Time     `json:"pricelessAt,omitempty"` // last time a price lookup failed
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// CoinPlatform binds a coin to its contract on one chain.
type CoinPlatform struct {
	Chain    types.ChainID `json:"chain"`
	Contract string        `json:"contract"`
	Decimals int           `json:"decimals"`
}

// PlatformOn returns the coin's platform entry for a chain, or nil.
func (c *Coin) PlatformOn(chain types.ChainID) *CoinPlatform {
	for i := range c.Platforms {
		if c.Platforms[i].Chain == chain {
			return &c.Platforms[i]
		}
	}
	return nil
}
