package pricing

import (
	"context"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
)

// Catalog is the coin persistence surface the refresher writes through.
type Catalog interface {
	ListIDs(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*models.Coin, error)
	Upsert(ctx context.Context, coin *models.Coin) error
	MarkPriceless(ctx context.Context, id string, at time.Time) error
}

// Refresher keeps the catalog's market fields current. Coins the price
// API stops quoting are marked priceless and keep their last known price.
type Refresher struct {
	svc      *Service
	catalog  Catalog
	interval time.Duration
	logger   *logging.Logger
}

// NewRefresher creates a market-data refresher.
func NewRefresher(svc *Service, catalog Catalog, interval time.Duration, logger *logging.Logger) *Refresher {
	return &Refresher{
		svc:      svc,
		catalog:  catalog,
		interval: interval,
		logger:   logger.WithField("component", "market_refresher"),
	}
}

// Start runs periodic refreshes until the context is done.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					r.logger.WithError(err).Warn("Market data refresh failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Refresh pulls market snapshots for every catalog coin and writes them
// back. Coins missing from the API response are marked priceless.
func (r *Refresher) Refresh(ctx context.Context) error {
	ids, err := r.catalog.ListIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(ids))
	err = r.svc.RefreshMarketData(ctx, ids, func(m MarketData) error {
		coin, err := r.catalog.GetByID(ctx, m.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				// catalog shrank between ListIDs and the API round trip
				return nil
			}
			return err
		}
		marketCap := m.MarketCapUSD
		volume := m.Volume24hUSD
		coin.PriceUSD = m.PriceUSD
		coin.MarketCapUSD = &marketCap
		coin.Volume24hUSD = &volume
		coin.PricelessAt = nil
		coin.UpdatedAt = now
		if err := r.catalog.Upsert(ctx, coin); err != nil {
			return err
		}
		seen[m.ID] = true
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		if seen[id] {
			continue
		}
		if err := r.catalog.MarkPriceless(ctx, id, now); err != nil {
			r.logger.WithError(err).WithField("coin", id).Warn("Failed to mark coin priceless")
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"coins":     len(ids),
		"refreshed": len(seen),
	}).Info("Market data refreshed")
	return nil
}
