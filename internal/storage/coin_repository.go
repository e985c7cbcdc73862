package storage

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// CoinRepository handles the coin catalog in Postgres. Platform bindings
// live in a side table so contract lookups stay indexed.
type CoinRepository struct {
	db *PostgresDB
}

// NewCoinRepository creates a new coin repository
func NewCoinRepository(db *PostgresDB) *CoinRepository {
	return &CoinRepository{db: db}
}

// Upsert writes a coin and its platform bindings.
func (r *CoinRepository) Upsert(ctx context.Context, coin *models.Coin) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return errors.NewDatabaseError("begin coin upsert", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO coins (id, name, symbol, price_usd, market_cap_usd, volume_24h_usd, priceless_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			price_usd = EXCLUDED.price_usd,
			market_cap_usd = EXCLUDED.market_cap_usd,
			volume_24h_usd = EXCLUDED.volume_24h_usd,
			priceless_at = EXCLUDED.priceless_at,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, query,
		coin.ID, coin.Name, coin.Symbol, coin.PriceUSD,
		coin.MarketCapUSD, coin.Volume24hUSD, coin.PricelessAt, coin.UpdatedAt,
	); err != nil {
		return errors.NewDatabaseError("upsert coin", err)
	}

	for _, p := range coin.Platforms {
		if _, err := tx.Exec(ctx, `
			INSERT INTO coin_platforms (coin_id, chain, contract, decimals)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (chain, contract) DO UPDATE SET
				coin_id = EXCLUDED.coin_id,
				decimals = EXCLUDED.decimals
		`, coin.ID, p.Chain, strings.ToLower(p.Contract), p.Decimals); err != nil {
			return errors.NewDatabaseError("upsert coin platform", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.NewDatabaseError("commit coin upsert", err)
	}
	return nil
}

// GetByID retrieves a coin with its platform bindings.
func (r *CoinRepository) GetByID(ctx context.Context, id string) (*models.Coin, error) {
	query := `
		SELECT id, name, symbol, price_usd, market_cap_usd, volume_24h_usd, priceless_at, updated_at
		FROM coins WHERE id = $1
	`
	coin, err := scanCoin(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("coin", id)
		}
		return nil, errors.NewDatabaseError("get coin", err)
	}

	if err := r.loadPlatforms(ctx, coin); err != nil {
		return nil, err
	}
	return coin, nil
}

// GetCoinByContract resolves a contract address to its coin.
func (r *CoinRepository) GetCoinByContract(ctx context.Context, chain types.ChainID, contract string) (*models.Coin, error) {
	query := `
		SELECT c.id, c.name, c.symbol, c.price_usd, c.market_cap_usd, c.volume_24h_usd, c.priceless_at, c.updated_at
		FROM coins c
		JOIN coin_platforms p ON p.coin_id = c.id
		WHERE p.chain = $1 AND p.contract = $2
	`
	coin, err := scanCoin(r.db.Pool().QueryRow(ctx, query, chain, strings.ToLower(contract)))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("coin", string(chain)+":"+contract)
		}
		return nil, errors.NewDatabaseError("get coin by contract", err)
	}

	if err := r.loadPlatforms(ctx, coin); err != nil {
		return nil, err
	}
	return coin, nil
}

// ListIDs returns every catalog coin id, for market-data refreshes.
func (r *CoinRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT id FROM coins ORDER BY id`)
	if err != nil {
		return nil, errors.NewDatabaseError("list coin ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewDatabaseError("scan coin id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkPriceless records a failed price lookup without touching the price.
func (r *CoinRepository) MarkPriceless(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE coins SET priceless_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return errors.NewDatabaseError("mark coin priceless", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("coin", id)
	}
	return nil
}

func (r *CoinRepository) loadPlatforms(ctx context.Context, coin *models.Coin) error {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT chain, contract, decimals FROM coin_platforms WHERE coin_id = $1
	`, coin.ID)
	if err != nil {
		return errors.NewDatabaseError("load coin platforms", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.CoinPlatform
		if err := rows.Scan(&p.Chain, &p.Contract, &p.Decimals); err != nil {
			return errors.NewDatabaseError("scan coin platform", err)
		}
		coin.Platforms = append(coin.Platforms, p)
	}
	return rows.Err()
}

func scanCoin(row pgx.Row) (*models.Coin, error) {
	var c models.Coin
	if err := row.Scan(
		&c.ID, &c.Name, &c.Symbol, &c.PriceUSD,
		&c.MarketCapUSD, &c.Volume24hUSD, &c.PricelessAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
