package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// WalletRepository handles wallet persistence in Postgres.
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a new wallet. A second insert for the same
// (address, chain) pair fails with a DuplicateWallet error.
func (r *WalletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	wallet.Address = strings.ToLower(wallet.Address)

	balancesJSON, err := json.Marshal(wallet.CoinBalances)
	if err != nil {
		return errors.NewInternalError("marshal coin balances", err)
	}

	query := `
		INSERT INTO wallets (
			address, chain, alias, native_balance, coin_balances,
			first_activity_at, backfill_status, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		wallet.Address,
		wallet.Chain,
		wallet.Alias,
		bigIntString(wallet.NativeBalance),
		balancesJSON,
		wallet.FirstActivityAt,
		wallet.BackfillStatus,
		wallet.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.NewDuplicateWalletError(wallet.Address, wallet.Chain)
		}
		return errors.NewDatabaseError("create wallet", err)
	}
	return nil
}

// GetWallet retrieves a wallet by chain and address.
func (r *WalletRepository) GetWallet(ctx context.Context, chain types.ChainID, address string) (*models.Wallet, error) {
	address = strings.ToLower(address)

	query := `
		SELECT address, chain, alias, native_balance, coin_balances,
		       first_activity_at, backfill_status, updated_at
		FROM wallets
		WHERE address = $1 AND chain = $2
	`
	wallet, err := scanWallet(r.db.Pool().QueryRow(ctx, query, address, chain))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("wallet", address+":"+string(chain))
		}
		return nil, errors.NewDatabaseError("get wallet", err)
	}
	return wallet, nil
}

// ListByChain returns one page of a chain's wallets plus the total count.
func (r *WalletRepository) ListByChain(ctx context.Context, chain types.ChainID, page, pageSize int) ([]*models.Wallet, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	if err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM wallets WHERE chain = $1`, chain).Scan(&total); err != nil {
		return nil, 0, errors.NewDatabaseError("count wallets", err)
	}

	query := `
		SELECT address, chain, alias, native_balance, coin_balances,
		       first_activity_at, backfill_status, updated_at
		FROM wallets
		WHERE chain = $1
		ORDER BY address
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool().Query(ctx, query, chain, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, errors.NewDatabaseError("list wallets", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, 0, errors.NewDatabaseError("scan wallet", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, total, rows.Err()
}

// UpdateBackfillStatus moves a wallet to a new backfill state. The first
// activity timestamp is only written when provided, so a failed run never
// erases an earlier success.
func (r *WalletRepository) UpdateBackfillStatus(ctx context.Context, chain types.ChainID, address string, status types.BackfillStatus, firstActivity *time.Time) error {
	address = strings.ToLower(address)

	query := `
		UPDATE wallets
		SET backfill_status = $1,
		    first_activity_at = COALESCE($2, first_activity_at),
		    updated_at = $3
		WHERE address = $4 AND chain = $5
	`
	tag, err := r.db.Pool().Exec(ctx, query, status, firstActivity, time.Now().UTC(), address, chain)
	if err != nil {
		return errors.NewDatabaseError("update backfill status", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("wallet", address+":"+string(chain))
	}
	return nil
}

// UpdateBalances persists the wallet's native and coin balances.
func (r *WalletRepository) UpdateBalances(ctx context.Context, wallet *models.Wallet) error {
	balancesJSON, err := json.Marshal(wallet.CoinBalances)
	if err != nil {
		return errors.NewInternalError("marshal coin balances", err)
	}

	query := `
		UPDATE wallets
		SET native_balance = $1, coin_balances = $2, updated_at = $3
		WHERE address = $4 AND chain = $5
	`
	tag, err := r.db.Pool().Exec(ctx, query,
		bigIntString(wallet.NativeBalance),
		balancesJSON,
		time.Now().UTC(),
		strings.ToLower(wallet.Address),
		wallet.Chain,
	)
	if err != nil {
		return errors.NewDatabaseError("update wallet balances", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("wallet", wallet.Key())
	}
	return nil
}

// ListWalletsByBackfillStatus returns every wallet in one of the given states.
func (r *WalletRepository) ListWalletsByBackfillStatus(ctx context.Context, statuses ...types.BackfillStatus) ([]*models.Wallet, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `
		SELECT address, chain, alias, native_balance, coin_balances,
		       first_activity_at, backfill_status, updated_at
		FROM wallets
		WHERE backfill_status = ANY($1)
		ORDER BY updated_at
	`
	rows, err := r.db.Pool().Query(ctx, query, values)
	if err != nil {
		return nil, errors.NewDatabaseError("list wallets by status", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("scan wallet", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var (
		w            models.Wallet
		native       string
		balancesJSON []byte
	)
	if err := row.Scan(
		&w.Address, &w.Chain, &w.Alias, &native, &balancesJSON,
		&w.FirstActivityAt, &w.BackfillStatus, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}

	balance, ok := new(big.Int).SetString(native, 10)
	if !ok {
		return nil, fmt.Errorf("invalid native balance %q for wallet %s", native, w.Address)
	}
	w.NativeBalance = balance

	if len(balancesJSON) > 0 {
		if err := json.Unmarshal(balancesJSON, &w.CoinBalances); err != nil {
			return nil, fmt.Errorf("invalid coin balances for wallet %s: %w", w.Address, err)
		}
	}
	return &w, nil
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
