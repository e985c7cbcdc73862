package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// TransactionRepository handles transaction persistence in ClickHouse.
// The table is a ReplacingMergeTree keyed on (chain, hash, address):
// re-ingesting a transaction from any path replaces the previous row
// instead of double-counting it, and derived fields take the newest write.
type TransactionRepository struct {
	db *ClickHouseDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *ClickHouseDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// SaveTransactions batch-inserts valued transactions for a wallet.
func (r *TransactionRepository) SaveTransactions(ctx context.Context, address string, txs []*models.ValuedTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	address = strings.ToLower(address)

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO transactions (
			chain, hash, address, block_timestamp, fee, fee_usd, summary, transfers, ingested_at
		)
	`)
	if err != nil {
		return errors.NewDatabaseError("prepare transaction batch", err)
	}

	now := time.Now().UTC()
	for _, tx := range txs {
		transfersJSON, err := json.Marshal(tx.Transfers)
		if err != nil {
			return errors.NewInternalError("marshal transfers", err)
		}

		summary := ""
		if tx.Summary != nil {
			summary = *tx.Summary
		}

		if err := batch.Append(
			string(tx.Chain),
			strings.ToLower(tx.Hash),
			address,
			tx.BlockTimestamp,
			bigIntString(tx.Fee),
			tx.FeeUSD,
			summary,
			string(transfersJSON),
			now,
		); err != nil {
			return errors.NewDatabaseError("append transaction", err)
		}
	}

	if err := batch.Send(); err != nil {
		return errors.NewDatabaseError("send transaction batch", err)
	}
	return nil
}

// ListByWallet returns one page of a wallet's transactions, newest first,
// plus the total count. FINAL collapses replaced rows so replays never
// show up twice.
func (r *TransactionRepository) ListByWallet(ctx context.Context, chain types.ChainID, address string, page, pageSize int) ([]*models.ValuedTransaction, uint64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	address = strings.ToLower(address)

	var total uint64
	countQuery := `
		SELECT COUNT(*) FROM transactions FINAL
		WHERE chain = ? AND address = ?
	`
	if err := r.db.Conn().QueryRow(ctx, countQuery, string(chain), address).Scan(&total); err != nil {
		return nil, 0, errors.NewDatabaseError("count transactions", err)
	}

	query := `
		SELECT chain, hash, block_timestamp, fee, fee_usd, summary, transfers
		FROM transactions FINAL
		WHERE chain = ? AND address = ?
		ORDER BY block_timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.Conn().Query(ctx, query, string(chain), address, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, errors.NewDatabaseError("list transactions", err)
	}
	defer rows.Close()

	var txs []*models.ValuedTransaction
	for rows.Next() {
		var (
			chainStr      string
			hash          string
			ts            time.Time
			feeStr        string
			feeUSD        float64
			summary       string
			transfersJSON string
		)
		if err := rows.Scan(&chainStr, &hash, &ts, &feeStr, &feeUSD, &summary, &transfersJSON); err != nil {
			return nil, 0, errors.NewDatabaseError("scan transaction", err)
		}

		fee, ok := new(big.Int).SetString(feeStr, 10)
		if !ok {
			return nil, 0, errors.NewInternalError("decode transaction fee",
				fmt.Errorf("invalid fee %q for %s", feeStr, hash))
		}

		tx := &models.ValuedTransaction{
			Transaction: &models.Transaction{
				Chain:          types.ChainID(chainStr),
				Hash:           hash,
				BlockTimestamp: ts,
				Fee:            fee,
			},
			FeeUSD: feeUSD,
		}
		if summary != "" {
			tx.Summary = &summary
		}
		if err := json.Unmarshal([]byte(transfersJSON), &tx.Transfers); err != nil {
			return nil, 0, errors.NewInternalError("decode transfers", err)
		}
		for _, vt := range tx.Transfers {
			tx.Transaction.Transfers = append(tx.Transaction.Transfers, vt.Transfer)
		}

		txs = append(txs, tx)
	}
	return txs, total, rows.Err()
}
