// Package worker executes backfill chunks: fetch raw history page by
// page, normalize, value, persist, repeat until the cursor is exhausted.
package worker

import (
	"context"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/normalize"
	"github.com/wallet-sync/internal/provider"
	"github.com/wallet-sync/internal/retry"
	"github.com/wallet-sync/internal/valuation"
)

// TransactionSink persists valued transactions. Persistence is idempotent
// under (hash, chain), so replayed pages are harmless.
type TransactionSink interface {
	SaveTransactions(ctx context.Context, address string, txs []*models.ValuedTransaction) error
}

// ChunkWorker runs one chunk at a time through the fetch pipeline.
type ChunkWorker struct {
	providers   *provider.Registry
	normalizers *normalize.Registry
	valuator    *valuation.Valuator
	sink        TransactionSink
	retryConfig *retry.Config
	logger      *logging.Logger
}

// NewChunkWorker creates a chunk worker.
func NewChunkWorker(
	providers *provider.Registry,
	normalizers *normalize.Registry,
	valuator *valuation.Valuator,
	sink TransactionSink,
	retryConfig *retry.Config,
	logger *logging.Logger,
) *ChunkWorker {
	if retryConfig == nil {
		retryConfig = retry.DefaultConfig()
	}
	return &ChunkWorker{
		providers:   providers,
		normalizers: normalizers,
		valuator:    valuator,
		sink:        sink,
		retryConfig: retryConfig,
		logger:      logger.WithField("component", "chunk_worker"),
	}
}

// Execute runs a chunk to completion and reports its outcome. Pages are
// fetched and applied in cursor order so the earliest-timestamp
// bookkeeping sees every transaction. Transient provider errors are
// retried with backoff; anything that survives the budget, and every
// schema error, fails the chunk.
func (w *ChunkWorker) Execute(ctx context.Context, chunk *models.Chunk) *models.ChunkOutcome {
	outcome := &models.ChunkOutcome{ChunkID: chunk.ID}

	prov, err := w.providers.ForChain(chunk.Chain)
	if err != nil {
		outcome.Err = errors.NewChunkFailureError(chunk.ID, err)
		return outcome
	}
	norm, err := w.normalizers.ForChain(chunk.Chain)
	if err != nil {
		outcome.Err = errors.NewChunkFailureError(chunk.ID, err)
		return outcome
	}

	window := provider.Window{
		From:      chunk.FromTime,
		To:        chunk.ToTime,
		Unbounded: chunk.Unbounded,
	}

	cursor := ""
	for {
		var page *provider.HistoryPage
		err := retry.WithBackoff(ctx, w.retryConfig, func(ctx context.Context, _ int) error {
			var ferr error
			page, ferr = prov.GetTransactionHistory(ctx, chunk.Chain, chunk.WalletAddress, window, cursor)
			return ferr
		})
		if err != nil {
			outcome.Err = errors.NewChunkFailureError(chunk.ID, err)
			return outcome
		}

		txs, err := norm.Normalize(page.Raw, chunk.Chain)
		if err != nil {
			outcome.Err = errors.NewChunkFailureError(chunk.ID, err)
			return outcome
		}

		if len(txs) > 0 {
			valued := make([]*models.ValuedTransaction, len(txs))
			for i, tx := range txs {
				valued[i] = w.valuator.ValueTransaction(tx)
				w.trackEarliest(outcome, tx.BlockTimestamp)
			}
			if err := w.sink.SaveTransactions(ctx, chunk.WalletAddress, valued); err != nil {
				outcome.Err = errors.NewChunkFailureError(chunk.ID, err)
				return outcome
			}
			outcome.Transactions += len(txs)
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	w.logger.WithFields(map[string]interface{}{
		"chunk_id":     chunk.ID,
		"wallet":       chunk.WalletAddress,
		"chain":        chunk.Chain,
		"transactions": outcome.Transactions,
	}).Debug("Chunk finished")
	return outcome
}

func (w *ChunkWorker) trackEarliest(outcome *models.ChunkOutcome, ts time.Time) {
	if ts.IsZero() {
		return
	}
	if outcome.EarliestTimestamp == nil || ts.Before(*outcome.EarliestTimestamp) {
		t := ts
		outcome.EarliestTimestamp = &t
	}
}
