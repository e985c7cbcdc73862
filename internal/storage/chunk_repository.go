package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// ChunkRepository persists backfill chunk records. The records exist for
// queue durability only; dispatch order lives in the in-memory heap.
type ChunkRepository struct {
	db *PostgresDB
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *PostgresDB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateChunks inserts a batch of chunk records in one round trip.
func (r *ChunkRepository) CreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO backfill_chunks (
			id, wallet_address, chain, from_time, to_time, unbounded,
			priority, status, attempts, lease_until, error, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, c := range chunks {
		batch.Queue(query,
			c.ID, c.WalletAddress, c.Chain, c.FromTime, c.ToTime, c.Unbounded,
			c.Priority, c.Status, c.Attempts, c.LeaseUntil, c.Error, c.CreatedAt,
		)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return errors.NewDatabaseError("create chunks", err)
		}
	}
	return nil
}

// UpdateChunk persists a chunk's status, attempts, lease and error.
func (r *ChunkRepository) UpdateChunk(ctx context.Context, chunk *models.Chunk) error {
	query := `
		UPDATE backfill_chunks
		SET status = $1, attempts = $2, lease_until = $3, error = $4
		WHERE id = $5
	`
	tag, err := r.db.Pool().Exec(ctx, query,
		chunk.Status, chunk.Attempts, chunk.LeaseUntil, chunk.Error, chunk.ID)
	if err != nil {
		return errors.NewDatabaseError("update chunk", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("chunk", chunk.ID)
	}
	return nil
}

// ListChunksByStatus returns every chunk in one of the given states,
// oldest first.
func (r *ChunkRepository) ListChunksByStatus(ctx context.Context, statuses ...types.ChunkStatus) ([]*models.Chunk, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `
		SELECT id, wallet_address, chain, from_time, to_time, unbounded,
		       priority, status, attempts, lease_until, error, created_at
		FROM backfill_chunks
		WHERE status = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.db.Pool().Query(ctx, query, values)
	if err != nil {
		return nil, errors.NewDatabaseError("list chunks", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(
			&c.ID, &c.WalletAddress, &c.Chain, &c.FromTime, &c.ToTime, &c.Unbounded,
			&c.Priority, &c.Status, &c.Attempts, &c.LeaseUntil, &c.Error, &c.CreatedAt,
		); err != nil {
			return nil, errors.NewDatabaseError("scan chunk", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// DeleteFinished removes done and failed chunk records older than the
// given horizon so the table does not grow without bound.
func (r *ChunkRepository) DeleteFinished(ctx context.Context, olderThanDays int) (int64, error) {
	query := `
		DELETE FROM backfill_chunks
		WHERE status IN ('done', 'failed')
		  AND created_at < NOW() - ($1 || ' days')::interval
	`
	tag, err := r.db.Pool().Exec(ctx, query, olderThanDays)
	if err != nil {
		return 0, errors.NewDatabaseError("delete finished chunks", err)
	}
	return tag.RowsAffected(), nil
}
