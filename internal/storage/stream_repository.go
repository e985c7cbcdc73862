package storage

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// StreamRepository handles webhook stream registrations in Postgres.
type StreamRepository struct {
	db *PostgresDB
}

// NewStreamRepository creates a new stream repository
func NewStreamRepository(db *PostgresDB) *StreamRepository {
	return &StreamRepository{db: db}
}

// Create inserts a stream registration.
func (r *StreamRepository) Create(ctx context.Context, stream *models.Stream) error {
	addresses := make([]string, len(stream.Addresses))
	for i, a := range stream.Addresses {
		addresses[i] = strings.ToLower(a)
	}
	stream.Addresses = addresses

	query := `
		INSERT INTO streams (id, webhook_url, tag, chain, addresses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Pool().Exec(ctx, query,
		stream.ID, stream.WebhookURL, stream.Tag, stream.Chain, stream.Addresses, stream.CreatedAt,
	); err != nil {
		return errors.NewDatabaseError("create stream", err)
	}
	return nil
}

// GetByID retrieves one stream.
func (r *StreamRepository) GetByID(ctx context.Context, id string) (*models.Stream, error) {
	query := `
		SELECT id, webhook_url, tag, chain, addresses, created_at
		FROM streams WHERE id = $1
	`
	var s models.Stream
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&s.ID, &s.WebhookURL, &s.Tag, &s.Chain, &s.Addresses, &s.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("stream", id)
		}
		return nil, errors.NewDatabaseError("get stream", err)
	}
	return &s, nil
}

// List returns all stream registrations.
func (r *StreamRepository) List(ctx context.Context) ([]*models.Stream, error) {
	query := `
		SELECT id, webhook_url, tag, chain, addresses, created_at
		FROM streams ORDER BY created_at
	`
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, errors.NewDatabaseError("list streams", err)
	}
	defer rows.Close()

	var streams []*models.Stream
	for rows.Next() {
		var s models.Stream
		if err := rows.Scan(&s.ID, &s.WebhookURL, &s.Tag, &s.Chain, &s.Addresses, &s.CreatedAt); err != nil {
			return nil, errors.NewDatabaseError("scan stream", err)
		}
		streams = append(streams, &s)
	}
	return streams, rows.Err()
}

// ListByChain returns the streams watching a chain.
func (r *StreamRepository) ListByChain(ctx context.Context, chain types.ChainID) ([]*models.Stream, error) {
	query := `
		SELECT id, webhook_url, tag, chain, addresses, created_at
		FROM streams WHERE chain = $1 ORDER BY created_at
	`
	rows, err := r.db.Pool().Query(ctx, query, chain)
	if err != nil {
		return nil, errors.NewDatabaseError("list streams by chain", err)
	}
	defer rows.Close()

	var streams []*models.Stream
	for rows.Next() {
		var s models.Stream
		if err := rows.Scan(&s.ID, &s.WebhookURL, &s.Tag, &s.Chain, &s.Addresses, &s.CreatedAt); err != nil {
			return nil, errors.NewDatabaseError("scan stream", err)
		}
		streams = append(streams, &s)
	}
	return streams, rows.Err()
}

// Delete removes a stream registration.
func (r *StreamRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM streams WHERE id = $1`, id)
	if err != nil {
		return errors.NewDatabaseError("delete stream", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("stream", id)
	}
	return nil
}
