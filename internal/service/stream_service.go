package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// StreamStore is the stream persistence surface.
type StreamStore interface {
	Create(ctx context.Context, stream *models.Stream) error
	GetByID(ctx context.Context, id string) (*models.Stream, error)
	List(ctx context.Context) ([]*models.Stream, error)
	Delete(ctx context.Context, id string) error
}

// StreamService manages live notification subscriptions.
type StreamService struct {
	streams StreamStore
	logger  *logging.Logger
}

// NewStreamService creates a new stream service.
func NewStreamService(streams StreamStore, logger *logging.Logger) *StreamService {
	return &StreamService{
		streams: streams,
		logger:  logger.WithField("component", "stream_service"),
	}
}

// CreateStreamInput represents input for creating a stream.
type CreateStreamInput struct {
	WebhookURL string        `json:"webhookUrl"`
	Tag        string        `json:"tag"`
	Chain      types.ChainID `json:"chain"`
	Addresses  []string      `json:"addresses"`
}

// CreateStream registers a new webhook subscription.
func (s *StreamService) CreateStream(ctx context.Context, input *CreateStreamInput) (*models.Stream, error) {
	if !types.IsSupportedChain(input.Chain) {
		return nil, errors.NewInvalidParameterError("chain", "unsupported chain "+string(input.Chain))
	}
	if strings.TrimSpace(input.WebhookURL) == "" {
		return nil, errors.NewInvalidParameterError("webhookUrl", "webhook URL is required")
	}
	if len(input.Addresses) == 0 {
		return nil, errors.NewInvalidParameterError("addresses", "at least one watched address is required")
	}

	// addresses are matched lower-cased everywhere, so store them that way
	addresses := make([]string, len(input.Addresses))
	for i, a := range input.Addresses {
		addresses[i] = strings.ToLower(a)
	}

	stream := &models.Stream{
		ID:         uuid.New().String(),
		WebhookURL: input.WebhookURL,
		Tag:        input.Tag,
		Chain:      input.Chain,
		Addresses:  addresses,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.streams.Create(ctx, stream); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"stream": stream.ID,
		"chain":  stream.Chain,
	}).Info("Created stream")
	return stream, nil
}

// ListStreams returns all registered streams.
func (s *StreamService) ListStreams(ctx context.Context) ([]*models.Stream, error) {
	return s.streams.List(ctx)
}

// DeleteStream removes a stream by id.
func (s *StreamService) DeleteStream(ctx context.Context, id string) error {
	if err := s.streams.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("stream", id).Info("Deleted stream")
	return nil
}
