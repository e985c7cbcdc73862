package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

type fakeStreamStore struct {
	streams map[string]*models.Stream
}

func (s *fakeStreamStore) Create(ctx context.Context, stream *models.Stream) error {
	s.streams[stream.ID] = stream
	return nil
}

func (s *fakeStreamStore) GetByID(ctx context.Context, id string) (*models.Stream, error) {
	stream, ok := s.streams[id]
	if !ok {
		return nil, errors.NewNotFoundError("stream", id)
	}
	return stream, nil
}

func (s *fakeStreamStore) List(ctx context.Context) ([]*models.Stream, error) {
	var all []*models.Stream
	for _, stream := range s.streams {
		all = append(all, stream)
	}
	return all, nil
}

func (s *fakeStreamStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.streams[id]; !ok {
		return errors.NewNotFoundError("stream", id)
	}
	delete(s.streams, id)
	return nil
}

func testStreamService() (*StreamService, *fakeStreamStore) {
	store := &fakeStreamStore{streams: make(map[string]*models.Stream)}
	return NewStreamService(store, logging.NewLogger(logging.LevelError, logging.FormatText)), store
}

func TestCreateStreamAssignsID(t *testing.T) {
	svc, store := testStreamService()

	stream, err := svc.CreateStream(context.Background(), &CreateStreamInput{
		WebhookURL: "https://example.com/hook",
		Tag:        "treasury",
		Chain:      types.ChainEthereum,
		Addresses:  []string{trackedAddress},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stream.ID)
	assert.Len(t, store.streams, 1)
}

func TestCreateStreamLowercasesAddresses(t *testing.T) {
	svc, _ := testStreamService()

	stream, err := svc.CreateStream(context.Background(), &CreateStreamInput{
		WebhookURL: "https://example.com/hook",
		Chain:      types.ChainEthereum,
		Addresses: []string{
			"0xAbC0000000000000000000000000000000000001",
			"0xDEF0000000000000000000000000000000000002",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0xabc0000000000000000000000000000000000001",
		"0xdef0000000000000000000000000000000000002",
	}, stream.Addresses)
}

func TestCreateStreamValidatesInput(t *testing.T) {
	svc, _ := testStreamService()
	ctx := context.Background()

	_, err := svc.CreateStream(ctx, &CreateStreamInput{
		WebhookURL: "https://example.com/hook",
		Chain:      types.ChainID("dogecoin"),
		Addresses:  []string{trackedAddress},
	})
	require.Error(t, err)

	_, err = svc.CreateStream(ctx, &CreateStreamInput{
		Chain:     types.ChainEthereum,
		Addresses: []string{trackedAddress},
	})
	require.Error(t, err)

	_, err = svc.CreateStream(ctx, &CreateStreamInput{
		WebhookURL: "https://example.com/hook",
		Chain:      types.ChainEthereum,
	})
	require.Error(t, err)
}

func TestDeleteStream(t *testing.T) {
	svc, _ := testStreamService()
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, &CreateStreamInput{
		WebhookURL: "https://example.com/hook",
		Chain:      types.ChainEthereum,
		Addresses:  []string{trackedAddress},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStream(ctx, stream.ID))

	err = svc.DeleteStream(ctx, stream.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
