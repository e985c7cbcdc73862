// Package queue provides the durable priority work queue for backfill
// chunks. Chunk records are persisted through a ChunkStore so the queue
// survives restarts; dispatch order comes from an in-memory heap. Workers
// hold a lease while running a chunk, and a reaper requeues chunks whose
// lease expired until the retry cap is reached.
package queue

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

var errLeaseExpired = stderrors.New("worker lease expired")

// ChunkStore persists chunk records. Implemented by the Postgres chunk
// repository; tests use an in-memory fake.
type ChunkStore interface {
	CreateChunks(ctx context.Context, chunks []*models.Chunk) error
	UpdateChunk(ctx context.Context, chunk *models.Chunk) error
	ListChunksByStatus(ctx context.Context, statuses ...types.ChunkStatus) ([]*models.Chunk, error)
	DeleteFinished(ctx context.Context, olderThanDays int) (int64, error)
}

// retentionInterval is how often finished chunk records are purged.
const retentionInterval = time.Hour

// Config holds queue tuning parameters.
type Config struct {
	LeaseDuration  time.Duration
	ReaperInterval time.Duration
	MaxAttempts    int
	RetentionDays  int // finished chunk records older than this are purged; 0 disables
}

// Queue is the backfill chunk queue.
type Queue struct {
	mu      sync.Mutex
	pending chunkHeap
	running map[string]*models.Chunk

	notify   chan struct{}
	outcomes chan *models.ChunkOutcome

	store  ChunkStore
	cfg    Config
	logger *logging.Logger
}

// New creates a queue backed by the given store.
func New(store ChunkStore, cfg Config, logger *logging.Logger) *Queue {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Queue{
		running:  make(map[string]*models.Chunk),
		notify:   make(chan struct{}, 1),
		outcomes: make(chan *models.ChunkOutcome, 256),
		store:    store,
		cfg:      cfg,
		logger:   logger.WithField("component", "chunk_queue"),
	}
}

// Outcomes returns the channel on which terminal chunk results (done or
// failed past the retry cap) are delivered. Retried chunks produce no
// outcome until they resolve.
func (q *Queue) Outcomes() <-chan *models.ChunkOutcome {
	return q.outcomes
}

// Enqueue persists and schedules a batch of chunks.
func (q *Queue) Enqueue(ctx context.Context, chunks ...*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		c.Status = types.ChunkQueued
	}
	if err := q.store.CreateChunks(ctx, chunks); err != nil {
		return errors.NewDatabaseError("enqueue chunks", err)
	}

	q.mu.Lock()
	for _, c := range chunks {
		q.pending.push(c)
	}
	q.mu.Unlock()
	q.wake()

	q.logger.WithField("count", len(chunks)).Debug("Enqueued chunks")
	return nil
}

// Dequeue blocks until a chunk is available or the context is done. The
// returned chunk is leased: the caller must call Complete or Fail before
// the lease expires, or the reaper takes the chunk back.
func (q *Queue) Dequeue(ctx context.Context) (*models.Chunk, error) {
	for {
		q.mu.Lock()
		if q.pending.Len() > 0 {
			chunk := q.pending.pop()
			chunk.Status = types.ChunkRunning
			chunk.Attempts++
			lease := time.Now().UTC().Add(q.cfg.LeaseDuration)
			chunk.LeaseUntil = &lease
			q.running[chunk.ID] = chunk
			more := q.pending.Len() > 0
			q.mu.Unlock()

			// the notify token is consumed one waiter at a time, so a bulk
			// enqueue relies on each dequeuer re-waking the next waiter
			// while chunks remain
			if more {
				q.wake()
			}

			if err := q.store.UpdateChunk(ctx, chunk); err != nil {
				q.logger.WithError(err).WithField("chunk_id", chunk.ID).Error("Failed to persist chunk lease")
			}
			return chunk, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Complete marks a leased chunk as done and delivers its outcome.
func (q *Queue) Complete(ctx context.Context, chunk *models.Chunk, outcome *models.ChunkOutcome) error {
	q.mu.Lock()
	delete(q.running, chunk.ID)
	q.mu.Unlock()

	chunk.Status = types.ChunkDone
	chunk.LeaseUntil = nil
	if err := q.store.UpdateChunk(ctx, chunk); err != nil {
		return errors.NewDatabaseError("complete chunk", err)
	}

	q.deliver(outcome)
	return nil
}

// Fail records a chunk failure. While the retry budget lasts the chunk
// goes back to the heap; past the cap it becomes terminal and the failure
// is delivered as an outcome.
func (q *Queue) Fail(ctx context.Context, chunk *models.Chunk, cause error) error {
	q.mu.Lock()
	delete(q.running, chunk.ID)
	exhausted := chunk.Attempts >= q.cfg.MaxAttempts
	q.mu.Unlock()

	msg := cause.Error()
	chunk.Error = &msg
	chunk.LeaseUntil = nil

	if !exhausted {
		chunk.Status = types.ChunkQueued
		if err := q.store.UpdateChunk(ctx, chunk); err != nil {
			return errors.NewDatabaseError("requeue chunk", err)
		}
		q.mu.Lock()
		q.pending.push(chunk)
		q.mu.Unlock()
		q.wake()
		q.logger.WithFields(map[string]interface{}{
			"chunk_id": chunk.ID,
			"attempt":  chunk.Attempts,
		}).Warn("Chunk failed, requeued")
		return nil
	}

	chunk.Status = types.ChunkFailed
	if err := q.store.UpdateChunk(ctx, chunk); err != nil {
		return errors.NewDatabaseError("fail chunk", err)
	}
	q.logger.WithError(cause).WithField("chunk_id", chunk.ID).Error("Chunk failed permanently")
	q.deliver(&models.ChunkOutcome{ChunkID: chunk.ID, Err: cause})
	return nil
}

// Recover reloads unfinished chunk records from the store after a restart
// and returns them so callers can rebuild completion tracking. Chunks that
// were running when the process died go back to queued.
func (q *Queue) Recover(ctx context.Context) ([]*models.Chunk, error) {
	chunks, err := q.store.ListChunksByStatus(ctx, types.ChunkQueued, types.ChunkRunning)
	if err != nil {
		return nil, errors.NewDatabaseError("recover chunks", err)
	}

	for _, c := range chunks {
		if c.Status == types.ChunkRunning {
			c.Status = types.ChunkQueued
			c.LeaseUntil = nil
			if err := q.store.UpdateChunk(ctx, c); err != nil {
				return nil, errors.NewDatabaseError("recover chunks", err)
			}
		}
	}

	q.mu.Lock()
	for _, c := range chunks {
		q.pending.push(c)
	}
	q.mu.Unlock()
	if len(chunks) > 0 {
		q.wake()
		q.logger.WithField("count", len(chunks)).Info("Recovered unfinished chunks")
	}
	return chunks, nil
}

// StartReaper runs the stalled-chunk reaper, and the finished-record
// purge when retention is configured, until the context is done.
func (q *Queue) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(q.cfg.ReaperInterval)
		defer ticker.Stop()
		var retention <-chan time.Time
		if q.cfg.RetentionDays > 0 {
			rt := time.NewTicker(retentionInterval)
			defer rt.Stop()
			retention = rt.C
		}
		for {
			select {
			case <-ticker.C:
				q.RequeueStalled(ctx, time.Now().UTC())
			case <-retention:
				q.PurgeFinished(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PurgeFinished drops done and failed chunk records past the retention
// horizon. The records only exist for queue durability, so finished ones
// are dead weight.
func (q *Queue) PurgeFinished(ctx context.Context) {
	purged, err := q.store.DeleteFinished(ctx, q.cfg.RetentionDays)
	if err != nil {
		q.logger.WithError(err).Error("Failed to purge finished chunks")
		return
	}
	if purged > 0 {
		q.logger.WithField("purged", purged).Info("Purged finished chunk records")
	}
}

// RequeueStalled takes back every running chunk whose lease expired at or
// before now. Chunks with retry budget left are requeued; the rest fail.
func (q *Queue) RequeueStalled(ctx context.Context, now time.Time) {
	q.mu.Lock()
	var stalled []*models.Chunk
	for _, c := range q.running {
		if c.LeaseUntil != nil && !c.LeaseUntil.After(now) {
			stalled = append(stalled, c)
		}
	}
	q.mu.Unlock()

	for _, c := range stalled {
		q.logger.WithFields(map[string]interface{}{
			"chunk_id": c.ID,
			"attempt":  c.Attempts,
		}).Warn("Chunk lease expired")
		if err := q.Fail(ctx, c, errors.NewChunkFailureError(c.ID, errLeaseExpired)); err != nil {
			q.logger.WithError(err).WithField("chunk_id", c.ID).Error("Failed to requeue stalled chunk")
		}
	}
}

// Depth returns the number of chunks waiting in the heap.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) deliver(outcome *models.ChunkOutcome) {
	if outcome == nil {
		return
	}
	q.outcomes <- outcome
}
