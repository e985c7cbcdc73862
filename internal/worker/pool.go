package worker

import (
	"context"
	"sync"

	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/queue"
)

// Pool runs a fixed number of chunk workers against the queue.
type Pool struct {
	queue  *queue.Queue
	worker *ChunkWorker
	size   int
	logger *logging.Logger
	wg     sync.WaitGroup
}

// NewPool creates a worker pool of the given size.
func NewPool(q *queue.Queue, w *ChunkWorker, size int, logger *logging.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		queue:  q,
		worker: w,
		size:   size,
		logger: logger.WithField("component", "worker_pool"),
	}
}

// Start launches the workers. They drain the queue until the context is
// cancelled; Wait blocks until all of them returned.
func (p *Pool) Start(ctx context.Context) {
	p.logger.WithField("workers", p.size).Info("Starting chunk workers")
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker has stopped.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.WithField("worker", id)

	for {
		chunk, err := p.queue.Dequeue(ctx)
		if err != nil {
			// context cancelled, shut down
			return
		}

		outcome := p.worker.Execute(ctx, chunk)
		if outcome.Err != nil {
			if ferr := p.queue.Fail(ctx, chunk, outcome.Err); ferr != nil {
				logger.WithError(ferr).WithField("chunk_id", chunk.ID).Error("Failed to record chunk failure")
			}
			continue
		}
		if cerr := p.queue.Complete(ctx, chunk, outcome); cerr != nil {
			logger.WithError(cerr).WithField("chunk_id", chunk.ID).Error("Failed to record chunk completion")
		}
	}
}
