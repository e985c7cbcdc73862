// Package coordinator drives backfill runs through their lifecycle. A
// wallet's backfill is pending until activated, active while its chunks
// execute, and complete once every chunk succeeded; any chunk failure
// sends the wallet back to pending so the startup sweep can re-drive it.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/planner"
	"github.com/wallet-sync/internal/queue"
	"github.com/wallet-sync/internal/types"
)

// WalletStore is the wallet persistence surface the coordinator needs.
type WalletStore interface {
	GetWallet(ctx context.Context, chain types.ChainID, address string) (*models.Wallet, error)
	UpdateBackfillStatus(ctx context.Context, chain types.ChainID, address string, status types.BackfillStatus, firstActivity *time.Time) error
	ListWalletsByBackfillStatus(ctx context.Context, statuses ...types.BackfillStatus) ([]*models.Wallet, error)
}

// run tracks one wallet's in-flight backfill. The pending set is the
// complete chunk-id set of the plan, registered before any completion is
// observed; outcomes drain it until it is empty.
type run struct {
	walletAddress string
	chain         types.ChainID
	pending       map[string]struct{}
	failure       error
	earliest      *time.Time
	transactions  int
}

// Coordinator owns backfill state transitions and the completion barrier.
type Coordinator struct {
	wallets WalletStore
	planner *planner.Planner
	queue   *queue.Queue

	maxChunks int

	mu        sync.Mutex
	byChunk   map[string]*run
	unmatched map[string]*models.ChunkOutcome

	logger *logging.Logger
}

// New creates a coordinator.
func New(wallets WalletStore, pl *planner.Planner, q *queue.Queue, maxChunks int, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		wallets:   wallets,
		planner:   pl,
		queue:     q,
		maxChunks: maxChunks,
		byChunk:   make(map[string]*run),
		unmatched: make(map[string]*models.ChunkOutcome),
		logger:    logger.WithField("component", "backfill_coordinator"),
	}
}

// Start consumes chunk outcomes until the context is done.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case outcome := <-c.queue.Outcomes():
				c.handleOutcome(ctx, outcome)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StartBackfill activates a wallet's backfill: plans the chunks, registers
// the full chunk-id set, marks the wallet active, and enqueues the work.
// Registration happens before enqueueing so a completion can never arrive
// ahead of the set it must count against. Complete wallets and wallets
// with a run already in flight are left alone.
func (c *Coordinator) StartBackfill(ctx context.Context, wallet *models.Wallet) error {
	if wallet.BackfillStatus == types.BackfillComplete {
		return nil
	}
	if c.hasRun(wallet.Address, wallet.Chain) {
		return nil
	}

	plan, err := c.planner.Plan(wallet, c.maxChunks, time.Now().UTC())
	if err != nil {
		return err
	}

	c.register(wallet.Address, wallet.Chain, plan.Chunks)

	if err := c.wallets.UpdateBackfillStatus(ctx, wallet.Chain, wallet.Address, types.BackfillActive, nil); err != nil {
		c.unregister(plan.Chunks)
		return err
	}

	if err := c.queue.Enqueue(ctx, plan.Chunks...); err != nil {
		c.unregister(plan.Chunks)
		if uerr := c.wallets.UpdateBackfillStatus(ctx, wallet.Chain, wallet.Address, types.BackfillPending, nil); uerr != nil {
			c.logger.WithError(uerr).Error("Failed to revert wallet to pending after enqueue failure")
		}
		return err
	}

	c.logger.WithFields(map[string]interface{}{
		"wallet": wallet.Address,
		"chain":  wallet.Chain,
		"chunks": len(plan.Chunks),
	}).Info("Backfill activated")
	return nil
}

// Sweep re-drives every wallet whose backfill is not complete. Chunk
// records that survived a restart are adopted into rebuilt runs; wallets
// with no surviving chunks get a fresh plan. Called once on startup.
func (c *Coordinator) Sweep(ctx context.Context) error {
	recovered, err := c.queue.Recover(ctx)
	if err != nil {
		return err
	}

	byWallet := make(map[string][]*models.Chunk)
	for _, chunk := range recovered {
		key := chunk.WalletAddress + ":" + string(chunk.Chain)
		byWallet[key] = append(byWallet[key], chunk)
	}
	for _, chunks := range byWallet {
		c.register(chunks[0].WalletAddress, chunks[0].Chain, chunks)
	}

	wallets, err := c.wallets.ListWalletsByBackfillStatus(ctx, types.BackfillPending, types.BackfillActive)
	if err != nil {
		return err
	}

	for _, w := range wallets {
		if c.hasRun(w.Address, w.Chain) {
			continue
		}
		if err := c.StartBackfill(ctx, w); err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"wallet": w.Address,
				"chain":  w.Chain,
			}).Error("Sweep failed to re-drive backfill")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"recovered_chunks": len(recovered),
		"swept_wallets":    len(wallets),
	}).Info("Startup sweep finished")
	return nil
}

// register installs a run for the full chunk-id set and immediately counts
// any outcome that arrived before registration.
func (c *Coordinator) register(address string, chain types.ChainID, chunks []*models.Chunk) {
	r := &run{
		walletAddress: address,
		chain:         chain,
		pending:       make(map[string]struct{}, len(chunks)),
	}

	c.mu.Lock()
	for _, chunk := range chunks {
		r.pending[chunk.ID] = struct{}{}
		c.byChunk[chunk.ID] = r
	}
	var early []*models.ChunkOutcome
	for id := range r.pending {
		if o, ok := c.unmatched[id]; ok {
			delete(c.unmatched, id)
			early = append(early, o)
		}
	}
	c.mu.Unlock()

	for _, o := range early {
		c.handleOutcome(context.Background(), o)
	}
}

func (c *Coordinator) unregister(chunks []*models.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chunk := range chunks {
		delete(c.byChunk, chunk.ID)
	}
}

func (c *Coordinator) hasRun(address string, chain types.ChainID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.byChunk {
		if r.walletAddress == address && r.chain == chain {
			return true
		}
	}
	return false
}

// handleOutcome applies one chunk result to its run. An outcome whose run
// is not registered yet is buffered and replayed on registration.
func (c *Coordinator) handleOutcome(ctx context.Context, outcome *models.ChunkOutcome) {
	c.mu.Lock()
	r, ok := c.byChunk[outcome.ChunkID]
	if !ok {
		c.unmatched[outcome.ChunkID] = outcome
		c.mu.Unlock()
		return
	}
	delete(c.byChunk, outcome.ChunkID)
	delete(r.pending, outcome.ChunkID)

	if outcome.Err != nil {
		r.failure = outcome.Err
	} else {
		r.transactions += outcome.Transactions
		if outcome.EarliestTimestamp != nil {
			if r.earliest == nil || outcome.EarliestTimestamp.Before(*r.earliest) {
				ts := *outcome.EarliestTimestamp
				r.earliest = &ts
			}
		}
	}
	done := len(r.pending) == 0
	c.mu.Unlock()

	if done {
		c.finalize(ctx, r)
	}
}

// finalize settles a run once its last chunk resolved. All chunks
// succeeded: the wallet is complete and its first activity recorded. Any
// failure: the whole backfill failed and the wallet returns to pending.
func (c *Coordinator) finalize(ctx context.Context, r *run) {
	if r.failure != nil {
		c.logger.WithError(r.failure).WithFields(map[string]interface{}{
			"wallet": r.walletAddress,
			"chain":  r.chain,
		}).Error("Backfill failed, wallet back to pending")
		if err := c.wallets.UpdateBackfillStatus(ctx, r.chain, r.walletAddress, types.BackfillPending, nil); err != nil {
			c.logger.WithError(err).Error("Failed to mark wallet pending")
		}
		return
	}

	if err := c.wallets.UpdateBackfillStatus(ctx, r.chain, r.walletAddress, types.BackfillComplete, r.earliest); err != nil {
		c.logger.WithError(err).Error("Failed to mark wallet complete")
		return
	}
	c.logger.WithFields(map[string]interface{}{
		"wallet":       r.walletAddress,
		"chain":        r.chain,
		"transactions": r.transactions,
	}).Info("Backfill complete")
}
