// Package planner splits a wallet's backfill span into chunks of work.
// Range-capable ecosystems get equal time windows that can run in any
// order; the rest get a single unbounded self-paginating chunk.
package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// LivePriority is the priority of live-path (webhook) work. Backfill
// chunks always sit strictly below it so live ingestion is never starved.
const LivePriority = 1000

// basePriority is the priority of the first chunk of a plan. Subsequent
// chunks step up monotonically toward, but never reach, LivePriority.
const basePriority = 10

// genesisTime bounds the span when a wallet's first activity is unknown.
// Predates every supported chain's launch.
var genesisTime = time.Date(2009, 1, 3, 0, 0, 0, 0, time.UTC)

// Planner builds backfill plans.
type Planner struct{}

// New creates a planner.
func New() *Planner {
	return &Planner{}
}

// Plan builds the backfill plan for a wallet. For EVM chains the span
// [start, now] is divided into maxChunks equal, contiguous,
// non-overlapping windows whose union is the full span; the chunks are
// independent and may execute in any order. UTXO and Solana providers
// paginate their own history, so those chains get one unbounded chunk.
func (p *Planner) Plan(wallet *models.Wallet, maxChunks int, now time.Time) (*models.BackfillPlan, error) {
	eco, ok := types.EcosystemOf(wallet.Chain)
	if !ok {
		return nil, errors.NewInvalidParameterError("chain", "unsupported chain "+string(wallet.Chain))
	}

	plan := &models.BackfillPlan{
		WalletAddress: wallet.Address,
		Chain:         wallet.Chain,
	}

	if eco != types.EcosystemEVM {
		plan.Chunks = []*models.Chunk{newChunk(wallet, basePriority, func(c *models.Chunk) {
			c.Unbounded = true
		})}
		return plan, nil
	}

	if maxChunks < 1 {
		maxChunks = 1
	}

	start := genesisTime
	if wallet.FirstActivityAt != nil && wallet.FirstActivityAt.After(start) {
		start = *wallet.FirstActivityAt
	}
	now = now.UTC()
	if !now.After(start) {
		now = start.Add(time.Second)
	}

	span := now.Sub(start)
	window := span / time.Duration(maxChunks)

	plan.Chunks = make([]*models.Chunk, 0, maxChunks)
	for i := 0; i < maxChunks; i++ {
		from := start.Add(window * time.Duration(i))
		to := start.Add(window * time.Duration(i+1))
		if i == maxChunks-1 {
			to = now // absorb division remainder into the last window
		}
		priority := chunkPriority(i, maxChunks)
		plan.Chunks = append(plan.Chunks, newChunk(wallet, priority, func(c *models.Chunk) {
			c.FromTime = from
			c.ToTime = to
		}))
	}
	return plan, nil
}

// chunkPriority spreads chunk priorities monotonically between basePriority
// and LivePriority, exclusive of the latter.
func chunkPriority(index, total int) int {
	step := (LivePriority - basePriority) / (total + 1)
	if step < 1 {
		step = 1
	}
	p := basePriority + index*step
	if p >= LivePriority {
		p = LivePriority - 1
	}
	return p
}

func newChunk(wallet *models.Wallet, priority int, customize func(*models.Chunk)) *models.Chunk {
	c := &models.Chunk{
		ID:            uuid.New().String(),
		WalletAddress: wallet.Address,
		Chain:         wallet.Chain,
		Priority:      priority,
		Status:        types.ChunkQueued,
		CreatedAt:     time.Now().UTC(),
	}
	customize(c)
	return c
}
