package models

import (
	"time"

	"github.com/wallet-sync/internal/types"
)

// Chunk is one bounded unit of backfill work. For range-capable ecosystems
// it covers [FromTime, ToTime); for the rest it is a single unbounded,
// self-paginating unit (Unbounded true, bounds zero).
type Chunk struct {
	ID            string            `json:"id"`
	WalletAddress string            `json:"walletAddress"`
	Chain         types.ChainID     `json:"chain"`
	FromTime      time.Time         `json:"fromTime"`
	ToTime        time.Time         `json:"toTime"`
	Unbounded     bool              `json:"unbounded"`
	Priority      int               `json:"priority"`
	Status        types.ChunkStatus `json:"status"`
	Attempts      int               `json:"attempts"`
	LeaseUntil    *time.Time        `json:"leaseUntil,omitempty"`
	Error         *string           `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// BackfillPlan holds the chunks for one backfill run of one wallet. The
// plan itself is not persisted; only the chunk records (for queue
// durability) and the wallet's resulting status are.
type BackfillPlan struct {
	WalletAddress string        `json:"walletAddress"`
	Chain         types.ChainID `json:"chain"`
	Chunks        []*Chunk      `json:"chunks"`
}

// ChunkOutcome is a worker's completion report for one chunk.
type ChunkOutcome struct {
	ChunkID           string     `json:"chunkId"`
	Err               error      `json:"-"`
	EarliestTimestamp *time.Time `json:"earliestTimestamp,omitempty"`
	Transactions      int        `json:"transactions"`
}
