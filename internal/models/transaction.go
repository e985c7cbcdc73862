package models

import (
	"math/big"
	"strings"
	"time"

	"github.com/wallet-sync/internal/types"
)

// Transfer represents one atomic value movement inside a transaction.
// From/To may be nil on chains without a clean counterparty. Immutable once
// created.
type Transfer struct {
	Kind      types.TransferKind `json:"kind"`
	From      *string            `json:"from,omitempty"`
	To        *string            `json:"to,omitempty"`
	RawAmount *big.Int           `json:"rawAmount"`
	Contract  *string            `json:"contract,omitempty"`
	TokenID   *string            `json:"tokenId,omitempty"`
}

// Counterparty returns the transfer's other side relative to the given
// address, or nil when the transfer has no counterparty.
func (t *Transfer) Counterparty(address string) *string {
	address = strings.ToLower(address)
	if t.From != nil && strings.ToLower(*t.From) == address {
		return t.To
	}
	if t.To != nil && strings.ToLower(*t.To) == address {
		return t.From
	}
	return nil
}

// Transaction represents a canonical chain transaction with its transfers.
// (Hash, Chain) is unique: re-ingesting the same transaction from any path
// must be idempotent, never double-counted.
type Transaction struct {
	Chain          types.ChainID `json:"chain"`
	Hash           string        `json:"hash"`
	BlockTimestamp time.Time     `json:"blockTimestamp"`
	Fee            *big.Int      `json:"fee"`
	Summary        *string       `json:"summary,omitempty"`
	Transfers      []*Transfer   `json:"transfers"`
}

// Key returns the transaction's uniqueness key.
func (t *Transaction) Key() string {
	return string(t.Chain) + ":" + strings.ToLower(t.Hash)
}

// Touches reports whether any transfer involves the given address.
func (t *Transaction) Touches(address string) bool {
	address = strings.ToLower(address)
	for _, tr := range t.Transfers {
		if tr.From != nil && strings.ToLower(*tr.From) == address {
			return true
		}
		if tr.To != nil && strings.ToLower(*tr.To) == address {
			return true
		}
	}
	return false
}
