// Package normalize maps raw provider transaction payloads into the
// canonical transaction model. Each ecosystem has exactly one normalizer;
// dispatch goes through the chain-to-ecosystem lookup table.
package normalize

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// maxReliableTokenID is the sanity threshold for NFT token ids. Transfers
// carrying a larger id are discarded as unreliable metadata.
var maxReliableTokenID = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)

// Normalizer converts one ecosystem's raw transaction payload into
// canonical transactions. A malformed payload fails with a
// ProviderSchemaError; callers never retry parse failures.
type Normalizer interface {
	Ecosystem() types.Ecosystem
	Normalize(raw json.RawMessage, chain types.ChainID) ([]*models.Transaction, error)
}

// Registry holds the closed set of ecosystem normalizers.
type Registry struct {
	byEcosystem map[types.Ecosystem]Normalizer
}

// NewRegistry creates a registry with all three ecosystem variants.
func NewRegistry() *Registry {
	r := &Registry{byEcosystem: make(map[types.Ecosystem]Normalizer)}
	for _, n := range []Normalizer{NewEVMNormalizer(), NewUTXONormalizer(), NewSolanaNormalizer()} {
		r.byEcosystem[n.Ecosystem()] = n
	}
	return r
}

// ForChain returns the normalizer for a chain's ecosystem.
func (r *Registry) ForChain(chain types.ChainID) (Normalizer, error) {
	eco, ok := types.EcosystemOf(chain)
	if !ok {
		return nil, errors.NewInvalidParameterError("chain", "unsupported chain "+string(chain))
	}
	n, ok := r.byEcosystem[eco]
	if !ok {
		return nil, errors.NewInvalidParameterError("chain", "no normalizer for ecosystem "+string(eco))
	}
	return n, nil
}

// Normalize dispatches a raw payload to the chain's ecosystem normalizer.
func (r *Registry) Normalize(raw json.RawMessage, chain types.ChainID) ([]*models.Transaction, error) {
	n, err := r.ForChain(chain)
	if err != nil {
		return nil, err
	}
	return n.Normalize(raw, chain)
}

// lowerAddr lower-cases an address and returns nil for empty strings so
// address matching stays chain-agnostic at the string level.
func lowerAddr(addr string) *string {
	if addr == "" {
		return nil
	}
	lower := strings.ToLower(addr)
	return &lower
}

// classifyTokenID applies the NFT token-id sanity threshold. It returns
// the parsed id and true when the transfer should be kept as an NFT
// transfer, or false when the id is unreliable and the transfer must be
// discarded.
func classifyTokenID(tokenID string) (string, bool) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", false
	}
	if id.Sign() < 0 || id.Cmp(maxReliableTokenID) >= 0 {
		return "", false
	}
	return id.String(), true
}

// parseAmount parses a raw decimal amount string into a big.Int. Empty
// strings parse as zero. The second return is false on malformed input.
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return new(big.Int), true
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return amount, true
}
