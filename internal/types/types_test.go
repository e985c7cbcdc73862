package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEcosystemOf(t *testing.T) {
	tests := []struct {
		chain ChainID
		eco   Ecosystem
		ok    bool
	}{
		{ChainEthereum, EcosystemEVM, true},
		{ChainPolygon, EcosystemEVM, true},
		{ChainBitcoin, EcosystemUTXO, true},
		{ChainSolana, EcosystemSolana, true},
		{ChainID("dogecoin"), "", false},
	}

	for _, tt := range tests {
		eco, ok := EcosystemOf(tt.chain)
		assert.Equal(t, tt.ok, ok, "chain %s", tt.chain)
		assert.Equal(t, tt.eco, eco, "chain %s", tt.chain)
	}
}

func TestNativeDecimals(t *testing.T) {
	assert.Equal(t, 18, NativeDecimals(ChainEthereum))
	assert.Equal(t, 8, NativeDecimals(ChainBitcoin))
	assert.Equal(t, 9, NativeDecimals(ChainSolana))
	// Unknown chains fall back to 18
	assert.Equal(t, 18, NativeDecimals(ChainID("unknown")))
}

func TestSupportedChains(t *testing.T) {
	chains := SupportedChains()
	assert.Len(t, chains, 6)
	for _, c := range chains {
		assert.True(t, IsSupportedChain(c))
	}
}
