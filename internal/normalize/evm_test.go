package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/types"
)

func evmPayload(t *testing.T, txs []EVMRawTransaction) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(txs)
	require.NoError(t, err)
	return raw
}

func TestEVMNormalizeNativeTransfer(t *testing.T) {
	n := NewEVMNormalizer()

	raw := evmPayload(t, []EVMRawTransaction{{
		Hash:           "0xABCDEF",
		BlockTimestamp: 1700000000,
		GasUsed:        "21000",
		GasPrice:       "1000000000",
		Transfers: []EVMRawTransfer{{
			From:  "0x52908400098527886E0F7030069857D2E4169EE7",
			To:    "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
			Value: "1000000000000000000",
		}},
	}})

	txs, err := n.Normalize(raw, types.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "0xabcdef", tx.Hash)
	assert.Equal(t, types.ChainEthereum, tx.Chain)
	// Fee = gasUsed * gasPrice
	assert.Equal(t, "21000000000000", tx.Fee.String())

	require.Len(t, tx.Transfers, 1)
	tr := tx.Transfers[0]
	assert.Equal(t, types.TransferNative, tr.Kind)
	// Addresses are lower-cased before storage
	assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", *tr.From)
	assert.Equal(t, "0x8617e340b3d01fa5f11f306f4090fd50e238070d", *tr.To)
	assert.Equal(t, "1000000000000000000", tr.RawAmount.String())
}

func TestEVMNormalizeClassification(t *testing.T) {
	n := NewEVMNormalizer()

	raw := evmPayload(t, []EVMRawTransaction{{
		Hash:           "0x01",
		BlockTimestamp: 1700000000,
		Transfers: []EVMRawTransfer{
			// token transfer: contract set, no token id
			{From: "0x52908400098527886E0F7030069857D2E4169EE7", To: "0x8617E340B3D01FA5F11F306F4090FD50E238070D", Value: "500", ContractAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe"},
			// nft transfer: token id below the sanity threshold
			{From: "0x52908400098527886E0F7030069857D2E4169EE7", To: "0x8617E340B3D01FA5F11F306F4090FD50E238070D", Value: "1", ContractAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", TokenID: "4242"},
			// discarded: token id at the threshold is unreliable metadata
			{From: "0x52908400098527886E0F7030069857D2E4169EE7", To: "0x8617E340B3D01FA5F11F306F4090FD50E238070D", Value: "1", ContractAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", TokenID: "1000000000"},
			// zero-value native movement carries no information
			{From: "0x52908400098527886E0F7030069857D2E4169EE7", To: "0x8617E340B3D01FA5F11F306F4090FD50E238070D", Value: "0"},
		},
	}})

	txs, err := n.Normalize(raw, types.ChainPolygon)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Len(t, txs[0].Transfers, 2)

	assert.Equal(t, types.TransferToken, txs[0].Transfers[0].Kind)
	assert.Nil(t, txs[0].Transfers[0].TokenID)

	assert.Equal(t, types.TransferNFT, txs[0].Transfers[1].Kind)
	assert.Equal(t, "4242", *txs[0].Transfers[1].TokenID)
}

func TestEVMNormalizeDropsSpam(t *testing.T) {
	n := NewEVMNormalizer()

	raw := evmPayload(t, []EVMRawTransaction{{
		Hash:           "0x02",
		BlockTimestamp: 1700000000,
		Transfers: []EVMRawTransfer{
			{From: "0x52908400098527886E0F7030069857D2E4169EE7", Value: "100", ContractAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", IsSpam: true},
		},
	}})

	// The only transfer is spam, so the whole transaction is dropped
	txs, err := n.Normalize(raw, types.ChainEthereum)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestEVMNormalizeMalformedPayload(t *testing.T) {
	n := NewEVMNormalizer()

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing hash", `[{"blockTimestamp": 1700000000}]`},
		{"bad gas", `[{"hash": "0x01", "gasUsed": "many", "gasPrice": "1"}]`},
		{"bad value", `[{"hash": "0x01", "transfers": [{"from": "0x52908400098527886E0F7030069857D2E4169EE7", "value": "lots"}]}]`},
		{"bad address", `[{"hash": "0x01", "transfers": [{"from": "not-an-address", "value": "1"}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(json.RawMessage(tt.raw), types.ChainEthereum)
			require.Error(t, err)
			assert.True(t, errors.IsSchema(err), "expected schema error, got %v", err)
		})
	}
}
