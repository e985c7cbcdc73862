package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/types"
)

func TestUTXONormalize(t *testing.T) {
	n := NewUTXONormalizer()

	raw, err := json.Marshal([]UTXORawTransaction{{
		Txid:      "F4184FC596403B9D638783CF57ADFE4C75C605F6356FBC91338530E9831E9E16",
		BlockTime: 1231731025,
		Vin: []UTXOInOut{
			{Addresses: []string{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"}, Value: "5000000000"},
		},
		Vout: []UTXOInOut{
			{Addresses: []string{"1Q2TWHE3GMdB6BZKafqwxXtWAWgFt5Jvm3"}, Value: "1000000000"},
			{Addresses: []string{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"}, Value: "3999990000"},
		},
	}})
	require.NoError(t, err)

	txs, err := n.Normalize(raw, types.ChainBitcoin)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16", tx.Hash)
	// UTXO chains report fee 0; the fee lives in the input/output imbalance
	assert.Zero(t, tx.Fee.Sign())

	require.Len(t, tx.Transfers, 3)
	// input: sender only
	assert.NotNil(t, tx.Transfers[0].From)
	assert.Nil(t, tx.Transfers[0].To)
	assert.Equal(t, "5000000000", tx.Transfers[0].RawAmount.String())
	// outputs: recipient only
	assert.Nil(t, tx.Transfers[1].From)
	assert.NotNil(t, tx.Transfers[1].To)

	for _, tr := range tx.Transfers {
		assert.Equal(t, types.TransferNative, tr.Kind)
	}
}

func TestUTXONormalizeCoinbase(t *testing.T) {
	n := NewUTXONormalizer()

	// Coinbase input has no address; the output side still counts
	raw, err := json.Marshal([]UTXORawTransaction{{
		Txid:      "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
		BlockTime: 1231006505,
		Vin:       []UTXOInOut{{Value: "0"}},
		Vout: []UTXOInOut{
			{Addresses: []string{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"}, Value: "5000000000"},
		},
	}})
	require.NoError(t, err)

	txs, err := n.Normalize(raw, types.ChainBitcoin)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Len(t, txs[0].Transfers, 1)
	assert.Nil(t, txs[0].Transfers[0].From)
}

func TestUTXONormalizeMalformed(t *testing.T) {
	n := NewUTXONormalizer()

	_, err := n.Normalize(json.RawMessage(`[{"blockTime": 1}]`), types.ChainBitcoin)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = n.Normalize(json.RawMessage(`[{"txid": "ab", "vin": [{"value": "much"}]}]`), types.ChainBitcoin)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}
