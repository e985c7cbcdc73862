package valuation

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// stubPrices is a fixed price source for tests.
type stubPrices struct {
	native    map[types.ChainID]float64
	contracts map[string]float64
}

func (s *stubPrices) NativePrice(chain types.ChainID) float64 {
	return s.native[chain]
}

func (s *stubPrices) ContractPrice(chain types.ChainID, contract string) float64 {
	return s.contracts[contract]
}

func TestValueExactAtEighteenDecimals(t *testing.T) {
	// 10^18 raw at 18 decimals and unit price p yields exactly p
	raw, _ := new(big.Int).SetString("1000000000000000000", 10)
	for _, p := range []float64{1, 3000, 0.000001, 123456.789} {
		assert.Equal(t, p, Value(raw, 18, p))
	}
}

func TestValueZeroCases(t *testing.T) {
	assert.Zero(t, Value(nil, 18, 100))
	assert.Zero(t, Value(big.NewInt(0), 18, 100))
	assert.Zero(t, Value(big.NewInt(5), 18, 0))
}

func TestValueSmallUnits(t *testing.T) {
	// 1 satoshi at $100,000/BTC
	assert.InDelta(t, 0.001, Value(big.NewInt(1), 8, 100000), 1e-12)
}

func TestValueWalletComposition(t *testing.T) {
	// 2.5 ETH at $3000 => $7500 native; one token worth $2500 => total
	// $10000, native 75.00%, token 25.00%
	native, _ := new(big.Int).SetString("2500000000000000000", 10)
	tokenAmount, _ := new(big.Int).SetString("2500000000", 10) // 2500 USDC, 6 decimals

	w := &models.Wallet{
		Address:       "0xabc",
		Chain:         types.ChainEthereum,
		NativeBalance: native,
		CoinBalances: []*models.WalletCoinBalance{
			{Contract: "0xusdc", RawAmount: tokenAmount, Decimals: 6, Symbol: "USDC"},
		},
	}

	v := NewValuator(&stubPrices{
		native:    map[types.ChainID]float64{types.ChainEthereum: 3000},
		contracts: map[string]float64{"0xusdc": 1},
	})

	valued := v.ValueWallet(w)
	require.Len(t, valued.CoinBalances, 1)

	assert.Equal(t, 7500.0, valued.NativeValueUSD)
	assert.Equal(t, 10000.0, valued.TotalValueUSD)
	assert.Equal(t, 75.0, valued.NativePercentage)
	assert.Equal(t, 25.0, valued.CoinBalances[0].PercentageInWallet)
}

func TestValueWalletZeroTotal(t *testing.T) {
	w := &models.Wallet{
		Address:       "0xabc",
		Chain:         types.ChainEthereum,
		NativeBalance: big.NewInt(0),
		CoinBalances: []*models.WalletCoinBalance{
			{Contract: "0xdead", RawAmount: big.NewInt(12345), Decimals: 18},
		},
	}

	v := NewValuator(&stubPrices{native: map[types.ChainID]float64{}, contracts: map[string]float64{}})
	valued := v.ValueWallet(w)

	assert.Zero(t, valued.TotalValueUSD)
	assert.Zero(t, valued.NativePercentage)
	for _, b := range valued.CoinBalances {
		assert.Zero(t, b.PercentageInWallet)
	}
}

func TestValueWalletNFTValuesZero(t *testing.T) {
	tokenID := "42"
	w := &models.Wallet{
		Address:       "0xabc",
		Chain:         types.ChainEthereum,
		NativeBalance: big.NewInt(1e18),
		CoinBalances: []*models.WalletCoinBalance{
			{Contract: "0xnft", RawAmount: big.NewInt(1), TokenID: &tokenID, IsNFT: true},
		},
	}

	v := NewValuator(&stubPrices{
		native:    map[types.ChainID]float64{types.ChainEthereum: 3000},
		contracts: map[string]float64{"0xnft": 999999},
	})

	valued := v.ValueWallet(w)
	assert.Zero(t, valued.CoinBalances[0].ValueUSD)
	assert.Zero(t, valued.CoinBalances[0].PercentageInWallet)
	assert.Equal(t, 100.0, valued.NativePercentage)
}

func TestValueTransaction(t *testing.T) {
	from := "0xaaa"
	to := "0xbbb"
	contract := "0xusdc"
	tx := &models.Transaction{
		Chain: types.ChainEthereum,
		Hash:  "0xdeadbeef",
		Fee:   big.NewInt(21000 * 1e9),
		Transfers: []*models.Transfer{
			{Kind: types.TransferNative, From: &from, To: &to, RawAmount: big.NewInt(1e18)},
			{Kind: types.TransferToken, From: &from, To: &to, RawAmount: big.NewInt(1e18), Contract: &contract},
		},
	}

	v := NewValuator(&stubPrices{
		native:    map[types.ChainID]float64{types.ChainEthereum: 3000},
		contracts: map[string]float64{"0xusdc": 1},
	})

	valued := v.ValueTransaction(tx)
	require.Len(t, valued.Transfers, 2)
	assert.Equal(t, 3000.0, valued.Transfers[0].ValueUSD)
	assert.Equal(t, 1.0, valued.Transfers[1].ValueUSD)
	assert.InDelta(t, 0.063, valued.FeeUSD, 1e-9)
}
