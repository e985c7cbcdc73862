package valuation

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// Property: for any wallet, the native percentage plus all coin
// percentages sums to ~100 within rounding tolerance, or every entry is 0
// when the total value is 0.
func TestWalletPercentagesSumToHundred(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("percentages sum to 100 or are all zero", prop.ForAll(
		func(nativeUnits int64, tokenUnits []int64) bool {
			w := &models.Wallet{
				Address:       "0xabc",
				Chain:         types.ChainEthereum,
				NativeBalance: new(big.Int).Mul(big.NewInt(nativeUnits), big.NewInt(1e18)),
			}
			contracts := map[string]float64{}
			for i, units := range tokenUnits {
				contract := string(rune('a' + i%26))
				w.CoinBalances = append(w.CoinBalances, &models.WalletCoinBalance{
					Contract:  contract,
					RawAmount: new(big.Int).Mul(big.NewInt(units), big.NewInt(1e18)),
					Decimals:  18,
				})
				contracts[contract] = 2
			}

			v := NewValuator(&stubPrices{
				native:    map[types.ChainID]float64{types.ChainEthereum: 3000},
				contracts: contracts,
			})
			valued := v.ValueWallet(w)

			sum := valued.NativePercentage
			for _, b := range valued.CoinBalances {
				if b.PercentageInWallet < 0 {
					return false
				}
				sum += b.PercentageInWallet
			}

			if valued.TotalValueUSD == 0 {
				return sum == 0
			}
			// Each entry rounds to 2 decimals, so allow half a cent per entry
			tolerance := 0.005 * float64(len(valued.CoinBalances)+1)
			return sum > 100-tolerance-0.01 && sum < 100+tolerance+0.01
		},
		gen.Int64Range(0, 1_000_000),
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
	))

	properties.TestingRun(t)
}
