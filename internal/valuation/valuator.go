// Package valuation converts raw integer on-chain amounts into fiat value
// and computes wallet composition percentages.
package valuation

import (
	"math"
	"math/big"
	"strings"

	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// Value converts a raw on-chain amount into fiat using the asset's decimal
// precision and unit price. The raw amount stays arbitrary precision until
// the final division so 18+ decimal chains do not lose value.
func Value(raw *big.Int, decimals int, unitPrice float64) float64 {
	if raw == nil || raw.Sign() == 0 || unitPrice == 0 {
		return 0
	}

	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	amount := new(big.Float).Quo(new(big.Float).SetInt(raw), divisor)

	value, _ := new(big.Float).Mul(amount, big.NewFloat(unitPrice)).Float64()
	return value
}

// PriceSource resolves unit prices for valuation. Prices are eventually
// consistent; a missing price values as 0 rather than failing.
type PriceSource interface {
	NativePrice(chain types.ChainID) float64
	ContractPrice(chain types.ChainID, contract string) float64
}

// Valuator values wallets, transactions and transfers against a price
// source.
type Valuator struct {
	prices PriceSource
}

// NewValuator creates a valuator over the given price source.
func NewValuator(prices PriceSource) *Valuator {
	return &Valuator{prices: prices}
}

// ValueWallet values the native balance and every coin balance, sums the
// total and assigns each balance its percentage of the wallet. NFTs value
// at 0 in the composition pass: there is no reliable floor price feed.
// When the total value is 0 every percentage is 0, never a division error.
func (v *Valuator) ValueWallet(w *models.Wallet) *models.ValuedWallet {
	valued := &models.ValuedWallet{
		Wallet:       w,
		CoinBalances: make([]*models.ValuedCoinBalance, 0, len(w.CoinBalances)),
	}

	nativePrice := v.prices.NativePrice(w.Chain)
	valued.NativeValueUSD = Value(w.NativeBalance, types.NativeDecimals(w.Chain), nativePrice)

	total := valued.NativeValueUSD
	for _, b := range w.CoinBalances {
		vb := &models.ValuedCoinBalance{WalletCoinBalance: b}
		if !b.IsNFT {
			price := v.prices.ContractPrice(w.Chain, b.Contract)
			vb.ValueUSD = Value(b.RawAmount, b.Decimals, price)
			total += vb.ValueUSD
		}
		valued.CoinBalances = append(valued.CoinBalances, vb)
	}

	valued.TotalValueUSD = total

	if total > 0 {
		valued.NativePercentage = roundPercent(valued.NativeValueUSD / total * 100)
		for _, vb := range valued.CoinBalances {
			vb.PercentageInWallet = roundPercent(vb.ValueUSD / total * 100)
		}
	}

	return valued
}

// ValueTransaction values every transfer in a transaction plus the fee,
// both in the chain's native unit unless the transfer carries a contract.
func (v *Valuator) ValueTransaction(tx *models.Transaction) *models.ValuedTransaction {
	valued := &models.ValuedTransaction{
		Transaction: tx,
		Transfers:   make([]*models.ValuedTransfer, 0, len(tx.Transfers)),
		FeeUSD:      Value(tx.Fee, types.NativeDecimals(tx.Chain), v.prices.NativePrice(tx.Chain)),
	}

	for _, tr := range tx.Transfers {
		valued.Transfers = append(valued.Transfers, v.valueTransfer(tx.Chain, tr))
	}

	return valued
}

func (v *Valuator) valueTransfer(chain types.ChainID, tr *models.Transfer) *models.ValuedTransfer {
	vt := &models.ValuedTransfer{Transfer: tr}

	switch tr.Kind {
	case types.TransferNative:
		vt.ValueUSD = Value(tr.RawAmount, types.NativeDecimals(chain), v.prices.NativePrice(chain))
	case types.TransferToken:
		if tr.Contract != nil {
			vt.ValueUSD = Value(tr.RawAmount, tokenDecimals(chain), v.prices.ContractPrice(chain, strings.ToLower(*tr.Contract)))
		}
	case types.TransferNFT:
		// No reliable floor price feed; NFTs value at 0
	}

	return vt
}

// tokenDecimals returns the default token precision on a chain when the
// coin registry has no entry. ERC-20 style chains default to 18, Solana
// SPL tokens to 9.
func tokenDecimals(chain types.ChainID) int {
	if eco, ok := types.EcosystemOf(chain); ok && eco == types.EcosystemSolana {
		return 9
	}
	return 18
}

// roundPercent rounds a percentage to two decimal places.
func roundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}
