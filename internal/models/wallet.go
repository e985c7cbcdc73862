package models

import (
	"math/big"
	"strings"
	"time"

	"github.com/wallet-sync/internal/types"
)

// Wallet represents a tracked wallet on a single chain.
// Identity is (address, chain), case-insensitive on address; the address is
// stored lower-cased so matching stays chain-agnostic at the string level.
type Wallet struct {
	Address         string               `json:"address"`
	Chain           types.ChainID        `json:"chain"`
	Alias           *string              `json:"alias,omitempty"`
	NativeBalance   *big.Int             `json:"nativeBalance"`
	CoinBalances    []*WalletCoinBalance `json:"coinBalances"`
	FirstActivityAt *time.Time           `json:"firstActivityAt,omitempty"`
	BackfillStatus  types.BackfillStatus `json:"backfillStatus"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// NewWallet creates a wallet in the pending state with a zero native balance.
func NewWallet(address string, chain types.ChainID) *Wallet {
	return &Wallet{
		Address:        strings.ToLower(address),
		Chain:          chain,
		NativeBalance:  new(big.Int),
		BackfillStatus: types.BackfillPending,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Key returns the wallet's identity key.
func (w *Wallet) Key() string {
	return strings.ToLower(w.Address) + ":" + string(w.Chain)
}

// FindCoinBalance returns the balance entry for a contract address, or nil.
func (w *Wallet) FindCoinBalance(contract string) *WalletCoinBalance {
	contract = strings.ToLower(contract)
	for _, b := range w.CoinBalances {
		if strings.ToLower(b.Contract) == contract {
			return b
		}
	}
	return nil
}

// WalletCoinBalance represents one coin or NFT balance held by a wallet.
// It is owned exclusively by its wallet.
type WalletCoinBalance struct {
	Contract  string   `json:"contract"`
	CoinID    *string  `json:"coinId,omitempty"`
	RawAmount *big.Int `json:"rawAmount"`
	Decimals  int      `json:"decimals"`
	Symbol    string   `json:"symbol,omitempty"`
	TokenID   *string  `json:"tokenId,omitempty"` // set for NFTs only
	IsNFT     bool     `json:"isNft"`
}
