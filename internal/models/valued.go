package models

// ValuedTransfer enriches a transfer with its fiat value.
type ValuedTransfer struct {
	*Transfer
	ValueUSD float64 `json:"valueUsd"`
}

// ValuedTransaction enriches a transaction with per-transfer fiat values.
type ValuedTransaction struct {
	*Transaction
	Transfers []*ValuedTransfer `json:"transfers"`
	FeeUSD    float64           `json:"feeUsd"`
}

// ValuedCoinBalance enriches a wallet coin balance with fiat value and the
// share of the wallet's total value it represents.
type ValuedCoinBalance struct {
	*WalletCoinBalance
	ValueUSD           float64 `json:"valueUsd"`
	PercentageInWallet float64 `json:"percentageInWallet"`
}

// ValuedWallet is a wallet with all balances valued. The native share plus
// coin shares sum to at most 100 within rounding tolerance, or are all 0
// when the total value is 0.
type ValuedWallet struct {
	*Wallet
	NativeValueUSD   float64              `json:"nativeValueUsd"`
	NativePercentage float64              `json:"nativePercentage"`
	CoinBalances     []*ValuedCoinBalance `json:"coinBalances"`
	TotalValueUSD    float64              `json:"totalValueUsd"`
}

// ValuedWalletWithTransactions is the query-surface view of a wallet with a
// page of its valued transactions.
type ValuedWalletWithTransactions struct {
	*ValuedWallet
	Transactions []*ValuedTransaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"pageSize"`
	TotalCount   uint64               `json:"totalCount"`
}
