package normalize

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// SolanaRawTransaction is the enriched transaction shape Solana providers
// return: lamport movements plus decoded SPL token movements.
type SolanaRawTransaction struct {
	Signature       string                 `json:"signature"`
	BlockTime       int64                  `json:"blockTime"`
	Fee             uint64                 `json:"fee"` // lamports
	Description     string                 `json:"description,omitempty"`
	NativeTransfers []SolanaNativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []SolanaTokenTransfer  `json:"tokenTransfers"`
}

// SolanaNativeTransfer is one lamport movement.
type SolanaNativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          uint64 `json:"amount"`
}

// SolanaTokenTransfer is one SPL token movement. TokenID is set by the
// provider for NFT mints that expose a numeric edition id.
type SolanaTokenTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Mint            string `json:"mint"`
	Amount          string `json:"tokenAmount"`
	TokenID         string `json:"tokenId,omitempty"`
	IsSpam          bool   `json:"isSpam,omitempty"`
}

// SolanaNormalizer maps Solana-family raw payloads to canonical
// transactions.
type SolanaNormalizer struct{}

// NewSolanaNormalizer creates the Solana-family normalizer.
func NewSolanaNormalizer() *SolanaNormalizer {
	return &SolanaNormalizer{}
}

// Ecosystem returns the Solana ecosystem tag.
func (n *SolanaNormalizer) Ecosystem() types.Ecosystem {
	return types.EcosystemSolana
}

// Normalize converts a raw Solana payload into canonical transactions.
func (n *SolanaNormalizer) Normalize(raw json.RawMessage, chain types.ChainID) ([]*models.Transaction, error) {
	var rawTxs []SolanaRawTransaction
	if err := json.Unmarshal(raw, &rawTxs); err != nil {
		return nil, errors.NewProviderSchemaError("solana", err)
	}

	result := make([]*models.Transaction, 0, len(rawTxs))
	for i := range rawTxs {
		tx, err := n.normalizeOne(&rawTxs[i], chain)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (n *SolanaNormalizer) normalizeOne(raw *SolanaRawTransaction, chain types.ChainID) (*models.Transaction, error) {
	if raw.Signature == "" {
		return nil, errors.NewProviderSchemaError("solana", fmt.Errorf("transaction missing signature"))
	}

	tx := &models.Transaction{
		Chain:          chain,
		Hash:           raw.Signature,
		BlockTimestamp: time.Unix(raw.BlockTime, 0).UTC(),
		Fee:            new(big.Int).SetUint64(raw.Fee),
	}
	if raw.Description != "" {
		summary := raw.Description
		tx.Summary = &summary
	}

	for _, nt := range raw.NativeTransfers {
		if nt.Amount == 0 {
			continue
		}
		tx.Transfers = append(tx.Transfers, &models.Transfer{
			Kind:      types.TransferNative,
			From:      lowerAddr(nt.FromUserAccount),
			To:        lowerAddr(nt.ToUserAccount),
			RawAmount: new(big.Int).SetUint64(nt.Amount),
		})
	}

	for _, tt := range raw.TokenTransfers {
		if tt.IsSpam {
			continue
		}
		amount, ok := parseAmount(tt.Amount)
		if !ok {
			return nil, errors.NewProviderSchemaError("solana", fmt.Errorf("transaction %s: invalid token amount %q", raw.Signature, tt.Amount))
		}

		transfer := &models.Transfer{
			From:      lowerAddr(tt.FromUserAccount),
			To:        lowerAddr(tt.ToUserAccount),
			RawAmount: amount,
			Contract:  lowerAddr(tt.Mint),
		}

		if tt.TokenID != "" {
			id, reliable := classifyTokenID(tt.TokenID)
			if !reliable {
				continue
			}
			transfer.Kind = types.TransferNFT
			transfer.TokenID = &id
		} else {
			transfer.Kind = types.TransferToken
		}

		tx.Transfers = append(tx.Transfers, transfer)
	}

	if len(tx.Transfers) == 0 {
		return nil, nil
	}
	return tx, nil
}
