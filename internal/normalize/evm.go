package normalize

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// EVMRawTransaction is the raw transaction shape EVM providers return:
// one envelope per transaction carrying gas accounting plus the asset
// movements decoded from traces and logs.
type EVMRawTransaction struct {
	Hash           string           `json:"hash"`
	BlockTimestamp int64            `json:"blockTimestamp"`
	GasUsed        string           `json:"gasUsed"`
	GasPrice       string           `json:"gasPrice"`
	Summary        string           `json:"summary,omitempty"`
	Transfers      []EVMRawTransfer `json:"transfers"`
}

// EVMRawTransfer is one decoded asset movement. ContractAddress empty
// means a native-unit movement; TokenID set means an NFT movement.
type EVMRawTransfer struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"` // raw integer, base units
	ContractAddress string `json:"contractAddress,omitempty"`
	TokenID         string `json:"tokenId,omitempty"`
	IsSpam          bool   `json:"isSpam,omitempty"`
}

// EVMNormalizer maps EVM-family raw payloads to canonical transactions.
type EVMNormalizer struct{}

// NewEVMNormalizer creates the EVM-family normalizer.
func NewEVMNormalizer() *EVMNormalizer {
	return &EVMNormalizer{}
}

// Ecosystem returns the EVM ecosystem tag.
func (n *EVMNormalizer) Ecosystem() types.Ecosystem {
	return types.EcosystemEVM
}

// Normalize converts a raw EVM payload into canonical transactions.
// Spam transfers are excluded, addresses are lower-cased, the fee is
// gasUsed times gasPrice, and transactions left with no transfers after
// filtering are dropped.
func (n *EVMNormalizer) Normalize(raw json.RawMessage, chain types.ChainID) ([]*models.Transaction, error) {
	var rawTxs []EVMRawTransaction
	if err := json.Unmarshal(raw, &rawTxs); err != nil {
		return nil, errors.NewProviderSchemaError("evm", err)
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

func (n *EVMNormalizer) normalizeOne(raw *EVMRawTransaction, chain types.ChainID) (*models.Transaction, error) {
	if raw.Hash == "" {
		return nil, errors.NewProviderSchemaError("evm", fmt.Errorf("transaction missing hash"))
	}

	fee, err := evmFee(raw.GasUsed, raw.GasPrice)
	if err != nil {
		return nil, errors.NewProviderSchemaError("evm", fmt.Errorf("transaction %s: %w", raw.Hash, err))
	}

	tx := &models.Transaction{
		Chain:          chain,
		Hash:           strings.ToLower(raw.Hash),
		BlockTimestamp: time.Unix(raw.BlockTimestamp, 0).UTC(),
		Fee:            fee,
	}
	if raw.Summary != "" {
		summary := raw.Summary
		tx.Summary = &summary
	}

	for i := range raw.Transfers {
		transfer, keep, err := n.normalizeTransfer(&raw.Transfers[i])
		if err != nil {
			return nil, errors.NewProviderSchemaError("evm", fmt.Errorf("transaction %s: %w", raw.Hash, err))
		}
		if keep {
			tx.Transfers = append(tx.Transfers, transfer)
		}
	}

	// A transaction with no surviving transfers carries no information
	if len(tx.Transfers) == 0 {
		return nil, nil
	}
	return tx, nil
}

func (n *EVMNormalizer) normalizeTransfer(raw *EVMRawTransfer) (*models.Transfer, bool, error) {
	if raw.IsSpam {
		return nil, false, nil
	}
	if raw.From != "" && !common.IsHexAddress(raw.From) {
		return nil, false, fmt.Errorf("invalid from address %q", raw.From)
	}
	if raw.To != "" && !common.IsHexAddress(raw.To) {
		return nil, false, fmt.Errorf("invalid to address %q", raw.To)
	}

	amount, ok := parseAmount(raw.Value)
	if !ok {
		return nil, false, fmt.Errorf("invalid transfer value %q", raw.Value)
	}

	transfer := &models.Transfer{
		From:      lowerAddr(raw.From),
		To:        lowerAddr(raw.To),
		RawAmount: amount,
	}

	switch {
	case raw.ContractAddress == "":
		// Only non-zero native movements are meaningful
		if amount.Sign() == 0 {
			return nil, false, nil
		}
		transfer.Kind = types.TransferNative

	case raw.TokenID != "":
		id, reliable := classifyTokenID(raw.TokenID)
		if !reliable {
			return nil, false, nil
		}
		transfer.Kind = types.TransferNFT
		transfer.Contract = lowerAddr(raw.ContractAddress)
		transfer.TokenID = &id

	default:
		transfer.Kind = types.TransferToken
		transfer.Contract = lowerAddr(raw.ContractAddress)
	}

	return transfer, true, nil
}

// evmFee computes gasUsed * gasPrice in the chain's smallest native unit.
func evmFee(gasUsed, gasPrice string) (*big.Int, error) {
	used, ok := parseAmount(gasUsed)
	if !ok {
		return nil, fmt.Errorf("invalid gasUsed %q", gasUsed)
	}
	price, ok := parseAmount(gasPrice)
	if !ok {
		return nil, fmt.Errorf("invalid gasPrice %q", gasPrice)
	}
	return new(big.Int).Mul(used, price), nil
}
