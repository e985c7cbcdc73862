package normalize

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

// UTXORawTransaction is the raw transaction shape Bitcoin-style providers
// return: inputs and outputs in the chain's smallest unit.
type UTXORawTransaction struct {
	Txid      string      `json:"txid"`
	BlockTime int64       `json:"blockTime"`
	Vin       []UTXOInOut `json:"vin"`
	Vout      []UTXOInOut `json:"vout"`
}

// UTXOInOut is one input or output of a UTXO transaction.
type UTXOInOut struct {
	Addresses []string `json:"addresses"`
	Value     string   `json:"value"` // smallest unit, e.g. satoshi
}

// UTXONormalizer maps Bitcoin-family raw payloads to canonical
// transactions. UTXO chains have no explicit fee concept: the fee is
// represented implicitly through unbalanced input/output transfers, so
// the canonical fee is always 0.
type UTXONormalizer struct{}

// NewUTXONormalizer creates the UTXO-family normalizer.
func NewUTXONormalizer() *UTXONormalizer {
	return &UTXONormalizer{}
}

// Ecosystem returns the UTXO ecosystem tag.
func (n *UTXONormalizer) Ecosystem() types.Ecosystem {
	return types.EcosystemUTXO
}

// Normalize converts a raw UTXO payload into canonical transactions.
// Every input becomes a native transfer with only a sender, every output
// one with only a recipient; coinbase inputs and unspendable outputs have
// no address at all.
func (n *UTXONormalizer) Normalize(raw json.RawMessage, chain types.ChainID) ([]*models.Transaction, error) {
	var rawTxs []UTXORawTransaction
	if err := json.Unmarshal(raw, &rawTxs); err != nil {
		return nil, errors.NewProviderSchemaError("utxo", err)
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

func (n *UTXONormalizer) normalizeOne(raw *UTXORawTransaction, chain types.ChainID) (*models.Transaction, error) {
	if raw.Txid == "" {
		return nil, errors.NewProviderSchemaError("utxo", fmt.Errorf("transaction missing txid"))
	}

	tx := &models.Transaction{
		Chain:          chain,
		Hash:           strings.ToLower(raw.Txid),
		BlockTimestamp: time.Unix(raw.BlockTime, 0).UTC(),
		Fee:            new(big.Int),
	}

	appendSide := func(entries []UTXOInOut, isInput bool) error {
		for _, e := range entries {
			amount, ok := parseAmount(e.Value)
			if !ok {
				return errors.NewProviderSchemaError("utxo", fmt.Errorf("transaction %s: invalid value %q", raw.Txid, e.Value))
			}
			if amount.Sign() == 0 {
				continue
			}
			transfer := &models.Transfer{
				Kind:      types.TransferNative,
				RawAmount: amount,
			}
			var addr *string
			if len(e.Addresses) > 0 {
				addr = lowerAddr(e.Addresses[0])
			}
			if isInput {
				transfer.From = addr
			} else {
				transfer.To = addr
			}
			tx.Transfers = append(tx.Transfers, transfer)
		}
		return nil
	}

	if err := appendSide(raw.Vin, true); err != nil {
		return nil, err
	}
	if err := appendSide(raw.Vout, false); err != nil {
		return nil, err
	}

	if len(tx.Transfers) == 0 {
		return nil, nil
	}
	return tx, nil
}
