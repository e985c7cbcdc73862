// Package types provides common type definitions for the wallet sync system.
package types

// Ecosystem represents a family of blockchains sharing a data/API shape.
type Ecosystem string

const (
	// EcosystemEVM represents Ethereum-compatible chains
	EcosystemEVM Ecosystem = "evm"
	// EcosystemUTXO represents Bitcoin-style UTXO chains
	EcosystemUTXO Ecosystem = "utxo"
	// EcosystemSolana represents Solana-family chains
	EcosystemSolana Ecosystem = "solana"
)

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = "polygon"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = "arbitrum"
	// ChainBase represents the Base network
	ChainBase ChainID = "base"
	// ChainBitcoin represents Bitcoin mainnet
	ChainBitcoin ChainID = "bitcoin"
	// ChainSolana represents Solana mainnet
	ChainSolana ChainID = "solana"
)

// chainEcosystems maps each supported chain to its ecosystem.
// Dispatch happens through this table, never through runtime type inspection.
var chainEcosystems = map[ChainID]Ecosystem{
	ChainEthereum: EcosystemEVM,
	ChainPolygon:  EcosystemEVM,
	ChainArbitrum: EcosystemEVM,
	ChainBase:     EcosystemEVM,
	ChainBitcoin:  EcosystemUTXO,
	ChainSolana:   EcosystemSolana,
}

// chainDecimals holds the native-unit decimal precision per chain.
var chainDecimals = map[ChainID]int{
	ChainEthereum: 18,
	ChainPolygon:  18,
	ChainArbitrum: 18,
	ChainBase:     18,
	ChainBitcoin:  8,
	ChainSolana:   9,
}

// EcosystemOf returns the ecosystem for a chain, or false if the chain is unknown.
func EcosystemOf(chain ChainID) (Ecosystem, bool) {
	eco, ok := chainEcosystems[chain]
	return eco, ok
}

// NativeDecimals returns the native-unit decimal precision for a chain.
// Unknown chains default to 18.
func NativeDecimals(chain ChainID) int {
	if d, ok := chainDecimals[chain]; ok {
		return d
	}
	return 18
}

// IsSupportedChain reports whether the chain is known to the system.
func IsSupportedChain(chain ChainID) bool {
	_, ok := chainEcosystems[chain]
	return ok
}

// SupportedChains returns all chains known to the system.
func SupportedChains() []ChainID {
	chains := make([]ChainID, 0, len(chainEcosystems))
	for c := range chainEcosystems {
		chains = append(chains, c)
	}
	return chains
}

// BackfillStatus represents the sync state of a wallet
type BackfillStatus string

const (
	// BackfillPending represents a wallet waiting for its first backfill run
	BackfillPending BackfillStatus = "pending"
	// BackfillActive represents a wallet whose backfill is currently running
	BackfillActive BackfillStatus = "active"
	// BackfillComplete represents a wallet whose full history has been retrieved
	BackfillComplete BackfillStatus = "complete"
)

// TransferKind classifies a single value movement inside a transaction
type TransferKind string

const (
	// TransferNative represents a native-unit movement (ETH, BTC, SOL)
	TransferNative TransferKind = "native"
	// TransferToken represents a fungible contract-token movement
	TransferToken TransferKind = "token"
	// TransferNFT represents a non-fungible token movement
	TransferNFT TransferKind = "nft"
)

// ChunkStatus represents the lifecycle of one backfill work unit
type ChunkStatus string

const (
	// ChunkQueued represents a chunk waiting for a worker
	ChunkQueued ChunkStatus = "queued"
	// ChunkRunning represents a chunk leased by a worker
	ChunkRunning ChunkStatus = "running"
	// ChunkDone represents a successfully completed chunk
	ChunkDone ChunkStatus = "done"
	// ChunkFailed represents a chunk that exhausted its retry budget
	ChunkFailed ChunkStatus = "failed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
