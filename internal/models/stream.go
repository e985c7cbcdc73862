package models

import (
	"time"

	"github.com/wallet-sync/internal/types"
)

// Stream represents a live webhook subscription to address-matching
// on-chain events. Streams are created and deleted administratively and
// have a lifecycle independent of wallets.
type Stream struct {
	ID         string        `json:"id"`
	WebhookURL string        `json:"webhookUrl"`
	Tag        string        `json:"tag"`
	Chain      types.ChainID `json:"chain"`
	Addresses  []string      `json:"addresses"`
	CreatedAt  time.Time     `json:"createdAt"`
}
