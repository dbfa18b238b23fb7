package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// CollectedKind names one running total kept per vault.
type CollectedKind string

const (
	CollectedFee0   CollectedKind = "fee0"
	CollectedFee1   CollectedKind = "fee1"
	CollectedReward CollectedKind = "reward"
)

// CollectedAmount is a running total of value taken out of a vault
// position. Ref is the pool for fee totals and the received token for
// reward totals.
type CollectedAmount struct {
	Kind     CollectedKind  `json:"kind"`
	Ref      common.Address `json:"ref"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals uint8          `json:"decimals"`
	Raw      *big.Int       `json:"raw"`
}

// RewardsCollected is the cumulative output of reward swaps into one token.
type RewardsCollected struct {
	Token  common.Address   `json:"token"`
	Symbol string           `json:"symbol,omitempty"`
	Raw    *big.Int         `json:"raw"`
	Amount decimal.Decimal  `json:"amount"`
	USD    *decimal.Decimal `json:"usd,omitempty"`
}
