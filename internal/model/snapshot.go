package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Holdings are human-unit token amounts of a vault.
type Holdings struct {
	Idle0       decimal.Decimal `json:"idle_token0"`
	Idle1       decimal.Decimal `json:"idle_token1"`
	InPosition0 decimal.Decimal `json:"in_position_token0"`
	InPosition1 decimal.Decimal `json:"in_position_token1"`
	Total0      decimal.Decimal `json:"total_token0"`
	Total1      decimal.Decimal `json:"total_token1"`
}

// FeePreview is the simulated result of collecting all owed fees.
type FeePreview struct {
	Amount0Raw *big.Int         `json:"amount0_raw"`
	Amount1Raw *big.Int         `json:"amount1_raw"`
	Amount0    decimal.Decimal  `json:"amount0"`
	Amount1    decimal.Decimal  `json:"amount1"`
	USD        *decimal.Decimal `json:"usd,omitempty"`
}

// RewardPreview is the pending gauge reward of a staked position.
type RewardPreview struct {
	Gauge        string           `json:"gauge_kind"`
	Token        common.Address   `json:"token"`
	Symbol       string           `json:"symbol,omitempty"`
	Decimals     uint8            `json:"decimals"`
	PendingRaw   *big.Int         `json:"pending_raw"`
	Pending      decimal.Decimal  `json:"pending"`
	USD          *decimal.Decimal `json:"usd,omitempty"`
	VaultBalance decimal.Decimal  `json:"vault_balance"`
}

// Cooldown describes the rebalance cooldown of a vault.
type Cooldown struct {
	LastRebalanceTs uint64    `json:"last_rebalance_ts"`
	CooldownSec     uint64    `json:"cooldown_sec"`
	EndsAt          time.Time `json:"ends_at"`
	RemainingSec    uint64    `json:"remaining_sec"`
	Active          bool      `json:"active"`
}

// DegradedField records a sub-read that fell back to a default value.
type DegradedField struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// StepTiming is the latency of one aggregation step.
type StepTiming struct {
	Step     string        `json:"step"`
	Duration time.Duration `json:"duration_ns"`
}

// Diagnostics explains how a snapshot was assembled.
type Diagnostics struct {
	Degraded   []DegradedField `json:"degraded,omitempty"`
	RoundTrips int             `json:"round_trips"`
	Steps      []StepTiming    `json:"steps,omitempty"`
}

// StatusSnapshot is a point-in-time view of a vault position.
// PctOutside is the price move in percent needed to re-enter the range.
type StatusSnapshot struct {
	ChainID    uint64           `json:"chain_id"`
	Vault      common.Address   `json:"vault"`
	DEX        string           `json:"dex"`
	Wiring     VaultWiring      `json:"wiring"`
	Token0     TokenMeta        `json:"token0"`
	Token1     TokenMeta        `json:"token1"`
	Fee        uint32           `json:"fee"`
	Spacing    int32            `json:"tick_spacing"`
	Current    PriceTick        `json:"current"`
	Lower      *PriceTick       `json:"lower,omitempty"`
	Upper      *PriceTick       `json:"upper,omitempty"`
	TokenID    *big.Int         `json:"position_token_id"`
	Range      PositionRange    `json:"range"`
	Side       RangeSide        `json:"range_side"`
	Outside    bool             `json:"out_of_range"`
	PctOutside decimal.Decimal  `json:"pct_outside"`
	Location   PositionLocation `json:"position_location"`
	Ownership  Ownership        `json:"ownership"`
	Holdings   Holdings         `json:"holdings"`
	Fees       FeePreview       `json:"fees_uncollected"`
	Rewards    *RewardPreview   `json:"rewards,omitempty"`
	Cooldown   Cooldown         `json:"cooldown"`
	ObservedAt time.Time        `json:"observed_at"`
	Diag       *Diagnostics     `json:"diagnostics,omitempty"`

	FeesCollected    *FeePreview        `json:"fees_collected_cum,omitempty"`
	RewardsCollected []RewardsCollected `json:"rewards_collected_cum,omitempty"`
}
