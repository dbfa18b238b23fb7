package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolEvent is a concentrated-liquidity pool log found in a transaction receipt.
// Amounts are raw token units; Swap amounts are signed from the pool's side.
type PoolEvent struct {
	Name         string          `json:"name"`
	Pool         common.Address  `json:"pool"`
	LogIndex     uint            `json:"log_index"`
	Owner        *common.Address `json:"owner,omitempty"`
	Recipient    *common.Address `json:"recipient,omitempty"`
	TickLower    *int32          `json:"tick_lower,omitempty"`
	TickUpper    *int32          `json:"tick_upper,omitempty"`
	Liquidity    *big.Int        `json:"liquidity,omitempty"`
	Amount0      *big.Int        `json:"amount0"`
	Amount1      *big.Int        `json:"amount1"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96,omitempty"`
	Tick         *int32          `json:"tick,omitempty"`
}
