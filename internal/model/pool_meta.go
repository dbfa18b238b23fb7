package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolMeta captures immutable pool metadata.
type PoolMeta struct {
	Address     common.Address `json:"address"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tick_spacing"`
}

// PoolPrice is the live slot0 view of a pool.
type PoolPrice struct {
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	Tick         int32    `json:"tick"`
}

// PoolInfo joins pool metadata with both tokens and the current price.
type PoolInfo struct {
	Meta   PoolMeta  `json:"meta"`
	Token0 TokenMeta `json:"token0"`
	Token1 TokenMeta `json:"token1"`
	Price  PoolPrice `json:"price"`
}
