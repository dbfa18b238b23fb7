package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Price is a human-readable price. Infinite marks the reciprocal of a zero price.
type Price struct {
	Value    decimal.Decimal
	Infinite bool
}

// FinitePrice wraps a decimal value.
func FinitePrice(v decimal.Decimal) Price {
	return Price{Value: v}
}

func (p Price) String() string {
	if p.Infinite {
		return "+Inf"
	}
	return p.Value.String()
}

// MarshalJSON encodes infinite prices as the string "+Inf".
func (p Price) MarshalJSON() ([]byte, error) {
	if p.Infinite {
		return []byte(`"+Inf"`), nil
	}
	return p.Value.MarshalJSON()
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON.
func (p *Price) UnmarshalJSON(data []byte) error {
	if string(data) == `"+Inf"` {
		*p = Price{Infinite: true}
		return nil
	}
	p.Infinite = false
	return p.Value.UnmarshalJSON(data)
}

// PriceTick is a tick together with both price orientations.
type PriceTick struct {
	Tick         int32           `json:"tick"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96,omitempty"`
	PriceT1PerT0 decimal.Decimal `json:"price_token1_per_token0"`
	PriceT0PerT1 Price           `json:"price_token0_per_token1"`
}

// PositionRange is the tick range and liquidity of a position.
type PositionRange struct {
	LowerTick int32    `json:"lower_tick"`
	UpperTick int32    `json:"upper_tick"`
	Liquidity *big.Int `json:"liquidity"`
}

// RangeSide classifies the current tick against a position range.
type RangeSide string

const (
	RangeInside RangeSide = "inside"
	RangeBelow  RangeSide = "below"
	RangeAbove  RangeSide = "above"
)

// PositionLocation tells where the position NFT currently lives.
type PositionLocation string

const (
	LocationNone  PositionLocation = "none"
	LocationPool  PositionLocation = "pool"
	LocationGauge PositionLocation = "gauge"
)
