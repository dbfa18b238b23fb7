package clmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	tickBase = 1.0001

	// divPrecision is the number of decimal places kept by divisions.
	divPrecision = 80
)

var (
	// Q96 is 2^96, the fixed-point scale of sqrtPriceX96.
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	q192 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)

	ErrTickOutOfRange = errors.New("tick out of range")
)

// InvalidPriceError is returned for prices that cannot be mapped to a tick.
type InvalidPriceError struct {
	Price decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %s: must be positive", e.Price.String())
}

func decimalShift(dec0, dec1 uint8) int32 {
	return int32(dec0) - int32(dec1)
}

// SqrtPriceToPrice converts sqrtPriceX96 into token1 per token0 in human units.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, dec0, dec1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	ratio := decimal.NewFromBigInt(squared, 0).DivRound(q192, divPrecision)
	return ratio.Shift(decimalShift(dec0, dec1))
}

// Inverse returns 1/p, or the infinite sentinel when p is zero.
func Inverse(p decimal.Decimal) model.Price {
	if p.Sign() <= 0 {
		return model.Price{Infinite: true}
	}
	return model.FinitePrice(decimal.NewFromInt(1).DivRound(p, divPrecision))
}

// PriceFromTick returns both price orientations at a tick.
func PriceFromTick(tick int32, dec0, dec1 uint8) model.PriceTick {
	f := math.Pow(tickBase, float64(tick)) * math.Pow10(int(decimalShift(dec0, dec1)))
	fwd := decimal.Zero
	if !math.IsInf(f, 0) && !math.IsNaN(f) {
		fwd = decimal.NewFromFloat(f)
	}
	return model.PriceTick{
		Tick:         tick,
		PriceT1PerT0: fwd,
		PriceT0PerT1: Inverse(fwd),
	}
}

// PriceTickFromSqrt builds a PriceTick from slot0 values.
func PriceTickFromSqrt(sqrtPriceX96 *big.Int, tick int32, dec0, dec1 uint8) model.PriceTick {
	fwd := SqrtPriceToPrice(sqrtPriceX96, dec0, dec1)
	out := model.PriceTick{
		Tick:         tick,
		PriceT1PerT0: fwd,
		PriceT0PerT1: Inverse(fwd),
	}
	if sqrtPriceX96 != nil {
		out.SqrtPriceX96 = new(big.Int).Set(sqrtPriceX96)
	}
	return out
}

// PriceToTick returns the tick nearest to a token1-per-token0 human price.
func PriceToTick(price decimal.Decimal, dec0, dec1 uint8) (int32, error) {
	return priceToTick(price, dec0, dec1, math.Round)
}

// PriceToTickFloor returns the greatest tick whose price does not exceed price.
func PriceToTickFloor(price decimal.Decimal, dec0, dec1 uint8) (int32, error) {
	return priceToTick(price, dec0, dec1, func(x float64) float64 {
		return math.Floor(x + 1e-9)
	})
}

func priceToTick(price decimal.Decimal, dec0, dec1 uint8, round func(float64) float64) (int32, error) {
	if price.Sign() <= 0 {
		return 0, &InvalidPriceError{Price: price}
	}
	raw := price.Shift(-decimalShift(dec0, dec1)).InexactFloat64()
	if raw <= 0 || math.IsInf(raw, 0) {
		return 0, &InvalidPriceError{Price: price}
	}
	t := round(math.Log(raw) / math.Log(tickBase))
	if t < float64(MinTick) || t > float64(MaxTick) {
		return 0, fmt.Errorf("%w: %v", ErrTickOutOfRange, t)
	}
	return int32(t), nil
}

// TickToSqrtRatio returns 1.0001^(tick/2) * 2^96 truncated to an integer.
func TickToSqrtRatio(tick int32) *big.Int {
	f := new(big.Float).SetFloat64(math.Pow(tickBase, float64(tick)/2))
	f.SetMantExp(f, 96)
	out, _ := f.Int(nil)
	return out
}

// PctFromTickDelta is the percentage price move corresponding to a tick distance.
func PctFromTickDelta(delta int32) decimal.Decimal {
	if delta == 0 {
		return decimal.Zero
	}
	f := (math.Pow(tickBase, float64(delta)) - 1) * 100
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
