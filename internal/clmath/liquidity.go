package clmath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// AmountsForLiquidity returns the raw token amounts held by liquidity between
// sqrtLower and sqrtUpper at sqrtCurrent. Bounds given out of order are swapped.
func AmountsForLiquidity(sqrtCurrent, sqrtLower, sqrtUpper, liquidity *big.Int) (*big.Int, *big.Int) {
	if liquidity == nil || liquidity.Sign() <= 0 || sqrtCurrent == nil || sqrtLower == nil || sqrtUpper == nil {
		return new(big.Int), new(big.Int)
	}
	a, b := sqrtLower, sqrtUpper
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	if a.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}

	switch {
	case sqrtCurrent.Cmp(a) <= 0:
		return amount0Delta(a, b, liquidity), new(big.Int)
	case sqrtCurrent.Cmp(b) < 0:
		return amount0Delta(sqrtCurrent, b, liquidity), amount1Delta(a, sqrtCurrent, liquidity)
	default:
		return new(big.Int), amount1Delta(a, b, liquidity)
	}
}

// amount0Delta is L * 2^96 * (b - a) / b / a.
func amount0Delta(a, b, liquidity *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int)
	}
	shifted := new(big.Int).Lsh(liquidity, 96)
	out := mulDiv(shifted, new(big.Int).Sub(b, a), b)
	return out.Quo(out, a)
}

// amount1Delta is L * (b - a) / 2^96.
func amount1Delta(a, b, liquidity *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int)
	}
	return mulDiv(liquidity, new(big.Int).Sub(b, a), Q96)
}

// mulDiv computes floor(x*y/d) with a 512-bit intermediate, falling back to
// big.Int when an operand does not fit in 256 bits.
func mulDiv(x, y, d *big.Int) *big.Int {
	ux, overX := uint256.FromBig(x)
	uy, overY := uint256.FromBig(y)
	ud, overD := uint256.FromBig(d)
	if !overX && !overY && !overD && !ud.IsZero() {
		z, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
		if !overflow {
			return z.ToBig()
		}
	}
	if d.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, y)
	return out.Quo(out, d)
}
