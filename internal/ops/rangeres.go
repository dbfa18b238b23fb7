package ops

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/clmath"
	"vaultScope/internal/model"
)

// RangeInput selects a position range by ticks or by human prices. Prices
// are token1 per token0, except for pools whose token0 alone is a
// stablecoin, where they are read as token0 per token1.
type RangeInput struct {
	LowerTick  *int32
	UpperTick  *int32
	LowerPrice *decimal.Decimal
	UpperPrice *decimal.Decimal
	Floor      bool
}

// ResolvedRange is an aligned range with the pool it was resolved against.
type ResolvedRange struct {
	Lower   int32
	Upper   int32
	Widened bool
	Pool    model.PoolInfo
}

func (in RangeInput) validate() error {
	byTicks := in.LowerTick != nil && in.UpperTick != nil
	byPrices := in.LowerPrice != nil && in.UpperPrice != nil
	if !byTicks && !byPrices {
		return fmt.Errorf("%w: provide both ticks or both prices", ErrInvalidRange)
	}
	if !byTicks {
		if !in.LowerPrice.IsPositive() || !in.UpperPrice.IsPositive() {
			return fmt.Errorf("%w: prices must be positive", ErrInvalidRange)
		}
	}
	return nil
}

// ResolveRange converts in to ticks aligned to the pool spacing.
func (s *Service) ResolveRange(ctx context.Context, pool common.Address, in RangeInput) (ResolvedRange, error) {
	if err := in.validate(); err != nil {
		return ResolvedRange{}, err
	}
	if pool == (common.Address{}) {
		return ResolvedRange{}, fmt.Errorf("%w: pool address is required", ErrInvalidRange)
	}
	info, err := s.pools.PoolInfo(ctx, pool, false)
	if err != nil {
		return ResolvedRange{}, fmt.Errorf("load pool: %w", err)
	}
	return s.resolveWith(info, in)
}

func (s *Service) resolveWith(info model.PoolInfo, in RangeInput) (ResolvedRange, error) {
	var lower, upper int32
	if in.LowerTick != nil && in.UpperTick != nil {
		lower, upper = *in.LowerTick, *in.UpperTick
	} else {
		lp, up := *in.LowerPrice, *in.UpperPrice
		if s.pools.IsStable(info.Token0) && !s.pools.IsStable(info.Token1) {
			lp = clmath.Inverse(lp).Value
			up = clmath.Inverse(up).Value
		}
		toTick := clmath.PriceToTick
		if in.Floor {
			toTick = clmath.PriceToTickFloor
		}
		var err error
		if lower, err = toTick(lp, info.Token0.Decimals, info.Token1.Decimals); err != nil {
			return ResolvedRange{}, fmt.Errorf("%w: lower price: %v", ErrInvalidRange, err)
		}
		if upper, err = toTick(up, info.Token0.Decimals, info.Token1.Decimals); err != nil {
			return ResolvedRange{}, fmt.Errorf("%w: upper price: %v", ErrInvalidRange, err)
		}
	}
	if lower > upper {
		lower, upper = upper, lower
	}

	lo, hi, widened := clmath.AlignRange(lower, upper, info.Meta.TickSpacing)
	if widened {
		s.logger.Info("range collapsed after alignment, widened by one spacing",
			zap.Int32("lower", lo),
			zap.Int32("upper", hi),
			zap.Int32("spacing", info.Meta.TickSpacing),
		)
	}
	if lo < clmath.MinTick || hi > clmath.MaxTick {
		return ResolvedRange{}, fmt.Errorf("%w: [%d, %d] outside tick bounds", ErrInvalidRange, lo, hi)
	}
	return ResolvedRange{Lower: lo, Upper: hi, Widened: widened, Pool: info}, nil
}
