package clmath

import "vaultScope/internal/model"

// AlignFloor rounds tick down to a multiple of spacing.
func AlignFloor(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// AlignCeil rounds tick up to a multiple of spacing.
func AlignCeil(tick, spacing int32) int32 {
	floor := AlignFloor(tick, spacing)
	if floor == tick || spacing <= 0 {
		return floor
	}
	return floor + spacing
}

// AlignRange aligns lower down and upper up. When both land on the same tick
// the range is widened by one spacing on each side and widened is true.
func AlignRange(lower, upper, spacing int32) (int32, int32, bool) {
	lo := AlignFloor(lower, spacing)
	hi := AlignCeil(upper, spacing)
	if lo == hi && spacing > 0 {
		return lo - spacing, hi + spacing, true
	}
	return lo, hi, false
}

// Side classifies tick against [lower, upper).
func Side(tick, lower, upper int32) model.RangeSide {
	switch {
	case tick < lower:
		return model.RangeBelow
	case tick >= upper:
		return model.RangeAbove
	default:
		return model.RangeInside
	}
}
