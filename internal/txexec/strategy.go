package txexec

import (
	"fmt"
	"strings"
)

// GasStrategy pads a raw gas estimate.
type GasStrategy string

const (
	StrategyDefault    GasStrategy = "default"
	StrategyBuffered   GasStrategy = "buffered"
	StrategyAggressive GasStrategy = "aggressive"
)

const (
	fallbackCallGas   uint64 = 300_000
	fallbackDeployGas uint64 = 500_000
)

func ParseGasStrategy(name string) (GasStrategy, error) {
	switch s := GasStrategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return StrategyDefault, nil
	case StrategyDefault, StrategyBuffered, StrategyAggressive:
		return s, nil
	default:
		return "", fmt.Errorf("unknown gas strategy %q", name)
	}
}

// Apply returns the gas limit for a raw estimate.
func (s GasStrategy) Apply(raw uint64) uint64 {
	switch s {
	case StrategyBuffered:
		return raw*5/4 + 10_000
	case StrategyAggressive:
		return raw*3/2 + 25_000
	default:
		return raw
	}
}
