package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VaultWiring is the static configuration of a vault and its adapter.
type VaultWiring struct {
	Owner        common.Address `json:"owner"`
	Executor     common.Address `json:"executor"`
	Adapter      common.Address `json:"adapter"`
	DexRouter    common.Address `json:"dex_router"`
	FeeCollector common.Address `json:"fee_collector"`
	StrategyID   *big.Int       `json:"strategy_id"`
	Pool         common.Address `json:"pool"`
	NFPM         common.Address `json:"nfpm"`
	Gauge        common.Address `json:"gauge"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
}

// VaultHint is wiring already known from an external registry.
// Zero addresses and a nil StrategyID mean "unknown".
type VaultHint struct {
	ChainID uint64         `json:"chain_id"`
	Vault   common.Address `json:"vault"`
	DEX     string         `json:"dex,omitempty"`
	VaultWiring
}

// Merge fills the zero fields of w from the hint.
func (h *VaultHint) Merge(w VaultWiring) VaultWiring {
	if h == nil {
		return w
	}
	pick := func(dst *common.Address, src common.Address) {
		if *dst == (common.Address{}) && src != (common.Address{}) {
			*dst = src
		}
	}
	pick(&w.Owner, h.Owner)
	pick(&w.Executor, h.Executor)
	pick(&w.Adapter, h.Adapter)
	pick(&w.DexRouter, h.DexRouter)
	pick(&w.FeeCollector, h.FeeCollector)
	pick(&w.Pool, h.Pool)
	pick(&w.NFPM, h.NFPM)
	pick(&w.Gauge, h.Gauge)
	pick(&w.Token0, h.Token0)
	pick(&w.Token1, h.Token1)
	if w.StrategyID == nil && h.StrategyID != nil {
		w.StrategyID = new(big.Int).Set(h.StrategyID)
	}
	return w
}

// Ownership is the owner of a position NFT and whether that owner is the gauge.
type Ownership struct {
	Owner  common.Address `json:"owner"`
	Staked bool           `json:"staked"`
}
