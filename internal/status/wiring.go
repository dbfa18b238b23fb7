package status

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/cache"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
)

var (
	errZeroAddress = errors.New("zero address")
	errUnavailable = errors.New("unavailable")
)

func addressInto(dst *common.Address) func([]interface{}) error {
	return func(values []interface{}) error {
		addr, err := dex.AsAddress(values[0])
		if err != nil {
			return err
		}
		*dst = addr
		return nil
	}
}

func bigInto(dst **big.Int) func([]interface{}) error {
	return func(values []interface{}) error {
		v, err := dex.AsBigInt(values[0])
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func uint64Into(dst *uint64) func([]interface{}) error {
	return func(values []interface{}) error {
		v, err := dex.AsUint64(values[0])
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func pairInto(dst0, dst1 *common.Address) func([]interface{}) error {
	return func(values []interface{}) error {
		if len(values) < 2 {
			return errors.New("tokens: expected two addresses")
		}
		a0, err := dex.AsAddress(values[0])
		if err != nil {
			return err
		}
		a1, err := dex.AsAddress(values[1])
		if err != nil {
			return err
		}
		*dst0, *dst1 = a0, a1
		return nil
	}
}

// loadWiring resolves the vault wiring from the hint, the cache and at
// most two batches: vault views, then adapter views. Wiring is cached per
// DEX profile since the gauge is only read for profiles that stake.
func (r *run) loadWiring(ctx context.Context, v *view, hint *model.VaultHint) {
	key := cache.Key(r.agg.cfg.ChainID, r.vault, v.profile.Name)
	if w, ok := r.agg.tiers.VaultWiring.Lookup(key, r.fresh); ok {
		v.wiring = w
		return
	}

	w := hint.Merge(model.VaultWiring{})
	vaultABI := r.agg.abis.vault

	p := &plan{}
	for _, f := range []struct {
		field  string
		method string
		dst    *common.Address
	}{
		{"owner", "owner", &w.Owner},
		{"executor", "executor", &w.Executor},
		{"adapter", "adapter", &w.Adapter},
		{"dex_router", "dexRouter", &w.DexRouter},
		{"fee_collector", "feeCollector", &w.FeeCollector},
	} {
		if *f.dst != (common.Address{}) {
			continue
		}
		p.call(f.field, r.vault, vaultABI, f.method, addressInto(f.dst))
	}
	if w.StrategyID == nil {
		p.call("strategy_id", r.vault, vaultABI, "strategyId", bigInto(&w.StrategyID))
	}
	if w.Token0 == (common.Address{}) || w.Token1 == (common.Address{}) {
		p.optionalCall("vault_tokens", r.vault, vaultABI, "tokens", pairInto(&w.Token0, &w.Token1))
	}
	r.exec(ctx, p)

	if w.Adapter == (common.Address{}) {
		r.degrade("adapter", errZeroAddress)
		v.wiring = w
		return
	}

	adapterABI := r.agg.abis.adapter
	p = &plan{}
	if w.Pool == (common.Address{}) {
		p.call("pool", w.Adapter, adapterABI, "pool", addressInto(&w.Pool))
	}
	if w.NFPM == (common.Address{}) {
		p.call("nfpm", w.Adapter, adapterABI, "nfpm", addressInto(&w.NFPM))
	}
	if w.Gauge == (common.Address{}) && v.profile.Gauge != dex.GaugeNone {
		p.call("gauge", w.Adapter, adapterABI, "gauge", addressInto(&w.Gauge))
	}
	if w.Token0 == (common.Address{}) || w.Token1 == (common.Address{}) {
		p.call("tokens", w.Adapter, adapterABI, "tokens", pairInto(&w.Token0, &w.Token1))
	}
	r.exec(ctx, p)

	v.wiring = w
	if w.Pool != (common.Address{}) {
		r.agg.tiers.VaultWiring.Set(key, w)
	}
}
