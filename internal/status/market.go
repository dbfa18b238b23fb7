package status

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

// loadMarket reads pool metadata, price, token metadata, the position id
// and cooldown state in one batch.
func (r *run) loadMarket(ctx context.Context, v *view) {
	w := v.wiring
	p := &plan{}

	if w.Pool != (common.Address{}) {
		v.pool = r.planPool(p, "pool", w.Pool, w.Token0, w.Token1)
	} else {
		r.degrade("pool", errZeroAddress)
	}

	var direct [2]*tokenLoad
	if v.pool == nil {
		for i, token := range [2]common.Address{w.Token0, w.Token1} {
			if token != (common.Address{}) {
				direct[i] = r.planTokenMeta(p, tokenField("", i), token)
			}
		}
	}

	var fromAdapter, fromVault *big.Int
	if w.Adapter != (common.Address{}) {
		p.optionalCall("position_token_id", w.Adapter, r.agg.abis.adapter, "currentTokenId", bigInto(&fromAdapter), r.vault)
	}
	p.optionalCall("position_token_id", r.vault, r.agg.abis.vault, "positionTokenId", bigInto(&fromVault))
	p.call("last_rebalance_ts", r.vault, r.agg.abis.vault, "lastRebalanceTs", uint64Into(&v.lastRebalance))
	p.call("cooldown_sec", r.vault, r.agg.abis.vault, "cooldownSec", uint64Into(&v.cooldownSec))
	r.exec(ctx, p)

	switch {
	case fromAdapter != nil:
		v.tokenID = fromAdapter
	case fromVault != nil:
		v.tokenID = fromVault
	default:
		v.tokenID = new(big.Int)
		r.degrade("position_token_id", errors.New("neither adapter nor vault reported a position id"))
	}

	if v.pool != nil {
		r.finishPool(ctx, v.pool)
		v.token0, v.token1 = v.pool.resolved[0], v.pool.resolved[1]
		v.wiring = fillTokens(v.wiring, v.pool.meta)
		return
	}
	for i, tl := range direct {
		meta := model.TokenMeta{Decimals: defaultDecimals}
		if tl != nil {
			meta = r.finishTokenMeta(tl)
		} else {
			r.degrade(tokenField("", i), errZeroAddress)
		}
		if i == 0 {
			v.token0 = meta
		} else {
			v.token1 = meta
		}
	}
}

func fillTokens(w model.VaultWiring, meta model.PoolMeta) model.VaultWiring {
	if w.Token0 == (common.Address{}) {
		w.Token0 = meta.Token0
	}
	if w.Token1 == (common.Address{}) {
		w.Token1 = meta.Token1
	}
	return w
}
