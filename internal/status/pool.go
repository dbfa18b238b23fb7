package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/cache"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

// defaultDecimals is assumed when a token does not answer decimals().
const defaultDecimals = 18

type tokenLoad struct {
	field      string
	meta       model.TokenMeta
	results    []rpcbatch.Result
	decimalsOK bool
	cached     bool
}

// planTokenMeta adds the metadata reads of token to p unless cached.
// Both symbol reads are optional; only decimals count as degraded.
func (r *run) planTokenMeta(p *plan, field string, token common.Address) *tokenLoad {
	tl := &tokenLoad{field: field, meta: model.TokenMeta{Address: token}}
	if meta, ok := r.agg.tiers.TokenMeta.Lookup(cache.Key(r.agg.cfg.ChainID, token), r.fresh); ok {
		tl.meta, tl.decimalsOK, tl.cached = meta, true, true
		return tl
	}
	calls, err := dex.TokenMetaCalls(token)
	if err != nil {
		p.fail(field+"_decimals", err)
		return tl
	}
	tl.results = p.collect(field, calls, func(label string) bool { return label != "decimals" })
	return tl
}

// finishTokenMeta parses the loaded metadata, falling back to
// defaultDecimals. Metadata without a symbol is not cached so a later
// query can still resolve it.
func (r *run) finishTokenMeta(tl *tokenLoad) model.TokenMeta {
	if tl.cached || tl.decimalsOK {
		return tl.meta
	}
	if tl.results == nil {
		tl.meta.Decimals = defaultDecimals
		return tl.meta
	}
	meta, err := dex.ParseTokenMeta(tl.meta.Address, tl.results)
	if err != nil {
		tl.meta.Decimals = defaultDecimals
		return tl.meta
	}
	tl.meta, tl.decimalsOK = meta, true
	if meta.Symbol == "" {
		r.degradeReason(tl.field+"_symbol", "symbol unavailable")
		return meta
	}
	r.agg.tiers.TokenMeta.Set(cache.Key(r.agg.cfg.ChainID, meta.Address), meta)
	return meta
}

// poolLoad tracks the metadata, price and token reads of one pool.
type poolLoad struct {
	field       string
	address     common.Address
	meta        model.PoolMeta
	metaOK      bool
	metaResults []rpcbatch.Result
	price       model.PoolPrice
	priceOK     bool
	tokens      [2]*tokenLoad
	resolved    [2]model.TokenMeta
}

// partialTokens keeps whichever token addresses answered when the pool
// metadata as a whole is unavailable.
func (pl *poolLoad) partialTokens() {
	for i, dst := range []*common.Address{&pl.meta.Token0, &pl.meta.Token1} {
		if i >= len(pl.metaResults) || !pl.metaResults[i].OK() {
			continue
		}
		if addr, err := dex.AsAddress(pl.metaResults[i].Values[0]); err == nil {
			*dst = addr
		}
	}
}

func (pl *poolLoad) info() model.PoolInfo {
	return model.PoolInfo{Meta: pl.meta, Token0: pl.resolved[0], Token1: pl.resolved[1], Price: pl.price}
}

// planPool adds pool metadata and slot0 reads to p. Known token
// addresses let token metadata ride in the same batch.
func (r *run) planPool(p *plan, field string, pool, token0, token1 common.Address) *poolLoad {
	pl := &poolLoad{field: field, address: pool, meta: model.PoolMeta{Address: pool}}
	chainID := r.agg.cfg.ChainID

	if meta, ok := r.agg.tiers.PoolMeta.Lookup(cache.Key(chainID, pool), r.fresh); ok {
		pl.meta, pl.metaOK = meta, true
		token0, token1 = meta.Token0, meta.Token1
	} else if calls, err := dex.PoolMetaCalls(pool); err != nil {
		p.fail(field+"_meta", err)
	} else {
		pl.metaResults = p.collect(field, calls, nil)
	}
	pl.meta.Token0, pl.meta.Token1 = token0, token1

	priceKey := cache.Key(chainID, pool, "slot0")
	if price, ok := r.agg.tiers.PoolPrice.Lookup(priceKey, r.fresh); ok {
		pl.price, pl.priceOK = price, true
	} else if call, err := dex.Slot0Call(pool); err != nil {
		p.fail(field+"_price", err)
	} else {
		p.addCall(field+"_price", false, call, func(values []interface{}) error {
			price, err := dex.ParseSlot0(values)
			if err != nil {
				return err
			}
			pl.price, pl.priceOK = price, true
			r.agg.tiers.PoolPrice.Set(priceKey, price)
			return nil
		})
	}

	for i, token := range [2]common.Address{token0, token1} {
		if token != (common.Address{}) {
			pl.tokens[i] = r.planTokenMeta(p, tokenField(field, i), token)
		}
	}
	return pl
}

// finishPool completes a planned pool read after its batch ran, issuing
// one follow-up batch for token metadata that could not be planned ahead.
func (r *run) finishPool(ctx context.Context, pl *poolLoad) {
	if !pl.metaOK && pl.metaResults != nil {
		if meta, err := dex.ParsePoolMeta(pl.address, pl.metaResults); err == nil {
			pl.meta, pl.metaOK = meta, true
			r.agg.tiers.PoolMeta.Set(cache.Key(r.agg.cfg.ChainID, pl.address), meta)
		} else {
			pl.partialTokens()
		}
	}

	addrs := [2]common.Address{pl.meta.Token0, pl.meta.Token1}
	p := &plan{}
	for i, addr := range addrs {
		if addr == (common.Address{}) {
			continue
		}
		if pl.tokens[i] == nil || pl.tokens[i].meta.Address != addr {
			pl.tokens[i] = r.planTokenMeta(p, tokenField(pl.field, i), addr)
		}
	}
	r.exec(ctx, p)

	for i, tl := range pl.tokens {
		if tl == nil {
			pl.resolved[i] = model.TokenMeta{Address: addrs[i], Decimals: defaultDecimals}
			continue
		}
		pl.resolved[i] = r.finishTokenMeta(tl)
	}
}

func tokenField(prefix string, i int) string {
	name := fmt.Sprintf("token%d", i)
	if prefix == "" || prefix == "pool" {
		return name
	}
	return prefix + "_" + name
}

// loadPool reads a pool together with its tokens.
func (r *run) loadPool(ctx context.Context, field string, pool common.Address) (model.PoolInfo, error) {
	p := &plan{}
	pl := r.planPool(p, field, pool, common.Address{}, common.Address{})
	r.exec(ctx, p)
	r.finishPool(ctx, pl)

	switch {
	case !pl.metaOK:
		return pl.info(), fmt.Errorf("pool %s: metadata unavailable", pool.Hex())
	case !pl.priceOK:
		return pl.info(), fmt.Errorf("pool %s: price unavailable", pool.Hex())
	}
	for i, tl := range pl.tokens {
		if tl == nil || !tl.decimalsOK {
			return pl.info(), fmt.Errorf("pool %s: token%d metadata unavailable", pool.Hex(), i)
		}
	}
	return pl.info(), nil
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
