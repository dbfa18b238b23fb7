package status

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/clmath"
	"vaultScope/internal/model"
)

// DefaultStableSymbols are valued at one USD.
var DefaultStableSymbols = []string{"USDC", "USDbC", "USDCE", "USDT", "DAI", "USDD", "USDP", "BUSD"}

// DefaultStableTokens are valued at one USD regardless of symbol.
var DefaultStableTokens = []common.Address{
	common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	common.HexToAddress("0x1c7d4b196cb0c7b01d743fbc6116a902379c7238"),
}

type stableSet struct {
	symbols map[string]struct{}
	tokens  map[common.Address]struct{}
	ordered []string
}

func newStableSet(symbols []string, tokens []common.Address) stableSet {
	s := stableSet{
		symbols: make(map[string]struct{}, len(symbols)),
		tokens:  make(map[common.Address]struct{}, len(tokens)),
	}
	for _, sym := range symbols {
		key := upper(sym)
		if key == "" {
			continue
		}
		if _, dup := s.symbols[key]; !dup {
			s.ordered = append(s.ordered, key)
		}
		s.symbols[key] = struct{}{}
	}
	for _, t := range tokens {
		s.tokens[t] = struct{}{}
	}
	return s
}

func (s stableSet) has(meta model.TokenMeta) bool {
	if _, ok := s.tokens[meta.Address]; ok {
		return true
	}
	_, ok := s.symbols[upper(meta.Symbol)]
	return ok
}

// IsStable reports whether meta is treated as a USD stablecoin.
func (a *Aggregator) IsStable(meta model.TokenMeta) bool {
	return a.stable.has(meta)
}

// PoolInfo reads pool metadata, both tokens and the current price.
func (a *Aggregator) PoolInfo(ctx context.Context, pool common.Address, fresh bool) (model.PoolInfo, error) {
	r := a.newRun(pool, fresh, false)
	return r.loadPool(ctx, "pool", pool)
}

// ReferencePrice returns the price of token in units of the other token of pool.
func (a *Aggregator) ReferencePrice(ctx context.Context, pool, token common.Address) (decimal.Decimal, error) {
	info, err := a.PoolInfo(ctx, pool, false)
	if err != nil {
		return decimal.Zero, err
	}
	price, _, err := priceIn(info, token)
	return price, err
}

// USDPrice prices token through pool, which must pair it with a stablecoin.
func (a *Aggregator) USDPrice(ctx context.Context, pool, token common.Address) (decimal.Decimal, error) {
	r := a.newRun(pool, false, false)
	return r.usdPrice(ctx, pool, token)
}

func (r *run) usdPrice(ctx context.Context, pool, token common.Address) (decimal.Decimal, error) {
	info, err := r.loadPool(ctx, "reference_pool", pool)
	if err != nil {
		return decimal.Zero, err
	}
	price, other, err := priceIn(info, token)
	if err != nil {
		return decimal.Zero, err
	}
	if !r.agg.stable.has(other) {
		return decimal.Zero, fmt.Errorf("pool %s does not quote %s in a stablecoin", pool.Hex(), token.Hex())
	}
	return price, nil
}

// priceIn prices token in the other token of the pool.
func priceIn(info model.PoolInfo, token common.Address) (decimal.Decimal, model.TokenMeta, error) {
	p := clmath.SqrtPriceToPrice(info.Price.SqrtPriceX96, info.Token0.Decimals, info.Token1.Decimals)
	switch token {
	case info.Token0.Address:
		return p, info.Token1, nil
	case info.Token1.Address:
		inv := clmath.Inverse(p)
		if inv.Infinite {
			return decimal.Zero, info.Token0, fmt.Errorf("pool %s has zero price", info.Meta.Address.Hex())
		}
		return inv.Value, info.Token0, nil
	default:
		return decimal.Zero, model.TokenMeta{}, fmt.Errorf("token %s is not in pool %s", token.Hex(), info.Meta.Address.Hex())
	}
}

// findSwapPool looks up a reference pool named SYMBOL_STABLE, ignoring case.
func (s stableSet) findSwapPool(pools map[string]common.Address, symbol string) (common.Address, bool) {
	if len(pools) == 0 || symbol == "" {
		return common.Address{}, false
	}
	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)

	sym := upper(symbol)
	for _, stable := range s.ordered {
		want := sym + "_" + stable
		for _, name := range names {
			if strings.EqualFold(name, want) && pools[name] != (common.Address{}) {
				return pools[name], true
			}
		}
	}
	return common.Address{}, false
}

// usdValue returns the USD value of amount of token, or nil when no
// stable anchor is available.
func (r *run) usdValue(ctx context.Context, meta model.TokenMeta, amount decimal.Decimal, pools map[string]common.Address) *decimal.Decimal {
	if r.agg.stable.has(meta) {
		return &amount
	}
	pool, ok := r.agg.stable.findSwapPool(pools, meta.Symbol)
	if !ok {
		return nil
	}
	price, err := r.usdPrice(ctx, pool, meta.Address)
	if err != nil {
		r.degrade("reward_usd", err)
		return nil
	}
	usd := amount.Mul(price)
	return &usd
}
