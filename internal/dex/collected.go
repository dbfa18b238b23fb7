package dex

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

// CollectedFees returns the fee income carried by decoded receipt events,
// one fee0 and one fee1 total per pool. A pool Collect pays out burned
// principal together with fees, so Burn amounts of the same pool are
// subtracted and a negative remainder counts as zero.
func CollectedFees(events []model.PoolEvent) []model.CollectedAmount {
	type totals struct{ amount0, amount1 *big.Int }
	byPool := make(map[common.Address]*totals)
	var order []common.Address
	get := func(pool common.Address) *totals {
		t, ok := byPool[pool]
		if !ok {
			t = &totals{amount0: new(big.Int), amount1: new(big.Int)}
			byPool[pool] = t
			order = append(order, pool)
		}
		return t
	}

	collected := make(map[common.Address]bool)
	for _, ev := range events {
		switch ev.Name {
		case "Collect":
			t := get(ev.Pool)
			addAmount(t.amount0, ev.Amount0, 1)
			addAmount(t.amount1, ev.Amount1, 1)
			collected[ev.Pool] = true
		case "Burn":
			t := get(ev.Pool)
			addAmount(t.amount0, ev.Amount0, -1)
			addAmount(t.amount1, ev.Amount1, -1)
		}
	}

	var out []model.CollectedAmount
	for _, pool := range order {
		if !collected[pool] {
			continue
		}
		t := byPool[pool]
		for _, c := range []struct {
			kind model.CollectedKind
			raw  *big.Int
		}{{model.CollectedFee0, t.amount0}, {model.CollectedFee1, t.amount1}} {
			if c.raw.Sign() <= 0 {
				continue
			}
			out = append(out, model.CollectedAmount{Kind: c.kind, Ref: pool, Raw: c.raw})
		}
	}
	return out
}

// SwapOutput sums what pool paid out of tokenOut across Swap events.
// tokenIn and tokenOut must be the pool's two tokens.
func SwapOutput(events []model.PoolEvent, pool, tokenIn, tokenOut common.Address) *big.Int {
	outIsToken0 := bytes.Compare(tokenOut.Bytes(), tokenIn.Bytes()) < 0
	total := new(big.Int)
	for _, ev := range events {
		if ev.Name != "Swap" || ev.Pool != pool {
			continue
		}
		amount := ev.Amount1
		if outIsToken0 {
			amount = ev.Amount0
		}
		if amount != nil && amount.Sign() < 0 {
			total.Sub(total, amount)
		}
	}
	return total
}

func addAmount(dst, v *big.Int, sign int) {
	if v == nil {
		return
	}
	if sign < 0 {
		dst.Sub(dst, v)
		return
	}
	dst.Add(dst, v)
}
