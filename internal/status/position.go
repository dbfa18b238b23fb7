package status

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"vaultScope/internal/cache"
	"vaultScope/internal/clmath"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
)

// loadPosition reads the position, fee preview, ownership, idle balances
// and pending rewards in one batch, concurrently with the latest block
// header used for cooldown accounting.
func (r *run) loadPosition(ctx context.Context, v *view) {
	chainID := r.agg.cfg.ChainID
	w := v.wiring
	p := &plan{}

	if v.hasPosition() && w.NFPM != (common.Address{}) {
		id := v.tokenID.String()
		nfpmABI := r.agg.abis.nfpm

		posKey := cache.Key(chainID, w.NFPM, "position", id)
		if pos, ok := r.agg.tiers.Position.Lookup(posKey, r.fresh); ok {
			v.position, v.positionOK = pos, true
		} else {
			p.call("position", w.NFPM, nfpmABI, "positions", func(values []interface{}) error {
				pos, err := parsePosition(values)
				if err != nil {
					return err
				}
				v.position, v.positionOK = pos, true
				r.agg.tiers.Position.Set(posKey, pos)
				return nil
			}, v.tokenID)
		}

		ownerKey := cache.Key(chainID, w.NFPM, "owner", id)
		cachedOwner, ownerCached := r.agg.tiers.Ownership.Lookup(ownerKey, r.fresh)
		if ownerCached {
			v.ownership, v.ownershipOK = cachedOwner, true
		} else {
			p.call("ownership", w.NFPM, nfpmABI, "ownerOf", func(values []interface{}) error {
				owner, err := dex.AsAddress(values[0])
				if err != nil {
					return err
				}
				v.ownership = model.Ownership{Owner: owner, Staked: w.Gauge != (common.Address{}) && owner == w.Gauge}
				v.ownershipOK = true
				r.agg.tiers.Ownership.Set(ownerKey, v.ownership)
				return nil
			}, v.tokenID)
		}

		feeKey := cache.Key(chainID, w.NFPM, "fees", id)
		if fees, ok := r.agg.tiers.FeePreview.Lookup(feeKey, r.fresh); ok {
			v.fees, v.feesOK = fees, true
		} else {
			params := dex.CollectParams{TokenID: v.tokenID, Recipient: r.vault, Amount0Max: dex.U128Max, Amount1Max: dex.U128Max}
			p.call("fees_uncollected", w.NFPM, nfpmABI, "collect", func(values []interface{}) error {
				if len(values) < 2 {
					return fmt.Errorf("collect: expected 2 values, got %d", len(values))
				}
				a0, err := dex.AsBigInt(values[0])
				if err != nil {
					return err
				}
				a1, err := dex.AsBigInt(values[1])
				if err != nil {
					return err
				}
				v.fees, v.feesOK = model.FeePreview{Amount0Raw: a0, Amount1Raw: a1}, true
				r.agg.tiers.FeePreview.Set(feeKey, v.fees)
				return nil
			}, params)
			from := w.Adapter
			if ownerCached {
				from = cachedOwner.Owner
			}
			p.withFrom(from)
		}
	}

	r.planBalance(p, "idle_token0", w.Token0, &v.idle0)
	r.planBalance(p, "idle_token1", w.Token1, &v.idle1)

	if v.hasPosition() {
		in := gaugeInput{gauge: w.Gauge, adapter: w.Adapter, tokenID: v.tokenID}
		r.agg.gaugeFor(v.profile.Gauge, w.Gauge).plan(p, in, &v.gauge)
	}

	var g errgroup.Group
	g.Go(func() error {
		r.exec(ctx, p)
		return nil
	})
	g.Go(func() error {
		r.roundTrip()
		header, err := r.agg.reader.HeaderByNumber(ctx, nil)
		if err != nil {
			r.degrade("block_time", err)
			return nil
		}
		v.blockTime = time.Unix(int64(header.Time), 0).UTC()
		return nil
	})
	_ = g.Wait()
}

// planBalance reads balanceOf(vault) for token through the idle balance tier.
func (r *run) planBalance(p *plan, field string, token common.Address, dst **big.Int) {
	if token == (common.Address{}) {
		return
	}
	key := cache.Key(r.agg.cfg.ChainID, token, "balance", r.vault.Hex())
	if bal, ok := r.agg.tiers.IdleBalance.Lookup(key, r.fresh); ok {
		*dst = bal
		return
	}
	p.call(field, token, r.agg.abis.erc20, "balanceOf", func(values []interface{}) error {
		bal, err := dex.AsBigInt(values[0])
		if err != nil {
			return err
		}
		*dst = bal
		r.agg.tiers.IdleBalance.Set(key, bal)
		return nil
	}, r.vault)
}

func parsePosition(values []interface{}) (model.PositionRange, error) {
	if len(values) < 8 {
		return model.PositionRange{}, fmt.Errorf("positions: expected 12 values, got %d", len(values))
	}
	lower, err := dex.AsInt24(values[5])
	if err != nil {
		return model.PositionRange{}, fmt.Errorf("tickLower: %w", err)
	}
	upper, err := dex.AsInt24(values[6])
	if err != nil {
		return model.PositionRange{}, fmt.Errorf("tickUpper: %w", err)
	}
	liquidity, err := dex.AsBigInt(values[7])
	if err != nil {
		return model.PositionRange{}, fmt.Errorf("liquidity: %w", err)
	}
	return model.PositionRange{LowerTick: lower, UpperTick: upper, Liquidity: liquidity}, nil
}

// loadRewards resolves reward token metadata, the vault's reward balance
// and a USD estimate of the pending amount.
func (r *run) loadRewards(ctx context.Context, v *view) {
	if !v.gauge.ok() {
		return
	}

	p := &plan{}
	tl := r.planTokenMeta(p, "reward_token", v.gauge.token)
	var balance *big.Int
	r.planBalance(p, "reward_vault_balance", v.gauge.token, &balance)
	r.exec(ctx, p)

	meta := r.finishTokenMeta(tl)
	reward := &model.RewardPreview{
		Gauge:        string(v.gauge.style),
		Token:        meta.Address,
		Symbol:       meta.Symbol,
		Decimals:     meta.Decimals,
		PendingRaw:   v.gauge.pending,
		Pending:      toHuman(v.gauge.pending, meta.Decimals),
		VaultBalance: toHuman(balance, meta.Decimals),
	}
	reward.USD = r.usdValue(ctx, meta, reward.Pending, v.swapPools)
	v.reward = reward
}

func toHuman(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// compute derives the snapshot from the collected reads.
func (r *run) compute(v *view) model.StatusSnapshot {
	snap := model.StatusSnapshot{
		ChainID:    r.agg.cfg.ChainID,
		Vault:      r.vault,
		DEX:        v.profile.Name,
		Wiring:     v.wiring,
		Token0:     v.token0,
		Token1:     v.token1,
		TokenID:    v.tokenID,
		Side:       model.RangeInside,
		PctOutside: decimal.Zero,
		Location:   model.LocationNone,
		Rewards:    v.reward,
		ObservedAt: r.agg.now().UTC(),
	}
	dec0, dec1 := v.token0.Decimals, v.token1.Decimals

	priceOK := v.pool != nil && v.pool.priceOK
	if v.pool != nil {
		snap.Fee = v.pool.meta.Fee
		snap.Spacing = v.pool.meta.TickSpacing
	}
	if priceOK {
		snap.Current = clmath.PriceTickFromSqrt(v.pool.price.SqrtPriceX96, v.pool.price.Tick, dec0, dec1)
	}

	snap.Range = model.PositionRange{Liquidity: new(big.Int)}
	in0, in1 := decimal.Zero, decimal.Zero
	if v.hasPosition() {
		snap.Location = model.LocationPool
		if v.ownershipOK {
			snap.Ownership = v.ownership
			if v.ownership.Staked {
				snap.Location = model.LocationGauge
			}
		}
	}
	if v.hasPosition() && v.positionOK {
		snap.Range = v.position
		lower := clmath.PriceFromTick(v.position.LowerTick, dec0, dec1)
		upper := clmath.PriceFromTick(v.position.UpperTick, dec0, dec1)
		snap.Lower, snap.Upper = &lower, &upper

		if priceOK {
			tick := v.pool.price.Tick
			snap.Side = clmath.Side(tick, v.position.LowerTick, v.position.UpperTick)
			switch snap.Side {
			case model.RangeBelow:
				snap.Outside = true
				snap.PctOutside = clmath.PctFromTickDelta(v.position.LowerTick - tick)
			case model.RangeAbove:
				snap.Outside = true
				snap.PctOutside = clmath.PctFromTickDelta(v.position.UpperTick - tick).Neg()
			}

			a0, a1 := clmath.AmountsForLiquidity(
				v.pool.price.SqrtPriceX96,
				clmath.TickToSqrtRatio(v.position.LowerTick),
				clmath.TickToSqrtRatio(v.position.UpperTick),
				v.position.Liquidity,
			)
			in0, in1 = toHuman(a0, dec0), toHuman(a1, dec1)
		}
	}

	idle0, idle1 := toHuman(v.idle0, dec0), toHuman(v.idle1, dec1)
	snap.Holdings = model.Holdings{
		Idle0:       idle0,
		Idle1:       idle1,
		InPosition0: in0,
		InPosition1: in1,
		Total0:      idle0.Add(in0),
		Total1:      idle1.Add(in1),
	}

	snap.Fees = model.FeePreview{Amount0Raw: new(big.Int), Amount1Raw: new(big.Int)}
	if v.feesOK {
		snap.Fees.Amount0Raw = v.fees.Amount0Raw
		snap.Fees.Amount1Raw = v.fees.Amount1Raw
	}
	snap.Fees.Amount0 = toHuman(snap.Fees.Amount0Raw, dec0)
	snap.Fees.Amount1 = toHuman(snap.Fees.Amount1Raw, dec1)
	if v.feesOK && priceOK {
		snap.Fees.USD = r.feesUSD(snap.Fees, v.token0, v.token1, snap.Current)
	}

	snap.Cooldown = r.cooldown(v)
	return snap
}

// feesUSD values fees when either pool token is a stablecoin.
func (r *run) feesUSD(fees model.FeePreview, token0, token1 model.TokenMeta, current model.PriceTick) *decimal.Decimal {
	switch {
	case r.agg.stable.has(token1):
		usd := fees.Amount0.Mul(current.PriceT1PerT0).Add(fees.Amount1)
		return &usd
	case r.agg.stable.has(token0):
		if current.PriceT0PerT1.Infinite {
			return nil
		}
		usd := fees.Amount0.Add(fees.Amount1.Mul(current.PriceT0PerT1.Value))
		return &usd
	default:
		return nil
	}
}

// applyCollected reports running totals. Fee totals count only when
// recorded against the pool the vault is wired to now.
func (r *run) applyCollected(snap *model.StatusSnapshot, v *view, collected []model.CollectedAmount) {
	if len(collected) == 0 {
		return
	}
	var fees *model.FeePreview
	feesFor := func() *model.FeePreview {
		if fees == nil {
			fees = &model.FeePreview{Amount0Raw: new(big.Int), Amount1Raw: new(big.Int)}
		}
		return fees
	}
	for _, c := range collected {
		if c.Raw == nil {
			continue
		}
		switch c.Kind {
		case model.CollectedFee0, model.CollectedFee1:
			if v.wiring.Pool == (common.Address{}) || c.Ref != v.wiring.Pool {
				continue
			}
			f := feesFor()
			if c.Kind == model.CollectedFee0 {
				f.Amount0Raw.Add(f.Amount0Raw, c.Raw)
			} else {
				f.Amount1Raw.Add(f.Amount1Raw, c.Raw)
			}
		case model.CollectedReward:
			reward := model.RewardsCollected{
				Token:  c.Ref,
				Symbol: c.Symbol,
				Raw:    c.Raw,
				Amount: toHuman(c.Raw, c.Decimals),
			}
			if r.agg.stable.has(model.TokenMeta{Address: c.Ref, Symbol: c.Symbol, Decimals: c.Decimals}) {
				usd := reward.Amount
				reward.USD = &usd
			}
			snap.RewardsCollected = append(snap.RewardsCollected, reward)
		}
	}
	if fees != nil {
		fees.Amount0 = toHuman(fees.Amount0Raw, v.token0.Decimals)
		fees.Amount1 = toHuman(fees.Amount1Raw, v.token1.Decimals)
		if v.pool != nil && v.pool.priceOK {
			fees.USD = r.feesUSD(*fees, v.token0, v.token1, snap.Current)
		}
		snap.FeesCollected = fees
	}
}

func (r *run) cooldown(v *view) model.Cooldown {
	c := model.Cooldown{LastRebalanceTs: v.lastRebalance, CooldownSec: v.cooldownSec}
	end := v.lastRebalance + v.cooldownSec
	c.EndsAt = time.Unix(int64(end), 0).UTC()

	now := v.blockTime
	if now.IsZero() {
		now = r.agg.now()
	}
	ts := uint64(now.Unix())
	if end > ts {
		c.RemainingSec = end - ts
		c.Active = true
	}
	return c
}
