package status

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/cache"
	"vaultScope/internal/model"
)

func cakePools() map[string]common.Address {
	return map[string]common.Address{"cake_usdc": cakePool}
}

func hasDegraded(snap model.StatusSnapshot, field string) bool {
	if snap.Diag == nil {
		return false
	}
	for _, d := range snap.Diag.Degraded {
		if d.Field == field {
			return true
		}
	}
	return false
}

func TestSnapshotInRangeStakedPosition(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(cakePools())

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Diag != nil {
		t.Fatalf("unexpected diagnostics: %+v", snap.Diag.Degraded)
	}

	if snap.DEX != "pancake_v3" || snap.ChainID != 8453 {
		t.Fatalf("unexpected identity: %s %d", snap.DEX, snap.ChainID)
	}
	if snap.Wiring.Adapter != adapterAddr || snap.Wiring.Pool != poolAddr || snap.Wiring.Gauge != gaugeAddr {
		t.Fatalf("unexpected wiring: %+v", snap.Wiring)
	}
	if snap.Token0.Symbol != "WETH" || snap.Token1.Decimals != 6 {
		t.Fatalf("unexpected tokens: %+v %+v", snap.Token0, snap.Token1)
	}
	if snap.Fee != 500 || snap.Spacing != 10 {
		t.Fatalf("unexpected pool meta: fee=%d spacing=%d", snap.Fee, snap.Spacing)
	}

	price := snap.Current.PriceT1PerT0
	if price.LessThan(decimal.NewFromInt(1900)) || price.GreaterThan(decimal.NewFromInt(2100)) {
		t.Fatalf("unexpected current price %s", price)
	}
	if snap.Side != model.RangeInside || snap.Outside {
		t.Fatalf("expected in range, got side=%s outside=%v", snap.Side, snap.Outside)
	}
	if snap.Location != model.LocationGauge || !snap.Ownership.Staked {
		t.Fatalf("expected staked position, got %s %+v", snap.Location, snap.Ownership)
	}
	if snap.Lower == nil || snap.Upper == nil || !snap.Lower.PriceT1PerT0.LessThan(snap.Upper.PriceT1PerT0) {
		t.Fatalf("unexpected range prices: %+v %+v", snap.Lower, snap.Upper)
	}

	h := snap.Holdings
	if !h.Idle0.Equal(decimal.NewFromInt(1)) || !h.Idle1.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected idle: %s %s", h.Idle0, h.Idle1)
	}
	if h.InPosition0.Sign() <= 0 || h.InPosition1.Sign() <= 0 {
		t.Fatalf("in-range position must hold both tokens: %s %s", h.InPosition0, h.InPosition1)
	}
	if !h.Total0.Equal(h.Idle0.Add(h.InPosition0)) {
		t.Fatalf("total0 mismatch")
	}

	if !snap.Fees.Amount0.Equal(decimal.RequireFromString("0.01")) || !snap.Fees.Amount1.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected fees: %s %s", snap.Fees.Amount0, snap.Fees.Amount1)
	}
	if snap.Fees.USD == nil {
		t.Fatalf("expected fee usd")
	}
	wantFeeUSD := snap.Fees.Amount0.Mul(price).Add(decimal.NewFromInt(5))
	if !snap.Fees.USD.Equal(wantFeeUSD) {
		t.Fatalf("fee usd mismatch: got %s want %s", snap.Fees.USD, wantFeeUSD)
	}

	r := snap.Rewards
	if r == nil {
		t.Fatalf("expected rewards")
	}
	if r.Token != cakeAddr || r.Symbol != "Cake" || !r.Pending.Equal(decimal.NewFromInt(2)) || !r.VaultBalance.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected rewards: %+v", r)
	}
	if r.USD == nil || r.USD.LessThan(decimal.NewFromInt(4)) || r.USD.GreaterThan(decimal.NewFromInt(6)) {
		t.Fatalf("unexpected reward usd: %v", r.USD)
	}

	if !snap.Cooldown.Active || snap.Cooldown.RemainingSec != 500 {
		t.Fatalf("unexpected cooldown: %+v", snap.Cooldown)
	}
}

func TestSnapshotDegradesFailedBalance(t *testing.T) {
	f := newFixture(t)
	f.fake.Revert(usdcAddr, f.abis.erc20, "balanceOf")
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !hasDegraded(snap, "idle_token1") {
		t.Fatalf("expected idle_token1 degraded, got %+v", snap.Diag)
	}
	if !snap.Holdings.Idle1.IsZero() {
		t.Fatalf("degraded balance should be zero, got %s", snap.Holdings.Idle1)
	}
	if !snap.Holdings.Idle0.Equal(decimal.NewFromInt(1)) || snap.Side != model.RangeInside {
		t.Fatalf("unrelated fields should survive: %+v", snap.Holdings)
	}
}

func TestSnapshotServesRepeatReadsFromCache(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(cakePools())
	ctx := context.Background()

	if _, err := agg.Snapshot(ctx, Query{Vault: vaultAddr}); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	cold := f.fake.BatchedCalls()
	f.fake.Reset()

	if _, err := agg.Snapshot(ctx, Query{Vault: vaultAddr}); err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if warm := f.fake.BatchedCalls(); warm >= cold {
		t.Fatalf("expected fewer calls when warm: cold=%d warm=%d", cold, warm)
	}
	if got := f.positionReads(); got != 1 {
		t.Fatalf("position should be read once, got %d", got)
	}

	if _, err := agg.Snapshot(ctx, Query{Vault: vaultAddr, Fresh: true}); err != nil {
		t.Fatalf("fresh snapshot: %v", err)
	}
	if got := f.positionReads(); got != 2 {
		t.Fatalf("fresh query must bypass the cache, got %d position reads", got)
	}
}

func TestSnapshotDiagnostics(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr, Diagnostics: true})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Diag == nil {
		t.Fatalf("expected diagnostics")
	}
	if snap.Diag.RoundTrips < 4 {
		t.Fatalf("expected at least 4 round trips, got %d", snap.Diag.RoundTrips)
	}
	steps := map[string]bool{}
	for _, s := range snap.Diag.Steps {
		steps[s.Step] = true
	}
	for _, want := range []string{"wiring", "market", "position", "rewards", "compute"} {
		if !steps[want] {
			t.Fatalf("missing step timing %q in %+v", want, snap.Diag.Steps)
		}
	}
}

func TestSnapshotEarnedGaugeUsesAdapterAccount(t *testing.T) {
	f := newFixture(t)
	f.useEarnedGauge(usdcAddr)
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr, DEX: "aerodrome"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if f.earnedArg != adapterAddr {
		t.Fatalf("earned must be queried for the adapter, got %s", f.earnedArg.Hex())
	}
	r := snap.Rewards
	if r == nil || r.Gauge != "earned" {
		t.Fatalf("unexpected rewards: %+v", r)
	}
	if !r.Pending.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("unexpected pending: %s", r.Pending)
	}
	if r.USD == nil || !r.USD.Equal(r.Pending) {
		t.Fatalf("stable reward should be valued one to one, got %v", r.USD)
	}
}

func TestSnapshotRewardUSDUnknownWithoutReferencePool(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Rewards == nil || snap.Rewards.USD != nil {
		t.Fatalf("expected rewards without usd, got %+v", snap.Rewards)
	}
}

func TestSnapshotUniswapSkipsGauge(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{
		Vault: vaultAddr,
		DEX:   "uniswap_v3",
		Hint:  &model.VaultHint{VaultWiring: model.VaultWiring{Pool: poolAddr}},
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Rewards != nil || snap.Wiring.Gauge != (common.Address{}) {
		t.Fatalf("uniswap vault has no gauge: %+v", snap.Rewards)
	}
	if snap.Location != model.LocationPool {
		t.Fatalf("unexpected location %s", snap.Location)
	}
}

func TestSnapshotWithoutPosition(t *testing.T) {
	f := newFixture(t)
	f.fake.Return(adapterAddr, f.abis.adapter, "currentTokenId", big.NewInt(0))
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Location != model.LocationNone || snap.Side != model.RangeInside || snap.Outside {
		t.Fatalf("unexpected range state: %s %s %v", snap.Location, snap.Side, snap.Outside)
	}
	if snap.Rewards != nil || snap.Range.Liquidity.Sign() != 0 {
		t.Fatalf("expected empty position, got %+v", snap.Range)
	}
	if !snap.Holdings.Total0.Equal(snap.Holdings.Idle0) {
		t.Fatalf("without a position totals are idle balances")
	}
	if f.positionReads() != 0 {
		t.Fatalf("position must not be read without a token id")
	}
}

func TestSnapshotOutOfRangeBelow(t *testing.T) {
	f := newFixture(t)
	f.pool(poolAddr, wethAddr, usdcAddr, lowerTick-500)
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Side != model.RangeBelow || !snap.Outside {
		t.Fatalf("expected below range, got %s", snap.Side)
	}
	if snap.PctOutside.Sign() <= 0 {
		t.Fatalf("expected positive distance, got %s", snap.PctOutside)
	}
	if !snap.Holdings.InPosition1.IsZero() || snap.Holdings.InPosition0.Sign() <= 0 {
		t.Fatalf("below range holds only token0: %+v", snap.Holdings)
	}
}

func TestSnapshotFallsBackWhenBatchFails(t *testing.T) {
	f := newFixture(t)
	f.fake.BatchErr = errors.New("batch unsupported")
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if f.fake.Calls() == 0 {
		t.Fatalf("expected sequential calls")
	}
	if snap.Diag != nil || snap.Token0.Symbol != "WETH" {
		t.Fatalf("sequential fallback should produce a complete snapshot: %+v", snap.Diag)
	}
}

func TestSnapshotRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(nil)

	if _, err := agg.Snapshot(context.Background(), Query{}); !errors.Is(err, ErrInvalidVault) {
		t.Fatalf("expected ErrInvalidVault, got %v", err)
	}
	if _, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr, DEX: "sushi"}); err == nil {
		t.Fatalf("expected unknown dex error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := agg.Snapshot(ctx, Query{Vault: vaultAddr}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSnapshotMissingHeaderUsesClock(t *testing.T) {
	f := newFixture(t)
	f.fake.Header = nil
	agg := f.aggregator(nil)

	snap, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !hasDegraded(snap, "block_time") {
		t.Fatalf("expected block_time degraded")
	}
	if snap.Cooldown.RemainingSec != 500 {
		t.Fatalf("clock fallback should match fixture time, got %d", snap.Cooldown.RemainingSec)
	}
}

func TestSnapshotDoesNotCacheTokenWithoutSymbol(t *testing.T) {
	f := newFixture(t)
	f.fake.Revert(usdcAddr, f.abis.erc20, "symbol")
	agg := f.aggregator(nil)
	ctx := context.Background()

	snap, err := agg.Snapshot(ctx, Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !hasDegraded(snap, "token1_symbol") {
		t.Fatalf("expected token1_symbol degraded, got %+v", snap.Diag)
	}
	if snap.Token1.Symbol != "" || snap.Token1.Decimals != 6 {
		t.Fatalf("decimals must survive a missing symbol: %+v", snap.Token1)
	}
	if _, ok := f.tiers.TokenMeta.Get(cache.Key(8453, usdcAddr)); ok {
		t.Fatalf("metadata without a symbol must not be cached")
	}

	f.fake.Return(usdcAddr, f.abis.erc20, "symbol", "USDC")
	snap, err = agg.Snapshot(ctx, Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if snap.Token1.Symbol != "USDC" {
		t.Fatalf("symbol should resolve once the token answers, got %q", snap.Token1.Symbol)
	}
	if meta, ok := f.tiers.TokenMeta.Get(cache.Key(8453, usdcAddr)); !ok || meta.Symbol != "USDC" {
		t.Fatalf("resolved metadata should be cached, got %+v %v", meta, ok)
	}
}

func TestSnapshotWiringCachedPerProfile(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(cakePools())
	ctx := context.Background()

	uni, err := agg.Snapshot(ctx, Query{
		Vault: vaultAddr,
		DEX:   "uniswap_v3",
		Hint:  &model.VaultHint{VaultWiring: model.VaultWiring{Pool: poolAddr}},
	})
	if err != nil {
		t.Fatalf("uniswap snapshot: %v", err)
	}
	if uni.Wiring.Gauge != (common.Address{}) {
		t.Fatalf("uniswap wiring has no gauge: %+v", uni.Wiring)
	}

	pancake, err := agg.Snapshot(ctx, Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("pancake snapshot: %v", err)
	}
	if pancake.Wiring.Gauge != gaugeAddr || pancake.Rewards == nil {
		t.Fatalf("pancake profile must not reuse uniswap wiring: %+v %+v", pancake.Wiring, pancake.Rewards)
	}
}

func TestSnapshotReportsCollectedTotals(t *testing.T) {
	f := newFixture(t)
	agg := f.aggregator(nil)
	stale := common.HexToAddress("0x20000000000000000000000000000000000000ff")

	snap, err := agg.Snapshot(context.Background(), Query{
		Vault: vaultAddr,
		Collected: []model.CollectedAmount{
			{Kind: model.CollectedFee0, Ref: poolAddr, Raw: e18(1)},
			{Kind: model.CollectedFee1, Ref: poolAddr, Raw: big.NewInt(3_000_000)},
			{Kind: model.CollectedFee1, Ref: stale, Raw: big.NewInt(9_000_000)},
			{Kind: model.CollectedReward, Ref: usdcAddr, Symbol: "USDC", Decimals: 6, Raw: big.NewInt(12_500_000)},
		},
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	fees := snap.FeesCollected
	if fees == nil {
		t.Fatalf("expected collected fees")
	}
	if !fees.Amount0.Equal(decimal.NewFromInt(1)) || !fees.Amount1.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("fees of other pools must be ignored: %s %s", fees.Amount0, fees.Amount1)
	}
	if fees.USD == nil || fees.USD.LessThan(decimal.NewFromInt(1900)) || fees.USD.GreaterThan(decimal.NewFromInt(2200)) {
		t.Fatalf("unexpected collected fees usd %v", fees.USD)
	}

	if len(snap.RewardsCollected) != 1 {
		t.Fatalf("expected one reward total, got %+v", snap.RewardsCollected)
	}
	r := snap.RewardsCollected[0]
	if !r.Amount.Equal(decimal.New(125, -1)) || r.USD == nil || !r.USD.Equal(r.Amount) {
		t.Fatalf("unexpected reward total %+v", r)
	}

	bare, err := agg.Snapshot(context.Background(), Query{Vault: vaultAddr})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if bare.FeesCollected != nil || bare.RewardsCollected != nil {
		t.Fatalf("no totals without a ledger")
	}
}
