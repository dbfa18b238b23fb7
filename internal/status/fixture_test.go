package status

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/cache"
	"vaultScope/internal/chain/chaintest"
	"vaultScope/internal/clmath"
	"vaultScope/internal/dex"
	"vaultScope/internal/rpcbatch"
)

var (
	vaultAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	ownerAddr   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	adapterAddr = common.HexToAddress("0x1000000000000000000000000000000000000003")
	poolAddr    = common.HexToAddress("0x1000000000000000000000000000000000000004")
	nfpmAddr    = common.HexToAddress("0x1000000000000000000000000000000000000005")
	gaugeAddr   = common.HexToAddress("0x1000000000000000000000000000000000000006")
	wethAddr    = common.HexToAddress("0x1000000000000000000000000000000000000007")
	usdcAddr    = common.HexToAddress("0x1000000000000000000000000000000000000008")
	cakeAddr    = common.HexToAddress("0x1000000000000000000000000000000000000009")
	cakePool    = common.HexToAddress("0x100000000000000000000000000000000000000a")
)

const (
	currentTick = int32(-200310)
	lowerTick   = int32(-201000)
	upperTick   = int32(-199000)
	blockTime   = uint64(1_700_000_000)
	cakeTick    = int32(-267000)
)

var fixedNow = time.Unix(int64(blockTime), 0)

type fixture struct {
	t     *testing.T
	fake  *chaintest.FakeChain
	abis  abis
	tiers *cache.Tiers

	mu        sync.Mutex
	positions int
	earnedArg common.Address
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// newFixture wires a pancake-style vault holding a WETH/USDC position
// staked in a masterchef gauge.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	parsed, err := loadABIs()
	if err != nil {
		t.Fatalf("load abis: %v", err)
	}
	f := &fixture{
		t:     t,
		fake:  chaintest.New(),
		abis:  parsed,
		tiers: cache.NewTiers(cache.WithClock(func() time.Time { return fixedNow })),
	}
	fake := f.fake
	fake.Header = &types.Header{Number: big.NewInt(1), Time: blockTime}

	fake.Return(vaultAddr, parsed.vault, "owner", ownerAddr)
	fake.Return(vaultAddr, parsed.vault, "executor", ownerAddr)
	fake.Return(vaultAddr, parsed.vault, "adapter", adapterAddr)
	fake.Return(vaultAddr, parsed.vault, "dexRouter", common.HexToAddress("0x100000000000000000000000000000000000000b"))
	fake.Return(vaultAddr, parsed.vault, "feeCollector", common.HexToAddress("0x100000000000000000000000000000000000000c"))
	fake.Return(vaultAddr, parsed.vault, "strategyId", big.NewInt(3))
	fake.Return(vaultAddr, parsed.vault, "tokens", wethAddr, usdcAddr)
	fake.Return(vaultAddr, parsed.vault, "positionTokenId", big.NewInt(42))
	fake.Return(vaultAddr, parsed.vault, "lastRebalanceTs", new(big.Int).SetUint64(blockTime-100))
	fake.Return(vaultAddr, parsed.vault, "cooldownSec", big.NewInt(600))

	fake.Return(adapterAddr, parsed.adapter, "pool", poolAddr)
	fake.Return(adapterAddr, parsed.adapter, "nfpm", nfpmAddr)
	fake.Return(adapterAddr, parsed.adapter, "gauge", gaugeAddr)
	fake.Return(adapterAddr, parsed.adapter, "tokens", wethAddr, usdcAddr)
	fake.Return(adapterAddr, parsed.adapter, "currentTokenId", big.NewInt(42))

	f.pool(poolAddr, wethAddr, usdcAddr, currentTick)
	f.pool(cakePool, cakeAddr, usdcAddr, cakeTick)

	f.token(wethAddr, "WETH", 18, e18(1))
	f.token(usdcAddr, "USDC", 6, big.NewInt(100_000_000))
	f.token(cakeAddr, "Cake", 18, e18(3))

	fake.Handle(nfpmAddr, parsed.nfpm, "positions", func(common.Address, []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		f.positions++
		f.mu.Unlock()
		return []interface{}{
			big.NewInt(0), common.Address{}, wethAddr, usdcAddr, big.NewInt(500),
			big.NewInt(int64(lowerTick)), big.NewInt(int64(upperTick)), big.NewInt(1_000_000_000_000_000),
			big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0),
		}, nil
	})
	fake.Return(nfpmAddr, parsed.nfpm, "ownerOf", gaugeAddr)
	fake.Return(nfpmAddr, parsed.nfpm, "collect", big.NewInt(10_000_000_000_000_000), big.NewInt(5_000_000))

	fake.Return(gaugeAddr, parsed.masterChef, "pendingCake", e18(2))
	fake.Return(gaugeAddr, parsed.masterChef, "CAKE", cakeAddr)
	return f
}

func (f *fixture) pool(addr, token0, token1 common.Address, tick int32) {
	p, err := dex.V3PoolABI()
	if err != nil {
		f.t.Fatalf("pool abi: %v", err)
	}
	f.fake.Return(addr, p, "token0", token0)
	f.fake.Return(addr, p, "token1", token1)
	f.fake.Return(addr, p, "fee", big.NewInt(500))
	f.fake.Return(addr, p, "tickSpacing", big.NewInt(10))
	f.fake.Return(addr, p, "slot0",
		clmath.TickToSqrtRatio(tick), big.NewInt(int64(tick)),
		uint16(0), uint16(1), uint16(1), uint32(0), true,
	)
}

func (f *fixture) token(addr common.Address, symbol string, decimals uint8, vaultBalance *big.Int) {
	e := f.abis.erc20
	f.fake.Return(addr, e, "decimals", decimals)
	f.fake.Return(addr, e, "symbol", symbol)
	f.fake.Handle(addr, e, "balanceOf", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		if args[0].(common.Address) == vaultAddr {
			return []interface{}{vaultBalance}, nil
		}
		return []interface{}{big.NewInt(0)}, nil
	})
}

func (f *fixture) useEarnedGauge(reward common.Address) {
	f.fake.Handle(gaugeAddr, f.abis.earned, "earned", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		f.earnedArg = args[0].(common.Address)
		f.mu.Unlock()
		return []interface{}{big.NewInt(7_500_000)}, nil
	})
	f.fake.Return(gaugeAddr, f.abis.earned, "rewardToken", reward)
}

func (f *fixture) positionReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions
}

func (f *fixture) aggregator(pools map[string]common.Address) *Aggregator {
	f.t.Helper()
	caller := rpcbatch.NewCaller(f.fake, rpcbatch.Config{}, zap.NewNop(), nil)
	agg, err := NewAggregator(Config{
		ChainID:   8453,
		SwapPools: pools,
		Now:       func() time.Time { return fixedNow },
	}, f.fake, caller, f.tiers, nil, zap.NewNop())
	if err != nil {
		f.t.Fatalf("new aggregator: %v", err)
	}
	return agg
}
