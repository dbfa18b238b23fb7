// Package status assembles point-in-time vault snapshots from batched
// contract reads and the tiered cache.
package status

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/cache"
	"vaultScope/internal/dex"
	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

var ErrInvalidVault = errors.New("vault address is required")

// Reader is the chain access needed by the aggregator.
type Reader interface {
	rpcbatch.Backend
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Config holds the valuation settings shared by all queries.
// SwapPools maps names such as "CAKE_USDC" to reference pools.
type Config struct {
	ChainID       uint64
	StableSymbols []string
	StableTokens  []common.Address
	SwapPools     map[string]common.Address
	Now           func() time.Time
}

// Query selects one vault. Hint may carry wiring from an external registry
// and Collected the running totals recorded for the vault.
type Query struct {
	Vault       common.Address
	DEX         string
	Hint        *model.VaultHint
	Collected   []model.CollectedAmount
	SwapPools   map[string]common.Address
	Fresh       bool
	Diagnostics bool
}

type abis struct {
	vault      abi.ABI
	adapter    abi.ABI
	nfpm       abi.ABI
	erc20      abi.ABI
	masterChef abi.ABI
	earned     abi.ABI
}

func loadABIs() (abis, error) {
	var (
		out abis
		err error
	)
	load := func(dst *abi.ABI, name string, fn func() (abi.ABI, error)) {
		if err != nil {
			return
		}
		if *dst, err = fn(); err != nil {
			err = fmt.Errorf("parse %s abi: %w", name, err)
		}
	}
	load(&out.vault, "vault", dex.ClientVaultABI)
	load(&out.adapter, "adapter", dex.CLAdapterABI)
	load(&out.nfpm, "nfpm", dex.NFPMABI)
	load(&out.erc20, "erc20", dex.ERC20ABI)
	load(&out.masterChef, "masterchef", dex.MasterChefV3ABI)
	load(&out.earned, "gauge", dex.EarnedGaugeABI)
	return out, err
}

// Aggregator builds status snapshots. It is safe for concurrent use.
type Aggregator struct {
	cfg     Config
	reader  Reader
	caller  *rpcbatch.Caller
	tiers   *cache.Tiers
	metrics *metrics.Metrics
	logger  *zap.Logger
	abis    abis
	stable  stableSet
	now     func() time.Time
}

func NewAggregator(cfg Config, reader Reader, caller *rpcbatch.Caller, tiers *cache.Tiers, m *metrics.Metrics, logger *zap.Logger) (*Aggregator, error) {
	if reader == nil {
		return nil, errors.New("status: reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if caller == nil {
		caller = rpcbatch.NewCaller(reader, rpcbatch.Config{}, logger, m)
	}
	if tiers == nil {
		tiers = cache.NewTiers()
	}
	parsed, err := loadABIs()
	if err != nil {
		return nil, err
	}
	if len(cfg.StableSymbols) == 0 {
		cfg.StableSymbols = DefaultStableSymbols
	}
	if len(cfg.StableTokens) == 0 {
		cfg.StableTokens = DefaultStableTokens
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		cfg:     cfg,
		reader:  reader,
		caller:  caller,
		tiers:   tiers,
		metrics: m,
		logger:  logger,
		abis:    parsed,
		stable:  newStableSet(cfg.StableSymbols, cfg.StableTokens),
		now:     now,
	}, nil
}

// Tiers exposes the cache shared by this aggregator.
func (a *Aggregator) Tiers() *cache.Tiers {
	return a.tiers
}

func (a *Aggregator) newRun(vault common.Address, fresh, timing bool) *run {
	return &run{agg: a, vault: vault, fresh: fresh, timing: timing}
}

// Snapshot reads the full status of one vault. Failed sub-reads degrade
// the affected fields instead of failing the query; an error is returned
// only for invalid input or a cancelled context.
func (a *Aggregator) Snapshot(ctx context.Context, q Query) (model.StatusSnapshot, error) {
	if q.Vault == (common.Address{}) {
		return model.StatusSnapshot{}, ErrInvalidVault
	}
	dexName := q.DEX
	if dexName == "" && q.Hint != nil {
		dexName = q.Hint.DEX
	}
	profile, err := dex.LookupProfile(dexName)
	if err != nil {
		return model.StatusSnapshot{}, err
	}

	started := time.Now()
	r := a.newRun(q.Vault, q.Fresh, q.Diagnostics)
	v := &view{profile: profile, swapPools: a.swapPools(q.SwapPools)}

	r.step("wiring", func() { r.loadWiring(ctx, v, q.Hint) })
	if err := ctx.Err(); err != nil {
		return model.StatusSnapshot{}, err
	}
	r.step("market", func() { r.loadMarket(ctx, v) })
	if err := ctx.Err(); err != nil {
		return model.StatusSnapshot{}, err
	}
	r.step("position", func() { r.loadPosition(ctx, v) })
	if err := ctx.Err(); err != nil {
		return model.StatusSnapshot{}, err
	}
	r.step("rewards", func() { r.loadRewards(ctx, v) })
	if err := ctx.Err(); err != nil {
		return model.StatusSnapshot{}, err
	}

	var snap model.StatusSnapshot
	r.step("compute", func() {
		snap = r.compute(v)
		r.applyCollected(&snap, v, q.Collected)
	})

	r.mu.Lock()
	diag := r.diag
	r.mu.Unlock()
	if q.Diagnostics || len(diag.Degraded) > 0 {
		snap.Diag = &diag
	}

	a.logger.Debug("status snapshot",
		zap.String("vault", q.Vault.Hex()),
		zap.String("dex", profile.Name),
		zap.Int("round_trips", diag.RoundTrips),
		zap.Int("degraded", len(diag.Degraded)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return snap, nil
}

func (a *Aggregator) swapPools(override map[string]common.Address) map[string]common.Address {
	if len(override) == 0 {
		return a.cfg.SwapPools
	}
	merged := make(map[string]common.Address, len(a.cfg.SwapPools)+len(override))
	for k, v := range a.cfg.SwapPools {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// view accumulates the raw reads of one snapshot.
type view struct {
	profile   dex.Profile
	swapPools map[string]common.Address

	wiring model.VaultWiring

	pool   *poolLoad
	token0 model.TokenMeta
	token1 model.TokenMeta

	tokenID       *big.Int
	lastRebalance uint64
	cooldownSec   uint64

	position    model.PositionRange
	positionOK  bool
	fees        model.FeePreview
	feesOK      bool
	ownership   model.Ownership
	ownershipOK bool
	idle0       *big.Int
	idle1       *big.Int
	blockTime   time.Time

	gauge  gaugeReading
	reward *model.RewardPreview
}

func (v *view) hasPosition() bool {
	return v.tokenID != nil && v.tokenID.Sign() > 0
}
