package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/cache"
	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/dex"
	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
	"vaultScope/internal/ops"
	"vaultScope/internal/rpcbatch"
	"vaultScope/internal/status"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/txexec"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	chainID uint64
	metrics *metrics.Metrics
	store   *postgres.Store
	agg     *status.Aggregator
	ops     *ops.Service
	engine  *txexec.Engine
	events  *dex.PoolEventDecoder
	ledger  collectedLedger
}

// collectedLedger keeps running collected totals per vault.
type collectedLedger interface {
	AddCollected(ctx context.Context, chainID uint64, vault common.Address, amounts []model.CollectedAmount) error
	LoadCollected(ctx context.Context, chainID uint64, vault common.Address) ([]model.CollectedAmount, error)
}

// collector derives running totals from the pool events of a mined call.
type collector func(events []model.PoolEvent) []model.CollectedAmount

func newApp(ctx context.Context, cmd *cobra.Command, withSigner bool) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	stableTokens, err := parseAddresses(cfg.StableTokens)
	if err != nil {
		return nil, fmt.Errorf("stable-tokens: %w", err)
	}
	swapPools := make(map[string]common.Address, len(cfg.SwapPools))
	for name, raw := range cfg.SwapPools {
		addr, err := parseAddress(raw, "swap pool "+name)
		if err != nil {
			return nil, err
		}
		swapPools[name] = addr
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.client = client

	var id *big.Int
	if err := chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		id, err = client.ChainID(ctx)
		return err
	}); err != nil {
		a.close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	a.chainID = id.Uint64()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg, "vaultscope")
	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	caller := rpcbatch.NewCaller(client, rpcbatch.Config{DisableBatch: cfg.NoBatch}, logger, a.metrics)
	tiers := cache.NewTiers(cache.WithLookupFunc(a.metrics.CacheLookup))
	a.agg, err = status.NewAggregator(status.Config{
		ChainID:       a.chainID,
		StableSymbols: cfg.StableSymbols,
		StableTokens:  stableTokens,
		SwapPools:     swapPools,
	}, client, caller, tiers, a.metrics, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if a.ops, err = ops.NewService(a.agg, caller, logger); err != nil {
		a.close()
		return nil, err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.store = store
		a.ledger = store
		if err := store.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	if withSigner {
		if a.events, err = dex.NewPoolEventDecoder(); err != nil {
			a.close()
			return nil, err
		}
		signer, err := txexec.NewSigner(cfg.PrivateKey)
		if err != nil {
			a.close()
			return nil, err
		}
		var journals storage.Multi
		if cfg.Journal != "" {
			journals = append(journals, storage.NewJsonlJournal(cfg.Journal))
		}
		if a.store != nil {
			journals = append(journals, a.store)
		}
		a.engine = txexec.NewEngine(client, signer, txexec.Config{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			WaitTimeout:  cfg.WaitTimeout,
		}, journals, a.metrics, logger)
		logger.Info("signer ready", zap.String("from", signer.Address().Hex()), zap.Uint64("chain_id", a.chainID))
	}

	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	_ = a.logger.Sync()
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
}

// hint returns registry wiring for vault when a registry is configured.
func (a *app) hint(ctx context.Context, vault common.Address) *model.VaultHint {
	if a.store == nil {
		return nil
	}
	h, ok, err := a.store.LoadVaultHint(ctx, a.chainID, vault)
	if err != nil {
		a.logger.Warn("vault hint lookup failed", zap.String("vault", vault.Hex()), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &h
}

// dexFor prefers the DEX recorded in the registry over the configured one.
func (a *app) dexFor(hint *model.VaultHint) string {
	if hint != nil && hint.DEX != "" {
		return hint.DEX
	}
	return a.cfg.DEX
}

// poolOf returns the explicit pool, else the pool wired to vault.
func (a *app) poolOf(ctx context.Context, vault common.Address, explicit string) (common.Address, error) {
	if explicit != "" {
		return parseAddress(explicit, "pool")
	}
	hint := a.hint(ctx, vault)
	if hint != nil && hint.Pool != (common.Address{}) {
		return hint.Pool, nil
	}
	snap, err := a.agg.Snapshot(ctx, status.Query{Vault: vault, DEX: a.dexFor(hint), Hint: hint})
	if err != nil {
		return common.Address{}, err
	}
	if snap.Wiring.Pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("vault %s has no pool; pass --pool", vault.Hex())
	}
	return snap.Wiring.Pool, nil
}

func (a *app) ethUSD(ctx context.Context) (decimal.Decimal, error) {
	if a.cfg.EthUSD != nil {
		return *a.cfg.EthUSD, nil
	}
	if a.cfg.EthUSDPool == "" {
		return decimal.Zero, errors.New("no eth-usd or eth-usd-pool configured")
	}
	pool, err := parseAddress(a.cfg.EthUSDPool, "eth-usd-pool")
	if err != nil {
		return decimal.Zero, err
	}
	return a.ops.EthUSDHint(ctx, pool)
}

func (a *app) txOptions(ctx context.Context) (txexec.Options, error) {
	strategy, err := txexec.ParseGasStrategy(a.cfg.GasStrategy)
	if err != nil {
		return txexec.Options{}, err
	}
	opts := txexec.Options{Strategy: strategy, Wait: a.cfg.Wait, MaxGasUSD: a.cfg.MaxGasUSD}
	if opts.MaxGasUSD != nil {
		hint, err := a.ethUSD(ctx)
		if err != nil {
			a.logger.Warn("eth/usd hint unavailable, budget check will refuse", zap.Error(err))
		} else {
			opts.EthUSDHint = &hint
		}
	}
	return opts, nil
}

// submit sends reqs in order and prints each outcome, stopping at the
// first failure. Collected fees of mined calls are added to the ledger.
func (a *app) submit(ctx context.Context, out io.Writer, reqs ...model.CallRequest) error {
	return a.submitCollecting(ctx, out, dex.CollectedFees, reqs...)
}

func (a *app) submitCollecting(ctx context.Context, out io.Writer, collect collector, reqs ...model.CallRequest) error {
	opts, err := a.txOptions(ctx)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		outcome, err := a.engine.Submit(ctx, req, opts)
		r := a.report(outcome)
		a.account(ctx, outcome, r.PoolEvents, collect)
		if perr := printJSON(out, r); perr != nil {
			return perr
		}
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

// submitReport is the printed form of one submission. The raw receipt is
// replaced by the pool events it carried.
type submitReport struct {
	model.TransactionOutcome
	PoolEvents []model.PoolEvent `json:"pool_events,omitempty"`
}

func (a *app) report(outcome model.TransactionOutcome) submitReport {
	r := submitReport{TransactionOutcome: outcome}
	if outcome.Receipt == nil {
		return r
	}
	r.PoolEvents = a.poolEvents(outcome)
	r.Receipt = nil
	return r
}

func (a *app) poolEvents(outcome model.TransactionOutcome) []model.PoolEvent {
	if outcome.Receipt == nil || a.events == nil {
		return nil
	}
	events, err := a.events.Receipt(outcome.Receipt)
	if err != nil {
		a.logger.Warn("decode pool events", zap.String("tx_hash", outcome.Hash.Hex()), zap.Error(err))
	}
	return events
}

// account adds what collect finds in a successful vault call to the
// vault's running totals.
func (a *app) account(ctx context.Context, outcome model.TransactionOutcome, events []model.PoolEvent, collect collector) {
	if a.ledger == nil || collect == nil || outcome.To == nil {
		return
	}
	if outcome.MinedStatus == nil || *outcome.MinedStatus != types.ReceiptStatusSuccessful {
		return
	}
	amounts := collect(events)
	if len(amounts) == 0 {
		return
	}
	if err := a.ledger.AddCollected(ctx, a.chainID, *outcome.To, amounts); err != nil {
		a.logger.Warn("record collected totals",
			zap.String("vault", outcome.To.Hex()),
			zap.String("tx_hash", outcome.Hash.Hex()),
			zap.Error(err),
		)
		return
	}
	a.logger.Debug("collected totals updated", zap.String("vault", outcome.To.Hex()), zap.Int("amounts", len(amounts)))
}

// collected returns the running totals of vault when a ledger is configured.
func (a *app) collected(ctx context.Context, vault common.Address) []model.CollectedAmount {
	if a.ledger == nil {
		return nil
	}
	amounts, err := a.ledger.LoadCollected(ctx, a.chainID, vault)
	if err != nil {
		a.logger.Warn("collected totals lookup failed", zap.String("vault", vault.Hex()), zap.Error(err))
		return nil
	}
	return amounts
}

// accountingSubmitter records collected fees of scheduled submissions.
type accountingSubmitter struct {
	a *app
}

func (s accountingSubmitter) Submit(ctx context.Context, req model.CallRequest, opts txexec.Options) (model.TransactionOutcome, error) {
	outcome, err := s.a.engine.Submit(ctx, req, opts)
	s.a.account(ctx, outcome, s.a.poolEvents(outcome), dex.CollectedFees)
	return outcome, err
}

func classify(err error) error {
	var budget *txexec.BudgetExceededError
	var reverted *txexec.RevertedError
	switch {
	case errors.As(err, &budget):
		return fmt.Errorf("insufficient gas budget: %w", err)
	case errors.As(err, &reverted):
		return fmt.Errorf("transaction failed on-chain: %w", err)
	default:
		return err
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddress(raw, what string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", what, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAddresses(items []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(items))
	for _, item := range items {
		addr, err := parseAddress(item, "address")
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func optionalDecimal(cmd *cobra.Command, name string) (*decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

func optionalBig(cmd *cobra.Command, name string) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("--%s: invalid amount %q", name, raw)
	}
	return v, nil
}
