package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultScope/internal/model"
)

// Store provides Postgres persistence for transaction outcomes, vault
// registry hints, collected totals and scheduler state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS tx_outcomes (
	attempt_id text PRIMARY KEY,
	chain_id bigint NOT NULL,
	label text NOT NULL,
	from_address text NOT NULL,
	to_address text,
	nonce bigint NOT NULL,
	tx_hash text,
	state text NOT NULL,
	mined_status smallint,
	gas_limit bigint NOT NULL,
	gas_used bigint NOT NULL,
	gas_price_wei numeric,
	effective_gas_price_wei numeric,
	cost_eth numeric,
	cost_usd numeric,
	budget_max_usd numeric,
	budget_estimated_usd numeric,
	budget_exceeded boolean NOT NULL DEFAULT false,
	contract_address text,
	submitted_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS vault_registry (
	chain_id bigint NOT NULL,
	vault text NOT NULL,
	dex text NOT NULL DEFAULT '',
	owner text,
	executor text,
	adapter text,
	dex_router text,
	fee_collector text,
	strategy_id numeric,
	pool text,
	nfpm text,
	gauge text,
	token0 text,
	token1 text,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, vault)
);
CREATE TABLE IF NOT EXISTS vault_collected (
	chain_id bigint NOT NULL,
	vault text NOT NULL,
	kind text NOT NULL,
	ref text NOT NULL,
	symbol text NOT NULL DEFAULT '',
	decimals smallint NOT NULL DEFAULT 0,
	amount_raw numeric NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, vault, kind, ref)
);
CREATE TABLE IF NOT EXISTS job_state (
	name text PRIMARY KEY,
	last_run_ts bigint NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables used by the store.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordOutcome upserts one submission attempt keyed by its attempt id.
func (s *Store) RecordOutcome(ctx context.Context, o model.TransactionOutcome) error {
	var minedStatus *int16
	if o.MinedStatus != nil {
		v := int16(*o.MinedStatus)
		minedStatus = &v
	}
	var txHash *string
	if o.Broadcasted {
		h := o.Hash.Hex()
		txHash = &h
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tx_outcomes (
			attempt_id, chain_id, label, from_address, to_address, nonce, tx_hash, state, mined_status,
			gas_limit, gas_used, gas_price_wei, effective_gas_price_wei, cost_eth, cost_usd,
			budget_max_usd, budget_estimated_usd, budget_exceeded, contract_address, submitted_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now())
		ON CONFLICT (attempt_id)
		DO UPDATE SET
			tx_hash = EXCLUDED.tx_hash,
			state = EXCLUDED.state,
			mined_status = EXCLUDED.mined_status,
			gas_used = EXCLUDED.gas_used,
			effective_gas_price_wei = EXCLUDED.effective_gas_price_wei,
			cost_eth = EXCLUDED.cost_eth,
			cost_usd = EXCLUDED.cost_usd,
			contract_address = EXCLUDED.contract_address,
			updated_at = now()
	`,
		o.AttemptID,
		int64(o.ChainID),
		o.Label,
		lowerHex(o.From),
		addrOrNull(o.To),
		int64(o.Nonce),
		txHash,
		o.State(),
		minedStatus,
		int64(o.GasLimit),
		int64(o.GasUsed),
		bigOrNull(o.GasPriceWei),
		bigOrNull(o.EffectiveGasPriceWei),
		o.CostEth,
		o.CostUSD,
		o.Budget.MaxUSD,
		o.Budget.EstimatedUSD,
		o.Budget.Exceeded,
		addrOrNull(o.ContractAddress),
		o.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tx outcome: %w", err)
	}
	return nil
}

// UpsertVaultHints inserts or updates registry wiring for vaults.
func (s *Store) UpsertVaultHints(ctx context.Context, hints []model.VaultHint) error {
	if len(hints) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, h := range hints {
		batch.Queue(`
			INSERT INTO vault_registry (
				chain_id, vault, dex, owner, executor, adapter, dex_router, fee_collector, strategy_id,
				pool, nfpm, gauge, token0, token1, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
			ON CONFLICT (chain_id, vault)
			DO UPDATE SET
				dex = EXCLUDED.dex,
				owner = COALESCE(EXCLUDED.owner, vault_registry.owner),
				executor = COALESCE(EXCLUDED.executor, vault_registry.executor),
				adapter = COALESCE(EXCLUDED.adapter, vault_registry.adapter),
				dex_router = COALESCE(EXCLUDED.dex_router, vault_registry.dex_router),
				fee_collector = COALESCE(EXCLUDED.fee_collector, vault_registry.fee_collector),
				strategy_id = COALESCE(EXCLUDED.strategy_id, vault_registry.strategy_id),
				pool = COALESCE(EXCLUDED.pool, vault_registry.pool),
				nfpm = COALESCE(EXCLUDED.nfpm, vault_registry.nfpm),
				gauge = COALESCE(EXCLUDED.gauge, vault_registry.gauge),
				token0 = COALESCE(EXCLUDED.token0, vault_registry.token0),
				token1 = COALESCE(EXCLUDED.token1, vault_registry.token1),
				updated_at = now()
		`,
			int64(h.ChainID),
			lowerHex(h.Vault),
			h.DEX,
			nonZero(h.Owner),
			nonZero(h.Executor),
			nonZero(h.Adapter),
			nonZero(h.DexRouter),
			nonZero(h.FeeCollector),
			bigOrNull(h.StrategyID),
			nonZero(h.Pool),
			nonZero(h.NFPM),
			nonZero(h.Gauge),
			nonZero(h.Token0),
			nonZero(h.Token1),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range hints {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const hintColumns = `chain_id, vault, dex,
	COALESCE(owner, ''), COALESCE(executor, ''), COALESCE(adapter, ''), COALESCE(dex_router, ''),
	COALESCE(fee_collector, ''), COALESCE(strategy_id::text, ''), COALESCE(pool, ''), COALESCE(nfpm, ''),
	COALESCE(gauge, ''), COALESCE(token0, ''), COALESCE(token1, '')`

// LoadVaultHint returns the registry entry of one vault.
func (s *Store) LoadVaultHint(ctx context.Context, chainID uint64, vault common.Address) (model.VaultHint, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+hintColumns+` FROM vault_registry WHERE chain_id=$1 AND vault=$2`,
		int64(chainID), lowerHex(vault))
	var r hintRow
	if err := r.scan(row); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.VaultHint{}, false, nil
		}
		return model.VaultHint{}, false, err
	}
	hint, err := r.hint()
	if err != nil {
		return model.VaultHint{}, false, err
	}
	return hint, true, nil
}

// ListVaultHints returns every registry entry of a chain.
func (s *Store) ListVaultHints(ctx context.Context, chainID uint64) ([]model.VaultHint, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+hintColumns+` FROM vault_registry WHERE chain_id=$1 ORDER BY vault`, int64(chainID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VaultHint
	for rows.Next() {
		var r hintRow
		if err := r.scan(rows); err != nil {
			return nil, err
		}
		hint, err := r.hint()
		if err != nil {
			return nil, err
		}
		out = append(out, hint)
	}
	return out, rows.Err()
}

// AddCollected adds amounts to the running totals of vault.
func (s *Store) AddCollected(ctx context.Context, chainID uint64, vault common.Address, amounts []model.CollectedAmount) error {
	batch := &pgx.Batch{}
	for _, c := range amounts {
		if c.Raw == nil || c.Raw.Sign() <= 0 {
			continue
		}
		batch.Queue(`
			INSERT INTO vault_collected (chain_id, vault, kind, ref, symbol, decimals, amount_raw, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			ON CONFLICT (chain_id, vault, kind, ref)
			DO UPDATE SET
				amount_raw = vault_collected.amount_raw + EXCLUDED.amount_raw,
				symbol = CASE WHEN EXCLUDED.symbol <> '' THEN EXCLUDED.symbol ELSE vault_collected.symbol END,
				decimals = CASE WHEN EXCLUDED.symbol <> '' THEN EXCLUDED.decimals ELSE vault_collected.decimals END,
				updated_at = now()
		`, int64(chainID), lowerHex(vault), string(c.Kind), lowerHex(c.Ref), c.Symbol, int16(c.Decimals), c.Raw.String())
	}
	if batch.Len() == 0 {
		return nil
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("add collected: %w", err)
		}
	}
	return nil
}

// LoadCollected returns every running total of vault.
func (s *Store) LoadCollected(ctx context.Context, chainID uint64, vault common.Address) ([]model.CollectedAmount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, ref, symbol, decimals, amount_raw::text
		FROM vault_collected WHERE chain_id=$1 AND vault=$2 ORDER BY kind, ref
	`, int64(chainID), lowerHex(vault))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CollectedAmount
	for rows.Next() {
		var kind, ref, symbol, raw string
		var decimals int16
		if err := rows.Scan(&kind, &ref, &symbol, &decimals, &raw); err != nil {
			return nil, err
		}
		c, err := collectedRow(kind, ref, symbol, decimals, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectedRow(kind, ref, symbol string, decimals int16, raw string) (model.CollectedAmount, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return model.CollectedAmount{}, fmt.Errorf("collected %s %s: invalid amount %q", kind, ref, raw)
	}
	return model.CollectedAmount{
		Kind:     model.CollectedKind(kind),
		Ref:      common.HexToAddress(ref),
		Symbol:   symbol,
		Decimals: uint8(decimals),
		Raw:      amount,
	}, nil
}

// LoadJobState returns the last run time of a scheduled job.
func (s *Store) LoadJobState(ctx context.Context, name string) (time.Time, bool, error) {
	if name == "" {
		return time.Time{}, false, fmt.Errorf("job name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_run_ts FROM job_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

// SaveJobState upserts the last run time of a scheduled job.
func (s *Store) SaveJobState(ctx context.Context, name string, at time.Time) error {
	if name == "" {
		return fmt.Errorf("job name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_state (name, last_run_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_run_ts = EXCLUDED.last_run_ts, updated_at = now()
	`, name, at.Unix())
	return err
}

type hintRow struct {
	chainID int64
	fields  [13]string
}

func (r *hintRow) scan(row pgx.Row) error {
	dest := []any{&r.chainID}
	for i := range r.fields {
		dest = append(dest, &r.fields[i])
	}
	return row.Scan(dest...)
}

// hint converts a scanned row. Column order follows hintColumns.
func (r *hintRow) hint() (model.VaultHint, error) {
	f := r.fields
	h := model.VaultHint{ChainID: uint64(r.chainID), Vault: common.HexToAddress(f[0]), DEX: f[1]}
	h.Owner = common.HexToAddress(f[2])
	h.Executor = common.HexToAddress(f[3])
	h.Adapter = common.HexToAddress(f[4])
	h.DexRouter = common.HexToAddress(f[5])
	h.FeeCollector = common.HexToAddress(f[6])
	if f[7] != "" {
		id, ok := new(big.Int).SetString(f[7], 10)
		if !ok {
			return h, fmt.Errorf("vault %s: invalid strategy id %q", f[0], f[7])
		}
		h.StrategyID = id
	}
	h.Pool = common.HexToAddress(f[8])
	h.NFPM = common.HexToAddress(f[9])
	h.Gauge = common.HexToAddress(f[10])
	h.Token0 = common.HexToAddress(f[11])
	h.Token1 = common.HexToAddress(f[12])
	return h, nil
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func addrOrNull(addr *common.Address) *string {
	if addr == nil {
		return nil
	}
	s := lowerHex(*addr)
	return &s
}

func nonZero(addr common.Address) *string {
	if addr == (common.Address{}) {
		return nil
	}
	s := lowerHex(addr)
	return &s
}

func bigOrNull(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
