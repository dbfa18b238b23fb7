package cache

import (
	"math/big"
	"time"

	"vaultScope/internal/model"
)

const (
	TokenMetaTTL   = 24 * time.Hour
	VaultWiringTTL = 10 * time.Minute
	PositionTTL    = 60 * time.Second
	FeePreviewTTL  = 5 * time.Second
	OwnershipTTL   = 60 * time.Second
	IdleBalanceTTL = 3 * time.Second
	PoolMetaTTL    = 24 * time.Hour
	PoolPriceTTL   = 15 * time.Second
)

// Tiers is the cache service shared by status queries. Cached *big.Int
// values must be treated as read-only by callers.
type Tiers struct {
	TokenMeta   *Family[model.TokenMeta]
	VaultWiring *Family[model.VaultWiring]
	Position    *Family[model.PositionRange]
	FeePreview  *Family[model.FeePreview]
	Ownership   *Family[model.Ownership]
	IdleBalance *Family[*big.Int]
	PoolMeta    *Family[model.PoolMeta]
	PoolPrice   *Family[model.PoolPrice]
}

type options struct {
	clock    Clock
	onLookup LookupFunc
}

// Option configures NewTiers.
type Option func(*options)

// WithClock injects the time source used for stamping and expiry.
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLookupFunc observes hits and misses, typically for metrics.
func WithLookupFunc(fn LookupFunc) Option {
	return func(o *options) { o.onLookup = fn }
}

// NewTiers builds every family with its fixed TTL.
func NewTiers(opts ...Option) *Tiers {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Tiers{
		TokenMeta:   NewFamily[model.TokenMeta]("token_meta", TokenMetaTTL, o.clock),
		VaultWiring: NewFamily[model.VaultWiring]("vault_wiring", VaultWiringTTL, o.clock),
		Position:    NewFamily[model.PositionRange]("position", PositionTTL, o.clock),
		FeePreview:  NewFamily[model.FeePreview]("fee_preview", FeePreviewTTL, o.clock),
		Ownership:   NewFamily[model.Ownership]("ownership", OwnershipTTL, o.clock),
		IdleBalance: NewFamily[*big.Int]("idle_balance", IdleBalanceTTL, o.clock),
		PoolMeta:    NewFamily[model.PoolMeta]("pool_meta", PoolMetaTTL, o.clock),
		PoolPrice:   NewFamily[model.PoolPrice]("pool_price", PoolPriceTTL, o.clock),
	}
	if o.onLookup != nil {
		t.TokenMeta.onLookup = o.onLookup
		t.VaultWiring.onLookup = o.onLookup
		t.Position.onLookup = o.onLookup
		t.FeePreview.onLookup = o.onLookup
		t.Ownership.onLookup = o.onLookup
		t.IdleBalance.onLookup = o.onLookup
		t.PoolMeta.onLookup = o.onLookup
		t.PoolPrice.onLookup = o.onLookup
	}
	return t
}

// Purge drops expired entries from every family.
func (t *Tiers) Purge() int {
	return t.TokenMeta.Purge() +
		t.VaultWiring.Purge() +
		t.Position.Purge() +
		t.FeePreview.Purge() +
		t.Ownership.Purge() +
		t.IdleBalance.Purge() +
		t.PoolMeta.Purge() +
		t.PoolPrice.Purge()
}
