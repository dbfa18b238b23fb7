package ops

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/clmath"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

const maxBps = 10_000

// SwapRequest swaps vault funds from one pool token to the other. Either
// MinOut or Quoter must be set; with a quoter the minimum is the quote
// reduced by SlippageBps. A zero Router is read from the vault.
type SwapRequest struct {
	Vault             common.Address
	Pool              common.Address
	Router            common.Address
	Quoter            common.Address
	TokenIn           common.Address
	AmountIn          decimal.Decimal
	MinOut            *decimal.Decimal
	SlippageBps       uint32
	SqrtPriceLimitX96 *big.Int
}

// SwapPlan is a built swap with the amounts it commits to.
type SwapPlan struct {
	Request   model.CallRequest
	TokenIn   model.TokenMeta
	TokenOut  model.TokenMeta
	Fee       uint32
	AmountIn  *big.Int
	MinOut    *big.Int
	QuotedOut *big.Int
}

func (r SwapRequest) validate() error {
	if r.Vault == (common.Address{}) {
		return ErrInvalidVault
	}
	if r.Pool == (common.Address{}) {
		return fmt.Errorf("%w: pool address is required", ErrInvalidAmount)
	}
	if !r.AmountIn.IsPositive() {
		return fmt.Errorf("%w: amount in must be positive", ErrInvalidAmount)
	}
	if r.SlippageBps > maxBps {
		return fmt.Errorf("%w: slippage %d bps above %d", ErrInvalidAmount, r.SlippageBps, maxBps)
	}
	if r.MinOut == nil && r.Quoter == (common.Address{}) {
		return fmt.Errorf("%w: min out or a quoter is required", ErrInvalidAmount)
	}
	if r.MinOut != nil && r.MinOut.IsNegative() {
		return fmt.Errorf("%w: min out must not be negative", ErrInvalidAmount)
	}
	return nil
}

// Swap builds swapExactIn through the vault.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (SwapPlan, error) {
	if err := req.validate(); err != nil {
		return SwapPlan{}, err
	}
	info, err := s.pools.PoolInfo(ctx, req.Pool, false)
	if err != nil {
		return SwapPlan{}, fmt.Errorf("load pool: %w", err)
	}

	plan := SwapPlan{Fee: info.Meta.Fee}
	switch req.TokenIn {
	case info.Token0.Address:
		plan.TokenIn, plan.TokenOut = info.Token0, info.Token1
	case info.Token1.Address:
		plan.TokenIn, plan.TokenOut = info.Token1, info.Token0
	default:
		return SwapPlan{}, fmt.Errorf("%w: token %s is not in pool %s", ErrInvalidAmount, req.TokenIn.Hex(), req.Pool.Hex())
	}
	if plan.AmountIn, err = positiveRaw(req.AmountIn, plan.TokenIn.Decimals, "amount in"); err != nil {
		return SwapPlan{}, err
	}

	router := req.Router
	if router == (common.Address{}) {
		if router, err = s.vaultRouter(ctx, req.Vault); err != nil {
			return SwapPlan{}, err
		}
	}

	if req.MinOut != nil {
		plan.MinOut = ToRaw(*req.MinOut, plan.TokenOut.Decimals)
	} else {
		quoted, err := s.Quote(ctx, req.Quoter, plan.TokenIn.Address, plan.TokenOut.Address, plan.Fee, plan.AmountIn)
		if err != nil {
			return SwapPlan{}, err
		}
		plan.QuotedOut = quoted
		plan.MinOut = applySlippage(quoted, req.SlippageBps)
		s.logger.Debug("swap min out from quote",
			zap.String("quoted", quoted.String()),
			zap.String("min_out", plan.MinOut.String()),
			zap.Uint32("slippage_bps", req.SlippageBps),
		)
	}

	plan.Request, err = s.vaultCall("swap", req.Vault, "swapExactIn",
		router, plan.TokenIn.Address, plan.TokenOut.Address, new(big.Int).SetUint64(uint64(plan.Fee)),
		plan.AmountIn, plan.MinOut, zeroIfNil(req.SqrtPriceLimitX96),
	)
	return plan, err
}

// Quote simulates quoteExactInputSingle and returns amountOut.
func (s *Service) Quote(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	params := dex.QuoteParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		SqrtPriceLimitX96: new(big.Int),
	}
	call, err := rpcbatch.NewCall("quote", quoter, s.quoter, "quoteExactInputSingle", params)
	if err != nil {
		return nil, err
	}
	res := s.caller.Call(ctx, []rpcbatch.Call{call})[0]
	if !res.OK() {
		return nil, fmt.Errorf("quote: %w", res.Err)
	}
	out, err := dex.AsBigInt(res.Values[0])
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return out, nil
}

func applySlippage(amount *big.Int, bps uint32) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(maxBps-bps)))
	return out.Quo(out, big.NewInt(maxBps))
}

func (s *Service) vaultRouter(ctx context.Context, vault common.Address) (common.Address, error) {
	call, err := rpcbatch.NewCall("dex_router", vault, s.vault, "dexRouter")
	if err != nil {
		return common.Address{}, err
	}
	res := s.caller.Call(ctx, []rpcbatch.Call{call})[0]
	if !res.OK() {
		return common.Address{}, fmt.Errorf("read dex router: %w", res.Err)
	}
	router, err := dex.AsAddress(res.Values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("read dex router: %w", err)
	}
	if router == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: vault %s has no dex router", ErrUnsupported, vault.Hex())
	}
	return router, nil
}

// EthUSDHint prices the non-stable side of a WETH/stable pool, for use as
// the gas budget hint.
func (s *Service) EthUSDHint(ctx context.Context, pool common.Address) (decimal.Decimal, error) {
	info, err := s.pools.PoolInfo(ctx, pool, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load eth/usd pool: %w", err)
	}
	price := clmath.SqrtPriceToPrice(info.Price.SqrtPriceX96, info.Token0.Decimals, info.Token1.Decimals)
	switch {
	case s.pools.IsStable(info.Token1) && !s.pools.IsStable(info.Token0):
		return price, nil
	case s.pools.IsStable(info.Token0) && !s.pools.IsStable(info.Token1):
		inv := clmath.Inverse(price)
		if inv.Infinite {
			return decimal.Zero, fmt.Errorf("eth/usd pool %s has a zero price", pool.Hex())
		}
		return inv.Value, nil
	default:
		return decimal.Zero, fmt.Errorf("pool %s is not a volatile/stable pair", pool.Hex())
	}
}
