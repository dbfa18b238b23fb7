package ops

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/dex"
	"vaultScope/internal/model"
)

// SwapLeg is an optional swap performed while moving a position.
// A nil MinOut means no minimum.
type SwapLeg struct {
	TokenIn           common.Address
	AmountIn          decimal.Decimal
	MinOut            *decimal.Decimal
	SqrtPriceLimitX96 *big.Int
}

// RebalanceRequest moves a vault position to a new range.
// A nil Fee uses the pool fee.
type RebalanceRequest struct {
	Vault common.Address
	Pool  common.Address
	DEX   string
	Range RangeInput
	Fee   *uint32
	Swap  *SwapLeg
}

func (r RebalanceRequest) validate() error {
	if r.Vault == (common.Address{}) {
		return ErrInvalidVault
	}
	if err := r.Range.validate(); err != nil {
		return err
	}
	if r.Swap != nil && !r.Swap.AmountIn.IsPositive() {
		return fmt.Errorf("%w: swap amount must be positive", ErrInvalidAmount)
	}
	if r.Swap != nil && r.Swap.MinOut != nil && r.Swap.MinOut.IsNegative() {
		return fmt.Errorf("%w: min out must not be negative", ErrInvalidAmount)
	}
	return nil
}

type swapAmounts struct {
	tokenIn  common.Address
	tokenOut common.Address
	amountIn *big.Int
	minOut   *big.Int
	limit    *big.Int
}

func (s *Service) swapLeg(leg *SwapLeg, info model.PoolInfo) (swapAmounts, error) {
	out := swapAmounts{amountIn: new(big.Int), minOut: new(big.Int), limit: new(big.Int)}
	if leg == nil {
		return out, nil
	}

	var in, other model.TokenMeta
	switch leg.TokenIn {
	case info.Token0.Address:
		in, other = info.Token0, info.Token1
	case info.Token1.Address:
		in, other = info.Token1, info.Token0
	default:
		return out, fmt.Errorf("%w: token %s is not in pool %s", ErrInvalidAmount, leg.TokenIn.Hex(), info.Meta.Address.Hex())
	}

	amountIn, err := positiveRaw(leg.AmountIn, in.Decimals, "swap amount")
	if err != nil {
		return out, err
	}
	out.tokenIn, out.tokenOut, out.amountIn = in.Address, other.Address, amountIn
	if leg.MinOut != nil {
		out.minOut = ToRaw(*leg.MinOut, other.Decimals)
	}
	out.limit = zeroIfNil(leg.SqrtPriceLimitX96)
	return out, nil
}

// Rebalance builds autoRebalancePancake for the resolved range.
func (s *Service) Rebalance(ctx context.Context, req RebalanceRequest) (model.CallRequest, ResolvedRange, error) {
	if err := req.validate(); err != nil {
		return model.CallRequest{}, ResolvedRange{}, err
	}
	profile, err := dex.LookupProfile(req.DEX)
	if err != nil {
		return model.CallRequest{}, ResolvedRange{}, err
	}
	if !profile.AutoPancake {
		return model.CallRequest{}, ResolvedRange{}, fmt.Errorf("%w: %s has no automated rebalance", ErrUnsupported, profile.Name)
	}

	rng, err := s.ResolveRange(ctx, req.Pool, req.Range)
	if err != nil {
		return model.CallRequest{}, ResolvedRange{}, err
	}
	swap, err := s.swapLeg(req.Swap, rng.Pool)
	if err != nil {
		return model.CallRequest{}, rng, err
	}
	fee := rng.Pool.Meta.Fee
	if req.Fee != nil {
		fee = *req.Fee
	}

	params := dex.AutoRebalanceParams{
		NewLower:          big.NewInt(int64(rng.Lower)),
		NewUpper:          big.NewInt(int64(rng.Upper)),
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		TokenIn:           swap.tokenIn,
		TokenOut:          swap.tokenOut,
		SwapAmountIn:      swap.amountIn,
		SwapAmountOutMin:  swap.minOut,
		SqrtPriceLimitX96: swap.limit,
	}
	call, err := s.vaultCall("rebalance", req.Vault, "autoRebalancePancake", params)
	return call, rng, err
}

// ExitSwapOpen builds unstakeExitSwapAndOpenPancake: the position is
// closed, one swap is made through router and a new range is opened.
func (s *Service) ExitSwapOpen(ctx context.Context, req RebalanceRequest, router common.Address) (model.CallRequest, ResolvedRange, error) {
	if err := req.validate(); err != nil {
		return model.CallRequest{}, ResolvedRange{}, err
	}
	if req.Swap == nil {
		return model.CallRequest{}, ResolvedRange{}, fmt.Errorf("%w: exit-swap-open requires a swap", ErrInvalidAmount)
	}
	rng, err := s.ResolveRange(ctx, req.Pool, req.Range)
	if err != nil {
		return model.CallRequest{}, ResolvedRange{}, err
	}
	swap, err := s.swapLeg(req.Swap, rng.Pool)
	if err != nil {
		return model.CallRequest{}, rng, err
	}
	if router == (common.Address{}) {
		if router, err = s.vaultRouter(ctx, req.Vault); err != nil {
			return model.CallRequest{}, rng, err
		}
	}
	fee := rng.Pool.Meta.Fee
	if req.Fee != nil {
		fee = *req.Fee
	}

	call, err := s.vaultCall("exit_swap_open", req.Vault, "unstakeExitSwapAndOpenPancake",
		router, swap.tokenIn, swap.tokenOut, new(big.Int).SetUint64(uint64(fee)),
		swap.amountIn, swap.minOut, swap.limit,
		big.NewInt(int64(rng.Lower)), big.NewInt(int64(rng.Upper)),
	)
	return call, rng, err
}
