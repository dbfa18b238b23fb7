package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/dex"
	"vaultScope/internal/model"
	"vaultScope/internal/ops"
)

func newRebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance <vault>",
		Short: "Move the vault position to a new range",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(true, runRebalance),
	}
	f := cmd.Flags()
	f.String("pool", "", "pool address (defaults to the vault's pool)")
	f.Int32("lower-tick", 0, "lower tick")
	f.Int32("upper-tick", 0, "upper tick")
	f.String("lower-price", "", "lower price (token1 per token0, or per stable when token0 is the stable)")
	f.String("upper-price", "", "upper price")
	f.Bool("floor", false, "floor prices to ticks instead of rounding")
	f.Uint32("fee", 0, "fee tier (defaults to the pool fee)")
	f.String("swap-token-in", "", "token sold by the optional swap leg")
	f.String("swap-amount-in", "", "human amount sold by the swap leg")
	f.String("swap-min-out", "", "human minimum received by the swap leg")
	f.Bool("exit-swap", false, "use unstakeExitSwapAndOpenPancake instead of autoRebalancePancake")
	f.String("router", "", "router for --exit-swap (defaults to the vault router)")
	addTxFlags(f)
	return cmd
}

func rangeInput(cmd *cobra.Command) (ops.RangeInput, error) {
	var in ops.RangeInput
	f := cmd.Flags()
	if f.Changed("lower-tick") || f.Changed("upper-tick") {
		lo, _ := f.GetInt32("lower-tick")
		hi, _ := f.GetInt32("upper-tick")
		in.LowerTick, in.UpperTick = &lo, &hi
	}
	var err error
	if in.LowerPrice, err = optionalDecimal(cmd, "lower-price"); err != nil {
		return in, err
	}
	if in.UpperPrice, err = optionalDecimal(cmd, "upper-price"); err != nil {
		return in, err
	}
	in.Floor, _ = f.GetBool("floor")
	return in, nil
}

func swapLeg(cmd *cobra.Command) (*ops.SwapLeg, error) {
	tokenRaw, _ := cmd.Flags().GetString("swap-token-in")
	if tokenRaw == "" {
		return nil, nil
	}
	token, err := parseAddress(tokenRaw, "swap-token-in")
	if err != nil {
		return nil, err
	}
	amount, err := optionalDecimal(cmd, "swap-amount-in")
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, fmt.Errorf("--swap-amount-in is required with --swap-token-in")
	}
	minOut, err := optionalDecimal(cmd, "swap-min-out")
	if err != nil {
		return nil, err
	}
	return &ops.SwapLeg{TokenIn: token, AmountIn: *amount, MinOut: minOut}, nil
}

func runRebalance(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	vault, err := parseAddress(args[0], "vault")
	if err != nil {
		return err
	}
	rng, err := rangeInput(cmd)
	if err != nil {
		return err
	}
	leg, err := swapLeg(cmd)
	if err != nil {
		return err
	}
	poolRaw, _ := cmd.Flags().GetString("pool")
	pool, err := a.poolOf(ctx, vault, poolRaw)
	if err != nil {
		return err
	}

	req := ops.RebalanceRequest{Vault: vault, Pool: pool, DEX: a.dexFor(a.hint(ctx, vault)), Range: rng, Swap: leg}
	if cmd.Flags().Changed("fee") {
		fee, _ := cmd.Flags().GetUint32("fee")
		req.Fee = &fee
	}

	exitSwap, _ := cmd.Flags().GetBool("exit-swap")
	if !exitSwap {
		tx, resolved, err := a.ops.Rebalance(ctx, req)
		if err != nil {
			return err
		}
		logRange(a, resolved)
		return a.submit(ctx, cmd.OutOrStdout(), tx)
	}

	var router common.Address
	if raw, _ := cmd.Flags().GetString("router"); raw != "" {
		if router, err = parseAddress(raw, "router"); err != nil {
			return err
		}
	}
	tx, resolved, err := a.ops.ExitSwapOpen(ctx, req, router)
	if err != nil {
		return err
	}
	logRange(a, resolved)
	return a.submit(ctx, cmd.OutOrStdout(), tx)
}

func logRange(a *app, r ops.ResolvedRange) {
	a.logger.Info("range resolved",
		zap.Int32("lower", r.Lower),
		zap.Int32("upper", r.Upper),
		zap.Bool("widened", r.Widened),
		zap.Int32("current_tick", r.Pool.Price.Tick),
	)
}

func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest <vault>",
		Short: "Collect pool fees and gauge rewards into the vault",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(true, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			vault, err := parseAddress(args[0], "vault")
			if err != nil {
				return err
			}
			calls, err := a.ops.Harvest(vault, a.dexFor(a.hint(ctx, vault)))
			if err != nil {
				return err
			}
			return a.submit(ctx, cmd.OutOrStdout(), calls...)
		}),
	}
	addTxFlags(cmd.Flags())
	return cmd
}

func newCompoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compound <vault>",
		Short: "Harvest, swap rewards and add everything back to the position",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(true, runCompound),
	}
	f := cmd.Flags()
	f.String("reward-amount-in", "", "raw reward amount to swap (empty swaps the whole balance)")
	f.String("reward-min-out", "", "raw minimum received for the reward swap")
	f.String("amount0-desired", "", "raw token0 to add (empty adds the whole buffer)")
	f.String("amount1-desired", "", "raw token1 to add (empty adds the whole buffer)")
	f.String("amount0-min", "", "raw token0 minimum")
	f.String("amount1-min", "", "raw token1 minimum")
	addTxFlags(f)
	return cmd
}

func runCompound(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	vault, err := parseAddress(args[0], "vault")
	if err != nil {
		return err
	}
	req := ops.CompoundRequest{Vault: vault, DEX: a.dexFor(a.hint(ctx, vault))}
	for name, dst := range map[string]**big.Int{
		"reward-amount-in": &req.RewardAmountIn,
		"reward-min-out":   &req.RewardAmountOutMin,
		"amount0-desired":  &req.Amount0Desired,
		"amount1-desired":  &req.Amount1Desired,
		"amount0-min":      &req.Amount0Min,
		"amount1-min":      &req.Amount1Min,
	} {
		if *dst, err = optionalBig(cmd, name); err != nil {
			return err
		}
	}
	call, err := a.ops.Compound(req)
	if err != nil {
		return err
	}
	return a.submit(ctx, cmd.OutOrStdout(), call)
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap <vault>",
		Short: "Swap vault funds between the two pool tokens",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(true, runSwap),
	}
	f := cmd.Flags()
	f.String("pool", "", "pool address (defaults to the vault's pool)")
	f.String("token-in", "", "token sold")
	f.String("amount-in", "", "human amount sold")
	f.String("min-out", "", "human minimum received (quoted when empty)")
	f.Uint32("slippage-bps", 50, "slippage applied to the quote")
	f.String("router", "", "router (defaults to the vault router)")
	f.String("quoter", "", "QuoterV2 address used when --min-out is empty")
	f.Bool("reward", false, "count the received amount as collected rewards")
	addTxFlags(f)
	return cmd
}

func runSwap(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	vault, err := parseAddress(args[0], "vault")
	if err != nil {
		return err
	}
	f := cmd.Flags()
	tokenRaw, _ := f.GetString("token-in")
	tokenIn, err := parseAddress(tokenRaw, "token-in")
	if err != nil {
		return err
	}
	amount, err := optionalDecimal(cmd, "amount-in")
	if err != nil {
		return err
	}
	if amount == nil {
		zero := decimal.Zero
		amount = &zero
	}
	minOut, err := optionalDecimal(cmd, "min-out")
	if err != nil {
		return err
	}
	slippage, _ := f.GetUint32("slippage-bps")

	req := ops.SwapRequest{Vault: vault, TokenIn: tokenIn, AmountIn: *amount, MinOut: minOut, SlippageBps: slippage}
	if raw, _ := f.GetString("router"); raw != "" {
		if req.Router, err = parseAddress(raw, "router"); err != nil {
			return err
		}
	}
	if a.cfg.Quoter != "" {
		if req.Quoter, err = parseAddress(a.cfg.Quoter, "quoter"); err != nil {
			return err
		}
	}
	poolRaw, _ := f.GetString("pool")
	if req.Pool, err = a.poolOf(ctx, vault, poolRaw); err != nil {
		return err
	}

	plan, err := a.ops.Swap(ctx, req)
	if err != nil {
		return err
	}
	a.logger.Info("swap planned",
		zap.String("token_in", plan.TokenIn.Symbol),
		zap.String("token_out", plan.TokenOut.Symbol),
		zap.String("amount_in_raw", plan.AmountIn.String()),
		zap.String("min_out_raw", plan.MinOut.String()),
	)
	if reward, _ := f.GetBool("reward"); reward {
		return a.submitCollecting(ctx, cmd.OutOrStdout(), rewardCollector(req.Pool, plan), plan.Request)
	}
	return a.submit(ctx, cmd.OutOrStdout(), plan.Request)
}

// rewardCollector records the swap output of plan as collected rewards
// next to any fees the same call collected.
func rewardCollector(pool common.Address, plan ops.SwapPlan) collector {
	return func(events []model.PoolEvent) []model.CollectedAmount {
		amounts := dex.CollectedFees(events)
		out := dex.SwapOutput(events, pool, plan.TokenIn.Address, plan.TokenOut.Address)
		if out.Sign() > 0 {
			amounts = append(amounts, model.CollectedAmount{
				Kind:     model.CollectedReward,
				Ref:      plan.TokenOut.Address,
				Symbol:   plan.TokenOut.Symbol,
				Decimals: plan.TokenOut.Decimals,
				Raw:      out,
			})
		}
		return amounts
	}
}
