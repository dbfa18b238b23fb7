package main

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"vaultScope/internal/model"
	"vaultScope/internal/ops"
)

func newVaultCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vault",
		Short: "Direct vault maintenance calls",
	}

	simple := []struct {
		use   string
		short string
		build func(s *ops.Service, vault common.Address) (model.CallRequest, error)
	}{
		{"collect <vault>", "Collect pool fees into the vault", (*ops.Service).Collect},
		{"exit <vault>", "Close the position, keeping tokens in the vault", (*ops.Service).Exit},
		{"stake <vault>", "Stake the position in its gauge", (*ops.Service).Stake},
		{"unstake <vault>", "Unstake the position from its gauge", (*ops.Service).Unstake},
		{"claim <vault>", "Claim gauge rewards into the vault", (*ops.Service).ClaimRewards},
	}
	for _, sc := range simple {
		build := sc.build
		cmd := &cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.ExactArgs(1),
			RunE: withApp(true, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				vault, err := parseAddress(args[0], "vault")
				if err != nil {
					return err
				}
				req, err := build(a.ops, vault)
				if err != nil {
					return err
				}
				return a.submit(ctx, cmd.OutOrStdout(), req)
			}),
		}
		addTxFlags(cmd.Flags())
		root.AddCommand(cmd)
	}

	root.AddCommand(newWithdrawAllCmd(), newAutomationEnabledCmd(), newAutomationConfigCmd())
	return root
}

func newWithdrawAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw-all <vault> <to>",
		Short: "Close the position and send every balance to an address",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(true, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			vault, err := parseAddress(args[0], "vault")
			if err != nil {
				return err
			}
			to, err := parseAddress(args[1], "recipient")
			if err != nil {
				return err
			}
			req, err := a.ops.WithdrawAll(vault, to)
			if err != nil {
				return err
			}
			return a.submit(ctx, cmd.OutOrStdout(), req)
		}),
	}
	addTxFlags(cmd.Flags())
	return cmd
}

func newAutomationEnabledCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automation-enabled <vault> <true|false>",
		Short: "Turn vault automation on or off",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(true, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			vault, err := parseAddress(args[0], "vault")
			if err != nil {
				return err
			}
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			req, err := a.ops.SetAutomationEnabled(vault, enabled)
			if err != nil {
				return err
			}
			return a.submit(ctx, cmd.OutOrStdout(), req)
		}),
	}
	addTxFlags(cmd.Flags())
	return cmd
}

func newAutomationConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automation-config <vault>",
		Short: "Set the vault automation cooldown, slippage and swap policy",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(true, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			vault, err := parseAddress(args[0], "vault")
			if err != nil {
				return err
			}
			f := cmd.Flags()
			var cfg ops.AutomationConfig
			cfg.CooldownSec, _ = f.GetUint32("cooldown-sec")
			cfg.MaxSlippageBps, _ = f.GetUint16("max-slippage-bps")
			cfg.AllowSwap, _ = f.GetBool("allow-swap")
			req, err := a.ops.SetAutomationConfig(vault, cfg)
			if err != nil {
				return err
			}
			return a.submit(ctx, cmd.OutOrStdout(), req)
		}),
	}
	f := cmd.Flags()
	f.Uint32("cooldown-sec", 3600, "minimum seconds between automated rebalances")
	f.Uint16("max-slippage-bps", 50, "maximum swap slippage in basis points")
	f.Bool("allow-swap", true, "allow automated swaps")
	addTxFlags(f)
	return cmd
}
