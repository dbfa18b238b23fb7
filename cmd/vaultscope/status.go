package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/status"
)

type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

// withApp builds the app for a command and tears it down afterwards.
func withApp(withSigner bool, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cmd, withSigner)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, a, args)
	}
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <vault>",
		Short: "Print a vault status snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(false, runStatus),
	}
	cmd.Flags().Bool("fresh", false, "bypass every cache tier")
	cmd.Flags().Bool("diagnostics", false, "include degraded fields, round trips and step timings")
	cmd.Flags().Duration("watch", 0, "repeat the snapshot at this interval until interrupted")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	vault, err := parseAddress(args[0], "vault")
	if err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetDuration("watch")
	hint := a.hint(ctx, vault)
	q := status.Query{
		Vault:       vault,
		DEX:         a.dexFor(hint),
		Hint:        hint,
		Fresh:       a.cfg.Fresh,
		Diagnostics: a.cfg.Diagnostics,
	}

	once := func() error {
		q.Collected = a.collected(ctx, vault)
		snap, err := a.agg.Snapshot(ctx, q)
		if err != nil {
			return err
		}
		if snap.Diag != nil && len(snap.Diag.Degraded) > 0 {
			a.logger.Warn("snapshot degraded", zap.Int("fields", len(snap.Diag.Degraded)))
		}
		return printJSON(cmd.OutOrStdout(), snap)
	}
	if err := once(); err != nil || watch <= 0 {
		return err
	}

	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := once(); err != nil {
				a.logger.Warn("snapshot failed", zap.Error(err))
			}
			a.logger.Debug("cache purged", zap.Int("entries", a.agg.Tiers().Purge()))
		}
	}
}
