package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/model"
)

func newRegistryCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "registry",
		Short: "Manage vault wiring hints in Postgres",
	}

	importCmd := &cobra.Command{
		Use:   "import <hints.json>",
		Short: "Upsert vault hints from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(false, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if a.store == nil {
				return fmt.Errorf("pg-dsn is required")
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var hints []model.VaultHint
			if err := json.Unmarshal(raw, &hints); err != nil {
				return fmt.Errorf("decode hints: %w", err)
			}
			for i := range hints {
				if hints[i].ChainID == 0 {
					hints[i].ChainID = a.chainID
				}
			}
			if err := a.store.UpsertVaultHints(ctx, hints); err != nil {
				return err
			}
			a.logger.Info("registry import", zap.Int("hints", len(hints)), zap.String("file", args[0]))
			return nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the vault hints of the connected chain",
		Args:  cobra.NoArgs,
		RunE: withApp(false, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if a.store == nil {
				return fmt.Errorf("pg-dsn is required")
			}
			hints, err := a.store.ListVaultHints(ctx, a.chainID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hints)
		}),
	}

	showCmd := &cobra.Command{
		Use:   "show <vault>",
		Short: "Print the hint of one vault",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(false, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if a.store == nil {
				return fmt.Errorf("pg-dsn is required")
			}
			vault, err := parseAddress(args[0], "vault")
			if err != nil {
				return err
			}
			hint, ok, err := a.store.LoadVaultHint(ctx, a.chainID, vault)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("vault %s not in registry", vault.Hex())
			}
			return printJSON(cmd.OutOrStdout(), hint)
		}),
	}

	root.AddCommand(importCmd, listCmd, showCmd)
	return root
}
