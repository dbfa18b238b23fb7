package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vaultscope",
		Short:        "Concentrated-liquidity vault status and operations",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "", "RPC URL")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("dex", "pancake_v3", "dex profile (pancake_v3, uniswap_v3, aerodrome)")
	pf.String("pg-dsn", "", "Postgres DSN for the vault registry and outcome journal")
	pf.String("journal", "./data/tx_outcomes.jsonl", "JSONL journal of transaction outcomes (empty disables)")
	pf.StringSlice("stable-tokens", nil, "stablecoin addresses (comma-separated)")
	pf.StringSlice("stable-symbols", nil, "stablecoin symbols (comma-separated)")
	pf.String("swap-pools", "", "reference pools for reward pricing (comma-separated NAME=address)")
	pf.String("metrics-addr", "", "serve prometheus metrics on this address")
	pf.Int("max-retries", 5, "maximum retry attempts for pre-sign reads")
	pf.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	pf.Bool("no-batch", false, "send eth_call one by one instead of batching")

	root.AddCommand(
		newStatusCmd(),
		newRebalanceCmd(),
		newHarvestCmd(),
		newCompoundCmd(),
		newSwapCmd(),
		newVaultCmd(),
		newDeployCmd(),
		newScheduleCmd(),
		newRegistryCmd(),
	)
	return root
}

func addTxFlags(fs *pflag.FlagSet) {
	fs.String("private-key", "", "hex signer key (prefer VAULTSCOPE_PRIVATE_KEY or .env)")
	fs.String("gas-strategy", "default", "gas padding (default, buffered, aggressive)")
	fs.String("max-gas-usd", "", "refuse to sign when the estimated gas cost exceeds this USD amount")
	fs.String("eth-usd", "", "ETH/USD price for the gas budget")
	fs.String("eth-usd-pool", "", "WETH/stable pool used to derive ETH/USD when eth-usd is unset")
	fs.Bool("wait", true, "wait for the receipt")
	fs.Duration("wait-timeout", 3*time.Minute, "receipt wait timeout")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
