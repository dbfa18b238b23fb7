package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/scheduler"
	"vaultScope/internal/txexec"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the harvest and compound jobs from the config file",
		RunE:  withApp(true, runSchedule),
	}
	cmd.Flags().String("run-now", "", "run one job immediately and exit")
	addTxFlags(cmd.Flags())
	return cmd
}

func toJob(jc config.JobConfig, defaultDEX string) (scheduler.Job, error) {
	vault, err := parseAddress(jc.Vault, "job "+jc.Name+" vault")
	if err != nil {
		return scheduler.Job{}, err
	}
	job := scheduler.Job{
		Name:     jc.Name,
		Vault:    vault,
		DEX:      jc.DEX,
		Kind:     scheduler.Kind(jc.Kind),
		Schedule: jc.Schedule,
		Strategy: txexec.GasStrategy(jc.Strategy),
	}
	if job.DEX == "" {
		job.DEX = defaultDEX
	}
	if jc.MaxGasUSD != "" {
		d, err := decimal.NewFromString(jc.MaxGasUSD)
		if err != nil {
			return scheduler.Job{}, fmt.Errorf("job %s max-gas-usd: %w", jc.Name, err)
		}
		job.MaxGasUSD = &d
	}
	return job, nil
}

func runSchedule(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
	if len(a.cfg.Jobs) == 0 {
		return fmt.Errorf("no jobs configured")
	}
	opts := scheduler.Options{Metrics: a.metrics, EthUSD: a.ethUSD}
	if a.store != nil {
		opts.State = a.store
	}
	s := scheduler.New(a.ops, accountingSubmitter{a}, opts, a.logger)
	for _, jc := range a.cfg.Jobs {
		job, err := toJob(jc, a.cfg.DEX)
		if err != nil {
			return err
		}
		if err := s.Add(ctx, job); err != nil {
			return err
		}
	}

	if name, _ := cmd.Flags().GetString("run-now"); name != "" {
		outcomes, err := s.RunNow(ctx, name)
		for _, o := range outcomes {
			if perr := printJSON(cmd.OutOrStdout(), a.report(o)); perr != nil {
				return perr
			}
		}
		return classify(err)
	}

	for name, next := range s.Next() {
		a.logger.Info("next run", zap.String("job", name), zap.Time("at", next))
	}
	s.Start()
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}
