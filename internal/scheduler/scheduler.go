// Package scheduler runs harvest and compound jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
	"vaultScope/internal/ops"
	"vaultScope/internal/txexec"
)

// Builder produces the calls a job submits. ops.Service implements it.
type Builder interface {
	Harvest(vault common.Address, dexName string) ([]model.CallRequest, error)
	Compound(req ops.CompoundRequest) (model.CallRequest, error)
}

// Submitter sends one call. txexec.Engine implements it.
type Submitter interface {
	Submit(ctx context.Context, req model.CallRequest, opts txexec.Options) (model.TransactionOutcome, error)
}

// StateStore remembers when each job last finished successfully.
type StateStore interface {
	LoadJobState(ctx context.Context, name string) (time.Time, bool, error)
	SaveJobState(ctx context.Context, name string, at time.Time) error
}

// HintFunc returns the current ETH/USD price for gas budgets.
type HintFunc func(ctx context.Context) (decimal.Decimal, error)

type Options struct {
	State   StateStore
	EthUSD  HintFunc
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Scheduler owns a cron instance and the registered jobs.
type Scheduler struct {
	cron    *cron.Cron
	builder Builder
	submit  Submitter
	opts    Options
	logger  *zap.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

func New(builder Builder, submit Submitter, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		builder: builder,
		submit:  submit,
		opts:    opts,
		logger:  logger,
		jobs:    make(map[string]Job),
	}
}

// Add validates and registers a job. Job names must be unique.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("%w: duplicate name %s", ErrInvalidJob, job.Name)
	}
	if _, err := s.cron.AddFunc(job.Schedule, func() {
		_, _ = s.run(ctx, job)
	}); err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = job

	fields := []zap.Field{zap.String("job", job.Name), zap.String("schedule", job.Schedule)}
	if s.opts.State != nil {
		last, ok, err := s.opts.State.LoadJobState(ctx, job.Name)
		if err != nil {
			s.logger.Warn("job state unavailable", zap.String("job", job.Name), zap.Error(err))
		} else if ok {
			fields = append(fields, zap.Time("last_run", last))
		}
	}
	s.logger.Info("job registered", fields...)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and returns a context done when running jobs end.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("scheduler stopped")
	return ctx
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) ([]model.TransactionOutcome, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", name)
	}
	return s.run(ctx, job)
}

// Next returns the next activation of every job.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.jobs))
	now := s.opts.Now()
	for name, job := range s.jobs {
		sched, err := Parser.Parse(job.Schedule)
		if err != nil {
			continue
		}
		out[name] = sched.Next(now)
	}
	return out
}

func (s *Scheduler) calls(job Job) ([]model.CallRequest, error) {
	switch job.Kind {
	case KindCompound:
		call, err := s.builder.Compound(ops.CompoundRequest{Vault: job.Vault, DEX: job.DEX})
		if err != nil {
			return nil, err
		}
		return []model.CallRequest{call}, nil
	default:
		return s.builder.Harvest(job.Vault, job.DEX)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) ([]model.TransactionOutcome, error) {
	log := s.logger.With(zap.String("job", job.Name), zap.String("kind", string(job.Kind)), zap.String("vault", job.Vault.Hex()))
	start := s.opts.Now()

	outcomes, err := s.execute(ctx, job, log)
	s.opts.Metrics.JobRun(job.Name, err == nil)
	if err != nil {
		log.Error("job failed", zap.Int("submitted", len(outcomes)), zap.Error(err))
		return outcomes, err
	}

	if s.opts.State != nil {
		if err := s.opts.State.SaveJobState(ctx, job.Name, start); err != nil {
			log.Warn("save job state failed", zap.Error(err))
		}
	}
	log.Info("job done", zap.Int("submitted", len(outcomes)), zap.Duration("elapsed", s.opts.Now().Sub(start)))
	return outcomes, nil
}

func (s *Scheduler) execute(ctx context.Context, job Job, log *zap.Logger) ([]model.TransactionOutcome, error) {
	calls, err := s.calls(job)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", job.Kind, err)
	}

	opts := txexec.Options{Strategy: job.Strategy, Wait: true, MaxGasUSD: job.MaxGasUSD}
	if job.MaxGasUSD != nil && s.opts.EthUSD != nil {
		hint, err := s.opts.EthUSD(ctx)
		if err != nil {
			log.Warn("eth/usd hint unavailable, budget check will refuse", zap.Error(err))
		} else {
			opts.EthUSDHint = &hint
		}
	}

	outcomes := make([]model.TransactionOutcome, 0, len(calls))
	for _, call := range calls {
		call.Label = job.Name + ":" + call.Label
		outcome, err := s.submit.Submit(ctx, call, opts)
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, fmt.Errorf("submit %s: %w", call.Label, err)
		}
		log.Info("job tx mined",
			zap.String("label", call.Label),
			zap.String("tx_hash", outcome.Hash.Hex()),
			zap.String("state", outcome.State()),
			zap.Uint64("gas_used", outcome.GasUsed),
		)
	}
	return outcomes, nil
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.s.Debugw(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}
