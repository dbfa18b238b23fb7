package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"vaultScope/internal/dex"
	"vaultScope/internal/txexec"
)

// Kind selects what a job submits.
type Kind string

const (
	KindHarvest  Kind = "harvest"
	KindCompound Kind = "compound"
)

var ErrInvalidJob = errors.New("invalid job")

// Job is one scheduled vault maintenance task.
type Job struct {
	Name      string
	Vault     common.Address
	DEX       string
	Kind      Kind
	Schedule  string
	Strategy  txexec.GasStrategy
	MaxGasUSD *decimal.Decimal
}

// Parser accepts five-field specs, six-field specs with leading seconds,
// and descriptors such as @every 1h.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks a job and normalizes its kind, DEX and strategy.
func (j *Job) Validate() error {
	j.Name = strings.TrimSpace(j.Name)
	if j.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidJob)
	}
	if j.Vault == (common.Address{}) {
		return fmt.Errorf("%w: %s: vault required", ErrInvalidJob, j.Name)
	}
	switch k := Kind(strings.ToLower(strings.TrimSpace(string(j.Kind)))); k {
	case KindHarvest, KindCompound:
		j.Kind = k
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidJob, j.Name, j.Kind)
	}
	profile, err := dex.LookupProfile(j.DEX)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidJob, j.Name, err)
	}
	j.DEX = profile.Name
	if j.Kind == KindCompound && !profile.AutoPancake {
		return fmt.Errorf("%w: %s: %s vaults cannot compound", ErrInvalidJob, j.Name, profile.Name)
	}
	if _, err := Parser.Parse(j.Schedule); err != nil {
		return fmt.Errorf("%w: %s: schedule %q: %v", ErrInvalidJob, j.Name, j.Schedule, err)
	}
	strategy, err := txexec.ParseGasStrategy(string(j.Strategy))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidJob, j.Name, err)
	}
	j.Strategy = strategy
	if j.MaxGasUSD != nil && !j.MaxGasUSD.IsPositive() {
		return fmt.Errorf("%w: %s: max gas usd must be positive", ErrInvalidJob, j.Name)
	}
	return nil
}
