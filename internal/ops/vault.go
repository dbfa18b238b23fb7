package ops

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

// AutomationConfig is the vault's on-chain automation policy.
type AutomationConfig struct {
	CooldownSec    uint32
	MaxSlippageBps uint16
	AllowSwap      bool
}

// Collect moves uncollected pool fees into the vault.
func (s *Service) Collect(vault common.Address) (model.CallRequest, error) {
	return s.vaultCall("collect", vault, "collectToVault")
}

// Exit closes the position and keeps the tokens in the vault.
func (s *Service) Exit(vault common.Address) (model.CallRequest, error) {
	return s.vaultCall("exit", vault, "exitPositionToVault")
}

// WithdrawAll closes the position and sends every balance to to.
func (s *Service) WithdrawAll(vault, to common.Address) (model.CallRequest, error) {
	if to == (common.Address{}) {
		return model.CallRequest{}, fmt.Errorf("%w: withdraw recipient is required", ErrInvalidAmount)
	}
	return s.vaultCall("withdraw_all", vault, "exitPositionAndWithdrawAll", to)
}

func (s *Service) Stake(vault common.Address) (model.CallRequest, error) {
	return s.vaultCall("stake", vault, "stake")
}

func (s *Service) Unstake(vault common.Address) (model.CallRequest, error) {
	return s.vaultCall("unstake", vault, "unstake")
}

func (s *Service) ClaimRewards(vault common.Address) (model.CallRequest, error) {
	return s.vaultCall("claim_rewards", vault, "claimRewards")
}

func (s *Service) SetAutomationEnabled(vault common.Address, enabled bool) (model.CallRequest, error) {
	return s.vaultCall("set_automation_enabled", vault, "setAutomationEnabled", enabled)
}

func (s *Service) SetAutomationConfig(vault common.Address, cfg AutomationConfig) (model.CallRequest, error) {
	if cfg.MaxSlippageBps > maxBps {
		return model.CallRequest{}, fmt.Errorf("%w: slippage %d bps above %d", ErrInvalidAmount, cfg.MaxSlippageBps, maxBps)
	}
	return s.vaultCall("set_automation_config", vault, "setAutomationConfig", cfg.CooldownSec, cfg.MaxSlippageBps, cfg.AllowSwap)
}
