package ops

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/dex"
	"vaultScope/internal/model"
)

// CompoundRequest reinvests fees and rewards. Nil amounts mean "the whole
// vault buffer" and nil minimums mean zero.
type CompoundRequest struct {
	Vault                   common.Address
	DEX                     string
	RewardAmountIn          *big.Int
	RewardAmountOutMin      *big.Int
	RewardSqrtPriceLimitX96 *big.Int
	Amount0Desired          *big.Int
	Amount1Desired          *big.Int
	Amount0Min              *big.Int
	Amount1Min              *big.Int
}

// Harvest pulls pool fees and gauge rewards into the vault without
// compounding. Vaults without the automated entry point get the plain
// collect and claim calls their gauge style supports.
func (s *Service) Harvest(vault common.Address, dexName string) ([]model.CallRequest, error) {
	if vault == (common.Address{}) {
		return nil, ErrInvalidVault
	}
	profile, err := dex.LookupProfile(dexName)
	if err != nil {
		return nil, err
	}

	if profile.AutoPancake {
		params := dex.HarvestCompoundParams{
			HarvestPoolFees:         true,
			HarvestRewards:          true,
			RewardAmountIn:          new(big.Int),
			RewardAmountOutMin:      new(big.Int),
			RewardSqrtPriceLimitX96: new(big.Int),
			Compound0Desired:        new(big.Int),
			Compound1Desired:        new(big.Int),
			Compound0Min:            new(big.Int),
			Compound1Min:            new(big.Int),
		}
		call, err := s.vaultCall("harvest", vault, "autoHarvestAndCompoundPancake", params)
		if err != nil {
			return nil, err
		}
		return []model.CallRequest{call}, nil
	}

	collect, err := s.Collect(vault)
	if err != nil {
		return nil, err
	}
	calls := []model.CallRequest{collect}
	if profile.Gauge != dex.GaugeNone {
		claim, err := s.ClaimRewards(vault)
		if err != nil {
			return nil, err
		}
		calls = append(calls, claim)
	}
	return calls, nil
}

// Compound harvests, swaps rewards and adds everything back to the position.
func (s *Service) Compound(req CompoundRequest) (model.CallRequest, error) {
	if req.Vault == (common.Address{}) {
		return model.CallRequest{}, ErrInvalidVault
	}
	for _, v := range []*big.Int{req.RewardAmountIn, req.RewardAmountOutMin, req.Amount0Desired, req.Amount1Desired, req.Amount0Min, req.Amount1Min} {
		if v != nil && v.Sign() < 0 {
			return model.CallRequest{}, fmt.Errorf("%w: amounts must not be negative", ErrInvalidAmount)
		}
	}
	profile, err := dex.LookupProfile(req.DEX)
	if err != nil {
		return model.CallRequest{}, err
	}
	if !profile.AutoPancake {
		return model.CallRequest{}, fmt.Errorf("%w: %s has no automated compound", ErrUnsupported, profile.Name)
	}

	params := dex.HarvestCompoundParams{
		HarvestPoolFees:         true,
		HarvestRewards:          true,
		SwapRewards:             true,
		RewardAmountIn:          zeroIfNil(req.RewardAmountIn),
		RewardAmountOutMin:      zeroIfNil(req.RewardAmountOutMin),
		RewardSqrtPriceLimitX96: zeroIfNil(req.RewardSqrtPriceLimitX96),
		Compound:                true,
		Compound0Desired:        zeroIfNil(req.Amount0Desired),
		Compound1Desired:        zeroIfNil(req.Amount1Desired),
		Compound0Min:            zeroIfNil(req.Amount0Min),
		Compound1Min:            zeroIfNil(req.Amount1Min),
	}
	return s.vaultCall("compound", req.Vault, "autoHarvestAndCompoundPancake", params)
}
