package status

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/dex"
)

type gaugeInput struct {
	gauge   common.Address
	adapter common.Address
	tokenID *big.Int
}

type gaugeReading struct {
	style   dex.GaugeStyle
	pending *big.Int
	token   common.Address
}

func (g gaugeReading) ok() bool {
	return g.pending != nil && g.token != (common.Address{})
}

// gaugeReader plans the pending-reward reads of one gauge interface.
type gaugeReader interface {
	plan(p *plan, in gaugeInput, out *gaugeReading)
}

// masterChefGauge reads pendingCake(tokenId) and CAKE().
type masterChefGauge struct {
	abi abi.ABI
}

func (g masterChefGauge) plan(p *plan, in gaugeInput, out *gaugeReading) {
	out.style = dex.GaugeMasterChef
	p.call("reward_pending", in.gauge, g.abi, "pendingCake", bigInto(&out.pending), in.tokenID)
	p.call("reward_token", in.gauge, g.abi, "CAKE", addressInto(&out.token))
}

// earnedGauge reads earned(adapter, tokenId) and rewardToken().
type earnedGauge struct {
	abi abi.ABI
}

func (g earnedGauge) plan(p *plan, in gaugeInput, out *gaugeReading) {
	out.style = dex.GaugeEarned
	p.call("reward_pending", in.gauge, g.abi, "earned", bigInto(&out.pending), in.adapter, in.tokenID)
	p.call("reward_token", in.gauge, g.abi, "rewardToken", addressInto(&out.token))
}

type noGauge struct{}

func (noGauge) plan(*plan, gaugeInput, *gaugeReading) {}

func (a *Aggregator) gaugeFor(style dex.GaugeStyle, gauge common.Address) gaugeReader {
	if gauge == (common.Address{}) {
		return noGauge{}
	}
	switch style {
	case dex.GaugeMasterChef:
		return masterChefGauge{abi: a.abis.masterChef}
	case dex.GaugeEarned:
		return earnedGauge{abi: a.abis.earned}
	default:
		return noGauge{}
	}
}
