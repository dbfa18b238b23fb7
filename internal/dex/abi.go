package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// lazyABI parses its JSON once on first use.
type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

const v3PoolABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"internalType": "int24", "name": "", "type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidity", "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint32", "name": "feeProtocol", "type": "uint32"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "amount0", "type": "int256"},
      {"indexed": false, "name": "amount1", "type": "int256"},
      {"indexed": false, "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "sender", "type": "address"},
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": true, "name": "tickLower", "type": "int24"},
      {"indexed": true, "name": "tickUpper", "type": "int24"},
      {"indexed": false, "name": "amount", "type": "uint128"},
      {"indexed": false, "name": "amount0", "type": "uint256"},
      {"indexed": false, "name": "amount1", "type": "uint256"}
    ],
    "name": "Mint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": true, "name": "tickLower", "type": "int24"},
      {"indexed": true, "name": "tickUpper", "type": "int24"},
      {"indexed": false, "name": "amount", "type": "uint128"},
      {"indexed": false, "name": "amount0", "type": "uint256"},
      {"indexed": false, "name": "amount1", "type": "uint256"}
    ],
    "name": "Burn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": false, "name": "recipient", "type": "address"},
      {"indexed": true, "name": "tickLower", "type": "int24"},
      {"indexed": true, "name": "tickUpper", "type": "int24"},
      {"indexed": false, "name": "amount0", "type": "uint128"},
      {"indexed": false, "name": "amount1", "type": "uint128"}
    ],
    "name": "Collect",
    "type": "event"
  }
]`

// The vault exposes wiring views, state views and the automation entry points.
const clientVaultABIJSON = `[
  {"inputs": [], "name": "owner", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "executor", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "adapter", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "dexRouter", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "feeCollector", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "strategyId", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "positionTokenId", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "lastRebalanceTs", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "cooldownSec", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tokens", "outputs": [{"type": "address"}, {"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "enabled", "type": "bool"}], "name": "setAutomationEnabled", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "cooldownSec", "type": "uint32"}, {"name": "maxSlippageBps", "type": "uint16"}, {"name": "allowSwap", "type": "bool"}], "name": "setAutomationConfig", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "collectToVault", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "exitPositionToVault", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "to", "type": "address"}], "name": "exitPositionAndWithdrawAll", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "stake", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "unstake", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "claimRewards", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {
    "inputs": [
      {"name": "router", "type": "address"},
      {"name": "tokenIn", "type": "address"},
      {"name": "tokenOut", "type": "address"},
      {"name": "fee", "type": "uint24"},
      {"name": "amountIn", "type": "uint256"},
      {"name": "amountOutMinimum", "type": "uint256"},
      {"name": "sqrtPriceLimitX96", "type": "uint160"}
    ],
    "name": "swapExactIn",
    "outputs": [{"name": "amountOut", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "router", "type": "address"},
      {"name": "tokenIn", "type": "address"},
      {"name": "tokenOut", "type": "address"},
      {"name": "fee", "type": "uint24"},
      {"name": "amountIn", "type": "uint256"},
      {"name": "amountOutMinimum", "type": "uint256"},
      {"name": "sqrtPriceLimitX96", "type": "uint160"},
      {"name": "lower", "type": "int24"},
      {"name": "upper", "type": "int24"}
    ],
    "name": "unstakeExitSwapAndOpenPancake",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{
      "name": "params",
      "type": "tuple",
      "components": [
        {"name": "newLower", "type": "int24"},
        {"name": "newUpper", "type": "int24"},
        {"name": "fee", "type": "uint24"},
        {"name": "tokenIn", "type": "address"},
        {"name": "tokenOut", "type": "address"},
        {"name": "swapAmountIn", "type": "uint256"},
        {"name": "swapAmountOutMin", "type": "uint256"},
        {"name": "sqrtPriceLimitX96", "type": "uint160"}
      ]
    }],
    "name": "autoRebalancePancake",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{
      "name": "params",
      "type": "tuple",
      "components": [
        {"name": "harvestPoolFees", "type": "bool"},
        {"name": "harvestRewards", "type": "bool"},
        {"name": "swapRewards", "type": "bool"},
        {"name": "rewardAmountIn", "type": "uint256"},
        {"name": "rewardAmountOutMin", "type": "uint256"},
        {"name": "rewardSqrtPriceLimitX96", "type": "uint160"},
        {"name": "compound", "type": "bool"},
        {"name": "compound0Desired", "type": "uint256"},
        {"name": "compound1Desired", "type": "uint256"},
        {"name": "compound0Min", "type": "uint256"},
        {"name": "compound1Min", "type": "uint256"}
      ]
    }],
    "name": "autoHarvestAndCompoundPancake",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const clAdapterABIJSON = `[
  {"inputs": [], "name": "pool", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "nfpm", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "gauge", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tokens", "outputs": [{"type": "address"}, {"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "slot0", "outputs": [{"type": "uint160"}, {"type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "vault", "type": "address"}], "name": "currentTokenId", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const nfpmABIJSON = `[
  {
    "inputs": [{"name": "tokenId", "type": "uint256"}],
    "name": "positions",
    "outputs": [
      {"name": "nonce", "type": "uint96"},
      {"name": "operator", "type": "address"},
      {"name": "token0", "type": "address"},
      {"name": "token1", "type": "address"},
      {"name": "fee", "type": "uint24"},
      {"name": "tickLower", "type": "int24"},
      {"name": "tickUpper", "type": "int24"},
      {"name": "liquidity", "type": "uint128"},
      {"name": "feeGrowthInside0LastX128", "type": "uint256"},
      {"name": "feeGrowthInside1LastX128", "type": "uint256"},
      {"name": "tokensOwed0", "type": "uint128"},
      {"name": "tokensOwed1", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {"inputs": [{"name": "tokenId", "type": "uint256"}], "name": "ownerOf", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{
      "name": "params",
      "type": "tuple",
      "components": [
        {"name": "tokenId", "type": "uint256"},
        {"name": "recipient", "type": "address"},
        {"name": "amount0Max", "type": "uint128"},
        {"name": "amount1Max", "type": "uint128"}
      ]
    }],
    "name": "collect",
    "outputs": [{"name": "amount0", "type": "uint256"}, {"name": "amount1", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const masterChefV3ABIJSON = `[
  {"inputs": [{"name": "tokenId", "type": "uint256"}], "name": "pendingCake", "outputs": [{"name": "reward", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "CAKE", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const earnedGaugeABIJSON = `[
  {"inputs": [{"name": "account", "type": "address"}, {"name": "tokenId", "type": "uint256"}], "name": "earned", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "rewardToken", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const quoterV2ABIJSON = `[
  {
    "inputs": [{
      "name": "params",
      "type": "tuple",
      "components": [
        {"name": "tokenIn", "type": "address"},
        {"name": "tokenOut", "type": "address"},
        {"name": "amountIn", "type": "uint256"},
        {"name": "fee", "type": "uint24"},
        {"name": "sqrtPriceLimitX96", "type": "uint160"}
      ]
    }],
    "name": "quoteExactInputSingle",
    "outputs": [
      {"name": "amountOut", "type": "uint256"},
      {"name": "sqrtPriceX96After", "type": "uint160"},
      {"name": "initializedTicksCrossed", "type": "uint32"},
      {"name": "gasEstimate", "type": "uint256"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	v3PoolABI       = &lazyABI{json: v3PoolABIJSON}
	clientVaultABI  = &lazyABI{json: clientVaultABIJSON}
	clAdapterABI    = &lazyABI{json: clAdapterABIJSON}
	nfpmABI         = &lazyABI{json: nfpmABIJSON}
	masterChefV3ABI = &lazyABI{json: masterChefV3ABIJSON}
	earnedGaugeABI  = &lazyABI{json: earnedGaugeABIJSON}
	quoterV2ABI     = &lazyABI{json: quoterV2ABIJSON}
)

// V3PoolABI returns the parsed V3 pool ABI.
func V3PoolABI() (abi.ABI, error) { return v3PoolABI.get() }

// ClientVaultABI returns the parsed vault ABI.
func ClientVaultABI() (abi.ABI, error) { return clientVaultABI.get() }

// CLAdapterABI returns the parsed concentrated-liquidity adapter ABI.
func CLAdapterABI() (abi.ABI, error) { return clAdapterABI.get() }

// NFPMABI returns the parsed position manager ABI.
func NFPMABI() (abi.ABI, error) { return nfpmABI.get() }

// MasterChefV3ABI returns the parsed pending-reward gauge ABI.
func MasterChefV3ABI() (abi.ABI, error) { return masterChefV3ABI.get() }

// EarnedGaugeABI returns the parsed earned-balance gauge ABI.
func EarnedGaugeABI() (abi.ABI, error) { return earnedGaugeABI.get() }

// QuoterV2ABI returns the parsed quoter ABI.
func QuoterV2ABI() (abi.ABI, error) { return quoterV2ABI.get() }
