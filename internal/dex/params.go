package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// U128Max is the "collect everything" amount for NFPM collect.
var U128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// AutoRebalanceParams mirrors the autoRebalancePancake params tuple.
type AutoRebalanceParams struct {
	NewLower          *big.Int       `abi:"newLower"`
	NewUpper          *big.Int       `abi:"newUpper"`
	Fee               *big.Int       `abi:"fee"`
	TokenIn           common.Address `abi:"tokenIn"`
	TokenOut          common.Address `abi:"tokenOut"`
	SwapAmountIn      *big.Int       `abi:"swapAmountIn"`
	SwapAmountOutMin  *big.Int       `abi:"swapAmountOutMin"`
	SqrtPriceLimitX96 *big.Int       `abi:"sqrtPriceLimitX96"`
}

// HarvestCompoundParams mirrors the autoHarvestAndCompoundPancake params tuple.
// Zero amounts mean "use the whole buffer" on chain.
type HarvestCompoundParams struct {
	HarvestPoolFees         bool     `abi:"harvestPoolFees"`
	HarvestRewards          bool     `abi:"harvestRewards"`
	SwapRewards             bool     `abi:"swapRewards"`
	RewardAmountIn          *big.Int `abi:"rewardAmountIn"`
	RewardAmountOutMin      *big.Int `abi:"rewardAmountOutMin"`
	RewardSqrtPriceLimitX96 *big.Int `abi:"rewardSqrtPriceLimitX96"`
	Compound                bool     `abi:"compound"`
	Compound0Desired        *big.Int `abi:"compound0Desired"`
	Compound1Desired        *big.Int `abi:"compound1Desired"`
	Compound0Min            *big.Int `abi:"compound0Min"`
	Compound1Min            *big.Int `abi:"compound1Min"`
}

// CollectParams mirrors the NFPM collect params tuple.
type CollectParams struct {
	TokenID    *big.Int       `abi:"tokenId"`
	Recipient  common.Address `abi:"recipient"`
	Amount0Max *big.Int       `abi:"amount0Max"`
	Amount1Max *big.Int       `abi:"amount1Max"`
}

// QuoteParams mirrors the QuoterV2 quoteExactInputSingle params tuple.
type QuoteParams struct {
	TokenIn           common.Address `abi:"tokenIn"`
	TokenOut          common.Address `abi:"tokenOut"`
	AmountIn          *big.Int       `abi:"amountIn"`
	Fee               *big.Int       `abi:"fee"`
	SqrtPriceLimitX96 *big.Int       `abi:"sqrtPriceLimitX96"`
}
