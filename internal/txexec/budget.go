package txexec

import (
	"math/big"

	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
)

// weiToEth converts wei to ether.
func weiToEth(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

// gasCostEth is gasLimit * gasPrice in ether.
func gasCostEth(gas uint64, priceWei *big.Int) decimal.Decimal {
	if priceWei == nil {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gas), priceWei)
	return weiToEth(wei)
}

// CheckBudget estimates the USD cost of gas and enforces maxUSD. Without a
// ceiling it only reports the estimate. With a ceiling but no positive
// hint it fails safe.
func CheckBudget(gasLimit uint64, gasPriceWei *big.Int, maxUSD, ethUSD *decimal.Decimal) (model.GasBudget, error) {
	budget := model.GasBudget{MaxUSD: maxUSD, EthUSDHint: ethUSD}
	hinted := ethUSD != nil && ethUSD.IsPositive()
	if hinted {
		est := gasCostEth(gasLimit, gasPriceWei).Mul(*ethUSD)
		budget.EstimatedUSD = &est
	}
	if maxUSD == nil {
		return budget, nil
	}

	if !hinted || budget.EstimatedUSD.GreaterThan(*maxUSD) {
		budget.Exceeded = true
		return budget, &BudgetExceededError{
			GasLimit:     gasLimit,
			GasPriceWei:  gasPriceWei,
			EthUSD:       ethUSD,
			EstimatedUSD: budget.EstimatedUSD,
			BudgetUSD:    *maxUSD,
			Budget:       budget,
		}
	}
	return budget, nil
}
