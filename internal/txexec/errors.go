package txexec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
)

var (
	ErrNoSigner    = errors.New("no signing key configured")
	ErrInvalidCall = errors.New("invalid call request")
)

// BudgetExceededError is returned before signing when the estimated gas
// cost is above the USD ceiling, or when no ETH/USD hint was available.
type BudgetExceededError struct {
	GasLimit     uint64
	GasPriceWei  *big.Int
	EthUSD       *decimal.Decimal
	EstimatedUSD *decimal.Decimal
	BudgetUSD    decimal.Decimal
	Budget       model.GasBudget
}

func (e *BudgetExceededError) Error() string {
	if e.EstimatedUSD == nil {
		return fmt.Sprintf("gas budget %s USD requires an ETH/USD price hint", e.BudgetUSD.String())
	}
	return fmt.Sprintf("gas budget exceeded: estimated %s USD > budget %s USD (gas %d at %s wei)",
		e.EstimatedUSD.StringFixed(4), e.BudgetUSD.String(), e.GasLimit, e.GasPriceWei.String())
}

// RevertedError is returned when a transaction was mined with status 0.
type RevertedError struct {
	TxHash  common.Hash
	Receipt *types.Receipt
	Outcome model.TransactionOutcome
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %s", e.TxHash.Hex(), blockOf(e.Receipt))
}

func blockOf(r *types.Receipt) string {
	if r == nil || r.BlockNumber == nil {
		return "unknown"
	}
	return r.BlockNumber.String()
}
