package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// CallRequest describes a contract call or deployment to submit.
// A nil To means contract creation.
type CallRequest struct {
	Label                string
	To                   *common.Address
	Data                 []byte
	Value                *big.Int
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// IsDeploy reports whether the request creates a contract.
func (r CallRequest) IsDeploy() bool {
	return r.To == nil
}

// DynamicFee reports whether the request carries its own EIP-1559 fee pair.
func (r CallRequest) DynamicFee() bool {
	return r.MaxFeePerGas != nil && r.MaxPriorityFeePerGas != nil
}

// GasBudget is the USD ceiling check applied before signing.
type GasBudget struct {
	MaxUSD       *decimal.Decimal `json:"max_usd,omitempty"`
	EthUSDHint   *decimal.Decimal `json:"eth_usd_hint,omitempty"`
	EstimatedUSD *decimal.Decimal `json:"estimated_usd,omitempty"`
	Exceeded     bool             `json:"exceeded"`
}

// TransactionOutcome is the result of one submission attempt.
type TransactionOutcome struct {
	AttemptID            string           `json:"attempt_id"`
	Label                string           `json:"label"`
	ChainID              uint64           `json:"chain_id"`
	From                 common.Address   `json:"from"`
	To                   *common.Address  `json:"to,omitempty"`
	Nonce                uint64           `json:"nonce"`
	Hash                 common.Hash      `json:"tx_hash"`
	Broadcasted          bool             `json:"broadcasted"`
	MinedStatus          *uint64          `json:"mined_status,omitempty"`
	GasLimit             uint64           `json:"gas_limit"`
	GasUsed              uint64           `json:"gas_used"`
	GasPriceWei          *big.Int         `json:"gas_price_wei,omitempty"`
	EffectiveGasPriceWei *big.Int         `json:"effective_gas_price_wei,omitempty"`
	CostEth              *decimal.Decimal `json:"cost_eth,omitempty"`
	CostUSD              *decimal.Decimal `json:"cost_usd,omitempty"`
	Budget               GasBudget        `json:"budget"`
	ContractAddress      *common.Address  `json:"contract_address,omitempty"`
	Receipt              *types.Receipt   `json:"receipt,omitempty"`
	SubmittedAt          time.Time        `json:"submitted_at"`
}

// State names the terminal state of an outcome.
func (o TransactionOutcome) State() string {
	switch {
	case !o.Broadcasted:
		return "not_broadcast"
	case o.MinedStatus == nil:
		return "pending"
	case *o.MinedStatus == types.ReceiptStatusSuccessful:
		return "mined_success"
	default:
		return "mined_reverted"
	}
}
