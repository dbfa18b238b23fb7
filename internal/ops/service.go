// Package ops builds the call requests of vault use cases. Builders
// validate their input before any network read and never submit.
package ops

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/dex"
	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

var (
	ErrInvalidRange  = errors.New("invalid range")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidVault  = errors.New("vault address is required")
	ErrUnsupported   = errors.New("operation not supported by dex")
)

// PoolReader resolves pools and stablecoins. status.Aggregator implements it.
type PoolReader interface {
	PoolInfo(ctx context.Context, pool common.Address, fresh bool) (model.PoolInfo, error)
	IsStable(meta model.TokenMeta) bool
}

// Service builds vault transactions.
type Service struct {
	pools  PoolReader
	caller *rpcbatch.Caller
	logger *zap.Logger
	vault  abi.ABI
	quoter abi.ABI
}

func NewService(pools PoolReader, caller *rpcbatch.Caller, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vaultABI, err := dex.ClientVaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	quoterABI, err := dex.QuoterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	return &Service{pools: pools, caller: caller, logger: logger, vault: vaultABI, quoter: quoterABI}, nil
}

func (s *Service) vaultCall(label string, vault common.Address, method string, args ...interface{}) (model.CallRequest, error) {
	if vault == (common.Address{}) {
		return model.CallRequest{}, ErrInvalidVault
	}
	data, err := s.vault.Pack(method, args...)
	if err != nil {
		return model.CallRequest{}, fmt.Errorf("pack %s: %w", method, err)
	}
	to := vault
	return model.CallRequest{Label: label, To: &to, Data: data}, nil
}

// ToRaw converts a human amount to base units, truncating extra precision.
func ToRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Floor().BigInt()
}

func positiveRaw(amount decimal.Decimal, decimals uint8, what string) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidAmount, what, amount.String())
	}
	raw := ToRaw(amount, decimals)
	if raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s %s is below one base unit", ErrInvalidAmount, what, amount.String())
	}
	return raw, nil
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
