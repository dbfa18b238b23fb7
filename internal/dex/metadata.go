package dex

import (
	"fmt"
	"unicode"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

// TokenMetaCalls returns decimals, symbol as string and symbol as bytes32
// for token, in that order.
func TokenMetaCalls(token common.Address) ([]rpcbatch.Call, error) {
	stringABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := ERC20Bytes32ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	decimals, err := rpcbatch.NewCall("decimals", token, stringABI, "decimals")
	if err != nil {
		return nil, err
	}
	symbol, err := rpcbatch.NewCall("symbol", token, stringABI, "symbol")
	if err != nil {
		return nil, err
	}
	symbol32, err := rpcbatch.NewCall("symbol_bytes32", token, bytes32ABI, "symbol")
	if err != nil {
		return nil, err
	}
	return []rpcbatch.Call{decimals, symbol, symbol32}, nil
}

// ParseTokenMeta builds metadata from the results of TokenMetaCalls.
// Decimals are required. A missing or unprintable symbol leaves Symbol empty.
func ParseTokenMeta(token common.Address, results []rpcbatch.Result) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}
	if len(results) != 3 {
		return meta, fmt.Errorf("token meta: expected 3 results, got %d", len(results))
	}
	if !results[0].OK() {
		return meta, results[0].Err
	}
	decimals, err := AsUint8(results[0].Values[0])
	if err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}
	meta.Decimals = decimals

	if results[1].OK() {
		if symbol, ok := results[1].Values[0].(string); ok {
			meta.Symbol = symbol
		}
	}
	if meta.Symbol == "" && results[2].OK() {
		if symbol, ok := BytesToString(results[2].Values[0]); ok && printable(symbol) {
			meta.Symbol = symbol
		}
	}
	return meta, nil
}

func printable(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !unicode.IsPrint(c) || unicode.IsSpace(c) {
			return false
		}
	}
	return true
}

// PoolMetaCalls returns token0, token1, fee and tickSpacing calls for pool.
func PoolMetaCalls(pool common.Address) ([]rpcbatch.Call, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	calls := make([]rpcbatch.Call, 0, 4)
	for _, m := range []struct{ label, method string }{
		{"token0", "token0"},
		{"token1", "token1"},
		{"fee", "fee"},
		{"tick_spacing", "tickSpacing"},
	} {
		call, err := rpcbatch.NewCall(m.label, pool, poolABI, m.method)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// ParsePoolMeta builds pool metadata from the results of PoolMetaCalls.
func ParsePoolMeta(pool common.Address, results []rpcbatch.Result) (model.PoolMeta, error) {
	meta := model.PoolMeta{Address: pool}
	if len(results) != 4 {
		return meta, fmt.Errorf("pool meta: expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.OK() {
			return meta, r.Err
		}
	}

	var err error
	if meta.Token0, err = AsAddress(results[0].Values[0]); err != nil {
		return meta, fmt.Errorf("token0: %w", err)
	}
	if meta.Token1, err = AsAddress(results[1].Values[0]); err != nil {
		return meta, fmt.Errorf("token1: %w", err)
	}
	fee, err := AsUint64(results[2].Values[0])
	if err != nil {
		return meta, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee)
	if meta.TickSpacing, err = AsInt24(results[3].Values[0]); err != nil {
		return meta, fmt.Errorf("tick spacing: %w", err)
	}
	return meta, nil
}

// Slot0Call reads the pool price.
func Slot0Call(pool common.Address) (rpcbatch.Call, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return rpcbatch.Call{}, fmt.Errorf("parse pool abi: %w", err)
	}
	return rpcbatch.NewCall("slot0", pool, poolABI, "slot0")
}

// ParseSlot0 extracts sqrtPriceX96 and tick from a slot0 result.
func ParseSlot0(values []interface{}) (model.PoolPrice, error) {
	if len(values) < 2 {
		return model.PoolPrice{}, fmt.Errorf("slot0: expected at least 2 values, got %d", len(values))
	}
	sqrt, err := AsBigInt(values[0])
	if err != nil {
		return model.PoolPrice{}, fmt.Errorf("sqrtPriceX96: %w", err)
	}
	tick, err := AsInt24(values[1])
	if err != nil {
		return model.PoolPrice{}, fmt.Errorf("tick: %w", err)
	}
	return model.PoolPrice{SqrtPriceX96: sqrt, Tick: tick}, nil
}
