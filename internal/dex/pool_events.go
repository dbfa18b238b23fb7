package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/model"
)

// PoolEventDecoder recognizes Swap, Mint, Burn and Collect logs emitted by
// V3-style pools.
type PoolEventDecoder struct {
	poolABI abi.ABI
	byTopic map[common.Hash]abi.Event
}

// NewPoolEventDecoder builds a decoder over the pool ABI events.
func NewPoolEventDecoder() (*PoolEventDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	byTopic := make(map[common.Hash]abi.Event, 4)
	for _, name := range []string{"Swap", "Mint", "Burn", "Collect"} {
		event, ok := poolABI.Events[name]
		if !ok {
			return nil, fmt.Errorf("pool abi missing event %s", name)
		}
		byTopic[event.ID] = event
	}
	return &PoolEventDecoder{poolABI: poolABI, byTopic: byTopic}, nil
}

// CanDecode reports whether the log's topic0 is a known pool event.
func (d *PoolEventDecoder) CanDecode(log *types.Log) bool {
	if log == nil || len(log.Topics) == 0 {
		return false
	}
	_, ok := d.byTopic[log.Topics[0]]
	return ok
}

// Receipt decodes every pool event in the receipt, skipping unrelated logs.
// A log that matches a pool topic but fails to decode is an error.
func (d *PoolEventDecoder) Receipt(receipt *types.Receipt) ([]model.PoolEvent, error) {
	if receipt == nil {
		return nil, nil
	}
	var out []model.PoolEvent
	for _, log := range receipt.Logs {
		if !d.CanDecode(log) {
			continue
		}
		event, err := d.Decode(log)
		if err != nil {
			return out, err
		}
		out = append(out, event)
	}
	return out, nil
}

// Decode converts one pool log.
func (d *PoolEventDecoder) Decode(log *types.Log) (model.PoolEvent, error) {
	if !d.CanDecode(log) {
		return model.PoolEvent{}, fmt.Errorf("unsupported pool log")
	}
	event := d.byTopic[log.Topics[0]]

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return model.PoolEvent{}, fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}
	fields := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return model.PoolEvent{}, fmt.Errorf("%s: parse topics: %w", event.Name, err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, log.Data); err != nil {
		return model.PoolEvent{}, fmt.Errorf("%s: unpack data: %w", event.Name, err)
	}

	out := model.PoolEvent{Name: event.Name, Pool: log.Address, LogIndex: log.Index}
	var err error
	if out.Amount0, err = AsBigInt(fields["amount0"]); err != nil {
		return model.PoolEvent{}, fmt.Errorf("%s amount0: %w", event.Name, err)
	}
	if out.Amount1, err = AsBigInt(fields["amount1"]); err != nil {
		return model.PoolEvent{}, fmt.Errorf("%s amount1: %w", event.Name, err)
	}

	switch event.Name {
	case "Swap":
		if out.Owner, err = optionalAddress(fields, "sender"); err != nil {
			return model.PoolEvent{}, err
		}
		if out.Recipient, err = optionalAddress(fields, "recipient"); err != nil {
			return model.PoolEvent{}, err
		}
		if out.SqrtPriceX96, err = AsBigInt(fields["sqrtPriceX96"]); err != nil {
			return model.PoolEvent{}, fmt.Errorf("swap sqrtPriceX96: %w", err)
		}
		if out.Liquidity, err = AsBigInt(fields["liquidity"]); err != nil {
			return model.PoolEvent{}, fmt.Errorf("swap liquidity: %w", err)
		}
		if out.Tick, err = optionalTick(fields, "tick"); err != nil {
			return model.PoolEvent{}, err
		}
	default:
		if out.Owner, err = optionalAddress(fields, "owner"); err != nil {
			return model.PoolEvent{}, err
		}
		if out.TickLower, err = optionalTick(fields, "tickLower"); err != nil {
			return model.PoolEvent{}, err
		}
		if out.TickUpper, err = optionalTick(fields, "tickUpper"); err != nil {
			return model.PoolEvent{}, err
		}
		if event.Name == "Collect" {
			if out.Recipient, err = optionalAddress(fields, "recipient"); err != nil {
				return model.PoolEvent{}, err
			}
		} else if out.Liquidity, err = AsBigInt(fields["amount"]); err != nil {
			return model.PoolEvent{}, fmt.Errorf("%s amount: %w", event.Name, err)
		}
	}
	return out, nil
}

func optionalAddress(fields map[string]interface{}, key string) (*common.Address, error) {
	addr, err := AsAddress(fields[key])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &addr, nil
}

func optionalTick(fields map[string]interface{}, key string) (*int32, error) {
	tick, err := AsInt24(fields[key])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &tick, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
