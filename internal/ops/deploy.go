package ops

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultScope/internal/model"
)

var ErrInvalidDeploy = errors.New("invalid deploy")

// DecodeBytecode parses hex creation bytecode, with or without 0x.
func DecodeBytecode(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		raw = "0x" + raw
	}
	code, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bytecode: %v", ErrInvalidDeploy, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: empty bytecode", ErrInvalidDeploy)
	}
	return code, nil
}

// Deploy builds a contract creation from bytecode and constructor args.
// abiJSON may be empty when the constructor takes no arguments.
func Deploy(label string, bytecode []byte, abiJSON string, args ...interface{}) (model.CallRequest, error) {
	if len(bytecode) == 0 {
		return model.CallRequest{}, fmt.Errorf("%w: empty bytecode", ErrInvalidDeploy)
	}
	data := append([]byte(nil), bytecode...)
	if strings.TrimSpace(abiJSON) != "" {
		parsed, err := abi.JSON(strings.NewReader(abiJSON))
		if err != nil {
			return model.CallRequest{}, fmt.Errorf("%w: abi: %v", ErrInvalidDeploy, err)
		}
		packed, err := parsed.Pack("", args...)
		if err != nil {
			return model.CallRequest{}, fmt.Errorf("%w: constructor args: %v", ErrInvalidDeploy, err)
		}
		data = append(data, packed...)
	} else if len(args) > 0 {
		return model.CallRequest{}, fmt.Errorf("%w: constructor args given without an abi", ErrInvalidDeploy)
	}
	if label == "" {
		label = "deploy"
	}
	return model.CallRequest{Label: label, Data: data}, nil
}

// ParseConstructorArgs converts command line strings to the Go values the
// constructor inputs of abiJSON expect.
func ParseConstructorArgs(abiJSON string, raw []string) ([]interface{}, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: abi: %v", ErrInvalidDeploy, err)
	}
	inputs := parsed.Constructor.Inputs
	if len(inputs) != len(raw) {
		return nil, fmt.Errorf("%w: constructor takes %d args, got %d", ErrInvalidDeploy, len(inputs), len(raw))
	}
	out := make([]interface{}, len(raw))
	for i, in := range inputs {
		v, err := parseArg(in.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%w: arg %d (%s): %v", ErrInvalidDeploy, i, in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(t abi.Type, s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("not an address: %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.IntTy, abi.UintTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("not an integer: %q", s)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value for %s", t.String())
		}
		gt := t.GetType()
		if gt == reflect.TypeOf(n) {
			limit := t.Size
			if t.T == abi.IntTy {
				limit--
			}
			if n.BitLen() > limit {
				return nil, fmt.Errorf("%s overflows %s", s, t.String())
			}
			return n, nil
		}
		if !n.IsInt64() && !n.IsUint64() {
			return nil, fmt.Errorf("%s overflows %s", s, t.String())
		}
		if t.T == abi.UintTy {
			if reflect.Zero(gt).OverflowUint(n.Uint64()) {
				return nil, fmt.Errorf("%s overflows %s", s, t.String())
			}
			return reflect.ValueOf(n.Uint64()).Convert(gt).Interface(), nil
		}
		if !n.IsInt64() || reflect.Zero(gt).OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("%s overflows %s", s, t.String())
		}
		return reflect.ValueOf(n.Int64()).Convert(gt).Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported constructor type %s", t.String())
	}
}
