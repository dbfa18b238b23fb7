// Package chaintest provides an in-memory contract backend for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrReverted = errors.New("execution reverted")

// Handler produces the outputs of a call from its decoded inputs.
type Handler func(from common.Address, args []interface{}) ([]interface{}, error)

type route struct {
	method *abi.Method
	fn     Handler
	raw    []byte
}

// FakeChain answers eth_call requests by dispatching on target and selector.
type FakeChain struct {
	mu     sync.Mutex
	routes map[common.Address]map[[4]byte]route

	// BatchErr makes every BatchCallContext fail as a whole.
	BatchErr error

	// Header is returned by HeaderByNumber.
	Header *types.Header

	batches int
	calls   int
	elems   int
}

func New() *FakeChain {
	return &FakeChain{routes: make(map[common.Address]map[[4]byte]route)}
}

// Handle registers fn for method on target.
func (f *FakeChain) Handle(target common.Address, parsed abi.ABI, method string, fn Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	f.set(target, m.ID, route{method: &m, fn: fn})
}

// Return registers fixed outputs for method on target.
func (f *FakeChain) Return(target common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	f.Handle(target, parsed, method, func(common.Address, []interface{}) ([]interface{}, error) {
		return outputs, nil
	})
}

// Revert makes method on target fail.
func (f *FakeChain) Revert(target common.Address, parsed abi.ABI, method string) {
	f.Handle(target, parsed, method, func(common.Address, []interface{}) ([]interface{}, error) {
		return nil, ErrReverted
	})
}

// ReturnRaw registers undecoded response bytes for method on target.
func (f *FakeChain) ReturnRaw(target common.Address, parsed abi.ABI, method string, raw []byte) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	f.set(target, m.ID, route{raw: raw})
}

func (f *FakeChain) set(target common.Address, id []byte, r route) {
	var sel [4]byte
	copy(sel[:], id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.routes[target] == nil {
		f.routes[target] = make(map[[4]byte]route)
	}
	f.routes[target][sel] = r
}

func (f *FakeChain) exec(from, to common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ErrReverted
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	f.mu.Lock()
	r, ok := f.routes[to][sel]
	f.mu.Unlock()
	if !ok {
		return nil, ErrReverted
	}
	if r.method == nil {
		return r.raw, nil
	}

	args, err := r.method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack inputs: %w", err)
	}
	out, err := r.fn(from, args)
	if err != nil {
		return nil, err
	}
	return r.method.Outputs.Pack(out...)
}

// BatchCallContext implements the batch backend.
func (f *FakeChain) BatchCallContext(ctx context.Context, batch []rpc.BatchElem) error {
	f.mu.Lock()
	f.batches++
	batchErr := f.BatchErr
	f.mu.Unlock()
	if batchErr != nil {
		return batchErr
	}

	for i := range batch {
		elem := &batch[i]
		if elem.Method != "eth_call" || len(elem.Args) == 0 {
			elem.Error = fmt.Errorf("unsupported method %s", elem.Method)
			continue
		}
		arg, ok := elem.Args[0].(map[string]interface{})
		if !ok {
			elem.Error = fmt.Errorf("unexpected call arg %T", elem.Args[0])
			continue
		}
		to, _ := arg["to"].(common.Address)
		data, _ := arg["data"].(hexutil.Bytes)
		from, _ := arg["from"].(common.Address)

		f.mu.Lock()
		f.elems++
		f.mu.Unlock()

		raw, err := f.exec(from, to, data)
		if err != nil {
			elem.Error = err
			continue
		}
		if out, ok := elem.Result.(*hexutil.Bytes); ok {
			*out = raw
		}
	}
	return nil
}

// CallContract implements the single-call backend.
func (f *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if msg.To == nil {
		return nil, ErrReverted
	}
	return f.exec(msg.From, *msg.To, msg.Data)
}

// HeaderByNumber returns Header or an error when unset.
func (f *FakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.Header == nil {
		return nil, errors.New("header unavailable")
	}
	return f.Header, nil
}

// Batches counts BatchCallContext invocations.
func (f *FakeChain) Batches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

// Calls counts CallContract invocations.
func (f *FakeChain) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// BatchedCalls counts eth_call elements served through batches.
func (f *FakeChain) BatchedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elems
}

// Reset clears the counters.
func (f *FakeChain) Reset() {
	f.mu.Lock()
	f.batches, f.calls, f.elems = 0, 0, 0
	f.mu.Unlock()
}
