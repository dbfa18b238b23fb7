package rpcbatch

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"vaultScope/internal/metrics"
)

// DefaultMaxBatchSize caps the number of calls sent in one JSON-RPC batch.
const DefaultMaxBatchSize = 100

var ErrEmptyResponse = errors.New("empty call response")

// Backend is the subset of chain.Client used by the caller.
type Backend interface {
	BatchCallContext(ctx context.Context, batch []rpc.BatchElem) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call is one read-only contract call with its expected outputs.
type Call struct {
	Label   string
	Target  common.Address
	From    *common.Address
	Data    []byte
	Outputs abi.Arguments
}

// NewCall packs method with args against parsed.
func NewCall(label string, target common.Address, parsed abi.ABI, method string, args ...interface{}) (Call, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return Call{}, fmt.Errorf("method %s not found", method)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return Call{Label: label, Target: target, Data: data, Outputs: m.Outputs}, nil
}

// Result is the decoded outcome of one call. Values is nil when Err is set.
type Result struct {
	Values []interface{}
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Stats describes how a set of calls was executed.
type Stats struct {
	RoundTrips int
	FellBack   bool
}

// Config tunes the caller.
type Config struct {
	DisableBatch bool
	MaxBatchSize int
}

// Caller executes calls as JSON-RPC batches, replaying a failed batch one
// call at a time.
type Caller struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCaller(backend Backend, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Caller{backend: backend, cfg: cfg, logger: logger, metrics: m}
}

// Call returns one Result per call, in order.
func (c *Caller) Call(ctx context.Context, calls []Call) []Result {
	results, _ := c.CallStats(ctx, calls)
	return results
}

// CallStats is Call plus execution statistics.
func (c *Caller) CallStats(ctx context.Context, calls []Call) ([]Result, Stats) {
	results := make([]Result, len(calls))
	var stats Stats
	if len(calls) == 0 {
		return results, stats
	}

	if c.cfg.DisableBatch {
		c.sequential(ctx, calls, results, &stats)
		return results, stats
	}

	for start := 0; start < len(calls); start += c.cfg.MaxBatchSize {
		end := start + c.cfg.MaxBatchSize
		if end > len(calls) {
			end = len(calls)
		}
		chunk := calls[start:end]
		out := results[start:end]

		stats.RoundTrips++
		if err := c.batch(ctx, chunk, out); err != nil {
			c.logger.Warn("batch call failed, falling back to sequential calls",
				zap.Int("calls", len(chunk)),
				zap.Error(err),
			)
			c.metrics.BatchFallback()
			stats.FellBack = true
			c.sequential(ctx, chunk, out, &stats)
		}
	}
	return results, stats
}

func (c *Caller) batch(ctx context.Context, calls []Call, out []Result) error {
	elems := make([]rpc.BatchElem, len(calls))
	raws := make([]hexutil.Bytes, len(calls))
	for i, call := range calls {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []interface{}{toCallArg(call), "latest"},
			Result: &raws[i],
		}
	}

	if err := c.backend.BatchCallContext(ctx, elems); err != nil {
		return err
	}
	c.metrics.Calls("batch", len(calls))

	for i, call := range calls {
		if elems[i].Error != nil {
			out[i] = Result{Err: fmt.Errorf("%s: %w", call.Label, elems[i].Error)}
			continue
		}
		out[i] = decode(call, raws[i])
	}
	return nil
}

func (c *Caller) sequential(ctx context.Context, calls []Call, out []Result, stats *Stats) {
	for i, call := range calls {
		target := call.Target
		msg := ethereum.CallMsg{To: &target, Data: call.Data}
		if call.From != nil {
			msg.From = *call.From
		}
		stats.RoundTrips++
		raw, err := c.backend.CallContract(ctx, msg, nil)
		if err != nil {
			out[i] = Result{Err: fmt.Errorf("%s: %w", call.Label, err)}
			continue
		}
		out[i] = decode(call, raw)
	}
	c.metrics.Calls("sequential", len(calls))
}

func decode(call Call, raw []byte) Result {
	if len(call.Outputs) == 0 {
		return Result{Values: []interface{}{}}
	}
	if len(raw) == 0 {
		return Result{Err: fmt.Errorf("%s: %w", call.Label, ErrEmptyResponse)}
	}
	values, err := call.Outputs.Unpack(raw)
	if err != nil {
		return Result{Err: fmt.Errorf("%s: unpack: %w", call.Label, err)}
	}
	return Result{Values: values}
}

func toCallArg(call Call) map[string]interface{} {
	arg := map[string]interface{}{
		"to":   call.Target,
		"data": hexutil.Bytes(call.Data),
	}
	if call.From != nil {
		arg["from"] = *call.From
	}
	return arg
}
