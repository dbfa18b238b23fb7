package status

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

// plan collects the sub-reads of one round trip. Each entry names the
// snapshot field it feeds so failures can be recorded against it.
type plan struct {
	calls    []rpcbatch.Call
	fields   []string
	optional []bool
	handlers []func([]interface{}) error
	failed   []model.DegradedField
}

func (p *plan) call(field string, target common.Address, parsed abi.ABI, method string, handle func([]interface{}) error, args ...interface{}) {
	p.add(field, false, target, parsed, method, handle, args...)
}

// optionalCall is a sub-read whose failure is expected for some contracts
// and is not recorded as degraded.
func (p *plan) optionalCall(field string, target common.Address, parsed abi.ABI, method string, handle func([]interface{}) error, args ...interface{}) {
	p.add(field, true, target, parsed, method, handle, args...)
}

func (p *plan) add(field string, optional bool, target common.Address, parsed abi.ABI, method string, handle func([]interface{}) error, args ...interface{}) {
	call, err := rpcbatch.NewCall(field, target, parsed, method, args...)
	if err != nil {
		p.fail(field, err)
		return
	}
	p.addCall(field, optional, call, handle)
}

// addCall adds a prebuilt call, relabelled with field.
func (p *plan) addCall(field string, optional bool, call rpcbatch.Call, handle func([]interface{}) error) {
	call.Label = field
	p.calls = append(p.calls, call)
	p.fields = append(p.fields, field)
	p.optional = append(p.optional, optional)
	p.handlers = append(p.handlers, handle)
}

// collect adds prebuilt calls whose results are parsed together once the
// batch ran. Entry i of the returned slice holds the result of calls[i];
// entries that failed keep errUnavailable. Each call feeds prefix_label.
func (p *plan) collect(prefix string, calls []rpcbatch.Call, optional func(label string) bool) []rpcbatch.Result {
	out := make([]rpcbatch.Result, len(calls))
	for i, call := range calls {
		i := i
		out[i] = rpcbatch.Result{Err: errUnavailable}
		opt := optional != nil && optional(call.Label)
		p.addCall(prefix+"_"+call.Label, opt, call, func(values []interface{}) error {
			out[i] = rpcbatch.Result{Values: values}
			return nil
		})
	}
	return out
}

func (p *plan) fail(field string, err error) {
	p.failed = append(p.failed, model.DegradedField{Field: field, Reason: err.Error()})
}

// withFrom sets the sender of the most recently added call.
func (p *plan) withFrom(from common.Address) {
	if len(p.calls) == 0 {
		return
	}
	sender := from
	p.calls[len(p.calls)-1].From = &sender
}

func (p *plan) size() int {
	return len(p.calls)
}

// run carries the per-query state shared by every step.
type run struct {
	agg    *Aggregator
	vault  common.Address
	fresh  bool
	timing bool

	mu   sync.Mutex
	diag model.Diagnostics
}

func (r *run) exec(ctx context.Context, p *plan) {
	for _, f := range p.failed {
		r.degradeReason(f.Field, f.Reason)
	}
	if p.size() == 0 {
		return
	}

	results, stats := r.agg.caller.CallStats(ctx, p.calls)
	r.mu.Lock()
	r.diag.RoundTrips += stats.RoundTrips
	r.mu.Unlock()

	for i, res := range results {
		if !res.OK() {
			if !p.optional[i] {
				r.degrade(p.fields[i], res.Err)
			}
			continue
		}
		if err := p.handlers[i](res.Values); err != nil && !p.optional[i] {
			r.degrade(p.fields[i], err)
		}
	}
}

func (r *run) degrade(field string, err error) {
	reason := "unavailable"
	if err != nil {
		reason = err.Error()
	}
	r.degradeReason(field, reason)
}

// degradeReason records field once; later failures of the same field are dropped.
func (r *run) degradeReason(field, reason string) {
	r.mu.Lock()
	for _, d := range r.diag.Degraded {
		if d.Field == field {
			r.mu.Unlock()
			return
		}
	}
	r.diag.Degraded = append(r.diag.Degraded, model.DegradedField{Field: field, Reason: reason})
	r.mu.Unlock()

	r.agg.metrics.Degraded(field)
	r.agg.logger.Debug("status field degraded",
		zap.String("vault", r.vault.Hex()),
		zap.String("field", field),
		zap.String("reason", reason),
	)
}

func (r *run) step(name string, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)

	r.agg.metrics.ObserveStep(name, elapsed)
	if r.timing {
		r.mu.Lock()
		r.diag.Steps = append(r.diag.Steps, model.StepTiming{Step: name, Duration: elapsed})
		r.mu.Unlock()
	}
}

func (r *run) roundTrip() {
	r.mu.Lock()
	r.diag.RoundTrips++
	r.mu.Unlock()
}
