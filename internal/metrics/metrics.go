package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by the status and transaction paths.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	StatusStepDur  *prometheus.HistogramVec
	StatusDegraded *prometheus.CounterVec
	RPCCalls       *prometheus.CounterVec
	BatchFallbacks prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	TxOutcomes     *prometheus.CounterVec
	TxGasCostEth   prometheus.Histogram
	JobRuns        *prometheus.CounterVec
}

// New builds the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		StatusStepDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "step_duration_seconds",
			Help:      "Latency of each status aggregation step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		StatusDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "degraded_fields_total",
			Help:      "Sub-reads that fell back to a default value.",
		}, []string{"field"}),
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "eth_calls_total",
			Help:      "eth_call requests by transport mode.",
		}, []string{"mode"}),
		BatchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "batch_fallbacks_total",
			Help:      "Batches that failed and were replayed one call at a time.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Tiered cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		TxOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "outcomes_total",
			Help:      "Transaction submissions by final state.",
		}, []string{"state"}),
		TxGasCostEth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "gas_cost_eth",
			Help:      "Realized gas cost of mined transactions in ETH.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.StatusStepDur,
			m.StatusDegraded,
			m.RPCCalls,
			m.BatchFallbacks,
			m.CacheLookups,
			m.TxOutcomes,
			m.TxGasCostEth,
			m.JobRuns,
		)
	}
	return m
}

func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StatusStepDur.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) Degraded(field string) {
	if m == nil {
		return
	}
	m.StatusDegraded.WithLabelValues(field).Inc()
}

func (m *Metrics) Calls(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RPCCalls.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) BatchFallback() {
	if m == nil {
		return
	}
	m.BatchFallbacks.Inc()
}

// CacheLookup matches the cache.LookupFunc signature.
func (m *Metrics) CacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) TxOutcome(state string, costEth float64) {
	if m == nil {
		return
	}
	m.TxOutcomes.WithLabelValues(state).Inc()
	if costEth > 0 {
		m.TxGasCostEth.Observe(costEth)
	}
}

func (m *Metrics) JobRun(job string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
}
