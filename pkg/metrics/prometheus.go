package metrics

import (
	"CaesarEcon/internal/domain/econ"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	evaluations    *prometheus.CounterVec
	persisted      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	indices        *prometheus.GaugeVec
	breakers       *prometheus.GaugeVec
	equilibrium    *prometheus.GaugeVec
	referencePrice *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg; nil means the default
// registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caesar",
				Name:      "evaluations_total",
				Help:      "Successful snapshot evaluations",
			},
			[]string{"market"},
		),
		persisted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caesar",
				Name:      "snapshots_persisted_total",
				Help:      "Snapshots written per backend",
			},
			[]string{"backend", "market"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caesar",
				Name:      "errors_total",
				Help:      "Errors by kind",
			},
			[]string{"type"},
		),
		indices: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "caesar",
				Name:      "stability_index",
				Help:      "Latest stability metrics per market",
			},
			[]string{"market", "index"},
		),
		breakers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "caesar",
				Name:      "circuit_breaker",
				Help:      "1 when the breaker is tripped in the latest snapshot",
			},
			[]string{"market", "breaker"},
		),
		equilibrium: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "caesar",
				Name:      "equilibrium",
				Help:      "1 when the latest snapshot is in equilibrium",
			},
			[]string{"market"},
		),
		referencePrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "caesar",
				Name:      "reference_price",
				Help:      "Latest reference price per symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "caesar",
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvaluation publishes the snapshot's indices and flags.
func (r *Recorder) RecordEvaluation(market string, s econ.Snapshot) {
	r.evaluations.WithLabelValues(market).Inc()

	r.indices.WithLabelValues(market, "psi").Set(s.Metrics.PriceStabilityIndex)
	r.indices.WithLabelValues(market, "lhi").Set(s.Metrics.LiquidityHealthIndex)
	r.indices.WithLabelValues(market, "nus").Set(s.Metrics.NetworkUtilityScore)
	r.indices.WithLabelValues(market, "convergence").Set(s.Metrics.ConvergenceRate)
	r.indices.WithLabelValues(market, "market_pressure").Set(s.MarketPressure)

	r.breakers.WithLabelValues(market, "halt").Set(boolGauge(s.CircuitBreakers.Halt))
	r.breakers.WithLabelValues(market, "emergency").Set(boolGauge(s.CircuitBreakers.Emergency))
	r.breakers.WithLabelValues(market, "rebase").Set(boolGauge(s.CircuitBreakers.Rebase))
	r.equilibrium.WithLabelValues(market).Set(boolGauge(s.Equilibrium.IsEquilibrium))
}

// RecordPersisted counts a snapshot written to backend.
func (r *Recorder) RecordPersisted(backend, market string) {
	r.persisted.WithLabelValues(backend, market).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordReferencePrice records the last reference price for a symbol.
func (r *Recorder) RecordReferencePrice(symbol string, price float64) {
	r.referencePrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
