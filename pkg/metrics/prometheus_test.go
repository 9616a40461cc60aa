package metrics

import (
	"testing"

	"CaesarEcon/internal/domain/econ"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderEvaluation(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordEvaluation("XAU", econ.Snapshot{
		Metrics:         econ.StabilityMetrics{PriceStabilityIndex: 0.91, LiquidityHealthIndex: 0.4},
		CircuitBreakers: econ.CircuitBreakerFlags{Emergency: true},
		Equilibrium:     econ.EquilibriumResult{IsEquilibrium: false},
	})
	r.RecordError("evaluate")
	r.RecordReferencePrice("XAUUSD", 2350.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluations.WithLabelValues("XAU")))
	assert.Equal(t, 0.91, testutil.ToFloat64(r.indices.WithLabelValues("XAU", "psi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.breakers.WithLabelValues("XAU", "emergency")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.breakers.WithLabelValues("XAU", "halt")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.equilibrium.WithLabelValues("XAU")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("evaluate")))
	assert.Equal(t, 2350.5, testutil.ToFloat64(r.referencePrice.WithLabelValues("XAUUSD")))
}
