package econ

import "math"

// Names reported in EquilibriumResult.FailingMetrics, in evaluation order.
const (
	MetricPriceStability  = "price_stability"
	MetricLiquidityHealth = "liquidity_health"
	MetricNetworkUtility  = "network_utility"
	MetricConvergence     = "convergence"
)

// BandStatus classifies a price against its deviation band.
type BandStatus string

const (
	BandAbove  BandStatus = "above"
	BandWithin BandStatus = "within"
	BandBelow  BandStatus = "below"
)

// CircuitBreakerFlags are independent threshold checks; more than one may be set.
type CircuitBreakerFlags struct {
	Halt      bool `json:"halt"`
	Emergency bool `json:"emergency"`
	Rebase    bool `json:"rebase"`
}

// Any reports whether at least one breaker tripped.
func (f CircuitBreakerFlags) Any() bool { return f.Halt || f.Emergency || f.Rebase }

// EquilibriumResult is the outcome of EquilibriumState.
type EquilibriumResult struct {
	IsEquilibrium  bool     `json:"is_equilibrium"`
	FailingMetrics []string `json:"failing_metrics"`
}

// BandPosition locates a price relative to a reference band.
type BandPosition struct {
	Percentage float64    `json:"percentage"`
	Status     BandStatus `json:"status"`
	UpperBand  float64    `json:"upper_band"`
	LowerBand  float64    `json:"lower_band"`
}

// CircuitBreakerConditions evaluates the halt, emergency and rebase triggers.
// The liquidity health index is accepted for interface parity and validated,
// but no current trigger depends on it.
func (e *Engine) CircuitBreakerConditions(liquidityRatio, currentPrice, targetPrice, liquidityHealthIndex float64) (CircuitBreakerFlags, error) {
	const op = "circuit_breaker_conditions"
	if err := check(
		finite(op, a("liquidity_ratio", liquidityRatio), a("current_price", currentPrice), a("liquidity_health_index", liquidityHealthIndex)),
		positive(op, a("target_price", targetPrice)),
	); err != nil {
		return CircuitBreakerFlags{}, err
	}

	return CircuitBreakerFlags{
		Halt:      liquidityRatio < e.p.HaltLiquidity,
		Emergency: liquidityRatio < e.p.EmergencyLiquidity,
		Rebase:    math.Abs(currentPrice-targetPrice)/targetPrice > e.p.RebaseDeviation,
	}, nil
}

// EquilibriumState checks the four metrics against the engine's thresholds.
func (e *Engine) EquilibriumState(psi, lhi, nus, convergenceRate float64) (EquilibriumResult, error) {
	return e.EquilibriumStateWith(psi, lhi, nus, convergenceRate, e.p.Equilibrium)
}

// EquilibriumStateWith checks the four metrics against explicit thresholds.
func (e *Engine) EquilibriumStateWith(psi, lhi, nus, convergenceRate float64, t EquilibriumThresholds) (EquilibriumResult, error) {
	const op = "equilibrium_state"
	if err := check(
		finite(op, a("psi", psi), a("lhi", lhi), a("nus", nus), a("convergence_rate", convergenceRate),
			a("psi_min", t.PSIMin), a("lhi_min", t.LHIMin), a("nus_min", t.NUSMin)),
		nonNegative(op, a("conv_max", t.ConvMax)),
	); err != nil {
		return EquilibriumResult{}, err
	}

	failing := make([]string, 0, 4)
	if psi < t.PSIMin {
		failing = append(failing, MetricPriceStability)
	}
	if lhi < t.LHIMin {
		failing = append(failing, MetricLiquidityHealth)
	}
	if nus < t.NUSMin {
		failing = append(failing, MetricNetworkUtility)
	}
	if math.Abs(convergenceRate) > t.ConvMax {
		failing = append(failing, MetricConvergence)
	}

	return EquilibriumResult{IsEquilibrium: len(failing) == 0, FailingMetrics: failing}, nil
}

// DynamicSpread widens the base spread quadratically as liquidity falls below
// target, linearly with pressure, and narrows it as validator participation
// grows.
func (e *Engine) DynamicSpread(baseSpread, liquidityRatio, marketPressure, normalizedValidators float64) (float64, error) {
	const op = "dynamic_spread"
	if err := check(
		nonNegative(op, a("base_spread", baseSpread), a("normalized_validators", normalizedValidators)),
		positive(op, a("liquidity_ratio", liquidityRatio)),
		finite(op, a("market_pressure", marketPressure)),
	); err != nil {
		return 0, err
	}

	liquidityFactor := math.Max(1, math.Pow(e.p.SpreadTargetLiquidity/liquidityRatio, 2))
	pressureFactor := 1 + math.Abs(marketPressure)
	validatorFactor := 1 / (e.p.SpreadValidatorOffset + normalizedValidators)

	return result(op, baseSpread*liquidityFactor*pressureFactor*validatorFactor)
}

// DeviationBandPosition classifies currentPrice against the configured band
// around goldPrice.
func (e *Engine) DeviationBandPosition(currentPrice, goldPrice float64) (BandPosition, error) {
	return e.DeviationBand(currentPrice, goldPrice, e.p.BandWidth)
}

// DeviationBand classifies currentPrice against a ±bandWidth corridor around
// goldPrice. Prices exactly on a band edge are within.
func (e *Engine) DeviationBand(currentPrice, goldPrice, bandWidth float64) (BandPosition, error) {
	const op = "deviation_band_position"
	if err := check(
		nonNegative(op, a("current_price", currentPrice)),
		positive(op, a("gold_price", goldPrice), a("band_width", bandWidth)),
	); err != nil {
		return BandPosition{}, err
	}

	pos := BandPosition{
		UpperBand:  goldPrice * (1 + bandWidth),
		LowerBand:  goldPrice * (1 - bandWidth),
		Percentage: (currentPrice - goldPrice) / goldPrice * 100,
	}
	switch {
	case currentPrice > pos.UpperBand:
		pos.Status = BandAbove
	case currentPrice < pos.LowerBand:
		pos.Status = BandBelow
	default:
		pos.Status = BandWithin
	}
	return pos, nil
}
