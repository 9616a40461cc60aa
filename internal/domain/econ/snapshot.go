package econ

import "fmt"

// MarketObservables is one caller-supplied market reading. The optional
// fields feed LHI, PSI participation and the reserve requirement; left at zero
// they degrade to the formulas' floors.
type MarketObservables struct {
	CurrentPrice        float64 `json:"current_price" yaml:"current_price"`
	TargetPrice         float64 `json:"target_price" yaml:"target_price"`
	MarketPressure      float64 `json:"market_pressure" yaml:"market_pressure"`
	LiquidityRatio      float64 `json:"liquidity_ratio" yaml:"liquidity_ratio"`
	ValidatorCount      float64 `json:"validator_count" yaml:"validator_count"`
	HolderCount         float64 `json:"holder_count" yaml:"holder_count"`
	DailyTransactions   float64 `json:"daily_transactions" yaml:"daily_transactions"`
	CrossChainTransfers float64 `json:"cross_chain_transfers" yaml:"cross_chain_transfers"`
	BuysVolume          float64 `json:"buys_volume" yaml:"buys_volume"`
	SellsVolume         float64 `json:"sells_volume" yaml:"sells_volume"`
	EffectiveLiquidity  float64 `json:"effective_liquidity" yaml:"effective_liquidity"`

	ActiveParticipants     float64 `json:"active_participants" yaml:"active_participants"`
	ValidatorParticipation float64 `json:"validator_participation" yaml:"validator_participation"`
	HolderParticipation    float64 `json:"holder_participation" yaml:"holder_participation"`
	StabilityReserve       float64 `json:"stability_reserve" yaml:"stability_reserve"`
	TotalSupply            float64 `json:"total_supply" yaml:"total_supply"`
	TotalDecayPenalties    float64 `json:"total_decay_penalties" yaml:"total_decay_penalties"`
}

// StabilityMetrics are the derived indices for one reading.
type StabilityMetrics struct {
	PriceStabilityIndex  float64 `json:"price_stability_index"`
	LiquidityHealthIndex float64 `json:"liquidity_health_index"`
	NetworkUtilityScore  float64 `json:"network_utility_score"`
	ConvergenceRate      float64 `json:"convergence_rate"`
}

// Snapshot is everything Evaluate derives from one reading.
type Snapshot struct {
	Metrics         StabilityMetrics    `json:"metrics"`
	MarketPressure  float64             `json:"market_pressure"`
	RequiredReserve float64             `json:"required_reserve"`
	CircuitBreakers CircuitBreakerFlags `json:"circuit_breakers"`
	Equilibrium     EquilibriumResult   `json:"equilibrium"`
}

// Evaluate runs the full formula chain over one reading.
//
// Market pressure is derived from buy/sell volume when either is non-zero,
// otherwise the supplied MarketPressure is used as is. The required reserve
// comes from TotalSupply and TotalDecayPenalties; with neither supplied the
// reserve ratio is taken against the reserve itself.
func (e *Engine) Evaluate(obs MarketObservables) (Snapshot, error) {
	var s Snapshot
	var err error

	s.MarketPressure = obs.MarketPressure
	if obs.BuysVolume != 0 || obs.SellsVolume != 0 {
		if s.MarketPressure, err = e.MarketPressure(obs.BuysVolume, obs.SellsVolume, obs.EffectiveLiquidity, obs.ValidatorCount); err != nil {
			return Snapshot{}, fmt.Errorf("evaluate: %w", err)
		}
	}

	psi, err := e.PriceStabilityIndex(obs.CurrentPrice, obs.TargetPrice, s.MarketPressure, obs.ValidatorParticipation, obs.HolderParticipation)
	if err != nil {
		return Snapshot{}, fmt.Errorf("evaluate: %w", err)
	}

	s.RequiredReserve = obs.StabilityReserve
	if obs.TotalSupply != 0 || obs.TotalDecayPenalties != 0 {
		if s.RequiredReserve, err = e.StabilityReserveRequirement(obs.TotalSupply, obs.TotalDecayPenalties); err != nil {
			return Snapshot{}, fmt.Errorf("evaluate: %w", err)
		}
	}

	lhi, err := e.LiquidityHealthIndex(obs.ActiveParticipants, obs.HolderCount, obs.LiquidityRatio, obs.StabilityReserve, s.RequiredReserve)
	if err != nil {
		return Snapshot{}, fmt.Errorf("evaluate: %w", err)
	}

	nus, err := e.NetworkUtilityScore(obs.DailyTransactions, obs.CrossChainTransfers)
	if err != nil {
		return Snapshot{}, fmt.Errorf("evaluate: %w", err)
	}

	conv, err := e.ConvergenceRate(obs.CurrentPrice, obs.TargetPrice, s.MarketPressure, psi)
	if err != nil {
		return Snapshot{}, fmt.Errorf("evaluate: %w", err)
	}

	if s.CircuitBreakers, err = e.CircuitBreakerConditions(obs.LiquidityRatio, obs.CurrentPrice, obs.TargetPrice, lhi); err != nil {
		return Snapshot{}, fmt.Errorf("evaluate: %w", err)
	}

	if s.Equilibrium, err = e.EquilibriumState(psi, lhi, nus, conv); err != nil {
		return Snapshot{}, fmt.Errorf("evaluate: %w", err)
	}

	s.Metrics = StabilityMetrics{
		PriceStabilityIndex:  psi,
		LiquidityHealthIndex: lhi,
		NetworkUtilityScore:  nus,
		ConvergenceRate:      conv,
	}
	return s, nil
}
