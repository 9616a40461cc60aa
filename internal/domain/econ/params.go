package econ

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Params holds every policy constant used by the formulas. Zero values are
// filled from the default tags by DefaultParams / Normalize.
type Params struct {
	// Price stability index.
	StabilityFloor      float64 `yaml:"stability_floor" json:"stability_floor" default:"0.3" validate:"gte=0,lte=1"`
	DeviationWeight     float64 `yaml:"deviation_weight" json:"deviation_weight" default:"0.3" validate:"gte=0,lte=1"`
	PressureWeight      float64 `yaml:"pressure_weight" json:"pressure_weight" default:"0.2" validate:"gte=0,lte=1"`
	ParticipationWeight float64 `yaml:"participation_weight" json:"participation_weight" default:"0.2" validate:"gte=0,lte=1"`

	// Market pressure.
	LiquidityScale         float64 `yaml:"liquidity_scale" json:"liquidity_scale" default:"1000000" validate:"gt=0"`
	PressureLiquidityFloor float64 `yaml:"pressure_liquidity_floor" json:"pressure_liquidity_floor" default:"0.1" validate:"gt=0"`

	// Network utility score.
	TargetTransfers  float64 `yaml:"target_transfers" json:"target_transfers" default:"500000" validate:"gt=0"`
	TxUtilityWeight  float64 `yaml:"tx_utility_weight" json:"tx_utility_weight" default:"0.6" validate:"gte=0,lte=1"`
	CrossChainWeight float64 `yaml:"cross_chain_weight" json:"cross_chain_weight" default:"0.4" validate:"gte=0,lte=1"`
	TxTargetMultiple float64 `yaml:"tx_target_multiple" json:"tx_target_multiple" default:"2" validate:"gt=0"`

	// Liquidity health index.
	TargetLiquidity float64 `yaml:"target_liquidity" json:"target_liquidity" default:"0.8" validate:"gt=0"`
	HealthFloor     float64 `yaml:"health_floor" json:"health_floor" default:"0.2" validate:"gte=0,lte=1"`

	// Incentives.
	ValidatorShare       float64 `yaml:"validator_share" json:"validator_share" default:"0.9" validate:"gte=0,lte=1"`
	DemurrageBalanceUnit float64 `yaml:"demurrage_balance_unit" json:"demurrage_balance_unit" default:"1000" validate:"gt=0"`
	FeeSizeUnit          float64 `yaml:"fee_size_unit" json:"fee_size_unit" default:"10000" validate:"gt=0"`
	FeeLiquidityFloor    float64 `yaml:"fee_liquidity_floor" json:"fee_liquidity_floor" default:"0.1" validate:"gt=0"`
	ReserveFloor         float64 `yaml:"reserve_floor" json:"reserve_floor" default:"0.1" validate:"gte=0"`
	DecayPenaltyMultiple float64 `yaml:"decay_penalty_multiple" json:"decay_penalty_multiple" default:"2" validate:"gte=0"`

	// Convergence control law.
	Alpha float64 `yaml:"alpha" json:"alpha" default:"0.1"`
	Beta  float64 `yaml:"beta" json:"beta" default:"-0.05"`
	Gamma float64 `yaml:"gamma" json:"gamma" default:"0.05"`

	// Circuit breakers.
	HaltLiquidity      float64 `yaml:"halt_liquidity" json:"halt_liquidity" default:"0.1" validate:"gte=0"`
	EmergencyLiquidity float64 `yaml:"emergency_liquidity" json:"emergency_liquidity" default:"0.2" validate:"gte=0"`
	RebaseDeviation    float64 `yaml:"rebase_deviation" json:"rebase_deviation" default:"0.2" validate:"gt=0"`

	Equilibrium EquilibriumThresholds `yaml:"equilibrium" json:"equilibrium"`

	// Dynamic spread.
	SpreadTargetLiquidity float64 `yaml:"spread_target_liquidity" json:"spread_target_liquidity" default:"0.8" validate:"gt=0"`
	SpreadValidatorOffset float64 `yaml:"spread_validator_offset" json:"spread_validator_offset" default:"0.5" validate:"gt=0"`

	// Deviation band.
	BandWidth float64 `yaml:"band_width" json:"band_width" default:"0.05" validate:"gt=0,lt=1"`

	// Resource-sharing rewards, per hour of sharing.
	RewardBaseRate          float64 `yaml:"reward_base_rate" json:"reward_base_rate" default:"1" validate:"gte=0"`
	RewardCPUMultiplier     float64 `yaml:"reward_cpu_multiplier" json:"reward_cpu_multiplier" default:"2" validate:"gte=0"`
	RewardMemoryMultiplier  float64 `yaml:"reward_memory_multiplier" json:"reward_memory_multiplier" default:"1.5" validate:"gte=0"`
	RewardStorageMultiplier float64 `yaml:"reward_storage_multiplier" json:"reward_storage_multiplier" default:"1.2" validate:"gte=0"`

	// Staking. APYs are percentages.
	StakingBaseAPY       float64 `yaml:"staking_base_apy" json:"staking_base_apy" default:"4.2" validate:"gte=0"`
	StakingLockBonusAPY  float64 `yaml:"staking_lock_bonus_apy" json:"staking_lock_bonus_apy" default:"2" validate:"gte=0"`
	StakingCompoundHours int     `yaml:"staking_compound_hours" json:"staking_compound_hours" default:"24" validate:"gt=0"`

	// Token swaps.
	SwapVolatility        float64 `yaml:"swap_volatility" json:"swap_volatility" default:"0.05" validate:"gte=0"`
	SwapSlippageTolerance float64 `yaml:"swap_slippage_tolerance" json:"swap_slippage_tolerance" default:"0.02" validate:"gte=0"`
	SwapFeeRate           float64 `yaml:"swap_fee_rate" json:"swap_fee_rate" default:"0.003" validate:"gte=0,lt=1"`
}

// EquilibriumThresholds are the pass marks used by EquilibriumState.
type EquilibriumThresholds struct {
	PSIMin  float64 `yaml:"psi_min" json:"psi_min" default:"0.8" validate:"gte=0,lte=1"`
	LHIMin  float64 `yaml:"lhi_min" json:"lhi_min" default:"0.7" validate:"gte=0,lte=1"`
	NUSMin  float64 `yaml:"nus_min" json:"nus_min" default:"0.6" validate:"gte=0,lte=1"`
	ConvMax float64 `yaml:"conv_max" json:"conv_max" default:"10" validate:"gte=0"`
}

var paramsValidator = validator.New()

// DefaultParams returns the reference policy constants.
func DefaultParams() Params {
	var p Params
	if err := defaults.Set(&p); err != nil {
		// default tags are static; failure means a malformed tag
		panic(fmt.Sprintf("econ: default params: %v", err))
	}
	return p
}

// DefaultEquilibriumThresholds returns the reference equilibrium pass marks.
func DefaultEquilibriumThresholds() EquilibriumThresholds {
	return DefaultParams().Equilibrium
}

// Normalize fills zero-valued fields from their defaults. Fields that are
// legitimately zero in a policy (for example Alpha) must be set after calling it.
func (p *Params) Normalize() error {
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("params defaults: %w", err)
	}
	return nil
}

// Validate checks that the parameter set is usable.
func (p Params) Validate() error {
	if err := paramsValidator.Struct(p); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if p.EmergencyLiquidity < p.HaltLiquidity {
		return fmt.Errorf("params: emergency_liquidity (%v) must be >= halt_liquidity (%v)", p.EmergencyLiquidity, p.HaltLiquidity)
	}
	return nil
}
