package models

import (
	"CaesarEcon/internal/domain/econ"

	"github.com/shopspring/decimal"
)

// Request bodies for the /api/v1/formulas endpoints. Domain checks (finite,
// positive) are left to the engine so the error names the formula argument.

type PSIRequest struct {
	CurrentPrice           float64 `json:"current_price"`
	TargetPrice            float64 `json:"target_price" validate:"required"`
	MarketPressure         float64 `json:"market_pressure"`
	ValidatorParticipation float64 `json:"validator_participation"`
	HolderParticipation    float64 `json:"holder_participation"`
}

type MarketPressureRequest struct {
	BuysVolume         float64 `json:"buys_volume"`
	SellsVolume        float64 `json:"sells_volume"`
	EffectiveLiquidity float64 `json:"effective_liquidity"`
	ValidatorCount     float64 `json:"validator_count"`
}

type NetworkUtilityRequest struct {
	DailyTransactions   float64  `json:"daily_transactions"`
	CrossChainTransfers float64  `json:"cross_chain_transfers"`
	TargetTransfers     *float64 `json:"target_transfers,omitempty"`
}

type LiquidityHealthRequest struct {
	ActiveParticipants float64 `json:"active_participants"`
	TotalHolders       float64 `json:"total_holders"`
	CurrentLiquidity   float64 `json:"current_liquidity"`
	StabilityReserve   float64 `json:"stability_reserve"`
	RequiredReserve    float64 `json:"required_reserve"`
}

type ValidatorRewardRequest struct {
	BaseRewardRate    float64 `json:"base_reward_rate"`
	DailyTransactions float64 `json:"daily_transactions"`
	ValidatorCount    float64 `json:"validator_count"`
	PSI               float64 `json:"psi"`
}

type HolderCostRequest struct {
	BaseRate float64 `json:"base_rate"`
	TimeHeld float64 `json:"time_held"`
	Balance  float64 `json:"balance"`
	PSI      float64 `json:"psi"`
}

type TransactionFeeRequest struct {
	BaseFee         float64 `json:"base_fee"`
	PSI             float64 `json:"psi"`
	TransactionSize float64 `json:"transaction_size"`
	LiquidityRatio  float64 `json:"liquidity_ratio"`
}

type ConvergenceRequest struct {
	CurrentPrice   float64 `json:"current_price"`
	TargetPrice    float64 `json:"target_price" validate:"required"`
	MarketPressure float64 `json:"market_pressure"`
	StabilityIndex float64 `json:"stability_index"`
}

type CircuitBreakerRequest struct {
	LiquidityRatio       float64 `json:"liquidity_ratio"`
	CurrentPrice         float64 `json:"current_price"`
	TargetPrice          float64 `json:"target_price" validate:"required"`
	LiquidityHealthIndex float64 `json:"liquidity_health_index"`
}

type EquilibriumRequest struct {
	PSI             float64             `json:"psi"`
	LHI             float64             `json:"lhi"`
	NUS             float64             `json:"nus"`
	ConvergenceRate float64             `json:"convergence_rate"`
	Thresholds      *ThresholdsOverride `json:"thresholds,omitempty"`
}

// ThresholdsOverride replaces individual equilibrium pass marks. An omitted
// field keeps the engine's configured value; an explicit zero is honoured.
type ThresholdsOverride struct {
	PSIMin  *float64 `json:"psi_min,omitempty"`
	LHIMin  *float64 `json:"lhi_min,omitempty"`
	NUSMin  *float64 `json:"nus_min,omitempty"`
	ConvMax *float64 `json:"conv_max,omitempty"`
}

// Apply overlays the set fields on base.
func (o ThresholdsOverride) Apply(base econ.EquilibriumThresholds) econ.EquilibriumThresholds {
	if o.PSIMin != nil {
		base.PSIMin = *o.PSIMin
	}
	if o.LHIMin != nil {
		base.LHIMin = *o.LHIMin
	}
	if o.NUSMin != nil {
		base.NUSMin = *o.NUSMin
	}
	if o.ConvMax != nil {
		base.ConvMax = *o.ConvMax
	}
	return base
}

type SpreadRequest struct {
	BaseSpread           float64 `json:"base_spread"`
	LiquidityRatio       float64 `json:"liquidity_ratio"`
	MarketPressure       float64 `json:"market_pressure"`
	NormalizedValidators float64 `json:"normalized_validators"`
}

type ReserveRequirementRequest struct {
	TotalSupply         float64 `json:"total_supply"`
	TotalDecayPenalties float64 `json:"total_decay_penalties"`
}

type ProportionalCostRequest struct {
	TotalMarketCost     float64  `json:"total_market_cost"`
	HolderBalance       float64  `json:"holder_balance"`
	TotalSupply         float64  `json:"total_supply"`
	IncentiveMultiplier *float64 `json:"incentive_multiplier,omitempty"` // nil = 1
}

type DeviationBandRequest struct {
	CurrentPrice float64  `json:"current_price"`
	GoldPrice    float64  `json:"gold_price" validate:"required"`
	BandWidth    *float64 `json:"band_width,omitempty"`
}

// StabilizationRequest carries decimal amounts as JSON strings or numbers.
// Zone fields are optional; without MaxDeviation the global adjustment
// against the reference gold price is used.
type StabilizationRequest struct {
	Amount         decimal.Decimal  `json:"amount"`
	Deviation      decimal.Decimal  `json:"deviation"`
	ThrottleFactor *decimal.Decimal `json:"throttle_factor,omitempty"`
	MinDeviation   decimal.Decimal  `json:"min_deviation"`
	MaxDeviation   decimal.Decimal  `json:"max_deviation"`
	Volatility     decimal.Decimal  `json:"volatility"`
	LiquidityDepth decimal.Decimal  `json:"liquidity_depth"`
	CurrentGold    decimal.Decimal  `json:"current_gold"`
	TargetGold     decimal.Decimal  `json:"target_gold"`
}

// ResourceRewardsRequest prices a period of resource sharing.
type ResourceRewardsRequest struct {
	econ.ResourceUsage
	DurationHours decimal.Decimal `json:"duration_hours"`
}

// StakingRewardsRequest projects compound staking rewards. Without an
// explicit APY the lock-period APY is used.
type StakingRewardsRequest struct {
	Principal decimal.Decimal  `json:"principal"`
	APY       *decimal.Decimal `json:"apy,omitempty"`
	Days      int              `json:"days" validate:"gte=0"`
	LockDays  int              `json:"lock_days" validate:"gte=0"`
}

// SwapQuoteRequest prices a swap against a pool. A missing tolerance uses
// the configured one.
type SwapQuoteRequest struct {
	Amount            decimal.Decimal  `json:"amount"`
	Rate              decimal.Decimal  `json:"rate"`
	Pool              decimal.Decimal  `json:"pool"`
	Side              string           `json:"side" default:"sell" validate:"oneof=sell buy"`
	SlippageTolerance *decimal.Decimal `json:"slippage_tolerance,omitempty"`
}

type LiquidityAPYRequest struct {
	Fees24h decimal.Decimal `json:"fees_24h"`
	Pool    decimal.Decimal `json:"pool"`
}

// ValueResponse wraps a scalar formula result.
type ValueResponse struct {
	Value float64 `json:"value"`
}

// SnapshotQuery selects snapshot history.
type SnapshotQuery struct {
	Market string `query:"market" validate:"required,max=64"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=5000"`
}

// LatestQuery selects the last-known-good snapshot.
type LatestQuery struct {
	Market string `query:"market" validate:"required,max=64"`
}

// BandQuery positions a price against the tracked reference price.
type BandQuery struct {
	Symbol string  `query:"symbol" validate:"required"`
	Price  float64 `query:"price" validate:"gt=0"`
}
