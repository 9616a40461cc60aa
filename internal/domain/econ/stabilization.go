package econ

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stabilization throttle constants. Adjustments are fee deltas on a transfer
// amount; positive values raise the fee, negative values rebate it.
var (
	throttleApproach   = decimal.RequireFromString("0.8")
	throttleWindow     = decimal.RequireFromString("0.2")
	throttleMaxRate    = decimal.RequireFromString("0.015")
	tooStableRebate    = decimal.RequireFromString("-0.001")
	throttleNeutral    = decimal.RequireFromString("0.002")
	highVolatility     = decimal.RequireFromString("0.3")
	lowVolatility      = decimal.RequireFromString("0.1")
	volatilityRate     = decimal.RequireFromString("0.005")
	lowVolRebate       = decimal.RequireFromString("-0.001")
	shallowDepth       = decimal.NewFromInt(100000)
	deepDepth          = decimal.NewFromInt(1000000)
	shallowPremium     = decimal.RequireFromString("0.01")
	deepRebate         = decimal.RequireFromString("-0.0005")
	globalThrottleAt   = decimal.RequireFromString("0.15")
	globalThrottleBase = decimal.RequireFromString("0.05")
	globalThrottleRate = decimal.RequireFromString("0.02")
	globalNudge        = decimal.RequireFromString("0.001")
	adjustmentCap      = decimal.RequireFromString("0.02")
)

// StabilizationInput describes a transfer inside a stability zone.
type StabilizationInput struct {
	Amount         decimal.Decimal `json:"amount"`
	Deviation      decimal.Decimal `json:"deviation"`       // signed deviation from the reference price, as a ratio
	ThrottleFactor decimal.Decimal `json:"throttle_factor"` // 1 is neutral
	MinDeviation   decimal.Decimal `json:"min_deviation"`
	MaxDeviation   decimal.Decimal `json:"max_deviation"`
	Volatility     decimal.Decimal `json:"volatility"` // 0..1
	LiquidityDepth decimal.Decimal `json:"liquidity_depth"`
}

// StabilizationAdjustment computes the zone fee adjustment for a transfer.
// The throttle grows as deviation approaches the zone's maximum and pushes
// fees up above the reference and down below it; volatility and liquidity
// depth add their own terms. The total is capped at ±2% of the amount.
func (e *Engine) StabilizationAdjustment(in StabilizationInput) (decimal.Decimal, error) {
	const op = "stabilization_adjustment"
	switch {
	case in.Amount.IsNegative():
		return decimal.Zero, decimalInputError(op, "amount", in.Amount, "must be >= 0")
	case !in.MaxDeviation.IsPositive():
		return decimal.Zero, decimalInputError(op, "max_deviation", in.MaxDeviation, "must be > 0")
	case in.MinDeviation.IsNegative() || in.MinDeviation.GreaterThan(in.MaxDeviation):
		return decimal.Zero, decimalInputError(op, "min_deviation", in.MinDeviation, "must be within [0, max_deviation]")
	case in.Volatility.IsNegative():
		return decimal.Zero, decimalInputError(op, "volatility", in.Volatility, "must be >= 0")
	case in.LiquidityDepth.IsNegative():
		return decimal.Zero, decimalInputError(op, "liquidity_depth", in.LiquidityDepth, "must be >= 0")
	}

	adj := zoneThrottle(in).
		Add(volatilityAdjustment(in.Amount, in.Volatility)).
		Add(liquidityAdjustment(in.Amount, in.LiquidityDepth))

	return capAdjustment(in.Amount, adj), nil
}

// GlobalStabilizationAdjustment applies when a transfer has no zone: the
// throttle is driven by the deviation of the reference gold price from its
// target.
func (e *Engine) GlobalStabilizationAdjustment(amount, currentGold, targetGold decimal.Decimal) (decimal.Decimal, error) {
	const op = "global_stabilization_adjustment"
	switch {
	case amount.IsNegative():
		return decimal.Zero, decimalInputError(op, "amount", amount, "must be >= 0")
	case currentGold.IsNegative():
		return decimal.Zero, decimalInputError(op, "current_gold", currentGold, "must be >= 0")
	case !targetGold.IsPositive():
		return decimal.Zero, decimalInputError(op, "target_gold", targetGold, "must be > 0")
	}

	deviation := currentGold.Sub(targetGold).Div(targetGold)

	var adj decimal.Decimal
	if deviation.Abs().GreaterThan(globalThrottleAt) {
		rate := deviation.Abs().Sub(globalThrottleBase).Mul(globalThrottleRate)
		adj = amount.Mul(rate)
		if deviation.IsNegative() {
			adj = adj.Neg()
		}
	} else {
		adj = amount.Mul(deviation).Mul(globalNudge)
	}
	return capAdjustment(amount, adj), nil
}

func zoneThrottle(in StabilizationInput) decimal.Decimal {
	dev := in.Deviation.Abs()
	approach := in.MaxDeviation.Mul(throttleApproach)

	switch {
	case dev.GreaterThan(approach):
		severity := dev.Sub(approach).Div(in.MaxDeviation.Mul(throttleWindow))
		adj := in.Amount.Mul(severity.Mul(throttleMaxRate))
		if in.Deviation.IsNegative() {
			return adj.Neg()
		}
		return adj
	case dev.LessThan(in.MinDeviation):
		return in.Amount.Mul(tooStableRebate)
	default:
		return in.Amount.Mul(in.ThrottleFactor.Sub(decimal.NewFromInt(1))).Mul(throttleNeutral)
	}
}

func volatilityAdjustment(amount, volatility decimal.Decimal) decimal.Decimal {
	switch {
	case volatility.GreaterThan(highVolatility):
		return amount.Mul(volatility).Mul(volatilityRate)
	case volatility.LessThan(lowVolatility):
		return amount.Mul(lowVolRebate)
	default:
		return decimal.Zero
	}
}

func liquidityAdjustment(amount, depth decimal.Decimal) decimal.Decimal {
	switch {
	case depth.LessThan(shallowDepth):
		stress := shallowDepth.Sub(depth).Div(shallowDepth)
		return amount.Mul(stress).Mul(shallowPremium)
	case depth.GreaterThan(deepDepth):
		return amount.Mul(deepRebate)
	default:
		return decimal.Zero
	}
}

func capAdjustment(amount, adj decimal.Decimal) decimal.Decimal {
	limit := amount.Mul(adjustmentCap)
	if adj.GreaterThan(limit) {
		return limit
	}
	if adj.LessThan(limit.Neg()) {
		return limit.Neg()
	}
	return adj
}

func decimalInputError(op, name string, v decimal.Decimal, reason string) error {
	f, _ := v.Float64()
	return &InputError{Op: op, Arg: name, Value: f, Reason: fmt.Sprintf("%s (got %s)", reason, v.String())}
}
