package econ

import "github.com/shopspring/decimal"

var (
	daysPerYear  = decimal.NewFromInt(365)
	hoursPerYear = decimal.NewFromInt(365 * 24)
	hundred      = decimal.NewFromInt(100)
)

// stakingPlaces is the rounding applied at each compounding step.
const stakingPlaces = 24

// StakeAPY is the annual yield, in percent, for a stake locked for lockDays.
// A one-year lock adds the full lock bonus; shorter locks add it pro rata.
func (e *Engine) StakeAPY(lockDays int) (decimal.Decimal, error) {
	if lockDays < 0 {
		return decimal.Zero, &InputError{Op: "stake_apy", Arg: "lock_days", Value: float64(lockDays), Reason: "must be >= 0"}
	}
	bonus := decimal.NewFromInt(int64(lockDays)).Div(daysPerYear).Mul(decimal.NewFromFloat(e.p.StakingLockBonusAPY))
	return decimal.NewFromFloat(e.p.StakingBaseAPY).Add(bonus), nil
}

// StakingRewards is the compound interest earned by principal at apy percent
// over days, A = P(1 + r/n)^k - P, where n is the compounding periods per
// year and k the whole periods elapsed.
func (e *Engine) StakingRewards(principal, apy decimal.Decimal, days int) (decimal.Decimal, error) {
	const op = "staking_rewards"
	switch {
	case principal.IsNegative():
		return decimal.Zero, decimalInputError(op, "principal", principal, "must be >= 0")
	case apy.IsNegative():
		return decimal.Zero, decimalInputError(op, "apy", apy, "must be >= 0")
	case days < 0:
		return decimal.Zero, &InputError{Op: op, Arg: "days", Value: float64(days), Reason: "must be >= 0"}
	}

	periods := int64(days) * 24 / int64(e.p.StakingCompoundHours)
	if periods == 0 || principal.IsZero() {
		return decimal.Zero, nil
	}
	perYear := hoursPerYear.Div(decimal.NewFromInt(int64(e.p.StakingCompoundHours)))
	factor := one.Add(apy.Div(hundred).Div(perYear))

	final := principal.Mul(powRound(factor, periods, stakingPlaces))
	return final.Sub(principal).Round(stakingPlaces / 2), nil
}

// powRound raises base to a non-negative integer power by squaring,
// rounding every product to places.
func powRound(base decimal.Decimal, exp int64, places int32) decimal.Decimal {
	out := one
	for exp > 0 {
		if exp&1 == 1 {
			out = out.Mul(base).Round(places)
		}
		base = base.Mul(base).Round(places)
		exp >>= 1
	}
	return out
}
