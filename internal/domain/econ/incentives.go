package econ

import "math"

// ValidatorReward is the validators' share of transaction-driven rewards plus
// a bonus proportional to price stability.
func (e *Engine) ValidatorReward(baseRewardRate, dailyTransactions, validatorCount, psi float64) (float64, error) {
	const op = "validator_reward"
	if err := check(
		nonNegative(op, a("base_reward_rate", baseRewardRate), a("daily_transactions", dailyTransactions), a("validator_count", validatorCount)),
		finite(op, a("psi", psi)),
	); err != nil {
		return 0, err
	}

	marketReward := (dailyTransactions / math.Max(1, validatorCount)) * baseRewardRate * e.p.ValidatorShare
	stabilityBonus := marketReward * psi

	return result(op, marketReward+stabilityBonus)
}

// HolderCost is the demurrage charged for holding a balance. It grows with the
// log of the balance and rises as stability falls.
func (e *Engine) HolderCost(baseRate, timeHeld, balance, psi float64) (float64, error) {
	const op = "holder_cost"
	if err := check(
		nonNegative(op, a("base_rate", baseRate), a("time_held", timeHeld), a("balance", balance)),
		finite(op, a("psi", psi)),
	); err != nil {
		return 0, err
	}

	balanceFactor := math.Log2(1 + balance/e.p.DemurrageBalanceUnit)
	stabilityFactor := 1 - psi

	return result(op, baseRate*timeHeld*balanceFactor*stabilityFactor)
}

// TransactionFee scales the base fee by transfer size, thin liquidity and
// instability.
func (e *Engine) TransactionFee(baseFee, psi, transactionSize, liquidityRatio float64) (float64, error) {
	const op = "transaction_fee"
	if err := check(
		nonNegative(op, a("base_fee", baseFee), a("transaction_size", transactionSize), a("liquidity_ratio", liquidityRatio)),
		finite(op, a("psi", psi)),
	); err != nil {
		return 0, err
	}

	volumeFactor := 1 + math.Log2(1+transactionSize/e.p.FeeSizeUnit)
	liquidityFactor := 1 / math.Max(e.p.FeeLiquidityFloor, liquidityRatio)
	stabilityFactor := 1 + (1 - psi)

	return result(op, baseFee*volumeFactor*liquidityFactor*stabilityFactor)
}

// StabilityReserveRequirement is the greater of the supply floor and a multiple
// of recent decay-penalty flow.
func (e *Engine) StabilityReserveRequirement(totalSupply, totalDecayPenalties float64) (float64, error) {
	const op = "stability_reserve_requirement"
	if err := nonNegative(op, a("total_supply", totalSupply), a("total_decay_penalties", totalDecayPenalties)); err != nil {
		return 0, err
	}
	return result(op, math.Max(totalSupply*e.p.ReserveFloor, totalDecayPenalties*e.p.DecayPenaltyMultiple))
}

// IndividualProportionalCost allocates a market-wide cost strictly pro rata to
// the holder's stake.
func (e *Engine) IndividualProportionalCost(totalMarketCost, holderBalance, totalSupply, incentiveMultiplier float64) (float64, error) {
	const op = "individual_proportional_cost"
	if err := check(
		finite(op, a("total_market_cost", totalMarketCost), a("incentive_multiplier", incentiveMultiplier)),
		nonNegative(op, a("holder_balance", holderBalance)),
		positive(op, a("total_supply", totalSupply)),
	); err != nil {
		return 0, err
	}
	return result(op, totalMarketCost*(holderBalance/totalSupply)*incentiveMultiplier)
}
