package econ

import "math"

// PriceStabilityIndex scores how close the market is to its target in [0,1].
// The stability floor keeps price deviation alone from signalling total
// instability.
func (e *Engine) PriceStabilityIndex(currentPrice, targetPrice, marketPressure, validatorParticipation, holderParticipation float64) (float64, error) {
	const op = "price_stability_index"
	if err := check(
		nonNegative(op, a("current_price", currentPrice), a("validator_participation", validatorParticipation), a("holder_participation", holderParticipation)),
		positive(op, a("target_price", targetPrice)),
		finite(op, a("market_pressure", marketPressure)),
	); err != nil {
		return 0, err
	}

	deviation := math.Abs(targetPrice-currentPrice) / targetPrice
	participation := math.Min(1, (validatorParticipation+holderParticipation)/2)

	stability := e.p.StabilityFloor +
		e.p.DeviationWeight*(1/(1+deviation)) +
		e.p.PressureWeight*(1/(1+math.Abs(marketPressure))) +
		e.p.ParticipationWeight*participation

	return result(op, clamp(stability, 0, 1))
}

// MarketPressure is the signed buy/sell imbalance amplified when liquidity
// per validator is thin. The result is unbounded.
func (e *Engine) MarketPressure(buysVolume, sellsVolume, effectiveLiquidity, validatorCount float64) (float64, error) {
	const op = "market_pressure"
	if err := nonNegative(op,
		a("buys_volume", buysVolume),
		a("sells_volume", sellsVolume),
		a("effective_liquidity", effectiveLiquidity),
		a("validator_count", validatorCount),
	); err != nil {
		return 0, err
	}

	imbalance := (buysVolume - sellsVolume) / math.Max(1, buysVolume+sellsVolume)
	liquidityFactor := effectiveLiquidity / math.Max(1, validatorCount*e.p.LiquidityScale)

	return result(op, imbalance*(1/math.Max(e.p.PressureLiquidityFloor, liquidityFactor)))
}

// NetworkUtilityScore rates network usage against the configured transfer
// target, in [0,1].
func (e *Engine) NetworkUtilityScore(dailyTransactions, crossChainTransfers float64) (float64, error) {
	return e.NetworkUtilityScoreWithTarget(dailyTransactions, crossChainTransfers, e.p.TargetTransfers)
}

// NetworkUtilityScoreWithTarget is NetworkUtilityScore with an explicit target.
func (e *Engine) NetworkUtilityScoreWithTarget(dailyTransactions, crossChainTransfers, targetTransfers float64) (float64, error) {
	const op = "network_utility_score"
	if err := check(
		nonNegative(op, a("daily_transactions", dailyTransactions), a("cross_chain_transfers", crossChainTransfers)),
		positive(op, a("target_transfers", targetTransfers)),
	); err != nil {
		return 0, err
	}

	txUtility := math.Min(1, dailyTransactions/(targetTransfers*e.p.TxTargetMultiple))
	crossChainUtility := math.Min(1, crossChainTransfers/targetTransfers)

	return result(op, e.p.TxUtilityWeight*txUtility+e.p.CrossChainWeight*crossChainUtility)
}

// LiquidityHealthIndex combines participation, liquidity and reserve cover,
// clamped to [HealthFloor,1]. Zero holders or a zero required reserve are
// floored to 1 rather than rejected.
func (e *Engine) LiquidityHealthIndex(activeParticipants, totalHolders, currentLiquidity, stabilityReserve, requiredReserve float64) (float64, error) {
	const op = "liquidity_health_index"
	if err := nonNegative(op,
		a("active_participants", activeParticipants),
		a("total_holders", totalHolders),
		a("current_liquidity", currentLiquidity),
		a("stability_reserve", stabilityReserve),
		a("required_reserve", requiredReserve),
	); err != nil {
		return 0, err
	}

	participationRatio := activeParticipants / math.Max(1, totalHolders)
	liquidityRatio := currentLiquidity / e.p.TargetLiquidity
	reserveRatio := stabilityReserve / math.Max(1, requiredReserve)

	if participationRatio == 0 || liquidityRatio == 0 || reserveRatio == 0 {
		return e.p.HealthFloor, nil
	}
	health := participationRatio * liquidityRatio * reserveRatio
	if math.IsInf(health, 0) {
		// the product of large finite ratios saturates at the ceiling
		return 1, nil
	}
	return result(op, clamp(health, e.p.HealthFloor, 1))
}

// ConvergenceRate is the proportional controller nudging price toward target:
// α(target−current) + β·pressure + γ·stability.
func (e *Engine) ConvergenceRate(currentPrice, targetPrice, marketPressure, stabilityIndex float64) (float64, error) {
	const op = "convergence_rate"
	if err := finite(op,
		a("current_price", currentPrice),
		a("target_price", targetPrice),
		a("market_pressure", marketPressure),
		a("stability_index", stabilityIndex),
	); err != nil {
		return 0, err
	}

	rate := e.p.Alpha*(targetPrice-currentPrice) + e.p.Beta*marketPressure + e.p.Gamma*stabilityIndex
	return result(op, rate)
}
