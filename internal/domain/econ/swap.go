package econ

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrSlippageExceeded is returned when a swap would slip past its tolerance.
var ErrSlippageExceeded = errors.New("econ: slippage exceeds tolerance")

var (
	slippageAmplifier = decimal.NewFromInt(10)
	priceImpactRate   = decimal.RequireFromString("0.01")
)

// SwapSide is the direction of a swap relative to the token.
type SwapSide string

const (
	SwapSell SwapSide = "sell"
	SwapBuy  SwapSide = "buy"
)

// SwapInput describes a swap against a single liquidity pool. A nil
// Tolerance uses the engine's configured slippage tolerance.
type SwapInput struct {
	Amount    decimal.Decimal
	Rate      decimal.Decimal // output units per input unit
	Pool      decimal.Decimal
	Side      SwapSide
	Tolerance *decimal.Decimal
}

// SwapQuote is the priced swap and the pool rate after it.
type SwapQuote struct {
	Slippage      decimal.Decimal `json:"slippage"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
	OutputAmount  decimal.Decimal `json:"output_amount"`
	Fee           decimal.Decimal `json:"fee"`
	PostTradeRate decimal.Decimal `json:"post_trade_rate"`
}

// QuoteSwap prices a swap. Slippage grows with the trade's share of the pool
// and with market volatility; the fee is charged on the input amount. Selling
// moves the pool rate down by 1% of the pool share, buying moves it up.
func (e *Engine) QuoteSwap(in SwapInput) (SwapQuote, error) {
	const op = "quote_swap"
	tolerance := decimal.NewFromFloat(e.p.SwapSlippageTolerance)
	if in.Tolerance != nil {
		tolerance = *in.Tolerance
	}
	switch {
	case in.Amount.IsNegative():
		return SwapQuote{}, decimalInputError(op, "amount", in.Amount, "must be >= 0")
	case !in.Rate.IsPositive():
		return SwapQuote{}, decimalInputError(op, "rate", in.Rate, "must be > 0")
	case !in.Pool.IsPositive():
		return SwapQuote{}, decimalInputError(op, "pool", in.Pool, "must be > 0")
	case tolerance.IsNegative() || !tolerance.LessThan(one):
		return SwapQuote{}, decimalInputError(op, "slippage_tolerance", tolerance, "must be within [0, 1)")
	case in.Side != SwapSell && in.Side != SwapBuy:
		return SwapQuote{}, &InputError{Op: op, Arg: "side", Reason: fmt.Sprintf("must be %q or %q (got %q)", SwapSell, SwapBuy, in.Side)}
	}

	impact := in.Amount.Div(in.Pool)
	slippage := impact.Mul(decimal.NewFromFloat(e.p.SwapVolatility)).Mul(slippageAmplifier)
	if slippage.GreaterThan(tolerance) {
		return SwapQuote{}, fmt.Errorf("%s: %w: %s > %s", op, ErrSlippageExceeded, slippage.String(), tolerance.String())
	}

	q := SwapQuote{
		Slippage:      slippage,
		EffectiveRate: in.Rate.Mul(one.Sub(slippage)),
		Fee:           in.Amount.Mul(decimal.NewFromFloat(e.p.SwapFeeRate)),
	}
	q.OutputAmount = in.Amount.Mul(q.EffectiveRate)

	move := impact.Mul(priceImpactRate)
	if in.Side == SwapSell {
		q.PostTradeRate = in.Rate.Mul(one.Sub(move))
	} else {
		q.PostTradeRate = in.Rate.Mul(one.Add(move))
	}
	return q, nil
}

// LiquidityPoolAPY annualizes a day of swap fees against the pool, in
// percent.
func (e *Engine) LiquidityPoolAPY(fees24h, pool decimal.Decimal) (decimal.Decimal, error) {
	const op = "liquidity_pool_apy"
	switch {
	case fees24h.IsNegative():
		return decimal.Zero, decimalInputError(op, "fees_24h", fees24h, "must be >= 0")
	case !pool.IsPositive():
		return decimal.Zero, decimalInputError(op, "pool", pool, "must be > 0")
	}
	return fees24h.Mul(daysPerYear).Div(pool).Mul(hundred), nil
}
