package econ

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceStabilityIndexAtTarget(t *testing.T) {
	e := NewDefault()
	for _, p := range []float64{0, 0.25, 0.5, 1} {
		got, err := e.PriceStabilityIndex(1, 1, 0, p, p)
		require.NoError(t, err)
		assert.InDelta(t, math.Min(1, 0.8+0.2*p), got, 1e-12, "participation %v", p)
	}
}

func TestPriceStabilityIndexBounded(t *testing.T) {
	e := NewDefault()
	cases := []struct {
		current, target, pressure, vp, hp float64
	}{
		{0, 1, 0, 0, 0},
		{1e12, 1, 1e9, 0, 0},
		{0.5, 1, -3, 10, 10},
		{1, 1, 0, 5, 5},
		{2, 1, 0.5, 0.1, 0.9},
	}
	for _, c := range cases {
		got, err := e.PriceStabilityIndex(c.current, c.target, c.pressure, c.vp, c.hp)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestPriceStabilityIndexRejectsBadTarget(t *testing.T) {
	e := NewDefault()
	_, err := e.PriceStabilityIndex(1, 0, 0, 0, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "target_price", ie.Arg)

	_, err = e.PriceStabilityIndex(math.NaN(), 1, 0, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMarketPressure(t *testing.T) {
	e := NewDefault()

	got, err := e.MarketPressure(0, 0, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, got)

	// all buys, liquidity far below scale: amplified by 1/0.1
	got, err = e.MarketPressure(100, 0, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10, got, 1e-9)

	// all sells with deep liquidity: 2e6 / (1 * 1e6) = 2 -> factor 0.5
	got, err = e.MarketPressure(0, 100, 2e6, 1)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, got, 1e-9)

	_, err = e.MarketPressure(-1, 0, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNetworkUtilityScore(t *testing.T) {
	e := NewDefault()

	got, err := e.NetworkUtilityScore(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = e.NetworkUtilityScore(1_000_000, 500_000)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	// saturates
	got, err = e.NetworkUtilityScore(1e12, 1e12)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = e.NetworkUtilityScoreWithTarget(100, 50, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.6*0.5+0.4*0.5, got, 1e-12)

	_, err = e.NetworkUtilityScoreWithTarget(1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLiquidityHealthIndexBounds(t *testing.T) {
	e := NewDefault()
	values := []float64{0, 0.5, 1, 3, 1e6, math.MaxFloat64}
	for _, ap := range values {
		for _, th := range values {
			for _, cl := range values {
				got, err := e.LiquidityHealthIndex(ap, th, cl, 1, 1)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, 0.2)
				assert.LessOrEqual(t, got, 1.0)
			}
		}
	}
}

func TestLiquidityHealthIndexSaturatedProduct(t *testing.T) {
	e := NewDefault()
	got, err := e.LiquidityHealthIndex(math.MaxFloat64, 1, math.MaxFloat64, math.MaxFloat64, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestLiquidityHealthIndexMidRange(t *testing.T) {
	e := NewDefault()
	// 50/100 * 0.8/0.8 * 1 = 0.5
	got, err := e.LiquidityHealthIndex(50, 100, 0.8, 10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	_, err = e.LiquidityHealthIndex(1, -1, 1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConvergenceRate(t *testing.T) {
	e := NewDefault()
	got, err := e.ConvergenceRate(90, 100, 2, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.1*10-0.05*2+0.05*0.5, got, 1e-12)

	_, err = e.ConvergenceRate(math.Inf(1), 100, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
