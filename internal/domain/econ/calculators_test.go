package econ

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestResourceRewards(t *testing.T) {
	e := NewDefault()
	usage := ResourceUsage{CPU: d("0.5"), Memory: d("0.5"), Storage: d("0.5"), Bandwidth: d("1"), UptimeHours: d("24")}

	b, err := e.ResourceRewards(usage, d("10"))
	require.NoError(t, err)
	assertDecimal(t, "10", b.CPU)
	assertDecimal(t, "7.5", b.Memory)
	assertDecimal(t, "6", b.Storage)
	assertDecimal(t, "10", b.Bandwidth)
	assertDecimal(t, "10", b.Base)
	assertDecimal(t, "1", b.UptimeBonus)
	assertDecimal(t, "1.1", b.UptimeMultiplier)
	assertDecimal(t, "44.5", b.Total)

	t.Run("usage is clamped", func(t *testing.T) {
		b, err := e.ResourceRewards(ResourceUsage{CPU: d("1.5"), Memory: d("-1"), Bandwidth: d("40"), UptimeHours: d("23")}, d("1"))
		require.NoError(t, err)
		assertDecimal(t, "2", b.CPU)
		assertDecimal(t, "0", b.Memory)
		assertDecimal(t, "10", b.Bandwidth)
		assertDecimal(t, "0", b.UptimeBonus) // 23h is not above the threshold
		assertDecimal(t, "1", b.UptimeMultiplier)
	})

	t.Run("duration outside a day", func(t *testing.T) {
		for _, h := range []string{"-1", "24.5"} {
			_, err := e.ResourceRewards(usage, d(h))
			assert.ErrorIs(t, err, ErrInvalidInput, h)
		}
		_, err := e.ResourceRewards(usage, d("24"))
		assert.NoError(t, err)
	})
}

func TestStakeAPY(t *testing.T) {
	e := NewDefault()

	apy, err := e.StakeAPY(0)
	require.NoError(t, err)
	assertDecimal(t, "4.2", apy)

	apy, err = e.StakeAPY(365)
	require.NoError(t, err)
	assertDecimal(t, "6.2", apy)

	_, err = e.StakeAPY(-1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStakingRewards(t *testing.T) {
	e := NewDefault()

	got, err := e.StakingRewards(d("1000"), d("4.2"), 365)
	require.NoError(t, err)
	f, _ := got.Float64()
	assert.InDelta(t, 42.89195885693453, f, 1e-6)

	got, err = e.StakingRewards(d("1000"), d("4.2"), 0)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	// compounding is monotone in time
	short, err := e.StakingRewards(d("1000"), d("4.2"), 30)
	require.NoError(t, err)
	assert.True(t, short.LessThan(d("42.9")) && short.IsPositive())

	_, err = e.StakingRewards(d("-1"), d("4.2"), 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.StakingRewards(d("1"), d("4.2"), -10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStakingRewardsWholePeriods(t *testing.T) {
	p := DefaultParams()
	p.StakingCompoundHours = 24 * 7
	e, err := New(p)
	require.NoError(t, err)

	// six days is not a full weekly period
	got, err := e.StakingRewards(d("1000"), d("10"), 6)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = e.StakingRewards(d("1000"), d("10"), 7)
	require.NoError(t, err)
	assert.True(t, got.IsPositive())
}

func TestQuoteSwap(t *testing.T) {
	e := NewDefault()
	in := SwapInput{Amount: d("100000"), Rate: d("1.48"), Pool: d("10000000"), Side: SwapSell}

	q, err := e.QuoteSwap(in)
	require.NoError(t, err)
	assertDecimal(t, "0.005", q.Slippage)
	assertDecimal(t, "1.4726", q.EffectiveRate)
	assertDecimal(t, "147260", q.OutputAmount)
	assertDecimal(t, "300", q.Fee)
	assertDecimal(t, "1.479852", q.PostTradeRate)

	in.Side = SwapBuy
	q, err = e.QuoteSwap(in)
	require.NoError(t, err)
	assertDecimal(t, "1.480148", q.PostTradeRate)
}

func TestQuoteSwapSlippage(t *testing.T) {
	e := NewDefault()
	in := SwapInput{Amount: d("1000000"), Rate: d("1.48"), Pool: d("10000000"), Side: SwapSell}

	_, err := e.QuoteSwap(in)
	require.ErrorIs(t, err, ErrSlippageExceeded)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	wide := d("0.1")
	in.Tolerance = &wide
	q, err := e.QuoteSwap(in)
	require.NoError(t, err)
	assertDecimal(t, "0.05", q.Slippage)
}

func TestQuoteSwapRejects(t *testing.T) {
	e := NewDefault()
	base := SwapInput{Amount: d("10"), Rate: d("1"), Pool: d("100"), Side: SwapSell}
	tooWide := d("1")

	cases := map[string]func(*SwapInput){
		"negative amount": func(in *SwapInput) { in.Amount = d("-1") },
		"zero rate":       func(in *SwapInput) { in.Rate = decimal.Zero },
		"empty pool":      func(in *SwapInput) { in.Pool = decimal.Zero },
		"unknown side":    func(in *SwapInput) { in.Side = "hold" },
		"tolerance of 1":  func(in *SwapInput) { in.Tolerance = &tooWide },
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			modify(&in)
			_, err := e.QuoteSwap(in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLiquidityPoolAPY(t *testing.T) {
	e := NewDefault()

	apy, err := e.LiquidityPoolAPY(d("300"), d("10000000"))
	require.NoError(t, err)
	assertDecimal(t, "1.095", apy)

	_, err = e.LiquidityPoolAPY(d("300"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
