package api

import (
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	xhttp "CaesarEcon/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type stakingRewardsResponse struct {
	APY     decimal.Decimal `json:"apy"`
	Rewards decimal.Decimal `json:"rewards"`
}

type decimalValueResponse struct {
	Value decimal.Decimal `json:"value"`
}

func (h *FormulasHandler) ResourceRewards(c echo.Context) error {
	start := time.Now()
	req := &models.ResourceRewardsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "resource_rewards", verr)
	}
	b, err := h.engine.ResourceRewards(req.ResourceUsage, req.DurationHours)
	return respond(c, h.l, "resource_rewards", start, b, err)
}

func (h *FormulasHandler) StakingRewards(c echo.Context) error {
	start := time.Now()
	req := &models.StakingRewardsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "staking_rewards", verr)
	}

	var (
		apy decimal.Decimal
		err error
	)
	if req.APY != nil {
		apy = *req.APY
	} else if apy, err = h.engine.StakeAPY(req.LockDays); err != nil {
		return respond(c, h.l, "staking_rewards", start, nil, err)
	}
	rewards, err := h.engine.StakingRewards(req.Principal, apy, req.Days)
	return respond(c, h.l, "staking_rewards", start, stakingRewardsResponse{APY: apy, Rewards: rewards}, err)
}

func (h *FormulasHandler) SwapQuote(c echo.Context) error {
	start := time.Now()
	req := &models.SwapQuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "swap_quote", verr)
	}
	q, err := h.engine.QuoteSwap(econ.SwapInput{
		Amount:    req.Amount,
		Rate:      req.Rate,
		Pool:      req.Pool,
		Side:      econ.SwapSide(req.Side),
		Tolerance: req.SlippageTolerance,
	})
	return respond(c, h.l, "swap_quote", start, q, err)
}

func (h *FormulasHandler) LiquidityAPY(c echo.Context) error {
	start := time.Now()
	req := &models.LiquidityAPYRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "liquidity_apy", verr)
	}
	v, err := h.engine.LiquidityPoolAPY(req.Fees24h, req.Pool)
	return respond(c, h.l, "liquidity_apy", start, decimalValueResponse{Value: v}, err)
}
