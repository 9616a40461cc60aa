package api

import (
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	"CaesarEcon/internal/service/metrics"
	xhttp "CaesarEcon/pkg/http"
	"CaesarEcon/pkg/http/middleware"
	applogger "CaesarEcon/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// FormulasHandler exposes each engine formula as a POST endpoint.
type FormulasHandler struct {
	engine *econ.Engine
	lim    middleware.Limiter
	l      *applogger.Logger
}

// NewFormulasHandler creates the handler. lim may be nil to disable rate
// limiting.
func NewFormulasHandler(engine *econ.Engine, lim middleware.Limiter, l *applogger.Logger) *FormulasHandler {
	metrics.Register()
	return &FormulasHandler{engine: engine, lim: lim, l: l.With(applogger.String("component", "formulas_api"))}
}

var _ xhttp.Handler = (*FormulasHandler)(nil)

func (h *FormulasHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/formulas", groupMiddleware(h.lim)...)
	g.POST("/psi", h.PSI)
	g.POST("/market-pressure", h.MarketPressure)
	g.POST("/network-utility", h.NetworkUtility)
	g.POST("/liquidity-health", h.LiquidityHealth)
	g.POST("/validator-reward", h.ValidatorReward)
	g.POST("/holder-cost", h.HolderCost)
	g.POST("/transaction-fee", h.TransactionFee)
	g.POST("/convergence-rate", h.ConvergenceRate)
	g.POST("/circuit-breaker", h.CircuitBreaker)
	g.POST("/equilibrium", h.Equilibrium)
	g.POST("/spread", h.Spread)
	g.POST("/reserve-requirement", h.ReserveRequirement)
	g.POST("/proportional-cost", h.ProportionalCost)
	g.POST("/deviation-band", h.DeviationBand)
	g.POST("/stabilization-adjustment", h.StabilizationAdjustment)
	g.POST("/resource-rewards", h.ResourceRewards)
	g.POST("/staking-rewards", h.StakingRewards)
	g.POST("/swap-quote", h.SwapQuote)
	g.POST("/liquidity-apy", h.LiquidityAPY)
}

func groupMiddleware(lim middleware.Limiter) []echo.MiddlewareFunc {
	if lim == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.RateLimit(lim)}
}

func (h *FormulasHandler) value(c echo.Context, endpoint string, start time.Time, v float64, err error) error {
	return respond(c, h.l, endpoint, start, models.ValueResponse{Value: v}, err)
}

func (h *FormulasHandler) PSI(c echo.Context) error {
	start := time.Now()
	req := &models.PSIRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "psi", verr)
	}
	v, err := h.engine.PriceStabilityIndex(req.CurrentPrice, req.TargetPrice, req.MarketPressure, req.ValidatorParticipation, req.HolderParticipation)
	return h.value(c, "psi", start, v, err)
}

func (h *FormulasHandler) MarketPressure(c echo.Context) error {
	start := time.Now()
	req := &models.MarketPressureRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "market_pressure", verr)
	}
	v, err := h.engine.MarketPressure(req.BuysVolume, req.SellsVolume, req.EffectiveLiquidity, req.ValidatorCount)
	return h.value(c, "market_pressure", start, v, err)
}

func (h *FormulasHandler) NetworkUtility(c echo.Context) error {
	start := time.Now()
	req := &models.NetworkUtilityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "network_utility", verr)
	}
	var (
		v   float64
		err error
	)
	if req.TargetTransfers != nil {
		v, err = h.engine.NetworkUtilityScoreWithTarget(req.DailyTransactions, req.CrossChainTransfers, *req.TargetTransfers)
	} else {
		v, err = h.engine.NetworkUtilityScore(req.DailyTransactions, req.CrossChainTransfers)
	}
	return h.value(c, "network_utility", start, v, err)
}

func (h *FormulasHandler) LiquidityHealth(c echo.Context) error {
	start := time.Now()
	req := &models.LiquidityHealthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "liquidity_health", verr)
	}
	v, err := h.engine.LiquidityHealthIndex(req.ActiveParticipants, req.TotalHolders, req.CurrentLiquidity, req.StabilityReserve, req.RequiredReserve)
	return h.value(c, "liquidity_health", start, v, err)
}

func (h *FormulasHandler) ValidatorReward(c echo.Context) error {
	start := time.Now()
	req := &models.ValidatorRewardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "validator_reward", verr)
	}
	v, err := h.engine.ValidatorReward(req.BaseRewardRate, req.DailyTransactions, req.ValidatorCount, req.PSI)
	return h.value(c, "validator_reward", start, v, err)
}

func (h *FormulasHandler) HolderCost(c echo.Context) error {
	start := time.Now()
	req := &models.HolderCostRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "holder_cost", verr)
	}
	v, err := h.engine.HolderCost(req.BaseRate, req.TimeHeld, req.Balance, req.PSI)
	return h.value(c, "holder_cost", start, v, err)
}

func (h *FormulasHandler) TransactionFee(c echo.Context) error {
	start := time.Now()
	req := &models.TransactionFeeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "transaction_fee", verr)
	}
	v, err := h.engine.TransactionFee(req.BaseFee, req.PSI, req.TransactionSize, req.LiquidityRatio)
	return h.value(c, "transaction_fee", start, v, err)
}

func (h *FormulasHandler) ConvergenceRate(c echo.Context) error {
	start := time.Now()
	req := &models.ConvergenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "convergence_rate", verr)
	}
	v, err := h.engine.ConvergenceRate(req.CurrentPrice, req.TargetPrice, req.MarketPressure, req.StabilityIndex)
	return h.value(c, "convergence_rate", start, v, err)
}

func (h *FormulasHandler) CircuitBreaker(c echo.Context) error {
	start := time.Now()
	req := &models.CircuitBreakerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "circuit_breaker", verr)
	}
	flags, err := h.engine.CircuitBreakerConditions(req.LiquidityRatio, req.CurrentPrice, req.TargetPrice, req.LiquidityHealthIndex)
	return respond(c, h.l, "circuit_breaker", start, flags, err)
}

func (h *FormulasHandler) Equilibrium(c echo.Context) error {
	start := time.Now()
	req := &models.EquilibriumRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "equilibrium", verr)
	}
	var (
		res econ.EquilibriumResult
		err error
	)
	if req.Thresholds != nil {
		t := req.Thresholds.Apply(h.engine.Params().Equilibrium)
		res, err = h.engine.EquilibriumStateWith(req.PSI, req.LHI, req.NUS, req.ConvergenceRate, t)
	} else {
		res, err = h.engine.EquilibriumState(req.PSI, req.LHI, req.NUS, req.ConvergenceRate)
	}
	return respond(c, h.l, "equilibrium", start, res, err)
}

func (h *FormulasHandler) Spread(c echo.Context) error {
	start := time.Now()
	req := &models.SpreadRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "spread", verr)
	}
	v, err := h.engine.DynamicSpread(req.BaseSpread, req.LiquidityRatio, req.MarketPressure, req.NormalizedValidators)
	return h.value(c, "spread", start, v, err)
}

func (h *FormulasHandler) ReserveRequirement(c echo.Context) error {
	start := time.Now()
	req := &models.ReserveRequirementRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "reserve_requirement", verr)
	}
	v, err := h.engine.StabilityReserveRequirement(req.TotalSupply, req.TotalDecayPenalties)
	return h.value(c, "reserve_requirement", start, v, err)
}

func (h *FormulasHandler) ProportionalCost(c echo.Context) error {
	start := time.Now()
	req := &models.ProportionalCostRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "proportional_cost", verr)
	}
	multiplier := 1.0
	if req.IncentiveMultiplier != nil {
		multiplier = *req.IncentiveMultiplier
	}
	v, err := h.engine.IndividualProportionalCost(req.TotalMarketCost, req.HolderBalance, req.TotalSupply, multiplier)
	return h.value(c, "proportional_cost", start, v, err)
}

func (h *FormulasHandler) DeviationBand(c echo.Context) error {
	start := time.Now()
	req := &models.DeviationBandRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "deviation_band", verr)
	}
	var (
		pos econ.BandPosition
		err error
	)
	if req.BandWidth != nil {
		pos, err = h.engine.DeviationBand(req.CurrentPrice, req.GoldPrice, *req.BandWidth)
	} else {
		pos, err = h.engine.DeviationBandPosition(req.CurrentPrice, req.GoldPrice)
	}
	return respond(c, h.l, "deviation_band", start, pos, err)
}

// stabilizationResponse keeps decimal precision on the wire.
type stabilizationResponse struct {
	Adjustment decimal.Decimal `json:"adjustment"`
	Mode       string          `json:"mode"`
}

func (h *FormulasHandler) StabilizationAdjustment(c echo.Context) error {
	start := time.Now()
	req := &models.StabilizationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "stabilization_adjustment", verr)
	}

	if req.MaxDeviation.IsZero() {
		adj, err := h.engine.GlobalStabilizationAdjustment(req.Amount, req.CurrentGold, req.TargetGold)
		return respond(c, h.l, "stabilization_adjustment", start, stabilizationResponse{Adjustment: adj, Mode: "global"}, err)
	}

	throttle := decimal.NewFromInt(1)
	if req.ThrottleFactor != nil {
		throttle = *req.ThrottleFactor
	}
	adj, err := h.engine.StabilizationAdjustment(econ.StabilizationInput{
		Amount:         req.Amount,
		Deviation:      req.Deviation,
		ThrottleFactor: throttle,
		MinDeviation:   req.MinDeviation,
		MaxDeviation:   req.MaxDeviation,
		Volatility:     req.Volatility,
		LiquidityDepth: req.LiquidityDepth,
	})
	return respond(c, h.l, "stabilization_adjustment", start, stabilizationResponse{Adjustment: adj, Mode: "zone"}, err)
}
