package api

import (
	"context"
	"net/http"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	dservice "CaesarEcon/internal/domain/service"
	"CaesarEcon/internal/service/metrics"
	xhttp "CaesarEcon/pkg/http"
	"CaesarEcon/pkg/http/middleware"
	applogger "CaesarEcon/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SnapshotsHandler serves evaluation, snapshot history, reference bands and
// health.
type SnapshotsHandler struct {
	eval   dservice.StabilityEvaluator
	prices dservice.ReferencePrices
	engine *econ.Engine
	health HealthChecker
	lim    middleware.Limiter
	l      *applogger.Logger
}

func NewSnapshotsHandler(
	eval dservice.StabilityEvaluator,
	prices dservice.ReferencePrices,
	engine *econ.Engine,
	health HealthChecker,
	lim middleware.Limiter,
	l *applogger.Logger,
) *SnapshotsHandler {
	metrics.Register()
	return &SnapshotsHandler{
		eval:   eval,
		prices: prices,
		engine: engine,
		health: health,
		lim:    lim,
		l:      l.With(applogger.String("component", "snapshots_api")),
	}
}

var _ xhttp.Handler = (*SnapshotsHandler)(nil)

func (h *SnapshotsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/healthz", h.Healthz)

	g := e.Group("/api/v1", groupMiddleware(h.lim)...)
	g.POST("/evaluate", h.Evaluate)
	g.GET("/snapshots/latest", h.Latest)
	g.GET("/snapshots", h.History)
	g.GET("/band", h.Band)
}

func (h *SnapshotsHandler) Evaluate(c echo.Context) error {
	start := time.Now()
	req := &models.Observation{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "evaluate", verr)
	}
	rec, err := h.eval.Evaluate(c.Request().Context(), req.Market, req.Observables)
	if err != nil && rec != nil {
		// evaluated but not persisted; the caller still gets the numbers
		h.l.Error("snapshot not persisted", applogger.String("market", req.Market), applogger.Error(err))
		err = nil
	}
	return respond(c, h.l, "evaluate", start, rec, err)
}

func (h *SnapshotsHandler) Latest(c echo.Context) error {
	start := time.Now()
	req := &models.LatestQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "snapshots_latest", verr)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	rec, err := h.eval.Latest(c.Request().Context(), req.Market)
	return respond(c, h.l, "snapshots_latest", start, rec, err)
}

func (h *SnapshotsHandler) History(c echo.Context) error {
	start := time.Now()
	req := &models.SnapshotQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "snapshots", verr)
	}
	from, to, err := xhttp.QueryTimeRange(c, 24*time.Hour)
	if err != nil {
		return respond(c, h.l, "snapshots", start, nil, err)
	}
	rows, err := h.eval.History(c.Request().Context(), req.Market, from, to, req.Limit)
	if err != nil {
		return respond(c, h.l, "snapshots", start, nil, err)
	}
	metrics.APILatency.WithLabelValues("snapshots").Observe(time.Since(start).Seconds())
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// bandResponse is a band position against the tracked reference price.
type bandResponse struct {
	econ.BandPosition
	Symbol         string    `json:"symbol"`
	ReferencePrice float64   `json:"reference_price"`
	ReferenceAt    time.Time `json:"reference_at"`
	Volatility     *float64  `json:"volatility,omitempty"`
}

func (h *SnapshotsHandler) Band(c echo.Context) error {
	start := time.Now()
	req := &models.BandQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return badRequest(c, "band", verr)
	}
	if h.prices == nil {
		return respond(c, h.l, "band", start, nil, xhttp.ServiceUnavailableError("reference price feed disabled"))
	}
	ref, ok := h.prices.Latest(req.Symbol)
	if !ok {
		return respond(c, h.l, "band", start, nil, xhttp.ServiceUnavailableError("no reference price for "+req.Symbol))
	}
	pos, err := h.engine.DeviationBandPosition(req.Price, ref.Price)
	resp := bandResponse{
		BandPosition:   pos,
		Symbol:         ref.Symbol,
		ReferencePrice: ref.Price,
		ReferenceAt:    ref.Timestamp,
	}
	if v, ok := h.prices.Volatility(req.Symbol); ok {
		resp.Volatility = &v
	}
	return respond(c, h.l, "band", start, resp, err)
}

func (h *SnapshotsHandler) Healthz(c echo.Context) error {
	if h.health != nil {
		if err := h.health.Health(c.Request().Context()); err != nil {
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
