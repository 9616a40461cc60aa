package api

import (
	"errors"
	"time"

	"CaesarEcon/internal/domain/econ"
	drepo "CaesarEcon/internal/domain/repository"
	"CaesarEcon/internal/service/metrics"
	xhttp "CaesarEcon/pkg/http"
	applogger "CaesarEcon/pkg/logger"

	"github.com/labstack/echo/v4"
)

// toAppError maps domain errors onto the HTTP error envelope.
func toAppError(err error) (*xhttp.AppError, string) {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr, "client"
	}
	var inErr *econ.InputError
	switch {
	case errors.As(err, &inErr):
		return xhttp.InvalidInputError(inErr.Arg, inErr.Error()).
			WithParam("op", inErr.Op).
			WithError(err), "invalid_input"
	case errors.Is(err, econ.ErrNonFiniteResult):
		return xhttp.UnprocessableError(err.Error()).WithError(err), "non_finite"
	case errors.Is(err, econ.ErrSlippageExceeded):
		return xhttp.UnprocessableError(err.Error()).WithError(err), "slippage"
	case errors.Is(err, drepo.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err), "not_found"
	default:
		return xhttp.InternalError("internal error").WithError(err), "internal"
	}
}

// respond writes v, or the mapped error, and records endpoint telemetry.
func respond(c echo.Context, l *applogger.Logger, endpoint string, start time.Time, v interface{}, err error) error {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err == nil {
		return xhttp.SuccessResponse(c, v)
	}

	appErr, class := toAppError(err)
	metrics.APIErrors.WithLabelValues(endpoint, class).Inc()
	if class == "internal" {
		l.Error("api request failed", applogger.String("endpoint", endpoint), applogger.Error(err))
	} else {
		l.Debug("api request rejected", applogger.String("endpoint", endpoint), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// badRequest records a binding/validation failure.
func badRequest(c echo.Context, endpoint string, verr interface{}) error {
	metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
	return xhttp.BadRequestResponse(c, verr)
}
