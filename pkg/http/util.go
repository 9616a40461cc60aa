package http

import (
	"time"

	xutil "CaesarEcon/pkg/util"

	"github.com/labstack/echo/v4"
)

// QueryInt reads an int query param or returns def if empty/invalid.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}

// QueryTimeRange reads the from/to query params, defaulting to the window
// ending now. Invalid input yields a 400 AppError.
func QueryTimeRange(c echo.Context, window time.Duration) (time.Time, time.Time, error) {
	from, to, err := xutil.ParseRange(c.QueryParam("from"), c.QueryParam("to"), time.Now(), window)
	if err != nil {
		return time.Time{}, time.Time{}, BadRequestError(err.Error()).WithError(err)
	}
	return from, to, nil
}
