package apperr

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPError converts a domain error into the echo error returned by
// handlers. Storage failures are reported without driver detail.
func HTTPError(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
