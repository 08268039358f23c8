package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"cgi-kvstore/internal/cgierr"
)

// ToCGIError converts any error returned through Echo into a *cgierr.Error.
// Router misses are reported as 405: every path is routable, so a miss means
// the method has no handler.
func ToCGIError(err error) *cgierr.Error {
	var ce *cgierr.Error
	if errors.As(err, &ce) {
		return ce
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return cgierr.MethodNotAllowed()
		case http.StatusRequestEntityTooLarge:
			return cgierr.PayloadTooLarge()
		case http.StatusUnsupportedMediaType:
			return cgierr.UnsupportedMediaType()
		}
		if he.Code >= http.StatusInternalServerError {
			return cgierr.Internal()
		}
		return cgierr.New(he.Code, cgierr.Describe(he.Code))
	}

	return cgierr.Internal()
}

// ErrorHandler returns an Echo error handler that answers with the
// "Error: <message>" body for the error's status.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ce := ToCGIError(err)
		if ce.Code >= http.StatusInternalServerError {
			logger.Error("request failed",
				"err", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)
		} else {
			logger.Debug("request rejected", "status", ce.Code, "err", err)
		}

		if werr := c.String(ce.Code, ce.Body()); werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
