package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"cgi-kvstore/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each dispatched request.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Run the error handler now so the response status is final
			// before it is recorded.
			if err := next(c); err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			method := metrics.NormalizeMethod(c.Request().Method)
			route := metrics.NormalizeRoute(c.Request().URL.Path)
			duration := time.Since(start).Seconds()

			m.RequestsTotal.WithLabelValues(method, status, route).Inc()
			m.RequestDuration.WithLabelValues(method, status, route).Observe(duration)

			return nil
		}
	}
}
