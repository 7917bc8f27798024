package middleware

import (
	"log/slog"
	"time"

	"storefront/internal/logger"
	"storefront/internal/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const HeaderRequestID = "X-Request-ID"

// RequestContext はリクエストIDをctxに載せ、アクセスログとメトリクスを残す
func RequestContext(log *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, rid)
			ctx := logger.WithRequestID(req.Context(), rid)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			err := next(c)
			if err != nil {
				//echoのHTTPErrorHandlerに任せてステータスを確定させる
				c.Error(err)
			}
			elapsed := time.Since(start)

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(route, req.Method, status, elapsed)

			l := logger.FromContext(ctx, log)
			attrs := []any{"method", req.Method, "route", route, "status", status, "duration_ms", elapsed.Milliseconds()}
			if status >= 500 {
				l.ErrorContext(ctx, "request", attrs...)
			} else {
				l.InfoContext(ctx, "request", attrs...)
			}
			return nil
		}
	}
}
