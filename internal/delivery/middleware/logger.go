package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"streakbuddy/config"
	deliverycontext "streakbuddy/internal/delivery/context"
	domainerrors "streakbuddy/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Probe routes hit every few seconds and would drown the access log.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// LoggerMiddleware writes one access log line per request.
type LoggerMiddleware struct {
	logger *slog.Logger
	debug  bool
}

// NewLoggerMiddleware creates a new logger middleware
func NewLoggerMiddleware(logger *slog.Logger, config *config.Config) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger,
		debug:  config.Env.Debug,
	}
}

// Handle logs the request after the handler returns. WebSocket sessions are logged
// when the connection ends, so their latency is the session length.
func (m *LoggerMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, quiet := quietPaths[c.Path()]; quiet && !m.debug {
			return next(c)
		}

		start := time.Now()
		err := next(c)
		m.logRequest(c, time.Since(start), err)

		return err
	}
}

func (m *LoggerMiddleware) logRequest(c echo.Context, latency time.Duration, err error) {
	req := c.Request()
	status := c.Response().Status
	if err != nil && !c.Response().Committed {
		// The error handler has not written yet; report what it will send.
		status = errorStatus(err)
	}

	fields := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("route", c.Path()),
		slog.Int("status", status),
		slog.Duration("latency", latency),
	}

	if m.debug {
		fields = append(fields,
			slog.String("uri", req.URL.Path),
			slog.String("remote_ip", c.RealIP()),
			slog.String("user_agent", req.UserAgent()),
			slog.Int64("bytes_out", c.Response().Size),
		)
		if req.URL.RawQuery != "" {
			fields = append(fields, slog.String("query", req.URL.RawQuery))
		}
	}

	if err != nil {
		fields = append(fields, slog.Any("error", err))
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	// The request-scoped logger carries request_id, and user_id once authenticated.
	logger := deliverycontext.GetLoggerOrDefault(req.Context(), m.logger)
	logger.LogAttrs(req.Context(), level, "HTTP request", fields...)
}

func errorStatus(err error) int {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode()
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return http.StatusInternalServerError
}
