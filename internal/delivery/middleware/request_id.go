package middleware

import (
	"log/slog"
	"strings"

	deliverycontext "streakbuddy/internal/delivery/context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// headerCloudTrace is set by Google front ends and Pub/Sub push as "TRACE_ID/SPAN_ID;o=1".
	headerCloudTrace = "X-Cloud-Trace-Context"

	maxRequestIDLength = 128
)

// RequestIDMiddleware assigns every request an id and a logger tagged with it.
type RequestIDMiddleware struct {
	logger *slog.Logger
}

// NewRequestIDMiddleware creates a new Request ID middleware
func NewRequestIDMiddleware(logger *slog.Logger) *RequestIDMiddleware {
	return &RequestIDMiddleware{
		logger: logger,
	}
}

// Process reuses a well-formed client or trace id, otherwise generates one, and stores
// the id and the request logger in both the echo and the request context.
func (m *RequestIDMiddleware) Process(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		requestID := incomingRequestID(req.Header.Get(deliverycontext.HeaderXRequestID), req.Header.Get(headerCloudTrace))

		deliverycontext.SetRequestID(c, requestID)
		c.Response().Header().Set(deliverycontext.HeaderXRequestID, requestID)

		reqLogger := m.logger.With(slog.String("request_id", requestID))

		ctx := deliverycontext.WithRequestID(req.Context(), requestID)
		ctx = deliverycontext.WithLogger(ctx, reqLogger)
		c.SetRequest(req.WithContext(ctx))

		return next(c)
	}
}

func incomingRequestID(header, cloudTrace string) string {
	if validRequestID(header) {
		return header
	}

	if traceID, _, _ := strings.Cut(cloudTrace, "/"); validRequestID(traceID) {
		return traceID
	}

	return uuid.New().String()
}

// validRequestID rejects ids that would bloat or corrupt log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}

	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}

	return true
}
