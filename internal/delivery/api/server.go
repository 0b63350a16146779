package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"streakbuddy/config"
	"streakbuddy/internal/delivery"
	apimiddleware "streakbuddy/internal/delivery/api/middleware"
	"streakbuddy/internal/delivery/api/router"
	"streakbuddy/internal/delivery/api/validator"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/delivery/middleware"
	"streakbuddy/internal/domain/constants"
	"streakbuddy/internal/domain/lifecycle"
	"streakbuddy/internal/errors"
	"streakbuddy/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

type apiServer struct {
	cfg    *config.Config
	logger *slog.Logger
	server *echo.Echo
}

// ServerParams holds dependencies for HTTP server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Registry
	RouterParams router.RouterParams
}

// NewServer builds the client-facing API and stops it with the fx lifecycle.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &apiServer{
		cfg:    params.Cfg,
		logger: params.Logger,
		server: newEcho(params),
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

// clientHeaders are the request headers browsers may send cross-origin.
var clientHeaders = []string{
	echo.HeaderAuthorization,
	echo.HeaderContentType,
	constants.HeaderTimezone,
	deliverycontext.HeaderXRequestID,
}

func newEcho(params ServerParams) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	timeouts := params.Cfg.HTTP.Timeouts
	e.Server.ReadTimeout = timeouts.ReadTimeout
	e.Server.ReadHeaderTimeout = timeouts.ReadHeaderTimeout
	e.Server.WriteTimeout = timeouts.WriteTimeout
	e.Server.IdleTimeout = timeouts.IdleTimeout

	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(params.Logger).HandleHTTPError
	e.Validator = validator.New()

	// Recover wraps everything; the request id must exist before anything logs.
	e.Use(
		echomiddleware.Recover(),
		middleware.NewRequestIDMiddleware(params.Logger).Process,
		middleware.NewLoggerMiddleware(params.Logger, params.Cfg).Handle,
		params.Metrics.Middleware,
		echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowHeaders:  clientHeaders,
			ExposeHeaders: []string{deliverycontext.HeaderXRequestID},
		}),
		echomiddleware.BodyLimit(params.Cfg.HTTP.MaxRequestBodySize),
	)

	r := router.NewRouter(params.RouterParams)
	r.RegisterRoutes(e)
	r.RegisterDevRoutes(e)

	return e
}

func (s *apiServer) Serve(ctx context.Context) error {
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.HTTP.Port))
	s.logger.Info("API server listening", slog.String("addr", addr))

	err := s.server.StartH2CServer(addr, &http2.Server{IdleTimeout: s.cfg.HTTP.Timeouts.IdleTimeout})
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *apiServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("API server draining connections")

	return errors.WithStack(s.server.Shutdown(shutdownCtx))
}
