package middleware

import (
	"log/slog"
	"strings"
	"time"

	"streakbuddy/config"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/domain/constants"
	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/service"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	queryAccessToken = "access_token"
	queryTimezone    = "tz"
)

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	Identity service.IdentityProvider
	Config   *config.Config
	Logger   *slog.Logger
}

// AuthMiddleware verifies bearer tokens and resolves the caller's calendar.
type AuthMiddleware struct {
	identity   service.IdentityProvider
	defaultLoc *time.Location
	logger     *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) (*AuthMiddleware, error) {
	loc, err := time.LoadLocation(params.Config.Engine.DefaultTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "engine.defaultTimezone %q", params.Config.Engine.DefaultTimezone)
	}

	return &AuthMiddleware{
		identity:   params.Identity,
		defaultLoc: loc,
		logger:     params.Logger,
	}, nil
}

// Authenticate validates the token and stores the identity and actor on the context.
// WebSocket upgrades may pass the token and timezone as query parameters since
// browsers cannot set headers on them.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		upgrade := websocket.IsWebSocketUpgrade(req)

		token, ok := bearerToken(req.Header.Get(echo.HeaderAuthorization))
		if !ok && upgrade {
			token = c.QueryParam(queryAccessToken)
		}

		if token == "" {
			return domainerrors.ErrUnauthorized.WithDetails("authorization header is missing")
		}

		identity, err := m.identity.VerifyToken(req.Context(), token)
		if err != nil {
			deliverycontext.GetLoggerOrDefault(req.Context(), m.logger).Debug("Token rejected", slog.Any("error", err))

			return domainerrors.ErrUnauthorized
		}

		tz := req.Header.Get(constants.HeaderTimezone)
		if tz == "" && upgrade {
			tz = c.QueryParam(queryTimezone)
		}

		loc, err := m.location(tz)
		if err != nil {
			return err
		}

		deliverycontext.SetAuth(c, identity, entity.NewActor(identity.UserID, loc))

		ctx := req.Context()
		reqLogger := deliverycontext.GetLoggerOrDefault(ctx, m.logger).With(slog.String("user_id", identity.UserID))
		c.SetRequest(req.WithContext(deliverycontext.WithLogger(ctx, reqLogger)))

		return next(c)
	}
}

func (m *AuthMiddleware) location(tz string) (*time.Location, error) {
	if tz == "" {
		return m.defaultLoc, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown timezone " + tz)
	}

	return loc, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(header[len(prefix):]), true
}

// GetActor returns the authenticated actor or ErrUnauthorized.
func GetActor(c echo.Context) (entity.Actor, error) {
	actor, ok := deliverycontext.GetActor(c)
	if !ok {
		return entity.Actor{}, domainerrors.ErrUnauthorized
	}

	return actor, nil
}

// GetIdentity returns the verified identity or ErrUnauthorized.
func GetIdentity(c echo.Context) (*entity.Identity, error) {
	identity, ok := deliverycontext.GetIdentity(c)
	if !ok {
		return nil, domainerrors.ErrUnauthorized
	}

	return identity, nil
}
