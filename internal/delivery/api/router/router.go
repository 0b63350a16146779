// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"streakbuddy/config"
	"streakbuddy/internal/delivery/api/middleware"
	"streakbuddy/internal/delivery/api/router/handler"
	"streakbuddy/internal/domain/constants"
	"streakbuddy/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	HabitHandler   *handler.HabitHandler
	ProfileHandler *handler.ProfileHandler
	SessionHandler *handler.SessionHandler
	DevHandler     *handler.DevHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *metrics.Registry
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	habitHandler   *handler.HabitHandler
	profileHandler *handler.ProfileHandler
	sessionHandler *handler.SessionHandler
	devHandler     *handler.DevHandler
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Registry
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		habitHandler:   params.HabitHandler,
		profileHandler: params.ProfileHandler,
		sessionHandler: params.SessionHandler,
		devHandler:     params.DevHandler,
		authMiddleware: params.AuthMiddleware,
		metrics:        params.Metrics,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(r.metrics.Handler()))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(r.authMiddleware.Authenticate) // All API v1 routes require authentication

	apiV1.GET("/live", r.sessionHandler.Live)

	habitsGroup := apiV1.Group("/habits")
	{
		habitsGroup.POST("", r.habitHandler.CreateHabit)
		habitsGroup.GET("/:id", r.habitHandler.GetHabit)
		habitsGroup.POST("/:id/invites", r.habitHandler.InviteBuddy)
		habitsGroup.POST("/:id/invites/:inviteId/respond", r.habitHandler.RespondToInvite)
		habitsGroup.POST("/:id/proofs", r.habitHandler.SubmitProof)
		habitsGroup.GET("/:id/proofs", r.habitHandler.ListProofs)
		habitsGroup.POST("/:id/proofs/:proofId/approve", r.habitHandler.ApproveProof)
		habitsGroup.POST("/:id/proofs/:proofId/reject", r.habitHandler.RejectProof)
		habitsGroup.POST("/:id/nudge", r.habitHandler.Nudge)
	}

	apiV1.GET("/invites", r.habitHandler.ListPendingInvites)
	apiV1.POST("/maintenance/daily-reset", r.habitHandler.DailyReset)

	meGroup := apiV1.Group("/me")
	{
		meGroup.PUT("", r.profileHandler.EnsureProfile)
		meGroup.GET("", r.profileHandler.GetProfile)
		meGroup.PUT("/picture", r.profileHandler.UploadPicture)
		meGroup.GET("/qr", r.profileHandler.PairingQR)
		meGroup.PUT("/push-token", r.profileHandler.RegisterPushToken)
		meGroup.DELETE("/push-token", r.profileHandler.RemovePushToken)
	}

	apiV1.GET("/users", r.profileHandler.SearchUsers)
}

// RegisterDevRoutes exposes the local token endpoint in the develop environment only.
func (r *router) RegisterDevRoutes(e *echo.Echo) {
	if r.config.Env.Env != constants.EnvDevelop || !r.devHandler.Enabled() {
		return
	}

	devGroup := e.Group("/dev")
	devGroup.POST("/token", r.devHandler.IssueToken)
}
