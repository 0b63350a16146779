package handler

import (
	"log/slog"
	"net/http"
	"time"

	"streakbuddy/config"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// MaintenanceHandlerParams holds dependencies for the MaintenanceHandler
type MaintenanceHandlerParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	HabitUC usecase.HabitUsecase
}

// MaintenanceHandler lets an external scheduler trigger the sweep, for deployments
// where the worker scales to zero and the in-process cron never fires.
type MaintenanceHandler struct {
	auth    *googleCallerAuth
	loc     *time.Location
	habitUC usecase.HabitUsecase
	logger  *slog.Logger
}

// NewMaintenanceHandler creates the sweep trigger handler.
func NewMaintenanceHandler(params MaintenanceHandlerParams) (*MaintenanceHandler, error) {
	loc := time.UTC
	if m := params.Config.Maintenance; m != nil && m.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(m.Timezone)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid maintenance timezone %q", m.Timezone)
		}
	}

	return &MaintenanceHandler{
		auth:    newGoogleCallerAuth(params.Config),
		loc:     loc,
		habitUC: params.HabitUC,
		logger:  params.Logger,
	}, nil
}

// RunSweep runs the reset and decay pass synchronously and reports the counts.
// A failed sweep answers 503 so the scheduler retries.
func (h *MaintenanceHandler) RunSweep(c echo.Context) error {
	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	if err := h.auth.verify(c.Request()); err != nil {
		logger.Warn("[Worker] Invalid scheduler token", slog.Any("error", err))

		return c.NoContent(http.StatusUnauthorized)
	}

	result, err := h.habitUC.SweepAll(ctx, h.loc)
	if err != nil {
		logger.Error("[Worker] Triggered sweep failed", slog.Any("error", err))

		return c.NoContent(http.StatusServiceUnavailable)
	}

	return c.JSON(http.StatusOK, result)
}
