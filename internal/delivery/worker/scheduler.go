package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/delivery"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/domain/lifecycle"
	"streakbuddy/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

const defaultSweepSchedule = "15 0 * * *"

// SchedulerParams holds dependencies for the maintenance scheduler
type SchedulerParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     *config.Config
	Logger  *slog.Logger
	HabitUC usecase.HabitUsecase
}

type maintenanceScheduler struct {
	enabled  bool
	schedule string
	loc      *time.Location
	cron     *cron.Cron
	habitUC  usecase.HabitUsecase
	logger   *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates the cron runner for the daily sweep.
func NewScheduler(params SchedulerParams) (delivery.Delivery, error) {
	maintenance := params.Cfg.Maintenance
	if maintenance == nil {
		maintenance = &config.MaintenanceConfig{}
	}

	loc := time.UTC
	if maintenance.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(maintenance.Timezone)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid maintenance timezone %q", maintenance.Timezone)
		}
	}

	schedule := maintenance.Schedule
	if schedule == "" {
		schedule = defaultSweepSchedule
	}

	s := &maintenanceScheduler{
		enabled:  maintenance.Enabled,
		schedule: schedule,
		loc:      loc,
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DiscardLogger))),
		habitUC:  params.HabitUC,
		logger:   params.Logger.With(slog.String("component", "scheduler")),
		done:     make(chan struct{}),
	}

	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return nil, errors.Wrapf(err, "invalid maintenance schedule %q", schedule)
	}

	params.Lc.Append(fx.Hook{
		OnStop: s.stop,
	})

	return s, nil
}

// Serve runs the cron loop until the application stops.
func (s *maintenanceScheduler) Serve(ctx context.Context) error {
	if !s.enabled {
		s.logger.Info("Maintenance sweep disabled")

		return nil
	}

	s.logger.Info("Starting maintenance scheduler",
		slog.String("schedule", s.schedule),
		slog.String("timezone", s.loc.String()),
	)
	select {
	case <-s.done:
		return nil
	default:
	}

	s.cron.Start()

	select {
	case <-ctx.Done():
	case <-s.done:
	}

	return nil
}

func (s *maintenanceScheduler) runSweep() {
	requestID := uuid.New().String()
	logger := s.logger.With(slog.String("request_id", requestID))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, logger)

	start := time.Now()
	result, err := s.habitUC.SweepAll(ctx, s.loc)
	if err != nil {
		logger.Error("Maintenance sweep failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))

		return
	}

	logger.Info("Maintenance sweep done",
		slog.Int("habits", result.Habits),
		slog.Int("reset", result.Reset),
		slog.Int("decayed", result.Decayed),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// stop waits for a running sweep, bounded by the shutdown timeout.
func (s *maintenanceScheduler) stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	running := s.cron.Stop()

	waitCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	select {
	case <-running.Done():
		return nil
	case <-waitCtx.Done():
		s.logger.Warn("Maintenance sweep still running at shutdown")

		return nil
	}
}
