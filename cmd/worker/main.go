package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/delivery"
	"streakbuddy/internal/delivery/worker"
	"streakbuddy/internal/delivery/worker/handler"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/infra/blob"
	logs "streakbuddy/internal/infra/log"
	"streakbuddy/internal/infra/metrics"
	"streakbuddy/internal/infra/notification"
	"streakbuddy/internal/infra/persistence"
	"streakbuddy/internal/infra/pubsub"
	"streakbuddy/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		persistence.New,
		metrics.New,
		metrics.NewMetrics,
		func() service.Clock { return service.ClockFunc(time.Now) },
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			blob.New,
			notification.New,
			pubsub.NewEventPublisher,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewHabitService,
			impl.NewNotificationService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewPushHandler,
			handler.NewMaintenanceHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				worker.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				worker.NewScheduler,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start worker", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
