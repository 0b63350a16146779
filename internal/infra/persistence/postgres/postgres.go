package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/lifecycle"
	"streakbuddy/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	poolCheckInterval  = 5 * time.Second
	poolWaitWarnPerReq = 50 * time.Millisecond
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config     *config.Config
	Logger     *slog.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

// New opens the pool (primary plus configured replicas), and on start pings it, applies
// migrations and upgrades legacy habit documents when store.autoMigrate is set.
func New(params Params) (*gorm.DB, error) {
	db, err := pgLib.New(params.Config.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL client")
	}
	db = db.Session(&gorm.Session{
		// Multi-document writes go through TransactionManager.Execute.
		SkipDefaultTransaction: true,
		Logger:                 newGormSlogLogger(params.Logger, params.Config),
	})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}

	if params.Registerer != nil {
		dbStats := collectors.NewDBStatsCollector(sqlDB, "streakbuddy")
		if err := params.Registerer.Register(dbStats); err != nil {
			return nil, errors.Wrap(err, "register db stats collector")
		}
	}

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrap(err, "failed to ping PostgreSQL")
			}

			if params.Config.Store.AutoMigrate {
				if err := Migrate(ctx, sqlDB, params.Logger); err != nil {
					return err
				}

				if _, err := UpgradeLegacyHabits(ctx, db, time.Now(), params.Logger); err != nil {
					return err
				}
			}

			go watchPoolWaits(monitorCtx, params.Logger, sqlDB)

			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelMonitor()

			return sqlDB.Close()
		},
	})

	return db, nil
}

// watchPoolWaits warns when requests queue for a connection, which under habit-row
// locking usually means long transactions are holding the pool.
func watchPoolWaits(ctx context.Context, logger *slog.Logger, sqlDB *sql.DB) {
	ticker := time.NewTicker(poolCheckInterval)
	defer ticker.Stop()

	prev := sqlDB.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := sqlDB.Stats()
			waits := cur.WaitCount - prev.WaitCount
			waited := cur.WaitDuration - prev.WaitDuration
			prev = cur

			if waits == 0 {
				continue
			}

			avg := waited / time.Duration(waits)
			level := slog.LevelDebug
			if avg >= poolWaitWarnPerReq {
				level = slog.LevelWarn
			}

			logger.LogAttrs(ctx, level, "Postgres pool contention",
				slog.Int64("waits", waits),
				slog.Duration("avg_wait", avg),
				slog.Int("in_use", cur.InUse),
				slog.Int("max_open", cur.MaxOpenConnections),
			)
		}
	}
}
