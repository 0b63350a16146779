// Package persistence selects the document store backend and exposes its repositories.
package persistence

import (
	"context"
	"log/slog"

	"streakbuddy/config"
	"streakbuddy/internal/domain/constants"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/metrics"
	"streakbuddy/internal/infra/persistence/memory"
	"streakbuddy/internal/infra/persistence/postgres"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Registry `optional:"true"`
}

// Result provides every repository of the selected backend.
type Result struct {
	fx.Out

	Habits     repository.HabitRepository
	Proofs     repository.ProofRepository
	Invites    repository.InviteRepository
	Users      repository.UserRepository
	PushTokens repository.PushTokenRepository
	TxManager  repository.TransactionManager
	Feed       repository.ChangeFeed
}

// New opens the backend named by store.driver.
func New(params Params) (Result, error) {
	switch params.Config.Store.Driver {
	case constants.StoreDriverMemory:
		params.Logger.Warn("Using in-memory store; data is lost on restart")

		return newMemory(params), nil
	case constants.StoreDriverPostgres, "":
		return newPostgres(params)
	default:
		return Result{}, errors.Errorf("unknown store driver %q", params.Config.Store.Driver)
	}
}

func newMemory(params Params) Result {
	store := memory.New()

	params.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()

			return nil
		},
	})

	return Result{
		Habits:     store.Habits(),
		Proofs:     store.Proofs(),
		Invites:    store.Invites(),
		Users:      store.Users(),
		PushTokens: store.PushTokens(),
		TxManager:  store,
		Feed:       store,
	}
}

func newPostgres(params Params) (Result, error) {
	pgParams := postgres.Params{
		Lifecycle: params.Lifecycle,
		Config:    params.Config,
		Logger:    params.Logger,
	}
	if params.Metrics != nil {
		pgParams.Registerer = params.Metrics.Registerer()
	}

	db, err := postgres.New(pgParams)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // postgres.New already wraps
	}

	feed, err := postgres.NewChangeFeed(params.Config.Store.ListenDSN, params.Logger)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // descriptive configuration error
	}

	// Registered after postgres.New, so it starts after migrations and stops before the pool closes.
	params.Append(fx.Hook{
		OnStart: feed.Start,
		OnStop: func(context.Context) error {
			return feed.Close()
		},
	})

	return fromDB(db, feed), nil
}

func fromDB(db *gorm.DB, feed repository.ChangeFeed) Result {
	return Result{
		Habits:     postgres.NewHabitRepository(db),
		Proofs:     postgres.NewProofRepository(db),
		Invites:    postgres.NewInviteRepository(db),
		Users:      postgres.NewUserRepository(db),
		PushTokens: postgres.NewPushTokenRepository(db),
		TxManager:  postgres.NewTransactionManager(db),
		Feed:       feed,
	}
}
