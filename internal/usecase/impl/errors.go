// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"

	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/errors"
)

// storeError maps repository failures onto the domain error taxonomy. Errors that already
// carry an AppError pass through untouched.
func storeError(err error, op string) error {
	if err == nil {
		return nil
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.IsAny(err, context.Canceled, context.DeadlineExceeded):
		return errors.Wrap(err, op)
	case errors.Is(err, repository.ErrHabitNotFound):
		return errors.Wrap(domainerrors.ErrHabitNotFound, op)
	case errors.Is(err, repository.ErrProofNotFound):
		return errors.Wrap(domainerrors.ErrProofNotFound, op)
	case errors.Is(err, repository.ErrInviteNotFound):
		return errors.Wrap(domainerrors.ErrInviteNotFound, op)
	case errors.Is(err, repository.ErrUserNotFound):
		return errors.Wrap(domainerrors.ErrUserNotFound, op)
	case errors.Is(err, repository.ErrInvalidCursor):
		return errors.Wrap(domainerrors.ErrValidationFailed.WithDetails("invalid cursor"), op)
	case errors.Is(err, repository.ErrVersionConflict):
		return errors.Wrap(domainerrors.ErrStaleWrite, op)
	default:
		return errors.Wrapf(domainerrors.ErrExternalService, "%s: %v", op, err)
	}
}

// retryOnConflict re-runs a read-modify-write cycle while the conditional write loses
// the race, up to attempts times.
func retryOnConflict(ctx context.Context, logger *slog.Logger, metrics interface{ ObserveRetry(string) }, op string, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}

		metrics.ObserveRetry(op)
		logger.Debug("Version conflict, retrying", "op", op, "attempt", attempt)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, op)
		}
	}

	return errors.Wrapf(domainerrors.ErrStaleWrite, "%s: gave up after %d attempts", op, attempts)
}

func validationError(details string) error {
	return domainerrors.ErrValidationFailed.WithDetails(details)
}
