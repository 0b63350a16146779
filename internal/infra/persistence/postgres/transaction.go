package postgres

import (
	"context"
	"fmt"

	"streakbuddy/internal/domain/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db *gorm.DB
}

// gormRepositoryFactory implements the domain's RepositoryFactory interface.
// It holds a specific GORM transaction object and uses it to create
// repository instances that are bound to that single transaction.
type gormRepositoryFactory struct {
	tx *gorm.DB // In GORM, a transaction object is also a *gorm.DB
}

// NewHabitRepository creates a new habit repository instance bound to the transaction.
func (f *gormRepositoryFactory) NewHabitRepository() repository.HabitRepository {
	return NewHabitRepository(f.tx)
}

// NewProofRepository creates a new proof repository instance bound to the transaction.
func (f *gormRepositoryFactory) NewProofRepository() repository.ProofRepository {
	return NewProofRepository(f.tx)
}

// NewInviteRepository creates a new invite repository instance bound to the transaction.
func (f *gormRepositoryFactory) NewInviteRepository() repository.InviteRepository {
	return NewInviteRepository(f.tx)
}

// NewUserRepository creates a new user repository instance bound to the transaction.
func (f *gormRepositoryFactory) NewUserRepository() repository.UserRepository {
	return NewUserRepository(f.tx)
}

// NewPushTokenRepository creates a new push token repository instance bound to the transaction.
func (f *gormRepositoryFactory) NewPushTokenRepository() repository.PushTokenRepository {
	return NewPushTokenRepository(f.tx)
}

// NewTransactionManager is the constructor for gormTransactionManager.
// This function will be used as an Fx provider.
func NewTransactionManager(db *gorm.DB) repository.TransactionManager {
	return &gormTransactionManager{db: db}
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	// Roll back on panic, then let the panic continue.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	factory := &gormRepositoryFactory{tx: tx}

	err := fn(factory)
	if err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %v (original error: %w)", rbErr, err)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		// A commit that loses a serialization race is as retryable as a failed version check.
		if isSerializationFailure(err) {
			return errors.Wrap(repository.ErrVersionConflict, err.Error())
		}

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
