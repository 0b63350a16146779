package repository

import "context"

// TransactionManager defines the interface for managing store transactions.
// This allows the use case layer to handle atomic multi-document writes without depending on GORM.
type TransactionManager interface {
	// Execute runs a function within a transaction.
	// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
	// All repository operations within the function will use the same transaction, and habits read
	// through FindByIDForUpdate stay locked until it ends.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances that are bound to a specific transaction.
type RepositoryFactory interface {
	// NewHabitRepository returns a HabitRepository bound to the current transaction.
	NewHabitRepository() HabitRepository

	// NewProofRepository returns a ProofRepository bound to the current transaction.
	NewProofRepository() ProofRepository

	// NewInviteRepository returns an InviteRepository bound to the current transaction.
	NewInviteRepository() InviteRepository

	// NewUserRepository returns a UserRepository bound to the current transaction.
	NewUserRepository() UserRepository

	// NewPushTokenRepository returns a PushTokenRepository bound to the current transaction.
	NewPushTokenRepository() PushTokenRepository
}
