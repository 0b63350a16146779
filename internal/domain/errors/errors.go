package errors

import (
	"net/http"

	"streakbuddy/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Is matches any BaseError carrying the same business error code, so copies made by
// WithDetails still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return t.errorCode == e.errorCode
}

// Predefined error types
var (
	// Validation errors surface to the user without any state change.
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"input validation failed",
		"",
	)

	ErrAlreadySubmitted = NewBaseError(
		http.StatusConflict,
		"ALREADY_SUBMITTED",
		"proof already submitted today",
		"",
	)

	// Lookup errors
	ErrHabitNotFound = NewBaseError(
		http.StatusNotFound,
		"HABIT_NOT_FOUND",
		"habit not found",
		"",
	)

	ErrProofNotFound = NewBaseError(
		http.StatusNotFound,
		"PROOF_NOT_FOUND",
		"proof not found",
		"",
	)

	ErrInviteNotFound = NewBaseError(
		http.StatusNotFound,
		"INVITE_NOT_FOUND",
		"invite not found",
		"",
	)

	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"user not found",
		"",
	)

	// Membership and permission errors
	ErrNotMember = NewBaseError(
		http.StatusForbidden,
		"NOT_A_MEMBER",
		"you are not a member of this habit",
		"",
	)

	ErrSelfApproval = NewBaseError(
		http.StatusForbidden,
		"SELF_APPROVAL",
		"a proof must be reviewed by another member",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"access denied",
		"",
	)

	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"invalid or expired credentials",
		"",
	)

	ErrNudgeRateLimited = NewBaseError(
		http.StatusTooManyRequests,
		"NUDGE_RATE_LIMITED",
		"you nudged this buddy too recently",
		"",
	)

	// Concurrency and infrastructure errors
	ErrStaleWrite = NewBaseError(
		http.StatusConflict,
		"STALE_WRITE",
		"the habit was modified concurrently, please retry",
		"",
	)

	ErrExternalService = NewBaseError(
		http.StatusServiceUnavailable,
		"EXTERNAL_SERVICE_UNAVAILABLE",
		"an external service is unavailable, please retry",
		"",
	)

	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal error",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the underlying database error
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
