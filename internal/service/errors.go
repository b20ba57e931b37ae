package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gomonate/internal/repository"
)

// Redemption outcomes other than success. Input and state errors are final
// for the presented code; ErrTransientConflict and ErrUnavailable mean nothing
// was committed and the whole call may be retried.
var (
	ErrInvalidCode         = errors.New("invalid code")
	ErrInactiveCode        = errors.New("code is inactive")
	ErrEmployeeNotFound    = errors.New("employee not found for code")
	ErrInsufficientBalance = errors.New("no tokens remaining")
	ErrTransientConflict   = errors.New("concurrent update conflict, retry")
	ErrUnavailable         = errors.New("store unavailable")
	ErrScannerRequired     = errors.New("scanner identity is required")
)

var (
	ErrEmployeeExists     = errors.New("employee with this email already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCSV         = errors.New("invalid csv")
	ErrShortCodeExhausted = errors.New("could not allocate a free short code")
	ErrBusy               = errors.New("another update for this employee is in progress")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("role must be hr or scanner")

	ErrArchiveDisabled = errors.New("report archive is not configured")
)

// InsufficientBalanceError reports the balance seen when a redemption was
// refused. It matches ErrInsufficientBalance with errors.Is.
type InsufficientBalanceError struct {
	Balance int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s (balance %d)", ErrInsufficientBalance.Error(), e.Balance)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// isRetryable reports whether a failed attempt may be repeated from scratch:
// an optimistic version miss, or a conflict the database itself detected.
func isRetryable(err error) bool {
	if errors.Is(err, repository.ErrOptimisticLock) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "serialization failure") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "lock wait timeout")
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
