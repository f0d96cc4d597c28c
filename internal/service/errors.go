// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

// Domain errors returned by every service. Callers match them with errors.Is.
var (
	ErrUnauthenticated    = errors.New("sign in required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("admin privileges required")
	ErrInsufficientFunds  = errors.New("insufficient coins")
	ErrNotEligible        = errors.New("withdrawal requirements not met")
	ErrNotAvailable       = errors.New("not available right now")
	ErrInvalidTransition  = errors.New("withdrawal request has already been decided")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason string, fields ...string) error {
	return &ValidationError{Fields: fields, Reason: reason}
}

// PersistenceError wraps a storage failure. The cause is meant for logs,
// not for end users.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// checkID rejects ids that cannot name a stored entity.
func checkID(what, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &NotFoundError{What: what}
	}
	return nil
}

// fromRepo translates repository sentinels into domain errors.
func fromRepo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrInsufficientCoins):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrDuplicate):
		return ErrConflict
	case errors.Is(err, repository.ErrUserNotFound):
		return &NotFoundError{What: "user"}
	case errors.Is(err, repository.ErrTaskNotFound):
		return &NotFoundError{What: "task"}
	case errors.Is(err, repository.ErrRewardNotFound):
		return &NotFoundError{What: "reward"}
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return &NotFoundError{What: "withdrawal request"}
	case errors.Is(err, repository.ErrAdNotFound):
		return &NotFoundError{What: "ad"}
	case errors.Is(err, repository.ErrAdViewNotFound):
		return &NotFoundError{What: "ad view"}
	}
	return err
}

var domainErrors = []error{
	ErrUnauthenticated,
	ErrInvalidCredentials,
	ErrForbidden,
	ErrInsufficientFunds,
	ErrNotEligible,
	ErrNotAvailable,
	ErrInvalidTransition,
	ErrValidation,
	ErrNotFound,
	ErrConflict,
}

// IsDomainError reports whether err is one of the typed service failures.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorKind returns a short label for err, used in metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrNotAvailable):
		return "not_available"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "persistence"
}

// classify passes domain errors through and wraps everything else,
// including lock and query timeouts, as a PersistenceError.
func classify(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, lock.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &PersistenceError{Op: op, Err: fmt.Errorf("timed out: %w", err)}
	}
	return &PersistenceError{Op: op, Err: err}
}
