// Package shared holds the error kinds and progression events used across
// the gamification core. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every DomainError carries one, so callers branch on the
// kind with errors.Is instead of on individual sentinels.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrInvalidID        = errors.New("invalid ID")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrLockNotAcquired  = errors.New("lock not acquired")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidFormat      = errors.New("invalid format")
)

// DomainError is a sentinel with a kind, or a copy of one carrying a cause.
type DomainError struct {
	Domain  string // "gamification" or "solvedac"
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the originating sentinel, the kind, and the cause.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message
	}
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// Wrap returns a copy of a sentinel DomainError carrying err as its cause.
// errors.Is matches both the sentinel and err.
func (e *DomainError) Wrap(err error) *DomainError {
	c := *e
	c.Err = err
	return &c
}

func sentinel(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// Gamification errors.
var (
	ErrNotYetAccessed     = sentinel("gamification", "ConfirmAttendance", ErrStateTransition, "no LMS access recorded today, attendance cannot be confirmed yet")
	ErrAlreadyChecked     = sentinel("gamification", "ConfirmAttendance", ErrAlreadyProcessed, "attendance already confirmed today")
	ErrNoHandleConfigured = sentinel("gamification", "ResolveHandle", ErrNotFound, "no solved.ac handle configured")
	ErrInvalidRules       = sentinel("gamification", "ValidateRules", ErrValidation, "invalid gamification rules")
	ErrProfileNotFound    = sentinel("gamification", "FindProfile", ErrNotFound, "gamification profile not found")
	ErrUserLockBusy       = sentinel("gamification", "LockUser", ErrLockNotAcquired, "another update for this user is in progress")
)

// solved.ac errors.
var (
	ErrSolvedSourceUnavailable     = sentinel("solvedac", "Request", ErrServiceUnavailable, "solved.ac is unavailable")
	ErrSolvedSourceRateLimited     = sentinel("solvedac", "Request", ErrRateLimited, "solved.ac rate limit exceeded")
	ErrSolvedSourceTimeout         = sentinel("solvedac", "Request", ErrTimeout, "solved.ac request timeout")
	ErrSolvedSourceInvalidResponse = sentinel("solvedac", "Parse", ErrInvalidFormat, "invalid response from solved.ac")
	ErrSolvedUserNotFound          = sentinel("solvedac", "FetchUser", ErrNotFound, "solved.ac user not found")
)

// IsValidation reports bad input or configuration.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidID)
}

// IsExternalService reports a solved.ac failure that is not the user's fault.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInvalidFormat)
}
