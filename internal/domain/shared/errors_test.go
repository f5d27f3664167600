package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndSentinel(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := fmt.Errorf("reconcile: %w", ErrSolvedSourceUnavailable.Wrap(cause))

	assert.ErrorIs(t, err, ErrSolvedSourceUnavailable)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSolvedSourceRateLimited)
	assert.True(t, IsExternalService(err))
}

func TestDomainError_Message(t *testing.T) {
	assert.Equal(t,
		"gamification.ConfirmAttendance: attendance already confirmed today",
		ErrAlreadyChecked.Error(),
	)

	wrapped := ErrSolvedUserNotFound.Wrap(errors.New("status 404"))
	assert.Equal(t, "solvedac.FetchUser: solved.ac user not found: status 404", wrapped.Error())
}

func TestClassificationHelpers(t *testing.T) {
	assert.ErrorIs(t, ErrNoHandleConfigured, ErrNotFound)
	assert.NotErrorIs(t, ErrNotYetAccessed, ErrNotFound)
	assert.True(t, IsValidation(ErrInvalidRules))
	assert.True(t, errors.Is(ErrNotYetAccessed, ErrStateTransition))
	assert.True(t, errors.Is(ErrAlreadyChecked, ErrAlreadyProcessed))
	assert.False(t, IsExternalService(ErrAlreadyChecked))
}

func TestWrap_LeavesSentinelUntouched(t *testing.T) {
	cause := errors.New("status 502")
	wrapped := ErrSolvedSourceUnavailable.Wrap(cause)

	assert.Nil(t, ErrSolvedSourceUnavailable.Err)
	assert.Same(t, cause, wrapped.Err)
	assert.ErrorIs(t, wrapped, ErrSolvedSourceUnavailable)
	assert.NotErrorIs(t, ErrSolvedSourceUnavailable, cause)
	assert.True(t, IsValidation(fmt.Errorf("user id: %w", ErrInvalidID)))
}
