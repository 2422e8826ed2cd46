package pamerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{NewValidation("justification", "min_length", "too short"), ErrValidation},
		{NewNotFound("role", "db-admin"), ErrNotFound},
		{NewAuthorization("u1", "activate", "request belongs to another user"), ErrAuthorization},
		{NewState("request", "r1", "approved", "decide"), ErrState},
		{NewExpired("request", "r1"), ErrExpired},
		{NewConfiguration("emergency_admin role not defined"), ErrConfiguration},
		{NewFeatureDisabled("break_glass"), ErrFeatureDisabled},
	}

	for _, tc := range cases {
		assert.True(t, errors.Is(tc.err, tc.sentinel), "%v should unwrap to %v", tc.err, tc.sentinel)
	}
}

func TestValidationErrorCarriesConstraint(t *testing.T) {
	err := NewValidation("duration", "max_duration", "duration 600 exceeds maximum 480")

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "duration", ve.Field)
	assert.Equal(t, "max_duration", ve.Constraint)
	assert.Contains(t, err.Error(), "max_duration")
}

func TestNotFoundErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("processing request: %w", NewNotFound("request", "abc"))

	assert.True(t, errors.Is(err, ErrNotFound))

	var nfe *NotFoundError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "abc", nfe.ID)
}

func TestStateErrorMessage(t *testing.T) {
	err := NewState("request", "r1", "denied", "decide")
	assert.Contains(t, err.Error(), "denied")
	assert.Contains(t, err.Error(), "r1")
}
