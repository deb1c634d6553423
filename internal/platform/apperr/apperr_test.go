// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
)

/*
TestAppError_IsMatchesByCode checks that sentinel comparisons work across
instances: two errors with the same taxonomy code satisfy errors.Is.
*/
func TestAppError_IsMatchesByCode(t *testing.T) {
	err := apperr.ProfileNotFound("casey@example.com")

	assert.True(t, errors.Is(err, apperr.ProfileNotFound("")))
	assert.False(t, errors.Is(err, apperr.DuplicateAccount()))
}

/*
TestAppError_UnwrapReachesCause checks the cause chain for wrapped transport
errors.
*/
func TestAppError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.ProfileFetchFailed(cause)

	assert.True(t, errors.Is(err, cause))
}

/*
TestCodeOf covers extraction through wrapping and the non-AppError fallback.
*/
func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("refresh failed: %w", apperr.CompanyFull(""))

	assert.Equal(t, apperr.CodeCompanyFull, apperr.CodeOf(wrapped))
	assert.Empty(t, apperr.CodeOf(errors.New("plain")))
	assert.Empty(t, apperr.CodeOf(nil))
}

/*
TestAs checks AppError extraction from a wrapped chain.
*/
func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", apperr.WeakCredential("Password must be at least 6 characters"))

	ae := apperr.As(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeWeakCredential, ae.Code)
	assert.Nil(t, apperr.As(errors.New("plain")))
}

/*
TestValidationError_CollectsDetails checks field details travel with the
error.
*/
func TestValidationError_CollectsDetails(t *testing.T) {
	err := apperr.ValidationError("Validation failed",
		apperr.FieldError{Field: "email", Message: "Must be a valid email address"},
		apperr.FieldError{Field: "password", Message: "Minimum 6 characters"},
	)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Len(t, ae.Details, 2)
	assert.Equal(t, "email", ae.Details[0].Field)
}
