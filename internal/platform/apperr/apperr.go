// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package apperr defines the centralized error taxonomy for the AssetPulse client.

It provides a rich error type that bridges the gap between low-level transport
errors and the session states and form messages the application layer reacts to.

Architecture:

  - AppError: A struct carrying a machine-readable Code and a user-safe message.
  - Taxonomy: One constructor per failure kind the session core can surface.
  - Branching: Callers dispatch on Code (or errors.Is against sentinels), never
    on message text.

Every error that leaves a client or the reconciler is wrapped as an [AppError]
so that forms and route guards can branch without string matching.
*/
package apperr

import (
	"errors"
	"net/http"
)

// AppError is the canonical error type for the AssetPulse client core.
//
// It carries a machine-readable code, a user-safe message, the HTTP status
// that produced it (zero when the error never crossed the wire), and an
// optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for logging only and is never rendered to the user, to
// avoid leaking transport internals (URLs, raw provider payloads).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "PROFILE_NOT_FOUND").
	Code string `json:"code"`
	// Message is a human-readable description safe to show in a form.
	Message string `json:"error"`
	// HTTPStatus is the upstream HTTP status, when the error came off the wire.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the user-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// Is matches two AppErrors by Code, so sentinel comparisons like
// errors.Is(err, apperr.ProfileNotFound("")) work across instances.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// As extracts the [AppError] from any error chain, or nil.
func As(err error) *AppError {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError
	}
	return nil
}

// CodeOf extracts the taxonomy code from any error.
// Returns an empty string when err is not an [AppError].
func CodeOf(err error) string {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Code
	}
	return ""
}

// # Error Codes

// Taxonomy codes surfaced by the session core. Forms and guards branch on
// these values.
const (
	CodeInvalidCredential  = "INVALID_CREDENTIAL"
	CodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	CodeWeakCredential     = "WEAK_CREDENTIAL"
	CodeAccountDisabled    = "ACCOUNT_DISABLED"
	CodeUserCancelled      = "USER_CANCELLED"
	CodeProfileNotFound    = "PROFILE_NOT_FOUND"
	CodeProfileFetchFailed = "PROFILE_FETCH_FAILED"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeCompanyFull        = "COMPANY_FULL"
)

// # Credential Errors
//
// These are local to the form that invoked the operation. They never affect
// the currently published session.

// InvalidCredential creates the error for a failed email/password sign-in.
func InvalidCredential() *AppError {
	return &AppError{
		Code:       CodeInvalidCredential,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// DuplicateAccount creates the error for a sign-up against an existing email.
func DuplicateAccount() *AppError {
	return &AppError{
		Code:       CodeDuplicateAccount,
		Message:    "An account with this email already exists",
		HTTPStatus: http.StatusConflict,
	}
}

// WeakCredential creates the error for a password rejected by policy.
func WeakCredential(msg string) *AppError {
	return &AppError{
		Code:       CodeWeakCredential,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// AccountDisabled creates the error for a sign-in against a disabled account.
func AccountDisabled() *AppError {
	return &AppError{
		Code:       CodeAccountDisabled,
		Message:    "This account has been disabled",
		HTTPStatus: http.StatusForbidden,
	}
}

// UserCancelled creates the error for an abandoned federated consent flow.
func UserCancelled() *AppError {
	return &AppError{
		Code:    CodeUserCancelled,
		Message: "Sign-in was cancelled",
	}
}

// # Reconciliation Errors

// ProfileNotFound creates the expected-branch error for a missing backend
// profile. This drives the new-user state transition and is never treated
// as a failure.
func ProfileNotFound(email string) *AppError {
	msg := "No profile exists for this account"
	if email != "" {
		msg = "No profile exists for " + email
	}
	return &AppError{
		Code:       CodeProfileNotFound,
		Message:    msg,
		HTTPStatus: http.StatusNotFound,
	}
}

// ProfileFetchFailed creates the transient error for a profile fetch that
// failed for any reason other than a definitive 404.
func ProfileFetchFailed(cause error) *AppError {
	return &AppError{
		Code:    CodeProfileFetchFailed,
		Message: "Could not reach the AssetPulse service. Try again.",
		Cause:   cause,
	}
}

// UploadFailed creates the error for a logo/photo upload failure during
// registration.
func UploadFailed(cause error) *AppError {
	return &AppError{
		Code:    CodeUploadFailed,
		Message: "Image upload failed. Try again.",
		Cause:   cause,
	}
}

// CompanyFull passes through the backend's package-limit rejection verbatim.
func CompanyFull(msg string) *AppError {
	if msg == "" {
		msg = "Company has reached its package limit"
	}
	return &AppError{
		Code:       CodeCompanyFull,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// # Generic Errors

// NotFound creates a 404 [AppError] for a named resource.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Conflict creates a 409 [AppError] for duplicate or limit violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Internal wraps an unexpected error into a client-safe 500 [AppError].
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL",
		Message:    "Something went wrong",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}
