// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package session

import (
	"context"
	"io"
	"log/slog"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/platform/validate"
	"github.com/assetpulse/assetpulse-go/internal/profile"
	"github.com/assetpulse/assetpulse-go/pkg/canon"
)

// # Registration Inputs

// HRRegistration is the input for a full email/password HR sign-up:
// personal details plus the company the new account will administer.
type HRRegistration struct {
	Name         string
	Email        string
	Password     string
	DateOfBirth  string
	CompanyName  string
	PackageLimit int
	Subscription string

	// Logo, when non-nil, is uploaded before any account is created so a
	// media failure aborts the flow cleanly.
	Logo         io.Reader
	LogoFilename string
}

func (r HRRegistration) validate() error {
	v := &validate.Validator{}
	v.Required("name", r.Name).
		Required("email", r.Email).
		Email("email", r.Email).
		MinLen("password", r.Password, 6).
		Required("company_name", r.CompanyName).
		Min("package_limit", r.PackageLimit, 1)
	return v.Err()
}

// EmployeeRegistration is the input for an email/password employee sign-up.
// Company affiliation is assigned later by an HR approval, not here.
type EmployeeRegistration struct {
	Name        string
	Email       string
	Password    string
	DateOfBirth string

	Photo         io.Reader
	PhotoFilename string
}

func (r EmployeeRegistration) validate() error {
	v := &validate.Validator{}
	v.Required("name", r.Name).
		Required("email", r.Email).
		Email("email", r.Email).
		MinLen("password", r.Password, 6)
	return v.Err()
}

// HRCompanyDetails is the company portion of an HR sign-up, collected after
// a federated sign-in already established the identity.
type HRCompanyDetails struct {
	DateOfBirth  string
	CompanyName  string
	PackageLimit int
	Subscription string

	Logo         io.Reader
	LogoFilename string
}

func (d HRCompanyDetails) validate() error {
	v := &validate.Validator{}
	v.Required("company_name", d.CompanyName).
		Min("package_limit", d.PackageLimit, 1)
	return v.Err()
}

// # Email/Password Registration

/*
RegisterHR creates a complete HR account: company logo upload, identity
record, then the backend profile.

Description: Steps run in a fixed order chosen so the most-likely-to-fail
external call (the upload) happens before any account exists. The
registration latch is held from just before identity creation until the
profile write resolves, so the provider's signed-in notification cannot race
a half-created account into a false new-user state. The final refresh is the
only path that publishes the resulting session.

Parameters:
  - context: context.Context
  - input: HRRegistration

Returns:
  - error: VALIDATION_ERROR, UPLOAD_FAILED, DUPLICATE_ACCOUNT,
    WEAK_CREDENTIAL, or COMPANY_FULL / backend failures from profile creation
*/
func (reconciler *Reconciler) RegisterHR(context context.Context, input HRRegistration) error {
	if err := input.validate(); err != nil {
		return err
	}

	logoURL, err := reconciler.uploadOptional(context, input.LogoFilename, input.Logo)
	if err != nil {
		return err
	}

	reconciler.BeginRegistration()
	defer reconciler.EndRegistration()

	if _, err := reconciler.provider.Register(context, input.Email, input.Password); err != nil {
		return err
	}

	// Best effort: the profile record below is authoritative for these.
	if err := reconciler.provider.UpdateProfile(context, input.Name, logoURL); err != nil {
		reconciler.logger.Warn("identity_metadata_update_failed", slog.Any("error", err))
	}

	if _, err := reconciler.api.Create(context, &profile.Profile{
		Email:        canon.Email(input.Email),
		Name:         canon.Name(input.Name),
		Role:         profile.RoleHR,
		DateOfBirth:  input.DateOfBirth,
		CompanyName:  input.CompanyName,
		CompanyLogo:  logoURL,
		PackageLimit: input.PackageLimit,
		Subscription: input.Subscription,
	}); err != nil {
		return err
	}

	reconciler.EndRegistration()
	return reconciler.Refresh(context)
}

/*
RegisterEmployee creates a complete employee account: optional photo upload,
identity record, then the backend profile. Same ordering and latch
discipline as RegisterHR.

Parameters:
  - context: context.Context
  - input: EmployeeRegistration

Returns:
  - error: VALIDATION_ERROR, UPLOAD_FAILED, DUPLICATE_ACCOUNT,
    WEAK_CREDENTIAL, or backend failures from profile creation
*/
func (reconciler *Reconciler) RegisterEmployee(context context.Context, input EmployeeRegistration) error {
	if err := input.validate(); err != nil {
		return err
	}

	photoURL, err := reconciler.uploadOptional(context, input.PhotoFilename, input.Photo)
	if err != nil {
		return err
	}

	reconciler.BeginRegistration()
	defer reconciler.EndRegistration()

	if _, err := reconciler.provider.Register(context, input.Email, input.Password); err != nil {
		return err
	}

	if err := reconciler.provider.UpdateProfile(context, input.Name, photoURL); err != nil {
		reconciler.logger.Warn("identity_metadata_update_failed", slog.Any("error", err))
	}

	if _, err := reconciler.api.Create(context, &profile.Profile{
		Email:        canon.Email(input.Email),
		Name:         canon.Name(input.Name),
		Role:         profile.RoleEmployee,
		ProfileImage: photoURL,
		DateOfBirth:  input.DateOfBirth,
	}); err != nil {
		return err
	}

	reconciler.EndRegistration()
	return reconciler.Refresh(context)
}

// # Federated Intent Completion

/*
CompleteEmployeeIntent finishes a federated sign-up as an employee: the
identity already exists, so only the backend profile is written.

Parameters:
  - context: context.Context
  - intent: *RegistrationIntent (from FederatedSignIn)

Returns:
  - error: Backend profile-creation failures; the session stays in the
    new-user state and the intent remains completable on failure
*/
func (reconciler *Reconciler) CompleteEmployeeIntent(context context.Context, intent *RegistrationIntent) error {
	if intent == nil {
		return apperr.ValidationError("No registration intent to complete")
	}

	reconciler.BeginRegistration()
	defer reconciler.EndRegistration()

	if _, err := reconciler.api.Create(context, &profile.Profile{
		Email:        canon.Email(intent.Email),
		Name:         canon.Name(intent.Name),
		Role:         profile.RoleEmployee,
		ProfileImage: intent.AvatarURL,
	}); err != nil {
		return err
	}

	reconciler.EndRegistration()
	return reconciler.Refresh(context)
}

/*
CompleteHRIntent finishes a federated sign-up as an HR administrator,
collecting the company details the consent flow could not provide.

Parameters:
  - context: context.Context
  - intent: *RegistrationIntent (from FederatedSignIn)
  - details: HRCompanyDetails

Returns:
  - error: VALIDATION_ERROR, UPLOAD_FAILED, or backend failures including
    COMPANY_FULL; the intent remains completable on failure
*/
func (reconciler *Reconciler) CompleteHRIntent(context context.Context, intent *RegistrationIntent, details HRCompanyDetails) error {
	if intent == nil {
		return apperr.ValidationError("No registration intent to complete")
	}
	if err := details.validate(); err != nil {
		return err
	}

	logoURL, err := reconciler.uploadOptional(context, details.LogoFilename, details.Logo)
	if err != nil {
		return err
	}

	reconciler.BeginRegistration()
	defer reconciler.EndRegistration()

	if _, err := reconciler.api.Create(context, &profile.Profile{
		Email:        canon.Email(intent.Email),
		Name:         canon.Name(intent.Name),
		Role:         profile.RoleHR,
		ProfileImage: intent.AvatarURL,
		DateOfBirth:  details.DateOfBirth,
		CompanyName:  details.CompanyName,
		CompanyLogo:  logoURL,
		PackageLimit: details.PackageLimit,
		Subscription: details.Subscription,
	}); err != nil {
		return err
	}

	reconciler.EndRegistration()
	return reconciler.Refresh(context)
}

// uploadOptional uploads the given content when present and returns its URL.
// A nil reader skips the upload without error.
func (reconciler *Reconciler) uploadOptional(context context.Context, filename string, content io.Reader) (string, error) {
	if content == nil {
		return "", nil
	}
	if reconciler.uploader == nil {
		return "", apperr.UploadFailed(nil)
	}
	return reconciler.uploader.Upload(context, filename, content)
}
