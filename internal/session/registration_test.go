// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package session_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/profile"
	"github.com/assetpulse/assetpulse-go/internal/session"
)

// fakeUploader records uploads and returns a fixed URL.
type fakeUploader struct {
	uploads int32
	url     string
	err     error
}

func (uploader *fakeUploader) Upload(_ context.Context, _ string, content io.Reader) (string, error) {
	atomic.AddInt32(&uploader.uploads, 1)
	if uploader.err != nil {
		return "", uploader.err
	}
	// Drain like a real transport would.
	_, _ = io.Copy(io.Discard, content)
	return uploader.url, nil
}

func hrInput() session.HRRegistration {
	return session.HRRegistration{
		Name:         "Casey Doe",
		Email:        "casey@example.com",
		Password:     "secret123",
		DateOfBirth:  "1990-04-02",
		CompanyName:  "Acme",
		PackageLimit: 25,
		Subscription: "standard",
	}
}

/*
TestRegisterHR covers the full HR sign-up: logo upload, identity creation,
profile creation, and the final reconciliation into the known-role state.
*/
func TestRegisterHR(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()
	uploader := &fakeUploader{url: "https://media.example.com/logo.png"}

	reconciler := session.NewReconciler(provider, api, uploader, nil)
	reconciler.Start(context.Background())
	t.Cleanup(reconciler.Close)

	input := hrInput()
	input.Logo = strings.NewReader("png-bytes")
	input.LogoFilename = "logo.png"

	require.NoError(t, reconciler.RegisterHR(context.Background(), input))

	assert.EqualValues(t, 1, atomic.LoadInt32(&uploader.uploads))
	assert.EqualValues(t, 1, atomic.LoadInt32(&provider.updateCalls))

	require.Len(t, api.created, 1)
	created := api.created[0]
	assert.Equal(t, profile.RoleHR, created.Role)
	assert.Equal(t, "casey@example.com", created.Email)
	assert.Equal(t, "Acme", created.CompanyName)
	assert.Equal(t, "https://media.example.com/logo.png", created.CompanyLogo)
	assert.Equal(t, 25, created.PackageLimit)

	snapshot := reconciler.Current()
	assert.Equal(t, session.StateKnownRole, snapshot.State)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, profile.RoleHR, snapshot.User.Role)
}

/*
TestRegisterHR_ValidationStopsBeforeAnySideEffect checks that bad input is
rejected before the upload or any account exists.
*/
func TestRegisterHR_ValidationStopsBeforeAnySideEffect(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()
	uploader := &fakeUploader{url: "unused"}

	reconciler := session.NewReconciler(provider, api, uploader, nil)
	reconciler.Start(context.Background())
	t.Cleanup(reconciler.Close)

	input := hrInput()
	input.Password = "short"
	input.Logo = strings.NewReader("png-bytes")

	err := reconciler.RegisterHR(context.Background(), input)
	assert.Equal(t, "VALIDATION_ERROR", apperr.CodeOf(err))
	assert.EqualValues(t, 0, atomic.LoadInt32(&uploader.uploads))
	assert.Empty(t, api.created)
	assert.Equal(t, session.StateUnauthenticated, reconciler.Current().State)
}

/*
TestRegisterHR_UploadFailureAbortsBeforeIdentity checks the step ordering:
a failed logo upload means no identity record was created.
*/
func TestRegisterHR_UploadFailureAbortsBeforeIdentity(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()
	uploader := &fakeUploader{err: apperr.UploadFailed(errors.New("media host down"))}

	reconciler := session.NewReconciler(provider, api, uploader, nil)
	reconciler.Start(context.Background())
	t.Cleanup(reconciler.Close)

	input := hrInput()
	input.Logo = strings.NewReader("png-bytes")

	err := reconciler.RegisterHR(context.Background(), input)
	assert.Equal(t, apperr.CodeUploadFailed, apperr.CodeOf(err))
	assert.Empty(t, api.created)
	assert.Equal(t, session.StateUnauthenticated, reconciler.Current().State)
}

/*
TestRegisterEmployee_DuplicateAccount checks that an existing email surfaces
the duplicate error, writes no profile, and releases the registration latch
so later sign-ins reconcile normally.
*/
func TestRegisterEmployee_DuplicateAccount(t *testing.T) {
	provider := newFakeProvider(testSession())
	provider.registerErr = apperr.DuplicateAccount()
	api := newFakeAPI()
	api.setGet(func(string) (*profile.Profile, error) { return hrProfile(), nil })

	reconciler := newReconciler(t, provider, api)

	err := reconciler.RegisterEmployee(context.Background(), session.EmployeeRegistration{
		Name:     "Casey Doe",
		Email:    "casey@example.com",
		Password: "secret123",
	})
	assert.Equal(t, apperr.CodeDuplicateAccount, apperr.CodeOf(err))
	assert.Empty(t, api.created)

	// The latch must not leak out of the failed flow.
	provider.registerErr = nil
	require.NoError(t, reconciler.Login(context.Background(), "casey@example.com", "secret123"))
	assert.Equal(t, session.StateKnownRole, reconciler.Current().State)
}

/*
TestRegisterEmployee_WithoutPhoto checks that the photo is genuinely
optional: no upload happens and the profile is created without an image.
*/
func TestRegisterEmployee_WithoutPhoto(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()
	uploader := &fakeUploader{url: "unused"}

	reconciler := session.NewReconciler(provider, api, uploader, nil)
	reconciler.Start(context.Background())
	t.Cleanup(reconciler.Close)

	require.NoError(t, reconciler.RegisterEmployee(context.Background(), session.EmployeeRegistration{
		Name:     "Casey Doe",
		Email:    "casey@example.com",
		Password: "secret123",
	}))

	assert.EqualValues(t, 0, atomic.LoadInt32(&uploader.uploads))
	require.Len(t, api.created, 1)
	assert.Equal(t, profile.RoleEmployee, api.created[0].Role)
	assert.Empty(t, api.created[0].ProfileImage)
	assert.Equal(t, session.StateKnownRole, reconciler.Current().State)
}

/*
TestFederatedSignIn_NewUserYieldsIntent covers the federated first sign-in:
the session lands in the new-user state and the returned intent carries the
identity fields for the role prompt.
*/
func TestFederatedSignIn_NewUserYieldsIntent(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()

	reconciler := newReconciler(t, provider, api)

	intent, err := reconciler.FederatedSignIn(context.Background())
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, "casey@example.com", intent.Email)
	assert.Equal(t, "Casey Doe", intent.Name)
	assert.Equal(t, session.StateNewUser, reconciler.Current().State)

	// Choosing employee completes the flow.
	require.NoError(t, reconciler.CompleteEmployeeIntent(context.Background(), intent))
	require.Len(t, api.created, 1)
	assert.Equal(t, profile.RoleEmployee, api.created[0].Role)
	assert.Equal(t, session.StateKnownRole, reconciler.Current().State)
}

/*
TestFederatedSignIn_ExistingUserNeedsNoIntent checks that a returning
federated user resolves straight to the known-role state with no intent.
*/
func TestFederatedSignIn_ExistingUserNeedsNoIntent(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()
	api.setGet(func(string) (*profile.Profile, error) { return hrProfile(), nil })

	reconciler := newReconciler(t, provider, api)

	intent, err := reconciler.FederatedSignIn(context.Background())
	require.NoError(t, err)
	assert.Nil(t, intent)
	assert.Equal(t, session.StateKnownRole, reconciler.Current().State)
}

/*
TestCompleteHRIntent_CompanyFull checks that a rejected profile creation
surfaces the backend error and leaves the intent completable: the session
stays in the new-user state.
*/
func TestCompleteHRIntent_CompanyFull(t *testing.T) {
	provider := newFakeProvider(testSession())
	api := newFakeAPI()
	api.createFn = func(*profile.Profile) (*profile.Profile, error) {
		return nil, apperr.CompanyFull("")
	}

	reconciler := newReconciler(t, provider, api)

	intent, err := reconciler.FederatedSignIn(context.Background())
	require.NoError(t, err)
	require.NotNil(t, intent)

	err = reconciler.CompleteHRIntent(context.Background(), intent, session.HRCompanyDetails{
		CompanyName:  "Acme",
		PackageLimit: 5,
	})
	assert.Equal(t, apperr.CodeCompanyFull, apperr.CodeOf(err))
	assert.Equal(t, session.StateNewUser, reconciler.Current().State)

	// Retry after the backend accepts; the same intent completes.
	api.createFn = func(newProfile *profile.Profile) (*profile.Profile, error) {
		copied := *newProfile
		return &copied, nil
	}
	require.NoError(t, reconciler.CompleteHRIntent(context.Background(), intent, session.HRCompanyDetails{
		CompanyName:  "Acme",
		PackageLimit: 5,
	}))
	assert.Equal(t, session.StateKnownRole, reconciler.Current().State)
}

/*
TestCompleteIntent_NilIntent checks the guard for completing a flow that was
never started.
*/
func TestCompleteIntent_NilIntent(t *testing.T) {
	provider := newFakeProvider(testSession())
	reconciler := newReconciler(t, provider, newFakeAPI())

	err := reconciler.CompleteEmployeeIntent(context.Background(), nil)
	assert.Equal(t, "VALIDATION_ERROR", apperr.CodeOf(err))
}
