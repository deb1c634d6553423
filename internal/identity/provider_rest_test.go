// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetpulse/assetpulse-go/internal/devstack"
	"github.com/assetpulse/assetpulse-go/internal/identity"
	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/platform/sec"
)

// # Harness

// providerHarness runs a RESTProvider against an in-process identity server.
type providerHarness struct {
	provider *identity.RESTProvider
	server   *devstack.IdentityServer
	store    identity.SnapshotStore
	url      string

	mu     sync.Mutex
	events []identity.Event
}

func newProviderHarness(t *testing.T, store identity.SnapshotStore) *providerHarness {
	t.Helper()

	tokens := sec.NewTokenService("test-secret", "assetpulse-devstack")
	identityServer := devstack.NewIdentityServer(tokens, nil)

	router := chi.NewRouter()
	identityServer.Routes(router)
	httpServer := httptest.NewServer(router)
	t.Cleanup(httpServer.Close)

	if store == nil {
		store = identity.NewMemorySnapshotStore()
	}

	harness := &providerHarness{server: identityServer, store: store, url: httpServer.URL}
	harness.provider = identity.NewRESTProvider(identity.RESTConfig{
		BaseURL: httpServer.URL,
		APIKey:  "test-key",
		Store:   store,
	})
	t.Cleanup(harness.provider.Close)

	harness.provider.Subscribe(func(event identity.Event) {
		harness.mu.Lock()
		harness.events = append(harness.events, event)
		harness.mu.Unlock()
	})
	return harness
}

func (harness *providerHarness) eventKinds() []identity.EventKind {
	harness.mu.Lock()
	defer harness.mu.Unlock()
	kinds := make([]identity.EventKind, 0, len(harness.events))
	for _, event := range harness.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// # Tests

/*
TestRESTProvider_RegisterLoginLogout walks the credential lifecycle against
the wire: sign-up, sign-out, sign-in, with ordered event emission.
*/
func TestRESTProvider_RegisterLoginLogout(t *testing.T) {
	harness := newProviderHarness(t, nil)
	ctx := context.Background()

	session, err := harness.provider.Register(ctx, "Casey@Example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "casey@example.com", session.Email, "email stored in canonical form")
	assert.NotEmpty(t, session.ProviderUserID)
	assert.NotEmpty(t, session.IDToken)
	assert.NotEmpty(t, session.RefreshToken)
	require.NotNil(t, harness.provider.Current())

	require.NoError(t, harness.provider.Logout(ctx))
	assert.Nil(t, harness.provider.Current())

	relogged, err := harness.provider.Login(ctx, "casey@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, session.ProviderUserID, relogged.ProviderUserID)

	assert.Equal(t, []identity.EventKind{
		identity.EventSignedIn,
		identity.EventSignedOut,
		identity.EventSignedIn,
	}, harness.eventKinds())
}

/*
TestRESTProvider_CredentialErrors checks the taxonomy mapping for each
provider rejection.
*/
func TestRESTProvider_CredentialErrors(t *testing.T) {
	harness := newProviderHarness(t, nil)
	ctx := context.Background()

	_, err := harness.provider.Register(ctx, "casey@example.com", "short")
	assert.Equal(t, apperr.CodeWeakCredential, apperr.CodeOf(err))

	_, err = harness.provider.Register(ctx, "casey@example.com", "secret123")
	require.NoError(t, err)

	_, err = harness.provider.Register(ctx, "casey@example.com", "secret456")
	assert.Equal(t, apperr.CodeDuplicateAccount, apperr.CodeOf(err))

	_, err = harness.provider.Login(ctx, "casey@example.com", "wrong-password")
	assert.Equal(t, apperr.CodeInvalidCredential, apperr.CodeOf(err))

	_, err = harness.provider.Login(ctx, "nobody@example.com", "secret123")
	assert.Equal(t, apperr.CodeInvalidCredential, apperr.CodeOf(err),
		"unknown email and wrong password are indistinguishable")
}

/*
TestRESTProvider_DisabledAccount checks the disabled-account rejection on
sign-in.
*/
func TestRESTProvider_DisabledAccount(t *testing.T) {
	harness := newProviderHarness(t, nil)
	ctx := context.Background()

	_, err := harness.provider.Register(ctx, "casey@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, harness.provider.Logout(ctx))

	harness.server.DisableAccount("casey@example.com")

	_, err = harness.provider.Login(ctx, "casey@example.com", "secret123")
	assert.Equal(t, apperr.CodeAccountDisabled, apperr.CodeOf(err))
}

/*
TestRESTProvider_SnapshotRestore checks session persistence: a second
provider sharing the snapshot store resumes the session through the refresh
token without credentials.
*/
func TestRESTProvider_SnapshotRestore(t *testing.T) {
	store := identity.NewMemorySnapshotStore()
	harness := newProviderHarness(t, store)
	ctx := context.Background()

	_, err := harness.provider.Register(ctx, "casey@example.com", "secret123")
	require.NoError(t, err)

	// A fresh provider, same store, same server.
	resumed := newRestoredProvider(t, harness, store)
	require.NoError(t, resumed.Start(ctx))

	current := resumed.Current()
	require.NotNil(t, current, "session restored from snapshot")
	assert.Equal(t, "casey@example.com", current.Email)
	assert.NotEmpty(t, current.IDToken, "restore mints a fresh token")
}

/*
TestRESTProvider_SnapshotRestoreRejected checks that a revoked refresh token
leads to a clean signed-out start, not an error.
*/
func TestRESTProvider_SnapshotRestoreRejected(t *testing.T) {
	store := identity.NewMemorySnapshotStore()
	harness := newProviderHarness(t, store)
	ctx := context.Background()

	session, err := harness.provider.Register(ctx, "casey@example.com", "secret123")
	require.NoError(t, err)

	// Revoke server-side, keep the local snapshot stale.
	require.NoError(t, harness.provider.Logout(ctx))
	require.NoError(t, store.Save(ctx, &identity.Snapshot{
		ProviderUserID: session.ProviderUserID,
		Email:          session.Email,
		RefreshToken:   session.RefreshToken,
	}))

	resumed := newRestoredProvider(t, harness, store)
	require.NoError(t, resumed.Start(ctx))
	assert.Nil(t, resumed.Current())

	_, err = store.Load(ctx)
	assert.Equal(t, "NOT_FOUND", apperr.CodeOf(err), "rejected snapshot is cleared")
}

// fakeFederated satisfies FederatedAuthenticator with a canned identity.
type fakeFederated struct {
	identity *identity.FederatedIdentity
	err      error
}

func (fake *fakeFederated) Authenticate(context.Context) (*identity.FederatedIdentity, error) {
	return fake.identity, fake.err
}

/*
TestRESTProvider_FederatedSignIn checks that a consent-flow identity is
exchanged for a provider session, provisioning the account on first use.
*/
func TestRESTProvider_FederatedSignIn(t *testing.T) {
	tokens := sec.NewTokenService("test-secret", "assetpulse-devstack")
	identityServer := devstack.NewIdentityServer(tokens, nil)
	router := chi.NewRouter()
	identityServer.Routes(router)
	httpServer := httptest.NewServer(router)
	t.Cleanup(httpServer.Close)

	provider := identity.NewRESTProvider(identity.RESTConfig{
		BaseURL: httpServer.URL,
		Federated: &fakeFederated{identity: &identity.FederatedIdentity{
			Provider:       "google.com",
			ProviderUserID: "google-uid-1",
			Email:          "Casey@Example.com",
			Name:           "Casey Doe",
			AvatarURL:      "https://img.example.com/casey.png",
		}},
		Store: identity.NewMemorySnapshotStore(),
	})
	t.Cleanup(provider.Close)

	session, err := provider.FederatedSignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "casey@example.com", session.Email)
	assert.Equal(t, "Casey Doe", session.DisplayName)
	assert.NotEmpty(t, session.IDToken)
}

/*
TestRESTProvider_FederatedSignIn_Cancelled checks that abandoning the
consent flow surfaces USER_CANCELLED and signs nothing in.
*/
func TestRESTProvider_FederatedSignIn_Cancelled(t *testing.T) {
	provider := identity.NewRESTProvider(identity.RESTConfig{
		BaseURL:   "http://127.0.0.1:0",
		Federated: &fakeFederated{err: apperr.UserCancelled()},
		Store:     identity.NewMemorySnapshotStore(),
	})
	t.Cleanup(provider.Close)

	_, err := provider.FederatedSignIn(context.Background())
	assert.Equal(t, apperr.CodeUserCancelled, apperr.CodeOf(err))
	assert.Nil(t, provider.Current())
}

/*
TestRESTProvider_UpdateProfile checks the metadata push and its local
mirror.
*/
func TestRESTProvider_UpdateProfile(t *testing.T) {
	harness := newProviderHarness(t, nil)
	ctx := context.Background()

	_, err := harness.provider.Register(ctx, "casey@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, harness.provider.UpdateProfile(ctx, "Casey Doe", "https://img.example.com/c.png"))

	current := harness.provider.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Casey Doe", current.DisplayName)
	assert.Equal(t, "https://img.example.com/c.png", current.AvatarURL)
}

// newRestoredProvider builds a second provider against the harness's server
// and store, simulating an app restart.
func newRestoredProvider(t *testing.T, harness *providerHarness, store identity.SnapshotStore) *identity.RESTProvider {
	t.Helper()
	provider := identity.NewRESTProvider(identity.RESTConfig{
		BaseURL: harness.url,
		APIKey:  "test-key",
		Store:   store,
	})
	t.Cleanup(provider.Close)
	return provider
}
