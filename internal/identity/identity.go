// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package identity implements the Session Source: the client-side wrapper around
the hosted identity provider.

It authenticates the user (email/password or federated Google sign-in) and
exposes an identity token plus a minimal profile (email, display name, avatar).
It has no knowledge of the application's role/company model; merging identity
with the backend profile is the session reconciler's job.

# Architecture

  - Session: The provider-authenticated principal and its tokens.
  - Provider: The contract the reconciler consumes. Exactly one long-lived
    subscription drives the whole session model; there is no polling.
  - RESTProvider: Production implementation against the provider's HTTP API,
    with background token renewal and snapshot persistence.
*/
package identity

import (
	"context"
	"time"
)

// # Domain Entities

// Session represents the provider-authenticated principal.
//
// The session is owned exclusively by the provider. Consumers receive copies
// and must never mutate them; the provider may renew IDToken asynchronously
// without changing identity.
type Session struct {
	// ProviderUserID is the opaque, stable account identifier.
	ProviderUserID string `json:"provider_user_id"`
	// Email is the join key to the application profile.
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`

	// IDToken is the short-lived bearer credential presented to the backend.
	IDToken string `json:"-"`
	// RefreshToken is the long-lived credential used to renew IDToken.
	RefreshToken string `json:"-"`
	// ExpiresAt is when IDToken stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`
}

// Clone returns an independent copy safe to hand to subscribers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

// # Change Notifications

// EventKind classifies an identity-state change.
type EventKind string

const (
	// EventSignedIn fires when a session appears (sign-up, sign-in, federated
	// sign-in, or a restored snapshot at startup).
	EventSignedIn EventKind = "signed_in"

	// EventSignedOut fires when the session is terminated.
	EventSignedOut EventKind = "signed_out"

	// EventTokenRenewed fires when the provider silently renews the ID token.
	// Identity fields are guaranteed unchanged.
	EventTokenRenewed EventKind = "token_renewed"
)

// Event is a single identity-state change notification.
// Session is nil exactly when Kind is EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}

// # Provider Contract

// Provider is the Session Source contract consumed by the session reconciler.
//
// Implementations must deliver events in the order the underlying state
// changes occurred, to a callback registered via Subscribe.
type Provider interface {
	// Register creates a provider account with email/password credentials.
	// Fails with DUPLICATE_ACCOUNT or WEAK_CREDENTIAL.
	Register(ctx context.Context, email, password string) (*Session, error)

	// Login authenticates existing email/password credentials.
	// Fails with INVALID_CREDENTIAL or ACCOUNT_DISABLED.
	Login(ctx context.Context, email, password string) (*Session, error)

	// FederatedSignIn runs the provider-hosted consent flow.
	// Fails with USER_CANCELLED if the user abandons it.
	FederatedSignIn(ctx context.Context) (*Session, error)

	// UpdateProfile is a best-effort metadata update on the identity record.
	UpdateProfile(ctx context.Context, name, avatarURL string) error

	// Logout terminates the identity session. It must complete before the
	// application session is considered cleared.
	Logout(ctx context.Context) error

	// Subscribe registers a listener for identity-state changes and returns
	// an unsubscribe function.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Current returns a copy of the active session, or nil when signed out.
	Current() *Session
}
