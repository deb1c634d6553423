// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package session implements the session reconciler: the single owner of the
client's "who is signed in" state.

On every identity-provider notification it fetches the backend profile for
that identity, merges the two sources into one normalized user object,
classifies the session into a fixed set of states, and publishes the result.
Route guards and dashboards read the published snapshot; forms act through
the reconciler's operations. Nothing else in the application touches either
source of truth directly.

# Architecture

  - Reconciler: The state machine. One provider subscription, strictly
    ordered event processing, sequence-tagged fetches so a stale result can
    never overwrite a newer one.
  - Snapshot: The published state. Always internally consistent: identity
    and profile fields in one snapshot always came from the same
    reconciliation pass.
  - Registration flows: Multi-step account creation (upload, identity,
    profile) with a latch that suppresses mid-flow auto-reconciliation.
*/
package session

import (
	"github.com/assetpulse/assetpulse-go/internal/identity"
	"github.com/assetpulse/assetpulse-go/internal/profile"
)

// # Session States

// State classifies the published session.
type State string

const (
	// StateUnauthenticated is the initial state and the result of logout.
	StateUnauthenticated State = "unauthenticated"

	// StateAuthenticating is published while the first reconciliation for an
	// identity is in flight and no earlier user snapshot exists to retain.
	StateAuthenticating State = "authenticating"

	// StateKnownRole is an authenticated user with a resolved role; the user
	// routes to exactly one dashboard variant.
	StateKnownRole State = "known_role"

	// StateNewUser is an authenticated identity with no backend profile and
	// no role claim. The UI must prompt for role selection.
	StateNewUser State = "new_user"

	// StateError is a failed reconciliation with no earlier snapshot to
	// retain. Distinct from StateNewUser: a network failure must never be
	// presented as a brand-new account.
	StateError State = "error"
)

// # Published State

// User is the normalized application user: identity-provider fields merged
// with the backend profile. Profile fields win where both exist; Email is a
// join precondition, not a merge choice.
type User struct {
	ProviderUserID string       `json:"provider_user_id"`
	Email          string       `json:"email"`
	Name           string       `json:"name,omitempty"`
	AvatarURL      string       `json:"avatar_url,omitempty"`
	Role           profile.Role `json:"role,omitempty"`
	IsNewUser      bool         `json:"is_new_user"`

	// Profile is the backend record this user was merged from. Nil when no
	// record exists or the role came from a token claim alone; a fetched
	// record that carries no role is kept here even with IsNewUser set.
	Profile *profile.Profile `json:"profile,omitempty"`
}

// Snapshot is the published session state. It is immutable once published;
// the reconciler replaces it wholesale, never edits it in place.
type Snapshot struct {
	State State `json:"state"`

	// Loading is true while a reconciliation fetch is in flight. During a
	// refresh the previous User is retained alongside Loading=true so the UI
	// does not blank out.
	Loading bool `json:"loading"`

	// User is nil when unauthenticated or while the first reconciliation runs.
	User *User `json:"user,omitempty"`

	// Err is set only in StateError, for the manual-retry surface.
	Err error `json:"-"`
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s Snapshot) Authenticated() bool {
	return s.State == StateKnownRole || s.State == StateNewUser
}

// # Registration Intent

// RegistrationIntent captures the identity fields of a federated sign-in
// that landed in StateNewUser, for the role-selection prompt. It is
// transient: discard it once profile creation succeeds or the flow is
// cancelled.
type RegistrationIntent struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// newUserFromIdentity builds the published user for the new-user state:
// identity fields only, no role, no profile.
func newUserFromIdentity(sess *identity.Session) *User {
	return &User{
		ProviderUserID: sess.ProviderUserID,
		Email:          sess.Email,
		Name:           sess.DisplayName,
		AvatarURL:      sess.AvatarURL,
		IsNewUser:      true,
	}
}

// mergeUser builds the published user from an identity session and its
// backend profile (which may be nil when the role came from a token claim).
func mergeUser(sess *identity.Session, prof *profile.Profile, role profile.Role) *User {
	user := &User{
		ProviderUserID: sess.ProviderUserID,
		Email:          sess.Email,
		Name:           sess.DisplayName,
		AvatarURL:      sess.AvatarURL,
		Role:           role,
		Profile:        prof,
	}
	if prof != nil {
		if prof.Name != "" {
			user.Name = prof.Name
		}
		if prof.ProfileImage != "" {
			user.AvatarURL = prof.ProfileImage
		}
	}
	return user
}
