// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/assetpulse/assetpulse-go/internal/identity"
	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/profile"
	"github.com/assetpulse/assetpulse-go/pkg/canon"
	"github.com/assetpulse/assetpulse-go/pkg/uuid"
)

// # Contracts & Types

// ProfileAPI is the backend surface the reconciler depends on.
// [*profile.Client] is the production implementation.
type ProfileAPI interface {
	Get(ctx context.Context, email string) (*profile.Profile, error)
	Create(ctx context.Context, newProfile *profile.Profile) (*profile.Profile, error)
	Update(ctx context.Context, email string, changes profile.Patch) (*profile.Profile, error)
	ExchangeToken(ctx context.Context, idToken string) (profile.Role, error)
	Logout(ctx context.Context) error
}

// Uploader sends registration images to the media host.
// [*media.Uploader] is the production implementation.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
}

// inflightCall tracks one coalesced reconciliation so concurrent Refresh
// callers attach to a single fetch. The email records which identity the
// pass is reconciling; attaching is only valid for that same identity.
type inflightCall struct {
	email string
	done  chan struct{}
	err   error
}

// Reconciler merges identity-provider state with the backend profile into
// one published [Snapshot].
//
// # Ownership
//
// The published snapshot is written exclusively here. Everything else reads
// it via Current/Subscribe and expresses intent through operations (Login,
// Refresh, Logout, the registration flows), never by mutating the snapshot.
type Reconciler struct {
	provider identity.Provider
	api      ProfileAPI
	uploader Uploader
	logger   *slog.Logger

	mu          sync.Mutex
	published   Snapshot
	subscribers map[int]func(Snapshot)
	nextSubID   int

	// seq tags each reconciliation pass; a pass publishes only if it is
	// still the latest when its fetch resolves. Logout bumps seq so any
	// in-flight fetch resolves stale.
	seq uint64

	// registering is the latch set around registration flows. While held,
	// provider notifications are ignored: the backend profile does not exist
	// yet and reconciling would flash a false new-user state.
	registering bool

	inflight *inflightCall

	// execMu admits one reconciliation fetch at a time, preserving arrival
	// order and keeping two fetches for one identity from racing.
	execMu sync.Mutex

	// notifyMu keeps subscriber callbacks in publication order.
	notifyMu sync.Mutex

	events      chan identity.Event
	unsubscribe func()
	stop        chan struct{}
	loopDone    chan struct{}
}

// NewReconciler constructs a Reconciler with its collaborators.
// uploader may be nil when no registration flow will carry images.
func NewReconciler(provider identity.Provider, api ProfileAPI, uploader Uploader, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		provider:    provider,
		api:         api,
		uploader:    uploader,
		logger:      logger,
		published:   Snapshot{State: StateUnauthenticated},
		subscribers: make(map[int]func(Snapshot)),
		events:      make(chan identity.Event, 32),
		stop:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// # Lifecycle

/*
Start registers the single identity-provider subscription and begins
processing notifications.

Description: This is the sole suspension/notification point of the whole
session model. Notifications are queued and processed strictly in arrival
order: notification N+1's fetch never starts before notification N's publish
(or stale discard) completed.

Parameters:
  - context: context.Context (governs the processing loop's fetches)
*/
func (reconciler *Reconciler) Start(context context.Context) {
	reconciler.unsubscribe = reconciler.provider.Subscribe(func(event identity.Event) {
		select {
		case reconciler.events <- event:
		case <-reconciler.stop:
		}
	})
	go reconciler.run(context)
}

// Close tears down the subscription and stops the processing loop.
func (reconciler *Reconciler) Close() {
	if reconciler.unsubscribe != nil {
		reconciler.unsubscribe()
	}
	close(reconciler.stop)
	<-reconciler.loopDone
}

// run drains the notification queue one event at a time.
func (reconciler *Reconciler) run(ctx context.Context) {
	defer close(reconciler.loopDone)
	for {
		select {
		case <-reconciler.stop:
			return
		case event := <-reconciler.events:
			reconciler.handleEvent(ctx, event)
		}
	}
}

// handleEvent applies one identity notification to the state machine.
func (reconciler *Reconciler) handleEvent(ctx context.Context, event identity.Event) {
	// No identity: terminal for this event.
	if event.Kind == identity.EventSignedOut || event.Session == nil {
		reconciler.publishUnauthenticated()
		return
	}

	// Registration in progress: the identity exists but its profile is still
	// being written. Reconciling now would publish a false new-user state.
	if reconciler.isRegistering() {
		reconciler.logger.Debug("reconcile_suppressed_by_registration",
			slog.String("email", event.Session.Email))
		return
	}

	// A refresh already in flight for this exact identity will observe the
	// state this event announces; attach instead of double-fetching. A pass
	// reconciling a different identity proves nothing about this event, so
	// the event gets its own reconciliation and the sequence counter retires
	// the older pass.
	reconciler.mu.Lock()
	call := reconciler.inflight
	reconciler.mu.Unlock()
	if call != nil && call.email == event.Session.Email {
		<-call.done
		return
	}

	if err := reconciler.reconcile(ctx, event.Session); err != nil {
		reconciler.logger.Warn("reconciliation_failed",
			slog.String("email", event.Session.Email),
			slog.Any("error", err))
	}
}

// # Published State Access

// Current returns the latest published snapshot.
func (reconciler *Reconciler) Current() Snapshot {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()
	return reconciler.published
}

// Subscribe registers a listener invoked on every publish, and returns an
// unsubscribe function.
//
// Callbacks run synchronously on the publishing goroutine. They must not
// call blocking reconciler operations (Refresh, Logout); read state and
// schedule work elsewhere.
func (reconciler *Reconciler) Subscribe(fn func(Snapshot)) func() {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()

	id := reconciler.nextSubID
	reconciler.nextSubID++
	reconciler.subscribers[id] = fn

	return func() {
		reconciler.mu.Lock()
		defer reconciler.mu.Unlock()
		delete(reconciler.subscribers, id)
	}
}

// # Operations

/*
Login authenticates email/password credentials and reconciles the session.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - error: INVALID_CREDENTIAL / ACCOUNT_DISABLED from the provider, or a
    reconciliation failure (the identity session is established either way)
*/
func (reconciler *Reconciler) Login(context context.Context, email, password string) error {
	if _, err := reconciler.provider.Login(context, email, password); err != nil {
		return err
	}
	// The provider's signed-in notification coalesces into this refresh.
	return reconciler.Refresh(context)
}

/*
FederatedSignIn runs the provider-hosted consent flow and reconciles.

Description: When the reconciliation lands in StateNewUser, the expected
branch for a brand-new federated account, the identity fields are captured
into a [RegistrationIntent] for the role-selection prompt.

Returns:
  - *RegistrationIntent: Non-nil exactly when role selection is required
  - error: USER_CANCELLED, provider failures, or a reconciliation failure
*/
func (reconciler *Reconciler) FederatedSignIn(context context.Context) (*RegistrationIntent, error) {
	session, err := reconciler.provider.FederatedSignIn(context)
	if err != nil {
		return nil, err
	}

	if err := reconciler.Refresh(context); err != nil {
		return nil, err
	}

	if snapshot := reconciler.Current(); snapshot.State == StateNewUser {
		return &RegistrationIntent{
			ID:        uuid.New(),
			Name:      session.DisplayName,
			Email:     session.Email,
			AvatarURL: session.AvatarURL,
		}, nil
	}
	return nil, nil
}

/*
Refresh re-reconciles the currently known identity against the backend.

Description: Callable whenever the backend profile is known to have changed
(profile edit, role selection, package upgrade). Idempotent and coalescing:
a call made while another reconciliation is in flight attaches to that
operation's result instead of issuing a second fetch.

Parameters:
  - context: context.Context

Returns:
  - error: PROFILE_FETCH_FAILED on transient failures; the previously
    published state is left untouched apart from its Loading flag
*/
func (reconciler *Reconciler) Refresh(context context.Context) error {
	reconciler.mu.Lock()
	if call := reconciler.inflight; call != nil {
		reconciler.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-context.Done():
			return context.Err()
		}
	}
	session := reconciler.provider.Current()
	call := &inflightCall{done: make(chan struct{})}
	if session != nil {
		call.email = session.Email
	}
	reconciler.inflight = call
	reconciler.mu.Unlock()

	call.err = reconciler.reconcile(context, session)

	reconciler.mu.Lock()
	reconciler.inflight = nil
	reconciler.mu.Unlock()
	close(call.done)

	return call.err
}

/*
Logout clears the application session.

Description: The backend session cookie is cleared first and awaited, then
the identity provider is signed out. Publishing Unauthenticated bumps the
sequence counter, so any profile fetch still in flight resolves stale and is
discarded rather than resurrecting the old user.

Parameters:
  - context: context.Context

Returns:
  - error: Provider sign-out failures; backend logout failures are logged only
*/
func (reconciler *Reconciler) Logout(context context.Context) error {
	// Backend first, and awaited: the cookie must be gone before the
	// application session is declared cleared.
	if err := reconciler.api.Logout(context); err != nil {
		reconciler.logger.Warn("backend_logout_failed", slog.Any("error", err))
	}

	if err := reconciler.provider.Logout(context); err != nil {
		return err
	}

	reconciler.publishUnauthenticated()
	return nil
}

// # Registration Latch

// BeginRegistration suppresses automatic reconciliation while a registration
// flow constructs the backend profile. Set before the identity-creation
// call; cleared after the profile-creation call resolves.
func (reconciler *Reconciler) BeginRegistration() {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()
	reconciler.registering = true
}

// EndRegistration clears the latch. Idempotent.
func (reconciler *Reconciler) EndRegistration() {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()
	reconciler.registering = false
}

func (reconciler *Reconciler) isRegistering() bool {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()
	return reconciler.registering
}

// # State Machine Core

/*
reconcile runs one full reconciliation pass for the given identity session.

Transition rules, in order:

 1. No identity → publish Unauthenticated.
 2. Identity present → publish the loading state, fetch the profile. The
    fetch is awaited fully before any new state is published; partial merges
    never escape.
 3. Profile with a valid role → publish StateKnownRole with the merged user.
 4. Definitive not-found and no fallback role claim → publish StateNewUser.
 5. Transient failure → retain the previous published state if one exists,
    otherwise publish StateError. Never StateNewUser.
*/
func (reconciler *Reconciler) reconcile(ctx context.Context, session *identity.Session) error {
	if session == nil {
		reconciler.publishUnauthenticated()
		return nil
	}

	reconciler.execMu.Lock()
	defer reconciler.execMu.Unlock()

	// Tag this pass and publish the loading state atomically.
	reconciler.mu.Lock()
	reconciler.seq++
	mySeq := reconciler.seq
	previous := reconciler.published
	var loading Snapshot
	if previous.Authenticated() {
		loading = Snapshot{State: previous.State, Loading: true, User: previous.User}
	} else {
		loading = Snapshot{State: StateAuthenticating, Loading: true}
	}
	listeners := reconciler.publishLocked(loading)
	reconciler.mu.Unlock()
	reconciler.notify(listeners, loading)

	email := canon.Email(session.Email)
	fetched, err := reconciler.api.Get(ctx, email)

	switch {
	case err == nil:
		role := fetched.Role
		if !role.Valid() {
			// Backend invariant says registration always sets a role; treat
			// a roleless record like a missing one and consult the fallback.
			role, err = reconciler.fallbackRole(ctx, session)
			if err != nil {
				return reconciler.publishTransientFailure(mySeq, previous, err)
			}
		}
		if role.Valid() {
			reconciler.publishIfCurrent(mySeq, Snapshot{State: StateKnownRole, User: mergeUser(session, fetched, role)})
			return nil
		}
		// Roleless record and no claim: route to role selection, but keep
		// the fetched fields on the published user instead of dropping them.
		user := mergeUser(session, fetched, "")
		user.IsNewUser = true
		reconciler.publishIfCurrent(mySeq, Snapshot{State: StateNewUser, User: user})
		return nil

	case apperr.CodeOf(err) == apperr.CodeProfileNotFound:
		// Expected branch: brand-new account. Check the fallback role claim
		// before declaring a new user.
		role, fallbackErr := reconciler.fallbackRole(ctx, session)
		if fallbackErr != nil {
			return reconciler.publishTransientFailure(mySeq, previous, fallbackErr)
		}
		if role.Valid() {
			reconciler.publishIfCurrent(mySeq, Snapshot{State: StateKnownRole, User: mergeUser(session, nil, role)})
			return nil
		}
		reconciler.publishIfCurrent(mySeq, Snapshot{State: StateNewUser, User: newUserFromIdentity(session)})
		return nil

	default:
		return reconciler.publishTransientFailure(mySeq, previous, err)
	}
}

// fallbackRole resolves the role claim consulted when the profile carries
// none: the backend token exchange first, then an unverified peek at the ID
// token's own claims. A transport failure with no local claim is returned as
// an error so the caller treats it as transient, never as a new user.
func (reconciler *Reconciler) fallbackRole(ctx context.Context, session *identity.Session) (profile.Role, error) {
	role, err := reconciler.api.ExchangeToken(ctx, session.IDToken)
	if err == nil && role.Valid() {
		return role, nil
	}

	if claimed := peekRoleClaim(session.IDToken); claimed.Valid() {
		return claimed, nil
	}

	if err != nil {
		return "", err
	}
	return "", nil
}

// publishTransientFailure applies rule 5: retain the previous state with its
// loading flag cleared, or publish StateError when there is nothing to retain.
func (reconciler *Reconciler) publishTransientFailure(mySeq uint64, previous Snapshot, cause error) error {
	reconciler.mu.Lock()
	if reconciler.seq != mySeq {
		reconciler.mu.Unlock()
		return cause
	}
	var snapshot Snapshot
	if previous.Authenticated() {
		snapshot = Snapshot{State: previous.State, User: previous.User}
	} else {
		snapshot = Snapshot{State: StateError, Err: cause}
	}
	listeners := reconciler.publishLocked(snapshot)
	reconciler.mu.Unlock()
	reconciler.notify(listeners, snapshot)
	return cause
}

// # Publishing

// publishUnauthenticated clears the session and invalidates in-flight passes.
func (reconciler *Reconciler) publishUnauthenticated() {
	snapshot := Snapshot{State: StateUnauthenticated}
	reconciler.mu.Lock()
	reconciler.seq++
	listeners := reconciler.publishLocked(snapshot)
	reconciler.mu.Unlock()
	reconciler.notify(listeners, snapshot)
}

// publishIfCurrent publishes only when this pass is still the latest; a
// stale pass (superseded by a newer notification or a logout) is discarded.
func (reconciler *Reconciler) publishIfCurrent(mySeq uint64, snapshot Snapshot) {
	reconciler.mu.Lock()
	if reconciler.seq != mySeq {
		reconciler.mu.Unlock()
		reconciler.logger.Debug("stale_reconciliation_discarded")
		return
	}
	listeners := reconciler.publishLocked(snapshot)
	reconciler.mu.Unlock()
	reconciler.notify(listeners, snapshot)
}

// publishLocked stores the snapshot and returns the listeners to notify.
// Caller holds reconciler.mu.
func (reconciler *Reconciler) publishLocked(snapshot Snapshot) []func(Snapshot) {
	reconciler.published = snapshot
	listeners := make([]func(Snapshot), 0, len(reconciler.subscribers))
	for _, fn := range reconciler.subscribers {
		listeners = append(listeners, fn)
	}
	return listeners
}

// notify delivers one snapshot to listeners, serialized in publish order.
func (reconciler *Reconciler) notify(listeners []func(Snapshot), snapshot Snapshot) {
	reconciler.notifyMu.Lock()
	defer reconciler.notifyMu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}
