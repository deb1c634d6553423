// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/pkg/canon"
)

// # Federated Delegation

// FederatedIdentity is the result of a completed third-party consent flow.
type FederatedIdentity struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
}

// FederatedAuthenticator runs an interactive third-party consent flow.
// [GoogleProvider] is the shipped implementation.
type FederatedAuthenticator interface {
	Authenticate(ctx context.Context) (*FederatedIdentity, error)
}

// # REST Provider

// RESTConfig carries the dependencies for a [RESTProvider].
type RESTConfig struct {
	// BaseURL of the identity provider API.
	BaseURL string
	// APIKey identifies this client installation to the provider.
	APIKey string
	// Store persists the session snapshot between runs.
	Store SnapshotStore
	// Federated runs the third-party consent flow; nil disables federated sign-in.
	Federated FederatedAuthenticator
	Logger    *slog.Logger
	// HTTPClient overrides the default transport, used by tests.
	HTTPClient *http.Client
}

// RESTProvider implements [Provider] against the identity provider's HTTP API.
//
// # Concurrency
//
// The active session and subscriber set are guarded by a mutex. Events are
// emitted synchronously and in order; a single emit lock guarantees that no
// two notifications interleave.
type RESTProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	store      SnapshotStore
	federated  FederatedAuthenticator
	logger     *slog.Logger

	mu          sync.Mutex
	current     *Session
	subscribers map[int]func(Event)
	nextSubID   int
	renewTimer  *time.Timer
	closed      bool

	// emitMu serializes event delivery so subscribers observe changes in order.
	emitMu sync.Mutex
}

// NewRESTProvider constructs a provider client from config.
func NewRESTProvider(cfg RESTConfig) *RESTProvider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	store := cfg.Store
	if store == nil {
		store = NewMemorySnapshotStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTProvider{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(providerRateLimit), providerRateBurst),
		store:       store,
		federated:   cfg.Federated,
		logger:      logger,
		subscribers: make(map[int]func(Event)),
	}
}

// # Wire Payloads

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type federatedRequest struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

type updateRequest struct {
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// sessionPayload is the provider's response for every call that establishes
// or renews a session.
type sessionPayload struct {
	LocalID      string `json:"local_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

func (payload *sessionPayload) toSession() *Session {
	return &Session{
		ProviderUserID: payload.LocalID,
		Email:          canon.Email(payload.Email),
		DisplayName:    payload.DisplayName,
		AvatarURL:      payload.PhotoURL,
		IDToken:        payload.IDToken,
		RefreshToken:   payload.RefreshToken,
		ExpiresAt:      time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
}

// # Lifecycle

/*
Start restores a persisted session, if one exists.

Description: Loads the snapshot, exchanges its refresh token for a fresh ID
token, and emits a signed-in event. An expired or revoked snapshot is cleared
silently; that is an expected branch, not a failure.

Parameters:
  - context: context.Context

Returns:
  - error: Only unexpected store failures; absence of a snapshot is not an error
*/
func (provider *RESTProvider) Start(context context.Context) error {
	snapshot, err := provider.store.Load(context)
	if err != nil {
		if apperr.CodeOf(err) == "NOT_FOUND" {
			return nil
		}
		return fmt.Errorf("identity_provider_snapshot_load_failed: %w", err)
	}

	payload := &sessionPayload{}
	if err := provider.doJSON(context, "/v1/token", tokenRequest{RefreshToken: snapshot.RefreshToken}, payload); err != nil {
		// The refresh token no longer works. Clear it and start signed out.
		provider.logger.Warn("identity_snapshot_restore_rejected", slog.String("email", snapshot.Email))
		_ = provider.store.Clear(context)
		return nil
	}

	provider.adoptSession(context, payload.toSession(), EventSignedIn)
	return nil
}

// Close stops the background token renewal. Pending subscriber callbacks
// complete before Close returns.
func (provider *RESTProvider) Close() {
	provider.mu.Lock()
	provider.closed = true
	if provider.renewTimer != nil {
		provider.renewTimer.Stop()
		provider.renewTimer = nil
	}
	provider.mu.Unlock()

	// Taking the emit lock flushes any in-flight notification.
	provider.emitMu.Lock()
	provider.emitMu.Unlock() //nolint:staticcheck // empty critical section is the flush
}

// # Authentication Operations

/*
Register creates a new provider account and signs it in.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Session: The established session
  - error: DUPLICATE_ACCOUNT, WEAK_CREDENTIAL, or transport failures
*/
func (provider *RESTProvider) Register(context context.Context, email, password string) (*Session, error) {
	payload := &sessionPayload{}
	body := credentialsRequest{Email: canon.Email(email), Password: password}
	if err := provider.doJSON(context, "/v1/signup", body, payload); err != nil {
		return nil, err
	}
	return provider.adoptSession(context, payload.toSession(), EventSignedIn), nil
}

/*
Login authenticates existing email/password credentials.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Session: The established session
  - error: INVALID_CREDENTIAL, ACCOUNT_DISABLED, or transport failures
*/
func (provider *RESTProvider) Login(context context.Context, email, password string) (*Session, error) {
	payload := &sessionPayload{}
	body := credentialsRequest{Email: canon.Email(email), Password: password}
	if err := provider.doJSON(context, "/v1/signin", body, payload); err != nil {
		return nil, err
	}
	return provider.adoptSession(context, payload.toSession(), EventSignedIn), nil
}

/*
FederatedSignIn runs the third-party consent flow and signs the resulting
identity in with the provider.

Description: Delegates the interactive part to the configured
[FederatedAuthenticator], then exchanges the federated identity for a
provider session. The provider creates the account on first federated
sign-in.

Returns:
  - *Session: The established session
  - error: USER_CANCELLED if the consent flow was abandoned
*/
func (provider *RESTProvider) FederatedSignIn(context context.Context) (*Session, error) {
	if provider.federated == nil {
		return nil, apperr.ValidationError("Federated sign-in is not configured")
	}

	federatedIdentity, err := provider.federated.Authenticate(context)
	if err != nil {
		return nil, err
	}

	payload := &sessionPayload{}
	body := federatedRequest{
		Provider:       federatedIdentity.Provider,
		ProviderUserID: federatedIdentity.ProviderUserID,
		Email:          canon.Email(federatedIdentity.Email),
		DisplayName:    federatedIdentity.Name,
		PhotoURL:       federatedIdentity.AvatarURL,
	}
	if err := provider.doJSON(context, "/v1/signin-idp", body, payload); err != nil {
		return nil, err
	}
	return provider.adoptSession(context, payload.toSession(), EventSignedIn), nil
}

// UpdateProfile pushes display name / avatar metadata onto the identity
// record. Best-effort: the session keeps working if the provider rejects it.
func (provider *RESTProvider) UpdateProfile(context context.Context, name, avatarURL string) error {
	provider.mu.Lock()
	current := provider.current.Clone()
	provider.mu.Unlock()

	if current == nil {
		return apperr.Unauthorized("No active session")
	}

	body := updateRequest{DisplayName: canon.Name(name), PhotoURL: avatarURL}
	if err := provider.doBearer(context, "/v1/update", current.IDToken, body); err != nil {
		return err
	}

	// Mirror the accepted metadata locally and in the snapshot.
	provider.mu.Lock()
	if provider.current != nil && provider.current.ProviderUserID == current.ProviderUserID {
		if body.DisplayName != "" {
			provider.current.DisplayName = body.DisplayName
		}
		if body.PhotoURL != "" {
			provider.current.AvatarURL = body.PhotoURL
		}
		current = provider.current.Clone()
	}
	provider.mu.Unlock()

	provider.persistSnapshot(context, current)
	return nil
}

/*
Logout terminates the identity session.

Description: Revokes the refresh token, clears the persisted snapshot, and
emits a signed-out event. The call is fully synchronous; when it returns the
provider session is gone.

Parameters:
  - context: context.Context

Returns:
  - error: Always nil; logout is idempotent and revocation failures are logged only
*/
func (provider *RESTProvider) Logout(context context.Context) error {
	provider.mu.Lock()
	current := provider.current
	provider.current = nil
	if provider.renewTimer != nil {
		provider.renewTimer.Stop()
		provider.renewTimer = nil
	}
	provider.mu.Unlock()

	if current == nil {
		return nil
	}

	// Best-effort server-side revocation; local state is gone either way.
	if err := provider.doJSON(context, "/v1/revoke", tokenRequest{RefreshToken: current.RefreshToken}, nil); err != nil {
		provider.logger.Warn("identity_revoke_failed", slog.Any("error", err))
	}

	if err := provider.store.Clear(context); err != nil {
		provider.logger.Warn("identity_snapshot_clear_failed", slog.Any("error", err))
	}

	provider.emit(Event{Kind: EventSignedOut})
	return nil
}

// # Subscription

// Subscribe registers a listener for identity-state changes.
func (provider *RESTProvider) Subscribe(fn func(Event)) func() {
	provider.mu.Lock()
	defer provider.mu.Unlock()

	id := provider.nextSubID
	provider.nextSubID++
	provider.subscribers[id] = fn

	return func() {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		delete(provider.subscribers, id)
	}
}

// Current returns a copy of the active session, or nil when signed out.
func (provider *RESTProvider) Current() *Session {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	return provider.current.Clone()
}

// # Internals

// adoptSession installs a new session, persists it, schedules token renewal,
// and notifies subscribers.
func (provider *RESTProvider) adoptSession(ctx context.Context, session *Session, kind EventKind) *Session {
	provider.mu.Lock()
	provider.current = session
	provider.scheduleRenewalLocked(session)
	provider.mu.Unlock()

	provider.persistSnapshot(ctx, session)
	provider.emit(Event{Kind: kind, Session: session.Clone()})
	return session.Clone()
}

// scheduleRenewalLocked arms the renewal timer for the session's token expiry.
// Caller holds provider.mu.
func (provider *RESTProvider) scheduleRenewalLocked(session *Session) {
	if provider.renewTimer != nil {
		provider.renewTimer.Stop()
	}
	if provider.closed {
		return
	}

	wait := time.Until(session.ExpiresAt) - renewalMargin
	if wait < minRenewalInterval {
		wait = minRenewalInterval
	}
	provider.renewTimer = time.AfterFunc(wait, provider.renew)
}

// renew exchanges the refresh token for a fresh ID token and emits a
// token-renewed event. Identity fields never change here.
func (provider *RESTProvider) renew() {
	provider.mu.Lock()
	current := provider.current.Clone()
	closed := provider.closed
	provider.mu.Unlock()

	if current == nil || closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	payload := &sessionPayload{}
	if err := provider.doJSON(ctx, "/v1/token", tokenRequest{RefreshToken: current.RefreshToken}, payload); err != nil {
		// Retry on the floor interval; the session stays usable until expiry.
		provider.logger.Warn("identity_token_renewal_failed", slog.Any("error", err))
		provider.mu.Lock()
		if provider.current != nil && !provider.closed {
			provider.renewTimer = time.AfterFunc(minRenewalInterval, provider.renew)
		}
		provider.mu.Unlock()
		return
	}

	provider.mu.Lock()
	if provider.current == nil || provider.current.ProviderUserID != current.ProviderUserID {
		// Signed out (or switched accounts) while the renewal was in flight.
		provider.mu.Unlock()
		return
	}
	provider.current.IDToken = payload.IDToken
	provider.current.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	if payload.RefreshToken != "" {
		provider.current.RefreshToken = payload.RefreshToken
	}
	renewed := provider.current.Clone()
	provider.scheduleRenewalLocked(provider.current)
	provider.mu.Unlock()

	provider.persistSnapshot(ctx, renewed)
	provider.emit(Event{Kind: EventTokenRenewed, Session: renewed})
}

// persistSnapshot saves the session for the next process run. Persistence
// failures degrade to a session that lasts one process, never to a sign-out.
func (provider *RESTProvider) persistSnapshot(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	snapshot := &Snapshot{
		ProviderUserID: session.ProviderUserID,
		Email:          session.Email,
		DisplayName:    session.DisplayName,
		AvatarURL:      session.AvatarURL,
		RefreshToken:   session.RefreshToken,
		SavedAt:        time.Now(),
	}
	if err := provider.store.Save(ctx, snapshot); err != nil {
		provider.logger.Warn("identity_snapshot_save_failed", slog.Any("error", err))
	}
}

// emit delivers one event to all subscribers, serialized so that observers
// see state changes in the order they occurred.
func (provider *RESTProvider) emit(event Event) {
	provider.emitMu.Lock()
	defer provider.emitMu.Unlock()

	provider.mu.Lock()
	listeners := make([]func(Event), 0, len(provider.subscribers))
	for _, fn := range provider.subscribers {
		listeners = append(listeners, fn)
	}
	provider.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// # HTTP Plumbing

// doJSON posts a JSON body to the provider and decodes the response into out.
func (provider *RESTProvider) doJSON(ctx context.Context, path string, body, out interface{}) error {
	return provider.do(ctx, path, "", body, out)
}

// doBearer posts a JSON body authorized by the given ID token.
func (provider *RESTProvider) doBearer(ctx context.Context, path, idToken string, body interface{}) error {
	return provider.do(ctx, path, idToken, body, nil)
}

func (provider *RESTProvider) do(ctx context.Context, path, bearer string, body, out interface{}) error {
	// Respect the local call budget before touching the network.
	if err := provider.limiter.Wait(ctx); err != nil {
		return apperr.ProfileFetchFailed(err)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("identity_provider_encode_failed: %w", err)
	}

	url := provider.baseURL + path
	if provider.apiKey != "" {
		url += "?key=" + provider.apiKey
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("identity_provider_request_failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return apperr.ProfileFetchFailed(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return decodeProviderError(response)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("identity_provider_decode_failed: %w", err)
	}
	return nil
}

// decodeProviderError maps a provider error response onto the client taxonomy.
func decodeProviderError(response *http.Response) error {
	envelope := struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}{}
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return apperr.ProfileFetchFailed(fmt.Errorf("identity provider returned status %d", response.StatusCode))
	}

	switch envelope.Code {
	case apperr.CodeDuplicateAccount:
		return apperr.DuplicateAccount()
	case apperr.CodeWeakCredential:
		return apperr.WeakCredential(envelope.Error)
	case apperr.CodeInvalidCredential:
		return apperr.InvalidCredential()
	case apperr.CodeAccountDisabled:
		return apperr.AccountDisabled()
	case "VALIDATION_ERROR":
		return apperr.ValidationError(envelope.Error)
	default:
		return apperr.ProfileFetchFailed(errors.New(envelope.Error))
	}
}

// compile-time interface check
var _ Provider = (*RESTProvider)(nil)
