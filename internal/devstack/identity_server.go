// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package devstack hosts the local development servers the client talks to: a
stand-in identity provider and a stand-in AssetPulse backend.

Both keep everything in memory and exist so the CLI and the integration
tests run against real HTTP surfaces without external accounts. They mirror
the production wire contracts exactly; they do not mirror production
durability or security posture.
*/
package devstack

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/platform/respond"
	"github.com/assetpulse/assetpulse-go/internal/platform/sec"
	"github.com/assetpulse/assetpulse-go/internal/platform/validate"
	"github.com/assetpulse/assetpulse-go/pkg/canon"
	"github.com/assetpulse/assetpulse-go/pkg/uuid"

	requestutil "github.com/assetpulse/assetpulse-go/internal/platform/request"
)

// # Constants

const (
	// idTokenTTL is deliberately short so renewal paths get exercised locally.
	idTokenTTL = time.Hour

	minPasswordLength = 6
)

// # Storage

// account is one identity record. Federated accounts have no password hash.
type account struct {
	LocalID      string
	Email        string
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	Disabled     bool
}

// accountStore holds identity records and refresh tokens in memory.
type accountStore struct {
	mu      sync.Mutex
	byEmail map[string]*account
	refresh map[string]string // refresh token -> local ID
}

func newAccountStore() *accountStore {
	return &accountStore{
		byEmail: make(map[string]*account),
		refresh: make(map[string]string),
	}
}

// # Wire Payloads

// These mirror the production identity provider contract the client codes
// against; field names must not drift.

type identityCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityRefresh struct {
	RefreshToken string `json:"refresh_token"`
}

type identityFederated struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

type identityUpdate struct {
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type identitySession struct {
	LocalID      string `json:"local_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// # Identity Server

// IdentityServer is the local stand-in identity provider.
type IdentityServer struct {
	store  *accountStore
	tokens *sec.TokenService
	logger *slog.Logger
}

/*
NewIdentityServer constructs the stand-in identity provider.

Parameters:
  - tokens: *sec.TokenService (must share its secret with the API server so
    the token exchange verifies)
  - logger: *slog.Logger

Returns:
  - *IdentityServer: The server; mount its Routes on an http.Server
*/
func NewIdentityServer(tokens *sec.TokenService, logger *slog.Logger) *IdentityServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityServer{
		store:  newAccountStore(),
		tokens: tokens,
		logger: logger,
	}
}

// Routes mounts the identity endpoints onto a chi router.
func (server *IdentityServer) Routes(router chi.Router) {
	router.Post("/v1/signup", server.handleSignup)
	router.Post("/v1/signin", server.handleSignin)
	router.Post("/v1/signin-idp", server.handleSigninIDP)
	router.Post("/v1/token", server.handleToken)
	router.Post("/v1/update", server.handleUpdate)
	router.Post("/v1/revoke", server.handleRevoke)
}

// DisableAccount marks an account disabled, for exercising the
// ACCOUNT_DISABLED path in tests and demos.
func (server *IdentityServer) DisableAccount(email string) {
	server.store.mu.Lock()
	defer server.store.mu.Unlock()
	if existing, ok := server.store.byEmail[canon.Email(email)]; ok {
		existing.Disabled = true
	}
}

// # Handlers

func (server *IdentityServer) handleSignup(writer http.ResponseWriter, request *http.Request) {
	body := &identityCredentials{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("email", body.Email).Email("email", body.Email)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if len(body.Password) < minPasswordLength {
		respond.Error(writer, request, apperr.WeakCredential("Password must be at least 6 characters"))
		return
	}

	hash, err := sec.HashPassword(body.Password)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	email := canon.Email(body.Email)

	server.store.mu.Lock()
	if _, exists := server.store.byEmail[email]; exists {
		server.store.mu.Unlock()
		respond.Error(writer, request, apperr.DuplicateAccount())
		return
	}
	created := &account{
		LocalID:      uuid.New(),
		Email:        email,
		PasswordHash: hash,
	}
	server.store.byEmail[email] = created
	server.store.mu.Unlock()

	server.logger.Info("devstack_account_created", slog.String("email", email))
	server.issueSession(writer, request, created)
}

func (server *IdentityServer) handleSignin(writer http.ResponseWriter, request *http.Request) {
	body := &identityCredentials{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.store.mu.Lock()
	found, ok := server.store.byEmail[canon.Email(body.Email)]
	server.store.mu.Unlock()

	// Identical error for unknown email and wrong password; the client must
	// not be able to probe which addresses hold accounts.
	if !ok || found.PasswordHash == "" || !sec.CheckPasswordHash(body.Password, found.PasswordHash) {
		respond.Error(writer, request, apperr.InvalidCredential())
		return
	}
	if found.Disabled {
		respond.Error(writer, request, apperr.AccountDisabled())
		return
	}

	server.issueSession(writer, request, found)
}

func (server *IdentityServer) handleSigninIDP(writer http.ResponseWriter, request *http.Request) {
	body := &identityFederated{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("provider", body.Provider).
		Required("email", body.Email).
		Email("email", body.Email)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	email := canon.Email(body.Email)

	server.store.mu.Lock()
	found, ok := server.store.byEmail[email]
	if !ok {
		// First federated sign-in provisions the account.
		found = &account{
			LocalID:     uuid.New(),
			Email:       email,
			DisplayName: body.DisplayName,
			PhotoURL:    body.PhotoURL,
		}
		server.store.byEmail[email] = found
	}
	disabled := found.Disabled
	server.store.mu.Unlock()

	if disabled {
		respond.Error(writer, request, apperr.AccountDisabled())
		return
	}

	server.issueSession(writer, request, found)
}

func (server *IdentityServer) handleToken(writer http.ResponseWriter, request *http.Request) {
	body := &identityRefresh{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.store.mu.Lock()
	localID, ok := server.store.refresh[body.RefreshToken]
	var found *account
	if ok {
		for _, candidate := range server.store.byEmail {
			if candidate.LocalID == localID {
				found = candidate
				break
			}
		}
	}
	server.store.mu.Unlock()

	if found == nil || found.Disabled {
		respond.Error(writer, request, apperr.InvalidCredential())
		return
	}

	server.issueSession(writer, request, found)
}

func (server *IdentityServer) handleUpdate(writer http.ResponseWriter, request *http.Request) {
	claims, err := server.tokens.Verify(requestutil.BearerToken(request))
	if err != nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
		return
	}

	body := &identityUpdate{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.store.mu.Lock()
	if found, ok := server.store.byEmail[canon.Email(claims.Email)]; ok {
		if body.DisplayName != "" {
			found.DisplayName = body.DisplayName
		}
		if body.PhotoURL != "" {
			found.PhotoURL = body.PhotoURL
		}
	}
	server.store.mu.Unlock()

	respond.OK(writer, struct{}{})
}

func (server *IdentityServer) handleRevoke(writer http.ResponseWriter, request *http.Request) {
	body := &identityRefresh{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.store.mu.Lock()
	delete(server.store.refresh, body.RefreshToken)
	server.store.mu.Unlock()

	respond.OK(writer, struct{}{})
}

// issueSession mints a fresh ID token and refresh token for the account and
// writes the session payload.
func (server *IdentityServer) issueSession(writer http.ResponseWriter, request *http.Request, subject *account) {
	idToken, err := server.tokens.Mint(subject.LocalID, subject.Email, subject.DisplayName, subject.PhotoURL, idTokenTTL)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	refreshToken, err := sec.GenerateSecureToken(32)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	server.store.mu.Lock()
	server.store.refresh[refreshToken] = subject.LocalID
	server.store.mu.Unlock()

	respond.OK(writer, identitySession{
		LocalID:      subject.LocalID,
		Email:        subject.Email,
		DisplayName:  subject.DisplayName,
		PhotoURL:     subject.PhotoURL,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(idTokenTTL / time.Second),
	})
}
