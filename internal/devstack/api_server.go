// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package devstack

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/platform/respond"
	"github.com/assetpulse/assetpulse-go/internal/platform/sec"
	"github.com/assetpulse/assetpulse-go/internal/platform/validate"
	"github.com/assetpulse/assetpulse-go/internal/profile"
	"github.com/assetpulse/assetpulse-go/pkg/canon"
	"github.com/assetpulse/assetpulse-go/pkg/pointer"
	"github.com/assetpulse/assetpulse-go/pkg/uuid"

	requestutil "github.com/assetpulse/assetpulse-go/internal/platform/request"
)

// # Constants

const (
	// sessionCookieName carries the backend session issued by the token
	// exchange. HttpOnly so a browser embedding could not script-read it.
	sessionCookieName = "assetpulse_session"

	sessionTTL = 24 * time.Hour

	// maxUploadBytes bounds media uploads; real assets are thumbnails.
	maxUploadBytes = 5 << 20
)

// # Storage

// profileStore holds backend user records in memory, keyed by canonical
// email. Company membership counts live on the HR record that owns the
// company, matching the production data shape.
type profileStore struct {
	mu       sync.Mutex
	byEmail  map[string]*profile.Profile
	sessions map[string]string // session token -> email
}

func newProfileStore() *profileStore {
	return &profileStore{
		byEmail:  make(map[string]*profile.Profile),
		sessions: make(map[string]string),
	}
}

// companyOwner returns the HR record owning the given company ID.
// Caller holds store.mu.
func (store *profileStore) companyOwner(companyID string) *profile.Profile {
	for _, candidate := range store.byEmail {
		if candidate.Role == profile.RoleHR && candidate.CompanyID == companyID {
			return candidate
		}
	}
	return nil
}

// mediaStore holds uploaded images in memory.
type mediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMediaStore() *mediaStore {
	return &mediaStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// # API Server

// APIServer is the local stand-in AssetPulse backend: user profiles, the
// token exchange, and media hosting.
type APIServer struct {
	store   *profileStore
	media   *mediaStore
	tokens  *sec.TokenService
	baseURL string
	logger  *slog.Logger
}

/*
NewAPIServer constructs the stand-in backend.

Parameters:
  - tokens: *sec.TokenService (shared with the identity server; the token
    exchange verifies ID tokens against it)
  - baseURL: string (public base URL, used to build media URLs)
  - logger: *slog.Logger

Returns:
  - *APIServer: The server; mount its Routes on an http.Server
*/
func NewAPIServer(tokens *sec.TokenService, baseURL string, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIServer{
		store:   newProfileStore(),
		media:   newMediaStore(),
		tokens:  tokens,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Routes mounts the backend endpoints onto a chi router.
func (server *APIServer) Routes(router chi.Router) {
	router.Get("/users/{email}", server.handleGetUser)
	router.Post("/users", server.handleCreateUser)
	router.Patch("/users/{email}", server.handlePatchUser)
	router.Post("/jwt", server.handleTokenExchange)
	router.Post("/logout", server.handleLogout)
	router.Post("/media/upload", server.handleMediaUpload)
	router.Get("/media/{id}", server.handleMediaGet)
}

// # User Handlers

func (server *APIServer) handleGetUser(writer http.ResponseWriter, request *http.Request) {
	email := canon.Email(requestutil.Param(request, "email"))

	server.store.mu.Lock()
	found, ok := server.store.byEmail[email]
	var snapshot profile.Profile
	if ok {
		snapshot = *found
	}
	server.store.mu.Unlock()

	if !ok {
		respond.Error(writer, request, apperr.NotFound("user"))
		return
	}
	respond.OK(writer, snapshot)
}

func (server *APIServer) handleCreateUser(writer http.ResponseWriter, request *http.Request) {
	body := &profile.Profile{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("email", body.Email).
		Email("email", body.Email).
		Required("name", body.Name).
		OneOf("role", string(body.Role), string(profile.RoleHR), string(profile.RoleEmployee))
	if body.Role == profile.RoleHR {
		v.Required("company_name", body.CompanyName).
			Min("package_limit", body.PackageLimit, 1)
	}
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	email := canon.Email(body.Email)
	now := time.Now().UTC()

	server.store.mu.Lock()
	defer server.store.mu.Unlock()

	if _, exists := server.store.byEmail[email]; exists {
		respond.Error(writer, request, apperr.Conflict("A profile already exists for this email"))
		return
	}

	created := *body
	created.Email = email
	created.Name = canon.Name(body.Name)
	created.CreatedAt = now
	created.UpdatedAt = now

	if created.Role == profile.RoleHR {
		created.CompanyID = uuid.New()
		created.CurrentEmployees = 0
	}

	// An employee may register pre-affiliated when created from an HR-side
	// invite; the company's headcount is charged immediately in that case.
	if created.Role == profile.RoleEmployee && created.CompanyID != "" {
		if err := server.joinCompanyLocked(&created, created.CompanyID); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	server.store.byEmail[email] = &created
	server.logger.Info("devstack_profile_created",
		slog.String("email", email),
		slog.String("role", string(created.Role)))
	respond.Created(writer, created)
}

func (server *APIServer) handlePatchUser(writer http.ResponseWriter, request *http.Request) {
	email := canon.Email(requestutil.Param(request, "email"))

	body := &profile.Patch{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.store.mu.Lock()
	defer server.store.mu.Unlock()

	found, ok := server.store.byEmail[email]
	if !ok {
		respond.Error(writer, request, apperr.NotFound("user"))
		return
	}

	// Affiliation change needs a capacity check before any field is applied.
	if body.CompanyID != nil && *body.CompanyID != found.CompanyID {
		if *body.CompanyID != "" {
			if err := server.joinCompanyLocked(found, *body.CompanyID); err != nil {
				respond.Error(writer, request, err)
				return
			}
		} else if owner := server.store.companyOwner(found.CompanyID); owner != nil && owner.CurrentEmployees > 0 {
			owner.CurrentEmployees--
		}
		found.CompanyID = *body.CompanyID
	}

	found.Name = canon.Name(pointer.Fallback(body.Name, found.Name))
	found.ProfileImage = pointer.Fallback(body.ProfileImage, found.ProfileImage)
	found.DateOfBirth = pointer.Fallback(body.DateOfBirth, found.DateOfBirth)
	found.CompanyName = pointer.Fallback(body.CompanyName, found.CompanyName)
	found.CompanyLogo = pointer.Fallback(body.CompanyLogo, found.CompanyLogo)
	found.PackageLimit = pointer.Fallback(body.PackageLimit, found.PackageLimit)
	found.Subscription = pointer.Fallback(body.Subscription, found.Subscription)
	found.UpdatedAt = time.Now().UTC()

	respond.OK(writer, *found)
}

// joinCompanyLocked charges one seat against the company's package limit.
// Caller holds store.mu.
func (server *APIServer) joinCompanyLocked(member *profile.Profile, companyID string) error {
	owner := server.store.companyOwner(companyID)
	if owner == nil {
		return apperr.NotFound("company")
	}
	if owner.CurrentEmployees >= owner.PackageLimit {
		return apperr.CompanyFull("")
	}
	owner.CurrentEmployees++
	member.CompanyName = owner.CompanyName
	return nil
}

// # Session Handlers

type exchangeRequest struct {
	Token string `json:"token"`
}

type exchangeResponse struct {
	Role profile.Role `json:"role"`
}

// handleTokenExchange verifies a provider ID token, establishes the backend
// session cookie, and returns the role claim held for the principal. An
// authenticated principal with no profile yet gets an empty role, not an
// error; role resolution is the caller's decision.
func (server *APIServer) handleTokenExchange(writer http.ResponseWriter, request *http.Request) {
	body := &exchangeRequest{}
	if err := requestutil.DecodeJSON(request, body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	claims, err := server.tokens.Verify(body.Token)
	if err != nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
		return
	}

	sessionToken, err := sec.GenerateSecureToken(32)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	email := canon.Email(claims.Email)

	server.store.mu.Lock()
	server.store.sessions[sessionToken] = email
	var role profile.Role
	if found, ok := server.store.byEmail[email]; ok {
		role = found.Role
	}
	server.store.mu.Unlock()

	http.SetCookie(writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respond.OK(writer, exchangeResponse{Role: role})
}

// handleLogout clears the session cookie. Always succeeds; logging out an
// already-cleared session is not an error.
func (server *APIServer) handleLogout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(sessionCookieName); err == nil {
		server.store.mu.Lock()
		delete(server.store.sessions, cookie.Value)
		server.store.mu.Unlock()
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respond.OK(writer, struct{}{})
}

// # Media Handlers

func (server *APIServer) handleMediaUpload(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseMultipartForm(maxUploadBytes); err != nil {
		respond.Error(writer, request, apperr.ValidationError("Invalid multipart payload"))
		return
	}

	file, header, err := request.FormFile("image")
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError("Missing image field"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	id := uuid.New()
	contentType := header.Header.Get("Content-Type")

	server.media.mu.Lock()
	server.media.objects[id] = content
	server.media.types[id] = contentType
	server.media.mu.Unlock()

	respond.OK(writer, struct {
		URL string `json:"url"`
	}{URL: server.baseURL + "/media/" + id})
}

func (server *APIServer) handleMediaGet(writer http.ResponseWriter, request *http.Request) {
	id := requestutil.Param(request, "id")

	server.media.mu.Lock()
	content, ok := server.media.objects[id]
	contentType := server.media.types[id]
	server.media.mu.Unlock()

	if !ok {
		respond.Error(writer, request, apperr.NotFound("media"))
		return
	}
	if contentType != "" {
		writer.Header().Set("Content-Type", contentType)
	}
	_, _ = writer.Write(content)
}
