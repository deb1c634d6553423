// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/pkg/canon"
)

// DefaultTimeout bounds every backend call. A hung profile fetch must fail
// with PROFILE_FETCH_FAILED rather than suspend the session model forever.
const DefaultTimeout = 15 * time.Second

// Client is the REST client for the AssetPulse backend profile API.
//
// # Session Cookie
//
// The token exchange (POST /jwt) sets a session cookie that subsequent calls
// must carry, so the client owns a cookie jar, the Go analog of the
// browser's credentials-included fetch.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a backend API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New only fails on an invalid PublicSuffixList; nil is valid.
		panic("profile: failed to create cookie jar: " + err.Error())
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		logger: logger,
	}
}

// WithHTTPClient overrides the transport, used by tests.
func (client *Client) WithHTTPClient(httpClient *http.Client) *Client {
	client.httpClient = httpClient
	return client
}

// # Profile Operations

/*
Get fetches the profile for an email address.

Description: The email is canonicalized before the lookup so the identity
provider session and the backend agree on one join key.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Profile: The backend record
  - error: PROFILE_NOT_FOUND (404, expected branch) or PROFILE_FETCH_FAILED
*/
func (client *Client) Get(context context.Context, email string) (*Profile, error) {
	key := canon.Email(email)
	target := client.baseURL + "/users/" + url.PathEscape(key)

	request, err := http.NewRequestWithContext(context, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("profile_get_request_failed: %w", err)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, apperr.ProfileFetchFailed(err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return nil, apperr.ProfileNotFound(key)
	}
	if response.StatusCode != http.StatusOK {
		return nil, client.decodeError(response, apperr.CodeProfileFetchFailed)
	}

	fetched := &Profile{}
	if err := json.NewDecoder(response.Body).Decode(fetched); err != nil {
		return nil, apperr.ProfileFetchFailed(err)
	}
	return fetched, nil
}

/*
Create persists a new profile record.

Description: This is the only way the client creates a profile. It is the
final step of every registration flow (HR, employee, federated completion).

Parameters:
  - context: context.Context
  - newProfile: *Profile (role-specific fields filled per Role)

Returns:
  - *Profile: The created record as the backend stored it
  - error: COMPANY_FULL (passed through verbatim), validation, or transport failures
*/
func (client *Client) Create(context context.Context, newProfile *Profile) (*Profile, error) {
	created := &Profile{}
	if err := client.doJSON(context, http.MethodPost, "/users", newProfile, created); err != nil {
		return nil, err
	}
	return created, nil
}

/*
Update applies a partial change to an existing profile.

Parameters:
  - context: context.Context
  - email: string
  - changes: Patch (nil fields untouched)

Returns:
  - *Profile: The updated record
  - error: PROFILE_NOT_FOUND, COMPANY_FULL, or transport failures
*/
func (client *Client) Update(context context.Context, email string, changes Patch) (*Profile, error) {
	path := "/users/" + url.PathEscape(canon.Email(email))
	updated := &Profile{}
	if err := client.doJSON(context, http.MethodPatch, path, changes, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// # Session Exchange

type exchangeRequest struct {
	Token string `json:"token"`
}

type exchangeResponse struct {
	Role Role `json:"role"`
}

/*
ExchangeToken trades the identity provider's ID token for a backend session.

Description: The backend verifies the token, sets a session cookie on this
client's jar, and returns the role claim it holds for the principal. This is
the fallback consulted before declaring a new user.

Parameters:
  - context: context.Context
  - idToken: string

Returns:
  - Role: The backend's role claim; empty when it has none
  - error: PROFILE_FETCH_FAILED on transport or verification failures
*/
func (client *Client) ExchangeToken(context context.Context, idToken string) (Role, error) {
	result := &exchangeResponse{}
	if err := client.doJSON(context, http.MethodPost, "/jwt", exchangeRequest{Token: idToken}, result); err != nil {
		return "", err
	}
	return result.Role, nil
}

/*
Logout clears the backend session cookie.

Description: Called and awaited as part of the application logout, before the
identity provider's own sign-out.

Parameters:
  - context: context.Context

Returns:
  - error: Transport failures only; an already-cleared session is a success
*/
func (client *Client) Logout(context context.Context) error {
	return client.doJSON(context, http.MethodPost, "/logout", struct{}{}, nil)
}

// # HTTP Plumbing

// doJSON sends a JSON request and decodes a JSON response into out (when non-nil).
func (client *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("profile_encode_failed: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("profile_request_failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return apperr.ProfileFetchFailed(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return client.decodeError(response, apperr.CodeProfileFetchFailed)
	}

	if out == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return apperr.ProfileFetchFailed(err)
	}
	return nil
}

// decodeError maps a backend error envelope onto the client taxonomy.
// Unknown codes collapse to the fallback so callers never see raw statuses.
func (client *Client) decodeError(response *http.Response, fallbackCode string) error {
	envelope := struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}{}
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return apperr.ProfileFetchFailed(fmt.Errorf("backend returned status %d", response.StatusCode))
	}

	switch envelope.Code {
	case apperr.CodeCompanyFull:
		return apperr.CompanyFull(envelope.Error)
	case "NOT_FOUND":
		return apperr.ProfileNotFound("")
	case "VALIDATION_ERROR":
		return apperr.ValidationError(envelope.Error)
	case "CONFLICT":
		return apperr.Conflict(envelope.Error)
	default:
		if fallbackCode == apperr.CodeProfileFetchFailed {
			return apperr.ProfileFetchFailed(errors.New(envelope.Error))
		}
		return apperr.Internal(errors.New(envelope.Error))
	}
}
