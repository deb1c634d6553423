// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/platform/sec"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleConfig configures the Google OAuth consent flow.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is a loopback address (http://127.0.0.1:PORT/callback) the
	// flow listens on for the authorization code.
	RedirectURL string

	// OpenConsent presents the consent URL to the user (opens a browser,
	// prints to the terminal). Required.
	OpenConsent func(consentURL string) error

	// Overridable endpoints for tests.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// GoogleProvider implements [FederatedAuthenticator] via Google OAuth 2.0
// with a loopback redirect: the flow starts a short-lived local listener,
// hands the consent URL to the user, and waits for Google to redirect the
// authorization code back.
type GoogleProvider struct {
	config GoogleConfig
}

// NewGoogleProvider creates a GoogleProvider, filling in default endpoints.
func NewGoogleProvider(config GoogleConfig) *GoogleProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	return &GoogleProvider{config: config}
}

// consentURL builds the Google authorization URL for the given CSRF state.
// Scopes cover email and basic profile, which is all the reconciler needs.
func (provider *GoogleProvider) consentURL(state string) string {
	params := url.Values{
		"client_id":     {provider.config.ClientID},
		"redirect_uri":  {provider.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"access_type":   {"offline"},
	}
	return provider.config.AuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// callbackResult is what the loopback listener hands back to the waiting flow.
type callbackResult struct {
	code string
	err  error
}

/*
Authenticate runs the full consent flow.

Description: Starts the loopback listener, presents the consent URL, waits
for the redirect, exchanges the authorization code, and fetches the user's
Google profile. Abandonment (closed consent screen, denied consent, or a
cancelled context) surfaces as USER_CANCELLED.

Parameters:
  - ctx: context.Context (cancelling it abandons the flow)

Returns:
  - *FederatedIdentity: Google account identity (sub, email, name, picture)
  - error: USER_CANCELLED or transport failures
*/
func (provider *GoogleProvider) Authenticate(ctx context.Context) (*FederatedIdentity, error) {
	if provider.config.OpenConsent == nil {
		return nil, fmt.Errorf("google: OpenConsent is required")
	}

	state, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("google: failed to generate state: %w", err)
	}

	// 1. Start the loopback listener before handing out the consent URL, so
	// the redirect always has somewhere to land.
	redirect, err := url.Parse(provider.config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("google: invalid redirect URL: %w", err)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("google: failed to listen on %s: %w", redirect.Host, err)
	}

	results := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(redirect.Path, state, results)}
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			results <- callbackResult{err: serveErr}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	// 2. Hand the consent URL to the user.
	if err := provider.config.OpenConsent(provider.consentURL(state)); err != nil {
		return nil, fmt.Errorf("google: failed to present consent URL: %w", err)
	}

	// 3. Wait for the redirect or abandonment.
	var code string
	select {
	case result := <-results:
		if result.err != nil {
			return nil, result.err
		}
		code = result.code
	case <-ctx.Done():
		return nil, apperr.UserCancelled()
	}

	// 4. Exchange the authorization code for an access token.
	tokenResponse, err := provider.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google: failed to exchange token: %w", err)
	}

	// 5. Fetch the user's Google profile with the access token.
	userInfo, err := provider.fetchUserInfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("google: failed to fetch user info: %w", err)
	}

	return &FederatedIdentity{
		Provider:       "google",
		ProviderUserID: userInfo.Sub,
		Email:          userInfo.Email,
		Name:           userInfo.Name,
		AvatarURL:      userInfo.Picture,
	}, nil
}

// callbackHandler validates the redirect and forwards the authorization code.
func callbackHandler(path, expectedState string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if path != "" && path != "/" && request.URL.Path != path {
			http.NotFound(writer, request)
			return
		}

		query := request.URL.Query()

		// User denied consent on the Google screen.
		if query.Get("error") != "" {
			writer.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(writer, "<html><body>Sign-in was cancelled. You can close this tab.</body></html>")
			results <- callbackResult{err: apperr.UserCancelled()}
			return
		}

		if query.Get("state") != expectedState {
			http.Error(writer, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("google: state mismatch in callback")}
			return
		}

		code := query.Get("code")
		if code == "" {
			http.Error(writer, "missing code", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("google: missing authorization code in callback")}
			return
		}

		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(writer, "<html><body>Signed in. You can close this tab.</body></html>")
		results <- callbackResult{code: code}
	})
}

// exchangeToken swaps the authorization code for an access token.
func (provider *GoogleProvider) exchangeToken(ctx context.Context, code string) (*googleTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {provider.config.ClientID},
		"client_secret": {provider.config.ClientSecret},
		"redirect_uri":  {provider.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := provider.config.HTTPClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", response.StatusCode, string(body))
	}

	tokenResponse := &googleTokenResponse{}
	if err := json.Unmarshal(body, tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return tokenResponse, nil
}

// fetchUserInfo retrieves the Google account profile for the access token.
func (provider *GoogleProvider) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, err := provider.config.HTTPClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", response.StatusCode, string(body))
	}

	userInfo := &googleUserInfo{}
	if err := json.Unmarshal(body, userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if userInfo.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	return userInfo, nil
}

// compile-time interface check
var _ FederatedAuthenticator = (*GoogleProvider)(nil)
