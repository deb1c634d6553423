// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package profile_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetpulse/assetpulse-go/internal/platform/apperr"
	"github.com/assetpulse/assetpulse-go/internal/profile"
)

/*
TestClient_Get_CanonicalizesEmail checks that lookups use the canonical
join-key form of the address, not what the caller typed.
*/
func TestClient_Get_CanonicalizesEmail(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestedPath = request.URL.Path
		_ = json.NewEncoder(writer).Encode(profile.Profile{
			Email: "casey@example.com",
			Name:  "Casey Doe",
			Role:  profile.RoleHR,
		})
	}))
	defer server.Close()

	client := profile.NewClient(server.URL, nil)
	fetched, err := client.Get(context.Background(), "  Casey@Example.COM ")
	require.NoError(t, err)

	assert.Equal(t, "/users/casey@example.com", requestedPath)
	assert.Equal(t, profile.RoleHR, fetched.Role)
}

/*
TestClient_Get_NotFound checks that a 404 maps to the expected-branch
PROFILE_NOT_FOUND error, not a transient failure.
*/
func TestClient_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := profile.NewClient(server.URL, nil)
	_, err := client.Get(context.Background(), "casey@example.com")

	assert.Equal(t, apperr.CodeProfileNotFound, apperr.CodeOf(err))
}

/*
TestClient_Get_ServerErrorIsTransient checks that a 5xx maps to
PROFILE_FETCH_FAILED.
*/
func TestClient_Get_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		_, _ = writer.Write([]byte(`{"error":"upstream unavailable","code":"INTERNAL_ERROR"}`))
	}))
	defer server.Close()

	client := profile.NewClient(server.URL, nil)
	_, err := client.Get(context.Background(), "casey@example.com")

	assert.Equal(t, apperr.CodeProfileFetchFailed, apperr.CodeOf(err))
}

/*
TestClient_Get_ConnectionRefusedIsTransient checks that transport failures
map to PROFILE_FETCH_FAILED.
*/
func TestClient_Get_ConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listens anymore

	client := profile.NewClient(server.URL, nil)
	_, err := client.Get(context.Background(), "casey@example.com")

	assert.Equal(t, apperr.CodeProfileFetchFailed, apperr.CodeOf(err))
}

/*
TestClient_Create_CompanyFull checks the package-limit rejection passes
through with its taxonomy code.
*/
func TestClient_Create_CompanyFull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusConflict)
		_, _ = writer.Write([]byte(`{"error":"Company has reached its package limit","code":"COMPANY_FULL"}`))
	}))
	defer server.Close()

	client := profile.NewClient(server.URL, nil)
	_, err := client.Create(context.Background(), &profile.Profile{
		Email: "casey@example.com",
		Name:  "Casey Doe",
		Role:  profile.RoleEmployee,
	})

	assert.Equal(t, apperr.CodeCompanyFull, apperr.CodeOf(err))
}

/*
TestClient_ExchangeToken_CarriesCookie checks the session-cookie contract:
the exchange stores the cookie and later calls send it back.
*/
func TestClient_ExchangeToken_CarriesCookie(t *testing.T) {
	var logoutCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/jwt", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body := struct {
			Token string `json:"token"`
		}{}
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		assert.Equal(t, "id-token-1", body.Token)

		http.SetCookie(writer, &http.Cookie{Name: "assetpulse_session", Value: "session-1", Path: "/"})
		_, _ = writer.Write([]byte(`{"role":"hr"}`))
	})
	mux.HandleFunc("/logout", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if cookie, err := request.Cookie("assetpulse_session"); err == nil {
			logoutCookie = cookie.Value
		}
		_, _ = writer.Write([]byte(`{}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := profile.NewClient(server.URL, nil)

	role, err := client.ExchangeToken(context.Background(), "id-token-1")
	require.NoError(t, err)
	assert.Equal(t, profile.RoleHR, role)

	require.NoError(t, client.Logout(context.Background()))
	assert.Equal(t, "session-1", logoutCookie)
}

/*
TestClient_Update checks the PATCH path and payload shape: only non-nil
fields travel.
*/
func TestClient_Update(t *testing.T) {
	var method, path string
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		method = request.Method
		path = request.URL.Path
		require.NoError(t, json.NewDecoder(request.Body).Decode(&payload))
		_ = json.NewEncoder(writer).Encode(profile.Profile{
			Email: "casey@example.com",
			Name:  "Casey Renamed",
			Role:  profile.RoleHR,
		})
	}))
	defer server.Close()

	name := "Casey Renamed"
	client := profile.NewClient(server.URL, nil)
	updated, err := client.Update(context.Background(), "Casey@Example.com", profile.Patch{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/users/casey@example.com", path)
	assert.Equal(t, "Casey Renamed", payload["name"])
	assert.NotContains(t, payload, "company_name", "nil patch fields must not travel")
	assert.Equal(t, "Casey Renamed", updated.Name)
}
