// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, token signing) from
// the domain logic. The dev stack identity provider uses [TokenService] to
// mint ID tokens, and the dev stack backend uses it to verify them during the
// token exchange. The production client never verifies provider signatures
// itself; that is the hosted backend's job.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDClaims represents the payload embedded inside an identity provider ID token.
//
// # Why these claims?
//
// The subject carries the stable provider user ID, and email/name/picture
// mirror what a hosted identity provider exposes about the principal. The
// backend token exchange reconstructs the caller's identity from these claims
// without a round trip to the provider.
type IDClaims struct {
	jwt.RegisteredClaims

	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// TokenService mints and verifies HS256-signed ID tokens.
//
// The dev stack runs identity provider and backend in one trust domain, so a
// shared HMAC secret replaces the RSA key distribution a hosted provider
// would use.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a TokenService signing with the given shared secret.
func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer}
}

/*
Mint creates a signed ID token for the given principal.

Parameters:
  - providerUserID: Stable account identifier, becomes the `sub` claim.
  - email: The principal's email address.
  - name: Optional display name.
  - picture: Optional avatar URL.
  - timeToLive: Duration before the token expires.

Returns:
  - A signed JWT string, or an error if signing fails.
*/
func (service *TokenService) Mint(providerUserID, email, name, picture string, timeToLive time.Duration) (string, error) {
	now := time.Now()
	claims := &IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   providerUserID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(timeToLive)),
		},
		Email:   email,
		Name:    name,
		Picture: picture,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return signed, nil
}

/*
Verify parses and validates a signed ID token.

Returns:
  - *IDClaims: The verified claims.
  - error: Signature, expiry, or issuer failures.
*/
func (service *TokenService) Verify(tokenString string) (*IDClaims, error) {
	claims := &IDClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method %v", t.Header["alg"])
		}
		return service.secret, nil
	}, jwt.WithIssuer(service.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("sec: token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("sec: token is invalid")
	}
	return claims, nil
}

// PeekClaims decodes token claims WITHOUT verifying the signature.
//
// # Trust Model
//
// The client uses this only to read non-authoritative hints (a role claim)
// from its own provider-issued token, exactly as a browser decodes its ID
// token locally. Anything security-relevant must go through [Verify] on the
// backend side.
func PeekClaims(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("sec: failed to decode token claims: %w", err)
	}
	return claims, nil
}
