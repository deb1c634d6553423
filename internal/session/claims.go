// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package session

import (
	"github.com/assetpulse/assetpulse-go/internal/platform/sec"
	"github.com/assetpulse/assetpulse-go/internal/profile"
)

// peekRoleClaim reads the "role" claim out of an ID token without verifying
// the signature. The token was already accepted by the identity provider;
// this is only a local hint consulted when the backend has no role on file.
func peekRoleClaim(idToken string) profile.Role {
	claims, err := sec.PeekClaims(idToken)
	if err != nil {
		return ""
	}
	raw, ok := claims["role"].(string)
	if !ok {
		return ""
	}
	return profile.Role(raw)
}
