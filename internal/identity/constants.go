// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package identity

import "time"

// # Session Lifetime Constraints

const (
	// RefreshTokenTTL is how long a persisted session snapshot stays usable.
	// Matches the provider's refresh token validity (30 days).
	RefreshTokenTTL = 30 * 24 * time.Hour

	// renewalMargin is how long before ID token expiry the background renewal
	// fires. Wide enough that a backend call started just before expiry still
	// carries a valid token.
	renewalMargin = 2 * time.Minute

	// minRenewalInterval floors the renewal timer so a provider returning a
	// tiny expiry cannot drive a hot renewal loop.
	minRenewalInterval = 10 * time.Second

	// requestTimeout bounds every provider HTTP call.
	requestTimeout = 15 * time.Second

	// Outbound call budget against the provider API. The provider throttles
	// aggressively on its side; staying under it locally gives cleaner errors.
	providerRateLimit = 10 // requests per second
	providerRateBurst = 20
)
