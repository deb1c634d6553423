// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

// Package canon produces canonical forms of user-entered identity strings.
//
// # Usage
//
// The email address is the join key between the identity provider session and
// the backend profile. A user may type it with different casing or Unicode
// composition on different devices; every lookup and comparison must go
// through [Email] so both sides agree on one form.
package canon

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Email converts a user-entered email address into its canonical join-key form.
//
// # Transformation Pipeline
//
// 1. Trims surrounding whitespace.
// 2. Normalizes to NFKC (folds compatibility variants: ﬁ → fi, full-width → ASCII).
// 3. Lowercases. The local part of an address is case-sensitive per RFC 5321,
// but every mainstream provider treats it case-insensitively and the backend
// keys profiles on the lowercased form.
func Email(s string) string {
	trimmed := strings.TrimSpace(s)
	normalized := norm.NFKC.String(trimmed)
	return strings.ToLower(normalized)
}

// Name normalizes a display name: NFC composition and collapsed inner whitespace.
// Unlike [Email], casing is preserved.
func Name(s string) string {
	normalized := norm.NFC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(normalized), " ")
}
