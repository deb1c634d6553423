// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

package canon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assetpulse/assetpulse-go/pkg/canon"
)

/*
TestEmail checks the canonical join-key form: trimmed, NFKC-folded,
lowercased.
*/
func TestEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already_canonical", "casey@example.com", "casey@example.com"},
		{"uppercase", "Casey@Example.COM", "casey@example.com"},
		{"surrounding_whitespace", "  casey@example.com \n", "casey@example.com"},
		{"fullwidth_digits", "casey１@example.com", "casey1@example.com"},
		{"ligature", "ﬁona@example.com", "fiona@example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canon.Email(tt.input))
		})
	}
}

/*
TestEmail_AgreesAcrossEntryForms checks the property the join key exists
for: two entry forms of the same address canonicalize identically.
*/
func TestEmail_AgreesAcrossEntryForms(t *testing.T) {
	// "é" precomposed vs combining-accent form.
	composed := "rené@example.com"
	decomposed := "rené@example.com"
	assert.Equal(t, canon.Email(composed), canon.Email(decomposed))
}

/*
TestName checks display-name normalization: casing kept, whitespace
collapsed.
*/
func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Casey Doe", "Casey Doe"},
		{"inner_whitespace", "Casey   Doe", "Casey Doe"},
		{"tabs_and_newlines", "Casey\t\nDoe", "Casey Doe"},
		{"case_preserved", "CASEY doe", "CASEY doe"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canon.Name(tt.input))
		})
	}
}
