// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (provider, API client) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the client is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the AssetPulse client and dev stack.
type Config struct {

	// Runtime mode
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`

	// AssetPulse backend REST API
	APIURL string `env:"ASSETPULSE_API_URL" envDefault:"http://localhost:8080"`

	// Hosted identity provider (identity toolkit API)
	IdentityURL    string `env:"IDENTITY_PROVIDER_URL" envDefault:"http://localhost:8081"`
	IdentityAPIKey string `env:"IDENTITY_API_KEY"`

	// Media host for logo/photo uploads during registration
	MediaUploadURL string `env:"MEDIA_UPLOAD_URL" envDefault:"http://localhost:8080/media/upload"`
	MediaAPIKey    string `env:"MEDIA_API_KEY"`

	// Google OAuth for federated sign-in
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://127.0.0.1:8913/callback"`

	// Key-Value store for session snapshot persistence.
	// Optional: the client falls back to in-memory persistence when unset.
	RedisURL string `env:"REDIS_URL"`

	// Dev stack settings
	DevIdentityPort string `env:"DEV_IDENTITY_PORT" envDefault:"8081"`
	DevAPIPort      string `env:"DEV_API_PORT"      envDefault:"8080"`
	TokenSecret     string `env:"TOKEN_SECRET"      envDefault:"devstack-local-secret"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the client is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the client is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
