// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrMissingCredentialKey is returned when CREDENTIAL_KEY is absent.
// Credential decryption is impossible without it, so startup must fail
// rather than deferring the error to the first per-organization sync.
var ErrMissingCredentialKey = errors.New("CREDENTIAL_KEY is required (min 16 characters)")

// validate is the shared validator instance. Struct tags carry the rules.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if len(c.Security.CredentialKey) < 16 {
		return ErrMissingCredentialKey
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q rule", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config validation: %w", err)
	}

	return c.validatePlatform()
}

// validatePlatform checks cross-field platform rules that struct tags cannot
// express: environment-sourced credentials require both halves and the two
// endpoint URLs.
func (c *Config) validatePlatform() error {
	p := c.Platform
	if p.ClientID == "" && p.ClientSecret == "" {
		// Store-sourced credentials only; endpoints may still come from
		// per-organization configuration at sync time.
		return nil
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return fmt.Errorf("PLATFORM_CLIENT_ID and PLATFORM_CLIENT_SECRET must be set together")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required when platform credentials are configured")
	}
	if p.TokenURL == "" {
		return fmt.Errorf("PLATFORM_TOKEN_URL is required when platform credentials are configured")
	}
	return nil
}
