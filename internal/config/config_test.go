// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.CredentialKey = "test-credential-key-material"
	return cfg
}

func TestDefaultsValidateWithCredentialKey(t *testing.T) {
	cfg := validTestConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 200, cfg.Platform.PageSize)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 10, cfg.Sync.MaxSkipCount)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateRequiresCredentialKey(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingCredentialKey)

	cfg.Security.CredentialKey = "short"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentialKey)
}

func TestValidateRejectsOversizedPage(t *testing.T) {
	cfg := validTestConfig()
	cfg.Platform.PageSize = 500 // above platform cap
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PageSize")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidatePlatformCredentialPairing(t *testing.T) {
	cfg := validTestConfig()
	cfg.Platform.ClientID = "ci_only"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")

	cfg.Platform.ClientSecret = "cs_now_present"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLATFORM_BASE_URL")

	cfg.Platform.BaseURL = "https://api.example.org/v2"
	cfg.Platform.TokenURL = "https://api.example.org/oauth2/auth"
	assert.NoError(t, cfg.Validate())
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"PLATFORM_CLIENT_ID", "platform.client_id"},
		{"PLATFORM_BASE_URL", "platform.base_url"},
		{"DUCKDB_PATH", "database.path"},
		{"SYNC_INTERVAL", "sync.interval"},
		{"SYNC_MAX_SKIP_COUNT", "sync.max_skip_count"},
		{"CREDENTIAL_KEY", "security.credential_key"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"PLUGINS_ENABLED", "plugins.enabled"},
		{"SOME_UNKNOWN_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, envTransformFunc(tt.env))
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CREDENTIAL_KEY", "env-sourced-key-material")
	t.Setenv("PLATFORM_PAGE_SIZE", "50")
	t.Setenv("SYNC_INTERVAL", "5m")
	t.Setenv("PLUGINS_ENABLED", "syncexport")
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-sourced-key-material", cfg.Security.CredentialKey)
	assert.Equal(t, 50, cfg.Platform.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, []string{"syncexport"}, cfg.Plugins.Enabled)
}
