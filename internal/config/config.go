// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package config provides configuration management for Pledgeline.
//
// Configuration is loaded via koanf with layered sources (highest wins):
//   - Environment variables (PLATFORM_CLIENT_ID, SYNC_INTERVAL, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The CREDENTIAL_KEY environment variable is the process-wide key material
// for per-organization credential encryption; its absence is a fatal startup
// error, not a per-call error.
package config

import (
	"time"
)

// Config is the root configuration for the Pledgeline service.
type Config struct {
	Platform PlatformConfig `koanf:"platform"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Plugins  PluginsConfig  `koanf:"plugins"`
}

// PlatformConfig holds settings for the remote fundraising platform API.
//
// ClientID/ClientSecret here are the environment-sourced credential fallback
// used for single-tenant bootstrap; organizations created through the admin
// API carry their own encrypted credentials in the store.
type PlatformConfig struct {
	// BaseURL is the API root, e.g. https://api.fundraiseup.example/2024-01.
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`

	// TokenURL is the OAuth2 token endpoint for the client-credentials grant.
	TokenURL string `koanf:"token_url" validate:"omitempty,url"`

	// ClientID and ClientSecret are the environment-sourced credentials.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// PageSize is the per-request record count. The platform caps pages at
	// 200; fetching at the cap minimizes round trips.
	PageSize int `koanf:"page_size" validate:"min=1,max=200"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries bounds retry attempts for a single page fetch.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=10"`

	// RetryBaseDelay is the base for exponential backoff between retries.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// TokenRefreshMargin refreshes the cached OAuth2 token this long before
	// its reported expiry.
	TokenRefreshMargin time.Duration `koanf:"token_refresh_margin"`
}

// DatabaseConfig holds DuckDB settings for the local replica store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	// Threads of 0 means runtime.NumCPU().
	Threads int `koanf:"threads" validate:"min=0"`
}

// SyncConfig holds settings for the streaming sync engine.
type SyncConfig struct {
	// Interval between periodic organization sync passes.
	Interval time.Duration `koanf:"interval"`

	// PageDelay is the cooperative pause between page fetches, respecting
	// the platform's implicit rate limits.
	PageDelay time.Duration `koanf:"page_delay"`

	// ProgressPages is the page-count cadence for progress logging.
	ProgressPages int `koanf:"progress_pages" validate:"min=1"`

	// FullSyncRecordCap bounds how many records a single full sync will
	// process before stopping. Zero disables the cap.
	FullSyncRecordCap int `koanf:"full_sync_record_cap" validate:"min=0"`

	// MaxSkipCount bounds how many passes a record may be skipped for a
	// missing reference before the skip is demoted to a hard failure.
	MaxSkipCount int `koanf:"max_skip_count" validate:"min=1"`

	// ErrorLogLimit caps per-run verbose logging of per-record failures.
	ErrorLogLimit int `koanf:"error_log_limit" validate:"min=1"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// SecurityConfig holds credential-encryption key material.
type SecurityConfig struct {
	// CredentialKey is the process-wide secret that credential encryption
	// keys are derived from. Required; sourced from the environment at
	// startup. Never logged.
	CredentialKey string `koanf:"credential_key" validate:"required,min=16"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// PluginsConfig selects which compile-time registered plugins run after each
// organization sync.
type PluginsConfig struct {
	Enabled []string `koanf:"enabled"`

	// ExportPath is where the syncexport plugin writes JSON-lines run
	// summaries for downstream CRM tooling.
	ExportPath string `koanf:"export_path"`
}
