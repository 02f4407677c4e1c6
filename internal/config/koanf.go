// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pledgeline/config.yaml",
	"/etc/pledgeline/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			BaseURL:            "",
			TokenURL:           "",
			ClientID:           "",
			ClientSecret:       "",
			PageSize:           200, // Platform maximum
			Timeout:            30 * time.Second,
			MaxRetries:         5,
			RetryBaseDelay:     1 * time.Second,
			TokenRefreshMargin: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/pledgeline.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Sync: SyncConfig{
			Interval:          15 * time.Minute,
			PageDelay:         500 * time.Millisecond,
			ProgressPages:     10,
			FullSyncRecordCap: 500000,
			MaxSkipCount:      10,
			ErrorLogLimit:     5,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8473,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Security: SecurityConfig{
			CredentialKey: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Plugins: PluginsConfig{
			Enabled:    []string{},
			ExportPath: "/data/sync-reports.jsonl",
		},
	}
}

// Load loads configuration with layered sources: struct defaults, then an
// optional YAML file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// sourced from environment variables.
var sliceConfigPaths = []string{
	"plugins.enabled",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars arrive as strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - PLATFORM_CLIENT_ID -> platform.client_id
//   - DUCKDB_PATH -> database.path
//   - SYNC_INTERVAL -> sync.interval
//   - CREDENTIAL_KEY -> security.credential_key
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"platform_base_url":             "platform.base_url",
		"platform_token_url":            "platform.token_url",
		"platform_client_id":            "platform.client_id",
		"platform_client_secret":        "platform.client_secret",
		"platform_page_size":            "platform.page_size",
		"platform_timeout":              "platform.timeout",
		"platform_max_retries":          "platform.max_retries",
		"platform_retry_base_delay":     "platform.retry_base_delay",
		"platform_token_refresh_margin": "platform.token_refresh_margin",

		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		"sync_interval":             "sync.interval",
		"sync_page_delay":           "sync.page_delay",
		"sync_progress_pages":       "sync.progress_pages",
		"sync_full_record_cap":      "sync.full_sync_record_cap",
		"sync_max_skip_count":       "sync.max_skip_count",
		"sync_error_log_limit":      "sync.error_log_limit",

		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		"credential_key": "security.credential_key",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"plugins_enabled":     "plugins.enabled",
		"plugins_export_path": "plugins.export_path",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped rather than guessed at; a typo'd env var
	// silently overriding nested config is worse than it being ignored.
	return ""
}
