// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package plugin provides the compile-time plugin registry. Plugins observe
// completed organization sync runs; they never participate in the sync
// decision itself.
//
// Plugins register themselves from an init function, database/sql driver
// style, and are activated by name through PLUGINS_ENABLED. There is no
// runtime code loading: a plugin that is not compiled in cannot be enabled,
// and enabling an unknown name is a startup error rather than a silent no-op.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/logging"
)

// EntityOutcome summarizes one entity's sync within a run.
type EntityOutcome struct {
	EntityType string `json:"entity_type"`
	Mode       string `json:"mode"`
	Processed  int    `json:"processed"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// RunSummary is the record handed to plugins after one organization sync run.
type RunSummary struct {
	OrganizationID         int64           `json:"organization_id"`
	OrganizationExternalID string          `json:"organization_external_id"`
	Status                 string          `json:"status"`
	StartedAt              time.Time       `json:"started_at"`
	CompletedAt            time.Time       `json:"completed_at"`
	Entities               []EntityOutcome `json:"entities"`
}

// Plugin is one post-sync processor.
type Plugin interface {
	// Name is the stable identifier used in PLUGINS_ENABLED.
	Name() string

	// Initialize prepares the plugin with service configuration. Called once
	// at startup, before any Process call.
	Initialize(cfg *config.PluginsConfig) error

	// Process handles one completed run. Errors are logged and isolated; a
	// failing plugin never fails the sync that fed it.
	Process(ctx context.Context, summary *RunSummary) error

	// HealthCheck reports whether the plugin can currently process runs.
	HealthCheck(ctx context.Context) error

	// Shutdown flushes and releases resources.
	Shutdown(ctx context.Context) error
}

// Factory constructs a plugin instance.
type Factory func() Plugin

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes a plugin available by name. Intended to be called from the
// plugin's init function; duplicate names panic at startup, matching the
// database/sql driver convention.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("plugin: Register called twice for %q", name))
	}
	factories[name] = factory
}

// Available lists the compiled-in plugin names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the activated plugin instances for this process.
type Registry struct {
	plugins []Plugin
}

// NewRegistry instantiates and initializes the plugins named in cfg.Enabled.
// Unknown names and failed initializations are hard errors: a misconfigured
// plugin list should stop startup, not silently drop a processor.
func NewRegistry(cfg *config.PluginsConfig) (*Registry, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg := &Registry{}
	for _, name := range cfg.Enabled {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown plugin %q (compiled in: %v)", name, Available())
		}
		p := factory()
		if err := p.Initialize(cfg); err != nil {
			return nil, fmt.Errorf("plugin %q failed to initialize: %w", name, err)
		}
		reg.plugins = append(reg.plugins, p)
		logging.Info().Str("plugin", name).Msg("Plugin activated")
	}
	return reg, nil
}

// Process hands the summary to every active plugin. Plugin errors are logged,
// never propagated.
func (r *Registry) Process(ctx context.Context, summary *RunSummary) {
	for _, p := range r.plugins {
		if err := p.Process(ctx, summary); err != nil {
			logging.Error().Err(err).Str("plugin", p.Name()).Msg("Plugin failed to process run summary")
		}
	}
}

// HealthCheck reports per-plugin health, keyed by plugin name. Nil values
// mean healthy.
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error, len(r.plugins))
	for _, p := range r.plugins {
		results[p.Name()] = p.HealthCheck(ctx)
	}
	return results
}

// Shutdown stops every active plugin, logging failures.
func (r *Registry) Shutdown(ctx context.Context) {
	for _, p := range r.plugins {
		if err := p.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Str("plugin", p.Name()).Msg("Plugin shutdown failed")
		}
	}
}
