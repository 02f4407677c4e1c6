// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/pledgeline/pledgeline/internal/config"
)

// SyncExportName is the registry name of the built-in export plugin.
const SyncExportName = "syncexport"

//nolint:gochecknoinits // registration at import time is the registry contract
func init() {
	Register(SyncExportName, func() Plugin { return &syncExport{} })
}

// syncExport appends one JSON line per completed organization run to a local
// file, for downstream CRM tooling to tail. Append-only and line-oriented so
// a crash mid-write corrupts at most one line.
type syncExport struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func (p *syncExport) Name() string { return SyncExportName }

func (p *syncExport) Initialize(cfg *config.PluginsConfig) error {
	if cfg.ExportPath == "" {
		return fmt.Errorf("syncexport requires plugins.export_path")
	}
	if dir := filepath.Dir(cfg.ExportPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ExportPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	p.path = cfg.ExportPath
	p.file = f
	return nil
}

func (p *syncExport) Process(_ context.Context, summary *RunSummary) error {
	line, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return fmt.Errorf("syncexport is not initialized")
	}
	if _, err := p.file.Write(line); err != nil {
		return fmt.Errorf("failed to append run summary: %w", err)
	}
	return nil
}

func (p *syncExport) HealthCheck(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return fmt.Errorf("export file is not open")
	}
	// Stat catches the file being deleted or the volume going away.
	if _, err := os.Stat(p.path); err != nil {
		return fmt.Errorf("export file unavailable: %w", err)
	}
	return nil
}

func (p *syncExport) Shutdown(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
