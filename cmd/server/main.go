// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package main is the entry point for the Pledgeline server.
//
// Pledgeline replicates donor-management data (campaigns, supporters,
// recurring donation plans, transactions) from a rate-limited fundraising
// platform API into a local DuckDB store, per registered organization.
//
// # Startup order
//
//  1. Configuration: koanf-layered environment, config file, defaults.
//     CREDENTIAL_KEY is required; startup fails without it.
//  2. Logging: zerolog, JSON by default.
//  3. Database: DuckDB store with schema initialization.
//  4. Plugins: compile-time registry, activated by PLUGINS_ENABLED.
//  5. Supervision tree: sync layer (scheduler) and API layer (HTTP server).
//
// # Signal handling
//
// SIGINT/SIGTERM cancel the root context: the HTTP server drains with a
// bounded timeout, the scheduler stops between organizations, and the store
// closes last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pledgeline/pledgeline/internal/api"
	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/credentials"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/logging"
	"github.com/pledgeline/pledgeline/internal/plugin"
	"github.com/pledgeline/pledgeline/internal/supervisor"
	"github.com/pledgeline/pledgeline/internal/supervisor/services"
	"github.com/pledgeline/pledgeline/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging may not be configured yet; fail on stderr.
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Dur("sync_interval", cfg.Sync.Interval).
		Bool("env_credentials", cfg.Platform.ClientID != "").
		Msg("Starting Pledgeline")

	encryptor, err := config.NewCredentialEncryptor(cfg.Security.CredentialKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential encryption")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	plugins, err := plugin.NewRegistry(&cfg.Plugins)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize plugins")
	}

	// Store-held credentials win; environment credentials are the
	// single-tenant bootstrap fallback.
	source := credentials.Chain{
		credentials.NewStoreSource(encryptor),
		credentials.NewEnvSource(&cfg.Platform),
	}

	orchestrator := sync.NewOrchestrator(db, cfg, source, plugins)
	manager := sync.NewManager(db, orchestrator, cfg.Sync.Interval)

	router := api.NewRouter(cfg, db, encryptor, manager, plugins)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewSyncService(manager))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", httpServer.Addr).Msg("Pledgeline started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree terminated")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	plugins.Shutdown(shutdownCtx)

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Pledgeline stopped")
}
