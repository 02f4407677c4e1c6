// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/credentials"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/logging"
	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
	"github.com/pledgeline/pledgeline/internal/plugin"
)

// clientFactory builds a Client for one organization run. Injectable so tests
// drive the orchestrator with a fake platform.
type clientFactory func(cfg *config.PlatformConfig, orgExternalID string, creds credentials.Credentials) Client

func defaultClientFactory(cfg *config.PlatformConfig, orgExternalID string, creds credentials.Credentials) Client {
	return NewCircuitBreakerClient(NewPlatformClient(cfg, orgExternalID, creds), "platform-api")
}

// Orchestrator runs one organization's full sync pass: credentials resolved
// once, then every entity in dependency order, each under its own sync job.
type Orchestrator struct {
	db        *database.DB
	cfg       *config.Config
	source    credentials.Source
	plugins   *plugin.Registry
	newClient clientFactory
}

// NewOrchestrator builds the orchestrator. plugins may be nil when no plugins
// are enabled.
func NewOrchestrator(db *database.DB, cfg *config.Config, source credentials.Source, plugins *plugin.Registry) *Orchestrator {
	return &Orchestrator{
		db:        db,
		cfg:       cfg,
		source:    source,
		plugins:   plugins,
		newClient: defaultClientFactory,
	}
}

// SyncOrganization syncs every entity type for one organization, in fixed
// order: campaigns, supporters, recurring plans, transactions. The order
// minimizes missing-reference skips; the skip ledger handles the remainder.
//
// A failed entity does not stop the pass: later entities still run and their
// missing references land in the skip ledger for the next pass. Credential
// rejection and cancellation are the exceptions, since every remaining entity
// would fail identically.
//
// mode is one of models.SyncModeAuto, SyncModeFull, SyncModeIncremental.
// Auto resolves against the organization's own marker: an organization that
// has never completed a pass gets a full sync on every entity, even where a
// partial earlier run left local rows behind.
func (o *Orchestrator) SyncOrganization(ctx context.Context, org *models.Organization, mode string) error {
	startedAt := time.Now().UTC()
	log := logging.With().
		Int64("organization_id", org.ID).
		Str("external_id", org.ExternalID).
		Logger()

	creds, err := o.source.Resolve(org)
	if err != nil {
		metrics.OrganizationSyncs.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Credential resolution failed, organization sync aborted")
		return fmt.Errorf("failed to resolve credentials for organization %d: %w", org.ID, err)
	}

	client := o.newClient(&o.cfg.Platform, org.ExternalID, creds)
	log.Info().Msg("Starting organization sync")

	summary := &plugin.RunSummary{
		OrganizationID:         org.ID,
		OrganizationExternalID: org.ExternalID,
		StartedAt:              startedAt,
	}

	entityMode := mode
	if entityMode == "" || entityMode == models.SyncModeAuto {
		entityMode = models.SyncModeAuto
		if org.LastSyncAt == nil {
			entityMode = models.SyncModeFull
		}
	}

	var runErr error
	for _, repo := range o.db.Repositories() {
		result, err := o.syncEntity(ctx, client, repo, org, entityMode)
		summary.Entities = append(summary.Entities, plugin.EntityOutcome{
			EntityType: string(repo.EntityType()),
			Mode:       result.Mode,
			Processed:  result.Processed,
			Succeeded:  result.Succeeded,
			Skipped:    result.Skipped,
			Failed:     result.Failed,
		})
		if err != nil {
			if runErr == nil {
				runErr = err
			}
			if errors.Is(err, ErrAuthFailed) || ctx.Err() != nil {
				break
			}
		}
	}

	summary.CompletedAt = time.Now().UTC()
	if runErr != nil {
		summary.Status = models.JobStatusFailed
		metrics.OrganizationSyncs.WithLabelValues("failed").Inc()
		log.Error().Err(runErr).Msg("Organization sync failed")
	} else {
		summary.Status = models.JobStatusCompleted
		metrics.OrganizationSyncs.WithLabelValues("completed").Inc()
		// The org-level marker moves only on a fully successful pass.
		if err := o.db.MarkOrganizationSynced(ctx, org.ID, summary.CompletedAt); err != nil {
			log.Error().Err(err).Msg("Failed to update organization sync marker")
		}
		log.Info().
			Dur("duration", summary.CompletedAt.Sub(startedAt)).
			Msg("Organization sync completed")
	}

	if o.plugins != nil {
		o.plugins.Process(ctx, summary)
	}
	return runErr
}

// syncEntity runs one entity sync under a provenance job record. The job is
// always finalized, including on fatal errors, so partial progress is
// visible in history.
func (o *Orchestrator) syncEntity(ctx context.Context, client Client, repo database.EntityRepository, org *models.Organization, mode string) (*Result, error) {
	entity := repo.EntityType()

	job := &models.SyncJob{
		OrganizationID: org.ID,
		EntityType:     entity,
		Mode:           mode,
	}
	if err := o.db.CreateSyncJob(ctx, job); err != nil {
		return &Result{Mode: mode}, err
	}

	engine := NewEngine(client, repo, o.db, &o.cfg.Sync)

	start := time.Now()
	result, runErr := engine.Run(ctx, org, mode)
	metrics.RecordSyncRun(string(entity), result.Mode, time.Since(start), runErr)

	job.Mode = result.Mode
	job.RecordsProcessed = result.Processed
	job.RecordsSucceeded = result.Succeeded
	job.RecordsSkipped = result.Skipped
	job.RecordsFailed = result.Failed
	if runErr != nil {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = runErr.Error()
	} else {
		job.Status = models.JobStatusCompleted
	}

	if err := o.db.FinalizeSyncJob(ctx, job); err != nil {
		logging.Error().Err(err).Str("job_id", job.ID).Msg("Failed to finalize sync job")
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil && errors.Is(runErr, ErrAuthFailed) {
		runErr = fmt.Errorf("authentication failed for organization %d: %w", org.ID, runErr)
	}
	return result, runErr
}
