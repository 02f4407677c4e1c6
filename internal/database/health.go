// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package database

import (
	"context"
	"time"

	"github.com/pledgeline/pledgeline/internal/models"
)

// staleSyncThreshold marks a component degraded when its newest sync is older
// than this, catching silently-stopped schedules.
const staleSyncThreshold = 24 * time.Hour

// Repositories returns the entity repositories in sync order.
func (db *DB) Repositories() []EntityRepository {
	return []EntityRepository{
		db.Campaigns(),
		db.Supporters(),
		db.RecurringPlans(),
		db.Transactions(),
	}
}

// OrganizationHealth builds the per-entity health report for one organization.
// Never errors the whole report for one bad component: a failing query is
// reported as that component's error state.
func (db *DB) OrganizationHealth(ctx context.Context, orgID int64) *models.OrganizationHealth {
	health := &models.OrganizationHealth{
		OrganizationID: orgID,
		Components:     make(map[string]models.ComponentHealth, len(models.SyncOrder)),
	}

	for _, repo := range db.Repositories() {
		health.Components[string(repo.EntityType())] = db.componentHealth(ctx, orgID, repo)
	}

	health.Aggregate()
	return health
}

func (db *DB) componentHealth(ctx context.Context, orgID int64, repo EntityRepository) models.ComponentHealth {
	var c models.ComponentHealth

	count, err := repo.Count(ctx, orgID)
	if err != nil {
		c.Status = models.HealthError
		c.Detail = err.Error()
		return c
	}
	c.RecordCount = count

	last, err := repo.LastSyncTime(ctx, orgID)
	if err != nil {
		c.Status = models.HealthError
		c.Detail = err.Error()
		return c
	}
	c.LastSyncTime = last

	// Failed jobs degrade the component even when data is present.
	job, err := db.LatestSyncJob(ctx, orgID, repo.EntityType())
	if err != nil {
		c.Status = models.HealthError
		c.Detail = err.Error()
		return c
	}

	switch {
	case job != nil && job.Status == models.JobStatusFailed:
		c.Status = models.HealthDegraded
		c.Detail = job.ErrorMessage
	case last == nil:
		c.Status = models.HealthDegraded
		c.Detail = "never synced"
	case time.Since(*last) > staleSyncThreshold:
		c.Status = models.HealthDegraded
		c.Detail = "last sync is stale"
	default:
		c.Status = models.HealthHealthy
	}
	return c
}
