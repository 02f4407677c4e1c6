// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
)

const syncJobColumns = `id, organization_id, entity_type, mode, status,
	records_processed, records_succeeded, records_skipped, records_failed,
	error_message, started_at, completed_at`

// CreateSyncJob records the start of one entity sync run. The id is assigned
// here; the caller finalizes the same job once the run ends.
func (db *DB) CreateSyncJob(ctx context.Context, job *models.SyncJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	job.Status = models.JobStatusRunning

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_jobs (id, organization_id, entity_type, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.OrganizationID, string(job.EntityType), job.Mode, job.Status, job.StartedAt.UTC())
	metrics.ObserveQuery("insert", "sync_jobs", start, err)
	if err != nil {
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

// FinalizeSyncJob writes the job's terminal state and counters. Jobs are
// immutable after this; a second finalize is a programming error surfaced as
// a no-row update.
func (db *DB) FinalizeSyncJob(ctx context.Context, job *models.SyncJob) error {
	now := time.Now().UTC()
	job.CompletedAt = &now

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE sync_jobs SET
			status = ?,
			records_processed = ?,
			records_succeeded = ?,
			records_skipped = ?,
			records_failed = ?,
			error_message = ?,
			completed_at = ?
		WHERE id = ? AND status = ?`,
		job.Status, job.RecordsProcessed, job.RecordsSucceeded, job.RecordsSkipped,
		job.RecordsFailed, nullableString(job.ErrorMessage), now,
		job.ID, models.JobStatusRunning)
	metrics.ObserveQuery("finalize", "sync_jobs", start, err)
	if err != nil {
		return fmt.Errorf("failed to finalize sync job %s: %w", job.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync job %s is not running, refusing to finalize", job.ID)
	}
	return nil
}

// ListSyncJobs returns an organization's job history, newest first.
func (db *DB) ListSyncJobs(ctx context.Context, orgID int64, limit int) ([]*models.SyncJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+syncJobColumns+` FROM sync_jobs
		WHERE organization_id = ? ORDER BY started_at DESC LIMIT ?`, orgID, limit)
	metrics.ObserveQuery("list", "sync_jobs", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LatestSyncJob returns the most recent job for one entity type, or nil when
// the entity has never been synced.
func (db *DB) LatestSyncJob(ctx context.Context, orgID int64, entity models.EntityType) (*models.SyncJob, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+syncJobColumns+` FROM sync_jobs
		WHERE organization_id = ? AND entity_type = ?
		ORDER BY started_at DESC LIMIT 1`, orgID, string(entity))

	job, err := scanSyncJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func scanSyncJob(row rowScanner) (*models.SyncJob, error) {
	var (
		job         models.SyncJob
		entityType  string
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&job.ID, &job.OrganizationID, &entityType, &job.Mode, &job.Status,
		&job.RecordsProcessed, &job.RecordsSucceeded, &job.RecordsSkipped, &job.RecordsFailed,
		&errMsg, &job.StartedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync job: %w", err)
	}
	job.EntityType = models.EntityType(entityType)
	job.ErrorMessage = errMsg.String
	job.CompletedAt = nullableTime(completedAt)
	return &job, nil
}
