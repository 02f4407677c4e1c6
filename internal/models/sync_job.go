// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package models

import "time"

// Sync job statuses.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Sync modes.
const (
	SyncModeAuto        = "auto"
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// SyncJob is the provenance record of one sync run for one entity type of one
// organization. Created at run start, finalized at run end or on fatal error,
// immutable afterwards. Purely observational: sync decisions are derived from
// entity data, never from job history.
type SyncJob struct {
	ID             string     `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	EntityType     EntityType `json:"entity_type"`

	// Mode is "full" or "incremental" as decided at run entry.
	Mode   string `json:"mode"`
	Status string `json:"status"`

	RecordsProcessed int `json:"records_processed"`
	RecordsSucceeded int `json:"records_succeeded"`
	RecordsSkipped   int `json:"records_skipped"`
	RecordsFailed    int `json:"records_failed"`

	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
