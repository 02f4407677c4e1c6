// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
)

// PendingSkip is one record held back by a missing reference, carrying its
// raw payload so a later pass can re-apply it without re-fetching from the
// platform. This matters under incremental filtering: the source window moves
// forward, so a record skipped today may never be served again.
type PendingSkip struct {
	OrganizationID int64
	EntityType     models.EntityType
	RecordID       int64
	Reason         string
	Payload        json.RawMessage
	SkipCount      int
	FirstSkippedAt time.Time
	LastSkippedAt  time.Time
}

// RecordSkip inserts or refreshes a ledger entry and returns the updated skip
// count. The payload is replaced on each skip so the retried record is always
// the newest version observed.
func (db *DB) RecordSkip(ctx context.Context, orgID int64, entity models.EntityType, recordID int64, reason string, payload json.RawMessage) (int, error) {
	now := time.Now().UTC()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_skips (organization_id, entity_type, record_id, reason, payload,
			skip_count, first_skipped_at, last_skipped_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (organization_id, entity_type, record_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			payload = EXCLUDED.payload,
			skip_count = skip_count + 1,
			last_skipped_at = EXCLUDED.last_skipped_at`,
		orgID, string(entity), recordID, reason, string(payload), now, now)
	metrics.ObserveQuery("upsert", "sync_skips", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to record skip for %s/%d: %w", entity, recordID, err)
	}

	var count int
	err = db.conn.QueryRowContext(ctx, `
		SELECT skip_count FROM sync_skips
		WHERE organization_id = ? AND entity_type = ? AND record_id = ?`,
		orgID, string(entity), recordID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to read skip count for %s/%d: %w", entity, recordID, err)
	}
	return count, nil
}

// PendingSkips lists the held-back records of one entity type, oldest first.
func (db *DB) PendingSkips(ctx context.Context, orgID int64, entity models.EntityType) ([]PendingSkip, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT organization_id, entity_type, record_id, reason, payload,
			skip_count, first_skipped_at, last_skipped_at
		FROM sync_skips
		WHERE organization_id = ? AND entity_type = ?
		ORDER BY first_skipped_at, record_id`,
		orgID, string(entity))
	metrics.ObserveQuery("list", "sync_skips", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending skips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var skips []PendingSkip
	for rows.Next() {
		var (
			s       PendingSkip
			entity  string
			payload string
		)
		if err := rows.Scan(&s.OrganizationID, &entity, &s.RecordID, &s.Reason, &payload,
			&s.SkipCount, &s.FirstSkippedAt, &s.LastSkippedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending skip: %w", err)
		}
		s.EntityType = models.EntityType(entity)
		s.Payload = json.RawMessage(payload)
		skips = append(skips, s)
	}
	return skips, rows.Err()
}

// ClearSkip removes a ledger entry, either because the record finally applied
// or because it exhausted its retry budget.
func (db *DB) ClearSkip(ctx context.Context, orgID int64, entity models.EntityType, recordID int64) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM sync_skips
		WHERE organization_id = ? AND entity_type = ? AND record_id = ?`,
		orgID, string(entity), recordID)
	metrics.ObserveQuery("delete", "sync_skips", start, err)
	if err != nil {
		return fmt.Errorf("failed to clear skip for %s/%d: %w", entity, recordID, err)
	}
	return nil
}

// CountPendingSkips reports the ledger depth for one organization, for the
// health surface.
func (db *DB) CountPendingSkips(ctx context.Context, orgID int64) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_skips WHERE organization_id = ?`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending skips: %w", err)
	}
	return count, nil
}
