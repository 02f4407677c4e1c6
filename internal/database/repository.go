// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
)

// SkipReasonMissingReference marks a record held back because a row it
// references does not exist locally yet.
const SkipReasonMissingReference = "missing_reference"

// UpsertResult reports the outcome of applying one source record.
type UpsertResult struct {
	// ID is the record's source id, for accounting and completion stamping.
	ID int64

	// Written is true when the row was inserted or updated.
	Written bool

	// Skipped is true when the record was held back; Reason says why.
	Skipped bool
	Reason  string
}

// EntityRepository is the per-entity-type contract the sync engine works
// against. One implementation exists per synced entity; each owns the mapping
// from the platform's field names to local columns.
type EntityRepository interface {
	// EntityType identifies the collection this repository replicates.
	EntityType() models.EntityType

	// Upsert maps one raw source record to a row and applies it. A non-nil
	// error is a per-record failure: the caller counts it and moves on.
	Upsert(ctx context.Context, orgID int64, raw json.RawMessage) (UpsertResult, error)

	// LastSyncTime returns MAX(last_sync_at) over this entity's rows for
	// the organization, or nil when no prior sync exists. The cursor is
	// derived from the entity's own data, never from a bookkeeping table,
	// so it self-heals after partial failures.
	LastSyncTime(ctx context.Context, orgID int64) (*time.Time, error)

	// RecordSyncCompletion stamps last_sync_at = now on exactly the given
	// rows. Skipped rows are not stamped, keeping them eligible for pickup
	// on a later pass.
	RecordSyncCompletion(ctx context.Context, orgID int64, ids []int64) error

	// Count returns the number of rows stored for the organization.
	Count(ctx context.Context, orgID int64) (int64, error)
}

// baseRepository carries the sync-state queries shared by every entity
// repository. The concrete repositories embed it and add their own mapping
// and upsert SQL.
type baseRepository struct {
	db     *DB
	table  string
	entity models.EntityType
}

// EntityType implements EntityRepository.
func (r *baseRepository) EntityType() models.EntityType {
	return r.entity
}

// LastSyncTime implements EntityRepository.
func (r *baseRepository) LastSyncTime(ctx context.Context, orgID int64) (*time.Time, error) {
	start := time.Now()
	query := fmt.Sprintf(`SELECT MAX(last_sync_at) FROM %s WHERE organization_id = ?`, r.table)

	var last sql.NullTime
	err := r.db.conn.QueryRowContext(ctx, query, orgID).Scan(&last)
	metrics.ObserveQuery("last_sync_time", r.table, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to derive last sync time for %s: %w", r.table, err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// RecordSyncCompletion implements EntityRepository. Large id sets are chunked
// to keep statements bounded.
func (r *baseRepository) RecordSyncCompletion(ctx context.Context, orgID int64, ids []int64) error {
	const chunkSize = 500

	now := time.Now().UTC()
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := r.stampChunk(ctx, orgID, ids[start:end], now); err != nil {
			return err
		}
	}
	return nil
}

func (r *baseRepository) stampChunk(ctx context.Context, orgID int64, ids []int64, now time.Time) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`UPDATE %s SET last_sync_at = ? WHERE organization_id = ? AND id IN (%s)`,
		r.table, placeholders)

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, now, orgID)
	for _, id := range ids {
		args = append(args, id)
	}

	start := time.Now()
	_, err := r.db.conn.ExecContext(ctx, query, args...)
	metrics.ObserveQuery("record_sync_completion", r.table, start, err)
	if err != nil {
		return fmt.Errorf("failed to stamp sync completion on %s: %w", r.table, err)
	}
	return nil
}

// Count implements EntityRepository.
func (r *baseRepository) Count(ctx context.Context, orgID int64) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ?`, r.table)

	var count int64
	if err := r.db.conn.QueryRowContext(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table, err)
	}
	return count, nil
}

// referenceExists is the soft foreign-key probe: it checks local existence
// only, it does not consult the platform.
func (r *baseRepository) referenceExists(ctx context.Context, table string, orgID int64, id *int64) (bool, error) {
	if id == nil {
		// Nullable references are satisfied by absence.
		return true, nil
	}
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE organization_id = ? AND id = ?)`, table)

	var exists bool
	if err := r.db.conn.QueryRowContext(ctx, query, orgID, *id).Scan(&exists); err != nil {
		return false, fmt.Errorf("reference check against %s failed: %w", table, err)
	}
	return exists, nil
}

// decimalArg renders a decimal for binding into a CAST(? AS DECIMAL(18,2))
// slot. Fixed-point all the way down: floats never touch amount columns.
func decimalArg(d decimal.Decimal) string {
	return d.String()
}

// scanDecimal converts a CAST(... AS VARCHAR) column back to a decimal.
// NULL scans to zero.
func scanDecimal(s sql.NullString) (decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s.String)
}

// nullableTime converts sql.NullTime to *time.Time.
func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}

// nullableInt64 converts sql.NullInt64 to *int64.
func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	vv := v.Int64
	return &vv
}

// timeArg converts *time.Time to a driver argument, normalizing to UTC so
// stored timestamps compare consistently with filter windows.
func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
