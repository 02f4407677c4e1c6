// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
	"github.com/pledgeline/pledgeline/internal/models/platform"
)

// CampaignRepository replicates campaign records. Campaigns reference nothing
// locally, so every valid record is written.
type CampaignRepository struct {
	baseRepository
}

// Campaigns returns the campaign repository.
func (db *DB) Campaigns() *CampaignRepository {
	return &CampaignRepository{baseRepository{db: db, table: "campaigns", entity: models.EntityCampaigns}}
}

// Upsert implements EntityRepository.
func (r *CampaignRepository) Upsert(ctx context.Context, orgID int64, raw json.RawMessage) (UpsertResult, error) {
	var rec platform.CampaignRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return UpsertResult{}, fmt.Errorf("malformed campaign record: %w", err)
	}
	if rec.ID == 0 {
		return UpsertResult{}, fmt.Errorf("campaign record missing id")
	}

	start := time.Now()
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO campaigns (id, organization_id, name, status, goal_amount, currency_code,
			started_at, ended_at, updated_at)
		VALUES (?, ?, ?, ?, CAST(? AS DECIMAL(18,2)), ?, ?, ?, ?)
		ON CONFLICT (id, organization_id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			goal_amount = EXCLUDED.goal_amount,
			currency_code = EXCLUDED.currency_code,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, orgID, rec.Name, rec.Status, decimalArg(rec.GoalAmount), rec.CurrencyCode,
		timeArg(rec.StartedAt.Ptr()), timeArg(rec.EndedAt.Ptr()), timeArg(rec.UpdatedAt.Ptr()))
	metrics.ObserveQuery("upsert", "campaigns", start, err)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert campaign %d: %w", rec.ID, err)
	}
	return UpsertResult{ID: rec.ID, Written: true}, nil
}

// GetCampaign fetches one campaign row.
func (db *DB) GetCampaign(ctx context.Context, orgID, id int64) (*models.Campaign, error) {
	var (
		c          models.Campaign
		status     sql.NullString
		goal       sql.NullString
		currency   sql.NullString
		startedAt  sql.NullTime
		endedAt    sql.NullTime
		updatedAt  sql.NullTime
		lastSyncAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, organization_id, name, status, CAST(goal_amount AS VARCHAR), currency_code,
			started_at, ended_at, updated_at, last_sync_at
		FROM campaigns WHERE organization_id = ? AND id = ?`, orgID, id).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &status, &goal, &currency,
			&startedAt, &endedAt, &updatedAt, &lastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, err)
	}
	c.Status = status.String
	c.CurrencyCode = currency.String
	if c.GoalAmount, err = scanDecimal(goal); err != nil {
		return nil, fmt.Errorf("failed to decode campaign goal amount: %w", err)
	}
	c.StartedAt = nullableTime(startedAt)
	c.EndedAt = nullableTime(endedAt)
	c.UpdatedAt = nullableTime(updatedAt)
	c.LastSyncAt = nullableTime(lastSyncAt)
	return &c, nil
}
