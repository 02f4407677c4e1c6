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

// RecurringPlanRepository replicates recurring-donation schedules. Supporter
// and campaign references are soft: a plan arriving before its supporter is
// skipped with reason missing_reference and retried on a later pass.
type RecurringPlanRepository struct {
	baseRepository
}

// RecurringPlans returns the recurring-plan repository.
func (db *DB) RecurringPlans() *RecurringPlanRepository {
	return &RecurringPlanRepository{baseRepository{db: db, table: "recurring_plans", entity: models.EntityRecurringPlans}}
}

// Upsert implements EntityRepository.
func (r *RecurringPlanRepository) Upsert(ctx context.Context, orgID int64, raw json.RawMessage) (UpsertResult, error) {
	var rec platform.RecurringPlanRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return UpsertResult{}, fmt.Errorf("malformed recurring plan record: %w", err)
	}
	if rec.ID == 0 {
		return UpsertResult{}, fmt.Errorf("recurring plan record missing id")
	}

	for _, ref := range []struct {
		table string
		id    *int64
	}{
		{"supporters", rec.SupporterID},
		{"campaigns", rec.CampaignID},
	} {
		ok, err := r.referenceExists(ctx, ref.table, orgID, ref.id)
		if err != nil {
			return UpsertResult{}, err
		}
		if !ok {
			return UpsertResult{ID: rec.ID, Skipped: true, Reason: SkipReasonMissingReference}, nil
		}
	}

	start := time.Now()
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO recurring_plans (id, organization_id, supporter_id, campaign_id, status,
			frequency, amount, currency_code, started_at, canceled_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CAST(? AS DECIMAL(18,2)), ?, ?, ?, ?)
		ON CONFLICT (id, organization_id) DO UPDATE SET
			supporter_id = EXCLUDED.supporter_id,
			campaign_id = EXCLUDED.campaign_id,
			status = EXCLUDED.status,
			frequency = EXCLUDED.frequency,
			amount = EXCLUDED.amount,
			currency_code = EXCLUDED.currency_code,
			started_at = EXCLUDED.started_at,
			canceled_at = EXCLUDED.canceled_at,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, orgID, rec.SupporterID, rec.CampaignID, rec.Status,
		rec.Frequency, decimalArg(rec.Amount), rec.CurrencyCode,
		timeArg(rec.StartedAt.Ptr()), timeArg(rec.CanceledAt.Ptr()), timeArg(rec.UpdatedAt.Ptr()))
	metrics.ObserveQuery("upsert", "recurring_plans", start, err)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert recurring plan %d: %w", rec.ID, err)
	}
	return UpsertResult{ID: rec.ID, Written: true}, nil
}

// GetRecurringPlan fetches one recurring-plan row.
func (db *DB) GetRecurringPlan(ctx context.Context, orgID, id int64) (*models.RecurringPlan, error) {
	var (
		p           models.RecurringPlan
		supporterID sql.NullInt64
		campaignID  sql.NullInt64
		status      sql.NullString
		frequency   sql.NullString
		amount      sql.NullString
		currency    sql.NullString
		startedAt   sql.NullTime
		canceledAt  sql.NullTime
		updatedAt   sql.NullTime
		lastSyncAt  sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, organization_id, supporter_id, campaign_id, status, frequency,
			CAST(amount AS VARCHAR), currency_code, started_at, canceled_at, updated_at, last_sync_at
		FROM recurring_plans WHERE organization_id = ? AND id = ?`, orgID, id).
		Scan(&p.ID, &p.OrganizationID, &supporterID, &campaignID, &status, &frequency,
			&amount, &currency, &startedAt, &canceledAt, &updatedAt, &lastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring plan %d: %w", id, err)
	}
	p.SupporterID = nullableInt64(supporterID)
	p.CampaignID = nullableInt64(campaignID)
	p.Status = status.String
	p.Frequency = frequency.String
	if p.Amount, err = scanDecimal(amount); err != nil {
		return nil, fmt.Errorf("failed to decode recurring plan amount: %w", err)
	}
	p.CurrencyCode = currency.String
	p.StartedAt = nullableTime(startedAt)
	p.CanceledAt = nullableTime(canceledAt)
	p.UpdatedAt = nullableTime(updatedAt)
	p.LastSyncAt = nullableTime(lastSyncAt)
	return &p, nil
}
