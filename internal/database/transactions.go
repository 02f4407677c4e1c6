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

// TransactionRepository replicates donation payments. All three outbound
// references (supporter, campaign, recurring plan) are soft.
type TransactionRepository struct {
	baseRepository
}

// Transactions returns the transaction repository.
func (db *DB) Transactions() *TransactionRepository {
	return &TransactionRepository{baseRepository{db: db, table: "transactions", entity: models.EntityTransactions}}
}

// Upsert implements EntityRepository.
func (r *TransactionRepository) Upsert(ctx context.Context, orgID int64, raw json.RawMessage) (UpsertResult, error) {
	var rec platform.TransactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return UpsertResult{}, fmt.Errorf("malformed transaction record: %w", err)
	}
	if rec.ID == 0 {
		return UpsertResult{}, fmt.Errorf("transaction record missing id")
	}

	for _, ref := range []struct {
		table string
		id    *int64
	}{
		{"supporters", rec.SupporterID},
		{"campaigns", rec.CampaignID},
		{"recurring_plans", rec.RecurringPlanID},
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
		INSERT INTO transactions (id, organization_id, supporter_id, campaign_id, recurring_plan_id,
			status, payment_method, gross_amount, fee_amount, net_amount, currency_code,
			purchased_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CAST(? AS DECIMAL(18,2)), CAST(? AS DECIMAL(18,2)), CAST(? AS DECIMAL(18,2)), ?, ?, ?)
		ON CONFLICT (id, organization_id) DO UPDATE SET
			supporter_id = EXCLUDED.supporter_id,
			campaign_id = EXCLUDED.campaign_id,
			recurring_plan_id = EXCLUDED.recurring_plan_id,
			status = EXCLUDED.status,
			payment_method = EXCLUDED.payment_method,
			gross_amount = EXCLUDED.gross_amount,
			fee_amount = EXCLUDED.fee_amount,
			net_amount = EXCLUDED.net_amount,
			currency_code = EXCLUDED.currency_code,
			purchased_at = EXCLUDED.purchased_at,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, orgID, rec.SupporterID, rec.CampaignID, rec.RecurringPlanID,
		rec.Status, rec.PaymentMethod, decimalArg(rec.GrossAmount), decimalArg(rec.FeeAmount),
		decimalArg(rec.NetAmount), rec.CurrencyCode,
		timeArg(rec.PurchasedAt.Ptr()), timeArg(rec.UpdatedAt.Ptr()))
	metrics.ObserveQuery("upsert", "transactions", start, err)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert transaction %d: %w", rec.ID, err)
	}
	return UpsertResult{ID: rec.ID, Written: true}, nil
}

// GetTransaction fetches one transaction row.
func (db *DB) GetTransaction(ctx context.Context, orgID, id int64) (*models.Transaction, error) {
	var (
		t             models.Transaction
		supporterID   sql.NullInt64
		campaignID    sql.NullInt64
		planID        sql.NullInt64
		status        sql.NullString
		paymentMethod sql.NullString
		gross         sql.NullString
		fee           sql.NullString
		net           sql.NullString
		currency      sql.NullString
		purchasedAt   sql.NullTime
		updatedAt     sql.NullTime
		lastSyncAt    sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, organization_id, supporter_id, campaign_id, recurring_plan_id, status,
			payment_method, CAST(gross_amount AS VARCHAR), CAST(fee_amount AS VARCHAR),
			CAST(net_amount AS VARCHAR), currency_code, purchased_at, updated_at, last_sync_at
		FROM transactions WHERE organization_id = ? AND id = ?`, orgID, id).
		Scan(&t.ID, &t.OrganizationID, &supporterID, &campaignID, &planID, &status,
			&paymentMethod, &gross, &fee, &net, &currency, &purchasedAt, &updatedAt, &lastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	t.SupporterID = nullableInt64(supporterID)
	t.CampaignID = nullableInt64(campaignID)
	t.RecurringPlanID = nullableInt64(planID)
	t.Status = status.String
	t.PaymentMethod = paymentMethod.String
	if t.GrossAmount, err = scanDecimal(gross); err != nil {
		return nil, fmt.Errorf("failed to decode transaction gross amount: %w", err)
	}
	if t.FeeAmount, err = scanDecimal(fee); err != nil {
		return nil, fmt.Errorf("failed to decode transaction fee amount: %w", err)
	}
	if t.NetAmount, err = scanDecimal(net); err != nil {
		return nil, fmt.Errorf("failed to decode transaction net amount: %w", err)
	}
	t.CurrencyCode = currency.String
	t.PurchasedAt = nullableTime(purchasedAt)
	t.UpdatedAt = nullableTime(updatedAt)
	t.LastSyncAt = nullableTime(lastSyncAt)
	return &t, nil
}
