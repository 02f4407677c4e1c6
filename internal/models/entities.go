// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies one replicated entity collection.
type EntityType string

// Entity types in dependency-aware sync order. Campaigns and supporters have
// no local references; recurring plans reference both; transactions reference
// all three.
const (
	EntityCampaigns      EntityType = "campaigns"
	EntitySupporters     EntityType = "supporters"
	EntityRecurringPlans EntityType = "recurring_plans"
	EntityTransactions   EntityType = "transactions"
)

// SyncOrder is the fixed order entities are synced in for one organization,
// minimizing (not eliminating) missing-reference skips.
var SyncOrder = []EntityType{
	EntityCampaigns,
	EntitySupporters,
	EntityRecurringPlans,
	EntityTransactions,
}

// Campaign is a locally stored fundraising campaign. The platform's id is the
// local primary key together with the organization id; there is no surrogate
// key, which keeps upserts idempotent across re-syncs.
type Campaign struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	GoalAmount     decimal.Decimal `json:"goal_amount"`
	CurrencyCode   string          `json:"currency_code"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`

	// UpdatedAt is the source platform's timestamp, preserved verbatim. It
	// is the basis for the next incremental window and is never overwritten
	// with the sync wall-clock time.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// LastSyncAt is when this row was last written by the sync engine.
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// Supporter is a locally stored donor record.
type Supporter struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	City           string     `json:"city"`
	Country        string     `json:"country"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
}

// Transaction is a donation payment. Supporter, campaign, and recurring plan
// references are soft: they are nullable and validated only against local
// existence, so a transaction arriving before its supporter is skipped and
// retried on a later pass rather than failed.
type Transaction struct {
	ID              int64           `json:"id"`
	OrganizationID  int64           `json:"organization_id"`
	SupporterID     *int64          `json:"supporter_id,omitempty"`
	CampaignID      *int64          `json:"campaign_id,omitempty"`
	RecurringPlanID *int64          `json:"recurring_plan_id,omitempty"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	CurrencyCode    string          `json:"currency_code"`

	// PurchasedAt is the transaction's canonical timestamp on the platform;
	// incremental windows for transactions filter on it instead of
	// updated_at.
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`

	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// RecurringPlan is a recurring-donation schedule.
type RecurringPlan struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	SupporterID    *int64          `json:"supporter_id,omitempty"`
	CampaignID     *int64          `json:"campaign_id,omitempty"`
	Status         string          `json:"status"`
	Frequency      string          `json:"frequency"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyCode   string          `json:"currency_code"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CanceledAt     *time.Time      `json:"canceled_at,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
	LastSyncAt     *time.Time      `json:"last_sync_at,omitempty"`
}
