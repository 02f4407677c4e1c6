// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package database

// schemaStatements creates all tables and sequences. Statements are
// idempotent (IF NOT EXISTS) so startup is safe against an existing store.
//
// Synced entity tables use the source platform's id as the local primary key
// together with organization_id; there is no surrogate key, which makes the
// upsert path idempotent and collision-free across re-syncs. updated_at holds
// the source's own timestamp verbatim; last_sync_at is stamped by the engine
// and only on successfully written rows.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS organizations_id_seq START 1`,

	`CREATE TABLE IF NOT EXISTS organizations (
		id BIGINT PRIMARY KEY DEFAULT nextval('organizations_id_seq'),
		external_id VARCHAR NOT NULL UNIQUE,
		name VARCHAR NOT NULL,
		status VARCHAR NOT NULL DEFAULT 'active',
		credentials_encrypted VARCHAR,
		last_sync_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		id BIGINT NOT NULL,
		organization_id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		status VARCHAR,
		goal_amount DECIMAL(18,2),
		currency_code VARCHAR,
		started_at TIMESTAMP,
		ended_at TIMESTAMP,
		updated_at TIMESTAMP,
		last_sync_at TIMESTAMP,
		PRIMARY KEY (id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS supporters (
		id BIGINT NOT NULL,
		organization_id BIGINT NOT NULL,
		first_name VARCHAR,
		last_name VARCHAR,
		email VARCHAR,
		phone VARCHAR,
		city VARCHAR,
		country VARCHAR,
		updated_at TIMESTAMP,
		last_sync_at TIMESTAMP,
		PRIMARY KEY (id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS recurring_plans (
		id BIGINT NOT NULL,
		organization_id BIGINT NOT NULL,
		supporter_id BIGINT,
		campaign_id BIGINT,
		status VARCHAR,
		frequency VARCHAR,
		amount DECIMAL(18,2),
		currency_code VARCHAR,
		started_at TIMESTAMP,
		canceled_at TIMESTAMP,
		updated_at TIMESTAMP,
		last_sync_at TIMESTAMP,
		PRIMARY KEY (id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGINT NOT NULL,
		organization_id BIGINT NOT NULL,
		supporter_id BIGINT,
		campaign_id BIGINT,
		recurring_plan_id BIGINT,
		status VARCHAR,
		payment_method VARCHAR,
		gross_amount DECIMAL(18,2),
		fee_amount DECIMAL(18,2),
		net_amount DECIMAL(18,2),
		currency_code VARCHAR,
		purchased_at TIMESTAMP,
		updated_at TIMESTAMP,
		last_sync_at TIMESTAMP,
		PRIMARY KEY (id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS sync_jobs (
		id VARCHAR PRIMARY KEY,
		organization_id BIGINT NOT NULL,
		entity_type VARCHAR NOT NULL,
		mode VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		records_processed INTEGER NOT NULL DEFAULT 0,
		records_succeeded INTEGER NOT NULL DEFAULT 0,
		records_skipped INTEGER NOT NULL DEFAULT 0,
		records_failed INTEGER NOT NULL DEFAULT 0,
		error_message VARCHAR,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	)`,

	// Pending-skip ledger: records held back by a missing reference, kept
	// with their raw payload so later passes can re-apply them locally
	// without re-fetching from the platform. skip_count bounds the retry
	// horizon for permanently-dangling references.
	`CREATE TABLE IF NOT EXISTS sync_skips (
		organization_id BIGINT NOT NULL,
		entity_type VARCHAR NOT NULL,
		record_id BIGINT NOT NULL,
		reason VARCHAR NOT NULL,
		payload VARCHAR NOT NULL,
		skip_count INTEGER NOT NULL DEFAULT 1,
		first_skipped_at TIMESTAMP NOT NULL,
		last_skipped_at TIMESTAMP NOT NULL,
		PRIMARY KEY (organization_id, entity_type, record_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sync_jobs_org ON sync_jobs (organization_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_supporter ON transactions (organization_id, supporter_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recurring_plans_supporter ON recurring_plans (organization_id, supporter_id)`,
}
