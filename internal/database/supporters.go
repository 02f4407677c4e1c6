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

// SupporterRepository replicates supporter (donor contact) records.
type SupporterRepository struct {
	baseRepository
}

// Supporters returns the supporter repository.
func (db *DB) Supporters() *SupporterRepository {
	return &SupporterRepository{baseRepository{db: db, table: "supporters", entity: models.EntitySupporters}}
}

// Upsert implements EntityRepository.
func (r *SupporterRepository) Upsert(ctx context.Context, orgID int64, raw json.RawMessage) (UpsertResult, error) {
	var rec platform.SupporterRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return UpsertResult{}, fmt.Errorf("malformed supporter record: %w", err)
	}
	if rec.ID == 0 {
		return UpsertResult{}, fmt.Errorf("supporter record missing id")
	}

	// Pre-2023-07 API versions serialized the address as "email".
	email := rec.EmailAddress
	if email == "" {
		email = rec.LegacyEmail
	}

	start := time.Now()
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO supporters (id, organization_id, first_name, last_name, email, phone,
			city, country, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, organization_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, orgID, rec.FirstName, rec.LastName, email, rec.Phone,
		rec.City, rec.Country, timeArg(rec.UpdatedAt.Ptr()))
	metrics.ObserveQuery("upsert", "supporters", start, err)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert supporter %d: %w", rec.ID, err)
	}
	return UpsertResult{ID: rec.ID, Written: true}, nil
}

// GetSupporter fetches one supporter row.
func (db *DB) GetSupporter(ctx context.Context, orgID, id int64) (*models.Supporter, error) {
	var (
		s          models.Supporter
		firstName  sql.NullString
		lastName   sql.NullString
		email      sql.NullString
		phone      sql.NullString
		city       sql.NullString
		country    sql.NullString
		updatedAt  sql.NullTime
		lastSyncAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, organization_id, first_name, last_name, email, phone, city, country,
			updated_at, last_sync_at
		FROM supporters WHERE organization_id = ? AND id = ?`, orgID, id).
		Scan(&s.ID, &s.OrganizationID, &firstName, &lastName, &email, &phone,
			&city, &country, &updatedAt, &lastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get supporter %d: %w", id, err)
	}
	s.FirstName = firstName.String
	s.LastName = lastName.String
	s.Email = email.String
	s.Phone = phone.String
	s.City = city.String
	s.Country = country.String
	s.UpdatedAt = nullableTime(updatedAt)
	s.LastSyncAt = nullableTime(lastSyncAt)
	return &s, nil
}
