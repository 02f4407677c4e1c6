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

	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
)

// ErrOrganizationNotFound is returned when an organization lookup matches no
// row.
var ErrOrganizationNotFound = errors.New("organization not found")

// ErrDuplicateExternalID is returned when creating an organization whose
// external id is already registered.
var ErrDuplicateExternalID = errors.New("organization external id already exists")

const organizationColumns = `id, external_id, name, status, credentials_encrypted, last_sync_at, created_at, updated_at`

// CreateOrganization registers a tenant. The credentials blob, if any, must
// already be encrypted by the caller; this layer never sees plaintext secrets.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	existing, err := db.GetOrganizationByExternalID(ctx, org.ExternalID)
	if err != nil && !errors.Is(err, ErrOrganizationNotFound) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateExternalID, org.ExternalID)
	}

	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.Status == "" {
		org.Status = models.OrgStatusActive
	}

	start := time.Now()
	err = db.conn.QueryRowContext(ctx,
		`INSERT INTO organizations (external_id, name, status, credentials_encrypted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		org.ExternalID, org.Name, org.Status, nullableString(org.CredentialsEncrypted), now, now,
	).Scan(&org.ID)
	metrics.ObserveQuery("insert", "organizations", start, err)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization fetches one organization by local id.
func (db *DB) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id)
	return scanOrganization(row)
}

// GetOrganizationByExternalID fetches one organization by its platform id.
func (db *DB) GetOrganizationByExternalID(ctx context.Context, externalID string) (*models.Organization, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE external_id = ?`, externalID)
	return scanOrganization(row)
}

// ListOrganizations returns all registered organizations ordered by id.
func (db *DB) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	return db.listOrganizations(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY id`)
}

// ListActiveOrganizations returns the organizations eligible for scheduled
// syncs. Inactive tenants stay registered but are never polled.
func (db *DB) ListActiveOrganizations(ctx context.Context) ([]*models.Organization, error) {
	return db.listOrganizations(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE status = ? ORDER BY id`,
		models.OrgStatusActive)
}

func (db *DB) listOrganizations(ctx context.Context, query string, args ...interface{}) ([]*models.Organization, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveQuery("list", "organizations", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpdateOrganizationCredentials replaces the stored (encrypted) credential
// blob. An empty blob clears stored credentials, falling the tenant back to
// environment resolution.
func (db *DB) UpdateOrganizationCredentials(ctx context.Context, id int64, encryptedBlob string) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE organizations SET credentials_encrypted = ?, updated_at = ? WHERE id = ?`,
		nullableString(encryptedBlob), time.Now().UTC(), id)
	metrics.ObserveQuery("update_credentials", "organizations", start, err)
	if err != nil {
		return fmt.Errorf("failed to update organization credentials: %w", err)
	}
	return requireRow(res)
}

// SetOrganizationStatus activates or deactivates a tenant.
func (db *DB) SetOrganizationStatus(ctx context.Context, id int64, status string) error {
	if status != models.OrgStatusActive && status != models.OrgStatusInactive {
		return fmt.Errorf("invalid organization status %q", status)
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE organizations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update organization status: %w", err)
	}
	return requireRow(res)
}

// MarkOrganizationSynced stamps the org-level last_sync_at marker. Called only
// after a run completes with every entity fully processed.
func (db *DB) MarkOrganizationSynced(ctx context.Context, id int64, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE organizations SET last_sync_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark organization synced: %w", err)
	}
	return requireRow(res)
}

// rowScanner lets scanOrganization serve both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org      models.Organization
		creds    sql.NullString
		lastSync sql.NullTime
	)
	err := row.Scan(&org.ID, &org.ExternalID, &org.Name, &org.Status,
		&creds, &lastSync, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	org.CredentialsEncrypted = creds.String
	org.LastSyncAt = nullableTime(lastSync)
	return &org, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}
