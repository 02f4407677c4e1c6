// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package models defines the persisted data structures shared across the
// database, sync, and api packages.
package models

import "time"

// Organization statuses.
const (
	OrgStatusActive   = "active"
	OrgStatusInactive = "inactive"
)

// Organization is the unit of tenancy. Every synced row carries the owning
// organization's internal id; credentials are stored encrypted per
// organization and one organization's sync can never observe another's data.
type Organization struct {
	// ID is the internal numeric id (surrogate, local only).
	ID int64 `json:"id"`

	// ExternalID is the organization's id on the fundraising platform.
	// Unique across the table.
	ExternalID string `json:"external_id"`

	Name   string `json:"name"`
	Status string `json:"status"`

	// CredentialsEncrypted is a JSON object of named secrets, each value
	// independently AES-GCM encrypted. Never exposed through the API.
	CredentialsEncrypted string `json:"-"`

	// LastSyncAt is the organization-level last-sync marker, updated only
	// when a full organization pass completes successfully.
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
