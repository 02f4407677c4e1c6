// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package models

import "time"

// Component health statuses.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthError    = "error"
)

// ComponentHealth reports one sync-capable component's state for one
// organization.
type ComponentHealth struct {
	Status       string     `json:"status"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	RecordCount  int64      `json:"record_count"`
	Detail       string     `json:"detail,omitempty"`
}

// OrganizationHealth aggregates component health across all registered entity
// repositories for one organization.
type OrganizationHealth struct {
	OrganizationID int64                      `json:"organization_id"`
	Status         string                     `json:"status"`
	Components     map[string]ComponentHealth `json:"components"`
}

// Aggregate computes the organization-level status: error if any component
// errors, degraded if any component degrades, healthy otherwise.
func (h *OrganizationHealth) Aggregate() {
	h.Status = HealthHealthy
	for _, c := range h.Components {
		switch c.Status {
		case HealthError:
			h.Status = HealthError
			return
		case HealthDegraded:
			h.Status = HealthDegraded
		}
	}
}
