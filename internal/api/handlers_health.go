// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package api

import (
	"net/http"

	"github.com/pledgeline/pledgeline/internal/models"
)

// serviceHealth is the process-level health report.
type serviceHealth struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Plugins map[string]string `json:"plugins,omitempty"`
}

// Health reports process health: store reachability plus plugin checks.
func (rt *Router) Health(w http.ResponseWriter, r *http.Request) {
	health := serviceHealth{
		Status: models.HealthHealthy,
		Checks: map[string]string{},
	}

	if err := rt.db.Ping(r.Context()); err != nil {
		health.Status = models.HealthError
		health.Checks["database"] = err.Error()
	} else {
		health.Checks["database"] = "ok"
	}

	if rt.plugins != nil {
		for name, err := range rt.plugins.HealthCheck(r.Context()) {
			if err != nil {
				if health.Status == models.HealthHealthy {
					health.Status = models.HealthDegraded
				}
				if health.Plugins == nil {
					health.Plugins = map[string]string{}
				}
				health.Plugins[name] = err.Error()
			} else {
				if health.Plugins == nil {
					health.Plugins = map[string]string{}
				}
				health.Plugins[name] = "ok"
			}
		}
	}

	status := http.StatusOK
	if health.Status == models.HealthError {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

// HealthLive always returns 200 while the process can serve requests.
func (rt *Router) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady returns 200 once the store answers queries.
func (rt *Router) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := rt.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// OrganizationHealth reports per-entity replication health for one tenant.
func (rt *Router) OrganizationHealth(w http.ResponseWriter, r *http.Request) {
	org, ok := rt.orgFromPath(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rt.db.OrganizationHealth(r.Context(), org.ID))
}
