// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pledgeline/pledgeline/internal/credentials"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/logging"
	"github.com/pledgeline/pledgeline/internal/models"
)

// createOrganizationRequest registers a tenant. Credentials are optional:
// without them the tenant syncs with the environment-configured fallback.
type createOrganizationRequest struct {
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// updateCredentialsRequest rotates a tenant's stored credentials.
type updateCredentialsRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// ListOrganizations returns all registered tenants. Credential blobs are
// excluded by the model's JSON tags.
func (rt *Router) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := rt.db.ListOrganizations(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list organizations")
		respondError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}
	respondJSON(w, http.StatusOK, orgs)
}

// CreateOrganization registers a tenant, encrypting any supplied credentials
// before they touch the store. Plaintext secrets exist only inside this
// handler's stack frame.
func (rt *Router) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExternalID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "external_id and name are required")
		return
	}
	if (req.ClientID == "") != (req.ClientSecret == "") {
		respondError(w, http.StatusBadRequest, "client_id and client_secret must be provided together")
		return
	}

	org := &models.Organization{ExternalID: req.ExternalID, Name: req.Name}
	if req.ClientID != "" {
		blob, err := credentials.EncryptBlob(rt.encryptor, map[string]string{
			credentials.KeyClientID:     req.ClientID,
			credentials.KeyClientSecret: req.ClientSecret,
		})
		if err != nil {
			logging.Error().Err(err).Msg("Failed to encrypt organization credentials")
			respondError(w, http.StatusInternalServerError, "failed to encrypt credentials")
			return
		}
		org.CredentialsEncrypted = blob
	}

	if err := rt.db.CreateOrganization(r.Context(), org); err != nil {
		if errors.Is(err, database.ErrDuplicateExternalID) {
			respondError(w, http.StatusConflict, "organization already exists")
			return
		}
		logging.Error().Err(err).Msg("Failed to create organization")
		respondError(w, http.StatusInternalServerError, "failed to create organization")
		return
	}
	respondJSON(w, http.StatusCreated, org)
}

// GetOrganization returns one tenant.
func (rt *Router) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := rt.orgFromPath(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, org)
}

// UpdateCredentials rotates the stored credential blob. Takes effect on the
// tenant's next sync run.
func (rt *Router) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	org, ok := rt.orgFromPath(w, r)
	if !ok {
		return
	}

	var req updateCredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		respondError(w, http.StatusBadRequest, "client_id and client_secret are required")
		return
	}

	blob, err := credentials.EncryptBlob(rt.encryptor, map[string]string{
		credentials.KeyClientID:     req.ClientID,
		credentials.KeyClientSecret: req.ClientSecret,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encrypt organization credentials")
		respondError(w, http.StatusInternalServerError, "failed to encrypt credentials")
		return
	}

	if err := rt.db.UpdateOrganizationCredentials(r.Context(), org.ID, blob); err != nil {
		logging.Error().Err(err).Int64("organization_id", org.ID).Msg("Failed to update credentials")
		respondError(w, http.StatusInternalServerError, "failed to update credentials")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// UpdateStatus activates or deactivates a tenant.
func (rt *Router) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	org, ok := rt.orgFromPath(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := rt.db.SetOrganizationStatus(r.Context(), org.ID, req.Status); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// ListJobs returns the tenant's sync-job history, newest first. Supports a
// ?limit= query parameter.
func (rt *Router) ListJobs(w http.ResponseWriter, r *http.Request) {
	org, ok := rt.orgFromPath(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	jobs, err := rt.db.ListSyncJobs(r.Context(), org.ID, limit)
	if err != nil {
		logging.Error().Err(err).Int64("organization_id", org.ID).Msg("Failed to list sync jobs")
		respondError(w, http.StatusInternalServerError, "failed to list sync jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.SyncJob{}
	}
	respondJSON(w, http.StatusOK, jobs)
}

type triggerSyncRequest struct {
	Mode string `json:"mode"`
}

// TriggerOrganizationSync queues an on-demand sync run. The optional body
// selects the mode; absent or empty means auto.
func (rt *Router) TriggerOrganizationSync(w http.ResponseWriter, r *http.Request) {
	org, ok := rt.orgFromPath(w, r)
	if !ok {
		return
	}
	if org.Status != models.OrgStatusActive {
		respondError(w, http.StatusConflict, "organization is inactive")
		return
	}

	var req triggerSyncRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	switch req.Mode {
	case "", models.SyncModeAuto, models.SyncModeFull, models.SyncModeIncremental:
	default:
		respondError(w, http.StatusBadRequest, "mode must be auto, full, or incremental")
		return
	}

	if err := rt.trigger.TriggerSync(org.ID, req.Mode); err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// orgFromPath resolves the {orgID} path segment. Writes the error response
// itself; the second return value signals whether to continue.
func (rt *Router) orgFromPath(w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orgID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid organization id")
		return nil, false
	}
	org, err := rt.db.GetOrganization(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrOrganizationNotFound) {
			respondError(w, http.StatusNotFound, "organization not found")
			return nil, false
		}
		logging.Error().Err(err).Int64("organization_id", id).Msg("Failed to load organization")
		respondError(w, http.StatusInternalServerError, "failed to load organization")
		return nil, false
	}
	return org, true
}
