// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/credentials"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/models"
)

// fakeTrigger records trigger calls.
type fakeTrigger struct {
	orgIDs []int64
	modes  []string
	err    error
}

func (f *fakeTrigger) TriggerSync(orgID int64, mode string) error {
	if f.err != nil {
		return f.err
	}
	f.orgIDs = append(f.orgIDs, orgID)
	f.modes = append(f.modes, mode)
	return nil
}

func testServer(t *testing.T) (*httptest.Server, *database.DB, *fakeTrigger, *config.CredentialEncryptor) {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	enc, err := config.NewCredentialEncryptor("test-credential-key-material")
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
	}
	trigger := &fakeTrigger{}

	router := NewRouter(cfg, db, enc, trigger, nil)
	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)
	return server, db, trigger, enc
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHealthEndpoints(t *testing.T) {
	server, _, _, _ := testServer(t)

	resp, err := http.Get(server.URL + "/api/v1/health/live")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/v1/health/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	var health serviceHealth
	decode(t, resp, &health)
	assert.Equal(t, models.HealthHealthy, health.Status)
	assert.Equal(t, "ok", health.Checks["database"])
}

func TestCreateOrganizationEncryptsCredentials(t *testing.T) {
	server, db, _, enc := testServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations", createOrganizationRequest{
		ExternalID:   "ext-42",
		Name:         "Helping Hands",
		ClientID:     "ci_live_abc",
		ClientSecret: "cs_live_xyz",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Organization
	decode(t, resp, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "ext-42", created.ExternalID)

	// Stored blob decrypts to the submitted secrets but never contains
	// plaintext.
	stored, err := db.GetOrganization(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.CredentialsEncrypted)
	assert.NotContains(t, stored.CredentialsEncrypted, "ci_live_abc")
	assert.NotContains(t, stored.CredentialsEncrypted, "cs_live_xyz")

	secrets, err := credentials.DecryptBlob(enc, stored.CredentialsEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "ci_live_abc", secrets[credentials.KeyClientID])
}

func TestCreateOrganizationValidation(t *testing.T) {
	server, _, _, _ := testServer(t)

	// Missing name.
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations",
		createOrganizationRequest{ExternalID: "ext-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// Client id without secret.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations",
		createOrganizationRequest{ExternalID: "ext-1", Name: "X", ClientID: "only-id"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestCreateOrganizationDuplicate(t *testing.T) {
	server, _, _, _ := testServer(t)

	req := createOrganizationRequest{ExternalID: "ext-dup", Name: "First"}
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations", req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestOrganizationResponsesNeverExposeCredentials(t *testing.T) {
	server, _, _, _ := testServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations", createOrganizationRequest{
		ExternalID:   "ext-sec",
		Name:         "Secret Org",
		ClientID:     "ci_hidden",
		ClientSecret: "cs_hidden",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Organization
	decode(t, resp, &created)

	for _, url := range []string{
		server.URL + "/api/v1/organizations",
		fmt.Sprintf("%s/api/v1/organizations/%d", server.URL, created.ID),
	} {
		resp, err := http.Get(url)
		require.NoError(t, err)
		body := new(bytes.Buffer)
		_, err = body.ReadFrom(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.NotContains(t, body.String(), "ci_hidden")
		assert.NotContains(t, body.String(), "cs_hidden")
		assert.NotContains(t, body.String(), "credentials_encrypted")
	}
}

func TestUpdateCredentials(t *testing.T) {
	server, db, _, enc := testServer(t)

	org := &models.Organization{ExternalID: "ext-rot", Name: "Rotate"}
	require.NoError(t, db.CreateOrganization(context.Background(), org))

	resp := doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/api/v1/organizations/%d/credentials", server.URL, org.ID),
		updateCredentialsRequest{ClientID: "new_ci", ClientSecret: "new_cs"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	stored, err := db.GetOrganization(context.Background(), org.ID)
	require.NoError(t, err)
	secrets, err := credentials.DecryptBlob(enc, stored.CredentialsEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "new_ci", secrets[credentials.KeyClientID])
	assert.Equal(t, "new_cs", secrets[credentials.KeyClientSecret])
}

func TestTriggerSync(t *testing.T) {
	server, db, trigger, _ := testServer(t)

	org := &models.Organization{ExternalID: "ext-trig", Name: "Trig"}
	require.NoError(t, db.CreateOrganization(context.Background(), org))

	resp := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/organizations/%d/sync", server.URL, org.ID), nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Equal(t, []int64{org.ID}, trigger.orgIDs)
	assert.Equal(t, []string{""}, trigger.modes)

	// Forced full sync.
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/organizations/%d/sync", server.URL, org.ID),
		triggerSyncRequest{Mode: models.SyncModeFull})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Equal(t, models.SyncModeFull, trigger.modes[len(trigger.modes)-1])

	// Unknown mode rejected.
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/organizations/%d/sync", server.URL, org.ID),
		triggerSyncRequest{Mode: "backwards"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// Inactive org refuses the trigger.
	require.NoError(t, db.SetOrganizationStatus(context.Background(), org.ID, models.OrgStatusInactive))
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/organizations/%d/sync", server.URL, org.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	// Unknown org 404s.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/organizations/9999/sync", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestListJobsAndOrganizationHealth(t *testing.T) {
	server, db, _, _ := testServer(t)
	ctx := context.Background()

	org := &models.Organization{ExternalID: "ext-hist", Name: "Hist"}
	require.NoError(t, db.CreateOrganization(ctx, org))

	job := &models.SyncJob{OrganizationID: org.ID, EntityType: models.EntityCampaigns, Mode: models.SyncModeFull}
	require.NoError(t, db.CreateSyncJob(ctx, job))
	job.Status = models.JobStatusCompleted
	job.RecordsProcessed = 42
	require.NoError(t, db.FinalizeSyncJob(ctx, job))

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/organizations/%d/jobs", server.URL, org.ID))
	require.NoError(t, err)
	var jobs []*models.SyncJob
	decode(t, resp, &jobs)
	require.Len(t, jobs, 1)
	assert.Equal(t, 42, jobs[0].RecordsProcessed)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/organizations/%d/health", server.URL, org.ID))
	require.NoError(t, err)
	var health models.OrganizationHealth
	decode(t, resp, &health)
	assert.Equal(t, org.ID, health.OrganizationID)
	assert.Len(t, health.Components, len(models.SyncOrder))
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _, _ := testServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvalidOrgID(t *testing.T) {
	server, _, _, _ := testServer(t)

	resp, err := http.Get(server.URL + "/api/v1/organizations/not-a-number")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}
