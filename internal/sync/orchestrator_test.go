// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/credentials"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/models"
	"github.com/pledgeline/pledgeline/internal/models/platform"
)

// staticSource resolves fixed credentials, or fails when empty.
type staticSource struct {
	creds credentials.Credentials
	err   error
}

func (s *staticSource) Resolve(_ *models.Organization) (credentials.Credentials, error) {
	if s.err != nil {
		return credentials.Credentials{}, s.err
	}
	return s.creds, nil
}

func testOrchestrator(t *testing.T, client Client, source credentials.Source) (*Orchestrator, *database.DB, *models.Organization) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	org := &models.Organization{ExternalID: "ext-orc", Name: "Orc Org"}
	require.NoError(t, db.CreateOrganization(context.Background(), org))

	cfg := &config.Config{Sync: *testSyncConfig()}
	o := NewOrchestrator(db, cfg, source, nil)
	o.newClient = func(_ *config.PlatformConfig, _ string, _ credentials.Credentials) Client {
		return client
	}
	return o, db, org
}

func TestSyncOrganizationRunsEntitiesInOrder(t *testing.T) {
	client := newFakeClient(100)
	// Transactions reference supporter 7, which arrives in the same pass.
	client.records["supporters"] = []json.RawMessage{supporterRaw(7)}
	client.records["campaigns"] = []json.RawMessage{campaignRaw(1, "2026-03-15T09:30:00+0000")}
	client.records["transactions"] = []json.RawMessage{transactionRaw(500, 7)}

	source := &staticSource{creds: credentials.Credentials{ClientID: "a", ClientSecret: "b"}}
	o, db, org := testOrchestrator(t, client, source)
	ctx := context.Background()

	require.NoError(t, o.SyncOrganization(ctx, org, models.SyncModeAuto))

	// Fixed order means the supporter was present before the transaction.
	txn, err := db.GetTransaction(ctx, org.ID, 500)
	require.NoError(t, err)
	require.NotNil(t, txn.SupporterID)

	// One job per entity type, all completed.
	jobs, err := db.ListSyncJobs(ctx, org.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, len(models.SyncOrder))
	for _, job := range jobs {
		assert.Equal(t, models.JobStatusCompleted, job.Status)
		assert.Equal(t, models.SyncModeFull, job.Mode)
		require.NotNil(t, job.CompletedAt)
	}

	// The org-level marker moved.
	refreshed, err := db.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LastSyncAt)
	assert.WithinDuration(t, time.Now(), *refreshed.LastSyncAt, time.Minute)
}

func TestSyncOrganizationCredentialFailureIsFatal(t *testing.T) {
	client := newFakeClient(100)
	source := &staticSource{err: credentials.ErrNoCredentials}
	o, db, org := testOrchestrator(t, client, source)
	ctx := context.Background()

	err := o.SyncOrganization(ctx, org, models.SyncModeAuto)
	require.Error(t, err)

	// No entity was attempted and no jobs were written.
	assert.Zero(t, client.fetches)
	jobs, err := db.ListSyncJobs(ctx, org.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	refreshed, err := db.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, refreshed.LastSyncAt)
}

func TestSyncOrganizationAuthFailureAbortsRemainingEntities(t *testing.T) {
	client := newFakeClient(100)
	client.failWith = ErrAuthFailed

	source := &staticSource{creds: credentials.Credentials{ClientID: "a", ClientSecret: "b"}}
	o, db, org := testOrchestrator(t, client, source)
	ctx := context.Background()

	err := o.SyncOrganization(ctx, org, models.SyncModeAuto)
	require.ErrorIs(t, err, ErrAuthFailed)

	// Only the first entity got a job; it is failed and finalized.
	jobs, err := db.ListSyncJobs(ctx, org.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(models.EntityCampaigns), string(jobs[0].EntityType))
	assert.Equal(t, models.JobStatusFailed, jobs[0].Status)
	assert.NotEmpty(t, jobs[0].ErrorMessage)
	require.NotNil(t, jobs[0].CompletedAt)

	// Marker untouched on a failed pass.
	refreshed, err := db.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, refreshed.LastSyncAt)
}

// collectionFailClient fails fetches for one collection and delegates the
// rest.
type collectionFailClient struct {
	Client
	failOn string
	err    error
}

func (c *collectionFailClient) FetchPage(ctx context.Context, collection string, page int, since *time.Time) (*platform.Page, error) {
	if collection == c.failOn {
		return nil, c.err
	}
	return c.Client.FetchPage(ctx, collection, page, since)
}

func TestSyncOrganizationTransportFailureContinuesWithRemainingEntities(t *testing.T) {
	inner := newFakeClient(100)
	inner.records["supporters"] = []json.RawMessage{supporterRaw(7)}
	client := &collectionFailClient{
		Client: inner,
		failOn: "campaigns",
		err:    errors.New("fetch page 1 of campaigns: gateway timeout"),
	}

	source := &staticSource{creds: credentials.Credentials{ClientID: "a", ClientSecret: "b"}}
	o, db, org := testOrchestrator(t, client, source)
	ctx := context.Background()

	err := o.SyncOrganization(ctx, org, models.SyncModeAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway timeout")

	// Every entity was attempted: the campaigns job failed, the rest
	// completed, and the supporter landed.
	jobs, err := db.ListSyncJobs(ctx, org.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, len(models.SyncOrder))
	for _, job := range jobs {
		if job.EntityType == models.EntityCampaigns {
			assert.Equal(t, models.JobStatusFailed, job.Status)
			assert.NotEmpty(t, job.ErrorMessage)
		} else {
			assert.Equal(t, models.JobStatusCompleted, job.Status)
		}
	}

	supporter, err := db.GetSupporter(ctx, org.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), supporter.ID)

	// Marker untouched when any entity failed.
	refreshed, err := db.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, refreshed.LastSyncAt)
}

func TestSyncOrganizationAutoForcesFullUntilOrgMarkerSet(t *testing.T) {
	client := newFakeClient(100)
	client.records["campaigns"] = []json.RawMessage{campaignRaw(1, "2026-03-15T09:30:00+0000")}

	source := &staticSource{creds: credentials.Credentials{ClientID: "a", ClientSecret: "b"}}
	o, db, org := testOrchestrator(t, client, source)
	ctx := context.Background()

	// A partial earlier run left local campaign state behind, but the org
	// marker never moved. Auto must still run full, ignoring the local
	// cursor.
	_, err := db.Campaigns().Upsert(ctx, org.ID, campaignRaw(99, "2026-03-14T00:00:00+0000"))
	require.NoError(t, err)
	require.NoError(t, db.Campaigns().RecordSyncCompletion(ctx, org.ID, []int64{99}))

	require.NoError(t, o.SyncOrganization(ctx, org, models.SyncModeAuto))
	assert.Nil(t, client.lastSince["campaigns"])

	// With the marker set, the next auto pass is incremental where a cursor
	// exists.
	refreshed, err := db.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LastSyncAt)

	require.NoError(t, o.SyncOrganization(ctx, refreshed, models.SyncModeAuto))
	require.NotNil(t, client.lastSince["campaigns"])
}

func TestManagerTriggerQueue(t *testing.T) {
	client := newFakeClient(100)
	source := &staticSource{creds: credentials.Credentials{ClientID: "a", ClientSecret: "b"}}
	o, db, org := testOrchestrator(t, client, source)

	m := NewManager(db, o, time.Minute)
	require.NoError(t, m.TriggerSync(org.ID, models.SyncModeAuto))

	// The queue is bounded; overflow errors instead of blocking.
	for i := 0; i < cap(m.trigger); i++ {
		_ = m.TriggerSync(org.ID, models.SyncModeAuto)
	}
	assert.Error(t, m.TriggerSync(org.ID, models.SyncModeAuto))
}

func TestManagerServeRunsInitialPass(t *testing.T) {
	client := newFakeClient(100)
	client.records["campaigns"] = []json.RawMessage{campaignRaw(1, "2026-03-15T09:30:00+0000")}

	source := &staticSource{creds: credentials.Credentials{ClientID: "a", ClientSecret: "b"}}
	o, db, org := testOrchestrator(t, client, source)

	m := NewManager(db, o, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	// The startup pass syncs the one active org.
	require.Eventually(t, func() bool {
		count, err := db.Campaigns().Count(context.Background(), org.ID)
		return err == nil && count == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop on cancellation")
	}
}
