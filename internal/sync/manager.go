// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/logging"
	"github.com/pledgeline/pledgeline/internal/models"
)

// Manager schedules organization syncs: a periodic pass over every active
// organization, plus on-demand triggers from the admin API. Organizations are
// synced sequentially within a pass; the shared platform rate budget makes
// parallel tenant syncs counterproductive.
type Manager struct {
	db           *database.DB
	orchestrator *Orchestrator
	interval     time.Duration

	trigger chan triggerRequest

	// runMu serializes passes so a manual trigger never overlaps the ticker.
	runMu sync.Mutex
}

// triggerRequest carries one manual sync request through the queue.
type triggerRequest struct {
	orgID int64
	mode  string
}

// NewManager builds the scheduler.
func NewManager(db *database.DB, orchestrator *Orchestrator, interval time.Duration) *Manager {
	return &Manager{
		db:           db,
		orchestrator: orchestrator,
		interval:     interval,
		trigger:      make(chan triggerRequest, 16),
	}
}

// Serve runs the scheduling loop until ctx is canceled. Implements
// suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", m.interval).Msg("Sync scheduler started")

	// First pass immediately on startup rather than one interval in.
	m.runAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			m.runAll(ctx)
		case req := <-m.trigger:
			m.runOne(ctx, req)
		}
	}
}

// TriggerSync queues an on-demand sync for one organization. mode may be
// empty, which means auto. Returns an error when the queue is full rather
// than blocking an API handler.
func (m *Manager) TriggerSync(orgID int64, mode string) error {
	select {
	case m.trigger <- triggerRequest{orgID: orgID, mode: mode}:
		return nil
	default:
		return fmt.Errorf("sync trigger queue is full")
	}
}

// runAll syncs every active organization. One organization's failure is
// logged and isolated; the pass continues with the next tenant.
func (m *Manager) runAll(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	orgs, err := m.db.ListActiveOrganizations(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list organizations for sync pass")
		return
	}
	if len(orgs) == 0 {
		logging.Debug().Msg("No active organizations to sync")
		return
	}

	logging.Info().Int("organizations", len(orgs)).Msg("Starting sync pass")
	for _, org := range orgs {
		if ctx.Err() != nil {
			return
		}
		if err := m.orchestrator.SyncOrganization(ctx, org, models.SyncModeAuto); err != nil {
			logging.Error().Err(err).
				Int64("organization_id", org.ID).
				Msg("Organization sync failed, continuing with next")
		}
	}
}

// runOne services a manual trigger.
func (m *Manager) runOne(ctx context.Context, req triggerRequest) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	org, err := m.db.GetOrganization(ctx, req.orgID)
	if err != nil {
		logging.Error().Err(err).Int64("organization_id", req.orgID).Msg("Triggered sync: organization lookup failed")
		return
	}
	if org.Status != models.OrgStatusActive {
		logging.Warn().Int64("organization_id", req.orgID).Msg("Triggered sync: organization is inactive, skipping")
		return
	}
	if err := m.orchestrator.SyncOrganization(ctx, org, req.mode); err != nil {
		logging.Error().Err(err).Int64("organization_id", req.orgID).Msg("Triggered sync failed")
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *Manager) String() string {
	return "sync-manager"
}
