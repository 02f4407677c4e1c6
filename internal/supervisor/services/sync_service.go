// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package services

import (
	"context"
)

// SyncScheduler matches sync.Manager's Serve method without importing the
// sync package, keeping this package dependency-free.
type SyncScheduler interface {
	Serve(ctx context.Context) error
}

// SyncService wraps the sync scheduler as a supervised service. A crashed
// scheduler is restarted by the supervisor; in-flight sync state is safe
// because every run re-derives its cursor from the store.
type SyncService struct {
	scheduler SyncScheduler
	name      string
}

// NewSyncService wraps scheduler for supervision.
func NewSyncService(scheduler SyncScheduler) *SyncService {
	return &SyncService{scheduler: scheduler, name: "sync-scheduler"}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	return s.scheduler.Serve(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *SyncService) String() string {
	return s.name
}
