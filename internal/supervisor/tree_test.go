// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pledgeline/pledgeline/internal/logging"
)

// countingService counts Serve invocations and blocks until cancellation.
type countingService struct {
	serves  atomic.Int32
	started chan struct{}
	once    atomic.Bool
}

func newCountingService() *countingService {
	return &countingService{started: make(chan struct{})}
}

func (s *countingService) Serve(ctx context.Context) error {
	s.serves.Add(1)
	if s.once.CompareAndSwap(false, true) {
		close(s.started)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func TestTreeServesAndStops(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())

	syncSvc := newCountingService()
	apiSvc := newCountingService()
	tree.AddSyncService(syncSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-syncSvc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("sync service never started")
	}
	select {
	case <-apiSvc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("api service never started")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}

	assert.Equal(t, int32(1), syncSvc.serves.Load())
	assert.Equal(t, int32(1), apiSvc.serves.Load())
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	require.Equal(t, 5.0, cfg.FailureThreshold)
	require.Equal(t, 30.0, cfg.FailureDecay)
	require.Equal(t, 15*time.Second, cfg.FailureBackoff)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}
