// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPServer implements HTTPServer.
type mockHTTPServer struct {
	listenErr    error
	shutdownErr  error
	shutdowns    atomic.Int32
	listenDone   chan struct{}
	blockListen  bool
	listenClosed chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		listenDone:   make(chan struct{}),
		listenClosed: make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	close(m.listenDone)
	if m.blockListen {
		<-m.listenClosed
		return http.ErrServerClosed
	}
	return m.listenErr
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.shutdowns.Add(1)
	if m.blockListen {
		close(m.listenClosed)
	}
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	srv.blockListen = true
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.listenDone
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	srv := newMockHTTPServer()
	srv.listenErr = errors.New("bind: address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

func TestHTTPServerServiceServerClosedIsNil(t *testing.T) {
	srv := newMockHTTPServer()
	srv.listenErr = http.ErrServerClosed
	svc := NewHTTPServerService(srv, time.Second)

	assert.NoError(t, svc.Serve(context.Background()))
}

// mockScheduler implements SyncScheduler.
type mockScheduler struct {
	served atomic.Int32
}

func (m *mockScheduler) Serve(ctx context.Context) error {
	m.served.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestSyncServiceDelegates(t *testing.T) {
	sched := &mockScheduler{}
	svc := NewSyncService(sched)
	assert.Equal(t, "sync-scheduler", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, int32(1), sched.served.Load())
}
