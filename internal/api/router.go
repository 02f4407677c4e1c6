// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package api provides the HTTP admin surface: health, organization
// management, sync-job history, manual sync triggers, and Prometheus
// metrics. Routing uses chi.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/middleware"
	"github.com/pledgeline/pledgeline/internal/plugin"
)

// SyncTrigger queues an on-demand sync for one organization. An empty mode
// means auto.
type SyncTrigger interface {
	TriggerSync(orgID int64, mode string) error
}

// Router wires handlers to the chi mux.
type Router struct {
	cfg       *config.Config
	db        *database.DB
	encryptor *config.CredentialEncryptor
	trigger   SyncTrigger
	plugins   *plugin.Registry
}

// NewRouter builds the admin API router. plugins may be nil.
func NewRouter(cfg *config.Config, db *database.DB, encryptor *config.CredentialEncryptor, trigger SyncTrigger, plugins *plugin.Registry) *Router {
	return &Router{
		cfg:       cfg,
		db:        db,
		encryptor: encryptor,
		trigger:   trigger,
		plugins:   plugins,
	}
}

// Handler assembles the full route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(RequestLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	rateWindow := rt.cfg.Server.RateLimitWindow
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(rt.cfg.Server.RateLimitReqs, rateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP)))
		// promhttp gzips /metrics itself, so compression stays inside the
		// API subtree.
		r.Use(middleware.Compression)

		r.Get("/health", rt.Health)
		r.Get("/health/live", rt.HealthLive)
		r.Get("/health/ready", rt.HealthReady)

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", rt.ListOrganizations)
			r.Post("/", rt.CreateOrganization)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", rt.GetOrganization)
				r.Put("/credentials", rt.UpdateCredentials)
				r.Put("/status", rt.UpdateStatus)
				r.Get("/health", rt.OrganizationHealth)
				r.Get("/jobs", rt.ListJobs)
				r.Post("/sync", rt.TriggerOrganizationSync)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
