// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pledgeline/pledgeline/internal/logging"
	"github.com/pledgeline/pledgeline/internal/middleware"
)

// RequestLogging logs one structured line per request with method, path,
// status, size, and duration. Credential material never appears in request
// URLs by API design, so logging the path is safe.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logging.Info().
				Str("request_id", middleware.GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}
