// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package middleware provides HTTP middleware shared by the API layer:
// request ID propagation, gzip compression, and Prometheus request
// instrumentation. All middleware use the standard chi shape
// (func(http.Handler) http.Handler) so they compose with the router's
// built-in stack.
package middleware
