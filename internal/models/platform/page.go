// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package platform

import "github.com/goccy/go-json"

// Page is one page of an organization-scoped collection listing. The API is
// cursor-less: callers walk CurrentPage from 1 to LastPage.
type Page struct {
	Data        []json.RawMessage `json:"data"`
	Total       int               `json:"total"`
	PerPage     int               `json:"per_page"`
	CurrentPage int               `json:"current_page"`
	LastPage    int               `json:"last_page"`
}

// HasMore reports whether pages remain after the current one.
func (p *Page) HasMore() bool {
	return p.CurrentPage < p.LastPage
}
