// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package platform defines the wire types for the fundraising platform's
// REST API. Field names here mirror the source schema verbatim; the entity
// repositories own the mapping to local column names, so source-side renames
// are absorbed in exactly one place.
package platform

import (
	"fmt"
	"time"
)

// TimeLayout is the date-time format the platform requires in filter
// expressions and emits in payloads: no fractional seconds, numeric zone
// offset, no "Z" suffix. Both fractional seconds and "Z" are rejected by the
// platform's filter parser.
const TimeLayout = "2006-01-02T15:04:05-0700"

// altTimeLayouts are accepted on decode only. The platform has emitted
// RFC3339 variants in payloads across API versions while the filter parser
// stayed strict.
var altTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time is a nullable platform timestamp. Zero value means absent.
type Time struct {
	time.Time
}

// UnmarshalJSON parses a platform timestamp, tolerating null, empty strings,
// and the layout drift the platform has shipped over the years.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid timestamp %s", s)
	}
	s = s[1 : len(s)-1]

	if parsed, err := time.Parse(TimeLayout, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range altTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// MarshalJSON emits the strict platform layout, or null when absent.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(TimeLayout) + `"`), nil
}

// Ptr returns the timestamp as *time.Time, nil when absent.
func (t Time) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	tt := t.Time
	return &tt
}

// FormatFilterTime renders a timestamp for a server-side filter expression.
// The value is NOT percent-encoded here; encoding happens exactly once, in
// the transport layer's query serialization.
func FormatFilterTime(t time.Time) string {
	return t.Format(TimeLayout)
}
