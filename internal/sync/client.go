// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package sync implements the replication pipeline from the fundraising
// platform's REST API into the local store: the authenticated page-walking
// client, the per-entity streaming engine, the per-organization orchestrator,
// and the periodic scheduler.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/credentials"
	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models/platform"
)

// ErrAuthFailed marks a credential rejection by the platform. Fatal for the
// whole organization run: every subsequent request would fail the same way.
var ErrAuthFailed = errors.New("platform rejected credentials")

// Client fetches one page of one organization-scoped collection. The API is
// cursor-less; callers walk page numbers from 1. A non-nil since narrows the
// listing server-side to records modified at or after that instant.
type Client interface {
	FetchPage(ctx context.Context, collection string, page int, since *time.Time) (*platform.Page, error)
}

// PlatformClient is the HTTP implementation of Client, bound to one
// organization's credentials for its lifetime.
//
// Features:
//   - OAuth2 client-credentials token handling with early refresh
//   - Automatic retry with exponential backoff on HTTP 429 and 5xx
//   - Retry-After honored when the platform sends it
//
// Thread safety: safe for concurrent use; the token source serializes
// refreshes internally.
type PlatformClient struct {
	baseURL        string
	orgExternalID  string
	client         *http.Client
	pageSize       int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewPlatformClient builds a client for one organization. Credentials are
// resolved by the caller exactly once per run and fixed here; a mid-run
// credential rotation takes effect on the next run.
func NewPlatformClient(cfg *config.PlatformConfig, orgExternalID string, creds credentials.Credentials) *PlatformClient {
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// Count actual token fetches, then cache with an early-refresh margin so
	// a token never expires mid-page-walk.
	var ts oauth2.TokenSource = &countingTokenSource{inner: cc.TokenSource(context.Background())}
	ts = oauth2.ReuseTokenSourceWithExpiry(nil, ts, cfg.TokenRefreshMargin)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &PlatformClient{
		baseURL:       cfg.BaseURL,
		orgExternalID: orgExternalID,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts},
		},
		pageSize:       cfg.PageSize,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// countingTokenSource increments the refresh counter on each real token fetch.
type countingTokenSource struct {
	inner oauth2.TokenSource
}

func (s *countingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.inner.Token()
	if err != nil {
		// Only a definitive rejection (4xx from the token endpoint) is fatal
		// auth; a flaky endpoint or network failure is retried like any
		// transport error.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return nil, err
	}
	metrics.TokenRefreshes.Inc()
	return tok, nil
}

// FetchPage implements Client.
//
// The filter expression is set raw into url.Values; percent-encoding happens
// exactly once, in Encode(). Pre-encoding the timestamp would double-encode
// the zone offset's "+" and silently return an unfiltered listing.
func (c *PlatformClient) FetchPage(ctx context.Context, collection string, page int, since *time.Time) (*platform.Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))
	if since != nil {
		params.Set("filter", platform.TimestampField(collection)+">="+platform.FormatFilterTime(*since))
	}

	reqURL := fmt.Sprintf("%s/organizations/%s/%s?%s", c.baseURL, url.PathEscape(c.orgExternalID), collection, params.Encode())

	start := time.Now()
	resp, err := c.doRequestWithRetry(ctx, collection, reqURL)
	metrics.APIRequestDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(collection, "http").Inc()
		return nil, fmt.Errorf("failed to read %s page %d: %w", collection, page, err)
	}

	var result platform.Page
	if err := json.Unmarshal(body, &result); err != nil {
		metrics.APIRequestErrors.WithLabelValues(collection, "decode").Inc()
		return nil, fmt.Errorf("failed to decode %s page %d: %w", collection, page, err)
	}
	return &result, nil
}

// doRequestWithRetry performs a GET with automatic retry on HTTP 429 and 5xx.
// Backoff doubles per attempt from the configured base; a Retry-After header
// overrides the computed delay. Auth rejections are never retried.
func (c *PlatformClient) doRequestWithRetry(ctx context.Context, collection, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, ErrAuthFailed) {
				metrics.APIRequestErrors.WithLabelValues(collection, "auth").Inc()
				return nil, err
			}
			// Transport errors are retried like 5xx.
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
		} else {
			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				_ = resp.Body.Close()
				metrics.APIRequestErrors.WithLabelValues(collection, "auth").Inc()
				return nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
			case resp.StatusCode == http.StatusTooManyRequests:
				metrics.APIRequestErrors.WithLabelValues(collection, "rate_limit").Inc()
				lastErr = fmt.Errorf("rate limited (HTTP 429)")
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("platform error (HTTP %d)", resp.StatusCode)
			default:
				return resp, nil
			}
			// Retry-After overrides the computed backoff (RFC 6585).
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
					delay = time.Duration(seconds) * time.Second
				}
			}
			_ = resp.Body.Close()
		}

		if attempt == c.maxRetries {
			break
		}
		metrics.APIRetries.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	metrics.APIRequestErrors.WithLabelValues(collection, "http").Inc()
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
