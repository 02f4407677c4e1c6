// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/database"
	"github.com/pledgeline/pledgeline/internal/logging"
	"github.com/pledgeline/pledgeline/internal/metrics"
	"github.com/pledgeline/pledgeline/internal/models"
)

// Result accumulates the outcome of one entity sync run. Counts are
// cumulative across the skip-ledger replay and all fetched pages.
type Result struct {
	Mode      string
	Pages     int
	Processed int
	Succeeded int
	Skipped   int
	Failed    int

	// WrittenIDs are the source ids actually written this run; exactly these
	// rows get their last_sync_at stamped at the end.
	WrittenIDs []int64
}

// Engine streams one entity type of one organization from the platform into
// the local store. Memory stays bounded: one page is resident at a time and
// each record is applied before the next page is fetched.
type Engine struct {
	client  Client
	repo    database.EntityRepository
	db      *database.DB
	cfg     *config.SyncConfig
	limiter *rate.Limiter
}

// NewEngine builds an engine for one entity repository. The limiter paces
// page fetches at one per configured PageDelay.
func NewEngine(client Client, repo database.EntityRepository, db *database.DB, cfg *config.SyncConfig) *Engine {
	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &Engine{
		client:  client,
		repo:    repo,
		db:      db,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run executes one sync pass. Under SyncModeAuto the stored cursor decides:
// incremental when prior sync state exists, full otherwise. SyncModeFull
// ignores the cursor; SyncModeIncremental degrades to full when no cursor
// exists yet. A fatal error (fetch failure, cancellation) returns the partial
// result alongside the error; per-record failures only count.
func (e *Engine) Run(ctx context.Context, org *models.Organization, mode string) (*Result, error) {
	entity := e.repo.EntityType()
	collection := string(entity)

	var since *time.Time
	if mode != models.SyncModeFull {
		s, err := e.repo.LastSyncTime(ctx, org.ID)
		if err != nil {
			return &Result{Mode: models.SyncModeFull}, err
		}
		since = s
	}

	result := &Result{Mode: models.SyncModeIncremental}
	if since == nil {
		result.Mode = models.SyncModeFull
	}

	log := logging.With().
		Int64("organization_id", org.ID).
		Str("entity_type", collection).
		Str("mode", result.Mode).
		Logger()
	log.Info().Msg("Starting entity sync")

	// Records held back on earlier runs are replayed from the ledger first.
	// Their references may have landed since; and under incremental
	// filtering the platform will not serve them again.
	if err := e.replayPendingSkips(ctx, org, result); err != nil {
		return result, err
	}

	if err := e.walkPages(ctx, org, since, result, &log); err != nil {
		return result, err
	}

	if err := e.repo.RecordSyncCompletion(ctx, org.ID, result.WrittenIDs); err != nil {
		return result, err
	}

	log.Info().
		Int("pages", result.Pages).
		Int("processed", result.Processed).
		Int("succeeded", result.Succeeded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Entity sync finished")
	return result, nil
}

// walkPages fetches page 1..last_page, applying each record as it arrives.
func (e *Engine) walkPages(ctx context.Context, org *models.Organization, since *time.Time, result *Result, log *zerolog.Logger) error {
	entity := e.repo.EntityType()
	collection := string(entity)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		fetched, err := e.client.FetchPage(ctx, collection, page, since)
		if err != nil {
			return fmt.Errorf("failed to fetch %s page %d: %w", collection, page, err)
		}
		result.Pages++
		metrics.SyncPagesFetched.WithLabelValues(collection).Inc()
		metrics.SyncPageSize.Observe(float64(len(fetched.Data)))

		for _, raw := range fetched.Data {
			e.applyRecord(ctx, org, raw, result, log)
		}

		if e.cfg.ProgressPages > 0 && result.Pages%e.cfg.ProgressPages == 0 {
			log.Info().
				Int("page", fetched.CurrentPage).
				Int("last_page", fetched.LastPage).
				Int("processed", result.Processed).
				Msg("Sync progress")
		}

		if result.Mode == models.SyncModeFull && e.cfg.FullSyncRecordCap > 0 &&
			result.Processed >= e.cfg.FullSyncRecordCap {
			log.Warn().
				Int("cap", e.cfg.FullSyncRecordCap).
				Int("processed", result.Processed).
				Msg("Full sync record cap reached, stopping early")
			return nil
		}

		if !fetched.HasMore() || len(fetched.Data) == 0 {
			return nil
		}
	}
}

// applyRecord upserts one raw record and updates counters, the skip ledger,
// and metrics. Never returns: per-record problems must not abort the page
// walk.
func (e *Engine) applyRecord(ctx context.Context, org *models.Organization, raw json.RawMessage, result *Result, log *zerolog.Logger) {
	entity := e.repo.EntityType()
	collection := string(entity)
	result.Processed++

	upserted, err := e.repo.Upsert(ctx, org.ID, raw)
	switch {
	case err != nil:
		result.Failed++
		metrics.SyncRecordsFailed.WithLabelValues(collection).Inc()
		if result.Failed <= e.cfg.ErrorLogLimit {
			log.Error().Err(err).Msg("Record failed to apply")
		}

	case upserted.Skipped:
		e.recordSkip(ctx, org, upserted, raw, result, log)

	default:
		result.Succeeded++
		result.WrittenIDs = append(result.WrittenIDs, upserted.ID)
		metrics.SyncRecordsUpserted.WithLabelValues(collection).Inc()
	}
}

// recordSkip writes the held-back record to the ledger. A record that has
// been skipped MaxSkipCount times is demoted to a hard failure and dropped
// from the ledger: its reference is permanently dangling on the platform
// side and retrying forever would hide the inconsistency.
func (e *Engine) recordSkip(ctx context.Context, org *models.Organization, upserted database.UpsertResult, raw json.RawMessage, result *Result, log *zerolog.Logger) {
	entity := e.repo.EntityType()
	collection := string(entity)

	count, err := e.db.RecordSkip(ctx, org.ID, entity, upserted.ID, upserted.Reason, raw)
	if err != nil {
		result.Failed++
		metrics.SyncRecordsFailed.WithLabelValues(collection).Inc()
		log.Error().Err(err).Int64("record_id", upserted.ID).Msg("Failed to record skip")
		return
	}

	if e.cfg.MaxSkipCount > 0 && count >= e.cfg.MaxSkipCount {
		if err := e.db.ClearSkip(ctx, org.ID, entity, upserted.ID); err != nil {
			log.Error().Err(err).Int64("record_id", upserted.ID).Msg("Failed to clear exhausted skip")
		}
		result.Failed++
		metrics.SyncRecordsFailed.WithLabelValues(collection).Inc()
		log.Error().
			Int64("record_id", upserted.ID).
			Str("reason", upserted.Reason).
			Int("skip_count", count).
			Msg("Record exhausted its skip budget")
		return
	}

	result.Skipped++
	metrics.SyncRecordsSkipped.WithLabelValues(collection, upserted.Reason).Inc()
	log.Debug().
		Int64("record_id", upserted.ID).
		Str("reason", upserted.Reason).
		Int("skip_count", count).
		Msg("Record skipped")
}

// replayPendingSkips re-applies ledger entries from their stored payloads.
func (e *Engine) replayPendingSkips(ctx context.Context, org *models.Organization, result *Result) error {
	entity := e.repo.EntityType()
	collection := string(entity)

	pending, err := e.db.PendingSkips(ctx, org.ID, entity)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	log := logging.With().
		Int64("organization_id", org.ID).
		Str("entity_type", collection).
		Logger()
	log.Info().Int("pending", len(pending)).Msg("Replaying held-back records")

	for _, skip := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Processed++

		upserted, err := e.repo.Upsert(ctx, org.ID, skip.Payload)
		switch {
		case err != nil:
			result.Failed++
			metrics.SyncRecordsFailed.WithLabelValues(collection).Inc()
			if result.Failed <= e.cfg.ErrorLogLimit {
				log.Error().Err(err).Int64("record_id", skip.RecordID).Msg("Held-back record failed to apply")
			}

		case upserted.Skipped:
			e.recordSkip(ctx, org, upserted, skip.Payload, result, &log)

		default:
			result.Succeeded++
			result.WrittenIDs = append(result.WrittenIDs, upserted.ID)
			metrics.SyncRecordsUpserted.WithLabelValues(collection).Inc()
			if err := e.db.ClearSkip(ctx, org.ID, entity, skip.RecordID); err != nil {
				log.Error().Err(err).Int64("record_id", skip.RecordID).Msg("Failed to clear applied skip")
			}
		}
	}
	return nil
}
