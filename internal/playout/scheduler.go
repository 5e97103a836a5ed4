/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/lofield/internal/archive"
	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/db"
	"github.com/friendsincode/lofield/internal/segmentsource"
	"github.com/friendsincode/lofield/internal/stream"
	"github.com/friendsincode/lofield/internal/telemetry"
)

// Scheduler is the liveness-critical control loop: it polls the segment
// source, keeps the stream composer fed, and hands currently-airing segments
// to the archive. One cooperative loop drives everything; concurrency exists
// only inside the archive's bounded batch operations.
type Scheduler struct {
	cfg      *config.Config
	source   segmentsource.Source
	composer *stream.Composer
	archive  *archive.Index
	dbHandle *gorm.DB
	logger   zerolog.Logger
	runID    string

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	watermark   time.Time
	lastCleanup time.Time
}

// Health is a read-only snapshot assembled for operators.
type Health struct {
	Status            string        `json:"status"`
	RunID             string        `json:"run_id"`
	IsStreaming       bool          `json:"is_streaming"`
	LastProcessedTime time.Time     `json:"last_processed_time"`
	Archive           archive.Stats `json:"archive"`
}

// NewScheduler wires the playout control loop. dbHandle may be nil in tests;
// when set it is closed on Stop.
func NewScheduler(cfg *config.Config, source segmentsource.Source, composer *stream.Composer, idx *archive.Index, dbHandle *gorm.DB, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		source:   source,
		composer: composer,
		archive:  idx,
		dbHandle: dbHandle,
		logger:   logger.With().Str("component", "playout").Logger(),
		runID:    uuid.NewString(),
	}
}

// Start initializes the composer and archive, then runs the control loop
// until the context is cancelled or Stop is called. Initialization failures
// are fatal: without writable output and archive roots the service cannot
// run. Per-iteration failures are logged and never kill the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.composer.Initialize(); err != nil {
		return fmt.Errorf("initialize stream composer: %w", err)
	}
	if err := s.archive.Initialize(); err != nil {
		return fmt.Errorf("initialize archive: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.running = true
	s.cancel = cancel
	s.watermark = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info().
		Str("run_id", s.runID).
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("lookahead", s.cfg.LookaheadWindow()).
		Msg("playout loop started")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("playout loop stopped")
			return ctx.Err()
		case <-ticker.C:
			telemetry.PlayoutTicksTotal.Inc()
			if err := s.ProcessPendingSegments(ctx); err != nil {
				telemetry.PlayoutErrorsTotal.WithLabelValues("process_pending").Inc()
				s.logger.Error().Err(err).Msg("playout tick failed")
			}
			s.maybeCleanup(ctx)
		}
	}
}

// ProcessPendingSegments runs one scheduling cycle: query the lookahead
// window from the watermark, start the stream if none is active, archive
// whatever is airing right now, advance the watermark. A bad segment never
// aborts the batch.
func (s *Scheduler) ProcessPendingSegments(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "playout", "ProcessPendingSegments")
	defer span.End()

	now := time.Now().UTC()
	from := s.Watermark()
	if from.Before(now) {
		from = now
	}
	windowEnd := now.Add(s.cfg.LookaheadWindow())

	segments, err := s.source.ScheduledInWindow(ctx, from, windowEnd)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("query segment source: %w", err)
	}
	if len(segments) == 0 {
		s.logger.Debug().Time("from", from).Time("to", windowEnd).Msg("no pending segments")
		return nil
	}

	if !s.composer.IsStreaming() {
		if err := s.composer.StartStream(ctx, segments); err != nil {
			// Keep archiving even when the encoder will not start.
			telemetry.PlayoutErrorsTotal.WithLabelValues("start_stream").Inc()
			s.logger.Error().Err(err).Msg("failed to start stream")
		}
	}

	for _, seg := range segments {
		if !seg.PlayingAt(now) {
			continue
		}
		opErr := s.archive.ArchiveSegment(archive.ArchiveRequest{
			SourcePath:      seg.FilePath,
			Timestamp:       seg.StartTime,
			DurationSeconds: seg.Duration().Seconds(),
			ShowID:          seg.ShowID,
			SegmentType:     seg.Type,
			SegmentID:       seg.ID,
			TrackID:         seg.TrackID,
		})
		if opErr != nil {
			telemetry.PlayoutErrorsTotal.WithLabelValues("archive_segment").Inc()
			s.logger.Warn().
				Err(opErr).
				Str("segment", seg.ID).
				Str("kind", string(opErr.Kind)).
				Msg("segment archiving failed")
		}
	}

	// Advance past the whole fetched batch, currently-airing or not, so the
	// same window is never re-processed.
	last := segments[len(segments)-1]
	s.advanceWatermark(last.EndTime)

	s.logger.Debug().
		Int("segments", len(segments)).
		Time("watermark", s.Watermark()).
		Msg("processed pending segments")
	return nil
}

// Stop halts the loop, stops the active stream, and releases the shared
// database handle. Calling Stop when already stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := s.composer.StopStream(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop stream")
	}
	if s.dbHandle != nil {
		if err := db.Close(s.dbHandle); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close database")
		}
	}
	s.logger.Info().Msg("playout scheduler stopped")
}

// GetHealth assembles a side-effect-free snapshot of the engine's state.
func (s *Scheduler) GetHealth(ctx context.Context) Health {
	s.mu.Lock()
	running := s.running
	watermark := s.watermark
	s.mu.Unlock()

	status := "stopped"
	if running {
		status = "running"
	}
	return Health{
		Status:            status,
		RunID:             s.runID,
		IsStreaming:       s.composer.IsStreaming(),
		LastProcessedTime: watermark,
		Archive:           s.archive.GetStats(ctx),
	}
}

// Watermark returns the end of the most recently processed batch.
func (s *Scheduler) Watermark() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// SetWatermark seeds the watermark; exported for tests and resume tooling.
func (s *Scheduler) SetWatermark(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = t
}

func (s *Scheduler) advanceWatermark(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.watermark) {
		s.watermark = t
	}
}

// maybeCleanup triggers a retention sweep at most once per cleanup interval.
func (s *Scheduler) maybeCleanup(ctx context.Context) {
	s.mu.Lock()
	if time.Since(s.lastCleanup) < s.cfg.CleanupInterval {
		s.mu.Unlock()
		return
	}
	s.lastCleanup = time.Now()
	s.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "playout", "CleanupOldArchives")
	defer span.End()
	s.archive.CleanupOldArchives(ctx)
}
