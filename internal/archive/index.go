/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/lofield/internal/models"
	"github.com/friendsincode/lofield/internal/telemetry"
)

const (
	// deleteBatchSize bounds concurrent file deletions during cleanup.
	deleteBatchSize = 10
	// statBatchSize bounds concurrent stat calls when computing stats.
	statBatchSize = 20

	defaultQueryMinutes = 60
)

// Index is the durable, queryable record of aired segments. Archived copies
// live under a four-level UTC date hierarchy; the JSON catalog is the sole
// authority for query results. One Index owns its catalog exclusively: the
// single-writer deployment model is a hard constraint, not a convention.
type Index struct {
	root          string
	retentionDays int
	logger        zerolog.Logger

	mu      sync.RWMutex
	entries []Entry
}

// ArchiveRequest identifies one aired segment to capture.
type ArchiveRequest struct {
	SourcePath      string
	Timestamp       time.Time
	DurationSeconds float64
	ShowID          string
	SegmentType     models.SegmentType
	SegmentID       string
	TrackID         string
}

// Stats summarises the archive for health reporting.
type Stats struct {
	TotalSegments  int        `json:"total_segments"`
	OldestSegment  *time.Time `json:"oldest_segment"`
	NewestSegment  *time.Time `json:"newest_segment"`
	TotalSizeBytes int64      `json:"total_size_bytes"`
}

// NewIndex creates an archive index rooted at root.
func NewIndex(root string, retentionDays int, logger zerolog.Logger) *Index {
	return &Index{
		root:          root,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "archive").Logger(),
	}
}

// Initialize ensures the archive root exists and loads the persisted catalog.
// A missing or corrupt catalog means "start empty"; an unwritable root is the
// one fatal condition, because nothing can be archived without it.
func (ix *Index) Initialize() error {
	if err := os.MkdirAll(ix.root, 0755); err != nil {
		return fmt.Errorf("create archive root: %w", err)
	}

	entries, ok := loadCatalog(ix.root)
	if !ok {
		if err := saveCatalog(ix.root, []Entry{}); err != nil {
			return fmt.Errorf("persist empty catalog: %w", err)
		}
		ix.logger.Info().Str("root", ix.root).Msg("archive catalog initialized empty")
	} else {
		ix.logger.Info().Str("root", ix.root).Int("entries", len(entries)).Msg("archive catalog loaded")
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()
	telemetry.ArchiveSegments.Set(float64(len(entries)))
	return nil
}

// ArchiveSegment copies one aired segment into the date-partitioned store and
// records it in the catalog. Best-effort by contract: a failure is returned
// as a classified *OpError for the caller to log, never as an interruption
// of playout. Re-archiving a segment already in the catalog is a no-op.
func (ix *Index) ArchiveSegment(req ArchiveRequest) *OpError {
	if ix.hasSegment(req.SegmentID) {
		ix.logger.Debug().Str("segment", req.SegmentID).Msg("segment already archived, skipping")
		return nil
	}

	if _, err := os.Stat(req.SourcePath); err != nil {
		telemetry.ArchiveFailuresTotal.WithLabelValues(string(KindMissingSource)).Inc()
		return opErr(KindMissingSource, req.SegmentID, req.SourcePath, err)
	}

	destPath := ix.archivePath(req.Timestamp, req.SegmentType, filepath.Ext(req.SourcePath))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		telemetry.ArchiveFailuresTotal.WithLabelValues(string(KindCopyFailed)).Inc()
		return opErr(KindCopyFailed, req.SegmentID, destPath, err)
	}
	if err := copyFile(req.SourcePath, destPath); err != nil {
		telemetry.ArchiveFailuresTotal.WithLabelValues(string(KindCopyFailed)).Inc()
		return opErr(KindCopyFailed, req.SegmentID, destPath, err)
	}

	entry := Entry{
		Timestamp:       req.Timestamp.UTC(),
		ArchivedPath:    destPath,
		DurationSeconds: req.DurationSeconds,
		ShowID:          req.ShowID,
		SegmentType:     req.SegmentType,
		SegmentID:       req.SegmentID,
		TrackID:         req.TrackID,
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	next := append(append([]Entry{}, ix.entries...), entry)
	if err := saveCatalog(ix.root, next); err != nil {
		// The copied file becomes an orphan; the catalog stays authoritative.
		telemetry.ArchiveFailuresTotal.WithLabelValues(string(KindPersistFailed)).Inc()
		return opErr(KindPersistFailed, req.SegmentID, destPath, err)
	}
	ix.entries = next
	telemetry.SegmentsArchivedTotal.Inc()
	telemetry.ArchiveSegments.Set(float64(len(next)))

	ix.logger.Info().
		Str("segment", req.SegmentID).
		Str("show", req.ShowID).
		Str("type", string(req.SegmentType)).
		Str("path", destPath).
		Msg("segment archived")
	return nil
}

// SegmentsForTimeRange returns entries with start <= timestamp <= end,
// ascending by timestamp. Offset skips from the filtered, sorted set before
// limit caps the remainder; limit <= 0 means unlimited.
func (ix *Index) SegmentsForTimeRange(start, end time.Time, limit, offset int) []Entry {
	return ix.query(func(e Entry) bool {
		return !e.Timestamp.Before(start) && !e.Timestamp.After(end)
	}, limit, offset)
}

// SegmentsFromTimestamp is sugar over the range query: a window of
// durationMinutes (default 60) starting at ts.
func (ix *Index) SegmentsFromTimestamp(ts time.Time, durationMinutes, limit, offset int) []Entry {
	if durationMinutes <= 0 {
		durationMinutes = defaultQueryMinutes
	}
	return ix.SegmentsForTimeRange(ts, ts.Add(time.Duration(durationMinutes)*time.Minute), limit, offset)
}

// SegmentsForShow returns entries for a show on one UTC calendar date. The
// match is exact-day (year/month/day), not a 24 hour window.
func (ix *Index) SegmentsForShow(showID string, date time.Time, limit, offset int) []Entry {
	y, m, d := date.UTC().Date()
	return ix.query(func(e Entry) bool {
		ey, em, ed := e.Timestamp.UTC().Date()
		return e.ShowID == showID && ey == y && em == m && ed == d
	}, limit, offset)
}

func (ix *Index) query(match func(Entry) bool, limit, offset int) []Entry {
	ix.mu.RLock()
	filtered := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		if match(e) {
			filtered = append(filtered, e)
		}
	}
	ix.mu.RUnlock()

	// The catalog may be appended out of chronological order; sort per query.
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	if offset > 0 {
		if offset >= len(filtered) {
			return []Entry{}
		}
		filtered = filtered[offset:]
	}
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered
}

// CleanupOldArchives deletes archived files older than the retention period
// in bounded-concurrency batches, drops only confirmed deletions from the
// catalog, and prunes date directories left empty. Failed deletions stay in
// the catalog so a future sweep retries them. Never returns an error.
func (ix *Index) CleanupOldArchives(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -ix.retentionDays)

	ix.mu.RLock()
	var doomed, keep []Entry
	for _, e := range ix.entries {
		if e.Timestamp.Before(cutoff) {
			doomed = append(doomed, e)
		} else {
			keep = append(keep, e)
		}
	}
	ix.mu.RUnlock()

	if len(doomed) == 0 {
		return
	}

	ix.logger.Info().
		Time("cutoff", cutoff).
		Int("candidates", len(doomed)).
		Msg("archive cleanup started")

	deleted := make([]bool, len(doomed))
	for base := 0; base < len(doomed); base += deleteBatchSize {
		endIdx := base + deleteBatchSize
		if endIdx > len(doomed) {
			endIdx = len(doomed)
		}
		g, _ := errgroup.WithContext(ctx)
		for i := base; i < endIdx; i++ {
			i := i
			g.Go(func() error {
				err := os.Remove(doomed[i].ArchivedPath)
				if err != nil && !os.IsNotExist(err) {
					telemetry.ArchiveFailuresTotal.WithLabelValues(string(KindDeleteFailed)).Inc()
					ix.logger.Warn().Err(err).
						Str("segment", doomed[i].SegmentID).
						Str("path", doomed[i].ArchivedPath).
						Msg("failed to delete archived file")
					return nil
				}
				deleted[i] = true
				return nil
			})
		}
		_ = g.Wait()
	}

	deletedCount := 0
	for i, e := range doomed {
		if deleted[i] {
			deletedCount++
		} else {
			keep = append(keep, e)
		}
	}

	ix.mu.Lock()
	if err := saveCatalog(ix.root, keep); err != nil {
		ix.mu.Unlock()
		telemetry.ArchiveFailuresTotal.WithLabelValues(string(KindPersistFailed)).Inc()
		ix.logger.Error().Err(err).Msg("failed to persist catalog after cleanup")
		return
	}
	ix.entries = keep
	ix.mu.Unlock()

	ix.pruneEmptyDirs()

	telemetry.ArchiveCleanupDeletedTotal.Add(float64(deletedCount))
	telemetry.ArchiveSegments.Set(float64(len(keep)))
	ix.logger.Info().
		Int("deleted", deletedCount).
		Int("failed", len(doomed)-deletedCount).
		Int("remaining", len(keep)).
		Msg("archive cleanup finished")
}

// GetStats reports catalog totals. File sizes are gathered with bounded
// concurrency; a file that cannot be stat-ed contributes zero rather than
// failing the call.
func (ix *Index) GetStats(ctx context.Context) Stats {
	ix.mu.RLock()
	entries := make([]Entry, len(ix.entries))
	copy(entries, ix.entries)
	ix.mu.RUnlock()

	stats := Stats{TotalSegments: len(entries)}
	if len(entries) == 0 {
		return stats
	}

	sizes := make([]int64, len(entries))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(statBatchSize)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if info, err := os.Stat(e.ArchivedPath); err == nil {
				sizes[i] = info.Size()
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, s := range sizes {
		stats.TotalSizeBytes += s
	}

	// The catalog list is not kept sorted; derive oldest/newest here.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	oldest := entries[0].Timestamp
	newest := entries[len(entries)-1].Timestamp
	stats.OldestSegment = &oldest
	stats.NewestSegment = &newest
	return stats
}

func (ix *Index) hasSegment(segmentID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, e := range ix.entries {
		if e.SegmentID == segmentID {
			return true
		}
	}
	return false
}

// archivePath computes the deterministic storage location for a segment:
// {root}/{YYYY}/{MM}/{DD}/{HH}/{type}_{epochMillis}{ext}. The layout is a
// durable contract; the web layer reconstructs URLs from it.
func (ix *Index) archivePath(ts time.Time, segType models.SegmentType, ext string) string {
	utc := ts.UTC()
	return filepath.Join(
		ix.root,
		fmt.Sprintf("%04d", utc.Year()),
		fmt.Sprintf("%02d", int(utc.Month())),
		fmt.Sprintf("%02d", utc.Day()),
		fmt.Sprintf("%02d", utc.Hour()),
		fmt.Sprintf("%s_%d%s", segType, utc.UnixMilli(), ext),
	)
}

// pruneEmptyDirs removes date directories left empty by a sweep, deepest
// level first so emptied parents collapse too.
func (ix *Index) pruneEmptyDirs() {
	years, err := os.ReadDir(ix.root)
	if err != nil {
		return
	}
	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		yearPath := filepath.Join(ix.root, year.Name())
		months, _ := os.ReadDir(yearPath)
		for _, month := range months {
			monthPath := filepath.Join(yearPath, month.Name())
			days, _ := os.ReadDir(monthPath)
			for _, day := range days {
				dayPath := filepath.Join(monthPath, day.Name())
				hours, _ := os.ReadDir(dayPath)
				for _, hour := range hours {
					removeIfEmpty(filepath.Join(dayPath, hour.Name()))
				}
				removeIfEmpty(dayPath)
			}
			removeIfEmpty(monthPath)
		}
		removeIfEmpty(yearPath)
	}
}

func removeIfEmpty(path string) {
	if contents, err := os.ReadDir(path); err == nil && len(contents) == 0 {
		_ = os.Remove(path)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}
