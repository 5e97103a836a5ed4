package playout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/lofield/internal/archive"
	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/models"
	"github.com/friendsincode/lofield/internal/stream"
)

// fakeSource returns a canned batch and records each query window.
type fakeSource struct {
	segments []models.Segment
	err      error
	froms    []time.Time
	tos      []time.Time
}

func (f *fakeSource) ScheduledInWindow(ctx context.Context, start, end time.Time) ([]models.Segment, error) {
	f.froms = append(f.froms, start)
	f.tos = append(f.tos, end)
	return f.segments, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StreamOutputDir:    filepath.Join(t.TempDir(), "stream"),
		HLSSegmentDuration: 10 * time.Second,
		HLSListSize:        6,
		AudioBitrate:       128,
		AudioSampleRate:    44100,
		AudioChannels:      2,
		// Nonexistent binary: stream start fails, playout must carry on.
		FFmpegBin:            filepath.Join(t.TempDir(), "no-such-ffmpeg"),
		ArchiveRoot:          filepath.Join(t.TempDir(), "archive"),
		ArchiveRetentionDays: 30,
		CleanupInterval:      6 * time.Hour,
		PollInterval:         30 * time.Second,
	}
}

func testScheduler(t *testing.T, source *fakeSource) (*Scheduler, *archive.Index) {
	t.Helper()
	cfg := testConfig(t)
	composer := stream.NewComposer(cfg, zerolog.Nop())
	idx := archive.NewIndex(cfg.ArchiveRoot, cfg.ArchiveRetentionDays, zerolog.Nop())
	if err := composer.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := idx.Initialize(); err != nil {
		t.Fatal(err)
	}
	return NewScheduler(cfg, source, composer, idx, nil, zerolog.Nop()), idx
}

func airingSegment(t *testing.T, id string, now time.Time) models.Segment {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".mp3")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return models.Segment{
		ID:        id,
		FilePath:  path,
		Type:      models.SegmentTypeMusic,
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(2 * time.Minute),
		ShowID:    "show-a",
	}
}

func futureSegment(id string, now time.Time) models.Segment {
	return models.Segment{
		ID:        id,
		FilePath:  "/media/" + id + ".mp3",
		Type:      models.SegmentTypeTalk,
		StartTime: now.Add(10 * time.Minute),
		EndTime:   now.Add(15 * time.Minute),
		ShowID:    "show-a",
	}
}

func TestProcessPendingSegmentsAdvancesWatermark(t *testing.T) {
	now := time.Now().UTC()
	batch := []models.Segment{airingSegment(t, "seg-1", now), futureSegment("seg-2", now)}
	source := &fakeSource{segments: batch}
	s, _ := testScheduler(t, source)
	s.SetWatermark(now)

	if err := s.ProcessPendingSegments(context.Background()); err != nil {
		t.Fatalf("ProcessPendingSegments failed: %v", err)
	}

	// Watermark lands on the end of the last fetched segment, airing or not.
	if got := s.Watermark(); !got.Equal(batch[1].EndTime) {
		t.Errorf("watermark = %v, want %v", got, batch[1].EndTime)
	}
}

func TestProcessPendingSegmentsDoesNotRefetch(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeSource{segments: []models.Segment{futureSegment("seg-1", now)}}
	s, _ := testScheduler(t, source)
	s.SetWatermark(now)

	if err := s.ProcessPendingSegments(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := s.Watermark()
	if err := s.ProcessPendingSegments(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(source.froms) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(source.froms))
	}
	// The second query starts at the advanced watermark: the consumed window
	// is never re-fetched.
	if source.froms[1].Before(first) {
		t.Errorf("second query from %v predates watermark %v", source.froms[1], first)
	}
}

func TestProcessPendingSegmentsEmptyWindow(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeSource{}
	s, _ := testScheduler(t, source)
	s.SetWatermark(now)

	if err := s.ProcessPendingSegments(context.Background()); err != nil {
		t.Fatalf("empty window must not error: %v", err)
	}
	if got := s.Watermark(); !got.Equal(now) {
		t.Errorf("watermark moved on empty window: %v", got)
	}
}

func TestProcessPendingSegmentsSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	s, _ := testScheduler(t, source)

	if err := s.ProcessPendingSegments(context.Background()); err == nil {
		t.Error("source failure should surface as an error")
	}
}

func TestProcessPendingSegmentsArchivesAiring(t *testing.T) {
	now := time.Now().UTC()
	airing := airingSegment(t, "seg-air", now)
	source := &fakeSource{segments: []models.Segment{airing, futureSegment("seg-later", now)}}
	s, idx := testScheduler(t, source)
	s.SetWatermark(now)

	// The encoder binary does not exist, so the stream start fails; the
	// airing segment must be archived anyway.
	if err := s.ProcessPendingSegments(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries := idx.SegmentsForTimeRange(now.Add(-time.Hour), now.Add(time.Hour), 0, 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 archived entry, got %d", len(entries))
	}
	if entries[0].SegmentID != "seg-air" {
		t.Errorf("archived %s, want seg-air", entries[0].SegmentID)
	}
}

func TestWatermarkNeverRegresses(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeSource{segments: []models.Segment{futureSegment("seg-1", now)}}
	s, _ := testScheduler(t, source)

	future := now.Add(time.Hour)
	s.SetWatermark(future)
	if err := s.ProcessPendingSegments(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The batch ends before the seeded watermark; it must stay put.
	if got := s.Watermark(); !got.Equal(future) {
		t.Errorf("watermark regressed to %v", got)
	}
}

func TestGetHealthStopped(t *testing.T) {
	s, _ := testScheduler(t, &fakeSource{})

	health := s.GetHealth(context.Background())
	if health.Status != "stopped" {
		t.Errorf("Status = %s, want stopped", health.Status)
	}
	if health.IsStreaming {
		t.Error("idle scheduler reports streaming")
	}
	if health.RunID == "" {
		t.Error("RunID empty")
	}
	if health.Archive.TotalSegments != 0 {
		t.Errorf("Archive.TotalSegments = %d, want 0", health.Archive.TotalSegments)
	}
}

func TestStopIdempotent(t *testing.T) {
	s, _ := testScheduler(t, &fakeSource{})
	// Never started: both calls are no-ops.
	s.Stop()
	s.Stop()
}
