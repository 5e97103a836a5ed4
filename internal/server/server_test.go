package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/lofield/internal/archive"
	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/playout"
	"github.com/friendsincode/lofield/internal/stream"
)

func testServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		StreamOutputDir:      filepath.Join(t.TempDir(), "stream"),
		HLSSegmentDuration:   10 * time.Second,
		HLSListSize:          6,
		FFmpegBin:            "ffmpeg",
		ArchiveRoot:          filepath.Join(t.TempDir(), "archive"),
		ArchiveRetentionDays: 30,
		CleanupInterval:      6 * time.Hour,
		PollInterval:         30 * time.Second,
	}
	composer := stream.NewComposer(cfg, zerolog.Nop())
	idx := archive.NewIndex(cfg.ArchiveRoot, cfg.ArchiveRetentionDays, zerolog.Nop())
	if err := idx.Initialize(); err != nil {
		t.Fatal(err)
	}
	scheduler := playout.NewScheduler(cfg, nil, composer, idx, nil, zerolog.Nop())
	return New(cfg, scheduler, zerolog.Nop()), cfg
}

func TestHealthzStopped(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while stopped", rec.Code)
	}

	var health playout.Health
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "stopped" {
		t.Errorf("Status = %s, want stopped", health.Status)
	}
	if health.IsStreaming {
		t.Error("idle engine reports streaming")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestStreamFilesServed(t *testing.T) {
	srv, cfg := testServer(t)
	if err := os.MkdirAll(cfg.StreamOutputDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := "#EXTM3U\n#EXT-X-VERSION:3\n"
	if err := os.WriteFile(filepath.Join(cfg.StreamOutputDir, "live.m3u8"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/live.m3u8", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != manifest {
		t.Errorf("body = %q, want the manifest", rec.Body.String())
	}
}
