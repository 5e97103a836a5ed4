/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/models"
	"github.com/friendsincode/lofield/internal/telemetry"
)

const (
	manifestName   = "live.m3u8"
	segmentPattern = "segment_%05d.ts"
)

// Composer maintains the continuously-playable HLS output for an ordered
// segment sequence. One encode process runs at a time: NotStreaming →
// Streaming on StartStream, back on StopStream or encoder exit. IsStreaming
// is the only externally observable probe.
type Composer struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu      sync.Mutex
	proc    *encodeProcess
	seq     int
	current []models.Segment
}

// NewComposer creates a stream composer.
func NewComposer(cfg *config.Config, logger zerolog.Logger) *Composer {
	l := logger.With().Str("component", "stream").Logger()
	return &Composer{
		cfg:    cfg,
		logger: l,
		proc:   newEncodeProcess(cfg.FFmpegBin, l),
	}
}

// Initialize ensures the stream output directory exists. Failure here is
// fatal to the service: nothing can be served without it.
func (c *Composer) Initialize() error {
	if err := os.MkdirAll(c.cfg.StreamOutputDir, 0755); err != nil {
		return fmt.Errorf("create stream output dir: %w", err)
	}
	return nil
}

// StartStream begins producing the live manifest and media segments from the
// given ordered segment list. Calling while a stream is already active is a
// no-op; the scheduler checks IsStreaming first, this guard keeps the state
// machine honest regardless.
func (c *Composer) StartStream(ctx context.Context, segments []models.Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to stream")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proc.Running() {
		return nil
	}

	// Prime the manifest so clients polling live.m3u8 see valid HLS before
	// the encoder writes its first chunk.
	primer := BuildLivePlaylist(nil, c.seq, int(c.cfg.HLSSegmentDuration.Seconds()), false)
	if err := os.WriteFile(c.manifestPath(), []byte(primer), 0644); err != nil {
		return fmt.Errorf("prime manifest: %w", err)
	}

	args := c.encodeArgs(segments)
	if err := c.proc.Start(ctx, args); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	c.seq++
	c.current = append([]models.Segment(nil), segments...)
	telemetry.StreamActive.Set(1)

	c.logger.Info().
		Int("segments", len(segments)).
		Str("first", segments[0].ID).
		Str("manifest", c.manifestPath()).
		Msg("stream started")
	return nil
}

// IsStreaming reports whether an active encode process is running.
func (c *Composer) IsStreaming() bool {
	streaming := c.proc.Running()
	if !streaming {
		telemetry.StreamActive.Set(0)
	}
	return streaming
}

// GetManifestPath returns the deterministic path of the live manifest.
func (c *Composer) GetManifestPath() string {
	return c.manifestPath()
}

// StopStream terminates the active encode process gracefully. Calling when
// not streaming is a no-op.
func (c *Composer) StopStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.proc.Running() {
		return nil
	}
	if err := c.proc.Stop(); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	c.current = nil
	telemetry.StreamActive.Set(0)
	c.logger.Info().Msg("stream stopped")
	return nil
}

func (c *Composer) manifestPath() string {
	return filepath.Join(c.cfg.StreamOutputDir, manifestName)
}

// encodeArgs assembles the full ffmpeg invocation: one input per segment,
// the crossfade filter graph when there is more than one, AAC encode at the
// configured rate, HLS muxer with a rolling window.
func (c *Composer) encodeArgs(segments []models.Segment) []string {
	args := []string{"-hide_banner", "-nostdin", "-re", "-y"}
	for _, seg := range segments {
		args = append(args, "-i", seg.FilePath)
	}

	filter := BuildCrossfadeFilter(c.cfg.Crossfade, segments)
	if filter != "" {
		args = append(args, "-filter_complex", filter, "-map", "[aout]")
	} else {
		args = append(args, "-map", "0:a")
	}

	args = append(args,
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", c.cfg.AudioBitrate),
		"-ar", strconv.Itoa(c.cfg.AudioSampleRate),
		"-ac", strconv.Itoa(c.cfg.AudioChannels),
		"-f", "hls",
		"-hls_time", strconv.Itoa(int(c.cfg.HLSSegmentDuration.Seconds())),
		"-hls_list_size", strconv.Itoa(c.cfg.HLSListSize),
		"-hls_flags", "delete_segments+append_list",
		"-start_number", strconv.Itoa(c.seq),
		"-hls_segment_filename", filepath.Join(c.cfg.StreamOutputDir, segmentPattern),
		c.manifestPath(),
	)
	return args
}
