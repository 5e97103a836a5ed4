/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// CrossfadeConfig holds the type-pair transition durations in seconds.
// Default is an independent fallback, not an alias of MusicToTalk, even
// though the two coincide numerically out of the box.
type CrossfadeConfig struct {
	MusicToMusic float64
	MusicToTalk  float64
	TalkToMusic  float64
	Default      float64
}

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	DBBackend DatabaseBackend
	DBDSN     string

	// Stream output
	StreamOutputDir    string
	HLSSegmentDuration time.Duration
	HLSListSize        int
	AudioBitrate       int // kbps
	AudioSampleRate    int // Hz
	AudioChannels      int
	FFmpegBin          string

	Crossfade CrossfadeConfig

	// Archive
	ArchiveRoot          string
	ArchiveRetentionDays int
	CleanupInterval      time.Duration

	// Scheduler
	PollInterval time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("LOFIELD_ENV", "development"),
		HTTPBind:    getEnv("LOFIELD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("LOFIELD_HTTP_PORT", 8080),

		DBBackend: DatabaseBackend(getEnv("LOFIELD_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("LOFIELD_DB_DSN", ""),

		StreamOutputDir:    getEnv("LOFIELD_STREAM_OUTPUT_DIR", "./stream"),
		HLSSegmentDuration: time.Duration(getEnvInt("LOFIELD_HLS_SEGMENT_SECONDS", 10)) * time.Second,
		HLSListSize:        getEnvInt("LOFIELD_HLS_LIST_SIZE", 6),
		AudioBitrate:       getEnvInt("LOFIELD_AUDIO_BITRATE_KBPS", 128),
		AudioSampleRate:    getEnvInt("LOFIELD_AUDIO_SAMPLE_RATE", 44100),
		AudioChannels:      getEnvInt("LOFIELD_AUDIO_CHANNELS", 2),
		FFmpegBin:          getEnv("LOFIELD_FFMPEG_BIN", "ffmpeg"),

		Crossfade: CrossfadeConfig{
			MusicToMusic: getEnvFloat("LOFIELD_CROSSFADE_MUSIC_MUSIC", 2.0),
			MusicToTalk:  getEnvFloat("LOFIELD_CROSSFADE_MUSIC_TALK", 1.0),
			TalkToMusic:  getEnvFloat("LOFIELD_CROSSFADE_TALK_MUSIC", 0.5),
			Default:      getEnvFloat("LOFIELD_CROSSFADE_DEFAULT", 1.0),
		},

		ArchiveRoot:          getEnv("LOFIELD_ARCHIVE_ROOT", "./archive"),
		ArchiveRetentionDays: getEnvInt("LOFIELD_ARCHIVE_RETENTION_DAYS", 30),
		CleanupInterval:      time.Duration(getEnvInt("LOFIELD_CLEANUP_INTERVAL_MINUTES", 360)) * time.Minute,

		PollInterval: time.Duration(getEnvInt("LOFIELD_POLL_INTERVAL_SECONDS", 30)) * time.Second,

		TracingEnabled:    getEnvBool("LOFIELD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("LOFIELD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("LOFIELD_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("LOFIELD_DB_DSN must be provided")
	}
	if cfg.HLSSegmentDuration <= 0 {
		return nil, fmt.Errorf("LOFIELD_HLS_SEGMENT_SECONDS must be positive")
	}
	if cfg.HLSListSize <= 0 {
		return nil, fmt.Errorf("LOFIELD_HLS_LIST_SIZE must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("LOFIELD_POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.ArchiveRetentionDays <= 0 {
		return nil, fmt.Errorf("LOFIELD_ARCHIVE_RETENTION_DAYS must be positive")
	}
	if err := validateCrossfade(cfg.Crossfade); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateCrossfade(cf CrossfadeConfig) error {
	for name, v := range map[string]float64{
		"LOFIELD_CROSSFADE_MUSIC_MUSIC": cf.MusicToMusic,
		"LOFIELD_CROSSFADE_MUSIC_TALK":  cf.MusicToTalk,
		"LOFIELD_CROSSFADE_TALK_MUSIC":  cf.TalkToMusic,
		"LOFIELD_CROSSFADE_DEFAULT":     cf.Default,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// LookaheadWindow is how far ahead the scheduler queries each cycle: enough
// to keep a full HLS playlist's worth of segments ready.
func (c *Config) LookaheadWindow() time.Duration {
	return time.Duration(c.HLSListSize) * c.HLSSegmentDuration
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
