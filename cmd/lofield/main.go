/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/lofield/internal/archive"
	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/db"
	"github.com/friendsincode/lofield/internal/logging"
	"github.com/friendsincode/lofield/internal/playout"
	"github.com/friendsincode/lofield/internal/segmentsource"
	"github.com/friendsincode/lofield/internal/server"
	"github.com/friendsincode/lofield/internal/stream"
	"github.com/friendsincode/lofield/internal/telemetry"
	"github.com/friendsincode/lofield/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lofield",
	Short: "Lofield - unattended internet radio playout engine",
	Long:  "Lofield drives a continuous HLS stream from pre-rendered broadcast segments and archives everything that airs into a time-addressable store.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playout engine",
	Long:  "Start the playout control loop, the live HLS output, and the operator HTTP surface",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	// Best-effort .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Lofield starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "lofield",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	dbHandle, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	source := segmentsource.NewDBSource(dbHandle)
	composer := stream.NewComposer(cfg, logger)
	idx := archive.NewIndex(cfg.ArchiveRoot, cfg.ArchiveRetentionDays, logger)
	scheduler := playout.NewScheduler(cfg, source, composer, idx, dbHandle, logger)

	srv := server.New(cfg, scheduler, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- scheduler.Start(context.Background())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var fatal error
	select {
	case <-quit:
		logger.Info().Msg("shutting down gracefully...")
	case err := <-loopErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("playout loop exited")
			fatal = err
		}
	}

	scheduler.Stop()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("Lofield stopped")
	return fatal
}
