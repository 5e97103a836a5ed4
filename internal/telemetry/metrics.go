/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PlayoutTicksTotal counts iterations of the playout control loop.
	PlayoutTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lofield_playout_ticks_total",
		Help: "Total playout scheduler loop iterations",
	})

	// PlayoutErrorsTotal counts recoverable per-operation failures.
	PlayoutErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofield_playout_errors_total",
		Help: "Recoverable playout errors by operation",
	}, []string{"op"})

	// SegmentsArchivedTotal counts segments durably captured to the archive.
	SegmentsArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lofield_segments_archived_total",
		Help: "Total segments copied into the archive",
	})

	// ArchiveFailuresTotal counts classified archive failures.
	ArchiveFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofield_archive_failures_total",
		Help: "Archive operation failures by kind",
	}, []string{"kind"})

	// ArchiveCleanupDeletedTotal counts files removed by retention sweeps.
	ArchiveCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lofield_archive_cleanup_deleted_total",
		Help: "Archived files deleted by retention sweeps",
	})

	// ArchiveSegments tracks the current catalog size.
	ArchiveSegments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lofield_archive_segments",
		Help: "Segments currently referenced by the archive catalog",
	})

	// StreamActive is 1 while the HLS encode process is running.
	StreamActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lofield_stream_active",
		Help: "Whether a live HLS stream is currently being produced",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
