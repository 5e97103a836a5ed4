/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package segmentsource

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/lofield/internal/models"
)

// Source yields rendered segments scheduled inside a time window, sorted by
// start time ascending and filtered to those with a known file path. The
// playout scheduler only depends on this shape, not on where the rows live.
type Source interface {
	ScheduledInWindow(ctx context.Context, start, end time.Time) ([]models.Segment, error)
}

// DBSource reads scheduled segments from the shared broadcast database.
type DBSource struct {
	db *gorm.DB
}

// NewDBSource creates a database-backed segment source.
func NewDBSource(db *gorm.DB) *DBSource {
	return &DBSource{db: db}
}

// ScheduledInWindow returns segments whose start time falls in [start, end]
// and that have a non-empty file path, ordered by start time ascending.
func (s *DBSource) ScheduledInWindow(ctx context.Context, start, end time.Time) ([]models.Segment, error) {
	var segments []models.Segment
	err := s.db.WithContext(ctx).
		Where("start_time >= ?", start).
		Where("start_time <= ?", end).
		Where("file_path <> ''").
		Order("start_time ASC").
		Find(&segments).Error
	return segments, err
}
