/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// SegmentType classifies a rendered broadcast segment.
type SegmentType string

const (
	SegmentTypeMusic    SegmentType = "music"
	SegmentTypeTalk     SegmentType = "talk"
	SegmentTypeIdent    SegmentType = "ident"
	SegmentTypeHandover SegmentType = "handover"
)

// Segment is a pre-rendered audio segment scheduled for broadcast. The
// upstream scheduling system owns these rows; the playout engine only reads
// them and never mutates a segment.
type Segment struct {
	ID        string      `gorm:"primaryKey" json:"id"`
	FilePath  string      `gorm:"column:file_path" json:"file_path"`
	Type      SegmentType `gorm:"column:segment_type" json:"type"`
	StartTime time.Time   `gorm:"column:start_time;index" json:"start_time"`
	EndTime   time.Time   `gorm:"column:end_time" json:"end_time"`
	ShowID    string      `gorm:"column:show_id;index" json:"show_id"`
	TrackID   string      `gorm:"column:track_id" json:"track_id,omitempty"`
	RequestID string      `gorm:"column:request_id" json:"request_id,omitempty"`
}

// TableName fixes the table shared with the scheduling system.
func (Segment) TableName() string { return "broadcast_segments" }

// Duration is the scheduled play length.
func (s Segment) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// PlayingAt reports whether the segment's play window contains t.
func (s Segment) PlayingAt(t time.Time) bool {
	return !s.StartTime.After(t) && !s.EndTime.Before(t)
}
