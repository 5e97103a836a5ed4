/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/friendsincode/lofield/internal/models"
)

// catalogFileName is a durable contract: the web layer reads the same file.
const catalogFileName = "archive-index.json"

// Entry records one archived copy of an aired segment. Entries are immutable
// once written; retention sweeps remove them wholesale.
type Entry struct {
	Timestamp       time.Time          `json:"timestamp"`
	ArchivedPath    string             `json:"archived_path"`
	DurationSeconds float64            `json:"duration_seconds"`
	ShowID          string             `json:"show_id"`
	SegmentType     models.SegmentType `json:"segment_type"`
	SegmentID       string             `json:"segment_id"`
	TrackID         string             `json:"track_id,omitempty"`
}

// loadCatalog reads the persisted catalog. A missing or unreadable file is
// not an error: the archive starts empty and rebuilds from future plays.
func loadCatalog(root string) ([]Entry, bool) {
	path := filepath.Join(root, catalogFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// saveCatalog persists the catalog atomically: write a sibling temp file,
// then rename over the old one, so a crash mid-write leaves the previous
// version intact.
func saveCatalog(root string, entries []Entry) error {
	path := filepath.Join(root, catalogFileName)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	tmp, err := os.CreateTemp(root, catalogFileName+".*")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
