/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import "fmt"

// FailureKind names the ways an archive operation can fail. Call sites use
// the kind to decide between log-and-continue and escalation instead of
// swallowing everything behind a blanket recover.
type FailureKind string

const (
	KindMissingSource FailureKind = "missing_source"
	KindCopyFailed    FailureKind = "copy_failed"
	KindPersistFailed FailureKind = "persist_failed"
	KindDeleteFailed  FailureKind = "delete_failed"
)

// OpError is a classified archive failure.
type OpError struct {
	Kind      FailureKind
	SegmentID string
	Path      string
	Err       error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive %s (segment %s, path %s): %v", e.Kind, e.SegmentID, e.Path, e.Err)
	}
	return fmt.Sprintf("archive %s (segment %s, path %s)", e.Kind, e.SegmentID, e.Path)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(kind FailureKind, segmentID, path string, err error) *OpError {
	return &OpError{Kind: kind, SegmentID: segmentID, Path: path, Err: err}
}
