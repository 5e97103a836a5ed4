/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stream

import (
	"fmt"
	"math"
	"strings"
)

// ManifestSegment is one media chunk referenced by the live playlist.
type ManifestSegment struct {
	Path     string
	Duration float64
}

// BuildLivePlaylist renders an HLS live playlist for the given segments,
// ordered oldest first. An empty slice yields a minimal valid playlist so a
// client polling live.m3u8 between stream start and the first encoded chunk
// sees well-formed HLS rather than a 404.
func BuildLivePlaylist(segments []ManifestSegment, mediaSequence int, targetDuration int, ended bool) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	td := targetDuration
	for _, seg := range segments {
		if c := int(math.Ceil(seg.Duration)); c > td {
			td = c
		}
	}
	if td <= 0 {
		td = 1
	}

	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", td))
	b.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", mediaSequence))

	for _, seg := range segments {
		b.WriteString(fmt.Sprintf("#EXTINF:%.1f,\n", seg.Duration))
		b.WriteString(seg.Path)
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}
