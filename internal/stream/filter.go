/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stream

import (
	"fmt"
	"strings"

	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/models"
)

// CrossfadeDuration returns the transition length in seconds for an ordered
// type pair. Three pairs are independently configurable; every other pair,
// talk→talk and anything involving idents or handovers included, uses the
// configured default. Spoken-word boundaries stay crisp while music blends.
func CrossfadeDuration(cf config.CrossfadeConfig, from, to models.SegmentType) float64 {
	switch {
	case from == models.SegmentTypeMusic && to == models.SegmentTypeMusic:
		return cf.MusicToMusic
	case from == models.SegmentTypeMusic && to == models.SegmentTypeTalk:
		return cf.MusicToTalk
	case from == models.SegmentTypeTalk && to == models.SegmentTypeMusic:
		return cf.TalkToMusic
	default:
		return cf.Default
	}
}

// BuildCrossfadeFilter constructs an ffmpeg filter graph that fades each
// adjacent segment pair at its type-pair duration, concatenates all inputs in
// order, and normalizes loudness on the combined output. Music beds and talk
// segments are mixed at different reference levels upstream; without the
// final loudnorm stage boundaries would jump in perceived volume.
//
// Returns the empty string for fewer than two segments: a single clip has
// nothing to cross.
func BuildCrossfadeFilter(cf config.CrossfadeConfig, segments []models.Segment) string {
	n := len(segments)
	if n < 2 {
		return ""
	}

	var b strings.Builder
	for i, seg := range segments {
		var stages []string
		if i > 0 {
			fadeIn := CrossfadeDuration(cf, segments[i-1].Type, seg.Type)
			stages = append(stages, fmt.Sprintf("afade=t=in:st=0:d=%s", formatSeconds(fadeIn)))
		}
		if i < n-1 {
			fadeOut := CrossfadeDuration(cf, seg.Type, segments[i+1].Type)
			start := seg.Duration().Seconds() - fadeOut
			if start < 0 {
				start = 0
			}
			stages = append(stages, fmt.Sprintf("afade=t=out:st=%s:d=%s", formatSeconds(start), formatSeconds(fadeOut)))
		}
		if len(stages) == 0 {
			stages = append(stages, "anull")
		}
		b.WriteString(fmt.Sprintf("[%d:a]%s[a%d];", i, strings.Join(stages, ","), i))
	}

	for i := 0; i < n; i++ {
		b.WriteString(fmt.Sprintf("[a%d]", i))
	}
	b.WriteString(fmt.Sprintf("concat=n=%d:v=0:a=1[cat];", n))
	b.WriteString("[cat]loudnorm=I=-16:TP=-1.5:LRA=11[aout]")
	return b.String()
}

// formatSeconds renders a duration without trailing zero noise (2, 0.5, 1.25).
func formatSeconds(s float64) string {
	out := fmt.Sprintf("%.3f", s)
	out = strings.TrimRight(out, "0")
	out = strings.TrimRight(out, ".")
	if out == "" {
		return "0"
	}
	return out
}
