package stream

import (
	"strings"
	"testing"
)

func TestBuildLivePlaylistEmpty(t *testing.T) {
	got := BuildLivePlaylist(nil, 0, 10, false)

	want := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-MEDIA-SEQUENCE:0\n"
	if got != want {
		t.Errorf("empty playlist:\ngot  %q\nwant %q", got, want)
	}
}

func TestBuildLivePlaylistSegments(t *testing.T) {
	segments := []ManifestSegment{
		{Path: "segment_00007.ts", Duration: 10.0},
		{Path: "segment_00008.ts", Duration: 9.5},
	}

	got := BuildLivePlaylist(segments, 7, 10, false)

	for _, want := range []string{
		"#EXT-X-TARGETDURATION:10\n",
		"#EXT-X-MEDIA-SEQUENCE:7\n",
		"#EXTINF:10.0,\nsegment_00007.ts\n",
		"#EXTINF:9.5,\nsegment_00008.ts\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("playlist missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "#EXT-X-ENDLIST") {
		t.Error("live playlist must not carry ENDLIST")
	}
}

func TestBuildLivePlaylistTargetDurationCoversLongestSegment(t *testing.T) {
	segments := []ManifestSegment{{Path: "segment_00001.ts", Duration: 10.4}}

	got := BuildLivePlaylist(segments, 1, 10, false)
	if !strings.Contains(got, "#EXT-X-TARGETDURATION:11\n") {
		t.Errorf("target duration should round up past the longest segment:\n%s", got)
	}
}

func TestBuildLivePlaylistEnded(t *testing.T) {
	got := BuildLivePlaylist(nil, 0, 10, true)
	if !strings.HasSuffix(got, "#EXT-X-ENDLIST\n") {
		t.Errorf("ended playlist missing ENDLIST:\n%s", got)
	}
}
