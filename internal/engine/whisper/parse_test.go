package whisper

import (
	"testing"
	"time"

	"github.com/divyashie/openmeet/internal/session"
)

func TestParseSegments(t *testing.T) {
	out := `
[00:00:00.000 --> 00:00:02.500]   Hello there.
[00:00:02.500 --> 00:00:05.000]  How are you?
whisper_print_timings: total time = 412.21 ms
`
	segments := parseSegments(out)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Hello there." {
		t.Errorf("unexpected text %q", segments[0].Text)
	}
	if segments[0].Start != 0 || segments[0].End != 2500*time.Millisecond {
		t.Errorf("unexpected times %v..%v", segments[0].Start, segments[0].End)
	}
	if segments[1].Start != 2500*time.Millisecond || segments[1].End != 5*time.Second {
		t.Errorf("unexpected times %v..%v", segments[1].Start, segments[1].End)
	}
}

func TestParseSegmentsSkipsNonSpeech(t *testing.T) {
	out := `[00:00:00.000 --> 00:00:05.000]  [BLANK_AUDIO]
[00:00:05.000 --> 00:00:06.000]
[00:01:02.123 --> 00:01:03.456]  real words`
	segments := parseSegments(out)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	want := time.Minute + 2*time.Second + 123*time.Millisecond
	if segments[0].Start != want {
		t.Errorf("start = %v, want %v", segments[0].Start, want)
	}
}

func TestParseSegmentsHours(t *testing.T) {
	segments := parseSegments("[01:00:00.000 --> 01:00:01.000] hour mark")
	if len(segments) != 1 || segments[0].Start != time.Hour {
		t.Fatalf("hour timestamp not parsed: %+v", segments)
	}
}

func TestPlaceOnTimeline(t *testing.T) {
	// Chunk starts at 5s with a 500ms lead-in, so file time 0 is 4.5s
	// on the session timeline.
	in := []session.TranscriptSegment{
		{Start: 0, End: 400 * time.Millisecond, Text: "duplicate"},
		{Start: 200 * time.Millisecond, End: 1200 * time.Millisecond, Text: "straddles"},
		{Start: time.Second, End: 2 * time.Second, Text: "fresh"},
	}
	out := placeOnTimeline(in, 5*time.Second, 500*time.Millisecond)
	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out))
	}
	// Midpoint of the first segment (4.7s) precedes chunk start, dropped.
	// The straddling segment is kept and clamped to chunk start.
	if out[0].Text != "straddles" || out[0].Start != 5*time.Second {
		t.Errorf("straddling segment = %+v", out[0])
	}
	if out[1].Text != "fresh" || out[1].Start != 5500*time.Millisecond {
		t.Errorf("fresh segment = %+v", out[1])
	}
}

func TestPlaceOnTimelineNoLeadIn(t *testing.T) {
	in := []session.TranscriptSegment{{Start: 0, End: time.Second, Text: "first"}}
	out := placeOnTimeline(in, 0, 0)
	if len(out) != 1 || out[0].Start != 0 || out[0].End != time.Second {
		t.Fatalf("unexpected placement: %+v", out)
	}
}
