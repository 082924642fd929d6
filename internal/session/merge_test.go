package session

import (
	"reflect"
	"testing"
	"time"
)

func sec(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

func TestMergeMajorityOverlap(t *testing.T) {
	// Two 5s segments; turns split at 6s. The second segment overlaps
	// Speaker A by 1s and Speaker B by 4s, so B wins.
	segments := []TranscriptSegment{
		{Start: 0, End: sec(5), Text: "hello"},
		{Start: sec(5), End: sec(10), Text: "world"},
	}
	turns := []SpeakerTurn{
		{Start: 0, End: sec(6), Speaker: "Speaker 1"},
		{Start: sec(6), End: sec(10), Speaker: "Speaker 2"},
	}

	merged := Merge(segments, turns)

	if len(merged) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(merged))
	}
	if merged[0].Speaker != "Speaker 1" {
		t.Errorf("first utterance: expected Speaker 1, got %s", merged[0].Speaker)
	}
	if merged[1].Speaker != "Speaker 2" {
		t.Errorf("second utterance: expected Speaker 2, got %s", merged[1].Speaker)
	}
}

func TestMergeTieBreakEarliestTurn(t *testing.T) {
	segments := []TranscriptSegment{{Start: sec(2), End: sec(6), Text: "tied"}}
	// Both turns overlap the segment by exactly 2s.
	turns := []SpeakerTurn{
		{Start: 0, End: sec(4), Speaker: "Speaker 1"},
		{Start: sec(4), End: sec(8), Speaker: "Speaker 2"},
	}

	merged := Merge(segments, turns)
	if merged[0].Speaker != "Speaker 1" {
		t.Errorf("tie should go to earliest turn, got %s", merged[0].Speaker)
	}
}

func TestMergeNoOverlapIsUnknown(t *testing.T) {
	segments := []TranscriptSegment{{Start: sec(10), End: sec(12), Text: "late"}}
	turns := []SpeakerTurn{{Start: 0, End: sec(5), Speaker: "Speaker 1"}}

	merged := Merge(segments, turns)
	if merged[0].Speaker != UnknownSpeaker {
		t.Errorf("expected Unknown, got %s", merged[0].Speaker)
	}
}

func TestMergeEmptyTurns(t *testing.T) {
	segments := []TranscriptSegment{{Start: 0, End: sec(5), Text: "solo"}}

	merged := Merge(segments, nil)
	if merged[0].Speaker != UnknownSpeaker {
		t.Errorf("expected Unknown with no turns, got %s", merged[0].Speaker)
	}
}

func TestMergeIdempotent(t *testing.T) {
	segments := []TranscriptSegment{
		{Start: 0, End: sec(3), Text: "a"},
		{Start: sec(3), End: sec(7), Text: "b"},
		{Start: sec(7), End: sec(9), Text: "c"},
	}
	turns := []SpeakerTurn{
		{Start: 0, End: sec(4), Speaker: "Speaker 1"},
		{Start: sec(4), End: sec(9), Speaker: "Speaker 2"},
	}

	first := Merge(segments, turns)
	second := Merge(segments, turns)

	if !reflect.DeepEqual(first, second) {
		t.Error("re-merging identical inputs must yield identical output")
	}
}

func TestMergeRelabelsOnSupersedingPass(t *testing.T) {
	s := New("test", time.Now())
	s.AddSegments([]TranscriptSegment{
		{Start: 0, End: sec(4), Text: "early"},
		{Start: sec(4), End: sec(8), Text: "late"},
	})

	// First pass covers [0, 5) only.
	s.ReplaceTurns([]SpeakerTurn{{Start: 0, End: sec(5), Speaker: "Speaker 1"}})
	before := s.Merged()
	if before[0].Speaker != "Speaker 1" {
		t.Fatalf("unexpected first-pass label %s", before[0].Speaker)
	}

	// Second pass covers [0, 8) with moved boundaries: the whole first
	// segment now belongs to a different cluster.
	s.ReplaceTurns([]SpeakerTurn{
		{Start: 0, End: sec(2), Speaker: "Speaker 2"},
		{Start: sec(2), End: sec(8), Speaker: "Speaker 1"},
	})
	after := s.Merged()

	// [0,4) overlaps Speaker 2 for 2s and Speaker 1 for 2s; the tie
	// goes to the earlier turn, Speaker 2.
	if after[0].Speaker != "Speaker 2" {
		t.Errorf("first utterance should re-label to Speaker 2, got %s", after[0].Speaker)
	}
	if after[1].Speaker != "Speaker 1" {
		t.Errorf("second utterance should re-label to Speaker 1, got %s", after[1].Speaker)
	}
}

func TestFormatTranscript(t *testing.T) {
	utterances := []MergedUtterance{
		{Speaker: "Speaker 1", Text: "hello"},
		{Speaker: "Speaker 2", Text: "hi there"},
	}

	got := FormatTranscript(utterances)
	want := "Speaker 1: hello\nSpeaker 2: hi there"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
