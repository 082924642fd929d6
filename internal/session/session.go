package session

import (
	"sort"
	"time"
)

// Session is one meeting-recording instance. It is owned by the
// orchestrator's control goroutine; methods are not safe for concurrent
// use and must only be called from that goroutine.
type Session struct {
	ID        string
	StartedAt time.Time
	State     State

	// Recorded represents how much meeting time has been captured,
	// excluding paused intervals.
	Recorded time.Duration

	// AudioPath is the on-disk WAV artifact for the whole recording.
	AudioPath string

	segments []TranscriptSegment // sorted by (Start, End)
	turns    []SpeakerTurn       // sorted by Start; replaced wholesale per pass
	summary  *Summary

	// Degradation bookkeeping: transient failures absorbed without a
	// state change.
	DroppedChunks      int
	FailedDiarizations int
	SummaryFailed      bool
}

// New creates a session in the Recording state.
func New(id string, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		StartedAt: startedAt,
		State:     StateRecording,
	}
}

// AddSegments inserts transcript segments keeping the stored sequence
// sorted by time range. Completions may arrive out of submission order;
// sorting happens on insert, never on read.
func (s *Session) AddSegments(segs []TranscriptSegment) {
	if len(segs) == 0 {
		return
	}
	s.segments = append(s.segments, segs...)
	sort.SliceStable(s.segments, func(i, j int) bool {
		if s.segments[i].Start != s.segments[j].Start {
			return s.segments[i].Start < s.segments[j].Start
		}
		return s.segments[i].End < s.segments[j].End
	})
}

// ReplaceTurns replaces the speaker-turn list with a newer diarization
// pass. Cluster labels are not stable across passes, so the previous list
// carries no information worth keeping once a pass over a wider range
// lands.
func (s *Session) ReplaceTurns(turns []SpeakerTurn) {
	s.turns = make([]SpeakerTurn, len(turns))
	copy(s.turns, turns)
	sort.SliceStable(s.turns, func(i, j int) bool {
		return s.turns[i].Start < s.turns[j].Start
	})
}

// Segments returns a copy of the sorted transcript segments.
func (s *Session) Segments() []TranscriptSegment {
	out := make([]TranscriptSegment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Turns returns a copy of the current speaker turns.
func (s *Session) Turns() []SpeakerTurn {
	out := make([]SpeakerTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Merged derives the speaker-labeled transcript from the current segment
// and turn lists.
func (s *Session) Merged() []MergedUtterance {
	return Merge(s.segments, s.turns)
}

// SetSummary records the summarization result. The summary is immutable
// once set.
func (s *Session) SetSummary(sum *Summary) {
	if s.summary == nil {
		s.summary = sum
	}
}

// Summary returns the summary, or nil when absent.
func (s *Session) Summary() *Summary {
	return s.summary
}
