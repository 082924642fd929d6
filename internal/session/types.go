// Package session holds the meeting-session data model and the alignment
// merge between transcript segments and speaker turns.
package session

import "time"

// State is a session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateDiscarded  State = "discarded"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateDiscarded, StateFailed:
		return true
	}
	return false
}

// UnknownSpeaker labels utterances with no overlapping speaker turn.
const UnknownSpeaker = "Unknown"

// TranscriptSegment is a time-aligned unit of recognized text. Times are
// offsets from the session-start epoch in recorded time. Immutable once
// produced by the transcription engine.
type TranscriptSegment struct {
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
}

// SpeakerTurn attributes a time range to one speaker cluster. Labels are
// opaque and only meaningful within a single diarization pass.
type SpeakerTurn struct {
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Speaker string        `json:"speaker"`
}

// MergedUtterance is a transcript segment annotated with a speaker label.
// It is derived state: a pure function of the segment and turn lists.
type MergedUtterance struct {
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Speaker    string        `json:"speaker"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
}

// Summary is the meeting summary produced once at finalization.
type Summary struct {
	Text        string    `json:"text"`
	Format      string    `json:"format"`
	Model       string    `json:"model"`
	SourceChars int       `json:"source_chars"`
	CreatedAt   time.Time `json:"created_at"`
}
