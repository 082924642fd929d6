package session

import (
	"fmt"
	"strings"
	"time"
)

// Merge intersects transcript segments with speaker turns. Turns must be
// sorted by start time (Session.ReplaceTurns guarantees this). For each
// segment, the turn with maximal temporal overlap wins its label;
// ties go to the earliest-starting turn; segments with no overlapping
// turn are labeled Unknown.
//
// Merge is a deterministic, idempotent function of its inputs. Re-running
// it after a diarization pass replaces the turn list re-labels every
// utterance whose range the new pass covers.
func Merge(segments []TranscriptSegment, turns []SpeakerTurn) []MergedUtterance {
	out := make([]MergedUtterance, 0, len(segments))
	for _, seg := range segments {
		speaker := UnknownSpeaker
		var best time.Duration

		for _, turn := range turns {
			ov := overlap(seg.Start, seg.End, turn.Start, turn.End)
			if ov > best {
				best = ov
				speaker = turn.Speaker
			}
			// Turns are sorted by start; once a turn begins at or after
			// the segment end nothing later can overlap.
			if turn.Start >= seg.End {
				break
			}
		}

		out = append(out, MergedUtterance{
			Start:      seg.Start,
			End:        seg.End,
			Speaker:    speaker,
			Text:       seg.Text,
			Confidence: seg.Confidence,
		})
	}
	return out
}

func overlap(aStart, aEnd, bStart, bEnd time.Duration) time.Duration {
	start := max(aStart, bStart)
	end := min(aEnd, bEnd)
	if end <= start {
		return 0
	}
	return end - start
}

// FormatTranscript renders utterances as speaker-labeled lines, the form
// fed to summarization and shown in the transcript window.
func FormatTranscript(utterances []MergedUtterance) string {
	var b strings.Builder
	for i, u := range utterances {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", u.Speaker, u.Text)
	}
	return b.String()
}
