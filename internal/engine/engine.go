// Package engine defines the contracts for the three inference engines the
// pipeline coordinates. Each engine is a black-box capability: swapping the
// underlying binary or model requires no orchestrator or merger changes.
//
// Implementations report failures through the shared error taxonomy:
// ENGINE_UNAVAILABLE when the backing process or daemon cannot be reached,
// ENGINE_TIMEOUT when a single invocation exceeds its ceiling.
package engine

import (
	"context"
	"time"

	"github.com/divyashie/openmeet/internal/audio"
	"github.com/divyashie/openmeet/internal/session"
)

// Transcriber converts one audio chunk into time-stamped transcript
// segments. Invocations are stateless with respect to the engine process;
// boundary continuity comes from the chunk's lead-in overlap, and the
// implementation de-duplicates segments that fall inside it.
type Transcriber interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Transcribe(ctx context.Context, chunk audio.Chunk) ([]session.TranscriptSegment, error)
}

// Diarizer attributes speaker turns over the accumulated recording at
// audioPath, covering the whole file. Each invocation re-processes from
// the start; cluster labels are only meaningful within one pass.
type Diarizer interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Diarize(ctx context.Context, audioPath string) ([]session.SpeakerTurn, error)
}

// Summarizer produces the meeting summary from the speaker-labeled
// transcript. Invoked exactly once per session, at finalization.
type Summarizer interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Summarize(ctx context.Context, transcript string, recorded time.Duration) (*session.Summary, error)
}
