// Package audio handles microphone capture, chunking, and WAV artifacts
package audio

import "time"

// Chunk is a bounded-duration slice of recorded PCM with its position on
// the session timeline. Start and Duration track recorded time: paused
// intervals never reach the chunker, so offsets exclude them.
type Chunk struct {
	Index    int
	Samples  []float32
	Start    time.Duration
	Duration time.Duration

	// LeadIn is the tail of the previous chunk, prepended at
	// transcription time so words spanning a boundary are not cut.
	// It precedes Start on the timeline and emits no new segments.
	LeadIn []float32
}

// Chunker accumulates a sample stream into fixed-duration chunks.
// Boundaries are clock-driven: a chunk may span silence or speech
// indifferently. Not safe for concurrent use; the capturer feeds it from
// a single goroutine.
type Chunker struct {
	sampleRate     int
	chunkSamples   int
	overlapSamples int

	pending []float32
	tail    []float32 // carried into the next chunk's LeadIn
	emitted int64     // samples emitted as chunk bodies
	index   int
}

// NewChunker creates a chunker producing chunks of the given duration
// with the given overlap carried between consecutive chunks.
func NewChunker(sampleRate int, chunkDur, overlap time.Duration) *Chunker {
	return &Chunker{
		sampleRate:     sampleRate,
		chunkSamples:   durationToSamples(chunkDur, sampleRate),
		overlapSamples: durationToSamples(overlap, sampleRate),
	}
}

// Push appends samples and returns any full chunks they complete.
func (c *Chunker) Push(samples []float32) []Chunk {
	c.pending = append(c.pending, samples...)

	var chunks []Chunk
	for len(c.pending) >= c.chunkSamples {
		body := c.pending[:c.chunkSamples]
		chunks = append(chunks, c.emit(body))
		c.pending = c.pending[c.chunkSamples:]
	}
	return chunks
}

// Flush returns the partial trailing chunk, if any. Called once when
// capture stops; the chunker is not reusable afterwards.
func (c *Chunker) Flush() (Chunk, bool) {
	if len(c.pending) == 0 {
		return Chunk{}, false
	}
	chunk := c.emit(c.pending)
	c.pending = nil
	return chunk, true
}

// Recorded returns how much chunk-emitted time has elapsed, excluding the
// pending partial.
func (c *Chunker) Recorded() time.Duration {
	return samplesToDuration(c.emitted, c.sampleRate)
}

func (c *Chunker) emit(body []float32) Chunk {
	chunk := Chunk{
		Index:    c.index,
		Samples:  append([]float32(nil), body...),
		Start:    samplesToDuration(c.emitted, c.sampleRate),
		Duration: samplesToDuration(int64(len(body)), c.sampleRate),
		LeadIn:   c.tail,
	}

	if c.overlapSamples > 0 && len(body) >= c.overlapSamples {
		c.tail = append([]float32(nil), body[len(body)-c.overlapSamples:]...)
	} else {
		c.tail = nil
	}

	c.emitted += int64(len(body))
	c.index++
	return chunk
}

func durationToSamples(d time.Duration, rate int) int {
	return int(d.Seconds() * float64(rate))
}

func samplesToDuration(n int64, rate int) time.Duration {
	return time.Duration(n * int64(time.Second) / int64(rate))
}
