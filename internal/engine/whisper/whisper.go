// Package whisper invokes a whisper.cpp binary for chunk transcription
package whisper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/divyashie/openmeet/internal/audio"
	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/metrics"
	"github.com/divyashie/openmeet/internal/resilience"
	"github.com/divyashie/openmeet/internal/session"
)

// EngineName is the transcription engine identifier.
const EngineName = "whisper"

const defaultTimeout = 20 * time.Second

// Config holds the whisper.cpp invocation settings.
type Config struct {
	Binary     string
	Model      string
	Language   string
	Threads    int
	SampleRate int
	// Timeout is the per-invocation ceiling; several multiples of the
	// chunk duration so a slow pass degrades rather than stalls.
	Timeout time.Duration
}

// Engine runs a whisper.cpp binary once per audio chunk. A circuit
// breaker stops spawning subprocesses while the binary fails on every
// chunk, for example after a model file is moved mid-session.
type Engine struct {
	cfg     Config
	breaker *resilience.Breaker
}

// New creates a whisper transcription engine.
func New(cfg Config) *Engine {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{
		cfg:     cfg,
		breaker: resilience.NewBreaker(resilience.DefaultConfig()),
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// IsAvailable checks that the binary is executable and the model exists.
func (e *Engine) IsAvailable(_ context.Context) bool {
	info, err := os.Stat(e.cfg.Binary)
	if err != nil || info.Mode()&0111 == 0 {
		return false
	}
	if _, err := os.Stat(e.cfg.Model); err != nil {
		return false
	}
	return true
}

// Transcribe writes the chunk (lead-in included) to a temp WAV, runs the
// binary, and returns segments positioned on the session timeline.
// Segments whose midpoint lands inside the lead-in are dropped: the
// previous chunk already emitted them.
func (e *Engine) Transcribe(ctx context.Context, chunk audio.Chunk) ([]session.TranscriptSegment, error) {
	if err := e.breaker.Allow(); err != nil {
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return nil, apperrors.Wrap(err, apperrors.EngineUnavailable, "transcription suspended")
	}

	wavPath, err := e.writeTempWAV(chunk)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{
		"-m", e.cfg.Model,
		"-f", wavPath,
		"-l", e.cfg.Language,
		"-t", strconv.Itoa(e.cfg.Threads),
	}

	cmd := exec.CommandContext(ctx, e.cfg.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	metrics.ObserveEngine(EngineName, elapsed.Seconds())

	if runErr != nil {
		e.breaker.Failure()
		return nil, e.classify(runErr, ctx, &stderr, chunk.Index)
	}
	e.breaker.Success()

	leadDur := time.Duration(len(chunk.LeadIn)) * time.Second / time.Duration(e.cfg.SampleRate)
	segments := parseSegments(stdout.String())
	segments = placeOnTimeline(segments, chunk.Start, leadDur)

	slog.Debug("transcribed chunk",
		"index", chunk.Index, "segments", len(segments), "elapsed", elapsed)
	return segments, nil
}

func (e *Engine) classify(runErr error, ctx context.Context, stderr *bytes.Buffer, chunkIndex int) error {
	if ctx.Err() == context.DeadlineExceeded {
		metrics.RecordEngineError(EngineName, string(apperrors.EngineTimeout))
		return apperrors.Newf(apperrors.EngineTimeout, "transcription exceeded %s", e.cfg.Timeout).
			WithMetadata("chunk", strconv.Itoa(chunkIndex))
	}
	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) {
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return apperrors.Wrapf(runErr, apperrors.EngineUnavailable, "start %s", e.cfg.Binary)
	}
	metrics.RecordEngineError(EngineName, string(apperrors.Internal))
	return apperrors.Wrapf(runErr, apperrors.Internal, "whisper failed: %s",
		firstLine(stderr.String()))
}

func (e *Engine) writeTempWAV(chunk audio.Chunk) (string, error) {
	f, err := os.CreateTemp("", "openmeet-chunk-*.wav")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "create temp wav")
	}

	samples := chunk.Samples
	if len(chunk.LeadIn) > 0 {
		samples = make([]float32, 0, len(chunk.LeadIn)+len(chunk.Samples))
		samples = append(samples, chunk.LeadIn...)
		samples = append(samples, chunk.Samples...)
	}

	if err := audio.EncodeWAV(f, samples, e.cfg.SampleRate); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", apperrors.Wrap(err, apperrors.Internal, "encode temp wav")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", apperrors.Wrap(err, apperrors.Internal, "close temp wav")
	}
	return f.Name(), nil
}

// placeOnTimeline shifts engine-relative segment times onto the session
// timeline and drops overlap-region duplicates. The temp WAV starts
// leadDur before chunk start.
func placeOnTimeline(segments []session.TranscriptSegment, chunkStart, leadDur time.Duration) []session.TranscriptSegment {
	base := chunkStart - leadDur
	out := segments[:0]
	for _, seg := range segments {
		seg.Start += base
		seg.End += base

		mid := seg.Start + (seg.End-seg.Start)/2
		if mid < chunkStart {
			continue
		}
		if seg.Start < chunkStart {
			seg.Start = chunkStart
		}
		out = append(out, seg)
	}
	return out
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
