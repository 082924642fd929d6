// Package pyannote talks to the diarization sidecar over HTTP
package pyannote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/metrics"
	"github.com/divyashie/openmeet/internal/resilience"
	"github.com/divyashie/openmeet/internal/session"
)

// EngineName is the diarization engine identifier.
const EngineName = "pyannote"

const defaultTimeout = 300 * time.Second

// Config holds the sidecar connection settings.
type Config struct {
	// URL is the sidecar base address, e.g. http://127.0.0.1:8388.
	URL string
	// Timeout covers one full diarization pass. The model runs over the
	// whole recording each time, so this scales with session length.
	Timeout time.Duration
}

// Engine diarizes a recording by posting the WAV to the sidecar. A
// circuit breaker skips incremental passes while the sidecar is down so
// a dead sidecar costs one failed request per reset window, not one per
// stride.
type Engine struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.Breaker
}

// New creates a pyannote diarization engine.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(resilience.DefaultConfig()),
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// IsAvailable probes the sidecar health endpoint.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// turnResponse is one speaker turn as returned by the sidecar, times in
// seconds from the start of the recording.
type turnResponse struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type diarizeResponse struct {
	Turns []turnResponse `json:"turns"`
}

// Diarize posts the recording WAV and returns speaker turns with labels
// normalized to "Speaker 1".."Speaker N" in order of first appearance.
func (e *Engine) Diarize(ctx context.Context, audioPath string) ([]session.SpeakerTurn, error) {
	if err := e.breaker.Allow(); err != nil {
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return nil, apperrors.Wrap(err, apperrors.EngineUnavailable, "diarization suspended")
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StorageFailed, "open recording")
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+"/diarize", pr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "build diarize request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.ObserveEngine(EngineName, time.Since(start).Seconds())
	if err != nil {
		e.breaker.Failure()
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordEngineError(EngineName, string(apperrors.EngineTimeout))
			return nil, apperrors.Newf(apperrors.EngineTimeout, "diarization exceeded %s", e.cfg.Timeout)
		}
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return nil, apperrors.Wrap(err, apperrors.EngineUnavailable, "diarization sidecar unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.breaker.Failure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return nil, apperrors.Newf(apperrors.EngineUnavailable,
			"diarization sidecar returned %d: %s", resp.StatusCode, string(body))
	}

	e.breaker.Success()

	var out diarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "decode diarize response")
	}

	turns := normalizeLabels(out.Turns)
	slog.Debug("diarized recording", "turns", len(turns), "elapsed", time.Since(start))
	return turns, nil
}

// normalizeLabels maps raw model labels (e.g. SPEAKER_00) to stable
// human labels by first appearance, so the first voice heard is always
// "Speaker 1" regardless of the model's internal numbering.
func normalizeLabels(raw []turnResponse) []session.SpeakerTurn {
	labels := make(map[string]string)
	turns := make([]session.SpeakerTurn, 0, len(raw))
	for _, r := range raw {
		label, ok := labels[r.Speaker]
		if !ok {
			label = fmt.Sprintf("Speaker %d", len(labels)+1)
			labels[r.Speaker] = label
		}
		turns = append(turns, session.SpeakerTurn{
			Start:   secondsToDuration(r.Start),
			End:     secondsToDuration(r.End),
			Speaker: label,
		})
	}
	return turns
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
