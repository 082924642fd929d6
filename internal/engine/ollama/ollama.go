// Package ollama generates meeting summaries through a local Ollama server
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/metrics"
	"github.com/divyashie/openmeet/internal/resilience"
	"github.com/divyashie/openmeet/internal/session"
)

// EngineName is the summarization engine identifier.
const EngineName = "ollama"

const defaultTimeout = 120 * time.Second

// Config holds the Ollama connection and generation settings.
type Config struct {
	// URL is the Ollama base address, e.g. http://127.0.0.1:11434.
	URL string
	// Model is the local model tag, e.g. llama3.2.
	Model string
	// Format selects the summary prompt, see Formats.
	Format string
	// Timeout covers one generation call.
	Timeout time.Duration
}

// Engine summarizes a finished transcript in a single generation call.
type Engine struct {
	cfg    Config
	client *http.Client
	retry  resilience.RetryConfig
}

// New creates an Ollama summarization engine.
func New(cfg Config) *Engine {
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Format == "" {
		cfg.Format = FormatDetailed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry:  resilience.SummaryRetryConfig(),
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// IsAvailable checks that the server responds to a model listing.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL+"/api/tags", nil)
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

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Summarize runs one generation over the full labeled transcript.
// Transient failures are retried with backoff before the error is
// surfaced; the caller decides whether a failed summary is fatal.
func (e *Engine) Summarize(ctx context.Context, transcript string, recorded time.Duration) (*session.Summary, error) {
	prompt, err := BuildPrompt(e.cfg.Format, transcript, recorded)
	if err != nil {
		return nil, err
	}

	var text string
	err = resilience.Retry(ctx, e.retry, func() error {
		var genErr error
		text, genErr = e.generate(ctx, prompt)
		return genErr
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.SummaryFailed, "generate summary")
	}

	return &session.Summary{
		Text:        text,
		Format:      e.cfg.Format,
		Model:       e.cfg.Model,
		SourceChars: len(transcript),
		CreatedAt:   time.Now(),
	}, nil
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  e.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: 0.1,
			TopP:        0.85,
			NumPredict:  1000,
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "encode generate request")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "build generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.ObserveEngine(EngineName, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordEngineError(EngineName, string(apperrors.EngineTimeout))
			return "", apperrors.Newf(apperrors.EngineTimeout, "generation exceeded %s", e.cfg.Timeout)
		}
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return "", apperrors.Wrap(err, apperrors.EngineUnavailable, "ollama unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.RecordEngineError(EngineName, string(apperrors.EngineUnavailable))
		return "", apperrors.Newf(apperrors.EngineUnavailable,
			"ollama returned %d: %s", resp.StatusCode, string(msg))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "decode generate response")
	}
	if out.Response == "" {
		return "", apperrors.New(apperrors.SummaryFailed, "model returned empty response")
	}

	slog.Debug("generated summary", "model", e.cfg.Model, "elapsed", time.Since(start))
	return out.Response, nil
}
