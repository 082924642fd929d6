package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/divyashie/openmeet/internal/errors"
)

func TestSummarize(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "A productive meeting.", Done: true})
	}))
	defer srv.Close()

	engine := New(Config{URL: srv.URL, Model: "llama3.2", Format: FormatDetailed})
	transcript := "Speaker 1: Let's ship it.\nSpeaker 2: Agreed."
	summary, err := engine.Summarize(context.Background(), transcript, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Text != "A productive meeting." {
		t.Errorf("text = %q", summary.Text)
	}
	if summary.Format != FormatDetailed || summary.Model != "llama3.2" {
		t.Errorf("metadata = %q/%q", summary.Format, summary.Model)
	}
	if summary.SourceChars != len(transcript) {
		t.Errorf("SourceChars = %d, want %d", summary.SourceChars, len(transcript))
	}

	if got.Stream {
		t.Error("expected stream:false")
	}
	if got.Options.Temperature != 0.1 || got.Options.NumPredict != 1000 {
		t.Errorf("options = %+v", got.Options)
	}
	if !strings.Contains(got.Prompt, "Let's ship it.") {
		t.Error("prompt missing transcript")
	}
	if !strings.Contains(got.Prompt, "30-minute") {
		t.Errorf("prompt missing duration: %q", got.Prompt[:80])
	}
}

func TestSummarizeRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	engine := New(Config{URL: srv.URL})
	engine.retry.BaseDelay = time.Millisecond
	summary, err := engine.Summarize(context.Background(), "Speaker 1: hi", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Text != "ok" {
		t.Errorf("text = %q", summary.Text)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSummarizeUnreachable(t *testing.T) {
	engine := New(Config{URL: "http://127.0.0.1:1"})
	engine.retry.BaseDelay = time.Millisecond
	engine.retry.MaxDelay = time.Millisecond
	_, err := engine.Summarize(context.Background(), "Speaker 1: hi", time.Minute)
	if apperrors.CodeOf(err) != apperrors.SummaryFailed {
		t.Errorf("code = %v, want SummaryFailed", apperrors.CodeOf(err))
	}
}

func TestSummarizeEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "", Done: true})
	}))
	defer srv.Close()

	engine := New(Config{URL: srv.URL})
	_, err := engine.Summarize(context.Background(), "Speaker 1: hi", time.Minute)
	if apperrors.CodeOf(err) != apperrors.SummaryFailed {
		t.Errorf("code = %v, want SummaryFailed", apperrors.CodeOf(err))
	}
}

func TestBuildPromptFormats(t *testing.T) {
	for _, format := range Formats() {
		prompt, err := BuildPrompt(format, "Speaker 1: hello", 10*time.Minute)
		if err != nil {
			t.Errorf("%s: %v", format, err)
		}
		if !strings.Contains(prompt, "Speaker 1: hello") {
			t.Errorf("%s: prompt missing transcript", format)
		}
	}
	if _, err := BuildPrompt("haiku", "x", time.Minute); apperrors.CodeOf(err) != apperrors.ConfigInvalid {
		t.Error("expected ConfigInvalid for unknown format")
	}
}

func TestValidFormat(t *testing.T) {
	if !ValidFormat("bullets") || ValidFormat("haiku") {
		t.Error("format validation mismatch")
	}
}
