package pyannote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/divyashie/openmeet/internal/errors"
)

func writeTestWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.wav")
	if err := os.WriteFile(path, []byte("RIFF fake"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiarizeNormalizesLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diarize" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"turns":[
			{"start":0.0,"end":4.2,"speaker":"SPEAKER_01"},
			{"start":4.2,"end":7.5,"speaker":"SPEAKER_00"},
			{"start":7.5,"end":9.0,"speaker":"SPEAKER_01"}
		]}`))
	}))
	defer srv.Close()

	engine := New(Config{URL: srv.URL})
	turns, err := engine.Diarize(context.Background(), writeTestWAV(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	// First voice heard becomes Speaker 1 even though the model called
	// it SPEAKER_01.
	if turns[0].Speaker != "Speaker 1" {
		t.Errorf("turns[0].Speaker = %q", turns[0].Speaker)
	}
	if turns[1].Speaker != "Speaker 2" {
		t.Errorf("turns[1].Speaker = %q", turns[1].Speaker)
	}
	if turns[2].Speaker != "Speaker 1" {
		t.Errorf("turns[2].Speaker = %q", turns[2].Speaker)
	}
	if turns[0].End != 4200*time.Millisecond {
		t.Errorf("turns[0].End = %v", turns[0].End)
	}
}

func TestDiarizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := New(Config{URL: srv.URL})
	_, err := engine.Diarize(context.Background(), writeTestWAV(t))
	if apperrors.CodeOf(err) != apperrors.EngineUnavailable {
		t.Errorf("code = %v, want EngineUnavailable", apperrors.CodeOf(err))
	}
}

func TestDiarizeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	engine := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := engine.Diarize(context.Background(), writeTestWAV(t))
	if apperrors.CodeOf(err) != apperrors.EngineTimeout {
		t.Errorf("code = %v, want EngineTimeout", apperrors.CodeOf(err))
	}
}

func TestDiarizeMissingRecording(t *testing.T) {
	engine := New(Config{URL: "http://127.0.0.1:1"})
	_, err := engine.Diarize(context.Background(), "/nonexistent.wav")
	if apperrors.CodeOf(err) != apperrors.StorageFailed {
		t.Errorf("code = %v, want StorageFailed", apperrors.CodeOf(err))
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if !New(Config{URL: srv.URL}).IsAvailable(context.Background()) {
		t.Error("expected available")
	}
	if New(Config{URL: "http://127.0.0.1:1"}).IsAvailable(context.Background()) {
		t.Error("expected unavailable")
	}
}
