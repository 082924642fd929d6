package whisper

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/divyashie/openmeet/internal/audio"
	apperrors "github.com/divyashie/openmeet/internal/errors"
)

// fakeBinary writes an executable script that emits the given stdout,
// standing in for whisper.cpp.
func fakeBinary(t *testing.T, stdout string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("script-based fake binary requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "whisper")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testChunk(start time.Duration, n int) audio.Chunk {
	return audio.Chunk{
		Index:    int(start / (5 * time.Second)),
		Samples:  make([]float32, n),
		Start:    start,
		Duration: 5 * time.Second,
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	e := New(Config{Binary: "/usr/local/bin/whisper", Model: "/m.bin"})
	if e.cfg.Language != "en" {
		t.Errorf("language = %q, want en", e.cfg.Language)
	}
	if e.cfg.Threads != 4 {
		t.Errorf("threads = %d, want 4", e.cfg.Threads)
	}
	if e.cfg.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", e.cfg.SampleRate)
	}
	if e.cfg.Timeout != defaultTimeout {
		t.Errorf("timeout = %s, want %s", e.cfg.Timeout, defaultTimeout)
	}
}

func TestTranscribe(t *testing.T) {
	engine := New(Config{
		Binary:     fakeBinary(t, "[00:00:00.000 --> 00:00:02.000]  hello world"),
		Model:      fakeModel(t),
		SampleRate: 16000,
	})

	segments, err := engine.Transcribe(context.Background(), testChunk(0, 16000))
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 || segments[0].Text != "hello world" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestTranscribeShiftsByChunkStart(t *testing.T) {
	engine := New(Config{
		Binary:     fakeBinary(t, "[00:00:01.000 --> 00:00:02.000]  later"),
		Model:      fakeModel(t),
		SampleRate: 16000,
	})

	chunk := testChunk(10*time.Second, 16000)
	segments, err := engine.Transcribe(context.Background(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Start != 11*time.Second || segments[0].End != 12*time.Second {
		t.Errorf("segment not shifted: %+v", segments[0])
	}
}

func TestTranscribeMissingBinary(t *testing.T) {
	engine := New(Config{
		Binary:     filepath.Join(t.TempDir(), "missing"),
		Model:      fakeModel(t),
		SampleRate: 16000,
	})

	_, err := engine.Transcribe(context.Background(), testChunk(0, 160))
	if err == nil {
		t.Fatal("expected error")
	}
	if apperrors.CodeOf(err) != apperrors.EngineUnavailable {
		t.Errorf("code = %v, want EngineUnavailable", apperrors.CodeOf(err))
	}
}

func TestTranscribeTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("script-based fake binary requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "whisper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 5\n"), 0755); err != nil {
		t.Fatal(err)
	}

	engine := New(Config{
		Binary:     path,
		Model:      fakeModel(t),
		SampleRate: 16000,
		Timeout:    100 * time.Millisecond,
	})

	_, err := engine.Transcribe(context.Background(), testChunk(0, 160))
	if apperrors.CodeOf(err) != apperrors.EngineTimeout {
		t.Errorf("code = %v, want EngineTimeout", apperrors.CodeOf(err))
	}
}

func TestIsAvailable(t *testing.T) {
	engine := New(Config{
		Binary:     fakeBinary(t, ""),
		Model:      fakeModel(t),
		SampleRate: 16000,
	})
	if !engine.IsAvailable(context.Background()) {
		t.Error("expected available")
	}

	missing := New(Config{Binary: "/nonexistent", Model: "/nonexistent", SampleRate: 16000})
	if missing.IsAvailable(context.Background()) {
		t.Error("expected unavailable")
	}
}
