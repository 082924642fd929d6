package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(EngineTimeout, "whisper exceeded ceiling").WithMetadata("chunk", "3")
	s := err.Error()
	if !strings.Contains(s, "ENGINE_TIMEOUT") {
		t.Errorf("missing code in %q", s)
	}
	if !strings.Contains(s, "chunk") {
		t.Errorf("missing metadata in %q", s)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, EngineUnavailable, "ollama unreachable")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestCodeOfWalksChain(t *testing.T) {
	inner := New(DeviceUnavailable, "no input device")
	outer := fmt.Errorf("starting capture: %w", inner)

	if got := CodeOf(outer); got != DeviceUnavailable {
		t.Errorf("CodeOf = %s, want DEVICE_UNAVAILABLE", got)
	}
	if CodeOf(stderrors.New("plain")) != Unknown {
		t.Error("plain error should classify as Unknown")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{EngineTimeout, true},
		{EngineUnavailable, true},
		{DeviceUnavailable, false},
		{StorageFailed, false},
		{SummaryFailed, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(New(tc.code, "x")); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsSessionFatal(t *testing.T) {
	if !IsSessionFatal(New(StorageFailed, "wav write")) {
		t.Error("storage failure should be session-fatal")
	}
	if IsSessionFatal(New(EngineTimeout, "slow pass")) {
		t.Error("engine timeout must not be session-fatal")
	}
}
