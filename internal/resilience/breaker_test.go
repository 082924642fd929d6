package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(Config{Threshold: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		b.Failure()
	}

	if b.State() != Open {
		t.Errorf("expected open, got %s", b.State())
	}
	if err := b.Allow(); err != ErrOpen {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(Config{Threshold: 1, ResetTimeout: time.Nanosecond, HalfOpenSuccesses: 2})

	b.Failure()
	time.Sleep(time.Millisecond)

	// First Allow after the reset timeout moves to half-open
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open to allow, got %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	b.Success()
	b.Success()
	if b.State() != Closed {
		t.Errorf("expected closed after successes, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(Config{Threshold: 1, ResetTimeout: time.Nanosecond})

	b.Failure()
	time.Sleep(time.Millisecond)
	_ = b.Allow() // half-open
	b.Failure()

	if b.State() != Open {
		t.Errorf("expected reopened, got %s", b.State())
	}
}

func TestBreakerExecute(t *testing.T) {
	b := NewBreaker(Config{Threshold: 2, ResetTimeout: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return boom }); err != boom {
			t.Fatalf("expected boom, got %v", err)
		}
	}

	if err := b.Execute(func() error { return nil }); err != ErrOpen {
		t.Errorf("expected ErrOpen from open breaker, got %v", err)
	}
}

func TestBreakerHook(t *testing.T) {
	var transitions []State
	b := NewBreaker(Config{Threshold: 1, ResetTimeout: time.Hour}).
		WithHook(func(from, to State) { transitions = append(transitions, to) })

	b.Failure()

	if len(transitions) != 1 || transitions[0] != Open {
		t.Errorf("expected single transition to open, got %v", transitions)
	}
}
