package link

import (
	"testing"
	"time"
)

func TestRetryPolicy_Ceiling(t *testing.T) {
	p := NewRetryPolicy(3, time.Second)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		if !p.Begin(now) {
			t.Fatalf("Begin() attempt %d = false, want true", i)
		}
		if p.Attempts() != i {
			t.Errorf("Attempts() = %d, want %d", p.Attempts(), i)
		}
	}

	if p.Begin(now) {
		t.Error("Begin() = true past the ceiling")
	}
	if p.Attempts() != 3 {
		t.Errorf("Attempts() = %d, want 3 (counter must not pass the ceiling)", p.Attempts())
	}
}

func TestRetryPolicy_EscalateOnce(t *testing.T) {
	p := NewRetryPolicy(2, time.Second)
	now := time.Now()

	if p.Escalate() {
		t.Error("Escalate() = true before the ceiling")
	}

	p.Begin(now)
	if p.Escalate() {
		t.Error("Escalate() = true below the ceiling")
	}

	p.Begin(now)
	if !p.Escalate() {
		t.Error("Escalate() = false at the ceiling, want true")
	}
	if p.Escalate() {
		t.Error("Escalate() = true a second time, want exactly once")
	}
}

func TestRetryPolicy_Due(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewRetryPolicy(5, time.Second)

	if !p.Due(base) {
		t.Error("Due() = false before any attempt")
	}

	p.Begin(base)
	if p.Due(base.Add(500 * time.Millisecond)) {
		t.Error("Due() = true before the interval elapsed")
	}
	if !p.Due(base.Add(time.Second)) {
		t.Error("Due() = false after the interval elapsed")
	}
}

func TestRetryPolicy_Reset(t *testing.T) {
	now := time.Now()
	p := NewRetryPolicy(2, time.Second)

	p.Begin(now)
	p.Begin(now)
	if p.Begin(now) {
		t.Fatal("Begin() = true past the ceiling")
	}
	if !p.Escalate() {
		t.Fatal("Escalate() = false at the ceiling")
	}

	p.Reset()

	if p.Attempts() != 0 {
		t.Errorf("Attempts() after Reset = %d, want 0", p.Attempts())
	}
	if !p.Begin(now) {
		t.Error("Begin() = false after Reset, want true")
	}
	p.Begin(now)
	if !p.Escalate() {
		t.Error("Escalate() = false after Reset and re-exhaustion, want true")
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := NewRetryPolicy(0, 0)
	if p.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("MaxAttempts() = %d, want %d", p.MaxAttempts(), DefaultMaxAttempts)
	}
	if p.interval != DefaultRetryInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultRetryInterval)
	}
}
