package schedule

import (
	"testing"
	"time"
)

func TestGate_Due(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unmarked gate is due immediately", func(t *testing.T) {
		g := NewGate(time.Hour)
		if !g.Due(base) {
			t.Error("Due() = false, want true for unmarked gate")
		}
	})

	t.Run("marked gate is not due before interval", func(t *testing.T) {
		g := NewGate(time.Hour)
		g.Mark(base)
		if g.Due(base.Add(59 * time.Minute)) {
			t.Error("Due() = true before interval elapsed")
		}
	})

	t.Run("marked gate is due after interval", func(t *testing.T) {
		g := NewGate(time.Hour)
		g.Mark(base)
		if !g.Due(base.Add(time.Hour)) {
			t.Error("Due() = false at interval boundary")
		}
		if !g.Due(base.Add(2 * time.Hour)) {
			t.Error("Due() = false past interval")
		}
	})

	t.Run("zero interval never fires", func(t *testing.T) {
		g := NewGate(0)
		if g.Due(base) {
			t.Error("Due() = true for zero-interval gate")
		}
		if g.Due(base.Add(1000 * time.Hour)) {
			t.Error("Due() = true for zero-interval gate after long wait")
		}
	})

	t.Run("mark resets the countdown", func(t *testing.T) {
		g := NewGate(time.Hour)
		g.Mark(base)
		g.Mark(base.Add(time.Hour))
		if g.Due(base.Add(90 * time.Minute)) {
			t.Error("Due() = true, want false after re-mark")
		}
		if !g.Due(base.Add(2 * time.Hour)) {
			t.Error("Due() = false, want true one interval after re-mark")
		}
	})
}

func TestGate_Remaining(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	g := NewGate(time.Hour)
	g.Mark(base)

	if got := g.Remaining(base.Add(15 * time.Minute)); got != 45*time.Minute {
		t.Errorf("Remaining() = %v, want %v", got, 45*time.Minute)
	}
	if got := g.Remaining(base.Add(2 * time.Hour)); got != 0 {
		t.Errorf("Remaining() = %v, want 0 when due", got)
	}
}

func TestGate_Interval(t *testing.T) {
	g := NewGate(30 * time.Second)
	if g.Interval() != 30*time.Second {
		t.Errorf("Interval() = %v, want %v", g.Interval(), 30*time.Second)
	}
}
