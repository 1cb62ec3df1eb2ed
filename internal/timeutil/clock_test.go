package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	var clock Clock = RealClock{}
	before := time.Now()
	got := clock.Now()
	if got.Before(before) || got.After(time.Now()) {
		t.Errorf("RealClock.Now() = %v outside [%v, now]", got, before)
	}
	if clock.Since(before) < 0 {
		t.Error("RealClock.Since returned a negative duration")
	}
}

func TestMockClock_SinceDoesNotStep(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
	if got := clock.Since(start); got != 0 {
		t.Errorf("Since() without auto step = %v, want 0", got)
	}

	clock.SetAutoStep(time.Second)
	if got := clock.Since(start); got != 0 {
		t.Errorf("Since() before a stepped Now = %v, want 0", got)
	}
	clock.Now()
	for range 3 {
		if got := clock.Since(start); got != time.Second {
			t.Errorf("Since() = %v, want 1s", got)
		}
	}
}

func TestMockClock_AutoStep(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.SetAutoStep(250 * time.Millisecond)

	first := clock.Now()
	second := clock.Now()
	if d := second.Sub(first); d != 250*time.Millisecond {
		t.Errorf("consecutive Now() differ by %v, want 250ms", d)
	}
	if got := clock.Since(start); got != 500*time.Millisecond {
		t.Errorf("Since() = %v, want 500ms", got)
	}
}
