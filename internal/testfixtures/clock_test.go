package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockIsFrozenUntilAdvanced(t *testing.T) {
	start := time.Date(2024, time.July, 14, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if !nowFn().Equal(start) || !nowFn().Equal(start) {
		t.Fatalf("expected frozen clock at %v", start)
	}

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(start.Add(90*time.Minute)) || !nowFn().Equal(updated) {
		t.Fatalf("advance returned %v", updated)
	}
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2024, time.July, 14, 9, 0, 0, 0, time.UTC)
	clock := NewSteppingClock(start, time.Second)

	first := clock.Now()
	second := clock.Now()
	if !first.Equal(start) || !second.Equal(start.Add(time.Second)) {
		t.Fatalf("unexpected readings %v, %v", first, second)
	}
}
