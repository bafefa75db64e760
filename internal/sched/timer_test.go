package sched

import (
	"testing"
	"time"
)

func TestOneShotFiresOncePastDeadline(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	var tm oneShot

	fired := 0
	tm.Arm(clock.Now(), 10*time.Millisecond, func() { fired++ })

	if tm.Poll(clock.Now()) {
		t.Fatal("fired before deadline")
	}
	clock.Advance(9 * time.Millisecond)
	if tm.Poll(clock.Now()) {
		t.Fatal("fired before deadline")
	}

	clock.Advance(1 * time.Millisecond)
	if !tm.Poll(clock.Now()) {
		t.Fatal("did not fire at deadline")
	}
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}

	// One arming, one fire.
	clock.Advance(time.Hour)
	if tm.Poll(clock.Now()) {
		t.Fatal("fired twice for a single arming")
	}
}

func TestOneShotRearmReplaces(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	var tm oneShot

	var got string
	tm.Arm(clock.Now(), 5*time.Millisecond, func() { got = "first" })
	tm.Arm(clock.Now(), 20*time.Millisecond, func() { got = "second" })

	clock.Advance(10 * time.Millisecond)
	if tm.Poll(clock.Now()) {
		t.Fatal("replaced arming fired at the old deadline")
	}
	clock.Advance(10 * time.Millisecond)
	if !tm.Poll(clock.Now()) {
		t.Fatal("did not fire at the new deadline")
	}
	if got != "second" {
		t.Fatalf("callback = %q, want %q", got, "second")
	}
}

func TestOneShotCallbackMayRearm(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	var tm oneShot

	fired := 0
	var fn func()
	fn = func() {
		fired++
		if fired == 1 {
			tm.Arm(clock.Now(), time.Millisecond, fn)
		}
	}
	tm.Arm(clock.Now(), time.Millisecond, fn)

	clock.Advance(time.Millisecond)
	tm.Poll(clock.Now())
	clock.Advance(time.Millisecond)
	tm.Poll(clock.Now())

	if fired != 2 {
		t.Fatalf("fired %d times, want 2", fired)
	}
}

func TestOneShotDisarm(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	var tm oneShot

	tm.Arm(clock.Now(), time.Millisecond, func() { t.Fatal("disarmed timer fired") })
	tm.Disarm()
	clock.Advance(time.Hour)
	if tm.Poll(clock.Now()) {
		t.Fatal("disarmed timer reported firing")
	}
}
