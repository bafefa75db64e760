package sched

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_000_000_000)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCooldownLifecycle(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cd := newCooldownWithClock(clock.Now)

	if cd.Active() {
		t.Fatal("fresh cooldown should be inactive")
	}
	if cd.TimeLeft() != 0 {
		t.Fatalf("TimeLeft = %v, want 0", cd.TimeLeft())
	}

	cd.Start(50 * time.Millisecond)
	if !cd.Active() {
		t.Fatal("cooldown should be active after Start")
	}
	if cd.TimeLeft() != 50*time.Millisecond {
		t.Fatalf("TimeLeft = %v, want 50ms", cd.TimeLeft())
	}

	clock.Advance(20 * time.Millisecond)
	if cd.TimeLeft() != 30*time.Millisecond {
		t.Fatalf("TimeLeft = %v, want 30ms", cd.TimeLeft())
	}

	clock.Advance(30 * time.Millisecond)
	if cd.Active() {
		t.Fatal("cooldown should be inactive at its deadline")
	}
	if cd.TimeLeft() != 0 {
		t.Fatalf("TimeLeft = %v, want 0 after expiry", cd.TimeLeft())
	}
}

func TestCooldownStartResets(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cd := newCooldownWithClock(clock.Now)

	cd.Start(10 * time.Millisecond)
	clock.Advance(5 * time.Millisecond)
	cd.Start(40 * time.Millisecond)
	if cd.TimeLeft() != 40*time.Millisecond {
		t.Fatalf("TimeLeft = %v, want 40ms after restart", cd.TimeLeft())
	}
}
