package sched

import "time"

// oneShot is a cooperative single-outstanding timer. Arm replaces any
// previous arming; Poll fires the callback at most once per arming, on the
// caller's goroutine, when polled at or past the deadline. It is not a
// time.Timer on purpose: firing must happen on the driver's tick, never on
// a background goroutine.
type oneShot struct {
	deadline time.Time
	fn       func()
	armed    bool
}

func (t *oneShot) Arm(now time.Time, d time.Duration, fn func()) {
	t.deadline = now.Add(d)
	t.fn = fn
	t.armed = true
}

func (t *oneShot) Disarm() {
	t.armed = false
	t.fn = nil
}

// Poll fires the armed callback if the deadline has passed. The timer is
// disarmed before the callback runs so the callback may safely re-arm.
func (t *oneShot) Poll(now time.Time) bool {
	if !t.armed || now.Before(t.deadline) {
		return false
	}
	fn := t.fn
	t.Disarm()
	if fn != nil {
		fn()
	}
	return true
}
