package sched

import "time"

// Cooldown is the rate-limiter primitive: once started it reports itself
// active until the given duration has elapsed. Start resets the countdown.
type Cooldown struct {
	now   func() time.Time
	until time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{now: time.Now}
}

func newCooldownWithClock(now func() time.Time) *Cooldown {
	return &Cooldown{now: now}
}

func (c *Cooldown) Active() bool {
	return c.now().Before(c.until)
}

func (c *Cooldown) TimeLeft() time.Duration {
	left := c.until.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

func (c *Cooldown) Start(d time.Duration) {
	c.until = c.now().Add(d)
}
