package sched

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPriority = errors.New("priority must be >= 1")
	ErrNilAction       = errors.New("action must not be nil")
)

// Action is an opaque callable supplied by the caller. The scheduler never
// inspects it; panics are recovered and isolated per job.
type Action func()

// Job is an immutable record of a requested deferred action: a target time,
// a priority weight, and the action itself.
type Job struct {
	finishAt time.Time
	priority int
	action   Action
}

// NewJob validates and builds a Job. A non-positive priority is rejected so
// the weighted-time divisor can never be zero.
func NewJob(finishAt time.Time, priority int, action Action) (Job, error) {
	if priority < 1 {
		return Job{}, fmt.Errorf("%w (got %d)", ErrInvalidPriority, priority)
	}
	if action == nil {
		return Job{}, ErrNilAction
	}
	return Job{finishAt: finishAt, priority: priority, action: action}, nil
}

func (j Job) FinishAt() time.Time { return j.finishAt }
func (j Job) Priority() int       { return j.priority }

// before orders jobs by target time ascending. Ties keep insertion order
// (the plan rebuild uses a stable sort).
func (j Job) before(other Job) bool { return j.finishAt.Before(other.finishAt) }
