// Package history persists one row per executed batch so operators can
// inspect dispatch cadence and lateness after the fact. It sits behind the
// scheduler's Recorder contract; a nil *Store is a safe no-op.
package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history: store disabled")

type Config struct {
	Enabled bool

	// Path is the sqlite database file.
	Path string

	// Retention prunes rows older than this. 0 keeps everything.
	Retention time.Duration

	BusyTimeout time.Duration
}

// Entry is one executed batch as stored.
type Entry struct {
	ID          int64
	PerformAt   time.Time
	PerformedAt time.Time
	Jobs        int
	Weight      int
	Panics      int
}

// Lateness is how far past its computed time the batch actually ran
// (negative when the plan's weighted time lay in the past at arm time).
func (e Entry) Lateness() time.Duration {
	return e.PerformedAt.Sub(e.PerformAt)
}
