// Package sched implements a priority-weighted batching scheduler.
//
// Callers request an action to run at a target time with a priority weight.
// Temporally-close requests are grouped into batches, each batch gets one
// weighted execution time, and batches are dispatched through a cooldown so
// the downstream coordinator never repaints faster than a minimum interval.
//
// The scheduler is cooperative: all entry points (Schedule*, Tick) must run
// on one goroutine, typically the driver loop. The one-shot timer fires on a
// Tick at or after its deadline, on that same goroutine.
package sched
