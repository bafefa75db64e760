package sched

import (
	"sync"
	"time"
)

// Batch groups jobs whose target times fell inside the same batch window,
// annotated with one computed execution time.
type Batch struct {
	jobs      []Job
	performAt time.Time
}

func (b *Batch) PerformAt() time.Time { return b.performAt }
func (b *Batch) Len() int             { return len(b.jobs) }

func (b *Batch) weight() int {
	w := 0
	for _, j := range b.jobs {
		w += j.priority
	}
	return w
}

// weightedTime computes sum(finishAt millis) / sum(priority) over the jobs,
// with integer truncation. Note the numerator is not multiplied by priority;
// this is the historical arithmetic and it is load-bearing (a lone job with
// priority > 1 does NOT reduce to its own finishAt). Callers must never pass
// an empty set.
func weightedTime(jobs []Job) time.Time {
	if len(jobs) == 0 {
		panic("sched: weighted time over empty job set")
	}
	var millis, weight int64
	for _, j := range jobs {
		millis += j.finishAt.UnixMilli()
		weight += int64(j.priority)
	}
	return time.UnixMilli(millis / weight)
}

func newBatch(jobs []Job) *Batch {
	return &Batch{jobs: jobs, performAt: weightedTime(jobs)}
}

// Job buffers are pooled purely for allocation reuse; correctness never
// depends on pooling.
var jobBufPool = sync.Pool{
	New: func() any {
		buf := make([]Job, 0, 8)
		return &buf
	},
}

func takeJobBuf() []Job {
	return (*jobBufPool.Get().(*[]Job))[:0]
}

func putJobBuf(buf []Job) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:0]
	jobBufPool.Put(&buf)
}

// release returns the batch's job buffer to the pool. The batch must not be
// used afterwards.
func (b *Batch) release() {
	putJobBuf(b.jobs)
	b.jobs = nil
}
