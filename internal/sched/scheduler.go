package sched

import (
	"runtime/debug"
	"sort"
	"time"

	"pulseboard/internal/eventbus"
	logx "pulseboard/pkg/logx"
)

// Coordinator is the downstream consumer the scheduler drives. Suppression
// is set for the duration of a batch's actions so the coordinator skips its
// own independent update cycle, then InternalUpdate is invoked once.
type Coordinator interface {
	SetIgnoreUpdate(bool)
	InternalUpdate()
}

// BatchRecord summarizes one executed batch for observers and history.
type BatchRecord struct {
	PerformAt   time.Time
	PerformedAt time.Time
	Jobs        int
	Weight      int
	Panics      int
}

// Recorder receives a record per executed batch. Implementations must not
// block; failures are theirs to report.
type Recorder interface {
	RecordBatch(rec BatchRecord)
}

// Config controls the scheduler core.
type Config struct {
	// BatchWindow is the minimum granularity worth batching: jobs whose
	// target times fall before now+BatchWindow at rebuild time share a batch.
	BatchWindow time.Duration

	// MinUpdateInterval is the cooldown started after every executed batch;
	// no further batch fires until it has elapsed.
	MinUpdateInterval time.Duration
}

const (
	DefaultBatchWindow       = 625 * time.Microsecond
	DefaultMinUpdateInterval = 50 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.BatchWindow <= 0 {
		c.BatchWindow = DefaultBatchWindow
	}
	if c.MinUpdateInterval <= 0 {
		c.MinUpdateInterval = DefaultMinUpdateInterval
	}
	return c
}

// Scheduler owns the pending job list, the current batch plan, the cooldown
// and the one-shot timer. It is single-threaded by contract: Schedule*,
// Tick and the timer callback all run on the driver goroutine.
type Scheduler struct {
	log      logx.Logger
	panicLog logx.Logger
	cfg      Config
	now      func() time.Time

	coord Coordinator
	bus   eventbus.Bus
	rec   Recorder

	pending  []Job
	batches  []*Batch
	cooldown *Cooldown
	timer    oneShot
}

type Option func(*Scheduler)

// WithClock injects a time source. Tests drive it manually.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.cooldown = newCooldownWithClock(now)
	}
}

// WithBus publishes plan.rebuilt / batch.performed events.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithRecorder forwards a BatchRecord per executed batch.
func WithRecorder(rec Recorder) Option {
	return func(s *Scheduler) { s.rec = rec }
}

func New(cfg Config, coord Coordinator, log logx.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		log:      log,
		panicLog: log.Throttled(5),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		coord:    coord,
		cooldown: NewCooldown(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule adds a fully-formed job and rebuilds the plan.
func (s *Scheduler) Schedule(j Job) {
	s.pending = append(s.pending, j)
	s.rebuild()
}

// ScheduleIn schedules an action for now+delay with priority 1.
func (s *Scheduler) ScheduleIn(delay time.Duration, action Action) error {
	return s.ScheduleInWeighted(delay, 1, action)
}

// ScheduleInWeighted schedules an action for now+delay with the given
// priority weight.
func (s *Scheduler) ScheduleInWeighted(delay time.Duration, priority int, action Action) error {
	j, err := NewJob(s.now().Add(delay), priority, action)
	if err != nil {
		return err
	}
	s.Schedule(j)
	return nil
}

// Tick is the driver's poll. It fires the armed timer if its deadline has
// passed; nothing else happens between ticks.
func (s *Scheduler) Tick(now time.Time) {
	s.timer.Poll(now)
}

// Pending reports how many jobs await execution. BatchCount reports the
// current plan length; index 0 is the next batch to fire.
func (s *Scheduler) Pending() int    { return len(s.pending) }
func (s *Scheduler) BatchCount() int { return len(s.batches) }

// rebuild recomputes the full batch plan from the full pending list. This
// is deliberately O(n log n) per Schedule call: correctness by
// recomputation, at human-perceptible display-update rates.
func (s *Scheduler) rebuild() {
	now := s.now()

	sort.SliceStable(s.pending, func(i, k int) bool {
		return s.pending[i].before(s.pending[k])
	})

	for _, b := range s.batches {
		b.release()
	}
	s.batches = s.batches[:0]

	// One boundary per rebuild. It does not advance as batches close, so
	// every batch after the first is split against the same instant.
	boundary := now.Add(s.cfg.BatchWindow)

	open := takeJobBuf()
	for _, j := range s.pending {
		if j.finishAt.Before(boundary) {
			open = append(open, j)
			continue
		}
		if len(open) > 0 {
			s.batches = append(s.batches, newBatch(open))
			open = takeJobBuf()
		}
		open = append(open, j)
	}
	// A trailing empty buffer is discarded, never turned into a batch: the
	// weighted-time divisor must stay non-zero.
	if len(open) > 0 {
		s.batches = append(s.batches, newBatch(open))
	} else {
		putJobBuf(open)
	}

	s.armFirst(now)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypePlanRebuilt,
			Time: now,
			Data: PlanInfo{Pending: len(s.pending), Batches: len(s.batches)},
		})
	}
}

// PlanInfo is the payload of plan.rebuilt events.
type PlanInfo struct {
	Pending int
	Batches int
}

// armFirst (re)arms the timer for the first batch, delayed past any active
// cooldown. Re-arming replaces the previous arming.
func (s *Scheduler) armFirst(now time.Time) {
	if len(s.batches) == 0 {
		s.timer.Disarm()
		return
	}
	delay := s.batches[0].performAt.Sub(now)
	if s.cooldown.Active() {
		if left := s.cooldown.TimeLeft(); left > delay {
			delay = left
		}
	}
	s.timer.Arm(now, delay, s.performFirst)
}

// performFirst executes every job in the first batch, notifies the
// coordinator, starts the cooldown and pops the batch. Remaining batches
// stay unarmed until the next Schedule call rebuilds the plan; there is no
// self-rearming drain loop.
func (s *Scheduler) performFirst() {
	if len(s.batches) == 0 {
		return
	}
	b := s.batches[0]
	start := s.now()

	panics := 0
	s.coord.SetIgnoreUpdate(true)
	func() {
		defer s.coord.SetIgnoreUpdate(false)
		for _, j := range b.jobs {
			if !s.runJob(j) {
				panics++
			}
		}
	}()

	// The batch holds the first len(b.jobs) entries of the sorted pending
	// list; drop them in one slide.
	n := copy(s.pending, s.pending[len(b.jobs):])
	s.pending = s.pending[:n]

	s.batches = s.batches[:copy(s.batches, s.batches[1:])]

	s.cooldown.Start(s.cfg.MinUpdateInterval)
	s.coord.InternalUpdate()

	rec := BatchRecord{
		PerformAt:   b.performAt,
		PerformedAt: start,
		Jobs:        b.Len(),
		Weight:      b.weight(),
		Panics:      panics,
	}
	if s.rec != nil {
		s.rec.RecordBatch(rec)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeBatchPerformed, Time: start, Data: rec})
	}
	s.log.Debug("batch performed",
		logx.Int("jobs", rec.Jobs),
		logx.Int("weight", rec.Weight),
		logx.Int("panics", rec.Panics),
		logx.Duration("lateness", start.Sub(b.performAt)),
	)

	b.release()
}

// runJob executes one action, isolating panics so the rest of the batch and
// the suppression cleanup still run. Reports false if the action panicked.
func (s *Scheduler) runJob(j Job) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.panicLog.Error("job action panicked",
				logx.Any("panic", r),
				logx.Time("finish_at", j.finishAt),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	j.action()
	return true
}
