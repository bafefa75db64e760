// Package source feeds the scheduler with recurring display-refresh jobs.
// Recurring triggers live here, outside the one-shot core: cron fires on
// its own goroutines, and every trigger is funneled through the driver
// loop before it touches the scheduler.
package source

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pulseboard/internal/board"
	"pulseboard/internal/driver"
	"pulseboard/internal/sched"
	logx "pulseboard/pkg/logx"
)

// Feed describes one recurring producer: on every cron trigger it requests
// a board-cell refresh at now+Lead with the given priority weight.
type Feed struct {
	Name     string
	Spec     string // cron spec or @every duration
	Priority int
	Lead     time.Duration
	Refresh  func() string
}

func (f Feed) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("source: feed name is required")
	}
	if strings.TrimSpace(f.Spec) == "" {
		return fmt.Errorf("source: feed %q: spec is required", f.Name)
	}
	if f.Priority < 1 {
		return fmt.Errorf("source: feed %q: %w", f.Name, sched.ErrInvalidPriority)
	}
	if f.Refresh == nil {
		return fmt.Errorf("source: feed %q: refresh func is required", f.Name)
	}
	return nil
}

// Runner owns the cron instance driving all feeds.
type Runner struct {
	log logx.Logger

	parser cron.Parser
	c      *cron.Cron

	drv   *driver.Loop
	sch   *sched.Scheduler
	brd   *board.Board
	feeds []Feed
}

func NewRunner(drv *driver.Loop, sch *sched.Scheduler, brd *board.Board, log logx.Logger) *Runner {
	return &Runner{
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		drv:    drv,
		sch:    sch,
		brd:    brd,
	}
}

// Add validates and registers a feed. Must be called before Start.
func (r *Runner) Add(f Feed) error {
	if err := f.validate(); err != nil {
		return err
	}
	if _, err := r.parser.Parse(f.Spec); err != nil {
		return fmt.Errorf("source: feed %q: invalid spec %q: %w", f.Name, f.Spec, err)
	}
	r.feeds = append(r.feeds, f)
	return nil
}

func (r *Runner) Start() error {
	if r.c != nil {
		return nil
	}
	r.c = cron.New(cron.WithParser(r.parser))
	for i := range r.feeds {
		f := r.feeds[i]
		if _, err := r.c.AddFunc(f.Spec, func() { r.trigger(f) }); err != nil {
			r.c = nil
			return fmt.Errorf("source: feed %q: %w", f.Name, err)
		}
	}
	r.c.Start()
	r.log.Info("sources started", logx.Int("feeds", len(r.feeds)))
	return nil
}

func (r *Runner) Stop() {
	if r.c == nil {
		return
	}
	<-r.c.Stop().Done()
	r.c = nil
	r.log.Info("sources stopped")
}

// trigger runs on a cron goroutine; the actual Schedule call is deferred to
// the driver loop to respect the scheduler's single-thread contract.
func (r *Runner) trigger(f Feed) {
	err := r.drv.Submit(func() {
		if err := r.sch.ScheduleInWeighted(f.Lead, f.Priority, func() {
			r.brd.Set(f.Name, f.Refresh())
		}); err != nil {
			r.log.Warn("feed schedule rejected", logx.String("feed", f.Name), logx.Err(err))
		}
	})
	if err != nil {
		r.log.Warn("feed trigger dropped", logx.String("feed", f.Name), logx.Err(err))
	}
}
