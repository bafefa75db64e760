// Package driver runs the host update loop: a single goroutine that drains
// submitted calls and then polls the scheduler, once per tick. It is the
// one logical thread the sched package's cooperative model assumes.
package driver

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	logx "pulseboard/pkg/logx"
)

var ErrQueueFull = errors.New("driver: submit queue full")
var ErrStopped = errors.New("driver: loop not running")

type Config struct {
	// TickEvery is the loop resolution; armed deadlines fire on the first
	// tick at or past them.
	TickEvery time.Duration

	// QueueSize bounds the cross-goroutine submit queue.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.TickEvery <= 0 {
		c.TickEvery = time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// Loop owns the driver goroutine. Poll is invoked once per tick with the
// current time, after all queued submissions have run.
type Loop struct {
	log  logx.Logger
	cfg  Config
	poll func(time.Time)

	mu     sync.Mutex
	calls  chan func()
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, poll func(time.Time), log logx.Logger) *Loop {
	return &Loop{log: log, cfg: cfg.withDefaults(), poll: poll}
}

// Submit queues fn to run on the driver goroutine at the start of the next
// tick. It never blocks; a full queue is reported to the caller.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	calls := l.calls
	l.mu.Unlock()
	if calls == nil {
		return ErrStopped
	}
	select {
	case calls <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.calls = make(chan func(), l.cfg.QueueSize)
	l.cancel = cancel
	l.done = make(chan struct{})

	calls := l.calls
	done := l.done
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("panic in driver loop", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		l.run(runCtx, calls)
	}()
	l.log.Info("driver started", logx.Duration("tick", l.cfg.TickEvery), logx.Int("queue", l.cfg.QueueSize))
}

func (l *Loop) Stop(ctx context.Context) {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.calls = nil
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
		l.log.Info("driver stopped")
	case <-ctx.Done():
	}
}

func (l *Loop) run(ctx context.Context, calls chan func()) {
	ticker := time.NewTicker(l.cfg.TickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.drain(calls)
			l.poll(time.Now())
		}
	}
}

// drain runs all currently queued submissions. New submissions arriving
// while draining wait for the next tick.
func (l *Loop) drain(calls chan func()) {
	for i := len(calls); i > 0; i-- {
		select {
		case fn := <-calls:
			if fn != nil {
				fn()
			}
		default:
			return
		}
	}
}
